package jump

import "gonum.org/v1/gonum/floats"

// Direction is the scan direction through the frame array.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// Trend is the expected sign of the angle change while scanning.
type Trend int

const (
	Flexion   Trend = -1
	Extension Trend = 1
)

// FindAngleEvent walks angles from start in dir and returns the index where
// a run of changes in the expected trend begins. A run counts once it has
// two or more consecutive steps, an accumulated change of at least
// AccumulatedThreshold and one step of at least MinSingleStepChange.
// If no run qualifies it returns start.
func FindAngleEvent(angles []float64, start int, dir Direction, trend Trend, cfg Config) int {
	if start < 0 || start >= len(angles) {
		return start
	}
	step := int(dir)
	runStart := -1
	var accumulated float64
	var steps int
	var bigStep bool

	for i := start; i+step >= 0 && i+step < len(angles); i += step {
		delta := angles[i+step] - angles[i]
		if delta*float64(trend) <= 0 {
			runStart, accumulated, steps, bigStep = -1, 0, 0, false
			continue
		}
		if runStart < 0 {
			runStart = i
		}
		change := delta * float64(trend)
		accumulated += change
		steps++
		if change >= cfg.MinSingleStepChange {
			bigStep = true
		}
		if steps >= 2 && accumulated >= cfg.AccumulatedThreshold && bigStep {
			return runStart
		}
	}
	return start
}

// FindSurroundingPeaks returns the nearest local angle maxima before and
// after idx whose value is within tolerance of the highest angle within
// span frames on that side. A side without such a peak returns idx.
func FindSurroundingPeaks(angles []float64, idx, span int, tolerance float64) (prev, next int) {
	prev, next = idx, idx
	if idx < 0 || idx >= len(angles) {
		return prev, next
	}

	lo := idx - span
	if lo < 0 {
		lo = 0
	}
	if lo < idx {
		top := floats.Max(angles[lo:idx])
		for j := idx - 1; j >= lo; j-- {
			if isLocalMax(angles, j) && angles[j] >= top-tolerance {
				prev = j
				break
			}
		}
	}

	hi := idx + span
	if hi > len(angles)-1 {
		hi = len(angles) - 1
	}
	if hi > idx {
		top := floats.Max(angles[idx+1 : hi+1])
		for j := idx + 1; j <= hi; j++ {
			if isLocalMax(angles, j) && angles[j] >= top-tolerance {
				next = j
				break
			}
		}
	}
	return prev, next
}

func isLocalMax(angles []float64, j int) bool {
	if j > 0 && angles[j] < angles[j-1] {
		return false
	}
	if j < len(angles)-1 && angles[j] < angles[j+1] {
		return false
	}
	return true
}

// AmortizationEnd returns the latest frame after landing, within lookahead
// frames, whose angle is within tolerance of the highest angle in that
// range. It returns landing when there are no frames after it.
func AmortizationEnd(angles []float64, landing, lookahead int, tolerance float64) int {
	if landing < 0 || landing >= len(angles)-1 || lookahead < 1 {
		return landing
	}
	hi := landing + lookahead
	if hi > len(angles)-1 {
		hi = len(angles) - 1
	}
	after := angles[landing+1 : hi+1]
	top := floats.Max(after)
	for j := len(after) - 1; j >= 0; j-- {
		if top-after[j] <= tolerance {
			return landing + 1 + j
		}
	}
	return landing
}
