package jump

import "gonum.org/v1/gonum/floats"

// Smooth returns the centered moving average of ys. Near the edges the
// window is truncated to the available samples.
func Smooth(ys []float64, window int) []float64 {
	out := make([]float64, len(ys))
	half := window / 2
	for i := range ys {
		lo, hi := i-half, i+half+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(ys) {
			hi = len(ys)
		}
		out[i] = floats.Sum(ys[lo:hi]) / float64(hi-lo)
	}
	return out
}

// FindLocalMinima returns the indices of strict minima over a window of
// frames either side. Candidates closer than minSeparation collapse to the
// lower one.
func FindLocalMinima(ys []float64, window, minSeparation int) []int {
	var out []int
	for i := 1; i < len(ys)-1; i++ {
		if !strictMin(ys, i, window) {
			continue
		}
		if n := len(out); n > 0 && i-out[n-1] < minSeparation {
			if ys[i] < ys[out[n-1]] {
				out[n-1] = i
			}
			continue
		}
		out = append(out, i)
	}
	return out
}

func strictMin(ys []float64, i, window int) bool {
	lo, hi := i-window, i+window
	if lo < 0 {
		lo = 0
	}
	if hi > len(ys)-1 {
		hi = len(ys) - 1
	}
	for j := lo; j <= hi; j++ {
		if j != i && ys[j] <= ys[i] {
			return false
		}
	}
	return true
}
