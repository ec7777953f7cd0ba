// Package jump finds the phases of a vertical jump in a per-frame joint
// angle and vertical keypoint track: takeoff, landing, the countermovement
// impulse and the landing amortization.
package jump

import (
	"gonum.org/v1/gonum/floats"
)

// Frame is one pose frame reduced to the tracked joint. Timestamp is in
// milliseconds, Angle in degrees (180 is straight) and Y is the image row of
// the joint, growing downward.
type Frame struct {
	Timestamp int64   `json:"timestamp"`
	Angle     float64 `json:"angle"`
	Y         float64 `json:"y"`
}

// Metrics describes one analyzed jump. Indices point into the frame array;
// durations are in seconds and height in meters.
type Metrics struct {
	PeakIndex            int `json:"peak_index"`
	TakeoffIndex         int `json:"takeoff_index"`
	LandingIndex         int `json:"landing_index"`
	CountermovementIndex int `json:"countermovement_index"`
	ImpulseStartIndex    int `json:"impulse_start_index"`
	AmortizationEndIndex int `json:"amortization_end_index"`

	FlightTime            float64 `json:"flight_time"`
	Height                float64 `json:"height"`
	ReactiveStrengthIndex float64 `json:"reactive_strength_index"`
	ImpulseDuration       float64 `json:"impulse_duration"`
	AmortizationDuration  float64 `json:"amortization_duration"`
	TakeoffAngle          float64 `json:"takeoff_angle"`
	LandingAngle          float64 `json:"landing_angle"`
	CountermovementAngle  float64 `json:"countermovement_angle"`
	ImpulseStartAngle     float64 `json:"impulse_start_angle"`
	AmortizationEndAngle  float64 `json:"amortization_end_angle"`
}

func angles(frames []Frame) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = f.Angle
	}
	return out
}

func ys(frames []Frame) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = f.Y
	}
	return out
}

func seconds(frames []Frame, from, to int) float64 {
	return float64(frames[to].Timestamp-frames[from].Timestamp) / 1000
}

// Analyze extracts the jump phases around peak, the frame where the joint is
// highest in the image. It reports false when either boundary search finds
// no event or the flight time is not positive.
func Analyze(frames []Frame, peak int, cfg Config) (Metrics, bool) {
	if peak <= 0 || peak >= len(frames)-1 {
		return Metrics{}, false
	}
	a := angles(frames)

	takeoff := FindAngleEvent(a, peak, Backward, Flexion, cfg)
	landing := FindAngleEvent(a, peak, Forward, Flexion, cfg)
	if takeoff == peak || landing == peak {
		tracef("no takeoff/landing around frame %d (takeoff %d landing %d)", peak, takeoff, landing)
		return Metrics{}, false
	}
	flight := seconds(frames, takeoff, landing)
	if flight <= 0 {
		tracef("non-positive flight %.3fs around frame %d", flight, peak)
		return Metrics{}, false
	}

	lo := takeoff - cfg.ImpulseSearchFrames
	if lo < 0 {
		lo = 0
	}
	counter := lo + floats.MinIdx(a[lo:takeoff+1])
	impulse, _ := FindSurroundingPeaks(a, counter, cfg.ImpulseSearchFrames, cfg.SimilarAngleTolerance)
	amortization := AmortizationEnd(a, landing, cfg.AmortizationLookahead, cfg.AngleTolerance)

	height := cfg.Gravity * flight * flight / 8
	m := Metrics{
		PeakIndex:            peak,
		TakeoffIndex:         takeoff,
		LandingIndex:         landing,
		CountermovementIndex: counter,
		ImpulseStartIndex:    impulse,
		AmortizationEndIndex: amortization,

		FlightTime:            flight,
		Height:                height,
		ReactiveStrengthIndex: height / flight,
		ImpulseDuration:       seconds(frames, impulse, takeoff),
		AmortizationDuration:  seconds(frames, landing, amortization),
		TakeoffAngle:          a[takeoff],
		LandingAngle:          a[landing],
		CountermovementAngle:  a[counter],
		ImpulseStartAngle:     a[impulse],
		AmortizationEndAngle:  a[amortization],
	}
	tracef("jump at frame %d: flight %.3fs height %.3fm", peak, m.FlightTime, m.Height)
	return m, true
}

// AnalyzeJump smooths the vertical track and analyzes the jump around its
// highest point.
func AnalyzeJump(frames []Frame, cfg Config) (Metrics, bool, error) {
	if err := cfg.Validate(); err != nil {
		return Metrics{}, false, err
	}
	if len(frames) == 0 {
		return Metrics{}, false, nil
	}
	smoothed := Smooth(ys(frames), cfg.SmoothingWindow)
	m, ok := Analyze(frames, floats.MinIdx(smoothed), cfg)
	return m, ok, nil
}

// DetectJumps finds every jump in frames: candidate minima of the smoothed
// vertical track, filtered by IsJumpLikeDetailed, then analyzed.
func DetectJumps(frames []Frame, cfg Config) ([]Metrics, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, nil
	}
	smoothed := make([]Frame, len(frames))
	copy(smoothed, frames)
	for i, y := range Smooth(ys(frames), cfg.SmoothingWindow) {
		smoothed[i].Y = y
	}

	var out []Metrics
	for _, idx := range FindLocalMinima(ys(smoothed), cfg.CandidateWindow, cfg.MinSeparation) {
		check := IsJumpLikeDetailed(smoothed, idx, cfg)
		if !check.JumpLike {
			tracef("candidate %d rejected: %+v", idx, check)
			continue
		}
		if m, ok := Analyze(frames, idx, cfg); ok {
			out = append(out, m)
		}
	}
	return out, nil
}
