package jump

import (
	"fmt"

	"github.com/banshee-data/biomech.report/internal/dsp"
)

// Config holds the thresholds of the jump-phase detector. Angles are in
// degrees, vertical positions in image pixels, windows in frames.
type Config struct {
	// SmoothingWindow is the odd width of the centered moving average
	// applied to the vertical position.
	SmoothingWindow int `json:"smoothing_window"`

	// AccumulatedThreshold and MinSingleStepChange gate the angle-event
	// scan that finds takeoff and landing.
	AccumulatedThreshold float64 `json:"accumulated_threshold"`
	MinSingleStepChange  float64 `json:"min_single_step_change"`

	// SimilarAngleTolerance selects the impulse-start peak.
	SimilarAngleTolerance float64 `json:"similar_angle_tolerance"`
	// AngleTolerance selects the amortization end.
	AngleTolerance float64 `json:"angle_tolerance"`

	AmortizationLookahead int `json:"amortization_lookahead"`
	ImpulseSearchFrames   int `json:"impulse_search_frames"`

	// CandidateWindow and MinSeparation select candidate minima.
	CandidateWindow int `json:"candidate_window"`
	MinSeparation   int `json:"min_separation"`

	// CheckWindow is the number of frames either side of a candidate the
	// quick-reject heuristic looks at.
	CheckWindow     int     `json:"check_window"`
	MinVerticalDrop float64 `json:"min_vertical_drop"`
	MinVerticalRise float64 `json:"min_vertical_rise"`
	FlexedAngle     float64 `json:"flexed_angle"`
	MinAngleSwing   float64 `json:"min_angle_swing"`

	Gravity float64 `json:"gravity"`
}

// DefaultConfig returns thresholds tuned for 30-60 fps pose tracks.
func DefaultConfig() Config {
	return Config{
		SmoothingWindow:       5,
		AccumulatedThreshold:  15,
		MinSingleStepChange:   5,
		SimilarAngleTolerance: 5,
		AngleTolerance:        3,
		AmortizationLookahead: 30,
		ImpulseSearchFrames:   45,
		CandidateWindow:       10,
		MinSeparation:         30,
		CheckWindow:           30,
		MinVerticalDrop:       20,
		MinVerticalRise:       20,
		FlexedAngle:           150,
		MinAngleSwing:         20,
		Gravity:               9.81,
	}
}

// Validate reports settings the detector cannot run with.
func (c Config) Validate() error {
	if c.SmoothingWindow < 1 || c.SmoothingWindow%2 == 0 {
		return fmt.Errorf("%w: smoothing window %d must be odd and positive", dsp.ErrInvalidConfig, c.SmoothingWindow)
	}
	if c.AccumulatedThreshold <= 0 || c.MinSingleStepChange < 0 {
		return fmt.Errorf("%w: angle event thresholds must be positive", dsp.ErrInvalidConfig)
	}
	if c.CandidateWindow < 1 || c.MinSeparation < 0 || c.CheckWindow < 1 {
		return fmt.Errorf("%w: candidate windows must be positive", dsp.ErrInvalidConfig)
	}
	if c.AmortizationLookahead < 0 || c.ImpulseSearchFrames < 0 {
		return fmt.Errorf("%w: search windows must not be negative", dsp.ErrInvalidConfig)
	}
	if !(c.Gravity > 0) {
		return fmt.Errorf("%w: gravity %v must be positive", dsp.ErrInvalidConfig, c.Gravity)
	}
	return nil
}
