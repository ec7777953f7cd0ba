package cycles

import (
	"fmt"

	"github.com/banshee-data/biomech.report/internal/dsp"
)

// Config controls cycle segmentation and the fatigue window.
type Config struct {
	// Hysteresis is the half-width of the band around the moving midpoint,
	// in signal units.
	Hysteresis float64 `json:"hysteresis"`
	// MovingAverageWindowMs is the trailing time window the midpoint is
	// computed over.
	MovingAverageWindowMs int64 `json:"moving_average_window_ms"`
	// CyclesToAverage is the size of the fatigue window and of the
	// velocity baseline.
	CyclesToAverage int `json:"cycles_to_average"`
	// CyclesForAnalysis bounds the retained cycle history.
	CyclesForAnalysis int `json:"cycles_for_analysis"`
	// DisplayCycles is how many cycles Recent returns.
	DisplayCycles int `json:"display_cycles"`
	// Cycles shorter or smaller than these are discarded.
	MinCycleDurationMs float64 `json:"min_cycle_duration_ms"`
	MinCycleAmplitude  float64 `json:"min_cycle_amplitude"`
	// ExternalWorkload, when positive, normalizes amplitudes, peaks and
	// velocities for fatigue classification.
	ExternalWorkload float64 `json:"external_workload"`

	Fatigue FatigueConfig `json:"fatigue"`
}

// DefaultConfig returns the standard repetition-tracking settings.
func DefaultConfig() Config {
	return Config{
		Hysteresis:            0.5,
		MovingAverageWindowMs: 2000,
		CyclesToAverage:       3,
		CyclesForAnalysis:     10,
		DisplayCycles:         5,
		Fatigue:               DefaultFatigueConfig(),
	}
}

// Validate reports settings that cannot segment a stream.
func (c Config) Validate() error {
	if c.Hysteresis < 0 {
		return fmt.Errorf("%w: hysteresis %v is negative", dsp.ErrInvalidConfig, c.Hysteresis)
	}
	if c.MovingAverageWindowMs <= 0 {
		return fmt.Errorf("%w: moving average window %d ms must be positive", dsp.ErrInvalidConfig, c.MovingAverageWindowMs)
	}
	if c.CyclesToAverage < 1 {
		return fmt.Errorf("%w: cycles to average %d must be at least 1", dsp.ErrInvalidConfig, c.CyclesToAverage)
	}
	if c.CyclesForAnalysis < 0 || c.DisplayCycles < 0 {
		return fmt.Errorf("%w: cycle history sizes must not be negative", dsp.ErrInvalidConfig)
	}
	if c.MinCycleDurationMs < 0 || c.MinCycleAmplitude < 0 {
		return fmt.Errorf("%w: minimum cycle filters must not be negative", dsp.ErrInvalidConfig)
	}
	return nil
}

// historySize is at least one more than the fatigue window so the baseline
// cycles and the window can coexist.
func (c Config) historySize() int {
	n := c.CyclesForAnalysis
	if n < c.CyclesToAverage+1 {
		n = c.CyclesToAverage + 1
	}
	if n < c.DisplayCycles {
		n = c.DisplayCycles
	}
	return n
}
