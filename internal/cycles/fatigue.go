package cycles

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Fatigue reason codes.
const (
	CodeAmplitude   = "↓Amp"
	CodeCycleTime   = "↑Cyc"
	CodePeakForce   = "↓F̄"
	CodeVelocity    = "↓V̄"
	CodeVariability = "↑Var"
)

// FatigueConfig holds the thresholds for the five fatigue signals.
type FatigueConfig struct {
	// MinAvgAmplitude flags a window whose mean normalized amplitude is
	// below it.
	MinAvgAmplitude float64 `json:"min_avg_amplitude"`
	// DurationChangeThreshold flags a mean relative duration increase
	// between consecutive cycles above it.
	DurationChangeThreshold float64 `json:"duration_change_threshold"`
	// PeakDropThreshold flags a window whose highest normalized peak is
	// below this fraction of the session peak.
	PeakDropThreshold float64 `json:"peak_drop_threshold"`
	// VelocityDropThreshold flags a mean normalized velocity below this
	// fraction of the baseline velocity.
	VelocityDropThreshold float64 `json:"velocity_drop_threshold"`
	// VariabilityThreshold flags an amplitude variance above it.
	VariabilityThreshold float64 `json:"variability_threshold"`
}

// DefaultFatigueConfig returns the standard thresholds.
func DefaultFatigueConfig() FatigueConfig {
	return FatigueConfig{
		MinAvgAmplitude:         2.0,
		DurationChangeThreshold: 0.1,
		PeakDropThreshold:       0.8,
		VelocityDropThreshold:   0.7,
		VariabilityThreshold:    1.0,
	}
}

// Baseline is the session reference the fatigue window is compared to.
type Baseline struct {
	// GlobalPeak is the highest normalized peak since the last reset.
	GlobalPeak float64 `json:"global_peak"`
	// InitialVelocity is the mean normalized velocity of the baseline
	// cycles, nil until enough cycles have completed.
	InitialVelocity *float64 `json:"initial_velocity,omitempty"`
}

// FatigueStatus is the outcome of Classify.
type FatigueStatus struct {
	IsFatigued bool     `json:"is_fatigued"`
	Reasons    []string `json:"reasons"`
	// Code is the sorted reasons joined with commas.
	Code           string `json:"code"`
	Interpretation string `json:"interpretation"`
}

// WindowStats summarizes the cycles of a fatigue window.
type WindowStats struct {
	Cycles            int     `json:"cycles"`
	MeanAmplitude     float64 `json:"mean_amplitude"`
	AmplitudeVariance float64 `json:"amplitude_variance"`
	DurationChange    float64 `json:"duration_change"`
	MaxPeak           float64 `json:"max_peak"`
	MeanVelocity      float64 `json:"mean_velocity"`
}

// Summarize computes the normalized window statistics used by Classify.
func Summarize(window []Cycle) WindowStats {
	ws := WindowStats{Cycles: len(window)}
	if len(window) == 0 {
		return ws
	}
	amps := make([]float64, len(window))
	vels := make([]float64, len(window))
	for i, c := range window {
		amps[i] = c.NormalizedAmplitude()
		vels[i] = c.NormalizedVelocity()
		if p := c.NormalizedPeak(); i == 0 || p > ws.MaxPeak {
			ws.MaxPeak = p
		}
	}
	ws.MeanAmplitude, ws.AmplitudeVariance = stat.PopMeanVariance(amps, nil)
	ws.MeanVelocity = stat.Mean(vels, nil)

	var changes float64
	var n int
	for i := 1; i < len(window); i++ {
		prev := window[i-1].DurationMs
		if prev <= 0 {
			continue
		}
		changes += (window[i].DurationMs - prev) / prev
		n++
	}
	if n > 0 {
		ws.DurationChange = changes / float64(n)
	}
	return ws
}

// Classify evaluates the fatigue signals over window. Two or more signals
// mean fatigue; fewer than two cycles are never fatigued.
func Classify(window []Cycle, base Baseline, cfg FatigueConfig) FatigueStatus {
	if len(window) < 2 {
		return FatigueStatus{Reasons: []string{}, Interpretation: notEnoughCycles}
	}
	ws := Summarize(window)

	var reasons []string
	if ws.MeanAmplitude < cfg.MinAvgAmplitude {
		reasons = append(reasons, CodeAmplitude)
	}
	if ws.DurationChange > cfg.DurationChangeThreshold {
		reasons = append(reasons, CodeCycleTime)
	}
	if base.GlobalPeak > 0 && ws.MaxPeak < cfg.PeakDropThreshold*base.GlobalPeak {
		reasons = append(reasons, CodePeakForce)
	}
	if v := base.InitialVelocity; v != nil && *v > 0 && ws.MeanVelocity < cfg.VelocityDropThreshold*(*v) {
		reasons = append(reasons, CodeVelocity)
	}
	if ws.AmplitudeVariance > cfg.VariabilityThreshold {
		reasons = append(reasons, CodeVariability)
	}
	if reasons == nil {
		reasons = []string{}
	}
	sort.Strings(reasons)
	code := strings.Join(reasons, ",")

	return FatigueStatus{
		IsFatigued:     len(reasons) >= 2,
		Reasons:        reasons,
		Code:           code,
		Interpretation: Interpret(reasons),
	}
}
