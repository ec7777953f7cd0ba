package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/biomech.report/internal/cycles"
	"github.com/banshee-data/biomech.report/internal/dsp"
	"github.com/banshee-data/biomech.report/internal/jump"
	"github.com/banshee-data/biomech.report/internal/sway"
	"github.com/banshee-data/biomech.report/internal/units"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// AnalysisConfig is the root configuration for the processing chain. Every
// field is optional; the Get* accessors fall back to the built-in defaults.
// The schema matches GET /api/config.
type AnalysisConfig struct {
	// Force filter
	SampleRateHz   *float64 `json:"sample_rate_hz,omitempty"`
	FilterCutoffHz *float64 `json:"filter_cutoff_hz,omitempty"`
	FilterOrder    *int     `json:"filter_order,omitempty"`

	// Spectrum
	SpectrumWindowSec   *float64 `json:"spectrum_window_sec,omitempty"`
	SpectrumDiscardSec  *float64 `json:"spectrum_discard_sec,omitempty"`
	LowBandHz           *float64 `json:"low_band_hz,omitempty"`
	HighBandHz          *float64 `json:"high_band_hz,omitempty"`
	ProminenceWindow    *int     `json:"prominence_window,omitempty"`
	ProminenceThreshold *float64 `json:"prominence_threshold,omitempty"`
	AmplitudePreference *float64 `json:"amplitude_preference,omitempty"`

	// Sway
	SensorHeightCm  *float64 `json:"sensor_height_cm,omitempty"`
	Gravity         *float64 `json:"gravity,omitempty"`
	SwayCutoffHz    *float64 `json:"sway_cutoff_hz,omitempty"`
	JerkFilterOrder *int     `json:"jerk_filter_order,omitempty"`
	SwayMLAxis      *string  `json:"sway_ml_axis,omitempty"` // "x", "y" or "z"
	SwayAPAxis      *string  `json:"sway_ap_axis,omitempty"`

	// Cycles
	Hysteresis            *float64 `json:"hysteresis,omitempty"`
	MovingAverageWindowMs *int64   `json:"moving_average_window_ms,omitempty"`
	CyclesToAverage       *int     `json:"cycles_to_average,omitempty"`
	CyclesForAnalysis     *int     `json:"cycles_for_analysis,omitempty"`
	DisplayCycles         *int     `json:"display_cycles,omitempty"`
	MinCycleDurationMs    *float64 `json:"min_cycle_duration_ms,omitempty"`
	MinCycleAmplitude     *float64 `json:"min_cycle_amplitude,omitempty"`
	ExternalWorkload      *float64 `json:"external_workload,omitempty"`

	// Fatigue
	FatigueMinAvgAmplitude *float64 `json:"fatigue_min_avg_amplitude,omitempty"`
	FatigueDurationChange  *float64 `json:"fatigue_duration_change,omitempty"`
	FatiguePeakDrop        *float64 `json:"fatigue_peak_drop,omitempty"`
	FatigueVelocityDrop    *float64 `json:"fatigue_velocity_drop,omitempty"`
	FatigueVariability     *float64 `json:"fatigue_variability,omitempty"`

	// Jump
	JumpSmoothingWindow       *int     `json:"jump_smoothing_window,omitempty"`
	JumpAccumulatedThreshold  *float64 `json:"jump_accumulated_threshold,omitempty"`
	JumpMinSingleStepChange   *float64 `json:"jump_min_single_step_change,omitempty"`
	JumpSimilarAngleTolerance *float64 `json:"jump_similar_angle_tolerance,omitempty"`
	JumpAngleTolerance        *float64 `json:"jump_angle_tolerance,omitempty"`
	JumpAmortizationLookahead *int     `json:"jump_amortization_lookahead,omitempty"`
	JumpImpulseSearchFrames   *int     `json:"jump_impulse_search_frames,omitempty"`
	JumpCandidateWindow       *int     `json:"jump_candidate_window,omitempty"`
	JumpMinSeparation         *int     `json:"jump_min_separation,omitempty"`
	JumpCheckWindow           *int     `json:"jump_check_window,omitempty"`
	JumpMinVerticalDrop       *float64 `json:"jump_min_vertical_drop,omitempty"`
	JumpMinVerticalRise       *float64 `json:"jump_min_vertical_rise,omitempty"`
	JumpFlexedAngle           *float64 `json:"jump_flexed_angle,omitempty"`
	JumpMinAngleSwing         *float64 `json:"jump_min_angle_swing,omitempty"`

	// Live host
	LiveWindowSec  *float64 `json:"live_window_sec,omitempty"`
	DisplayUnits       *string `json:"display_units,omitempty"`
	DisplayLengthUnits *string `json:"display_length_units,omitempty"`
	PersistSamples     *bool   `json:"persist_samples,omitempty"`
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// EmptyAnalysisConfig returns a config with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file. Omitted fields
// keep their defaults, so partial files are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// one of its parents. It panics when the file cannot be found; it is meant
// for tests.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/tools/<tool>/
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every derived package configuration.
func (c *AnalysisConfig) Validate() error {
	if err := dsp.ValidateRate(c.GetSampleRateHz()); err != nil {
		return fmt.Errorf("sample_rate_hz: %w", err)
	}
	if err := dsp.ValidateCutoff(c.GetFilterCutoffHz(), c.GetSampleRateHz()); err != nil {
		return fmt.Errorf("filter_cutoff_hz: %w", err)
	}
	if err := dsp.ValidateOrder(c.GetFilterOrder()); err != nil {
		return fmt.Errorf("filter_order: %w", err)
	}
	if c.GetSpectrumWindowSec() < 0 {
		return fmt.Errorf("spectrum_window_sec must be non-negative, got %g", c.GetSpectrumWindowSec())
	}
	if c.GetHighBandHz() < c.GetLowBandHz() {
		return fmt.Errorf("high_band_hz (%g) must not be below low_band_hz (%g)", c.GetHighBandHz(), c.GetLowBandHz())
	}
	if err := c.SwayConfig().Validate(sway.RealTime); err != nil {
		return fmt.Errorf("sway: %w", err)
	}
	if _, err := ParseAxis(c.GetSwayMLAxis()); err != nil {
		return fmt.Errorf("sway_ml_axis: %w", err)
	}
	if _, err := ParseAxis(c.GetSwayAPAxis()); err != nil {
		return fmt.Errorf("sway_ap_axis: %w", err)
	}
	if err := c.CyclesConfig().Validate(); err != nil {
		return fmt.Errorf("cycles: %w", err)
	}
	if err := c.JumpConfig().Validate(); err != nil {
		return fmt.Errorf("jump: %w", err)
	}
	if c.GetLiveWindowSec() <= 0 {
		return fmt.Errorf("live_window_sec must be positive, got %g", c.GetLiveWindowSec())
	}
	if err := units.Validate(c.GetDisplayUnits()); err != nil {
		return fmt.Errorf("display_units: %w", err)
	}
	if !units.IsValidLength(c.GetDisplayLengthUnits()) {
		return fmt.Errorf("display_length_units: invalid units %q, must be one of: %s",
			c.GetDisplayLengthUnits(), strings.Join(units.ValidLengthUnits, ", "))
	}
	return nil
}

// ParseAxis maps "x", "y" or "z" onto a device axis.
func ParseAxis(s string) (sway.Axis, error) {
	switch strings.ToLower(s) {
	case "x":
		return sway.AxisX, nil
	case "y":
		return sway.AxisY, nil
	case "z":
		return sway.AxisZ, nil
	default:
		return 0, fmt.Errorf("unknown axis %q", s)
	}
}

func (c *AnalysisConfig) GetSampleRateHz() float64   { return valueOr(c.SampleRateHz, 80) }
func (c *AnalysisConfig) GetFilterCutoffHz() float64 { return valueOr(c.FilterCutoffHz, 5) }
func (c *AnalysisConfig) GetFilterOrder() int        { return valueOr(c.FilterOrder, 2) }

func (c *AnalysisConfig) GetSpectrumWindowSec() float64   { return valueOr(c.SpectrumWindowSec, 0) }
func (c *AnalysisConfig) GetSpectrumDiscardSec() float64  { return valueOr(c.SpectrumDiscardSec, dsp.DefaultDiscardSec) }
func (c *AnalysisConfig) GetLowBandHz() float64           { return valueOr(c.LowBandHz, 2) }
func (c *AnalysisConfig) GetHighBandHz() float64          { return valueOr(c.HighBandHz, 5) }
func (c *AnalysisConfig) GetProminenceWindow() int        { return valueOr(c.ProminenceWindow, 10) }
func (c *AnalysisConfig) GetProminenceThreshold() float64 { return valueOr(c.ProminenceThreshold, 0.5) }
func (c *AnalysisConfig) GetAmplitudePreference() float64 { return valueOr(c.AmplitudePreference, 0.2) }

func (c *AnalysisConfig) GetSensorHeightCm() float64 { return valueOr(c.SensorHeightCm, 100) }
func (c *AnalysisConfig) GetGravity() float64        { return valueOr(c.Gravity, sway.DefaultGravity) }
func (c *AnalysisConfig) GetSwayCutoffHz() float64   { return valueOr(c.SwayCutoffHz, 5) }
func (c *AnalysisConfig) GetJerkFilterOrder() int    { return valueOr(c.JerkFilterOrder, 4) }
func (c *AnalysisConfig) GetSwayMLAxis() string      { return valueOr(c.SwayMLAxis, "x") }
func (c *AnalysisConfig) GetSwayAPAxis() string      { return valueOr(c.SwayAPAxis, "z") }

func (c *AnalysisConfig) GetHysteresis() float64             { return valueOr(c.Hysteresis, 0.5) }
func (c *AnalysisConfig) GetMovingAverageWindowMs() int64    { return valueOr(c.MovingAverageWindowMs, 2000) }
func (c *AnalysisConfig) GetCyclesToAverage() int            { return valueOr(c.CyclesToAverage, 3) }
func (c *AnalysisConfig) GetCyclesForAnalysis() int          { return valueOr(c.CyclesForAnalysis, 10) }
func (c *AnalysisConfig) GetDisplayCycles() int              { return valueOr(c.DisplayCycles, 5) }
func (c *AnalysisConfig) GetMinCycleDurationMs() float64     { return valueOr(c.MinCycleDurationMs, 0) }
func (c *AnalysisConfig) GetMinCycleAmplitude() float64      { return valueOr(c.MinCycleAmplitude, 0) }
func (c *AnalysisConfig) GetExternalWorkload() float64       { return valueOr(c.ExternalWorkload, 0) }
func (c *AnalysisConfig) GetFatigueMinAvgAmplitude() float64 { return valueOr(c.FatigueMinAvgAmplitude, 2.0) }
func (c *AnalysisConfig) GetFatigueDurationChange() float64  { return valueOr(c.FatigueDurationChange, 0.1) }
func (c *AnalysisConfig) GetFatiguePeakDrop() float64        { return valueOr(c.FatiguePeakDrop, 0.8) }
func (c *AnalysisConfig) GetFatigueVelocityDrop() float64    { return valueOr(c.FatigueVelocityDrop, 0.7) }
func (c *AnalysisConfig) GetFatigueVariability() float64     { return valueOr(c.FatigueVariability, 1.0) }

func (c *AnalysisConfig) GetLiveWindowSec() float64 { return valueOr(c.LiveWindowSec, 10) }
func (c *AnalysisConfig) GetDisplayUnits() string   { return valueOr(c.DisplayUnits, units.KG) }
func (c *AnalysisConfig) GetPersistSamples() bool   { return valueOr(c.PersistSamples, true) }

func (c *AnalysisConfig) GetDisplayLengthUnits() string {
	return valueOr(c.DisplayLengthUnits, units.CM)
}

// FilterSettings returns the force filter cutoff, rate and order.
func (c *AnalysisConfig) FilterSettings() (cutoffHz, sampleRateHz float64, order int) {
	return c.GetFilterCutoffHz(), c.GetSampleRateHz(), c.GetFilterOrder()
}

// SpectrumOptions returns the segment selection for FrequencySpectrum.
func (c *AnalysisConfig) SpectrumOptions() dsp.SpectrumOptions {
	return dsp.SpectrumOptions{
		WindowSec:  c.GetSpectrumWindowSec(),
		DiscardSec: c.GetSpectrumDiscardSec(),
	}
}

// PeakOptions returns the dominant-frequency tuning.
func (c *AnalysisConfig) PeakOptions() dsp.PeakOptions {
	return dsp.PeakOptions{
		LowBandHz:           c.GetLowBandHz(),
		HighBandHz:          c.GetHighBandHz(),
		ProminenceWindow:    c.GetProminenceWindow(),
		ProminenceThreshold: c.GetProminenceThreshold(),
		AmplitudePreference: c.GetAmplitudePreference(),
	}
}

// SwayConfig returns the COP configuration without a sample rate; callers
// set SampleRateHz for their recording.
func (c *AnalysisConfig) SwayConfig() sway.Config {
	return sway.Config{
		SensorHeightCm:  c.GetSensorHeightCm(),
		Gravity:         c.GetGravity(),
		FilterOrder:     2,
		JerkFilterOrder: c.GetJerkFilterOrder(),
	}
}

// TrackerConfig returns the motion tracker configuration. Unknown axes fall
// back to the defaults; Validate reports them.
func (c *AnalysisConfig) TrackerConfig() sway.TrackerConfig {
	tc := sway.TrackerConfig{Config: c.SwayConfig(), MLAxis: sway.AxisX, APAxis: sway.AxisZ}
	tc.CutoffHz = c.GetSwayCutoffHz()
	if a, err := ParseAxis(c.GetSwayMLAxis()); err == nil {
		tc.MLAxis = a
	}
	if a, err := ParseAxis(c.GetSwayAPAxis()); err == nil {
		tc.APAxis = a
	}
	return tc
}

// CyclesConfig returns the cycle detector and fatigue configuration.
func (c *AnalysisConfig) CyclesConfig() cycles.Config {
	return cycles.Config{
		Hysteresis:            c.GetHysteresis(),
		MovingAverageWindowMs: c.GetMovingAverageWindowMs(),
		CyclesToAverage:       c.GetCyclesToAverage(),
		CyclesForAnalysis:     c.GetCyclesForAnalysis(),
		DisplayCycles:         c.GetDisplayCycles(),
		MinCycleDurationMs:    c.GetMinCycleDurationMs(),
		MinCycleAmplitude:     c.GetMinCycleAmplitude(),
		ExternalWorkload:      c.GetExternalWorkload(),
		Fatigue: cycles.FatigueConfig{
			MinAvgAmplitude:         c.GetFatigueMinAvgAmplitude(),
			DurationChangeThreshold: c.GetFatigueDurationChange(),
			PeakDropThreshold:       c.GetFatiguePeakDrop(),
			VelocityDropThreshold:   c.GetFatigueVelocityDrop(),
			VariabilityThreshold:    c.GetFatigueVariability(),
		},
	}
}

// JumpConfig returns the jump-phase detector configuration.
func (c *AnalysisConfig) JumpConfig() jump.Config {
	d := jump.DefaultConfig()
	return jump.Config{
		SmoothingWindow:       valueOr(c.JumpSmoothingWindow, d.SmoothingWindow),
		AccumulatedThreshold:  valueOr(c.JumpAccumulatedThreshold, d.AccumulatedThreshold),
		MinSingleStepChange:   valueOr(c.JumpMinSingleStepChange, d.MinSingleStepChange),
		SimilarAngleTolerance: valueOr(c.JumpSimilarAngleTolerance, d.SimilarAngleTolerance),
		AngleTolerance:        valueOr(c.JumpAngleTolerance, d.AngleTolerance),
		AmortizationLookahead: valueOr(c.JumpAmortizationLookahead, d.AmortizationLookahead),
		ImpulseSearchFrames:   valueOr(c.JumpImpulseSearchFrames, d.ImpulseSearchFrames),
		CandidateWindow:       valueOr(c.JumpCandidateWindow, d.CandidateWindow),
		MinSeparation:         valueOr(c.JumpMinSeparation, d.MinSeparation),
		CheckWindow:           valueOr(c.JumpCheckWindow, d.CheckWindow),
		MinVerticalDrop:       valueOr(c.JumpMinVerticalDrop, d.MinVerticalDrop),
		MinVerticalRise:       valueOr(c.JumpMinVerticalRise, d.MinVerticalRise),
		FlexedAngle:           valueOr(c.JumpFlexedAngle, d.FlexedAngle),
		MinAngleSwing:         valueOr(c.JumpMinAngleSwing, d.MinAngleSwing),
		Gravity:               c.GetGravity(),
	}
}
