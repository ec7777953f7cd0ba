package pipeline

import (
	"fmt"

	"github.com/banshee-data/biomech.report/internal/config"
	"github.com/banshee-data/biomech.report/internal/cycles"
	"github.com/banshee-data/biomech.report/internal/dsp"
	"github.com/banshee-data/biomech.report/internal/jump"
	"github.com/banshee-data/biomech.report/internal/sway"
)

// SpectrumInput is a recorded signal to analyse. A zero SampleRateHz uses the
// configured rate.
type SpectrumInput struct {
	Signal       []float64 `json:"signal"`
	SampleRateHz float64   `json:"sample_rate_hz,omitempty"`
	Filter       bool      `json:"filter,omitempty"`
}

// AnalyseSpectrum computes the amplitude spectrum and dominant frequency of a
// recording, optionally low-passing it first with the force filter settings.
func AnalyseSpectrum(in SpectrumInput, cfg *config.AnalysisConfig) (dsp.Spectrum, error) {
	rate := in.SampleRateHz
	if rate == 0 {
		rate = cfg.GetSampleRateHz()
	}
	signal := in.Signal
	if in.Filter {
		cutoff, _, order := cfg.FilterSettings()
		var err error
		if signal, err = dsp.FilterBlock(signal, cutoff, order, rate); err != nil {
			return dsp.Spectrum{}, err
		}
	}
	return dsp.Analyze(signal, rate, cfg.SpectrumOptions(), cfg.PeakOptions())
}

// SwayInput is either paired ML/AP accelerations at a fixed rate or a motion
// sensor recording. Motion wins when both are present. Mode defaults to
// post-processing.
type SwayInput struct {
	ML           []float64           `json:"ml,omitempty"`
	AP           []float64           `json:"ap,omitempty"`
	Motion       []sway.MotionSample `json:"motion,omitempty"`
	SampleRateHz float64             `json:"sample_rate_hz,omitempty"`
	Mode         string              `json:"mode,omitempty"`
}

// AnalyseSway computes COP sway statistics for a recording.
func AnalyseSway(in SwayInput, cfg *config.AnalysisConfig) (sway.Stats, error) {
	mode := sway.PostProcessing
	if in.Mode != "" {
		m, err := sway.ParseMode(in.Mode)
		if err != nil {
			return sway.Stats{}, err
		}
		mode = m
	}

	if len(in.Motion) > 0 {
		t, err := sway.NewTracker(cfg.TrackerConfig())
		if err != nil {
			return sway.Stats{}, err
		}
		for _, s := range in.Motion {
			t.Push(s)
		}
		return t.Snapshot(mode)
	}

	sc := cfg.SwayConfig()
	sc.SampleRateHz = in.SampleRateHz
	if sc.SampleRateHz == 0 {
		sc.SampleRateHz = cfg.GetSampleRateHz()
	}
	if cutoff := cfg.GetSwayCutoffHz(); cutoff < sc.SampleRateHz/2 {
		sc.CutoffHz = cutoff
	}
	return sway.Compute(in.ML, in.AP, sc, mode)
}

// CyclesInput is a force recording. Samples carry their own timestamps;
// bare Values are spaced at SampleRateHz (the configured rate when zero).
type CyclesInput struct {
	Samples      []cycles.Sample `json:"samples,omitempty"`
	Values       []float64       `json:"values,omitempty"`
	SampleRateHz float64         `json:"sample_rate_hz,omitempty"`
	Filter       bool            `json:"filter,omitempty"`
	Workload     float64         `json:"external_workload,omitempty"`
}

// CyclesReport is the outcome of segmenting a whole recording.
type CyclesReport struct {
	Cycles   []cycles.Cycle       `json:"cycles"`
	Summary  cycles.WindowStats   `json:"summary"`
	Baseline cycles.Baseline      `json:"baseline"`
	Fatigue  cycles.FatigueStatus `json:"fatigue"`
}

// TimestampedSamples returns the input as timestamped samples.
func (in CyclesInput) TimestampedSamples(fallbackRate float64) []cycles.Sample {
	if len(in.Samples) > 0 {
		return in.Samples
	}
	rate := in.SampleRateHz
	if rate <= 0 {
		rate = fallbackRate
	}
	out := make([]cycles.Sample, len(in.Values))
	for i, v := range in.Values {
		out[i] = cycles.Sample{Timestamp: int64(float64(i) * 1000 / rate), Value: v}
	}
	return out
}

// AnalyseCycles segments a recording into cycles and classifies fatigue over
// its last cycles, the way the live stream would have at its end.
func AnalyseCycles(in CyclesInput, cfg *config.AnalysisConfig) (CyclesReport, error) {
	samples := in.TimestampedSamples(cfg.GetSampleRateHz())
	if len(samples) == 0 {
		return CyclesReport{Cycles: []cycles.Cycle{}}, nil
	}

	if in.Filter {
		cutoff, _, order := cfg.FilterSettings()
		values := make([]float64, len(samples))
		for i, s := range samples {
			values[i] = s.Value
		}
		filtered, err := dsp.FilterBlock(values, cutoff, order, EstimateRate(samples, cfg.GetSampleRateHz()))
		if err != nil {
			return CyclesReport{}, err
		}
		out := make([]cycles.Sample, len(samples))
		for i, s := range samples {
			out[i] = cycles.Sample{Timestamp: s.Timestamp, Value: filtered[i]}
		}
		samples = out
	}

	d, err := cycles.NewDetector(cfg.CyclesConfig())
	if err != nil {
		return CyclesReport{}, err
	}
	if in.Workload > 0 {
		d.SetExternalWorkload(in.Workload)
	}
	report := CyclesReport{Cycles: []cycles.Cycle{}}
	for _, s := range samples {
		if c, ok := d.Push(s); ok {
			report.Cycles = append(report.Cycles, c)
		}
	}
	report.Summary = cycles.Summarize(report.Cycles)
	report.Baseline = d.Baseline()
	report.Fatigue = d.Fatigue()
	return report, nil
}

// JumpInput is a jump recording, either reduced frames or raw pose output.
// Joint, Side and MinScore select the tracked joint from poses.
type JumpInput struct {
	Frames   []jump.Frame     `json:"frames,omitempty"`
	Poses    []jump.PoseFrame `json:"poses,omitempty"`
	Joint    string           `json:"joint,omitempty"`
	Side     string           `json:"side,omitempty"`
	MinScore float64          `json:"min_score,omitempty"`
}

// DefaultMinScore is the keypoint confidence below which pose keypoints are
// carried forward from the previous frame.
const DefaultMinScore = 0.3

// JumpReport lists the jumps found in a recording.
type JumpReport struct {
	Frames int            `json:"frames"`
	Jumps  []jump.Metrics `json:"jumps"`
}

// frames returns the input reduced to frames.
func (in JumpInput) frames() ([]jump.Frame, error) {
	if len(in.Poses) == 0 {
		return in.Frames, nil
	}
	joint, side, minScore := jump.JointKnee, jump.SideLeft, in.MinScore
	if in.Joint != "" {
		joint = jump.Joint(in.Joint)
	}
	if in.Side != "" {
		side = jump.Side(in.Side)
	}
	if minScore == 0 {
		minScore = DefaultMinScore
	}
	frames, err := jump.FramesFromPose(in.Poses, joint, side, minScore)
	if err != nil {
		return nil, fmt.Errorf("failed to reduce poses: %w", err)
	}
	return frames, nil
}

// AnalyseJump finds every jump in a recording. A recording with neither
// frames nor poses yields an empty report.
func AnalyseJump(in JumpInput, cfg *config.AnalysisConfig) (JumpReport, error) {
	frames, err := in.frames()
	if err != nil {
		return JumpReport{}, err
	}
	jumps, err := jump.DetectJumps(frames, cfg.JumpConfig())
	if err != nil {
		return JumpReport{}, err
	}
	if jumps == nil {
		jumps = []jump.Metrics{}
	}
	return JumpReport{Frames: len(frames), Jumps: jumps}, nil
}

// EstimateRate derives the sample rate from the span of the timestamps,
// returning fallback when fewer than two samples or no span exist.
func EstimateRate(samples []cycles.Sample, fallback float64) float64 {
	n := len(samples)
	if n < 2 {
		return fallback
	}
	span := samples[n-1].Timestamp - samples[0].Timestamp
	if span <= 0 {
		return fallback
	}
	return float64(n-1) * 1000 / float64(span)
}
