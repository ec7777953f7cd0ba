package cycles

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/biomech.report/internal/dsp"
	"github.com/banshee-data/biomech.report/internal/testutil"
)

func toSamples(values []float64, stepMs int64) []Sample {
	ts := testutil.Timestamps(len(values), 0, stepMs)
	out := make([]Sample, len(values))
	for i, v := range values {
		out[i] = Sample{Timestamp: ts[i], Value: v}
	}
	return out
}

type segment struct {
	value float64
	count int
}

// segments builds a 10 ms stream from held levels.
func segments(segs ...segment) []Sample {
	var values []float64
	for _, s := range segs {
		for i := 0; i < s.count; i++ {
			values = append(values, s.value)
		}
	}
	return toSamples(values, 10)
}

func repeat(n int, segs ...segment) []segment {
	var out []segment
	for i := 0; i < n; i++ {
		out = append(out, segs...)
	}
	return out
}

func TestDetectCyclesSquareWave(t *testing.T) {
	// Ten alternating levels after a lead-in give nine transitions.
	values := testutil.SquareWave(210, 10, 20, 5, 8, 2)
	got, err := DetectCycles(toSamples(values, 10), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, got, 4)

	for i, c := range got {
		assert.Equal(t, i+1, c.Index)
		assert.InDelta(t, 6.0, c.Amplitude, 1e-12)
		assert.InDelta(t, 400.0, c.DurationMs, 1e-9)
		assert.Equal(t, 8.0, c.PeakY)
		assert.Equal(t, 2.0, c.MinY)
		assert.Equal(t, c.EndTime-c.StartTime, int64(c.DurationMs))
	}
	assert.Equal(t, int64(100), got[0].StartTime)
	assert.Equal(t, int64(500), got[0].EndTime)
	assert.Equal(t, got[0].EndTime, got[1].StartTime)
}

func TestDetectCyclesSine(t *testing.T) {
	values := testutil.Sine(1000, 1, 3, 5, 100)
	got, err := DetectCycles(toSamples(values, 10), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, got, 9)

	assert.InDelta(t, 1000.0, got[0].DurationMs, 50)
	for _, c := range got {
		assert.InDelta(t, 6.0, c.Amplitude, 0.01)
		assert.InDelta(t, 6.0, c.Velocity, 0.5)
	}
	for _, c := range got[1:] {
		assert.InDelta(t, 1000.0, c.DurationMs, 10)
		// Peak and trough are half a period apart.
		assert.InDelta(t, 1.0, c.SpeedRatio, 0.05)
	}
}

// Five seconds of a 1 Hz swing between 2 and 8 hold four full oscillations:
// the first High entry is at 60 ms, later ones settle at 1030 ms + k*1000 ms.
func TestDetectCyclesFiveSecondSine(t *testing.T) {
	values := testutil.Sine(500, 1, 3, 5, 100)
	got, err := DetectCycles(toSamples(values, 10), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, int64(60), got[0].StartTime)
	assert.Equal(t, int64(1030), got[0].EndTime)
	for i, c := range got {
		assert.Equal(t, i+1, c.Index)
		assert.InDelta(t, 6.0, c.Amplitude, 0.5)
		assert.InDelta(t, 1000.0, c.DurationMs, 40)
	}
	for _, c := range got[1:] {
		assert.Equal(t, 1000.0, c.DurationMs)
	}
}

func TestDetectCyclesConstantSignal(t *testing.T) {
	got, err := DetectCycles(toSamples(testutil.Constant(500, 3), 10), DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDetectCyclesInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"negative hysteresis", func(c *Config) { c.Hysteresis = -1 }},
		{"zero window", func(c *Config) { c.MovingAverageWindowMs = 0 }},
		{"zero cycles to average", func(c *Config) { c.CyclesToAverage = 0 }},
		{"negative min amplitude", func(c *Config) { c.MinCycleAmplitude = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			_, err := DetectCycles(nil, cfg)
			assert.True(t, errors.Is(err, dsp.ErrInvalidConfig), "err = %v", err)
		})
	}
}

func TestDetectorStreamingMatchesBatch(t *testing.T) {
	samples := toSamples(testutil.Sine(1000, 1, 3, 5, 100), 10)
	batch, err := DetectCycles(samples, DefaultConfig())
	require.NoError(t, err)

	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	var streamed []Cycle
	for _, s := range samples {
		if c, ok := d.Push(s); ok {
			streamed = append(streamed, c)
		}
	}
	assert.Equal(t, batch, streamed)
	assert.Equal(t, len(batch), d.Count())
}

func TestDetectorMinimumFilters(t *testing.T) {
	stream := segments(append(append([]segment{{5, 10}},
		repeat(3, segment{8, 20}, segment{2, 20})...),
		repeat(3, segment{5.8, 20}, segment{4.2, 20})...)...)

	all, err := DetectCycles(stream, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, all, 5)

	cfg := DefaultConfig()
	cfg.MinCycleAmplitude = 3
	big, err := DetectCycles(stream, cfg)
	require.NoError(t, err)
	require.Len(t, big, 3)
	for _, c := range big {
		assert.InDelta(t, 6.0, c.Amplitude, 1e-12)
	}
	// Indices only count cycles that were kept.
	assert.Equal(t, 3, big[2].Index)

	cfg = DefaultConfig()
	cfg.MinCycleDurationMs = 500
	none, err := DetectCycles(stream, cfg)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDetectorHistoryIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CyclesForAnalysis = 4
	cfg.DisplayCycles = 2
	d, err := NewDetector(cfg)
	require.NoError(t, err)

	for _, s := range toSamples(testutil.SquareWave(610, 10, 20, 5, 8, 2), 10) {
		d.Push(s)
	}
	assert.Equal(t, 14, d.Count())
	hist := d.History()
	require.Len(t, hist, 4)
	assert.Equal(t, 11, hist[0].Index)
	assert.Equal(t, 14, hist[3].Index)

	recent := d.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, 13, recent[0].Index)
}

func TestDetectorBaseline(t *testing.T) {
	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	stream := toSamples(testutil.SquareWave(210, 10, 20, 5, 8, 2), 10)
	for _, s := range stream[:170] {
		d.Push(s)
	}
	// Three cycles: the baseline needs cycles two to four.
	assert.Equal(t, 3, d.Count())
	assert.Nil(t, d.Baseline().InitialVelocity)

	for _, s := range stream[170:] {
		d.Push(s)
	}
	b := d.Baseline()
	require.NotNil(t, b.InitialVelocity)
	assert.InDelta(t, 15.0, *b.InitialVelocity, 1e-9)
	assert.Equal(t, 8.0, b.GlobalPeak)
	for _, c := range d.History() {
		assert.InDelta(t, 1.0, c.RelativeSpeedRatio, 1e-9)
	}
}

func TestDetectorObserve(t *testing.T) {
	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	stream := toSamples(testutil.SquareWave(210, 10, 20, 5, 8, 2), 10)

	first := d.Observe(stream[:100])
	second := d.Observe(stream)
	assert.Len(t, append(first, second...), 4)
	assert.Equal(t, 4, d.Count())

	// Re-observing the same history adds nothing.
	assert.Empty(t, d.Observe(stream))
	assert.Equal(t, 4, d.Count())

	assert.Nil(t, d.Observe(nil))
	assert.Equal(t, 0, d.Count())
	assert.Empty(t, d.History())
	assert.Nil(t, d.Baseline().InitialVelocity)

	// After the reset the same stream is detected from scratch.
	assert.Len(t, d.Observe(stream), 4)
}

func TestDetectorObserveRestartedHistory(t *testing.T) {
	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	stream := toSamples(testutil.SquareWave(210, 10, 20, 5, 8, 2), 10)
	require.Len(t, d.Observe(stream), 4)

	// The host cleared its buffer and a new recording started from zero.
	restarted := stream[:200]
	want, err := DetectCycles(restarted, DefaultConfig())
	require.NoError(t, err)
	require.NotEmpty(t, want)

	got := d.Observe(restarted)
	assert.Equal(t, want, got)
	assert.Equal(t, len(want), d.Count())
	assert.Equal(t, 1, got[0].Index)
}

func TestDetectorReset(t *testing.T) {
	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	stream := toSamples(testutil.SquareWave(210, 10, 20, 5, 8, 2), 10)
	for _, s := range stream {
		d.Push(s)
	}
	d.Reset()
	assert.Equal(t, 0, d.Count())
	assert.Equal(t, 0.0, d.Midpoint())
	assert.Equal(t, Baseline{}, d.Baseline())

	var again []Cycle
	for _, s := range stream {
		if c, ok := d.Push(s); ok {
			again = append(again, c)
		}
	}
	assert.Len(t, again, 4)
	assert.Equal(t, 1, again[0].Index)
}

func TestDetectorDropsOutOfOrderSamples(t *testing.T) {
	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	d.Push(Sample{Timestamp: 100, Value: 5})
	d.Push(Sample{Timestamp: 50, Value: 100})
	assert.Equal(t, 5.0, d.Midpoint())
}

func TestDetectorExternalWorkload(t *testing.T) {
	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	d.SetExternalWorkload(2)
	var got []Cycle
	for _, s := range toSamples(testutil.SquareWave(210, 10, 20, 5, 8, 2), 10) {
		if c, ok := d.Push(s); ok {
			got = append(got, c)
		}
	}
	require.NotEmpty(t, got)
	assert.Equal(t, 2.0, got[0].WorkLoad)
	assert.InDelta(t, 3.0, got[0].NormalizedAmplitude(), 1e-12)
	assert.InDelta(t, 4.0, got[0].NormalizedPeak(), 1e-12)
	assert.InDelta(t, 4.0, d.Baseline().GlobalPeak, 1e-12)
}

func TestBandString(t *testing.T) {
	assert.Equal(t, "above", Above.String())
	assert.Equal(t, "below", Below.String())
	assert.Equal(t, "within", Within.String())
}
