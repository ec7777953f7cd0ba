package cycles

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func window(amps, durations []float64, peak float64) []Cycle {
	out := make([]Cycle, len(amps))
	for i := range amps {
		out[i] = Cycle{
			Index:      i + 1,
			DurationMs: durations[i],
			Amplitude:  amps[i],
			PeakY:      peak,
			Velocity:   amps[i] / (durations[i] / 1000),
		}
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	cfg := DefaultFatigueConfig()
	steady := []float64{1000, 1000, 1000}

	tests := []struct {
		name    string
		window  []Cycle
		base    Baseline
		reasons []string
	}{
		{
			name:    "steady",
			window:  window([]float64{6, 6, 6}, steady, 8),
			base:    Baseline{GlobalPeak: 8, InitialVelocity: ptr(6)},
			reasons: []string{},
		},
		{
			name:    "small amplitude",
			window:  window([]float64{1, 1, 1}, steady, 8),
			base:    Baseline{GlobalPeak: 8},
			reasons: []string{CodeAmplitude},
		},
		{
			name:    "slowing",
			window:  window([]float64{6, 6, 6}, []float64{1000, 1200, 1440}, 8),
			base:    Baseline{GlobalPeak: 8},
			reasons: []string{CodeCycleTime},
		},
		{
			name:    "peak drop",
			window:  window([]float64{6, 6, 6}, steady, 6),
			base:    Baseline{GlobalPeak: 8},
			reasons: []string{CodePeakForce},
		},
		{
			name:    "velocity drop",
			window:  window([]float64{6, 6, 6}, steady, 8),
			base:    Baseline{GlobalPeak: 8, InitialVelocity: ptr(10)},
			reasons: []string{CodeVelocity},
		},
		{
			name:    "variable",
			window:  window([]float64{4, 8, 4}, steady, 8),
			base:    Baseline{GlobalPeak: 8},
			reasons: []string{CodeVariability},
		},
		{
			name:    "no baseline velocity yet",
			window:  window([]float64{6, 6, 6}, steady, 8),
			base:    Baseline{GlobalPeak: 8, InitialVelocity: nil},
			reasons: []string{},
		},
		{
			name:    "amplitude and slowing",
			window:  window([]float64{1, 1, 1}, []float64{1000, 1200, 1440}, 8),
			base:    Baseline{GlobalPeak: 8},
			reasons: []string{CodeAmplitude, CodeCycleTime},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.window, tt.base, cfg)
			want := append([]string{}, tt.reasons...)
			sort.Strings(want)
			if diff := cmp.Diff(want, got.Reasons); diff != "" {
				t.Errorf("reasons mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, len(want) >= 2, got.IsFatigued)
			assert.NotEmpty(t, got.Interpretation)
		})
	}
}

func TestClassifyNeedsTwoCycles(t *testing.T) {
	got := Classify(window([]float64{0.1}, []float64{1000}, 1), Baseline{GlobalPeak: 8}, DefaultFatigueConfig())
	assert.False(t, got.IsFatigued)
	assert.Empty(t, got.Reasons)
	assert.Equal(t, notEnoughCycles, got.Interpretation)

	got = Classify(nil, Baseline{}, DefaultFatigueConfig())
	assert.False(t, got.IsFatigued)
}

func TestClassifyShrinkingAmplitudeOnlyFatiguesShrinkingHistory(t *testing.T) {
	slowing := []float64{1000, 1200, 1440}
	base := Baseline{GlobalPeak: 8}
	cfg := DefaultFatigueConfig()

	steady := Classify(window([]float64{6, 6, 6}, slowing, 8), base, cfg)
	shrinking := Classify(window([]float64{0.9, 0.6, 0.3}, slowing, 8), base, cfg)

	assert.False(t, steady.IsFatigued)
	assert.True(t, shrinking.IsFatigued)
	assert.Contains(t, shrinking.Reasons, CodeAmplitude)
	assert.NotContains(t, steady.Reasons, CodeAmplitude)
}

func TestClassifyCodeIsSortedJoin(t *testing.T) {
	got := Classify(window([]float64{1, 1, 1}, []float64{1000, 1200, 1440}, 4),
		Baseline{GlobalPeak: 8, InitialVelocity: ptr(10)}, DefaultFatigueConfig())
	require.Len(t, got.Reasons, 4)
	assert.True(t, sort.StringsAreSorted(got.Reasons))
	assert.Equal(t, got.Reasons[0]+","+got.Reasons[1]+","+got.Reasons[2]+","+got.Reasons[3], got.Code)
	assert.Equal(t, manyIndicators, got.Interpretation)
}

func TestSummarize(t *testing.T) {
	ws := Summarize(window([]float64{4, 8, 4}, []float64{1000, 1100, 1210}, 8))
	assert.Equal(t, 3, ws.Cycles)
	assert.InDelta(t, 16.0/3, ws.MeanAmplitude, 1e-12)
	assert.InDelta(t, 32.0/9, ws.AmplitudeVariance, 1e-12)
	assert.InDelta(t, 0.1, ws.DurationChange, 1e-12)
	assert.Equal(t, 8.0, ws.MaxPeak)

	assert.Equal(t, WindowStats{}, Summarize(nil))
}

func TestSummarizeNormalizesByWorkload(t *testing.T) {
	w := window([]float64{6, 6}, []float64{1000, 1000}, 8)
	for i := range w {
		w[i].WorkLoad = 2
	}
	ws := Summarize(w)
	assert.InDelta(t, 3.0, ws.MeanAmplitude, 1e-12)
	assert.InDelta(t, 4.0, ws.MaxPeak, 1e-12)
	assert.InDelta(t, 3.0, ws.MeanVelocity, 1e-12)
}

func TestInterpret(t *testing.T) {
	assert.Equal(t, noFatigue, Interpret(nil))
	assert.Equal(t, manyIndicators, Interpret([]string{CodeAmplitude, CodeCycleTime, CodePeakForce, CodeVelocity}))

	codes := []string{CodeAmplitude, CodeCycleTime, CodePeakForce, CodeVelocity, CodeVariability}
	// Every one, two and three code combination has its own message in
	// either order.
	for i := range codes {
		assert.Contains(t, tips, tipKey(codes[i]))
		for j := i + 1; j < len(codes); j++ {
			assert.Equal(t, Interpret([]string{codes[i], codes[j]}), Interpret([]string{codes[j], codes[i]}))
			assert.NotEqual(t, manyIndicators, Interpret([]string{codes[j], codes[i]}))
			for k := j + 1; k < len(codes); k++ {
				assert.Contains(t, tips, tipKey(codes[k], codes[i], codes[j]))
			}
		}
	}
	assert.Len(t, tips, 25)
}

// A set that starts strong and then shrinks and slows is fatigued; the same
// tempo change at full range is not.
func TestDetectorFatigueProgression(t *testing.T) {
	lead := []segment{{5, 10}}
	strong := repeat(5, segment{8, 20}, segment{2, 20})
	tempo := []int{22, 24, 27}

	build := func(high, low float64) []Sample {
		segs := append(append([]segment{}, lead...), strong...)
		for _, n := range tempo {
			segs = append(segs, segment{high, n}, segment{low, n})
		}
		segs = append(segs, segment{high, 5})
		return segments(segs...)
	}

	run := func(stream []Sample) *Detector {
		d, err := NewDetector(DefaultConfig())
		require.NoError(t, err)
		for _, s := range stream {
			d.Push(s)
		}
		return d
	}

	fresh := run(build(8, 2))
	require.Equal(t, 8, fresh.Count())
	status := fresh.Fatigue()
	assert.False(t, status.IsFatigued)
	assert.Equal(t, []string{CodeCycleTime}, status.Reasons)

	tired := run(build(5.8, 4.2))
	require.Equal(t, 8, tired.Count())
	status = tired.Fatigue()
	assert.True(t, status.IsFatigued)
	assert.Contains(t, status.Reasons, CodeAmplitude)
	assert.Contains(t, status.Reasons, CodePeakForce)
	assert.Contains(t, status.Reasons, CodeVelocity)
	assert.Contains(t, status.Reasons, CodeCycleTime)
}
