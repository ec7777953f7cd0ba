package jump

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/biomech.report/internal/dsp"
)

// syntheticJump is a countermovement jump at 50 fps: standing, a dip to 100
// degrees at frame 40, takeoff at 50, apex at 60, landing at 70, the deepest
// landing flexion at 80 and back to standing at 100.
func syntheticJump() []Frame {
	frames := make([]Frame, 130)
	for i := range frames {
		var angle, y float64
		switch {
		case i < 20:
			angle, y = 170, 400
		case i <= 40:
			angle, y = 170-3.5*float64(i-20), 400+1.5*float64(i-20)
		case i <= 50:
			angle, y = 100+7.5*float64(i-40), 430-3*float64(i-40)
		case i <= 70:
			angle, y = 175, 400-float64((i-50)*(70-i))
		case i <= 80:
			angle, y = 175-6*float64(i-70), 400+3*float64(i-70)
		case i <= 100:
			angle, y = 115+2.75*float64(i-80), 430-1.5*float64(i-80)
		default:
			angle, y = 170, 400
		}
		frames[i] = Frame{Timestamp: int64(i) * 20, Angle: angle, Y: y}
	}
	return frames
}

func TestAnalyzeSyntheticJump(t *testing.T) {
	frames := syntheticJump()
	m, ok := Analyze(frames, 60, DefaultConfig())
	require.True(t, ok)

	assert.Equal(t, 60, m.PeakIndex)
	assert.Equal(t, 50, m.TakeoffIndex)
	assert.Equal(t, 70, m.LandingIndex)
	assert.Equal(t, 40, m.CountermovementIndex)
	assert.Equal(t, 20, m.ImpulseStartIndex)
	assert.Equal(t, 100, m.AmortizationEndIndex)

	assert.InDelta(t, 0.4, m.FlightTime, 1e-12)
	assert.InDelta(t, 9.81*0.16/8, m.Height, 1e-12)
	assert.InDelta(t, m.Height/m.FlightTime, m.ReactiveStrengthIndex, 1e-12)
	assert.InDelta(t, 0.6, m.ImpulseDuration, 1e-12)
	assert.InDelta(t, 0.6, m.AmortizationDuration, 1e-12)
	assert.Equal(t, 175.0, m.TakeoffAngle)
	assert.Equal(t, 100.0, m.CountermovementAngle)
	assert.Equal(t, 170.0, m.ImpulseStartAngle)
}

func TestAnalyzeJumpUsesSmoothedPeak(t *testing.T) {
	m, ok, err := AnalyzeJump(syntheticJump(), DefaultConfig())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 60, m.PeakIndex)
	assert.Equal(t, 50, m.TakeoffIndex)
	assert.Equal(t, 70, m.LandingIndex)
}

func TestAnalyzeRejectsFlatTrack(t *testing.T) {
	frames := make([]Frame, 50)
	for i := range frames {
		frames[i] = Frame{Timestamp: int64(i) * 20, Angle: 170, Y: 400}
	}
	_, ok := Analyze(frames, 25, DefaultConfig())
	assert.False(t, ok)

	_, ok = Analyze(frames, 0, DefaultConfig())
	assert.False(t, ok)

	_, ok, err := AnalyzeJump(nil, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetectJumps(t *testing.T) {
	frames := syntheticJump()
	got, err := DetectJumps(frames, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 60, got[0].PeakIndex)

	// Two jumps back to back are reported separately.
	second := syntheticJump()
	for i := range second {
		second[i].Timestamp += int64(len(frames)) * 20
	}
	both, err := DetectJumps(append(append([]Frame{}, frames...), second...), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, both, 2)
	assert.Equal(t, 190, both[1].PeakIndex)
	assert.InDelta(t, got[0].FlightTime, both[1].FlightTime, 1e-12)
}

func TestDetectJumpsIsDeterministic(t *testing.T) {
	frames := syntheticJump()
	first, err := DetectJumps(frames, DefaultConfig())
	require.NoError(t, err)
	second, err := DetectJumps(frames, DefaultConfig())
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated detection differs (-first +second):\n%s", diff)
	}
}

func TestDetectJumpsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmoothingWindow = 4
	_, err := DetectJumps(syntheticJump(), cfg)
	assert.True(t, errors.Is(err, dsp.ErrInvalidConfig))

	cfg = DefaultConfig()
	cfg.Gravity = 0
	_, _, err = AnalyzeJump(syntheticJump(), cfg)
	assert.True(t, errors.Is(err, dsp.ErrInvalidConfig))
}

func TestIsJumpLikeDetailed(t *testing.T) {
	frames := syntheticJump()
	check := IsJumpLikeDetailed(frames, 60, DefaultConfig())
	assert.True(t, check.JumpLike, "%+v", check)
	assert.InDelta(t, 130.0, check.Drop, 1e-9)
	assert.InDelta(t, 130.0, check.Rise, 1e-9)
	assert.InDelta(t, 75.0, check.Swing, 1e-9)

	// A shallow squat: small dip, no flight.
	squat := make([]Frame, 100)
	for i := range squat {
		d := float64(i - 50)
		if d < 0 {
			d = -d
		}
		squat[i] = Frame{Timestamp: int64(i) * 20, Angle: 170 - (50 - d), Y: 400 - (10 - d/5)}
	}
	check = IsJumpLikeDetailed(squat, 50, DefaultConfig())
	assert.False(t, check.JumpLike)
	assert.False(t, check.DropOK)
	assert.False(t, check.RiseOK)

	assert.False(t, IsJumpLike(frames, 0, DefaultConfig()))
}

func TestFindAngleEventSentinel(t *testing.T) {
	cfg := DefaultConfig()
	flat := []float64{170, 170, 170, 170, 170}
	assert.Equal(t, 2, FindAngleEvent(flat, 2, Backward, Flexion, cfg))
	assert.Equal(t, 2, FindAngleEvent(flat, 2, Forward, Flexion, cfg))

	// Enough accumulated change but no single large step.
	creep := []float64{170, 166, 162, 158, 154, 150}
	assert.Equal(t, 0, FindAngleEvent(creep, 0, Forward, Flexion, cfg))

	// One large step alone is not a run.
	spike := []float64{170, 150, 170, 150, 170}
	assert.Equal(t, 0, FindAngleEvent(spike, 0, Forward, Flexion, cfg))

	assert.Equal(t, -1, FindAngleEvent(flat, -1, Forward, Flexion, cfg))
	assert.Equal(t, 7, FindAngleEvent(flat, 7, Forward, Flexion, cfg))
}

func TestFindAngleEventRunStart(t *testing.T) {
	cfg := DefaultConfig()
	angles := []float64{170, 170, 170, 162, 154, 146, 140}
	assert.Equal(t, 2, FindAngleEvent(angles, 0, Forward, Flexion, cfg))
	assert.Equal(t, 0, FindAngleEvent(angles, 0, Forward, Extension, cfg))

	rev := []float64{140, 146, 154, 162, 170, 170, 170}
	assert.Equal(t, 4, FindAngleEvent(rev, 6, Backward, Flexion, cfg))
}

func TestFindSurroundingPeaks(t *testing.T) {
	angles := []float64{150, 168, 160, 170, 140, 120, 100, 130, 165, 150, 172, 160}
	prev, next := FindSurroundingPeaks(angles, 6, 6, 5)
	assert.Equal(t, 3, prev)
	assert.Equal(t, 10, next)

	// A wider tolerance accepts the nearer, lower peak.
	_, next = FindSurroundingPeaks(angles, 6, 6, 10)
	assert.Equal(t, 8, next)

	prev, next = FindSurroundingPeaks(angles, 0, 3, 5)
	assert.Equal(t, 0, prev)
	assert.Equal(t, 1, next)

	prev, next = FindSurroundingPeaks(angles, 20, 3, 5)
	assert.Equal(t, 20, prev)
	assert.Equal(t, 20, next)
}

func TestAmortizationEndPrefersLatest(t *testing.T) {
	angles := []float64{175, 170, 150, 140, 160, 171, 168, 172, 165}
	assert.Equal(t, 7, AmortizationEnd(angles, 0, 7, 3))
	assert.Equal(t, 5, AmortizationEnd(angles, 0, 5, 3))
	assert.Equal(t, 8, AmortizationEnd(angles, 7, 30, 3))
	assert.Equal(t, 8, AmortizationEnd(angles, 8, 30, 3))
	assert.Equal(t, 2, AmortizationEnd(angles, 2, 0, 3))
}

func TestSmooth(t *testing.T) {
	got := Smooth([]float64{0, 0, 10, 0, 0}, 3)
	want := []float64{0, 10.0 / 3, 10.0 / 3, 10.0 / 3, 0}
	assert.InDeltaSlice(t, want, got, 1e-12)

	assert.Equal(t, []float64{1, 2, 3}, Smooth([]float64{1, 2, 3}, 1))
	assert.Empty(t, Smooth(nil, 5))
}

func TestFindLocalMinima(t *testing.T) {
	ys := []float64{5, 4, 3, 4, 5, 5, 2, 5, 5, 5, 1, 5}
	assert.Equal(t, []int{2, 6, 10}, FindLocalMinima(ys, 2, 0))
	// Candidates closer than the separation collapse to the lowest.
	assert.Equal(t, []int{10}, FindLocalMinima(ys, 2, 10))
	// A wider window lets the deeper minimum shadow the shallower ones.
	assert.Equal(t, []int{10}, FindLocalMinima(ys, 4, 0))
	// Plateaus are not strict minima.
	assert.Empty(t, FindLocalMinima([]float64{3, 1, 1, 3}, 1, 0))
}
