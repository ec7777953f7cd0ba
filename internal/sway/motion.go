package sway

import (
	"math"

	"github.com/banshee-data/biomech.report/internal/dsp"
)

// Vec3 is a triaxial acceleration in m/s².
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Axis selects one component of a Vec3.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Of returns the component of v selected by a.
func (a Axis) Of(v Vec3) float64 {
	switch a {
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	default:
		return v.X
	}
}

// MotionSample is one reading from a handheld motion sensor.
type MotionSample struct {
	IncludingGravity Vec3    `json:"acceleration_including_gravity"`
	ExcludingGravity Vec3    `json:"acceleration"`
	IntervalMs       float64 `json:"interval"`
}

// TrackerConfig maps device axes onto the body frame. The zero value maps X
// to medio-lateral and Y to antero-posterior; DefaultTrackerConfig uses Z for
// AP, which suits a device held flat against the sternum.
type TrackerConfig struct {
	Config
	MLAxis Axis
	APAxis Axis
}

// DefaultTrackerConfig returns a tracker configuration for a chest-held
// device at the given height.
func DefaultTrackerConfig(sensorHeightCm, cutoffHz float64) TrackerConfig {
	return TrackerConfig{
		Config: Config{
			SensorHeightCm: sensorHeightCm,
			Gravity:        DefaultGravity,
			CutoffHz:       cutoffHz,
		},
		MLAxis: AxisX,
		APAxis: AxisZ,
	}
}

// Tracker buffers a live motion stream for one recording. Each sample is
// filtered incrementally with its own interval-derived rate; snapshots are
// recomputed wholesale from the buffered history. A Tracker is not safe for
// concurrent use.
type Tracker struct {
	cfg TrackerConfig

	mlStages []dsp.BiquadState
	apStages []dsp.BiquadState

	rawML, rawAP   []float64
	filtML, filtAP []float64
	rateSum        float64
	gravity        Vec3
	skipped        int
}

// NewTracker validates cfg and returns an empty tracker.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	cfg.Config = cfg.Config.withDefaults()
	base := cfg.Config
	base.CutoffHz = 0
	if err := base.Validate(RealTime); err != nil {
		return nil, err
	}
	if cfg.CutoffHz > 0 {
		if err := dsp.ValidateOrder(cfg.FilterOrder); err != nil {
			return nil, err
		}
	}
	return &Tracker{
		cfg:      cfg,
		mlStages: make([]dsp.BiquadState, cfg.FilterOrder/2),
		apStages: make([]dsp.BiquadState, cfg.FilterOrder/2),
	}, nil
}

// Push appends one sample and returns its COP displacement. Samples with a
// non-positive interval cannot be placed in time and are skipped (ok=false).
// When the configured cutoff is not below this sample's Nyquist rate the
// sample passes through unfiltered.
func (t *Tracker) Push(s MotionSample) (p Point, ok bool) {
	if s.IntervalMs <= 0 || math.IsNaN(s.IntervalMs) {
		t.skipped++
		diagf("skipping motion sample with interval %gms (%d skipped)", s.IntervalMs, t.skipped)
		return Point{}, false
	}
	rate := 1000 / s.IntervalMs
	t.rateSum += rate
	t.gravity = s.IncludingGravity.Sub(s.ExcludingGravity)

	ml := t.cfg.MLAxis.Of(s.ExcludingGravity)
	ap := t.cfg.APAxis.Of(s.ExcludingGravity)
	t.rawML = append(t.rawML, ml)
	t.rawAP = append(t.rawAP, ap)

	fml, fap := ml, ap
	if t.cfg.CutoffHz > 0 {
		if y, err := dsp.FilterSample(ml, t.mlStages, t.cfg.CutoffHz, rate); err == nil {
			fml = y
		}
		if y, err := dsp.FilterSample(ap, t.apStages, t.cfg.CutoffHz, rate); err == nil {
			fap = y
		}
	}
	t.filtML = append(t.filtML, fml)
	t.filtAP = append(t.filtAP, fap)

	scale := t.cfg.displacementScale()
	return Point{ML: fml * scale, AP: fap * scale}, true
}

// Len returns the number of buffered samples.
func (t *Tracker) Len() int {
	return len(t.filtML)
}

// SampleRate returns the mean sample rate derived from the intervals seen so
// far, or 0 before the first sample.
func (t *Tracker) SampleRate() float64 {
	if len(t.filtML) == 0 {
		return 0
	}
	return t.rateSum / float64(len(t.filtML))
}

// Gravity returns the most recent gravity vector estimate (including minus
// excluding gravity).
func (t *Tracker) Gravity() Vec3 {
	return t.gravity
}

// VerticalAxis returns the device axis most aligned with gravity.
func (t *Tracker) VerticalAxis() Axis {
	g := t.gravity
	ax, ay, az := math.Abs(g.X), math.Abs(g.Y), math.Abs(g.Z)
	switch {
	case ay >= ax && ay >= az:
		return AxisY
	case az >= ax && az >= ay:
		return AxisZ
	default:
		return AxisX
	}
}

// Snapshot computes Stats over the buffered history. The incrementally
// filtered series feed the displacement statistics; the raw series feed the
// jerk filter in post-processing mode.
func (t *Tracker) Snapshot(mode Mode) (Stats, error) {
	cfg := t.cfg.Config
	cfg.SampleRateHz = t.SampleRate()
	if len(t.filtML) == 0 {
		return Stats{Mode: mode}, nil
	}
	if cfg.CutoffHz > 0 && cfg.CutoffHz >= cfg.SampleRateHz/2 {
		// The live path passed samples through; do the same for jerk.
		cfg.CutoffHz = 0
	}
	if err := cfg.Validate(mode); err != nil {
		return Stats{}, err
	}
	return compute(t.filtML, t.filtAP, t.rawML, t.rawAP, cfg, mode)
}

// Reset discards the buffered history and filter state.
func (t *Tracker) Reset() {
	for i := range t.mlStages {
		t.mlStages[i].Reset()
		t.apStages[i].Reset()
	}
	t.rawML, t.rawAP = t.rawML[:0], t.rawAP[:0]
	t.filtML, t.filtAP = t.filtML[:0], t.filtAP[:0]
	t.rateSum = 0
	t.gravity = Vec3{}
	t.skipped = 0
}
