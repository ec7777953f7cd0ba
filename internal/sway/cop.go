// Package sway derives centre-of-pressure (COP) sway statistics from
// horizontal acceleration using an inverted-pendulum model.
//
// Real-time mode produces the per-axis scalars only. Post-processing mode
// adds the confidence ellipse, convex-hull sway area and jerk, which need a
// sort or an extra filter pass and are meant to run once per test.
package sway

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/biomech.report/internal/dsp"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// chiSquare95 is the chi-squared critical value for 2 degrees of freedom at
// 95% confidence.
const chiSquare95 = 5.991

// DefaultGravity is standard gravity in m/s².
const DefaultGravity = 9.81

// Mode selects how much of Stats is computed.
type Mode int

const (
	RealTime Mode = iota
	PostProcessing
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case PostProcessing:
		return "postprocessing"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps "realtime" or "postprocessing" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "realtime", "real-time":
		return RealTime, nil
	case "postprocessing", "post-processing":
		return PostProcessing, nil
	}
	return 0, fmt.Errorf("unknown sway mode %q", s)
}

// Config describes the sensor placement and the optional pre-filter.
type Config struct {
	// SensorHeightCm is the sensor height above the ankle pivot.
	SensorHeightCm float64
	// Gravity in m/s²; DefaultGravity when zero.
	Gravity float64
	// SampleRateHz is required when filtering or in post-processing mode.
	SampleRateHz float64
	// CutoffHz enables low-pass filtering of the input when > 0.
	CutoffHz float64
	// FilterOrder of the input filter; 2 when zero.
	FilterOrder int
	// JerkFilterOrder of the denser filter used for jerk; 4 when zero.
	JerkFilterOrder int
}

func (c Config) withDefaults() Config {
	if c.Gravity == 0 {
		c.Gravity = DefaultGravity
	}
	if c.FilterOrder == 0 {
		c.FilterOrder = 2
	}
	if c.JerkFilterOrder == 0 {
		c.JerkFilterOrder = 4
	}
	return c
}

// Validate rejects configurations that cannot produce a result.
func (c Config) Validate(mode Mode) error {
	c = c.withDefaults()
	if c.SensorHeightCm <= 0 || math.IsNaN(c.SensorHeightCm) {
		return fmt.Errorf("%w: sensor height must be positive, got %g cm", dsp.ErrInvalidConfig, c.SensorHeightCm)
	}
	if c.Gravity <= 0 || math.IsNaN(c.Gravity) {
		return fmt.Errorf("%w: gravity must be positive, got %g", dsp.ErrInvalidConfig, c.Gravity)
	}
	if c.CutoffHz > 0 || mode == PostProcessing {
		if err := dsp.ValidateRate(c.SampleRateHz); err != nil {
			return err
		}
	}
	if c.CutoffHz > 0 {
		if err := dsp.ValidateCutoff(c.CutoffHz, c.SampleRateHz); err != nil {
			return err
		}
		if err := dsp.ValidateOrder(c.FilterOrder); err != nil {
			return err
		}
		if err := dsp.ValidateOrder(c.JerkFilterOrder); err != nil {
			return err
		}
	}
	return nil
}

// displacementScale converts m/s² to cm of COP displacement.
func (c Config) displacementScale() float64 {
	return (c.SensorHeightCm / 100) / c.Gravity * 100
}

// Point is a COP displacement in centimetres.
type Point struct {
	ML float64 `json:"ml"`
	AP float64 `json:"ap"`
}

// Ellipse is the 95% confidence ellipse of the COP points.
type Ellipse struct {
	SemiMajor      float64 `json:"semi_major"`
	SemiMinor      float64 `json:"semi_minor"`
	OrientationRad float64 `json:"orientation_rad"`
	Area           float64 `json:"area"`
}

// Stats is a snapshot of sway statistics. Distances are in cm, variances in
// cm², jerk in cm/s³.
type Stats struct {
	Mode           Mode    `json:"-"`
	Points         []Point `json:"cop_points"`
	RMSML          float64 `json:"rms_ml"`
	RMSAP          float64 `json:"rms_ap"`
	VarianceML     float64 `json:"variance_ml"`
	VarianceAP     float64 `json:"variance_ap"`
	Covariance     float64 `json:"covariance"`
	GlobalVariance float64 `json:"global_variance"`

	Ellipse  *Ellipse `json:"ellipse,omitempty"`
	Hull     []Point  `json:"hull,omitempty"`
	SwayArea float64  `json:"sway_area"`
	JerkML   float64  `json:"jerk_ml"`
	JerkAP   float64  `json:"jerk_ap"`
}

// Compute derives sway statistics from medio-lateral and antero-posterior
// acceleration (m/s²). Empty input yields zero Stats and no error.
func Compute(ml, ap []float64, cfg Config, mode Mode) (Stats, error) {
	if len(ml) != len(ap) {
		return Stats{}, fmt.Errorf("%w: axis lengths differ (ml=%d ap=%d)", dsp.ErrInvalidConfig, len(ml), len(ap))
	}
	if err := cfg.Validate(mode); err != nil {
		return Stats{}, err
	}
	cfg = cfg.withDefaults()
	if len(ml) == 0 {
		return Stats{Mode: mode}, nil
	}

	fml, fap := ml, ap
	if cfg.CutoffHz > 0 {
		var err error
		if fml, err = dsp.FilterBlock(ml, cfg.CutoffHz, cfg.FilterOrder, cfg.SampleRateHz); err != nil {
			return Stats{}, err
		}
		if fap, err = dsp.FilterBlock(ap, cfg.CutoffHz, cfg.FilterOrder, cfg.SampleRateHz); err != nil {
			return Stats{}, err
		}
	}
	return compute(fml, fap, ml, ap, cfg, mode)
}

// compute expects filtered and raw series of equal length and a defaulted,
// validated cfg.
func compute(fml, fap, rawML, rawAP []float64, cfg Config, mode Mode) (Stats, error) {
	n := len(fml)
	scale := cfg.displacementScale()

	dml := make([]float64, n)
	dap := make([]float64, n)
	floats.ScaleTo(dml, scale, fml)
	floats.ScaleTo(dap, scale, fap)

	s := Stats{
		Mode:   mode,
		Points: make([]Point, n),
		RMSML:  scale * rms(fml),
		RMSAP:  scale * rms(fap),
	}
	for i := range dml {
		s.Points[i] = Point{ML: dml[i], AP: dap[i]}
	}

	var meanML, meanAP float64
	meanML, s.VarianceML = stat.PopMeanVariance(dml, nil)
	meanAP, s.VarianceAP = stat.PopMeanVariance(dap, nil)
	for i := range dml {
		s.Covariance += (dml[i] - meanML) * (dap[i] - meanAP)
	}
	s.Covariance /= float64(n)
	s.GlobalVariance = s.VarianceML + s.VarianceAP

	if mode != PostProcessing {
		return s, nil
	}

	s.Ellipse = confidenceEllipse(s.VarianceML, s.VarianceAP, s.Covariance)
	s.Hull = ConvexHull(s.Points)
	s.SwayArea = PolygonArea(s.Hull)

	jml, jap := rawML, rawAP
	if cfg.CutoffHz > 0 {
		var err error
		if jml, err = dsp.FilterBlock(rawML, cfg.CutoffHz, cfg.JerkFilterOrder, cfg.SampleRateHz); err != nil {
			return Stats{}, err
		}
		if jap, err = dsp.FilterBlock(rawAP, cfg.CutoffHz, cfg.JerkFilterOrder, cfg.SampleRateHz); err != nil {
			return Stats{}, err
		}
	}
	s.JerkML = jerk(jml, cfg.SampleRateHz)
	s.JerkAP = jerk(jap, cfg.SampleRateHz)
	return s, nil
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// jerk is the RMS of the first difference of acceleration over the sample
// interval, scaled from m to cm.
func jerk(acc []float64, sampleRateHz float64) float64 {
	if len(acc) < 2 {
		return 0
	}
	d := make([]float64, len(acc)-1)
	for i := range d {
		d[i] = (acc[i+1] - acc[i]) * sampleRateHz
	}
	return rms(d) * 100
}

func confidenceEllipse(varML, varAP, cov float64) *Ellipse {
	sym := mat.NewSymDense(2, []float64{varML, cov, cov, varAP})
	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		return &Ellipse{}
	}
	// Values are ascending.
	vals := eig.Values(nil)
	e := &Ellipse{
		SemiMajor:      math.Sqrt(math.Max(vals[1], 0) * chiSquare95),
		SemiMinor:      math.Sqrt(math.Max(vals[0], 0) * chiSquare95),
		OrientationRad: 0.5 * math.Atan2(2*cov, varML-varAP),
	}
	e.Area = math.Pi * e.SemiMajor * e.SemiMinor
	return e
}
