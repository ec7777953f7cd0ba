package dsp

import "math"

// butterworthQ is the quality factor of a maximally flat second-order section.
var butterworthQ = 1 / math.Sqrt2

// BiquadState holds the delay registers of one second-order section.
type BiquadState struct {
	X1, X2 float64
	Y1, Y2 float64
}

// Reset zeroes the registers.
func (s *BiquadState) Reset() {
	*s = BiquadState{}
}

// Coefficients are the a0-normalized coefficients of a biquad section.
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// LowPassCoefficients computes the Butterworth (Q = 1/sqrt 2) low-pass
// coefficients for the given cutoff and sample rate.
func LowPassCoefficients(cutoffHz, sampleRateHz float64) (Coefficients, error) {
	if err := ValidateCutoff(cutoffHz, sampleRateHz); err != nil {
		return Coefficients{}, err
	}
	return lowPassCoefficients(cutoffHz, sampleRateHz), nil
}

func lowPassCoefficients(cutoffHz, sampleRateHz float64) Coefficients {
	w := 2 * math.Pi * cutoffHz / sampleRateHz
	cosW := math.Cos(w)
	alpha := math.Sin(w) / (2 * butterworthQ)

	b0 := (1 - cosW) / 2
	b1 := 1 - cosW
	b2 := b0
	a0 := 1 + alpha
	a1 := -2 * cosW
	a2 := 1 - alpha

	return Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}

// step runs one sample through a single section and shifts its registers.
func (c Coefficients) step(x0 float64, s *BiquadState) float64 {
	y0 := c.B0*x0 + c.B1*s.X1 + c.B2*s.X2 - c.A1*s.Y1 - c.A2*s.Y2
	s.X2 = s.X1
	s.X1 = x0
	s.Y2 = s.Y1
	s.Y1 = y0
	return y0
}

// FilterSample pushes one new sample through the cascade of sections in
// stages, mutating each stage's registers in order, and returns the output of
// the last stage. Coefficients are recomputed on every call. With no stages
// the sample is returned unchanged.
func FilterSample(x0 float64, stages []BiquadState, cutoffHz, sampleRateHz float64) (float64, error) {
	c, err := LowPassCoefficients(cutoffHz, sampleRateHz)
	if err != nil {
		return 0, err
	}
	y := x0
	for i := range stages {
		y = c.step(y, &stages[i])
	}
	return y, nil
}

// FilterBlock low-pass filters data with zero initial state. An order of 2 is
// a single pass; higher even orders repeat the pass order/2 times over the
// previous pass's output. Odd orders are rejected.
func FilterBlock(data []float64, cutoffHz float64, order int, sampleRateHz float64) ([]float64, error) {
	if err := ValidateOrder(order); err != nil {
		return nil, err
	}
	c, err := LowPassCoefficients(cutoffHz, sampleRateHz)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(data))
	copy(out, data)
	for pass := 0; pass < order/2; pass++ {
		var s BiquadState
		for i, x := range out {
			out[i] = c.step(x, &s)
		}
	}
	return out, nil
}

// LowPass is a validated incremental filter: the coefficients are computed
// once and Step never fails. It is the per-axis hot path of the live
// pipelines. A LowPass must not be shared between goroutines.
type LowPass struct {
	coeffs Coefficients
	stages []BiquadState
}

// NewLowPass validates the configuration and returns a filter with
// order/2 zeroed stages.
func NewLowPass(cutoffHz, sampleRateHz float64, order int) (*LowPass, error) {
	if err := ValidateOrder(order); err != nil {
		return nil, err
	}
	c, err := LowPassCoefficients(cutoffHz, sampleRateHz)
	if err != nil {
		return nil, err
	}
	return &LowPass{
		coeffs: c,
		stages: make([]BiquadState, order/2),
	}, nil
}

// Step filters one sample.
func (f *LowPass) Step(x0 float64) float64 {
	y := x0
	for i := range f.stages {
		y = f.coeffs.step(y, &f.stages[i])
	}
	return y
}

// Reset zeroes every stage.
func (f *LowPass) Reset() {
	for i := range f.stages {
		f.stages[i].Reset()
	}
}

// Order returns the filter order.
func (f *LowPass) Order() int {
	return 2 * len(f.stages)
}
