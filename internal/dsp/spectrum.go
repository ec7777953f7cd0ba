package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// DefaultDiscardSec is trimmed from both ends of an unwindowed recording to
// keep start-up and shut-down transients out of the spectrum.
const DefaultDiscardSec = 5.0

// Spectrum is a one-sided amplitude spectrum. Frequencies ascend from 0 Hz to
// Nyquist in steps of Resolution.
type Spectrum struct {
	Frequencies       []float64 `json:"frequencies"`
	Amplitudes        []float64 `json:"amplitudes"`
	DominantFrequency float64   `json:"dominant_frequency"`
	Resolution        float64   `json:"resolution"`
}

// Empty reports whether the spectrum holds no bins.
func (s Spectrum) Empty() bool {
	return len(s.Frequencies) == 0
}

// SpectrumOptions selects which part of the signal is analysed.
//
// With WindowSec > 0 only the trailing WindowSec seconds are used. Otherwise
// DiscardSec seconds are dropped from each end (DefaultDiscardSec when zero,
// nothing when negative).
type SpectrumOptions struct {
	WindowSec  float64
	DiscardSec float64
}

// FrequencySpectrum computes the Hann-windowed amplitude spectrum of signal.
// The selected segment is zero-padded to the next power of two before the
// FFT. Fewer than two usable samples produce an empty Spectrum and no error.
func FrequencySpectrum(signal []float64, sampleRateHz float64, opts SpectrumOptions) (Spectrum, error) {
	if err := ValidateRate(sampleRateHz); err != nil {
		return Spectrum{}, err
	}

	segment := selectSegment(signal, sampleRateHz, opts)
	if len(segment) < 2 {
		return Spectrum{}, nil
	}

	n := nextPowerOfTwo(len(segment))
	padded := make([]float64, n)
	copy(padded, segment)
	window.Hann(padded[:len(segment)])

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, padded)

	spec := Spectrum{
		Frequencies: make([]float64, len(coeffs)),
		Amplitudes:  make([]float64, len(coeffs)),
		Resolution:  sampleRateHz / float64(n),
	}
	for i, c := range coeffs {
		spec.Frequencies[i] = fft.Freq(i) * sampleRateHz
		spec.Amplitudes[i] = cmplx.Abs(c)
	}
	return spec, nil
}

// Analyze computes the spectrum and fills in its dominant frequency.
func Analyze(signal []float64, sampleRateHz float64, opts SpectrumOptions, peaks PeakOptions) (Spectrum, error) {
	spec, err := FrequencySpectrum(signal, sampleRateHz, opts)
	if err != nil {
		return Spectrum{}, err
	}
	spec.DominantFrequency = DominantFrequency(spec.Frequencies, spec.Amplitudes, peaks)
	return spec, nil
}

func selectSegment(signal []float64, sampleRateHz float64, opts SpectrumOptions) []float64 {
	if opts.WindowSec > 0 {
		n := int(math.Round(opts.WindowSec * sampleRateHz))
		if n <= 0 || n >= len(signal) {
			return signal
		}
		return signal[len(signal)-n:]
	}

	discard := opts.DiscardSec
	if discard == 0 {
		discard = DefaultDiscardSec
	}
	if discard < 0 {
		return signal
	}
	margin := int(math.Round(discard * sampleRateHz))
	if len(signal)-2*margin < 2 {
		// Short recordings are analysed whole rather than not at all.
		return signal
	}
	return signal[margin : len(signal)-margin]
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
