package dsp

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is wrapped by every configuration error returned from the
// analysis packages so callers can test for it with errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateRate checks that a sample rate is finite and positive.
func ValidateRate(sampleRateHz float64) error {
	if math.IsNaN(sampleRateHz) || math.IsInf(sampleRateHz, 0) || sampleRateHz <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %g", ErrInvalidConfig, sampleRateHz)
	}
	return nil
}

// ValidateCutoff checks a low-pass cutoff against the Nyquist limit of the
// given sample rate.
func ValidateCutoff(cutoffHz, sampleRateHz float64) error {
	if err := ValidateRate(sampleRateHz); err != nil {
		return err
	}
	if math.IsNaN(cutoffHz) || cutoffHz <= 0 {
		return fmt.Errorf("%w: cutoff must be positive, got %g", ErrInvalidConfig, cutoffHz)
	}
	if nyquist := sampleRateHz / 2; cutoffHz >= nyquist {
		return fmt.Errorf("%w: cutoff %g Hz is not below Nyquist %g Hz", ErrInvalidConfig, cutoffHz, nyquist)
	}
	return nil
}

// ValidateOrder checks that a filter order is a positive even number.
func ValidateOrder(order int) error {
	if order < 2 || order%2 != 0 {
		return fmt.Errorf("%w: filter order must be even and >= 2, got %d", ErrInvalidConfig, order)
	}
	return nil
}
