// Package testutil provides shared test utilities and synthetic signals.
//
// The generators return plain slices so every analysis package can build
// fixtures without importing each other.
package testutil

import (
	"math"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertNear checks that got is within tol of want.
func AssertNear(t testing.TB, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("%s = %g, want %g ± %g", name, got, want, tol)
	}
}

// AssertAllNear checks every element of got against want with tolerance tol.
func AssertAllNear(t testing.TB, name string, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len = %d, want %d", name, len(got), len(want))
	}
	for i := range got {
		if math.IsNaN(got[i]) || math.Abs(got[i]-want[i]) > tol {
			t.Errorf("%s[%d] = %g, want %g ± %g", name, i, got[i], want[i], tol)
		}
	}
}

// Sine returns n samples of offset + amplitude*sin(2*pi*freqHz*t) sampled at
// sampleRateHz, starting at t = 0.
func Sine(n int, freqHz, amplitude, offset, sampleRateHz float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / sampleRateHz
		out[i] = offset + amplitude*math.Sin(2*math.Pi*freqHz*t)
	}
	return out
}

// Constant returns n copies of v.
func Constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// SquareWave returns a signal that holds baseline for lead samples, then
// alternates between high and low every dwell samples until n samples exist.
// The first level after the lead-in is high.
func SquareWave(n, lead, dwell int, baseline, high, low float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i < lead {
			out[i] = baseline
			continue
		}
		if ((i-lead)/dwell)%2 == 0 {
			out[i] = high
		} else {
			out[i] = low
		}
	}
	return out
}

// Timestamps returns n millisecond timestamps spaced stepMs apart from start.
func Timestamps(n int, startMs, stepMs int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = startMs + int64(i)*stepMs
	}
	return out
}
