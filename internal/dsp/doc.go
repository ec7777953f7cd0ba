// Package dsp holds the scalar signal-processing primitives shared by the
// sway, cycle and live pipelines: a cascaded second-order Butterworth
// low-pass filter and a windowed amplitude spectrum with a band-biased
// dominant-frequency search.
//
// Everything here is synchronous and allocation-light. Filter state is
// owned by the caller; one BiquadState slice per axis, never shared.
package dsp
