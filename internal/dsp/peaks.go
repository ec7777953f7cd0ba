package dsp

import "math"

// PeakOptions tunes DominantFrequency. Zero fields take the defaults from
// DefaultPeakOptions.
type PeakOptions struct {
	// LowBandHz is the upper edge of the preferred band.
	LowBandHz float64
	// HighBandHz is the upper edge of the extended band.
	HighBandHz float64
	// ProminenceWindow bounds the search for the minima either side of a
	// peak, in bins.
	ProminenceWindow int
	// ProminenceThreshold is how far an extended-band peak's prominence must
	// exceed the chosen low-band amplitude to win.
	ProminenceThreshold float64
	// AmplitudePreference lets the tallest low-band peak override the most
	// prominent one when it is this much higher.
	AmplitudePreference float64
}

// DefaultPeakOptions returns the physiological defaults: energy is expected
// below 2 Hz, with a 5 Hz extended band.
func DefaultPeakOptions() PeakOptions {
	return PeakOptions{
		LowBandHz:           2,
		HighBandHz:          5,
		ProminenceWindow:    10,
		ProminenceThreshold: 0.5,
		AmplitudePreference: 0.2,
	}
}

func (o PeakOptions) withDefaults() PeakOptions {
	d := DefaultPeakOptions()
	if o.LowBandHz <= 0 {
		o.LowBandHz = d.LowBandHz
	}
	if o.HighBandHz <= o.LowBandHz {
		o.HighBandHz = math.Max(d.HighBandHz, o.LowBandHz)
	}
	if o.ProminenceWindow <= 0 {
		o.ProminenceWindow = d.ProminenceWindow
	}
	if o.ProminenceThreshold <= 0 {
		o.ProminenceThreshold = d.ProminenceThreshold
	}
	if o.AmplitudePreference <= 0 {
		o.AmplitudePreference = d.AmplitudePreference
	}
	return o
}

// Peak is a local maximum of an amplitude spectrum.
type Peak struct {
	Index      int     `json:"index"`
	Frequency  float64 `json:"frequency"`
	Amplitude  float64 `json:"amplitude"`
	Prominence float64 `json:"prominence"`
}

// FindPeaks returns the local maxima whose frequency lies in [lowHz, highHz].
// A bin is a local maximum when it is not below either neighbour and is
// strictly above at least one. The first and last bins are never peaks.
func FindPeaks(frequencies, amplitudes []float64, lowHz, highHz float64, window int) []Peak {
	n := min(len(frequencies), len(amplitudes))
	var peaks []Peak
	for i := 1; i < n-1; i++ {
		f := frequencies[i]
		if f < lowHz || f > highHz {
			continue
		}
		a := amplitudes[i]
		left, right := amplitudes[i-1], amplitudes[i+1]
		if a < left || a < right || (a == left && a == right) {
			continue
		}
		peaks = append(peaks, Peak{
			Index:      i,
			Frequency:  f,
			Amplitude:  a,
			Prominence: prominence(amplitudes[:n], i, window),
		})
	}
	return peaks
}

// prominence is the peak amplitude minus the higher of the lowest points
// within window bins on its left and on its right.
func prominence(amplitudes []float64, i, window int) float64 {
	leftMin := amplitudes[i]
	for j := max(0, i-window); j < i; j++ {
		leftMin = math.Min(leftMin, amplitudes[j])
	}
	rightMin := amplitudes[i]
	for j := i + 1; j <= min(len(amplitudes)-1, i+window); j++ {
		rightMin = math.Min(rightMin, amplitudes[j])
	}
	return amplitudes[i] - math.Max(leftMin, rightMin)
}

// DominantFrequency picks the representative frequency of a spectrum using a
// two-band search biased toward the low band. It returns 0 when there are no
// peaks.
func DominantFrequency(frequencies, amplitudes []float64, opts PeakOptions) float64 {
	o := opts.withDefaults()

	low := FindPeaks(frequencies, amplitudes, 0, o.LowBandHz, o.ProminenceWindow)
	wide := FindPeaks(frequencies, amplitudes, 0, o.HighBandHz, o.ProminenceWindow)

	var high []Peak
	for _, p := range wide {
		if p.Frequency > o.LowBandHz {
			high = append(high, p)
		}
	}

	if len(low) == 0 {
		if p, ok := mostProminent(high); ok {
			return p.Frequency
		}
		return 0
	}

	chosen, _ := mostProminent(low)
	if top, _ := tallest(low); top.Amplitude-chosen.Amplitude >= o.AmplitudePreference {
		chosen = top
	}

	if p, ok := mostProminent(high); ok && p.Prominence-chosen.Amplitude > o.ProminenceThreshold {
		return p.Frequency
	}
	return chosen.Frequency
}

func mostProminent(peaks []Peak) (Peak, bool) {
	if len(peaks) == 0 {
		return Peak{}, false
	}
	best := peaks[0]
	for _, p := range peaks[1:] {
		if p.Prominence > best.Prominence {
			best = p
		}
	}
	return best, true
}

func tallest(peaks []Peak) (Peak, bool) {
	if len(peaks) == 0 {
		return Peak{}, false
	}
	best := peaks[0]
	for _, p := range peaks[1:] {
		if p.Amplitude > best.Amplitude {
			best = p
		}
	}
	return best, true
}
