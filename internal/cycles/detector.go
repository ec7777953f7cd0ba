package cycles

import (
	"sync"
)

// Detector segments one stream into cycles. It is safe for concurrent use,
// but samples must still arrive in timestamp order.
type Detector struct {
	mu  sync.Mutex
	cfg Config

	window   []Sample
	midpoint float64

	startBand  Band
	lastBand   Band
	cycleStart int64
	runMax     Sample
	runMin     Sample
	lastTs     int64
	started    bool

	history *ring[Cycle]
	total   int

	globalPeak      float64
	hasPeak         bool
	initialVelocity *float64
	baselineRatio   *float64
}

// NewDetector returns a Detector with an empty history.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		cfg:     cfg,
		history: newRing[Cycle](cfg.historySize()),
	}, nil
}

// Config returns the detector settings.
func (d *Detector) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// SetExternalWorkload changes the workload stamped on cycles completed from
// now on.
func (d *Detector) SetExternalWorkload(w float64) {
	d.mu.Lock()
	d.cfg.ExternalWorkload = w
	d.mu.Unlock()
}

// Push feeds one sample. It returns the cycle completed by this sample, if
// any passed the minimum filters.
func (d *Detector) Push(s Sample) (Cycle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.push(s)
}

func (d *Detector) push(s Sample) (Cycle, bool) {
	if d.started && s.Timestamp < d.lastTs {
		diagf("dropping out-of-order sample at %d (last %d)", s.Timestamp, d.lastTs)
		return Cycle{}, false
	}
	d.started = true
	d.lastTs = s.Timestamp

	d.slide(s)
	band := classify(s.Value, d.midpoint, d.cfg.Hysteresis)
	if band == Within {
		return Cycle{}, false
	}

	if d.startBand == Within {
		d.begin(s, band)
		return Cycle{}, false
	}

	if band != d.lastBand {
		d.lastBand = band
		if band == d.startBand {
			c := newCycle(d.cycleStart, s.Timestamp, d.runMax, d.runMin, d.cfg.ExternalWorkload)
			d.begin(s, band)
			return d.record(c)
		}
	}
	d.track(s)
	return Cycle{}, false
}

// slide appends s to the trailing window and refreshes the midpoint.
func (d *Detector) slide(s Sample) {
	cutoff := s.Timestamp - d.cfg.MovingAverageWindowMs
	drop := 0
	for drop < len(d.window) && d.window[drop].Timestamp < cutoff {
		drop++
	}
	if drop > 0 {
		d.window = append(d.window[:0], d.window[drop:]...)
	}
	d.window = append(d.window, s)

	max, min := d.window[0].Value, d.window[0].Value
	for _, w := range d.window[1:] {
		if w.Value > max {
			max = w.Value
		}
		if w.Value < min {
			min = w.Value
		}
	}
	d.midpoint = (max + min) / 2
}

func (d *Detector) begin(s Sample, band Band) {
	d.startBand = band
	d.lastBand = band
	d.cycleStart = s.Timestamp
	d.runMax = s
	d.runMin = s
}

func (d *Detector) track(s Sample) {
	if s.Value > d.runMax.Value {
		d.runMax = s
	}
	if s.Value < d.runMin.Value {
		d.runMin = s
	}
}

func (d *Detector) record(c Cycle) (Cycle, bool) {
	if c.DurationMs < d.cfg.MinCycleDurationMs || c.Amplitude < d.cfg.MinCycleAmplitude {
		tracef("discarding cycle %d-%d: duration %.0f ms amplitude %.3f", c.StartTime, c.EndTime, c.DurationMs, c.Amplitude)
		return Cycle{}, false
	}

	d.total++
	c.Index = d.total

	// Baseline is cycles 2..CyclesToAverage+1; the first repetition is
	// usually a partial one.
	if d.initialVelocity == nil && d.total == d.cfg.CyclesToAverage+1 {
		base := append(d.history.last(d.cfg.CyclesToAverage-1), c)
		var vel, ratio float64
		for _, b := range base {
			vel += b.NormalizedVelocity()
			ratio += b.SpeedRatio
		}
		vel /= float64(len(base))
		ratio /= float64(len(base))
		d.initialVelocity = &vel
		d.baselineRatio = &ratio
		diagf("baseline set after %d cycles: velocity %.3f speed ratio %.3f", d.total, vel, ratio)
	}
	if d.baselineRatio != nil && *d.baselineRatio > 0 {
		c.RelativeSpeedRatio = c.SpeedRatio / *d.baselineRatio
	}
	d.history.push(c)

	if p := c.NormalizedPeak(); !d.hasPeak || p > d.globalPeak {
		d.globalPeak = p
		d.hasPeak = true
	}

	tracef("cycle %d: %d-%d amplitude %.3f velocity %.3f", c.Index, c.StartTime, c.EndTime, c.Amplitude, c.Velocity)
	return c, true
}

// Observe feeds the samples of history newer than the last one seen and
// returns the cycles they complete. An empty history resets the detector, as
// does a history whose newest sample is older than the last one seen; the
// latter is processed from its start as a new recording.
func (d *Detector) Observe(history []Sample) []Cycle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(history) == 0 {
		d.reset()
		return nil
	}
	if d.started && history[len(history)-1].Timestamp < d.lastTs {
		diagf("history restarted at %d (last %d), resetting", history[len(history)-1].Timestamp, d.lastTs)
		d.reset()
	}
	start := 0
	if d.started {
		start = len(history)
		for start > 0 && history[start-1].Timestamp > d.lastTs {
			start--
		}
	}
	var out []Cycle
	for _, s := range history[start:] {
		if c, ok := d.push(s); ok {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the window, the in-progress cycle, the history and the
// baseline.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.reset()
	d.mu.Unlock()
}

func (d *Detector) reset() {
	d.window = d.window[:0]
	d.midpoint = 0
	d.startBand = Within
	d.lastBand = Within
	d.cycleStart = 0
	d.runMax = Sample{}
	d.runMin = Sample{}
	d.lastTs = 0
	d.started = false
	d.history.reset()
	d.total = 0
	d.globalPeak = 0
	d.hasPeak = false
	d.initialVelocity = nil
	d.baselineRatio = nil
}

// Count is the number of cycles recorded since the last reset.
func (d *Detector) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total
}

// Midpoint is the current moving midpoint of the band.
func (d *Detector) Midpoint() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.midpoint
}

// History returns the retained cycles, oldest first.
func (d *Detector) History() []Cycle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.slice()
}

// Recent returns the last DisplayCycles cycles, oldest first.
func (d *Detector) Recent() []Cycle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.last(d.cfg.DisplayCycles)
}

// Baseline returns the reference values fatigue is judged against.
func (d *Detector) Baseline() Baseline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baseline()
}

func (d *Detector) baseline() Baseline {
	b := Baseline{GlobalPeak: d.globalPeak}
	if d.initialVelocity != nil {
		v := *d.initialVelocity
		b.InitialVelocity = &v
	}
	return b
}

// Fatigue classifies the last CyclesToAverage cycles.
func (d *Detector) Fatigue() FatigueStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Classify(d.history.last(d.cfg.CyclesToAverage), d.baseline(), d.cfg.Fatigue)
}

// DetectCycles runs a fresh detector over samples and returns every cycle
// that passes the minimum filters.
func DetectCycles(samples []Sample, cfg Config) ([]Cycle, error) {
	d, err := NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	var out []Cycle
	for _, s := range samples {
		if c, ok := d.push(s); ok {
			out = append(out, c)
		}
	}
	return out, nil
}
