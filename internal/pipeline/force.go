// Package pipeline runs the analyses end to end. ForceStream is the live
// path: decoded load-cell packets are filtered sample by sample, segmented
// into cycles and persisted. The Analyse functions run the same analyses
// over whole recordings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/biomech.report/internal/config"
	"github.com/banshee-data/biomech.report/internal/cycles"
	"github.com/banshee-data/biomech.report/internal/db"
	"github.com/banshee-data/biomech.report/internal/dsp"
	"github.com/banshee-data/biomech.report/internal/loadcell"
)

// Source is the part of the serial mux the stream needs.
type Source interface {
	Subscribe() (string, chan loadcell.Packet)
	Unsubscribe(string)
	SendCommand(loadcell.Opcode, []byte) error
}

// Store persists a force session. *db.DB implements it.
type Store interface {
	CreateSession(kind, label string, cfg interface{}) (*db.Session, error)
	RecordSamples(sessionID string, samples []cycles.Sample) error
	RecordCycle(sessionID string, c cycles.Cycle) error
	EndSession(id string) error
}

// LiveSnapshot is the state of the stream at one instant. Samples are the
// filtered values inside the live window.
type LiveSnapshot struct {
	SessionID string               `json:"session_id,omitempty"`
	Samples   []cycles.Sample      `json:"samples"`
	Midpoint  float64              `json:"midpoint"`
	Count     int                  `json:"cycle_count"`
	Recent    []cycles.Cycle       `json:"recent_cycles"`
	Fatigue   cycles.FatigueStatus `json:"fatigue"`
	LastPeak  *cycles.Sample       `json:"last_peak,omitempty"`
	LowPower  bool                 `json:"low_power"`
}

// ForceStream consumes weight packets from a Source. All methods are safe for
// concurrent use; Run must be called at most once at a time.
type ForceStream struct {
	src   Source
	store Store
	cfg   *config.AnalysisConfig

	label    string
	windowMs int64

	mu        sync.Mutex
	filter    *dsp.LowPass
	detector  *cycles.Detector
	clock     deviceClock
	raw       []cycles.Sample
	filtered  []cycles.Sample
	sessionID string
	lastPeak  *cycles.Sample
	lowPower  bool

	// indexBase is the number of cycles recorded before the last Reset so
	// stored indices stay unique within the session.
	indexBase int
}

// NewForceStream validates cfg and builds the filter and detector. store may
// be nil to run without persistence.
func NewForceStream(src Source, store Store, cfg *config.AnalysisConfig, label string) (*ForceStream, error) {
	if cfg == nil {
		cfg = config.EmptyAnalysisConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cutoff, rate, order := cfg.FilterSettings()
	filter, err := dsp.NewLowPass(cutoff, rate, order)
	if err != nil {
		return nil, err
	}
	detector, err := cycles.NewDetector(cfg.CyclesConfig())
	if err != nil {
		return nil, err
	}
	return &ForceStream{
		src:      src,
		store:    store,
		cfg:      cfg,
		label:    label,
		windowMs: int64(cfg.GetLiveWindowSec() * 1000),
		filter:   filter,
		detector: detector,
	}, nil
}

// Run starts weight streaming and processes packets until ctx is done, the
// subscription closes, or the device reports low power. On low power the
// stop command is sent and loadcell.ErrLowPower is returned.
func (f *ForceStream) Run(ctx context.Context) error {
	id, ch := f.src.Subscribe()
	defer f.src.Unsubscribe(id)

	if err := f.beginSession(); err != nil {
		return err
	}
	defer f.endSession()

	if err := f.src.SendCommand(loadcell.OpStartWeight, nil); err != nil {
		return fmt.Errorf("failed to start weight stream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			if err := f.src.SendCommand(loadcell.OpStopWeight, nil); err != nil {
				diagf("failed to stop weight stream: %v", err)
			}
			return ctx.Err()
		case p, ok := <-ch:
			if !ok {
				return nil
			}
			err := f.HandlePacket(p)
			if errors.Is(err, loadcell.ErrLowPower) {
				if serr := f.src.SendCommand(loadcell.OpStopWeight, nil); serr != nil {
					opsf("failed to stop weight stream after low power: %v", serr)
				}
				return err
			}
			if err != nil {
				diagf("dropped %s packet: %v", p.Code, err)
			}
		}
	}
}

func (f *ForceStream) beginSession() error {
	if f.store == nil {
		return nil
	}
	s, err := f.store.CreateSession(db.KindForce, f.label, f.cfg)
	if err != nil {
		return fmt.Errorf("failed to create force session: %w", err)
	}
	f.mu.Lock()
	f.sessionID = s.ID
	f.mu.Unlock()
	diagf("session %s started", s.ID)
	return nil
}

func (f *ForceStream) endSession() {
	f.mu.Lock()
	id := f.sessionID
	f.mu.Unlock()
	if f.store == nil || id == "" {
		return
	}
	if err := f.store.EndSession(id); err != nil {
		opsf("failed to end session %s: %v", id, err)
	}
}

// HandlePacket applies one packet. It returns loadcell.ErrLowPower for a
// low-power warning and decoding errors for malformed sample packets.
func (f *ForceStream) HandlePacket(p loadcell.Packet) error {
	switch p.Code {
	case loadcell.WeightMeasurement:
		samples, err := p.Samples()
		if err != nil {
			return err
		}
		f.ingest(samples)
	case loadcell.RFDPeak, loadcell.RFDPeakSeries:
		samples, err := p.Samples()
		if err != nil {
			return err
		}
		f.recordPeak(samples)
	case loadcell.LowPowerWarning:
		f.mu.Lock()
		f.lowPower = true
		f.mu.Unlock()
		opsf("device reported low power, stopping stream")
		return p.Err()
	case loadcell.CommandResponse:
		diagf("command response: %q", p.Text())
	default:
		diagf("ignoring %s packet (%d bytes)", p.Code, len(p.Payload))
	}
	return nil
}

func (f *ForceStream) ingest(samples []loadcell.Sample) {
	if len(samples) == 0 {
		return
	}
	raw := make([]cycles.Sample, len(samples))
	var done []cycles.Cycle

	f.mu.Lock()
	for i, s := range samples {
		ts := f.clock.millis(s.Micros)
		raw[i] = cycles.Sample{Timestamp: ts, Value: s.Value}
		fs := cycles.Sample{Timestamp: ts, Value: f.filter.Step(s.Value)}
		f.raw = append(f.raw, raw[i])
		f.filtered = append(f.filtered, fs)
		if c, ok := f.detector.Push(fs); ok {
			c.Index += f.indexBase
			done = append(done, c)
		}
	}
	f.raw = trimWindow(f.raw, f.windowMs)
	f.filtered = trimWindow(f.filtered, f.windowMs)
	id := f.sessionID
	f.mu.Unlock()

	for _, c := range done {
		tracef("cycle %d: amplitude=%.3f duration=%.0fms", c.Index, c.Amplitude, c.DurationMs)
	}
	f.persist(id, raw, done)
}

func (f *ForceStream) persist(id string, raw []cycles.Sample, done []cycles.Cycle) {
	if f.store == nil || id == "" {
		return
	}
	if f.cfg.GetPersistSamples() {
		if err := f.store.RecordSamples(id, raw); err != nil {
			opsf("failed to record %d samples: %v", len(raw), err)
		}
	}
	for _, c := range done {
		if err := f.store.RecordCycle(id, c); err != nil {
			opsf("failed to record cycle %d: %v", c.Index, err)
		}
	}
}

func (f *ForceStream) recordPeak(samples []loadcell.Sample) {
	if len(samples) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range samples {
		ts := f.clock.millis(s.Micros)
		if f.lastPeak == nil || s.Value > f.lastPeak.Value {
			f.lastPeak = &cycles.Sample{Timestamp: ts, Value: s.Value}
		}
	}
	diagf("peak RFD sample %.3f at %dms", f.lastPeak.Value, f.lastPeak.Timestamp)
}

// trimWindow drops samples older than windowMs before the newest one.
func trimWindow(s []cycles.Sample, windowMs int64) []cycles.Sample {
	if len(s) == 0 {
		return s
	}
	cutoff := s[len(s)-1].Timestamp - windowMs
	i := 0
	for i < len(s) && s[i].Timestamp < cutoff {
		i++
	}
	if i == 0 {
		return s
	}
	return append(s[:0], s[i:]...)
}

// Snapshot returns a copy of the live state.
func (f *ForceStream) Snapshot() LiveSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := LiveSnapshot{
		SessionID: f.sessionID,
		Samples:   append([]cycles.Sample(nil), f.filtered...),
		Midpoint:  f.detector.Midpoint(),
		Count:     f.detector.Count(),
		Recent:    f.detector.Recent(),
		Fatigue:   f.detector.Fatigue(),
		LowPower:  f.lowPower,
	}
	if f.lastPeak != nil {
		p := *f.lastPeak
		snap.LastPeak = &p
	}
	return snap
}

// Spectrum analyses the raw samples inside the live window. The sample rate
// is estimated from the timestamps, falling back to the configured rate.
func (f *ForceStream) Spectrum() (dsp.Spectrum, error) {
	f.mu.Lock()
	values := make([]float64, len(f.raw))
	for i, s := range f.raw {
		values[i] = s.Value
	}
	rate := EstimateRate(f.raw, f.cfg.GetSampleRateHz())
	f.mu.Unlock()

	opts := f.cfg.SpectrumOptions()
	opts.WindowSec = f.cfg.GetLiveWindowSec()
	return dsp.Analyze(values, rate, opts, f.cfg.PeakOptions())
}

// SetExternalWorkload sets the workload used to normalize new cycles.
func (f *ForceStream) SetExternalWorkload(w float64) {
	f.detector.SetExternalWorkload(w)
}

// Reset clears the filter, detector and live window. The session and the
// device timeline continue, and cycle indices keep counting from where the
// session left off.
func (f *ForceStream) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.Reset()
	f.indexBase += f.detector.Count()
	f.detector.Reset()
	f.raw = nil
	f.filtered = nil
	f.lastPeak = nil
	f.lowPower = false
}

// Config returns the analysis configuration the stream was built with.
func (f *ForceStream) Config() *config.AnalysisConfig {
	return f.cfg
}
