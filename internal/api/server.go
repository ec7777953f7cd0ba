package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/biomech.report/internal/config"
	"github.com/banshee-data/biomech.report/internal/cycles"
	"github.com/banshee-data/biomech.report/internal/db"
	"github.com/banshee-data/biomech.report/internal/export"
	"github.com/banshee-data/biomech.report/internal/loadcell"
	"github.com/banshee-data/biomech.report/internal/pipeline"
	"github.com/banshee-data/biomech.report/internal/security"
	"github.com/banshee-data/biomech.report/internal/serialmux"
	"github.com/banshee-data/biomech.report/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes bounds analysis uploads.
const maxBodyBytes = 8 << 20

type Server struct {
	m      serialmux.SerialMuxInterface
	db     *db.DB
	stream *pipeline.ForceStream
	cfg    *config.AnalysisConfig
	units  string

	lengthUnits string
}

// NewServer wires the HTTP API. stream and database may be nil; the routes
// that need them answer 503.
func NewServer(m serialmux.SerialMuxInterface, database *db.DB, stream *pipeline.ForceStream, cfg *config.AnalysisConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyAnalysisConfig()
	}
	return &Server{
		m:      m,
		db:     database,
		stream: stream,
		cfg:    cfg,
		units:  cfg.GetDisplayUnits(),

		lengthUnits: cfg.GetDisplayLengthUnits(),
	}
}

// convertSample converts a stored kilogram sample into the display units.
func (s *Server) convertSample(v cycles.Sample) cycles.Sample {
	v.Value = units.ConvertForce(v.Value, s.units)
	return v
}

// convertCycle converts the force fields of a cycle into the display units.
func (s *Server) convertCycle(c cycles.Cycle) cycles.Cycle {
	c.Amplitude = units.ConvertForce(c.Amplitude, s.units)
	c.PeakY = units.ConvertForce(c.PeakY, s.units)
	c.MinY = units.ConvertForce(c.MinY, s.units)
	c.Velocity = units.ConvertForce(c.Velocity, s.units)
	return c
}

func (s *Server) convertCycles(cs []cycles.Cycle) []cycles.Cycle {
	out := make([]cycles.Cycle, len(cs))
	for i, c := range cs {
		out[i] = s.convertCycle(c)
	}
	return out
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/live", s.showLive)
	mux.HandleFunc("/api/live/spectrum", s.showLiveSpectrum)
	mux.HandleFunc("/api/live/reset", s.resetLive)
	mux.HandleFunc("/api/live/workload", s.setWorkload)
	mux.HandleFunc("/api/command", s.sendCommandHandler)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/cycles", s.showSessionCycles)
	mux.HandleFunc("/api/sessions/export", s.exportSession)
	mux.HandleFunc("/api/analyse/spectrum", s.analyseSpectrum)
	mux.HandleFunc("/api/analyse/sway", s.analyseSway)
	mux.HandleFunc("/api/analyse/cycles", s.analyseCycles)
	mux.HandleFunc("/api/analyse/jump", s.analyseJump)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/charts/spectrum", s.handleSpectrumChart)
	mux.HandleFunc("/charts/cycles", s.handleCyclesChart)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

// decodeBody reads a bounded JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	return nil
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	op, err := loadcell.ParseOpcode(r.FormValue("command"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.m.SendCommand(op, nil); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to send command: %v", err))
		return
	}
	s.writeJSON(w, map[string]string{"command": op.String(), "status": "sent"})
}

func (s *Server) showLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.stream == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Live stream not running")
		return
	}

	snap := s.stream.Snapshot()
	for i := range snap.Samples {
		snap.Samples[i] = s.convertSample(snap.Samples[i])
	}
	snap.Recent = s.convertCycles(snap.Recent)
	snap.Midpoint = units.ConvertForce(snap.Midpoint, s.units)
	if snap.LastPeak != nil {
		p := s.convertSample(*snap.LastPeak)
		snap.LastPeak = &p
	}

	s.writeJSON(w, struct {
		pipeline.LiveSnapshot
		Units string `json:"units"`
	}{snap, s.units})
}

func (s *Server) showLiveSpectrum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.stream == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Live stream not running")
		return
	}

	spec, err := s.stream.Spectrum()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to compute spectrum: %v", err))
		return
	}
	s.writeJSON(w, spec)
}

func (s *Server) resetLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.stream == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Live stream not running")
		return
	}
	s.stream.Reset()
	s.writeJSON(w, map[string]string{"status": "reset"})
}

func (s *Server) setWorkload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.stream == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Live stream not running")
		return
	}
	workload, err := strconv.ParseFloat(r.FormValue("value"), 64)
	if err != nil || workload < 0 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'value' parameter")
		return
	}
	s.stream.SetExternalWorkload(workload)
	s.writeJSON(w, map[string]float64{"workload": workload})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Database not configured")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.db.Sessions(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	s.writeJSON(w, sessions)
}

// sessionFromQuery loads the stored session named by ?id, writing the error
// response itself when it cannot.
func (s *Server) sessionFromQuery(w http.ResponseWriter, r *http.Request) (*db.Session, bool) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return nil, false
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Database not configured")
		return nil, false
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'id' parameter")
		return nil, false
	}
	session, err := s.db.Session(id)
	if errors.Is(err, db.ErrSessionNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load session: %v", err))
		return nil, false
	}
	return &session, true
}

func (s *Server) showSessionCycles(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFromQuery(w, r)
	if !ok {
		return
	}
	cs, err := s.db.SessionCycles(session.ID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load cycles: %v", err))
		return
	}
	converted := s.convertCycles(cs)
	s.writeJSON(w, map[string]interface{}{
		"session": session,
		"cycles":  converted,
		"summary": cycles.Summarize(converted),
		"units":   s.units,
	})
}

// exportSession downloads the raw samples of a stored session as CSV, in
// kilograms as recorded.
func (s *Server) exportSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFromQuery(w, r)
	if !ok {
		return
	}
	samples, err := s.db.SessionSamples(session.ID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load samples: %v", err))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteSamplesCSV(&buf, samples); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to write CSV: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", security.ExportFilename(session.Label, session.ID, ".csv")))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cutoff, rate, order := s.cfg.FilterSettings()
	s.writeJSON(w, map[string]interface{}{
		"units":           s.units,
		"units_label":     units.Label(s.units),
		"length_units":    s.lengthUnits,
		"sample_rate_hz":  rate,
		"filter_cutoff":   cutoff,
		"filter_order":    order,
		"live_window_sec": s.cfg.GetLiveWindowSec(),
		"commands":        loadcell.CommandNames(),
		"cycles":          s.cfg.CyclesConfig(),
		"jump":            s.cfg.JumpConfig(),
	})
}
