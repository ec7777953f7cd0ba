package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/biomech.report/internal/cycles"
	"github.com/banshee-data/biomech.report/internal/db"
	"github.com/banshee-data/biomech.report/internal/pipeline"
	"github.com/banshee-data/biomech.report/internal/units"
)

// The analyse handlers run an analysis over an uploaded recording. Values
// come back in the units they were uploaded in; jump responses also carry
// heights in the display length units. With ?save=true the input and result
// are stored as a new session labelled by ?label=.

// saveRequested reports whether the caller asked to persist the result.
func (s *Server) saveRequested(w http.ResponseWriter, r *http.Request) (bool, bool) {
	v := r.URL.Query().Get("save")
	if v == "" {
		return false, true
	}
	save, err := strconv.ParseBool(v)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'save' parameter")
		return false, false
	}
	if save && s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Database not configured")
		return false, false
	}
	return save, true
}

// startAnalysis checks the method, parses ?save and decodes the body into in.
func (s *Server) startAnalysis(w http.ResponseWriter, r *http.Request, in interface{}) (save, ok bool) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false, false
	}
	if save, ok = s.saveRequested(w, r); !ok {
		return false, false
	}
	if err := decodeBody(w, r, in); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false, false
	}
	return save, true
}

func (s *Server) analyseSpectrum(w http.ResponseWriter, r *http.Request) {
	var in pipeline.SpectrumInput
	if _, ok := s.startAnalysis(w, r, &in); !ok {
		return
	}
	spec, err := pipeline.AnalyseSpectrum(in, s.cfg)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, spec)
}

func (s *Server) analyseSway(w http.ResponseWriter, r *http.Request) {
	var in pipeline.SwayInput
	save, ok := s.startAnalysis(w, r, &in)
	if !ok {
		return
	}
	stats, err := pipeline.AnalyseSway(in, s.cfg)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := map[string]interface{}{"mode": stats.Mode.String(), "stats": stats}
	if save {
		id, err := s.db.SaveSession(db.KindSway, r.URL.Query().Get("label"), s.cfg, func(id string) error {
			_, err := s.db.RecordSway(id, stats)
			return err
		})
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save sway session: %v", err))
			return
		}
		resp["session_id"] = id
	}
	s.writeJSON(w, resp)
}

func (s *Server) analyseCycles(w http.ResponseWriter, r *http.Request) {
	var in pipeline.CyclesInput
	save, ok := s.startAnalysis(w, r, &in)
	if !ok {
		return
	}
	report, err := pipeline.AnalyseCycles(in, s.cfg)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !save {
		s.writeJSON(w, report)
		return
	}

	id, err := s.saveCycles(r.URL.Query().Get("label"), in, report.Cycles)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save force session: %v", err))
		return
	}
	s.writeJSON(w, struct {
		pipeline.CyclesReport
		SessionID string `json:"session_id"`
	}{report, id})
}

func (s *Server) saveCycles(label string, in pipeline.CyclesInput, cs []cycles.Cycle) (string, error) {
	return s.db.SaveSession(db.KindForce, label, s.cfg, func(id string) error {
		if err := s.db.RecordSamples(id, in.TimestampedSamples(s.cfg.GetSampleRateHz())); err != nil {
			return err
		}
		for _, c := range cs {
			if err := s.db.RecordCycle(id, c); err != nil {
				return err
			}
		}
		return nil
	})
}


// jumpResponse adds jump heights in the display length units.
type jumpResponse struct {
	pipeline.JumpReport
	Heights     []float64 `json:"heights"`
	LengthUnits string    `json:"length_units"`
	SessionID   string    `json:"session_id,omitempty"`
}

func (s *Server) newJumpResponse(report pipeline.JumpReport) jumpResponse {
	resp := jumpResponse{JumpReport: report, Heights: make([]float64, len(report.Jumps)), LengthUnits: s.lengthUnits}
	for i, m := range report.Jumps {
		resp.Heights[i] = units.ConvertLength(m.Height*100, s.lengthUnits)
	}
	return resp
}

func (s *Server) analyseJump(w http.ResponseWriter, r *http.Request) {
	var in pipeline.JumpInput
	save, ok := s.startAnalysis(w, r, &in)
	if !ok {
		return
	}
	report, err := pipeline.AnalyseJump(in, s.cfg)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := s.newJumpResponse(report)
	if !save {
		s.writeJSON(w, resp)
		return
	}

	id, err := s.db.SaveSession(db.KindJump, r.URL.Query().Get("label"), s.cfg, func(id string) error {
		for _, m := range report.Jumps {
			if err := s.db.RecordJump(id, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save jump session: %v", err))
		return
	}
	resp.SessionID = id
	s.writeJSON(w, resp)
}
