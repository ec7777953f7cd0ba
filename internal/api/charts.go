package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/biomech.report/internal/cycles"
	"github.com/banshee-data/biomech.report/internal/db"
	"github.com/banshee-data/biomech.report/internal/units"
)

// echartsAssetsPrefix serves the echarts scripts from the public CDN.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

func (s *Server) renderPage(w http.ResponseWriter, chart components.Charter) {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(chart)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleSpectrumChart renders the live spectrum up to ?max_hz (default 10).
func (s *Server) handleSpectrumChart(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Live stream not running")
		return
	}
	maxHz := 10.0
	if v := r.URL.Query().Get("max_hz"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'max_hz' parameter")
			return
		}
		maxHz = parsed
	}

	spec, err := s.stream.Spectrum()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to compute spectrum: %v", err))
		return
	}
	if spec.Empty() {
		s.writeJSONError(w, http.StatusNotFound, "no samples in the live window")
		return
	}

	var x []string
	var y []opts.LineData
	for i, f := range spec.Frequencies {
		if f > maxHz {
			break
		}
		x = append(x, strconv.FormatFloat(f, 'f', 2, 64))
		y = append(y, opts.LineData{Value: spec.Amplitudes[i]})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Live Spectrum",
			Subtitle: fmt.Sprintf("dominant %.2f Hz, resolution %.3f Hz", spec.DominantFrequency, spec.Resolution),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hz", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Amplitude"}),
	)
	line.SetXAxis(x).AddSeries("amplitude", y, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	s.renderPage(w, line)
}

// handleCyclesChart renders force and cycle extremes, live or for the stored
// session named by ?id.
func (s *Server) handleCyclesChart(w http.ResponseWriter, r *http.Request) {
	samples, cs, title, ok := s.cyclesChartData(w, r)
	if !ok {
		return
	}

	x := make([]string, len(samples))
	force := make([]opts.LineData, len(samples))
	start := int64(0)
	if len(samples) > 0 {
		start = samples[0].Timestamp
	}
	for i, v := range samples {
		x[i] = strconv.FormatFloat(float64(v.Timestamp-start)/1000, 'f', 2, 64)
		force[i] = opts.LineData{Value: units.ConvertForce(v.Value, s.units)}
	}

	// Extremes are placed on the force series' category axis by index.
	peaks := make([]opts.LineData, len(samples))
	troughs := make([]opts.LineData, len(samples))
	for i := range samples {
		peaks[i] = opts.LineData{Value: "-"}
		troughs[i] = opts.LineData{Value: "-"}
	}
	for _, c := range cs {
		if i := indexAt(samples, c.PeakX); i >= 0 {
			peaks[i] = opts.LineData{Value: units.ConvertForce(c.PeakY, s.units)}
		}
		if i := indexAt(samples, c.MinX); i >= 0 {
			troughs[i] = opts.LineData{Value: units.ConvertForce(c.MinY, s.units)}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d cycles", len(cs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "s", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Force (%s)", units.Label(s.units))}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).
		AddSeries("force", force, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})).
		AddSeries("peaks", peaks, charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false)})).
		AddSeries("troughs", troughs, charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false)}))

	s.renderPage(w, line)
}

func (s *Server) cyclesChartData(w http.ResponseWriter, r *http.Request) ([]cycles.Sample, []cycles.Cycle, string, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		if s.stream == nil {
			s.writeJSONError(w, http.StatusServiceUnavailable, "Live stream not running")
			return nil, nil, "", false
		}
		snap := s.stream.Snapshot()
		return snap.Samples, snap.Recent, "Live Force", true
	}

	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Database not configured")
		return nil, nil, "", false
	}
	session, err := s.db.Session(id)
	if errors.Is(err, db.ErrSessionNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "Session not found")
		return nil, nil, "", false
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load session: %v", err))
		return nil, nil, "", false
	}
	samples, err := s.db.SessionSamples(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load samples: %v", err))
		return nil, nil, "", false
	}
	cs, err := s.db.SessionCycles(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load cycles: %v", err))
		return nil, nil, "", false
	}
	title := "Session " + session.ID
	if session.Label != "" {
		title = session.Label
	}
	return samples, cs, title, true
}

// indexAt finds the sample with timestamp ts, or -1.
func indexAt(samples []cycles.Sample, ts int64) int {
	lo, hi := 0, len(samples)
	for lo < hi {
		mid := (lo + hi) / 2
		if samples[mid].Timestamp < ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(samples) && samples[lo].Timestamp == ts {
		return lo
	}
	return -1
}
