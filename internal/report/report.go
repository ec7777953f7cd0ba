// Package report renders analysis results as static PNG charts.
package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/biomech.report/internal/cycles"
	"github.com/banshee-data/biomech.report/internal/dsp"
	"github.com/banshee-data/biomech.report/internal/sway"
)

// Default PNG size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

var (
	pathColor     = color.RGBA{R: 70, G: 110, B: 190, A: 255}
	hullColor     = color.RGBA{R: 40, G: 160, B: 90, A: 255}
	ellipseColor  = color.RGBA{R: 210, G: 80, B: 60, A: 255}
	dominantColor = color.RGBA{R: 210, G: 80, B: 60, A: 255}
	peakColor     = color.RGBA{R: 40, G: 160, B: 90, A: 255}
	minColor      = color.RGBA{R: 150, G: 90, B: 180, A: 255}
)

const ellipseSegments = 96

func addLine(p *plot.Plot, pts plotter.XYs, c color.Color, label string) error {
	if len(pts) == 0 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	if label != "" {
		p.Legend.Add(label, line)
	}
	return nil
}

func addPoints(p *plot.Plot, pts plotter.XYs, c color.Color, label string) error {
	if len(pts) == 0 {
		return nil
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = c
	sc.GlyphStyle.Radius = vg.Points(2.5)
	p.Add(sc)
	if label != "" {
		p.Legend.Add(label, sc)
	}
	return nil
}

func topRightLegend(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}

// SwayPlot draws the COP path with its convex hull and confidence ellipse.
func SwayPlot(st sway.Stats) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("COP sway (area %.2f cm²)", st.SwayArea)
	p.X.Label.Text = "Medio-lateral (cm)"
	p.Y.Label.Text = "Antero-posterior (cm)"

	path := make(plotter.XYs, len(st.Points))
	ml := make([]float64, len(st.Points))
	ap := make([]float64, len(st.Points))
	for i, pt := range st.Points {
		path[i] = plotter.XY{X: pt.ML, Y: pt.AP}
		ml[i], ap[i] = pt.ML, pt.AP
	}
	if err := addLine(p, path, pathColor, "path"); err != nil {
		return nil, err
	}

	if len(st.Hull) > 2 {
		hull := make(plotter.XYs, 0, len(st.Hull)+1)
		for _, pt := range st.Hull {
			hull = append(hull, plotter.XY{X: pt.ML, Y: pt.AP})
		}
		hull = append(hull, hull[0])
		if err := addLine(p, hull, hullColor, "hull"); err != nil {
			return nil, err
		}
	}

	if st.Ellipse != nil && len(st.Points) > 0 {
		cx, cy := stat.Mean(ml, nil), stat.Mean(ap, nil)
		if err := addLine(p, ellipsePoints(*st.Ellipse, cx, cy), ellipseColor, "95% ellipse"); err != nil {
			return nil, err
		}
	}
	topRightLegend(p)
	return p, nil
}

func ellipsePoints(e sway.Ellipse, cx, cy float64) plotter.XYs {
	pts := make(plotter.XYs, ellipseSegments+1)
	sin, cos := math.Sincos(e.OrientationRad)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / ellipseSegments
		x, y := e.SemiMajor*math.Cos(t), e.SemiMinor*math.Sin(t)
		pts[i] = plotter.XY{X: cx + x*cos - y*sin, Y: cy + x*sin + y*cos}
	}
	return pts
}

// SpectrumPlot draws an amplitude spectrum up to maxHz (all bins when
// maxHz <= 0) and marks the dominant frequency.
func SpectrumPlot(spec dsp.Spectrum, maxHz float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Spectrum (dominant %.2f Hz)", spec.DominantFrequency)
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Amplitude"

	pts := make(plotter.XYs, 0, len(spec.Frequencies))
	peak := 0.0
	for i, f := range spec.Frequencies {
		if maxHz > 0 && f > maxHz {
			break
		}
		pts = append(pts, plotter.XY{X: f, Y: spec.Amplitudes[i]})
		peak = math.Max(peak, spec.Amplitudes[i])
	}
	if err := addLine(p, pts, pathColor, "amplitude"); err != nil {
		return nil, err
	}
	if spec.DominantFrequency > 0 && len(pts) > 0 {
		marker := plotter.XYs{{X: spec.DominantFrequency, Y: 0}, {X: spec.DominantFrequency, Y: peak}}
		if err := addLine(p, marker, dominantColor, "dominant"); err != nil {
			return nil, err
		}
	}
	topRightLegend(p)
	return p, nil
}

// CyclesPlot draws a force trace with the peak and trough of each cycle.
// Timestamps are shown in seconds from the first sample.
func CyclesPlot(samples []cycles.Sample, cs []cycles.Cycle, unitLabel string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Force (%d cycles)", len(cs))
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = fmt.Sprintf("Force (%s)", unitLabel)

	var t0 int64
	if len(samples) > 0 {
		t0 = samples[0].Timestamp
	}
	sec := func(ms int64) float64 { return float64(ms-t0) / 1000 }

	trace := make(plotter.XYs, len(samples))
	for i, s := range samples {
		trace[i] = plotter.XY{X: sec(s.Timestamp), Y: s.Value}
	}
	if err := addLine(p, trace, pathColor, "force"); err != nil {
		return nil, err
	}

	peaks := make(plotter.XYs, len(cs))
	mins := make(plotter.XYs, len(cs))
	for i, c := range cs {
		peaks[i] = plotter.XY{X: sec(c.PeakX), Y: c.PeakY}
		mins[i] = plotter.XY{X: sec(c.MinX), Y: c.MinY}
	}
	if err := addPoints(p, peaks, peakColor, "peak"); err != nil {
		return nil, err
	}
	if err := addPoints(p, mins, minColor, "trough"); err != nil {
		return nil, err
	}
	topRightLegend(p)
	return p, nil
}

// WritePNG renders p as PNG to w.
func WritePNG(p *plot.Plot, w io.Writer, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG renders p to path, creating parent directories.
func SavePNG(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
