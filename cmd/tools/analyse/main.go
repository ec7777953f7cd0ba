// Command analyse runs the biomechanics analyses over recorded files and
// writes the results as JSON, with an optional PNG report.
//
//	analyse spectrum [-column value] [-rate 80] [-filter] [-png out.png] recording.csv
//	analyse sway     [-ml ml] [-ap ap] [-motion] [-mode postprocessing] recording.csv|motion.json
//	analyse cycles   [-filter] [-workload 0] [-png out.png] samples.csv
//	analyse jump     [-pose] [-joint knee] [-side left] frames.json|poses.json
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"

	"github.com/banshee-data/biomech.report/internal/config"
	"github.com/banshee-data/biomech.report/internal/cycles"
	"github.com/banshee-data/biomech.report/internal/db"
	"github.com/banshee-data/biomech.report/internal/export"
	"github.com/banshee-data/biomech.report/internal/pipeline"
	"github.com/banshee-data/biomech.report/internal/report"
	"github.com/banshee-data/biomech.report/internal/security"
	"github.com/banshee-data/biomech.report/internal/units"
	"github.com/banshee-data/biomech.report/internal/version"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	output     string
	pngPath    string
	dbPath     string
	label      string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "Analysis config JSON (built-in defaults when empty)")
	fs.StringVar(&o.output, "o", "", "Write the JSON result to this file instead of stdout")
	fs.StringVar(&o.pngPath, "png", "", "Write a PNG report to this file")
	fs.StringVar(&o.dbPath, "db", "", "Record the result as a session in this SQLite database")
	fs.StringVar(&o.label, "label", "", "Session label when recording with -db")
}

func (o *options) config() (*config.AnalysisConfig, error) {
	if o.configPath == "" {
		return config.EmptyAnalysisConfig(), nil
	}
	return config.LoadAnalysisConfig(o.configPath)
}

// writeResult writes v as JSON to -o or stdout.
func (o *options) writeResult(stdout io.Writer, v interface{}) error {
	if o.output == "" {
		return export.WriteJSON(stdout, v)
	}
	if err := security.ValidateExportPath(o.output); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(o.output), 0o755); err != nil {
		return err
	}
	f, err := os.Create(o.output)
	if err != nil {
		return err
	}
	if err := export.WriteJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// savePNG writes a report to -png when it was given.
func (o *options) savePNG(build func() (*plot.Plot, error)) error {
	if o.pngPath == "" {
		return nil
	}
	if err := security.ValidateExportPath(o.pngPath); err != nil {
		return err
	}
	p, err := build()
	if err != nil {
		return err
	}
	return report.SavePNG(p, o.pngPath)
}

func (o *options) openDB() (*db.DB, error) {
	if o.dbPath == "" {
		return nil, nil
	}
	return db.NewDB(o.dbPath)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: analyse <spectrum|sway|cycles|jump> [flags] <input>")
	fmt.Fprintln(w, "       analyse version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'analyse <command> -h' for the flags of a command.")
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		usage(stderr)
		return errors.New("missing command")
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "spectrum":
		return runSpectrum(rest, stdout, stderr)
	case "sway":
		return runSway(rest, stdout, stderr)
	case "cycles":
		return runCycles(rest, stdout, stderr)
	case "jump":
		return runJump(rest, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String("analyse"))
		return nil
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// inputFile returns the single positional argument, opened.
func inputFile(fs *flag.FlagSet) (*os.File, error) {
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("%s: expected one input file, got %d", fs.Name(), fs.NArg())
	}
	return os.Open(fs.Arg(0))
}

func readColumn(path, name string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	header, cols, err := export.ReadColumnsCSV(f)
	if err != nil {
		return nil, err
	}
	col, ok := export.Column(header, cols, name)
	if !ok {
		return nil, fmt.Errorf("%s: no column %q in %s", path, name, strings.Join(header, ","))
	}
	return col, nil
}

func runSpectrum(args []string, stdout, stderr io.Writer) error {
	var o options
	fs := newFlagSet("spectrum", stderr)
	o.register(fs)
	column := fs.String("column", "value", "CSV column holding the signal")
	rate := fs.Float64("rate", 0, "Sample rate in Hz (config sample_rate_hz when zero)")
	filter := fs.Bool("filter", false, "Low-pass the signal before the FFT")
	maxHz := fs.Float64("max-hz", 10, "Upper frequency of the PNG report")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("spectrum: expected one input file, got %d", fs.NArg())
	}
	cfg, err := o.config()
	if err != nil {
		return err
	}
	signal, err := readColumn(fs.Arg(0), *column)
	if err != nil {
		return err
	}

	spec, err := pipeline.AnalyseSpectrum(pipeline.SpectrumInput{Signal: signal, SampleRateHz: *rate, Filter: *filter}, cfg)
	if err != nil {
		return err
	}
	if err := o.savePNG(func() (*plot.Plot, error) { return report.SpectrumPlot(spec, *maxHz) }); err != nil {
		return err
	}
	return o.writeResult(stdout, spec)
}

func runSway(args []string, stdout, stderr io.Writer) error {
	var o options
	fs := newFlagSet("sway", stderr)
	o.register(fs)
	mlCol := fs.String("ml", "ml", "CSV column holding medio-lateral acceleration")
	apCol := fs.String("ap", "ap", "CSV column holding antero-posterior acceleration")
	motion := fs.Bool("motion", false, "Input is a JSON array of motion sensor samples")
	rate := fs.Float64("rate", 0, "Sample rate in Hz for CSV input (config sample_rate_hz when zero)")
	mode := fs.String("mode", "postprocessing", "realtime or postprocessing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := o.config()
	if err != nil {
		return err
	}

	in := pipeline.SwayInput{SampleRateHz: *rate, Mode: *mode}
	if *motion {
		f, err := inputFile(fs)
		if err != nil {
			return err
		}
		in.Motion, err = export.ReadMotionJSON(f)
		f.Close()
		if err != nil {
			return err
		}
	} else {
		if fs.NArg() != 1 {
			return fmt.Errorf("sway: expected one input file, got %d", fs.NArg())
		}
		if in.ML, err = readColumn(fs.Arg(0), *mlCol); err != nil {
			return err
		}
		if in.AP, err = readColumn(fs.Arg(0), *apCol); err != nil {
			return err
		}
	}

	stats, err := pipeline.AnalyseSway(in, cfg)
	if err != nil {
		return err
	}
	if err := o.savePNG(func() (*plot.Plot, error) { return report.SwayPlot(stats) }); err != nil {
		return err
	}

	result := map[string]interface{}{"mode": stats.Mode.String(), "stats": stats}
	database, err := o.openDB()
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
		id, err := database.SaveSession(db.KindSway, o.label, cfg, func(id string) error {
			_, err := database.RecordSway(id, stats)
			return err
		})
		if err != nil {
			return err
		}
		result["session_id"] = id
	}
	return o.writeResult(stdout, result)
}

func runCycles(args []string, stdout, stderr io.Writer) error {
	var o options
	fs := newFlagSet("cycles", stderr)
	o.register(fs)
	filter := fs.Bool("filter", false, "Low-pass the force before segmenting")
	workload := fs.Float64("workload", 0, "External workload to normalize cycles by")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := o.config()
	if err != nil {
		return err
	}
	f, err := inputFile(fs)
	if err != nil {
		return err
	}
	samples, err := export.ReadSamplesCSV(f)
	f.Close()
	if err != nil {
		return err
	}

	res, err := pipeline.AnalyseCycles(pipeline.CyclesInput{Samples: samples, Filter: *filter, Workload: *workload}, cfg)
	if err != nil {
		return err
	}
	err = o.savePNG(func() (*plot.Plot, error) {
		return report.CyclesPlot(samples, res.Cycles, units.Label(cfg.GetDisplayUnits()))
	})
	if err != nil {
		return err
	}

	database, err := o.openDB()
	if err != nil {
		return err
	}
	if database == nil {
		return o.writeResult(stdout, res)
	}
	defer database.Close()
	id, err := recordCycles(database, o.label, cfg, samples, res.Cycles)
	if err != nil {
		return err
	}
	return o.writeResult(stdout, struct {
		pipeline.CyclesReport
		SessionID string `json:"session_id"`
	}{res, id})
}

func recordCycles(database *db.DB, label string, cfg *config.AnalysisConfig, samples []cycles.Sample, cs []cycles.Cycle) (string, error) {
	return database.SaveSession(db.KindForce, label, cfg, func(id string) error {
		if err := database.RecordSamples(id, samples); err != nil {
			return err
		}
		for _, c := range cs {
			if err := database.RecordCycle(id, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func runJump(args []string, stdout, stderr io.Writer) error {
	var o options
	fs := newFlagSet("jump", stderr)
	o.register(fs)
	pose := fs.Bool("pose", false, "Input is pose-estimation output rather than reduced frames")
	joint := fs.String("joint", "knee", "Tracked joint for pose input: hip or knee")
	side := fs.String("side", "left", "Body side for pose input: left or right")
	minScore := fs.Float64("min-score", pipeline.DefaultMinScore, "Keypoint confidence below which values are carried forward")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := o.config()
	if err != nil {
		return err
	}
	f, err := inputFile(fs)
	if err != nil {
		return err
	}
	in := pipeline.JumpInput{Joint: *joint, Side: *side, MinScore: *minScore}
	if *pose {
		in.Poses, err = export.ReadPoseJSON(f)
	} else {
		in.Frames, err = export.ReadFramesJSON(f)
	}
	f.Close()
	if err != nil {
		return err
	}

	res, err := pipeline.AnalyseJump(in, cfg)
	if err != nil {
		return err
	}

	database, err := o.openDB()
	if err != nil {
		return err
	}
	if database == nil {
		return o.writeResult(stdout, res)
	}
	defer database.Close()
	id, err := database.SaveSession(db.KindJump, o.label, cfg, func(id string) error {
		for _, m := range res.Jumps {
			if err := database.RecordJump(id, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return o.writeResult(stdout, struct {
		pipeline.JumpReport
		SessionID string `json:"session_id"`
	}{res, id})
}

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("analyse: %v", err)
	}
}
