package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/biomech.report/internal/api"
	"github.com/banshee-data/biomech.report/internal/config"
	"github.com/banshee-data/biomech.report/internal/db"
	"github.com/banshee-data/biomech.report/internal/loadcell"
	"github.com/banshee-data/biomech.report/internal/monitoring"
	"github.com/banshee-data/biomech.report/internal/pipeline"
	"github.com/banshee-data/biomech.report/internal/serialmux"
	"github.com/banshee-data/biomech.report/internal/units"
	"github.com/banshee-data/biomech.report/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Run against a simulated load cell")
	listen      = flag.String("listen", ":8080", "Listen address")
	port        = flag.String("port", "/dev/ttyUSB0", "Serial port to use (ignored in dev mode)")
	baud        = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	dbPath      = flag.String("db", "biomech.db", "Path to the SQLite database")
	configPath  = flag.String("config", "", "Analysis config JSON (built-in defaults when empty)")
	unitsFlag   = flag.String("units", "", "Display units for force: "+units.GetValidUnitsString())
	label       = flag.String("label", "", "Label for the live force session")
	noDB        = flag.Bool("no-db", false, "Run without persistence")
	diagLog     = flag.Bool("log-diag", false, "Enable the diagnostic log stream")
	traceLog    = flag.Bool("log-trace", false, "Enable the per-sample trace log stream")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: biomechd [flags]\n")
	fmt.Fprintf(out, "       biomechd migrate <action>\n\n")
	flag.PrintDefaults()
}

// loadConfig reads the analysis config and applies the -units override.
func loadConfig(path, unitsOverride string) (*config.AnalysisConfig, error) {
	cfg := config.EmptyAnalysisConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadAnalysisConfig(path); err != nil {
			return nil, err
		}
	}
	if unitsOverride != "" {
		if err := units.Validate(unitsOverride); err != nil {
			return nil, err
		}
		u := unitsOverride
		cfg.DisplayUnits = &u
	}
	return cfg, nil
}

// openSerial returns the simulated mux in dev mode and the real port
// otherwise.
func openSerial(dev bool, path string, baudRate int, rateHz float64) (serialmux.SerialMuxInterface, error) {
	if dev {
		return serialmux.NewMockSerialMux(serialmux.DefaultSimulatedSignal, rateHz), nil
	}
	if path == "" {
		return nil, errors.New("serial port is required")
	}
	m, err := serialmux.NewRealSerialMux(path, serialmux.PortOptions{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return m, nil
}

// newHandler mounts the API, the admin routes and request logging.
func newHandler(m serialmux.SerialMuxInterface, database *db.DB, stream *pipeline.ForceStream, cfg *config.AnalysisConfig) http.Handler {
	mux := api.NewServer(m, database, stream, cfg).ServeMux()
	m.AttachAdminRoutes(mux)
	if database != nil {
		database.AttachAdminRoutes(mux)
	}
	mux.Handle("/", http.RedirectHandler("/charts/cycles", http.StatusFound))
	return api.LoggingMiddleware(mux)
}

func logWriters(diag, trace bool) monitoring.LogWriters {
	w := monitoring.LogWriters{Ops: os.Stderr}
	if diag {
		w.Diag = os.Stderr
	}
	if trace {
		w.Trace = os.Stderr
	}
	return w
}

func runMigrate(args []string, path string, out io.Writer) int {
	if err := db.RunMigrateCommand(args, path, out); err != nil {
		log.Printf("migrate: %v", err)
		return 1
	}
	return 0
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("biomechd"))
		return
	}
	if flag.Arg(0) == "migrate" {
		os.Exit(runMigrate(flag.Args()[1:], *dbPath, os.Stdout))
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	monitoring.SetLogWriters(logWriters(*diagLog, *traceLog))

	cfg, err := loadConfig(*configPath, *unitsFlag)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	loadCell, err := openSerial(*devMode, *port, *baud, cfg.GetSampleRateHz())
	if err != nil {
		log.Fatalf("failed to create load cell port: %v", err)
	}
	defer loadCell.Close()

	if err := loadCell.Initialize(); err != nil {
		log.Fatalf("failed to initialize device: %v", err)
	}
	log.Printf("initialized load cell (dev=%v)", *devMode)

	var database *db.DB
	var store pipeline.Store
	if !*noDB {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		store = database
	}

	stream, err := pipeline.NewForceStream(loadCell, store, cfg, *label)
	if err != nil {
		log.Fatalf("failed to create force stream: %v", err)
	}

	// Create a wait group for the HTTP server, serial monitor, and force stream routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loadCell.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := stream.Run(ctx)
		switch {
		case errors.Is(err, loadcell.ErrLowPower):
			log.Printf("force stream stopped: device battery is low")
		case err != nil && !errors.Is(err, context.Canceled):
			log.Printf("force stream failed: %v", err)
		}
		log.Print("force stream routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    *listen,
			Handler: newHandler(loadCell, database, stream, cfg),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
