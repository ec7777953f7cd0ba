package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/biomech.report/internal/db"
	"github.com/banshee-data/biomech.report/internal/pipeline"
	"github.com/banshee-data/biomech.report/internal/serialmux"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", "")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.GetDisplayUnits() != "kg" {
		t.Errorf("GetDisplayUnits() = %q, want kg", cfg.GetDisplayUnits())
	}
}

func TestLoadConfigUnitsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(`{"display_units": "lb", "hysteresis": 1}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, "n")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.GetDisplayUnits() != "n" {
		t.Errorf("GetDisplayUnits() = %q, want n", cfg.GetDisplayUnits())
	}
	if cfg.CyclesConfig().Hysteresis != 1 {
		t.Errorf("hysteresis from file was not kept")
	}

	if _, err := loadConfig(path, "stone"); err == nil {
		t.Error("expected error for unknown units")
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"), ""); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestOpenSerial(t *testing.T) {
	m, err := openSerial(true, "", 0, 80)
	if err != nil {
		t.Fatalf("openSerial(dev) error = %v", err)
	}
	defer m.Close()

	if _, err := openSerial(false, "", 115200, 80); err == nil {
		t.Error("expected error without a port")
	}
	if _, err := openSerial(false, filepath.Join(t.TempDir(), "no-such-tty"), 115200, 80); err == nil {
		t.Error("expected error for a missing device")
	}
}

func TestNewHandler(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	defer database.Close()

	cfg, _ := loadConfig("", "")
	m := serialmux.NewDisabledSerialMux()
	stream, err := pipeline.NewForceStream(m, database, cfg, "")
	if err != nil {
		t.Fatalf("NewForceStream() error = %v", err)
	}
	h := newHandler(m, database, stream, cfg)

	tests := []struct {
		path string
		want int
	}{
		{"/api/config", http.StatusOK},
		{"/api/live", http.StatusOK},
		{"/api/sessions", http.StatusOK},
		{"/", http.StatusFound},
		{"/debug/", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.RemoteAddr = "127.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}

func TestNewHandlerWithoutDatabase(t *testing.T) {
	cfg, _ := loadConfig("", "")
	h := newHandler(serialmux.NewDisabledSerialMux(), nil, nil, cfg)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /api/sessions = %d, want 503", w.Code)
	}
}

func TestRunMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	var out bytes.Buffer

	if code := runMigrate([]string{"up"}, path, &out); code != 0 {
		t.Fatalf("migrate up exit code = %d, output %s", code, out.String())
	}
	out.Reset()
	if code := runMigrate([]string{"status"}, path, &out); code != 0 {
		t.Fatalf("migrate status exit code = %d", code)
	}
	if !strings.Contains(out.String(), "Current version: 2") {
		t.Errorf("status output = %q", out.String())
	}
	if code := runMigrate(nil, path, &out); code != 1 {
		t.Errorf("missing action exit code = %d, want 1", code)
	}
}

func TestLogWriters(t *testing.T) {
	w := logWriters(false, false)
	if w.Ops == nil || w.Diag != nil || w.Trace != nil {
		t.Errorf("logWriters(false, false) = %+v", w)
	}
	w = logWriters(true, true)
	if w.Diag == nil || w.Trace == nil {
		t.Errorf("logWriters(true, true) = %+v", w)
	}
}
