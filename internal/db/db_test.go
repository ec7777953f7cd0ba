package db

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/biomech.report/internal/cycles"
	"github.com/banshee-data/biomech.report/internal/jump"
	"github.com/banshee-data/biomech.report/internal/sway"
	"github.com/banshee-data/biomech.report/internal/timeutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_AppliesMigrations(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"sessions", "samples", "cycles", "jumps", "sway_snapshots"} {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s", table)
	}

	fsys, err := MigrationsFS()
	require.NoError(t, err)
	version, dirty, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	latest, err := GetLatestMigrationVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)
	assert.Equal(t, latest, version)
	assert.False(t, dirty)
}

func TestNewDB_ReopenIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	_, err = db.CreateSession(KindForce, "first", nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	sessions, err := db.Sessions(0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestSessionLifecycle(t *testing.T) {
	db := setupTestDB(t)

	cfg := map[string]float64{"cutoff_hz": 5}
	s, err := db.CreateSession(KindForce, "grip test", cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Nil(t, s.EndedAt)

	got, err := db.Session(s.ID)
	require.NoError(t, err)
	assert.Equal(t, KindForce, got.Kind)
	assert.Equal(t, "grip test", got.Label)
	assert.JSONEq(t, `{"cutoff_hz":5}`, string(got.Config))
	assert.Nil(t, got.EndedAt)
	assert.WithinDuration(t, s.StartedAt, got.StartedAt, 1e6)

	require.NoError(t, db.EndSession(s.ID))
	got, err = db.Session(s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.False(t, got.EndedAt.Before(got.StartedAt))
}

func TestSession_Clock(t *testing.T) {
	db := setupTestDB(t)
	start := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	db.SetClock(clock)

	s, err := db.CreateSession(KindJump, "", nil)
	require.NoError(t, err)
	assert.Equal(t, start, s.StartedAt)

	clock.Advance(90 * time.Second)
	require.NoError(t, db.EndSession(s.ID))
	got, err := db.Session(s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.WithinDuration(t, start.Add(90*time.Second), *got.EndedAt, time.Millisecond)

	_, err = db.RecordSway(s.ID, sway.Stats{Mode: sway.RealTime})
	require.NoError(t, err)
	snaps, err := db.SessionSway(s.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.WithinDuration(t, start.Add(90*time.Second), snaps[0].TakenAt, time.Millisecond)
}

func TestSession_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Session("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.True(t, errors.Is(db.EndSession("missing"), ErrSessionNotFound))
	assert.True(t, errors.Is(db.DeleteSession("missing"), ErrSessionNotFound))
}

func TestSessions_NewestFirstWithLimit(t *testing.T) {
	db := setupTestDB(t)
	clock := timeutil.NewMockClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	db.SetClock(clock)

	var ids []string
	for _, label := range []string{"a", "b", "c"} {
		s, err := db.CreateSession(KindSway, label, nil)
		require.NoError(t, err)
		ids = append(ids, s.ID)
		clock.Advance(time.Minute)
	}

	all, err := db.Sessions(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	limited, err := db.Sessions(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSamples_RoundTripAndOrder(t *testing.T) {
	db := setupTestDB(t)
	s, err := db.CreateSession(KindForce, "", nil)
	require.NoError(t, err)

	require.NoError(t, db.RecordSamples(s.ID, []cycles.Sample{{Timestamp: 20, Value: 2}, {Timestamp: 10, Value: 1}}))
	require.NoError(t, db.RecordSamples(s.ID, nil))
	require.NoError(t, db.RecordSamples(s.ID, []cycles.Sample{{Timestamp: 30, Value: 3}}))

	got, err := db.SessionSamples(s.ID)
	require.NoError(t, err)
	want := []cycles.Sample{{Timestamp: 10, Value: 1}, {Timestamp: 20, Value: 2}, {Timestamp: 30, Value: 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestSamples_RequireSession(t *testing.T) {
	db := setupTestDB(t)
	err := db.RecordSamples("no-such-session", []cycles.Sample{{Timestamp: 1, Value: 1}})
	assert.Error(t, err)
}

func TestCycles_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	s, err := db.CreateSession(KindForce, "", nil)
	require.NoError(t, err)

	c1 := cycles.Cycle{
		Index: 1, StartTime: 100, EndTime: 500, DurationMs: 400, Amplitude: 6,
		PeakX: 150, PeakY: 8, MinX: 350, MinY: 2, Velocity: 15,
		SpeedRatio: 1, RelativeSpeedRatio: 1,
	}
	c2 := c1
	c2.Index = 2
	c2.WorkLoad = 20

	require.NoError(t, db.RecordCycle(s.ID, c2))
	require.NoError(t, db.RecordCycle(s.ID, c1))

	got, err := db.SessionCycles(s.ID)
	require.NoError(t, err)
	if diff := cmp.Diff([]cycles.Cycle{c1, c2}, got); diff != "" {
		t.Errorf("cycles mismatch (-want +got):\n%s", diff)
	}

	c1.Amplitude = 7
	require.NoError(t, db.RecordCycle(s.ID, c1))
	got, err = db.SessionCycles(s.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 7.0, got[0].Amplitude)
}

func TestJumps_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	s, err := db.CreateSession(KindJump, "cmj", nil)
	require.NoError(t, err)

	m := jump.Metrics{
		PeakIndex: 60, TakeoffIndex: 50, LandingIndex: 70,
		FlightTime: 0.4, Height: 0.1962, ReactiveStrengthIndex: 0.33,
		TakeoffAngle: 170, LandingAngle: 168,
	}
	require.NoError(t, db.RecordJump(s.ID, m))

	got, err := db.SessionJumps(s.ID)
	require.NoError(t, err)
	if diff := cmp.Diff([]jump.Metrics{m}, got); diff != "" {
		t.Errorf("jumps mismatch (-want +got):\n%s", diff)
	}

	var rsi float64
	require.NoError(t, db.QueryRow(`SELECT rsi FROM jumps WHERE session_id = ?`, s.ID).Scan(&rsi))
	assert.Equal(t, 0.33, rsi)
}

func TestSway_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	s, err := db.CreateSession(KindSway, "", nil)
	require.NoError(t, err)

	st := sway.Stats{
		Mode:     sway.PostProcessing,
		Points:   []sway.Point{{ML: 0, AP: 0}, {ML: 1, AP: 0}, {ML: 0, AP: 1}},
		RMSML:    0.5,
		RMSAP:    0.5,
		SwayArea: 0.5,
		Ellipse:  &sway.Ellipse{SemiMajor: 2, SemiMinor: 1, Area: 6.28},
	}
	id, err := db.RecordSway(s.ID, st)
	require.NoError(t, err)
	assert.Positive(t, id)

	snaps, err := db.SessionSway(s.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, id, snaps[0].ID)
	assert.Equal(t, "postprocessing", snaps[0].Mode)
	assert.Equal(t, st.Points, snaps[0].Stats.Points)
	require.NotNil(t, snaps[0].Stats.Ellipse)
	assert.Equal(t, 6.28, snaps[0].Stats.Ellipse.Area)

	var ellipseArea float64
	require.NoError(t, db.QueryRow(`SELECT ellipse_area FROM sway_snapshots WHERE snapshot_id = ?`, id).Scan(&ellipseArea))
	assert.Equal(t, 6.28, ellipseArea)
}

func TestDeleteSession_Cascades(t *testing.T) {
	db := setupTestDB(t)
	s, err := db.CreateSession(KindForce, "", nil)
	require.NoError(t, err)
	require.NoError(t, db.RecordSamples(s.ID, []cycles.Sample{{Timestamp: 1, Value: 1}}))
	require.NoError(t, db.RecordCycle(s.ID, cycles.Cycle{Index: 1}))

	require.NoError(t, db.DeleteSession(s.ID))

	for _, table := range []string{"samples", "cycles"} {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestSaveSession(t *testing.T) {
	db := setupTestDB(t)
	samples := []cycles.Sample{{Timestamp: 0, Value: 1}, {Timestamp: 10, Value: 2}}

	_, err := db.SaveSession(KindForce, "interrupted", nil, func(id string) error {
		require.NoError(t, db.RecordSamples(id, samples))
		return errors.New("disk full")
	})
	require.EqualError(t, err, "disk full")
	sessions, err := db.Sessions(10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&n))
	assert.Zero(t, n)

	id, err := db.SaveSession(KindForce, "complete", nil, func(id string) error {
		return db.RecordSamples(id, samples)
	})
	require.NoError(t, err)
	sess, err := db.Session(id)
	require.NoError(t, err)
	assert.NotNil(t, sess.EndedAt)
	got, err := db.SessionSamples(id)
	require.NoError(t, err)
	assert.Equal(t, samples, got)
}

func TestCreateSession_BadConfig(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.CreateSession(KindForce, "", map[string]interface{}{"ch": make(chan int)})
	var unsupported *json.UnsupportedTypeError
	assert.True(t, errors.As(err, &unsupported))
}
