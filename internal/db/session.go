package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/biomech.report/internal/cycles"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("session not found")

// Session kinds.
const (
	KindForce = "force"
	KindSway  = "sway"
	KindJump  = "jump"
)

// Session groups the samples and results of one recording.
type Session struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Label     string          `json:"label"`
	Config    json.RawMessage `json:"config,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}

func unixToTime(f float64) time.Time {
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC()
}

func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// CreateSession inserts a new session with a fresh ID. cfg is stored as JSON
// when non-nil.
func (db *DB) CreateSession(kind, label string, cfg interface{}) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		Label:     label,
		StartedAt: db.now().UTC(),
	}
	var cfgJSON sql.NullString
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode session config: %w", err)
		}
		s.Config = b
		cfgJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, kind, label, config_json, started_unix) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Kind, s.Label, cfgJSON, timeToUnix(s.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// SaveSession records a finished session in one call: it creates the
// session, stores its data with record and ends it. When any step fails the
// session is deleted with whatever record stored, so no partial session is
// left behind.
func (db *DB) SaveSession(kind, label string, cfg interface{}, record func(id string) error) (string, error) {
	sess, err := db.CreateSession(kind, label, cfg)
	if err != nil {
		return "", err
	}
	if err = record(sess.ID); err == nil {
		err = db.EndSession(sess.ID)
	}
	if err != nil {
		if derr := db.DeleteSession(sess.ID); derr != nil {
			log.Printf("failed to discard partial session %s: %v", sess.ID, derr)
		}
		return "", err
	}
	return sess.ID, nil
}

// EndSession stamps the session end time.
func (db *DB) EndSession(id string) error {
	res, err := db.Exec(`UPDATE sessions SET ended_unix = ? WHERE session_id = ?`, timeToUnix(db.now()), id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

const sessionColumns = `session_id, kind, label, config_json, started_unix, ended_unix`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		s       Session
		cfg     sql.NullString
		started float64
		ended   sql.NullFloat64
	)
	if err := row.Scan(&s.ID, &s.Kind, &s.Label, &cfg, &started, &ended); err != nil {
		return Session{}, err
	}
	if cfg.Valid {
		s.Config = json.RawMessage(cfg.String)
	}
	s.StartedAt = unixToTime(started)
	if ended.Valid {
		t := unixToTime(ended.Float64)
		s.EndedAt = &t
	}
	return s, nil
}

// Session returns one session by ID.
func (db *DB) Session(id string) (Session, error) {
	row := db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// Sessions lists sessions newest first, at most limit rows (0 for all).
func (db *DB) Sessions(limit int) ([]Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_unix DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and, through cascading keys, its samples
// and results.
func (db *DB) DeleteSession(id string) error {
	res, err := db.Exec(`DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// RecordSamples appends raw samples to a session in one transaction.
func (db *DB) RecordSamples(sessionID string, samples []cycles.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO samples (session_id, ts_ms, value) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, s := range samples {
		if _, err := stmt.Exec(sessionID, s.Timestamp, s.Value); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record sample: %w", err)
		}
	}
	return tx.Commit()
}

// SessionSamples returns a session's samples in timestamp order.
func (db *DB) SessionSamples(sessionID string) ([]cycles.Sample, error) {
	rows, err := db.Query(`SELECT ts_ms, value FROM samples WHERE session_id = ? ORDER BY ts_ms, rowid`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := []cycles.Sample{}
	for rows.Next() {
		var s cycles.Sample
		if err := rows.Scan(&s.Timestamp, &s.Value); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
