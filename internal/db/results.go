package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/biomech.report/internal/cycles"
	"github.com/banshee-data/biomech.report/internal/jump"
	"github.com/banshee-data/biomech.report/internal/sway"
)

// RecordCycle stores a completed cycle. Re-recording the same index replaces
// the row.
func (db *DB) RecordCycle(sessionID string, c cycles.Cycle) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO cycles (
			session_id, cycle_index, start_ms, end_ms, duration_ms, amplitude,
			peak_ms, peak_value, min_ms, min_value, velocity, speed_ratio,
			relative_speed_ratio, work_load
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, c.Index, c.StartTime, c.EndTime, c.DurationMs, c.Amplitude,
		c.PeakX, c.PeakY, c.MinX, c.MinY, c.Velocity, c.SpeedRatio,
		c.RelativeSpeedRatio, c.WorkLoad,
	)
	if err != nil {
		return fmt.Errorf("failed to record cycle %d: %w", c.Index, err)
	}
	return nil
}

// SessionCycles returns a session's cycles in index order.
func (db *DB) SessionCycles(sessionID string) ([]cycles.Cycle, error) {
	rows, err := db.Query(`
		SELECT cycle_index, start_ms, end_ms, duration_ms, amplitude, peak_ms, peak_value,
			min_ms, min_value, velocity, speed_ratio, relative_speed_ratio, work_load
		FROM cycles WHERE session_id = ? ORDER BY cycle_index`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []cycles.Cycle{}
	for rows.Next() {
		var c cycles.Cycle
		if err := rows.Scan(
			&c.Index, &c.StartTime, &c.EndTime, &c.DurationMs, &c.Amplitude, &c.PeakX, &c.PeakY,
			&c.MinX, &c.MinY, &c.Velocity, &c.SpeedRatio, &c.RelativeSpeedRatio, &c.WorkLoad,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordJump stores the metrics of one detected jump, keyed by its peak frame.
func (db *DB) RecordJump(sessionID string, m jump.Metrics) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode jump metrics: %w", err)
	}
	_, err = db.Exec(`
		INSERT OR REPLACE INTO jumps (session_id, peak_index, metrics_json, flight_time, height, rsi)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, m.PeakIndex, string(b), m.FlightTime, m.Height, m.ReactiveStrengthIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to record jump at frame %d: %w", m.PeakIndex, err)
	}
	return nil
}

// SessionJumps returns a session's jumps in frame order.
func (db *DB) SessionJumps(sessionID string) ([]jump.Metrics, error) {
	rows, err := db.Query(`SELECT metrics_json FROM jumps WHERE session_id = ? ORDER BY peak_index`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []jump.Metrics{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var m jump.Metrics
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("failed to decode jump metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SwaySnapshot is a stored sway statistics snapshot.
type SwaySnapshot struct {
	ID      int64      `json:"id"`
	Mode    string     `json:"mode"`
	TakenAt time.Time  `json:"taken_at"`
	Stats   sway.Stats `json:"stats"`
}

// RecordSway stores a sway statistics snapshot and returns its row ID.
func (db *DB) RecordSway(sessionID string, st sway.Stats) (int64, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return 0, fmt.Errorf("failed to encode sway stats: %w", err)
	}
	var ellipseArea sql.NullFloat64
	if st.Ellipse != nil {
		ellipseArea = sql.NullFloat64{Float64: st.Ellipse.Area, Valid: true}
	}
	res, err := db.Exec(`
		INSERT INTO sway_snapshots (session_id, mode, taken_unix, sway_area, ellipse_area, rms_ml, rms_ap, stats_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, st.Mode.String(), timeToUnix(db.now()), st.SwayArea, ellipseArea, st.RMSML, st.RMSAP, string(b),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record sway snapshot: %w", err)
	}
	return res.LastInsertId()
}

// SessionSway returns a session's sway snapshots oldest first.
func (db *DB) SessionSway(sessionID string) ([]SwaySnapshot, error) {
	rows, err := db.Query(`
		SELECT snapshot_id, mode, taken_unix, stats_json
		FROM sway_snapshots WHERE session_id = ? ORDER BY snapshot_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SwaySnapshot{}
	for rows.Next() {
		var (
			snap  SwaySnapshot
			taken float64
			raw   string
		)
		if err := rows.Scan(&snap.ID, &snap.Mode, &taken, &raw); err != nil {
			return nil, err
		}
		snap.TakenAt = unixToTime(taken)
		if err := json.Unmarshal([]byte(raw), &snap.Stats); err != nil {
			return nil, fmt.Errorf("failed to decode sway stats: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
