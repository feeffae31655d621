// Package db is the drive log: a sqlite store recording runs, operator
// events, and sampled frame decisions for later review. Schema changes go
// through the embedded migrations; the admin surface exposes a live SQL
// debugger over the same database.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DriveDB wraps the sqlite drive log.
type DriveDB struct {
	*sql.DB
	path string
}

// NewDriveDB opens (creating if necessary) the drive log at path and brings
// the schema up to date.
func NewDriveDB(path string) (*DriveDB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open drive log: %w", err)
	}

	// sqlite via database/sql: a single writer avoids SQLITE_BUSY churn.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	db := &DriveDB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate drive log: %w", err)
	}
	return db, nil
}

// Run identifies one continuous processing session of the pipeline.
type Run struct {
	ID         string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Version    string     `json:"version"`
	GitSHA     string     `json:"git_sha"`
	ConfigJSON string     `json:"config_json,omitempty"`
}

// StartRun records the beginning of a processing session and returns its ID.
func (db *DriveDB) StartRun(version, gitSHA, configJSON string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO runs (run_id, started_at, version, git_sha, config_json) VALUES (?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), version, gitSHA, configJSON,
	)
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}
	return id, nil
}

// EndRun stamps the end of a processing session.
func (db *DriveDB) EndRun(runID string) error {
	res, err := db.Exec(`UPDATE runs SET ended_at = ? WHERE run_id = ?`, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown run %q", runID)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (db *DriveDB) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		`SELECT run_id, started_at, ended_at, version, git_sha, config_json
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var configJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.EndedAt, &r.Version, &r.GitSHA, &configJSON); err != nil {
			return nil, err
		}
		r.ConfigJSON = configJSON.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// OperatorEvent is one operator-visible state change recorded for a run.
type OperatorEvent struct {
	ID        string    `json:"event_id"`
	RunID     string    `json:"run_id"`
	Frame     uint64    `json:"frame"`
	Type      string    `json:"event_type"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordOperatorEvent persists one operator event.
func (db *DriveDB) RecordOperatorEvent(ev OperatorEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO operator_events (event_id, run_id, frame, event_type, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RunID, ev.Frame, ev.Type, ev.Detail, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record operator event: %w", err)
	}
	return nil
}

// RecentEvents returns the latest operator events, newest first. eventType
// filters to one type when non-empty.
func (db *DriveDB) RecentEvents(limit int, eventType string) ([]OperatorEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_id, run_id, frame, event_type, detail, created_at
		FROM operator_events`
	args := []any{}
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []OperatorEvent
	for rows.Next() {
		var ev OperatorEvent
		var detail sql.NullString
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Frame, &ev.Type, &detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Detail = detail.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// FrameDecisionRecord is the persisted (sampled) form of one frame decision.
type FrameDecisionRecord struct {
	RunID           string    `json:"run_id"`
	Frame           uint64    `json:"frame"`
	FrameTime       time.Time `json:"frame_time"`
	FCWSState       string    `json:"fcws_state"`
	LDWSState       string    `json:"ldws_state"`
	LKASState       string    `json:"lkas_state"`
	SteeringAngle   float64   `json:"steering_angle"`
	NearestDistance *float64  `json:"nearest_distance,omitempty"`
	RiskyCount      int       `json:"risky_count"`
	LaneCenterX     *float64  `json:"lane_center_x,omitempty"`
	VehicleOffset   *float64  `json:"vehicle_offset,omitempty"`
	ArbiterMode     string    `json:"arbiter_mode"`
	LatencyMS       float64   `json:"latency_ms"`
	SafeMode        bool      `json:"safe_mode"`
}

// RecordFrameDecision persists one sampled frame decision.
func (db *DriveDB) RecordFrameDecision(d FrameDecisionRecord) error {
	_, err := db.Exec(
		`INSERT INTO frame_decisions (
			run_id, frame, frame_time, fcws_state, ldws_state, lkas_state,
			steering_angle, nearest_distance, risky_count, lane_center_x,
			vehicle_offset, arbiter_mode, latency_ms, safe_mode
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RunID, d.Frame, d.FrameTime, d.FCWSState, d.LDWSState, d.LKASState,
		d.SteeringAngle, d.NearestDistance, d.RiskyCount, d.LaneCenterX,
		d.VehicleOffset, d.ArbiterMode, d.LatencyMS, d.SafeMode,
	)
	if err != nil {
		return fmt.Errorf("failed to record frame decision: %w", err)
	}
	return nil
}

// DecisionSeries returns the persisted decisions for a run in frame order.
// runID may be empty to read the most recent run.
func (db *DriveDB) DecisionSeries(runID string, limit int) ([]FrameDecisionRecord, error) {
	if limit <= 0 {
		limit = 10000
	}
	if runID == "" {
		row := db.QueryRow(`SELECT run_id FROM runs ORDER BY started_at DESC LIMIT 1`)
		if err := row.Scan(&runID); err != nil {
			if err == sql.ErrNoRows {
				return nil, nil
			}
			return nil, err
		}
	}

	rows, err := db.Query(
		`SELECT run_id, frame, frame_time, fcws_state, ldws_state, lkas_state,
			steering_angle, nearest_distance, risky_count, lane_center_x,
			vehicle_offset, arbiter_mode, latency_ms, safe_mode
		 FROM frame_decisions WHERE run_id = ? ORDER BY frame ASC LIMIT ?`,
		runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []FrameDecisionRecord
	for rows.Next() {
		var d FrameDecisionRecord
		if err := rows.Scan(
			&d.RunID, &d.Frame, &d.FrameTime, &d.FCWSState, &d.LDWSState, &d.LKASState,
			&d.SteeringAngle, &d.NearestDistance, &d.RiskyCount, &d.LaneCenterX,
			&d.VehicleOffset, &d.ArbiterMode, &d.LatencyMS, &d.SafeMode,
		); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// WarningCounts summarizes persisted decisions per warning state for a run.
type WarningCounts struct {
	Frames       int64 `json:"frames"`
	FCWSWarning  int64 `json:"fcws_warning"`
	FCWSCritical int64 `json:"fcws_critical"`
	LDWSWarning  int64 `json:"ldws_warning"`
	LKASActive   int64 `json:"lkas_active"`
}

// WarningRollup aggregates the persisted decisions for a run. An empty runID
// reads the most recent run.
func (db *DriveDB) WarningRollup(runID string) (WarningCounts, error) {
	var counts WarningCounts
	if runID == "" {
		row := db.QueryRow(`SELECT run_id FROM runs ORDER BY started_at DESC LIMIT 1`)
		if err := row.Scan(&runID); err != nil {
			if err == sql.ErrNoRows {
				return counts, nil
			}
			return counts, err
		}
	}

	row := db.QueryRow(
		`SELECT COUNT(*),
			SUM(CASE WHEN fcws_state = 'WARNING' THEN 1 ELSE 0 END),
			SUM(CASE WHEN fcws_state = 'CRITICAL' THEN 1 ELSE 0 END),
			SUM(CASE WHEN ldws_state != 'SAFE' THEN 1 ELSE 0 END),
			SUM(CASE WHEN lkas_state = 'ACTIVE' THEN 1 ELSE 0 END)
		 FROM frame_decisions WHERE run_id = ?`, runID)

	var fcwsWarn, fcwsCrit, ldwsWarn, lkasActive sql.NullInt64
	if err := row.Scan(&counts.Frames, &fcwsWarn, &fcwsCrit, &ldwsWarn, &lkasActive); err != nil {
		return counts, err
	}
	counts.FCWSWarning = fcwsWarn.Int64
	counts.FCWSCritical = fcwsCrit.Int64
	counts.LDWSWarning = ldwsWarn.Int64
	counts.LKASActive = lkasActive.Int64
	return counts, nil
}
