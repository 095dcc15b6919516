package trace

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// SQLiteRecorder persists the run audit trail in a SQLite database. It
// implements core.TraceRecorder; all writes are best-effort from the
// engine's point of view, the engine logs and continues on error.
type SQLiteRecorder struct {
	dbPath string
	db     *sql.DB
	mu     sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the trace database at dbPath.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening trace database: %w", err)
	}

	r := &SQLiteRecorder{dbPath: dbPath, db: db}
	if err := r.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return r, nil
}

// Close closes the database connection.
func (r *SQLiteRecorder) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRecorder) migrate() error {
	var version int
	if err := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		version = 0
	}
	if version < 1 {
		if _, err := r.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// BeginRun records the start of a run.
func (r *SQLiteRecorder) BeginRun(runID, input string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		"INSERT OR REPLACE INTO runs (id, input, started_at) VALUES (?, ?, ?)",
		runID, input, time.Now().UTC(),
	)
	return err
}

// RecordStage records one stage transition.
func (r *SQLiteRecorder) RecordStage(runID string, rec core.StageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		"INSERT INTO stage_transitions (run_id, from_stage, to_stage, reason, at) VALUES (?, ?, ?, ?, ?)",
		runID, string(rec.From), string(rec.To), rec.Reason, rec.At.UTC(),
	)
	return err
}

// RecordDispatch records how one producer dispatch settled.
func (r *SQLiteRecorder) RecordDispatch(runID string, producer core.Producer, slot core.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		"INSERT INTO dispatches (run_id, producer, status, attempt, error, error_category, at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		runID, producer.String(), string(slot.Status), slot.Dispatches,
		slot.LastError, string(slot.ErrorCategory), time.Now().UTC(),
	)
	return err
}

// RecordGate records one gate result.
func (r *SQLiteRecorder) RecordGate(runID string, res core.GateResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		"INSERT INTO gate_results (run_id, gate, verdict, target, reason, warnings, pass, at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		runID, res.Gate.String(), string(res.Verdict), res.Target.String(),
		res.Reason, strings.Join(res.Warnings, "\n"), res.Pass, time.Now().UTC(),
	)
	return err
}

// EndRun records the terminal stage and reason.
func (r *SQLiteRecorder) EndRun(runID string, stage core.Stage, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		"UPDATE runs SET ended_at = ?, final_stage = ?, end_reason = ? WHERE id = ?",
		time.Now().UTC(), string(stage), reason, runID,
	)
	return err
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID         string
	Input      string
	StartedAt  time.Time
	EndedAt    sql.NullTime
	FinalStage string
	EndReason  string
}

// StageRow is one recorded stage transition.
type StageRow struct {
	From   string
	To     string
	Reason string
	At     time.Time
}

// DispatchRow is one recorded producer dispatch.
type DispatchRow struct {
	Producer      string
	Status        string
	Attempt       int
	Error         string
	ErrorCategory string
	At            time.Time
}

// GateRow is one recorded gate result.
type GateRow struct {
	Gate    string
	Verdict string
	Target  string
	Reason  string
	Pass    int
	At      time.Time
}

// ListRuns returns all recorded runs, most recent first.
func (r *SQLiteRecorder) ListRuns() ([]RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.db.Query(
		"SELECT id, input, started_at, ended_at, COALESCE(final_stage, ''), COALESCE(end_reason, '') FROM runs ORDER BY started_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.Input, &s.StartedAt, &s.EndedAt, &s.FinalStage, &s.EndReason); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stages returns the stage transitions of a run in record order.
func (r *SQLiteRecorder) Stages(runID string) ([]StageRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.db.Query(
		"SELECT from_stage, to_stage, COALESCE(reason, ''), at FROM stage_transitions WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StageRow
	for rows.Next() {
		var s StageRow
		if err := rows.Scan(&s.From, &s.To, &s.Reason, &s.At); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Dispatches returns the dispatch records of a run in record order.
func (r *SQLiteRecorder) Dispatches(runID string) ([]DispatchRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.db.Query(
		"SELECT producer, status, attempt, COALESCE(error, ''), COALESCE(error_category, ''), at FROM dispatches WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DispatchRow
	for rows.Next() {
		var d DispatchRow
		if err := rows.Scan(&d.Producer, &d.Status, &d.Attempt, &d.Error, &d.ErrorCategory, &d.At); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Gates returns the gate results of a run in record order.
func (r *SQLiteRecorder) Gates(runID string) ([]GateRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.db.Query(
		"SELECT gate, verdict, COALESCE(target, ''), COALESCE(reason, ''), pass, at FROM gate_results WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GateRow
	for rows.Next() {
		var g GateRow
		if err := rows.Scan(&g.Gate, &g.Verdict, &g.Target, &g.Reason, &g.Pass, &g.At); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

var _ core.TraceRecorder = (*SQLiteRecorder)(nil)
