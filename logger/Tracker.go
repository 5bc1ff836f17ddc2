package logger

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	config TEXT NOT NULL DEFAULT '{}',
	started_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS scalars (
	run_id TEXT NOT NULL REFERENCES runs(id),
	step INTEGER NOT NULL,
	tag TEXT NOT NULL,
	value REAL
);
CREATE INDEX IF NOT EXISTS idx_scalars_run_tag ON scalars(run_id, tag);
`

// Tracker is a ScalarWriter which records runs and their scalars in
// an SQLite database shared by many runs. Each run is identified by a
// random UUID.
type Tracker struct {
	db    *sql.DB
	runID string
}

// Point is a single scalar recorded by a Tracker
type Point struct {
	Step  int
	Value float64
}

// NewTracker opens or creates the database path and registers a new
// run with the given name
func NewTracker(path, name string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("newTracker: could not create directory: %v",
			err)
	}

	// Runs of separate processes may share the database
	dsn := fmt.Sprintf("file:%v?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("newTracker: could not open database: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("newTracker: could not create tables: %v", err)
	}

	t := &Tracker{db: db, runID: uuid.New().String()}
	_, err = db.Exec(
		"INSERT INTO runs (id, name, started_at) VALUES (?, ?, ?)",
		t.runID, name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("newTracker: could not register run: %v", err)
	}

	return t, nil
}

// RunID returns the ID of the tracked run
func (t *Tracker) RunID() string {
	return t.runID
}

// SetConfig records the JSON encoded configuration of the run
func (t *Tracker) SetConfig(config []byte) error {
	_, err := t.db.Exec("UPDATE runs SET config = ? WHERE id = ?",
		string(config), t.runID)
	if err != nil {
		return fmt.Errorf("setConfig: %v", err)
	}
	return nil
}

// WriteScalars records the scalars of a step in a single transaction
func (t *Tracker) WriteScalars(step int, scalars map[string]float64) error {
	tx, err := t.db.Begin()
	if err != nil {
		return fmt.Errorf("writeScalars: %v", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO scalars (run_id, step, tag, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("writeScalars: %v", err)
	}
	defer stmt.Close()

	for tag, value := range scalars {
		// SQLite has no NaN, NULL stands in for it
		v := sql.NullFloat64{Float64: value, Valid: !math.IsNaN(value)}
		if _, err := stmt.Exec(t.runID, step, tag, v); err != nil {
			tx.Rollback()
			return fmt.Errorf("writeScalars: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("writeScalars: %v", err)
	}
	return nil
}

// Scalars returns the values recorded for tag in the tracked run,
// ordered by step
func (t *Tracker) Scalars(tag string) ([]Point, error) {
	rows, err := t.db.Query(
		"SELECT step, value FROM scalars WHERE run_id = ? AND tag = ? "+
			"ORDER BY step", t.runID, tag)
	if err != nil {
		return nil, fmt.Errorf("scalars: %v", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var (
			p     Point
			value sql.NullFloat64
		)
		if err := rows.Scan(&p.Step, &value); err != nil {
			return nil, fmt.Errorf("scalars: %v", err)
		}
		p.Value = math.NaN()
		if value.Valid {
			p.Value = value.Float64
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Config returns the recorded configuration of the tracked run
func (t *Tracker) Config() (string, error) {
	var config string
	err := t.db.QueryRow("SELECT config FROM runs WHERE id = ?",
		t.runID).Scan(&config)
	if err != nil {
		return "", fmt.Errorf("config: %v", err)
	}
	return config, nil
}

// Close closes the database
func (t *Tracker) Close() error {
	return t.db.Close()
}
