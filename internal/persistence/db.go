// Package persistence provides a SQLite archive of finished runs: their
// configuration, epicurve, per-step cases, final agent states and events.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/episim/internal/agents"
	"github.com/talgya/episim/internal/compartment"
	"github.com/talgya/episim/internal/engine"
)

// ErrRunNotFound is returned when a run ID is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a SQLite connection for the run archive.
type DB struct {
	conn *sqlx.DB
}

// Run is one archived simulation.
type Run struct {
	ID         string  `db:"id" json:"id"`
	Created    int64   `db:"created" json:"created"` // Unix seconds
	Model      string  `db:"model" json:"model"`
	Seed       int64   `db:"seed" json:"seed"`
	Steps      int     `db:"steps" json:"steps"`
	Population int     `db:"population" json:"population"`
	TotalCases int     `db:"total_cases" json:"total_cases"`
	Contacts   float64 `db:"contacts" json:"contacts"`
	Config     string  `db:"config" json:"config"`     // YAML
	Epicurve   string  `db:"epicurve" json:"epicurve"` // CSV
}

// AgentRow is an agent's final state in an archived run.
type AgentRow struct {
	ID         int    `db:"id"`
	Age        int    `db:"age"`
	State      string `db:"state"`
	Vaccinated bool   `db:"vaccinated"`
	Secondary  int    `db:"secondary"`
}

// Compartment decodes the archived state.
func (r AgentRow) Compartment() (compartment.State, bool) {
	return compartment.ParseCSV(r.State)
}

// NewRun describes a finished simulation under a fresh ID.
func NewRun(sim *engine.Simulation, seed int64, config string) Run {
	total := 0
	for _, c := range sim.Cases {
		total += c
	}
	return Run{
		ID:         uuid.NewString(),
		Created:    time.Now().Unix(),
		Model:      sim.Model().Name(),
		Seed:       seed,
		Steps:      sim.Step,
		Population: sim.Pop.Count(),
		TotalCases: total,
		Contacts:   sim.Sampler.Contacts(),
		Config:     config,
		Epicurve:   sim.RenderEpicurveCSV(""),
	}
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created INTEGER NOT NULL,
		model TEXT NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		population INTEGER NOT NULL,
		total_cases INTEGER NOT NULL,
		contacts REAL NOT NULL,
		config TEXT NOT NULL,
		epicurve TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_cases (
		run_id TEXT NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		cases INTEGER NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS run_agents (
		run_id TEXT NOT NULL REFERENCES runs(id),
		id INTEGER NOT NULL,
		age INTEGER NOT NULL,
		state TEXT NOT NULL,
		vaccinated INTEGER NOT NULL,
		secondary INTEGER NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		meta_json TEXT
	);

	CREATE TABLE IF NOT EXISTS archive_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun archives a finished simulation under run in one transaction.
func (db *DB) SaveRun(run Run, sim *engine.Simulation) error {
	slog.Info("archiving run", "id", run.ID, "model", run.Model, "steps", run.Steps, "agents", run.Population)

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExec(`INSERT INTO runs
		(id, created, model, seed, steps, population, total_cases, contacts, config, epicurve)
		VALUES (:id, :created, :model, :seed, :steps, :population, :total_cases, :contacts, :config, :epicurve)`,
		run)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	if err := saveCases(tx, run.ID, sim.Cases); err != nil {
		return fmt.Errorf("save cases: %w", err)
	}
	if err := saveAgents(tx, run.ID, sim.Pop.Snapshot()); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	if err := saveEvents(tx, run.ID, sim.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO archive_meta (key, value) VALUES ('last_run', ?)", run.ID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("run archived", "id", run.ID)
	return nil
}

func saveCases(tx *sqlx.Tx, runID string, cases []int) error {
	stmt, err := tx.Preparex("INSERT INTO run_cases (run_id, step, cases) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range cases {
		if _, err := stmt.Exec(runID, i+1, c); err != nil {
			return fmt.Errorf("insert step %d: %w", i+1, err)
		}
	}
	return nil
}

func saveAgents(tx *sqlx.Tx, runID string, agentList []agents.Agent) error {
	stmt, err := tx.Preparex(`INSERT INTO run_agents
		(run_id, id, age, state, vaccinated, secondary)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range agentList {
		vaccinated := 0
		if a.IsVaccinated() {
			vaccinated = 1
		}
		_, err := stmt.Exec(runID, a.ID, a.Age, a.State.CSV(), vaccinated, a.SecondaryInfections)
		if err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}
	return nil
}

func saveEvents(tx *sqlx.Tx, runID string, events []engine.Event) error {
	for _, e := range events {
		var meta sql.NullString
		if len(e.Meta) > 0 {
			b, err := json.Marshal(e.Meta)
			if err != nil {
				return fmt.Errorf("marshal event meta: %w", err)
			}
			meta = sql.NullString{String: string(b), Valid: true}
		}
		_, err := tx.Exec(
			"INSERT INTO events (run_id, step, description, category, meta_json) VALUES (?, ?, ?, ?, ?)",
			runID, e.Step, e.Description, e.Category, meta,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadRun returns the archived run with the given ID.
func (db *DB) LoadRun(id string) (Run, error) {
	var run Run
	err := db.conn.Get(&run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY created DESC, rowid DESC LIMIT ?",
		limit,
	)
	return runs, err
}

// RunCases returns a run's new cases per step.
func (db *DB) RunCases(id string) ([]int, error) {
	var cases []int
	err := db.conn.Select(&cases, "SELECT cases FROM run_cases WHERE run_id = ? ORDER BY step", id)
	return cases, err
}

// RunAgents returns a run's final agent states ordered by handle.
func (db *DB) RunAgents(id string) ([]AgentRow, error) {
	var rows []AgentRow
	err := db.conn.Select(&rows,
		"SELECT id, age, state, vaccinated, secondary FROM run_agents WHERE run_id = ? ORDER BY id",
		id,
	)
	return rows, err
}

// RecentEvents returns a run's most recent N events, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT step, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// LastRun returns the ID of the most recently archived run.
func (db *DB) LastRun() (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM archive_meta WHERE key = 'last_run'")
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	return value, err
}
