// Package store provides SQLite-backed persistence for Project Hub.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"projecthub/internal/models"
)

// Store provides access to the Project Hub SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS project_status (
		project_id TEXT PRIMARY KEY,
		ready INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS acquisitions (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		error TEXT,
		exit_code INTEGER,
		dir TEXT,
		log TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS acquisition_locks (
		project_id TEXT PRIMARY KEY,
		holder_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_acquisitions_project ON acquisitions(project_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Readiness Operations ---

// IsReady reports whether a project completed a full acquisition. A project
// with no status row has never been acquired.
func (s *Store) IsReady(projectID string) (bool, error) {
	var ready int
	err := s.db.QueryRow(
		`SELECT ready FROM project_status WHERE project_id = ?`,
		projectID,
	).Scan(&ready)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query status: %w", err)
	}
	return ready == 1, nil
}

// SetReady records a project's readiness.
func (s *Store) SetReady(projectID string, ready bool) error {
	val := 0
	if ready {
		val = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO project_status (project_id, ready, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET ready = excluded.ready, updated_at = excluded.updated_at`,
		projectID, val, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set ready: %w", err)
	}
	return nil
}

// --- Acquisition Operations ---

// CreateAcquisition inserts a new acquisition run record in the pending stage.
func (s *Store) CreateAcquisition(projectID string) (*models.Acquisition, error) {
	now := time.Now().UTC()
	acq := &models.Acquisition{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Stage:     models.StagePending,
		StartedAt: now,
	}

	_, err := s.db.Exec(
		`INSERT INTO acquisitions (id, project_id, stage, started_at) VALUES (?, ?, ?, ?)`,
		acq.ID, acq.ProjectID, acq.Stage, acq.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert acquisition: %w", err)
	}
	return acq, nil
}

// UpdateAcquisitionStage advances a run to a non-terminal stage.
func (s *Store) UpdateAcquisitionStage(id string, stage models.AcquisitionStage) error {
	_, err := s.db.Exec(
		`UPDATE acquisitions SET stage = ? WHERE id = ?`,
		stage, id,
	)
	return err
}

// FinishAcquisition records a run's terminal stage together with its outcome.
func (s *Store) FinishAcquisition(id string, stage models.AcquisitionStage, dir, errMsg string, exitCode int, log string) error {
	_, err := s.db.Exec(
		`UPDATE acquisitions SET stage = ?, dir = ?, error = ?, exit_code = ?, log = ?, ended_at = ? WHERE id = ?`,
		stage, dir, errMsg, exitCode, log, time.Now().UTC(), id,
	)
	return err
}

// GetAcquisitionsForProject returns a project's runs, newest first.
func (s *Store) GetAcquisitionsForProject(projectID string) ([]models.Acquisition, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, stage, error, exit_code, dir, log, started_at, ended_at
		 FROM acquisitions WHERE project_id = ? ORDER BY started_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query acquisitions: %w", err)
	}
	defer rows.Close()

	var acqs []models.Acquisition
	for rows.Next() {
		var acq models.Acquisition
		var errMsg, dir, logText sql.NullString
		var exitCode sql.NullInt64
		var endedAt sql.NullTime

		if err := rows.Scan(&acq.ID, &acq.ProjectID, &acq.Stage, &errMsg, &exitCode, &dir, &logText, &acq.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan acquisition: %w", err)
		}
		if errMsg.Valid {
			acq.Error = errMsg.String
		}
		if exitCode.Valid {
			acq.ExitCode = int(exitCode.Int64)
		}
		if dir.Valid {
			acq.Dir = dir.String
		}
		if logText.Valid {
			acq.Log = logText.String
		}
		if endedAt.Valid {
			acq.EndedAt = endedAt.Time
		}
		acqs = append(acqs, acq)
	}
	return acqs, rows.Err()
}

// --- Lock Operations ---

// ErrProjectLocked indicates an acquisition is already in flight for the
// project.
var ErrProjectLocked = fmt.Errorf("acquisition already in flight")

// AcquireLock attempts to take the per-project acquisition lock atomically.
// It first cleans up expired locks, then inserts a new one. If a live lock
// exists, it returns ErrProjectLocked.
func (s *Store) AcquireLock(projectID, holderID string, ttl time.Duration) (*models.AcquisitionLock, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	// Step 1: Clean up an expired lock for this project within the transaction
	_, err = tx.Exec(`DELETE FROM acquisition_locks WHERE project_id = ? AND expires_at <= ?`, projectID, now)
	if err != nil {
		return nil, fmt.Errorf("clean expired lock: %w", err)
	}

	// Step 2: Check for an existing live lock
	var existingHolder string
	err = tx.QueryRow(
		`SELECT holder_id FROM acquisition_locks WHERE project_id = ? AND expires_at > ?`,
		projectID, now,
	).Scan(&existingHolder)

	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing lock: %w", err)
	}
	if err != sql.ErrNoRows {
		return nil, ErrProjectLocked
	}

	// Step 3: Insert the new lock
	lock := &models.AcquisitionLock{
		ProjectID: projectID,
		HolderID:  holderID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	_, err = tx.Exec(
		`INSERT INTO acquisition_locks (project_id, holder_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		lock.ProjectID, lock.HolderID, lock.CreatedAt, lock.ExpiresAt,
	)
	if err != nil {
		// UNIQUE constraint violation means we lost a race
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "unique constraint") {
			return nil, ErrProjectLocked
		}
		return nil, fmt.Errorf("insert lock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return lock, nil
}

// GetLock retrieves the live lock for a project, if any.
func (s *Store) GetLock(projectID string) (*models.AcquisitionLock, error) {
	lock := &models.AcquisitionLock{}
	err := s.db.QueryRow(
		`SELECT project_id, holder_id, created_at, expires_at
		 FROM acquisition_locks WHERE project_id = ? AND expires_at > ?`,
		projectID, time.Now().UTC(),
	).Scan(&lock.ProjectID, &lock.HolderID, &lock.CreatedAt, &lock.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query lock: %w", err)
	}
	return lock, nil
}

// ReleaseLock releases a project's lock if held by holderID.
func (s *Store) ReleaseLock(projectID, holderID string) error {
	_, err := s.db.Exec(
		`DELETE FROM acquisition_locks WHERE project_id = ? AND holder_id = ?`,
		projectID, holderID,
	)
	return err
}
