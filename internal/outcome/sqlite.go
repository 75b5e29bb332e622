package outcome

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite outcome store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS evaluation_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		patient_id TEXT NOT NULL,
		rule_name TEXT NOT NULL,
		result TEXT NOT NULL,
		recoverable INTEGER NOT NULL DEFAULT 0,
		evaluation TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, patient_id, rule_name)
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_patient_id ON evaluation_outcomes(patient_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_created_at ON evaluation_outcomes(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or replaces the outcome of a rule for a patient in a run.
func (s *SQLiteStore) Save(ctx context.Context, outcome *Outcome) error {
	evaluation, err := encodeEvaluation(outcome.Evaluation)
	if err != nil {
		return err
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}

	var existingID int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM evaluation_outcomes WHERE run_id = ? AND patient_id = ? AND rule_name = ?",
		outcome.RunID, outcome.PatientID, outcome.RuleName,
	).Scan(&existingID)

	if err == nil {
		outcome.ID = existingID
		_, err = s.db.ExecContext(ctx, `
			UPDATE evaluation_outcomes SET
				result = ?,
				recoverable = ?,
				evaluation = ?
			WHERE id = ?
		`,
			string(outcome.Result),
			outcome.Recoverable,
			string(evaluation),
			existingID,
		)
		return err
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluation_outcomes (
			run_id, patient_id, rule_name, result, recoverable, evaluation, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		outcome.RunID,
		outcome.PatientID,
		outcome.RuleName,
		string(outcome.Result),
		outcome.Recoverable,
		string(evaluation),
		outcome.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	outcome.ID = id

	return nil
}

const sqliteSelect = `
	SELECT id, run_id, patient_id, rule_name, result, recoverable, evaluation, created_at
	FROM evaluation_outcomes`

// Get returns the outcome of a rule for a patient in a run.
func (s *SQLiteStore) Get(ctx context.Context, runID, patientID, ruleName string) (*Outcome, error) {
	row := s.db.QueryRowContext(ctx,
		sqliteSelect+" WHERE run_id = ? AND patient_id = ? AND rule_name = ? LIMIT 1",
		runID, patientID, ruleName)

	o, err := scanOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return o, nil
}

// ListByPatient returns the outcomes of a patient, newest first.
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteSelect+" WHERE patient_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

// List returns all outcomes, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteSelect+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*Outcome, error) {
	defer rows.Close()

	var result []*Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// Count returns the total number of outcomes.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evaluation_outcomes").Scan(&count)
	return count, err
}

// Delete removes an outcome by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM evaluation_outcomes WHERE id = ?", id)
	return err
}

// ExportJSON exports all outcomes to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list outcomes: %w", err)
	}
	return writeExport(writer, all)
}

// ImportJSON imports outcomes from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importOutcomes(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
