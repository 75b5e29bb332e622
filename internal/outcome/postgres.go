package outcome

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL outcome store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL outcome store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or replaces the outcome of a rule for a patient in a run.
func (s *PostgresStore) Save(ctx context.Context, outcome *Outcome) error {
	evaluation, err := encodeEvaluation(outcome.Evaluation)
	if err != nil {
		return err
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO evaluation_outcomes (
			run_id, patient_id, rule_name, result, recoverable, evaluation, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, patient_id, rule_name) DO UPDATE SET
			result = EXCLUDED.result,
			recoverable = EXCLUDED.recoverable,
			evaluation = EXCLUDED.evaluation
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		outcome.RunID,
		outcome.PatientID,
		outcome.RuleName,
		string(outcome.Result),
		outcome.Recoverable,
		evaluation,
		outcome.CreatedAt,
	).Scan(&outcome.ID, &outcome.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert outcome: %w", err)
	}

	return nil
}

const postgresSelect = `
	SELECT id, run_id, patient_id, rule_name, result, recoverable, evaluation, created_at
	FROM evaluation_outcomes`

// Get returns the outcome of a rule for a patient in a run.
func (s *PostgresStore) Get(ctx context.Context, runID, patientID, ruleName string) (*Outcome, error) {
	row := s.db.QueryRowContext(ctx,
		postgresSelect+" WHERE run_id = $1 AND patient_id = $2 AND rule_name = $3 LIMIT 1",
		runID, patientID, ruleName)

	o, err := scanOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan outcome: %w", err)
	}
	return o, nil
}

// ListByPatient returns the outcomes of a patient, newest first.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		postgresSelect+" WHERE patient_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
		patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	return collect(rows)
}

// List returns all outcomes, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		postgresSelect+" ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	return collect(rows)
}

// Count returns the total number of outcomes.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evaluation_outcomes").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return count, nil
}

// Delete removes an outcome by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM evaluation_outcomes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete outcome: %w", err)
	}
	return nil
}

// ExportJSON exports all outcomes to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list outcomes: %w", err)
	}
	return writeExport(writer, all)
}

// ImportJSON imports outcomes from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importOutcomes(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
