// Package outcome stores the final evaluations of eligibility runs so they
// can be reported on after the fact.
package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/trial-eligibility-engine/internal/domain"
)

// Outcome is the stored evaluation of one rule for one patient in one run.
type Outcome struct {
	ID          int64                   `json:"id,omitempty"`
	RunID       string                  `json:"run_id"`
	PatientID   string                  `json:"patient_id"`
	RuleName    string                  `json:"rule_name"`
	Result      domain.EvaluationResult `json:"result"`
	Recoverable bool                    `json:"recoverable"`
	Evaluation  domain.Evaluation       `json:"evaluation"`
	CreatedAt   time.Time               `json:"created_at"`
}

// New builds an Outcome from an evaluation.
func New(runID, patientID, ruleName string, e domain.Evaluation) *Outcome {
	return &Outcome{
		RunID:       runID,
		PatientID:   patientID,
		RuleName:    ruleName,
		Result:      e.Result,
		Recoverable: e.Recoverable,
		Evaluation:  e,
	}
}

// Store defines the interface for outcome storage operations.
type Store interface {
	// Save stores an outcome. Saving the same run, patient and rule again
	// replaces the stored evaluation.
	Save(ctx context.Context, outcome *Outcome) error

	// Get returns the outcome of a rule for a patient in a run, or nil.
	Get(ctx context.Context, runID, patientID, ruleName string) (*Outcome, error)

	// ListByPatient returns the outcomes of a patient, newest first.
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Outcome, error)

	// List returns all outcomes, newest first.
	List(ctx context.Context, limit, offset int) ([]*Outcome, error)

	// Count returns the total number of outcomes.
	Count(ctx context.Context) (int64, error)

	// Delete removes an outcome by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all outcomes to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports outcomes from a JSON reader, skipping those already stored.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string     `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	Count      int        `json:"count"`
	Outcomes   []*Outcome `json:"outcomes"`
}

const exportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanOutcome scans a row into an Outcome.
func scanOutcome(s scanner) (*Outcome, error) {
	o := &Outcome{}
	var result string
	var evaluation []byte

	if err := s.Scan(
		&o.ID, &o.RunID, &o.PatientID, &o.RuleName,
		&result, &o.Recoverable, &evaluation, &o.CreatedAt,
	); err != nil {
		return nil, err
	}

	o.Result = domain.EvaluationResult(result)
	if err := json.Unmarshal(evaluation, &o.Evaluation); err != nil {
		return nil, fmt.Errorf("failed to decode evaluation: %w", err)
	}
	return o, nil
}

func encodeEvaluation(e domain.Evaluation) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode evaluation: %w", err)
	}
	return data, nil
}

func writeExport(writer io.Writer, all []*Outcome) error {
	export := &Export{
		Version:    exportVersion,
		ExportedAt: time.Now(),
		Count:      len(all),
		Outcomes:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// importOutcomes saves every outcome of the export not yet present in store.
func importOutcomes(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, o := range export.Outcomes {
		existing, err := store.Get(ctx, o.RunID, o.PatientID, o.RuleName)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		if o.Result == "" {
			o.Result = o.Evaluation.Result
		}
		if err := store.Save(ctx, o); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
