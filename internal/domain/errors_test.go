package domain

import (
	"errors"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Invalid input",
			code:      ErrCodeInvalidInput,
			message:   "Invalid patient record",
			details:   "patient_id is required",
			requestID: "req-123",
		},
		{
			name:      "Unknown rule",
			code:      ErrCodeUnknownRule,
			message:   "Rule not registered",
			details:   "HAS_EGFR_AMPLIFICATION",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("patient_id", "patient id is required", "")

	expectedError := "validation error for field 'patient_id': patient id is required"
	if err.Error() != expectedError {
		t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
	}
}

func TestPatientRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  PatientRecord
		wantErr bool
	}{
		{
			name:    "Valid minimal record",
			record:  PatientRecord{PatientID: "ACTN-01"},
			wantErr: false,
		},
		{
			name:    "Missing patient id",
			record:  PatientRecord{},
			wantErr: true,
		},
		{
			name: "Unknown coverage target",
			record: PatientRecord{
				PatientID: "ACTN-02",
				MolecularTests: []MolecularTest{{
					ExperimentType: ExperimentPanel,
					TargetCoverage: map[string][]MolecularTestTarget{"EGFR": {"METHYLATION"}},
				}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Errorf("Expected ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestMolecularConfigCutoffDate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if got := (MolecularConfig{}).CutoffDate(now); got != nil {
		t.Errorf("Expected no cutoff, got %v", got)
	}

	got := (MolecularConfig{MaxTestAge: 24 * time.Hour}).CutoffDate(now)
	if got == nil || !got.Equal(now.AddDate(0, 0, -1)) {
		t.Errorf("Expected cutoff one day before now, got %v", got)
	}
}
