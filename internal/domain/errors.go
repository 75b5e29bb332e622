package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidResult        = errors.New("invalid evaluation result")
	ErrInvalidConfiguration = errors.New("invalid evaluator configuration")
	ErrUnknownRule          = errors.New("unknown eligibility rule")
	ErrInvalidOntology      = errors.New("invalid disease ontology")
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeUnknownRule    = "UNKNOWN_RULE"
	ErrCodeStore          = "STORE_ERROR"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
	ErrCodeValidation     = "VALIDATION_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Validate checks that a patient record can be evaluated.
func (p PatientRecord) Validate() error {
	if p.PatientID == "" {
		return NewValidationError("patient_id", "patient id is required", p.PatientID)
	}
	for i, test := range p.MolecularTests {
		for gene, targets := range test.TargetCoverage {
			for _, t := range targets {
				if !t.IsValid() {
					return NewValidationError(
						fmt.Sprintf("molecular_tests[%d].target_coverage.%s", i, gene),
						"unknown molecular test target", string(t))
				}
			}
		}
	}
	return nil
}
