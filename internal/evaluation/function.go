package evaluation

import "github.com/trial-eligibility-engine/internal/domain"

// Function is an eligibility rule evaluated against a whole patient record.
type Function interface {
	Evaluate(record domain.PatientRecord) domain.Evaluation
}

// FunctionFunc adapts a plain function to Function.
type FunctionFunc func(record domain.PatientRecord) domain.Evaluation

// Evaluate calls f(record).
func (f FunctionFunc) Evaluate(record domain.PatientRecord) domain.Evaluation {
	return f(record)
}

func evaluateAll(record domain.PatientRecord, functions []Function) []domain.Evaluation {
	out := make([]domain.Evaluation, 0, len(functions))
	for _, fn := range functions {
		out = append(out, fn.Evaluate(record))
	}
	return out
}

// AnyOf passes when any of functions passes. See Or.
func AnyOf(functions ...Function) Function {
	return FunctionFunc(func(record domain.PatientRecord) domain.Evaluation {
		return Or(evaluateAll(record, functions)...)
	})
}

// AllOf passes when all of functions pass. See And.
func AllOf(functions ...Function) Function {
	return FunctionFunc(func(record domain.PatientRecord) domain.Evaluation {
		return And(evaluateAll(record, functions)...)
	})
}

// Negate inverts fn. See Not.
func Negate(fn Function) Function {
	return FunctionFunc(func(record domain.PatientRecord) domain.Evaluation {
		return Not(fn.Evaluate(record))
	})
}

// WarnIfPasses reports a passing fn as a warning. See WarnIf.
func WarnIfPasses(fn Function) Function {
	return FunctionFunc(func(record domain.PatientRecord) domain.Evaluation {
		return WarnIf(fn.Evaluate(record))
	})
}
