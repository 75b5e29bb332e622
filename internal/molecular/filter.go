package molecular

import (
	"time"

	"github.com/trial-eligibility-engine/internal/domain"
)

// TestFilter decides which molecular tests take part in an evaluation.
type TestFilter struct {
	IncludeInsufficientQuality bool
	// Cutoff is a fixed oldest acceptable test date. When set it takes
	// precedence over MaxTestAge.
	Cutoff *time.Time
	// MaxTestAge bounds test age relative to Now at every Apply. Zero or
	// negative disables the age gate.
	MaxTestAge time.Duration
	// Now is the clock for MaxTestAge. Nil means time.Now.
	Now func() time.Time
}

// NewTestFilter builds a filter from configuration. The age cutoff follows the
// wall clock.
func NewTestFilter(cfg domain.MolecularConfig) TestFilter {
	return TestFilter{
		IncludeInsufficientQuality: cfg.IncludeInsufficientQuality,
		MaxTestAge:                 cfg.MaxTestAge,
		Now:                        time.Now,
	}
}

// cutoff returns the oldest acceptable test date for this call, or nil when
// no age gate applies.
func (f TestFilter) cutoff() *time.Time {
	if f.Cutoff != nil {
		return f.Cutoff
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	return domain.MolecularConfig{MaxTestAge: f.MaxTestAge}.CutoffDate(now())
}

// Apply returns the tests that pass the quality and age gates, in input order.
//
// With a cutoff, a test is kept when it is the most recent test or newer than
// the cutoff. A panel test must in addition be strictly newer than the most
// recent whole-genome test, if there is one. Undated tests are only kept when
// no remaining test carries a date.
func (f TestFilter) Apply(tests []domain.MolecularTest) []domain.MolecularTest {
	kept := make([]domain.MolecularTest, 0, len(tests))
	for _, t := range tests {
		if t.HasSufficientQuality || f.IncludeInsufficientQuality {
			kept = append(kept, t)
		}
	}
	cutoff := f.cutoff()
	if cutoff == nil || len(kept) == 0 {
		return kept
	}

	var mostRecent, mostRecentWholeGenome *time.Time
	for _, t := range kept {
		if t.Date == nil {
			continue
		}
		if mostRecent == nil || t.Date.After(*mostRecent) {
			mostRecent = t.Date
		}
		if t.IsWholeGenome() && (mostRecentWholeGenome == nil || t.Date.After(*mostRecentWholeGenome)) {
			mostRecentWholeGenome = t.Date
		}
	}

	out := make([]domain.MolecularTest, 0, len(kept))
	for _, t := range kept {
		if keep(t, *cutoff, mostRecent, mostRecentWholeGenome) {
			out = append(out, t)
		}
	}
	return out
}

func keep(t domain.MolecularTest, cutoff time.Time, mostRecent, mostRecentWholeGenome *time.Time) bool {
	if t.Date == nil {
		return mostRecent == nil
	}
	if t.IsPanel() && mostRecentWholeGenome != nil && !t.Date.After(*mostRecentWholeGenome) {
		return false
	}
	return !t.Date.Before(*mostRecent) || t.Date.After(cutoff)
}
