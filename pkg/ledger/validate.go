package ledger

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
)

// Validate checks an entry's content. All problems are collected into a
// single *ValidationError; nil means the entry may be appended.
func Validate(e *Entry) error {
	var problems *multierror.Error

	if e.Commit.ID == "" {
		problems = multierror.Append(problems, fmt.Errorf("commit id is empty"))
	}
	if e.Date < 0 {
		problems = multierror.Append(problems, fmt.Errorf("date %d is negative", e.Date))
	}

	seen := make(map[string]bool, len(e.Benches))
	for i, m := range e.Benches {
		if m.Name == "" {
			problems = multierror.Append(problems, fmt.Errorf("bench %d has no name", i))
		} else if seen[m.Name] {
			problems = multierror.Append(problems, fmt.Errorf("bench %q appears more than once", m.Name))
		}
		seen[m.Name] = true

		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			problems = multierror.Append(problems, fmt.Errorf("bench %q has non-finite value %v", m.Name, m.Value))
		}
	}

	if problems.ErrorOrNil() == nil {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func multierrorOf(errs ...error) *multierror.Error {
	return multierror.Append(nil, errs...)
}
