package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrValidation      = errors.New("invalid entry")
	ErrDuplicateCommit = errors.New("duplicate commit")
	ErrMalformedLedger = errors.New("malformed ledger")
	ErrNotFound        = errors.New("not found")
)

// ValidationError reports every problem found in a malformed Entry.
// The caller must fix its input; it is never retried.
type ValidationError struct {
	Problems *multierror.Error
}

func (e *ValidationError) Error() string {
	if e.Problems == nil || len(e.Problems.Errors) == 0 {
		return ErrValidation.Error()
	}
	if len(e.Problems.Errors) == 1 {
		return fmt.Sprintf("%s: %v", ErrValidation, e.Problems.Errors[0])
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.TrimSpace(e.Problems.Error()))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Unwrap exposes the individual problems
func (e *ValidationError) Unwrap() error { return e.Problems.ErrorOrNil() }

// DuplicateCommitError is returned when a group already holds an entry for the
// same commit and tool
type DuplicateCommitError struct {
	Group    string
	CommitID string
	Tool     string
}

func (e *DuplicateCommitError) Error() string {
	return fmt.Sprintf("%s: group %q already has commit %s for tool %q", ErrDuplicateCommit, e.Group, e.CommitID, e.Tool)
}

func (e *DuplicateCommitError) Is(target error) bool { return target == ErrDuplicateCommit }

// MalformedLedgerError is returned by Load when the persisted form cannot be used
type MalformedLedgerError struct {
	Reason string
	Err    error
}

func (e *MalformedLedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedLedger, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedLedger, e.Reason)
}

func (e *MalformedLedgerError) Is(target error) bool { return target == ErrMalformedLedger }

func (e *MalformedLedgerError) Unwrap() error { return e.Err }

// NotFoundError is returned when a series holds no points
type NotFoundError struct {
	Group string
	Tool  string
	Name  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("benchmark %q (tool %q) in group %q: %s", e.Name, e.Tool, e.Group, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func malformed(reason string, err error) error {
	return &MalformedLedgerError{Reason: reason, Err: err}
}
