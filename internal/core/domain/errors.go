package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuth         = errors.New("authentication failed")
	ErrNavigation   = errors.New("navigation failed")
	ErrNotFound     = errors.New("record not found")
	ErrTransport    = errors.New("transport failure")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	// ErrNoDocument means the record offers no document action at all.
	ErrNoDocument = errors.New("no document available")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// StepError tags a per-item failure with the pipeline step that produced it.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	if e == nil || e.Err == nil {
		return "step error"
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func AtStep(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}

// FailedStep returns the step name recorded on err, if any.
func FailedStep(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return ""
}

// StatusForError maps a per-item failure to its result status.
func StatusForError(err error) ResultStatus {
	switch {
	case err == nil:
		return ResultDownloaded
	case IsKind(err, ErrNotFound):
		return ResultNoResults
	case IsKind(err, ErrNavigation):
		return ResultNavigationError
	case IsKind(err, ErrInvalidInput):
		// Addresses are validated before a run starts; one that still
		// reaches the locator is reported with the generic failure status.
		return ResultTransportError
	default:
		return ResultTransportError
	}
}
