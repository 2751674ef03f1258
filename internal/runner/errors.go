package runner

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProcessFailed means the candidate could not be started or exited non-zero.
	ErrProcessFailed = errors.New("candidate process failed")
	// ErrTimeout means the candidate did not finish before its deadline and was killed.
	ErrTimeout = errors.New("candidate timed out")
	// ErrInvalidOutput means stdout did not hold exactly one JSON document.
	ErrInvalidOutput = errors.New("candidate output is not a single JSON document")
)

// ProcessError carries the failure kind, the exit status and the verbatim
// stderr of a candidate run. It matches its Kind with errors.Is; a zero Kind
// means ErrProcessFailed.
type ProcessError struct {
	Name     string
	Kind     error
	ExitCode int
	Detail   string
	Stderr   string
	Err      error
}

func (e *ProcessError) kind() error {
	if e.Kind == nil {
		return ErrProcessFailed
	}
	return e.Kind
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	cause := e.Err
	if cause != nil && errors.Is(cause, e.kind()) {
		fmt.Fprintf(&b, "%s: %v", e.Name, cause)
		cause = nil
	} else {
		fmt.Fprintf(&b, "%s: %v", e.Name, e.kind())
	}
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " (exit code %d)", e.ExitCode)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if cause != nil {
		fmt.Fprintf(&b, ": %v", cause)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", stderr)
	}
	return b.String()
}

func (e *ProcessError) Is(target error) bool {
	return target == e.kind()
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
