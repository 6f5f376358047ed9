package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds shared by the document list, the engine and the handlers.
// Every error reported through an error callback unwraps to one of these,
// so callers classify failures with errors.Is.
var (
	// ErrDependencyMissing is returned when a handler needs an external
	// tool that is not installed.
	ErrDependencyMissing = errors.New("dependency missing")

	// ErrPageNotFound is returned when a job's target UUID is no longer in
	// the document list, either before the job started or before its result
	// could be applied.
	ErrPageNotFound = errors.New("page not found")

	// ErrTimeout is returned when an external tool exceeds its time budget.
	ErrTimeout = errors.New("timeout")

	// ErrSubprocessFailure is returned when an external tool exits non-zero
	// or is killed by a signal.
	ErrSubprocessFailure = errors.New("subprocess failure")

	// ErrInsufficientSpace is returned when the target filesystem cannot hold
	// the artifact about to be written.
	ErrInsufficientSpace = errors.New("insufficient space")

	// ErrIndex is returned for an out-of-range document list index.
	ErrIndex = errors.New("index out of range")

	// ErrInvalidParameter is returned for operation parameters outside their
	// valid range.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrCancelled is returned when a job was cancelled before completion.
	ErrCancelled = errors.New("cancelled")
)

// SubprocessError describes a failed external tool invocation.
type SubprocessError struct {
	Tool     string
	Args     []string
	ExitCode int
	Signal   string
	Stderr   string
}

// Error returns the captured stderr, which is what the user needs to see.
func (e *SubprocessError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	switch {
	case e.Signal != "":
		return fmt.Sprintf("%s killed by signal %s: %s", e.Tool, e.Signal, msg)
	case msg == "":
		return fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	default:
		return fmt.Sprintf("%s exited with status %d: %s", e.Tool, e.ExitCode, msg)
	}
}

// Unwrap lets errors.Is match ErrSubprocessFailure.
func (e *SubprocessError) Unwrap() error { return ErrSubprocessFailure }

// DependencyError names the missing tool.
type DependencyError struct {
	Tool string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %s is not installed", ErrDependencyMissing, e.Tool)
}

// Unwrap lets errors.Is match ErrDependencyMissing.
func (e *DependencyError) Unwrap() error { return ErrDependencyMissing }

// IndexError reports an index outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: index %d, length %d", ErrIndex, e.Index, e.Len)
}

// Unwrap lets errors.Is match ErrIndex.
func (e *IndexError) Unwrap() error { return ErrIndex }

// ParameterError reports a rejected operation parameter.
type ParameterError struct {
	Name   string
	Value  any
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrInvalidParameter, e.Name, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidParameter.
func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

// kinds is ordered so that the most specific classification wins.
var kinds = []struct {
	err  error
	name string
}{
	{ErrCancelled, "Cancelled"},
	{ErrDependencyMissing, "DependencyMissing"},
	{ErrPageNotFound, "PageNotFound"},
	{ErrTimeout, "Timeout"},
	{ErrSubprocessFailure, "SubprocessFailure"},
	{ErrInsufficientSpace, "InsufficientSpace"},
	{ErrIndex, "IndexError"},
	{ErrInvalidParameter, "InvalidParameter"},
}

// Kind returns the name of the error kind err belongs to, or "Error" for
// anything unclassified. A nil error has no kind.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Error"
}
