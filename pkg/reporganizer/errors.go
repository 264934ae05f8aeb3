package reporganizer

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/RepOrganizer/pkg/reporganizer/correlate"
	"github.com/himanishpuri/RepOrganizer/pkg/reporganizer/results"
)

// Re-exported so callers only need this package to classify failures.
var (
	ErrLogNotFound   = results.ErrLogNotFound
	ErrEmptyLog      = results.ErrEmptyLog
	ErrNoCorrelation = correlate.ErrNoCorrelation

	ErrHistoryDisabled = errors.New("move history is disabled")
	ErrNoRuns          = errors.New("no organize run to undo")
)

type (
	MalformedLogError       = results.MalformedLogError
	MalformedLogErrors      = results.MalformedLogErrors
	UnparsableFilenameError = correlate.UnparsableFilenameError
)

// EnvironmentPreconditionError reports a missing file or folder the game
// directory must contain.
type EnvironmentPreconditionError struct {
	Path   string
	Reason string
}

func (e *EnvironmentPreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Flatten expands joined and multi-wrapped errors into their leaves, in
// order, so each can be reported on its own line.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	multi, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	var out []error
	for _, e := range multi.Unwrap() {
		out = append(out, Flatten(e)...)
	}
	return out
}
