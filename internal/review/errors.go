package review

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendFailure marks a hunk whose conversation was cut short by
	// the chat backend. Other hunks are unaffected.
	ErrBackendFailure = errors.New("chat backend failure")

	// ErrMalformedCandidate marks a complete JSON value that does not decode
	// as a list of review comments.
	ErrMalformedCandidate = errors.New("malformed review candidate")
)

// HunkError reports a backend failure for one hunk.
type HunkError struct {
	Path string
	Line int
	Err  error
}

func (e *HunkError) Error() string {
	return fmt.Sprintf("%s @ %d: %v", e.Path, e.Line, e.Err)
}

func (e *HunkError) Unwrap() []error {
	return []error{ErrBackendFailure, e.Err}
}
