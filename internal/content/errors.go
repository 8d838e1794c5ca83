package content

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a fetch, update, or delete target does not exist
// in any reachable path. Checked with errors.Is.
var ErrNotFound = errors.New("post not found")

// ValidationError reports a write request that violates the collection
// schema. Detected before any backend is contacted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// FallbackError reports that the direct storage fallback itself failed.
// Terminal for the call: capability absence and single adapter failures are
// recovered internally and never surface, but a failed fallback always does.
type FallbackError struct {
	Op  string
	Err error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s: fallback storage failed: %v", e.Op, e.Err)
}

func (e *FallbackError) Unwrap() error { return e.Err }
