package corpus

import "fmt"

// ManifestError means the corpus is unusable as a whole: nothing to analyze,
// or too large to list safely. Fatal for corpus loading, user-visible.
type ManifestError struct {
	Reason string
}

func (e *ManifestError) Error() string {
	return "manifest: " + e.Reason
}

// FetchError is a per-unit content failure. It degrades gracefully: the
// assembler skips the unit, records it in diagnostics, and the turn
// continues.
type FetchError struct {
	UnitID string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.UnitID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
