// Package llm defines the minimal client interface the pipeline uses to call
// a language model, plus the Gemini implementation.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client is the interface both pipeline stages call. Implementations must
// enforce their own timeout when the context carries no deadline.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrModelUnavailable is the sentinel for a failed or timed-out model call.
// The planner recovers from it locally; the responder surfaces it.
var ErrModelUnavailable = errors.New("model unavailable")

// ModelError wraps the concrete cause of a failed model call. It matches
// ErrModelUnavailable under errors.Is while keeping the cause inspectable.
type ModelError struct {
	Op  string // "plan", "respond", "classify"
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call %s: %v", e.Op, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

func (e *ModelError) Is(target error) bool {
	return target == ErrModelUnavailable
}
