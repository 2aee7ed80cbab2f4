// Package session owns the scope of one loaded corpus: its manifest, its
// append-only turn history, and the stores that persist that history.
package session

import (
	"time"

	"github.com/google/uuid"

	"spoon/internal/corpus"
)

// Turn is one recorded question/answer exchange. Only the answer and the
// units it used survive into history; plans and bundles are transient and
// discarded after the turn to bound memory growth.
type Turn struct {
	Question    string
	Answer      string
	UsedUnitIDs []string
	// PlanSummary is a compact rendering of the plan ("id1,id2,…"),
	// kept for observability rather than replay.
	PlanSummary string
	CreatedAt   time.Time
}

// Session owns a manifest and its turn history. Turns are append-only and
// serialized per session by the service layer.
type Session struct {
	ID        string
	Manifest  *corpus.Manifest
	CreatedAt time.Time
}

// New creates a session for a normalized manifest.
func New(m *corpus.Manifest) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Manifest:  m,
		CreatedAt: time.Now().UTC(),
	}
}

// Store persists turn history. The core only ever needs these two
// operations; where the records actually live is not its concern.
type Store interface {
	// AppendTurn records a turn at the end of a session's history.
	AppendTurn(sessionID string, t Turn) error

	// RecentTurns returns up to n most recent turns, oldest first.
	RecentTurns(sessionID string, n int) ([]Turn, error)
}
