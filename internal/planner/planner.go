// Package planner selects which corpus units are worth reading for a
// question. The selection is one model call framed by deterministic prompt
// construction and strict validation of the model's untrusted output; when
// the call fails or parses to nothing, a pure lexical fallback takes over so
// a plan is always produced.
package planner

import (
	"context"
	"errors"
	"strings"

	"spoon/internal/corpus"
	"spoon/internal/llm"
	"spoon/internal/logging"
	"spoon/internal/session"
)

// Pick is one planned unit with its relevance rank and the model's (or the
// fallback's) one-line justification.
type Pick struct {
	UnitID string
	Rank   int
	Reason string
}

// Plan is the ordered, budget-bounded selection for one question. It is
// immutable once produced; every UnitID exists in the manifest it was
// derived from.
type Plan struct {
	Picks []Pick
	// Fallback marks plans produced by the deterministic lexical path
	// rather than the model.
	Fallback bool
}

// IDs returns the planned unit ids in relevance order.
func (p *Plan) IDs() []string {
	ids := make([]string, len(p.Picks))
	for i, pk := range p.Picks {
		ids[i] = pk.UnitID
	}
	return ids
}

// Summary renders the plan as a compact comma-separated id list.
func (p *Plan) Summary() string {
	return strings.Join(p.IDs(), ",")
}

// Config bounds the planner.
type Config struct {
	// K caps the number of planned units.
	K int
	// BPlan caps the cumulative SizeHint of the plan.
	BPlan int
	// HistoryWindow is how many prior turns the planning prompt digests.
	HistoryWindow int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{K: 12, BPlan: 60_000, HistoryWindow: 4}
}

// Planner produces plans.
type Planner struct {
	client llm.Client
	cfg    Config
}

// New creates a planner. Zero config fields fall back to defaults.
func New(client llm.Client, cfg Config) *Planner {
	def := DefaultConfig()
	if cfg.K <= 0 {
		cfg.K = def.K
	}
	if cfg.BPlan <= 0 {
		cfg.BPlan = def.BPlan
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	return &Planner{client: client, cfg: cfg}
}

// Plan selects units for the question. A model failure never propagates:
// the deterministic fallback guarantees a non-empty plan for any manifest
// with at least one selectable unit.
func (p *Planner) Plan(ctx context.Context, question string, m *corpus.Manifest, history []session.Turn) (*Plan, error) {
	timer := logging.StartTimer(logging.CategoryPlanner, "Plan")
	defer timer.Stop()

	system, user := buildPrompt(question, m, history, p.cfg)

	raw, err := p.client.CompleteWithSystem(ctx, system, user)
	if err != nil {
		if errors.Is(err, llm.ErrModelUnavailable) {
			logging.Get(logging.CategoryPlanner).Warn("model unavailable, using lexical fallback: %v", err)
			return p.fallbackPlan(question, m), nil
		}
		// Unknown failure class: still degrade rather than fail the turn.
		logging.Get(logging.CategoryPlanner).Warn("planner call failed (%v), using lexical fallback", err)
		return p.fallbackPlan(question, m), nil
	}

	picks := parseResponse(raw, m, p.cfg.K, p.cfg.BPlan)
	if len(picks) == 0 {
		logging.Planner("model returned no valid ids, using lexical fallback")
		return p.fallbackPlan(question, m), nil
	}

	logging.Planner("planned %d units for question_len=%d", len(picks), len(question))
	return &Plan{Picks: picks}, nil
}

func (p *Planner) fallbackPlan(question string, m *corpus.Manifest) *Plan {
	picks := Fallback(question, m, p.cfg.K, p.cfg.BPlan)
	logging.Planner("fallback planned %d units", len(picks))
	return &Plan{Picks: picks, Fallback: true}
}
