// Package responder produces the grounded answer for a question over an
// assembled context bundle, and classifies question intent so small talk
// never pays for the full pipeline.
package responder

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"spoon/internal/assembler"
	"spoon/internal/llm"
	"spoon/internal/logging"
	"spoon/internal/session"
)

const responderSystemPrompt = `You are Spoon, an expert software engineer answering questions about a codebase or document.

Strict grounding rules:
- Answer ONLY from the context sections provided below. Do not use outside knowledge about this project.
- If the context does not contain enough information to answer, say so plainly instead of guessing.
- When a statement comes from a specific unit, cite it inline as [unit: <id>] using the id exactly as given.
- Be concrete: quote identifiers, paths, and snippets from the context where they help.`

// Answer is the responder's output: the grounded answer text plus the unit
// ids the model actually cited (all bundle ids when it cited none).
type Answer struct {
	Text        string
	UsedUnitIDs []string
}

// Config bounds the responder.
type Config struct {
	// HistoryWindow is how many prior turns the answer prompt carries.
	HistoryWindow int
}

// Responder answers questions.
type Responder struct {
	client llm.Client
	cfg    Config
}

// New creates a responder. A zero HistoryWindow falls back to 4.
func New(client llm.Client, cfg Config) *Responder {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 4
	}
	return &Responder{client: client, cfg: cfg}
}

// Respond answers the question over the bundle. Unlike the planner, a model
// failure here surfaces to the caller: there is no useful degraded answer,
// and fabricating one would break the grounding contract.
func (r *Responder) Respond(ctx context.Context, question string, bundle *assembler.Bundle, history []session.Turn) (*Answer, error) {
	timer := logging.StartTimer(logging.CategoryResponder, "Respond")
	defer timer.Stop()

	user := buildAnswerPrompt(question, bundle, history, r.cfg.HistoryWindow)

	text, err := r.client.CompleteWithSystem(ctx, responderSystemPrompt, user)
	if err != nil {
		logging.Get(logging.CategoryResponder).Error("answer call failed: %v", err)
		return nil, err
	}

	used := parseCitations(text, bundle)
	logging.Responder("answered question_len=%d answer_len=%d used=%d", len(question), len(text), len(used))
	return &Answer{Text: strings.TrimSpace(text), UsedUnitIDs: used}, nil
}

// buildAnswerPrompt serializes history, the bundle chunks (each tagged with
// its unit id), and the question.
func buildAnswerPrompt(question string, bundle *assembler.Bundle, history []session.Turn, window int) string {
	var b strings.Builder

	if len(history) > 0 {
		if window > 0 && len(history) > window {
			history = history[len(history)-window:]
		}
		b.WriteString("Recent conversation:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "User: %s\nSpoon: %s\n", t.Question, t.Answer)
		}
		b.WriteString("\n")
	}

	b.WriteString("Context sections:\n\n")
	if len(bundle.Chunks) == 0 {
		b.WriteString("(no corpus content could be retrieved for this question)\n\n")
	}
	for _, c := range bundle.Chunks {
		fmt.Fprintf(&b, "File: %s\n", c.UnitID)
		if c.Truncated {
			b.WriteString("(middle of this file omitted for length)\n")
		}
		b.WriteString(c.Text)
		b.WriteString("\n\n---\n\n")
	}

	fmt.Fprintf(&b, "Question: %s\n", question)
	return b.String()
}

var citationPattern = regexp.MustCompile(`\[unit:\s*([^\]]+?)\s*\]`)

// parseCitations extracts the [unit: id] markers the model emitted and
// validates them against the bundle. Unknown ids are dropped; no valid
// citations means the whole bundle is assumed used.
func parseCitations(text string, bundle *assembler.Bundle) []string {
	inBundle := make(map[string]bool, len(bundle.Chunks))
	for _, c := range bundle.Chunks {
		inBundle[c.UnitID] = true
	}

	var used []string
	seen := make(map[string]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		id := strings.TrimSpace(m[1])
		if !inBundle[id] || seen[id] {
			continue
		}
		seen[id] = true
		used = append(used, id)
	}

	if len(used) == 0 {
		return bundle.IDs()
	}
	return used
}
