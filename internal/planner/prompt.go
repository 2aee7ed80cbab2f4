package planner

import (
	"fmt"
	"strings"

	"spoon/internal/corpus"
	"spoon/internal/session"
)

const plannerSystemPrompt = `You are an expert software engineer acting as a query planner.
Given a user question and a listing of the available corpus units, identify
the units most relevant to answering the question. You never see unit
content, only the listing.`

// buildPrompt serializes the manifest as a compact line-per-unit listing
// (id, kind, approximate size - never content), digests recent history, and
// states the selection format and budget.
func buildPrompt(question string, m *corpus.Manifest, history []session.Turn, cfg Config) (system, user string) {
	var b strings.Builder

	if digest := historyDigest(history, cfg.HistoryWindow); digest != "" {
		b.WriteString("Recent conversation:\n")
		b.WriteString(digest)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User question: %q\n\nAvailable units (id  kind  ~tokens):\n", question)
	for _, u := range m.Selectable() {
		fmt.Fprintf(&b, "%s  %s  %d\n", u.ID, u.Kind, u.SizeHint)
	}

	fmt.Fprintf(&b, `
Instructions:
- List the most relevant unit ids, one per line, most relevant first.
- Format each line as: id — short reason
- At most %d units, and the listed ~token sizes must sum to at most %d.
- Use ids exactly as listed. Do not invent ids. No other text.
`, cfg.K, cfg.BPlan)

	return plannerSystemPrompt, b.String()
}

// historyDigest renders the last n turns as cheap one-line pairs. Answers
// are cut to their first line so planning stays cheap on long sessions.
func historyDigest(history []session.Turn, n int) string {
	if len(history) == 0 {
		return ""
	}
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	var b strings.Builder
	for _, t := range history {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", firstLine(t.Question), firstLine(t.Answer))
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
