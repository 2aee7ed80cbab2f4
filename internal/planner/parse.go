package planner

import (
	"strings"

	"spoon/internal/corpus"
	"spoon/internal/logging"
)

// parseResponse turns the model's free-form output into validated picks.
// The output is untrusted: unknown ids are dropped (not fatal), duplicates
// are dropped, and the K / BPlan budgets are enforced in model order. Both
// the line-per-unit format and a bare comma-separated id list are accepted.
func parseResponse(raw string, m *corpus.Manifest, k, bPlan int) []Pick {
	var picks []Pick
	seen := make(map[string]bool)
	budget := 0
	dropped := 0

	for _, candidate := range splitCandidates(raw) {
		id, reason := splitReason(candidate)
		id = cleanID(id)
		if id == "" {
			continue
		}

		u, ok := m.Unit(id)
		if !ok || !u.Selectable() {
			dropped++
			continue
		}
		if seen[id] {
			continue
		}
		if len(picks) >= k {
			break
		}
		if budget+u.SizeHint > bPlan {
			// Keep scanning: a later, smaller unit may still fit.
			continue
		}

		seen[id] = true
		budget += u.SizeHint
		picks = append(picks, Pick{UnitID: id, Rank: len(picks) + 1, Reason: reason})
	}

	if dropped > 0 {
		logging.PlannerDebug("parse: dropped %d unknown/unselectable ids", dropped)
	}
	return picks
}

// splitCandidates breaks the response into per-unit fragments: one per line,
// then one per comma within a line (the original planner format).
func splitCandidates(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// A line with a reason separator is one candidate even if the
		// reason contains commas.
		if strings.Contains(line, "—") || strings.Contains(line, " - ") || strings.Contains(line, ": ") {
			out = append(out, line)
			continue
		}
		for _, part := range strings.Split(line, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// splitReason separates "id — reason" (also "id - reason", "id: reason").
func splitReason(s string) (id, reason string) {
	for _, sep := range []string{"—", " - ", ": "} {
		if i := strings.Index(s, sep); i >= 0 {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(sep):])
		}
	}
	return strings.TrimSpace(s), ""
}

// cleanID strips list markers, rank numbers, and quoting the model tends to
// add around ids.
func cleanID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*• \t")
	// "1." / "12)" rank prefixes
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		s = s[i+1:]
	}
	return strings.Trim(strings.TrimSpace(s), "`'\"")
}
