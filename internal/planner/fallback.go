package planner

import (
	"path"
	"sort"
	"strings"

	"spoon/internal/corpus"
)

// Fallback is the deterministic, model-free planning path: a pure function
// over (question, manifest) with no side effects. It ranks selectable units
// by lexical overlap between question terms and unit paths, and guarantees
// a non-empty result for any manifest with a selectable unit.
func Fallback(question string, m *corpus.Manifest, k, bPlan int) []Pick {
	selectable := m.Selectable()
	if len(selectable) == 0 {
		return nil
	}

	// Small document corpora are selected wholly: section ids carry no
	// useful lexical signal, and the whole thing fits the plan budget.
	if m.SourceKind == corpus.SourceDocument && len(selectable) <= k {
		return takeInOrder(selectable, k, bPlan, "document section")
	}

	terms := queryTerms(question)

	type scored struct {
		unit  corpus.Unit
		score float64
		order int
	}
	ranked := make([]scored, 0, len(selectable))
	for i, u := range selectable {
		s := overlapScore(u.ID, terms)
		// README-like units get a floor score so a general question
		// still surfaces them.
		if s == 0 && isOverviewUnit(u.ID) {
			s = 0.5
		}
		if s > 0 {
			ranked = append(ranked, scored{unit: u, score: s, order: i})
		}
	}

	// Stable order: score descending, manifest order breaks ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].order < ranked[j].order
	})

	var picks []Pick
	budget := 0
	for _, r := range ranked {
		if len(picks) >= k {
			break
		}
		if budget+r.unit.SizeHint > bPlan {
			continue
		}
		budget += r.unit.SizeHint
		picks = append(picks, Pick{
			UnitID: r.unit.ID,
			Rank:   len(picks) + 1,
			Reason: "path overlaps question terms",
		})
	}

	if len(picks) == 0 {
		// Nothing matched at all: fall back to manifest order so the
		// turn still has something to read.
		return takeInOrder(selectable, k, bPlan, "default selection")
	}
	return picks
}

// takeInOrder admits units in manifest order within the k / bPlan budgets.
// Oversized units are skipped, not admitted: a normalized manifest caps
// selectable units well under the default plan budget, so scanning past
// them still yields a non-empty pick list.
func takeInOrder(units []corpus.Unit, k, bPlan int, reason string) []Pick {
	var picks []Pick
	budget := 0
	for _, u := range units {
		if len(picks) >= k {
			break
		}
		if budget+u.SizeHint > bPlan {
			continue
		}
		budget += u.SizeHint
		picks = append(picks, Pick{UnitID: u.ID, Rank: len(picks) + 1, Reason: reason})
	}
	return picks
}

// queryTerms extracts lowercase tokens from the question, keeping dots and
// slashes so explicit file mentions ("a.py", "src/api.go") survive whole.
func queryTerms(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return false
		case r == '.', r == '/', r == '_', r == '-':
			return false
		}
		return true
	})

	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, "./-_")
		if f == "" || stopwords[f] {
			continue
		}
		if len(f) < 3 && !strings.ContainsAny(f, "./") {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// overlapScore measures how strongly a unit id matches the question terms.
// Exact basename hits dominate, stem hits follow, directory hits trail.
func overlapScore(unitID string, terms []string) float64 {
	id := strings.ToLower(unitID)
	if i := strings.LastIndex(id, "#"); i >= 0 {
		id = id[:i]
	}
	base := path.Base(id)
	stem := strings.TrimSuffix(base, path.Ext(base))
	dir := path.Dir(id)

	var score float64
	for _, t := range terms {
		switch {
		case t == base:
			score += 5
		case t == stem:
			score += 4
		case len(t) >= 3 && strings.Contains(base, t):
			score += 2
		case dir != "." && strings.Contains(dir, t):
			score += 1
		}
	}
	return score
}

func isOverviewUnit(unitID string) bool {
	base := strings.ToLower(path.Base(unitID))
	base = strings.TrimSuffix(base, path.Ext(base))
	return base == "readme"
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"this": true, "that": true, "with": true, "from": true, "what": true,
	"where": true, "when": true, "how": true, "why": true, "does": true,
	"did": true, "can": true, "could": true, "should": true, "would": true,
	"about": true, "into": true, "have": true, "has": true, "its": true,
	"file": true, "files": true, "code": true, "show": true, "tell": true,
	"explain": true, "describe": true, "please": true,
}
