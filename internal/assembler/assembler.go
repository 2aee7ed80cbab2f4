// Package assembler turns a plan into the bounded context window the
// responder reads. It fetches planned units through the corpus provider,
// enforces the context budget with a fixed truncation rule, and reports
// exactly what was included, truncated, skipped, or dropped.
package assembler

import (
	"context"
	"errors"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"spoon/internal/corpus"
	"spoon/internal/logging"
	"spoon/internal/planner"
)

// Chunk is one unit's content as it will appear in the responder prompt.
type Chunk struct {
	UnitID    string
	Text      string
	Truncated bool
}

// SkippedUnit records a planned unit whose fetch failed.
type SkippedUnit struct {
	UnitID string
	Err    error
}

// Bundle is the assembled context for one question: chunks in plan order
// plus full diagnostics. Chunks never reorder relative to the plan.
type Bundle struct {
	Chunks  []Chunk
	Skipped []SkippedUnit
	// NotIncluded lists planned ids dropped because the context budget
	// was already spent.
	NotIncluded []string
}

// IDs returns the ids of the included chunks, in order.
func (b *Bundle) IDs() []string {
	ids := make([]string, len(b.Chunks))
	for i, c := range b.Chunks {
		ids[i] = c.UnitID
	}
	return ids
}

// Config bounds the assembler.
type Config struct {
	// BContext caps the cumulative approximate token size of the bundle.
	BContext int
	// FetchWorkers bounds concurrent provider fetches.
	FetchWorkers int
	// CacheSize is the LRU content cache capacity, in units.
	CacheSize int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{BContext: 48_000, FetchWorkers: 4, CacheSize: 256}
}

const truncationMarker = "\n\n[... middle of file omitted ...]\n\n"

// minIncludeTokens is the smallest budget remainder worth truncating into;
// below it the unit is dropped instead of included as a useless sliver.
const minIncludeTokens = 64

// Assembler fetches and packs unit content. Safe for concurrent use; the
// cache is shared across sessions because unit content is immutable for the
// life of a corpus.
type Assembler struct {
	provider corpus.Provider
	cache    *lru.Cache[string, string]
	cfg      Config
}

// New creates an assembler over the provider. Zero config fields fall back
// to defaults.
func New(provider corpus.Provider, cfg Config) (*Assembler, error) {
	def := DefaultConfig()
	if cfg.BContext <= 0 {
		cfg.BContext = def.BContext
	}
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = def.FetchWorkers
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	cache, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Assembler{provider: provider, cache: cache, cfg: cfg}, nil
}

// Assemble fetches the planned units and packs them into the budget.
// Fetches run concurrently but the bundle always follows plan order; the
// same plan over an unchanged corpus assembles identically. A failed unit
// is skipped, never fatal; only context cancellation aborts the whole call.
func (a *Assembler) Assemble(ctx context.Context, plan *planner.Plan) (*Bundle, error) {
	timer := logging.StartTimer(logging.CategoryAssembler, "Assemble")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := plan.IDs()
	bundle := &Bundle{}
	if len(ids) == 0 {
		return bundle, nil
	}

	type result struct {
		text string
		err  error
	}
	results := make([]result, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.FetchWorkers)
	for i, id := range ids {
		g.Go(func() error {
			if text, ok := a.cache.Get(id); ok {
				results[i] = result{text: text}
				return nil
			}
			text, err := a.provider.Fetch(gctx, id)
			if err != nil {
				// Per-unit failures stay per-unit; cancellation
				// aborts the group.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results[i] = result{err: err}
				return nil
			}
			a.cache.Add(id, text)
			results[i] = result{text: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Budget pass, strictly in plan order. Once the budget is spent (or a
	// unit had to be truncated to fit) every later id is NotIncluded, so
	// the bundle is always a prefix of the fetchable plan.
	remaining := a.cfg.BContext
	closed := false
	for i, id := range ids {
		if results[i].err != nil {
			var fe *corpus.FetchError
			if !errors.As(results[i].err, &fe) {
				results[i].err = &corpus.FetchError{UnitID: id, Err: results[i].err}
			}
			logging.Assembler("skipping %s: %v", id, results[i].err)
			bundle.Skipped = append(bundle.Skipped, SkippedUnit{UnitID: id, Err: results[i].err})
			continue
		}
		if closed {
			bundle.NotIncluded = append(bundle.NotIncluded, id)
			continue
		}

		text := results[i].text
		cost := tokenCost(text)
		switch {
		case cost <= remaining:
			remaining -= cost
			bundle.Chunks = append(bundle.Chunks, Chunk{UnitID: id, Text: text})
		case remaining >= minIncludeTokens:
			bundle.Chunks = append(bundle.Chunks, Chunk{
				UnitID:    id,
				Text:      truncate(text, remaining*4),
				Truncated: true,
			})
			remaining = 0
			closed = true
		default:
			bundle.NotIncluded = append(bundle.NotIncluded, id)
			closed = true
		}
	}

	logging.AssemblerDebug("assembled %d chunks, %d skipped, %d not included, budget left %d",
		len(bundle.Chunks), len(bundle.Skipped), len(bundle.NotIncluded), remaining)
	return bundle, nil
}

// tokenCost approximates tokens as bytes/4, matching the manifest SizeHint.
func tokenCost(text string) int {
	c := len(text) / 4
	if c < 1 {
		c = 1
	}
	return c
}

// truncate keeps the head two-thirds and tail one-third of the byte budget,
// joined by a marker. Heads of files carry imports and declarations; tails
// carry the trailing definitions a question most often points at.
func truncate(text string, budgetBytes int) string {
	head := budgetBytes * 2 / 3
	tail := budgetBytes - head
	if head+tail >= len(text) {
		return text
	}
	return cutTail(text[:head]) + truncationMarker + cutHead(text[len(text)-tail:])
}

// cutTail trims a trailing partial rune left by a byte-offset slice.
func cutTail(s string) string {
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

// cutHead trims a leading partial rune left by a byte-offset slice.
func cutHead(s string) string {
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			break
		}
		s = s[1:]
	}
	return s
}
