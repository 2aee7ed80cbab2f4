// Package upload provides the document-backed corpus: one uploaded text is
// split into overlapping section units addressable as "name#NNN". Format
// conversion (PDF and friends) happens before this package; it only ever
// sees extracted text.
package upload

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"spoon/internal/corpus"
	"spoon/internal/logging"
)

const (
	defaultChunkSize    = 4000
	defaultChunkOverlap = 200
)

// Provider serves the sections of one uploaded document. Immutable after
// New, so it is safe for concurrent use.
type Provider struct {
	name     string
	sections []string
	index    map[string]int
}

// New splits the document into sections. The name becomes the id prefix.
func New(name, text string, chunkSize, chunkOverlap int) (*Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "document"
	}
	if strings.TrimSpace(text) == "" {
		return nil, &corpus.ManifestError{Reason: "document is empty"}
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = defaultChunkOverlap
	}

	sections := split(text, chunkSize, chunkOverlap)
	p := &Provider{
		name:     name,
		sections: sections,
		index:    make(map[string]int, len(sections)),
	}
	for i := range sections {
		p.index[p.sectionID(i)] = i
	}

	logging.Provider("upload: split %q (%d bytes) into %d sections", name, len(text), len(sections))
	return p, nil
}

func (p *Provider) sectionID(i int) string {
	return fmt.Sprintf("%s#%03d", p.name, i)
}

// List returns one RawUnit per section, in document order.
func (p *Provider) List(ctx context.Context) ([]corpus.RawUnit, error) {
	raw := make([]corpus.RawUnit, len(p.sections))
	for i, s := range p.sections {
		raw[i] = corpus.RawUnit{Path: p.sectionID(i), Size: len(s)}
	}
	return raw, nil
}

// Fetch returns one section's text.
func (p *Provider) Fetch(ctx context.Context, unitID string) (string, error) {
	i, ok := p.index[unitID]
	if !ok {
		return "", &corpus.FetchError{UnitID: unitID, Err: fmt.Errorf("no such section")}
	}
	return p.sections[i], nil
}

// split cuts text into chunks of at most size bytes with the given overlap.
// Cuts prefer a paragraph break in the back half of the window, then a line
// break, then a hard byte cut aligned to a rune boundary. Pure function:
// the same text always splits identically.
func split(text string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var out []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}

		cut := end
		window := text[start:end]
		if i := strings.LastIndex(window, "\n\n"); i > size/2 {
			cut = start + i + 2
		} else if i := strings.LastIndex(window, "\n"); i > size/2 {
			cut = start + i + 1
		} else {
			for cut > start && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}

		out = append(out, text[start:cut])

		next := cut - overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = cut
		}
		start = next
	}
	return out
}
