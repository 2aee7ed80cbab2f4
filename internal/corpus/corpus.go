// Package corpus defines the data model shared by the question-answering
// pipeline: addressable units, the normalized manifest of a loaded corpus,
// and the provider boundary through which unit content is fetched on demand.
package corpus

import "context"

// Kind classifies a unit for selection purposes.
type Kind int

const (
	// KindCode is a source/configuration file from a repository.
	KindCode Kind = iota
	// KindDoc is prose: markdown, plain text, or a document section.
	KindDoc
	// KindBinary marks units that are listed but never selectable
	// (images, archives, oversized files, collapsed directory summaries).
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindDoc:
		return "doc"
	case KindBinary:
		return "binary"
	}
	return "unknown"
}

// Unit is one addressable piece of a corpus. Content is never stored on the
// Unit; it is fetched by ID through a Provider.
type Unit struct {
	// ID is the stable path (repository file) or section key (document
	// chunk, e.g. "report.md#003"). Unique within one manifest.
	ID string
	// Kind decides selectability. Binary units appear in the listing so
	// the model sees the corpus shape, but the planner may not pick them.
	Kind Kind
	// SizeHint approximates the token cost of including this unit
	// (bytes / 4). Exact tokenization is deliberately avoided here; it is
	// far too slow to run per-file on repository-sized corpora.
	SizeHint int
}

// Selectable reports whether the planner is allowed to pick this unit.
func (u Unit) Selectable() bool {
	return u.Kind != KindBinary
}

// RawUnit is one entry of a provider's raw listing, before normalization.
type RawUnit struct {
	Path string
	Size int
}

// SourceKind identifies what backs a corpus.
type SourceKind string

const (
	SourceRepository SourceKind = "repository"
	SourceDocument   SourceKind = "document"
)

// Manifest is the normalized, ordered listing of units for one loaded
// corpus. It is created once by Normalize and read-only afterwards; the
// underlying corpus does not change within a session.
type Manifest struct {
	SourceKind SourceKind
	SourceRef  string
	Units      []Unit

	index map[string]int
}

// Contains reports whether id names a unit in the manifest.
func (m *Manifest) Contains(id string) bool {
	_, ok := m.index[id]
	return ok
}

// Unit returns the unit with the given id.
func (m *Manifest) Unit(id string) (Unit, bool) {
	i, ok := m.index[id]
	if !ok {
		return Unit{}, false
	}
	return m.Units[i], true
}

// Selectable returns the units the planner may pick, in manifest order.
func (m *Manifest) Selectable() []Unit {
	out := make([]Unit, 0, len(m.Units))
	for _, u := range m.Units {
		if u.Selectable() {
			out = append(out, u)
		}
	}
	return out
}

// Len returns the number of listed units, selectable or not.
func (m *Manifest) Len() int {
	return len(m.Units)
}

// Provider supplies a corpus: a flat raw listing and per-unit content.
// Implementations live under internal/provider.
type Provider interface {
	// List returns the raw listing for the configured source.
	List(ctx context.Context) ([]RawUnit, error)

	// Fetch returns the text content of one unit. It fails with a
	// *FetchError when the unit is unreadable, binary, or too large.
	Fetch(ctx context.Context, unitID string) (string, error)
}
