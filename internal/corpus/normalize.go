package corpus

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"spoon/internal/logging"
)

// =============================================================================
// MANIFEST NORMALIZER
// =============================================================================

// Options controls normalization. Zero values fall back to defaults.
type Options struct {
	// MaxUnits caps the listing size to protect the planner prompt.
	// When exceeded, deep directories are collapsed into summary units;
	// if the listing is still over the cap the corpus is rejected.
	MaxUnits int

	// MaxUnitBytes flags files above this size as unselectable.
	MaxUnitBytes int
}

const (
	defaultMaxUnits     = 2000
	defaultMaxUnitBytes = 100_000

	// collapseDepth is the directory depth past which units are folded
	// into per-directory summary units when the listing is over cap.
	collapseDepth = 2
)

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxUnits:     defaultMaxUnits,
		MaxUnitBytes: defaultMaxUnitBytes,
	}
}

// binaryExtensions lists file types that are never readable as text.
// The set follows the original skip list plus common lock/archive noise.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".zip": true, ".tar": true, ".gz": true, ".pdf": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".so": true, ".dylib": true, ".dll": true, ".exe": true,
	".jar": true, ".class": true, ".pyc": true, ".wasm": true,
}

var binaryBasenames = map[string]bool{
	".DS_Store":         true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"go.sum":            true,
}

// docExtensions classify prose files; everything else readable is code.
var docExtensions = map[string]bool{
	".md": true, ".markdown": true, ".txt": true, ".rst": true,
	".adoc": true, ".org": true,
}

// Normalize turns a provider's raw listing into a Manifest. It is a pure
// function of its inputs: the same raw listing always yields an identical
// manifest.
func Normalize(kind SourceKind, ref string, raw []RawUnit, opts Options) (*Manifest, error) {
	if opts.MaxUnits <= 0 {
		opts.MaxUnits = defaultMaxUnits
	}
	if opts.MaxUnitBytes <= 0 {
		opts.MaxUnitBytes = defaultMaxUnitBytes
	}

	if len(raw) == 0 {
		return nil, &ManifestError{Reason: "empty listing, nothing to analyze"}
	}

	units := make([]Unit, 0, len(raw))
	for _, r := range raw {
		u := Unit{
			ID:       r.Path,
			Kind:     inferKind(r.Path),
			SizeHint: sizeHint(r.Size),
		}
		if u.Kind != KindBinary && r.Size > opts.MaxUnitBytes {
			u.Kind = KindBinary
		}
		units = append(units, u)
	}

	if len(units) > opts.MaxUnits {
		logging.ProviderDebug("normalize: %d units over cap %d, collapsing directories", len(units), opts.MaxUnits)
		units = collapseDirectories(units)
		if len(units) > opts.MaxUnits {
			return nil, &ManifestError{
				Reason: fmt.Sprintf("listing has %d units after collapsing, cap is %d", len(units), opts.MaxUnits),
			}
		}
	}

	m := &Manifest{
		SourceKind: kind,
		SourceRef:  ref,
		Units:      units,
		index:      make(map[string]int, len(units)),
	}
	for i, u := range m.Units {
		m.index[u.ID] = i
	}

	logging.Provider("normalize: %s %q -> %d units (%d selectable)",
		kind, ref, m.Len(), len(m.Selectable()))
	return m, nil
}

// inferKind classifies a path by extension. Document section ids carry a
// "#NNN" suffix ("report.pdf#003"); a section is extracted text by
// construction, so it is prose no matter what the source file's extension
// says.
func inferKind(id string) Kind {
	if strings.Contains(id, "#") {
		return KindDoc
	}
	base := path.Base(id)
	if binaryBasenames[base] {
		return KindBinary
	}
	ext := strings.ToLower(path.Ext(base))
	switch {
	case binaryExtensions[ext]:
		return KindBinary
	case docExtensions[ext] || isReadmeLike(base):
		return KindDoc
	default:
		return KindCode
	}
}

func isReadmeLike(base string) bool {
	name := strings.ToLower(base)
	name = strings.TrimSuffix(name, path.Ext(name))
	switch name {
	case "readme", "license", "changelog", "contributing", "authors", "notice":
		return true
	}
	return false
}

// sizeHint approximates token count as bytes/4. Always at least 1 so that
// empty files still cost something in the plan budget.
func sizeHint(size int) int {
	h := size / 4
	if h < 1 {
		h = 1
	}
	return h
}

// collapseDirectories folds every unit deeper than collapseDepth into one
// summary unit per directory prefix. Summary units are unselectable but keep
// the directory shape (and its aggregate size) visible in the listing.
// Output order: shallow units keep their input order, summaries follow in
// lexical order of their directory.
func collapseDirectories(units []Unit) []Unit {
	type summary struct {
		size  int
		count int
	}

	kept := make([]Unit, 0, len(units))
	summaries := make(map[string]*summary)

	for _, u := range units {
		parts := strings.Split(u.ID, "/")
		if len(parts) <= collapseDepth {
			kept = append(kept, u)
			continue
		}
		dir := strings.Join(parts[:collapseDepth], "/")
		s, ok := summaries[dir]
		if !ok {
			s = &summary{}
			summaries[dir] = s
		}
		s.size += u.SizeHint
		s.count++
	}

	dirs := make([]string, 0, len(summaries))
	for dir := range summaries {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		s := summaries[dir]
		kept = append(kept, Unit{
			ID:       fmt.Sprintf("%s/… (%d files)", dir, s.count),
			Kind:     KindBinary,
			SizeHint: s.size,
		})
	}
	return kept
}
