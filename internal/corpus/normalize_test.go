package corpus

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeKinds(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{path: "main.go", want: KindCode},
		{path: "app/services.py", want: KindCode},
		{path: "Dockerfile", want: KindCode},
		{path: "README.md", want: KindDoc},
		{path: "README", want: KindDoc},
		{path: "LICENSE", want: KindDoc},
		{path: "docs/guide.txt", want: KindDoc},
		{path: "report.md#003", want: KindDoc},
		{path: "report.pdf#003", want: KindDoc},
		{path: "slides.pptx#010", want: KindDoc},
		{path: "logo.png", want: KindBinary},
		{path: "assets/font.woff2", want: KindBinary},
		{path: "package-lock.json", want: KindBinary},
		{path: ".DS_Store", want: KindBinary},
		{path: "release.zip", want: KindBinary},
	}

	raw := make([]RawUnit, len(tests))
	for i, tt := range tests {
		raw[i] = RawUnit{Path: tt.path, Size: 100}
	}
	m, err := Normalize(SourceRepository, "r", raw, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	for _, tt := range tests {
		u, ok := m.Unit(tt.path)
		if !ok {
			t.Errorf("unit %q missing", tt.path)
			continue
		}
		if u.Kind != tt.want {
			t.Errorf("%q kind = %v, want %v", tt.path, u.Kind, tt.want)
		}
	}
}

func TestNormalizeOversizeFilesUnselectable(t *testing.T) {
	m, err := Normalize(SourceRepository, "r", []RawUnit{
		{Path: "small.go", Size: 500},
		{Path: "huge.go", Size: 200_000},
	}, Options{MaxUnitBytes: 100_000})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if u, _ := m.Unit("huge.go"); u.Selectable() {
		t.Error("oversize file should not be selectable")
	}
	if u, _ := m.Unit("small.go"); !u.Selectable() {
		t.Error("small file should be selectable")
	}
	// Oversize units stay in the listing so the corpus shape is visible.
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2", m.Len())
	}
}

func TestNormalizeEmptyListing(t *testing.T) {
	_, err := Normalize(SourceRepository, "r", nil, Options{})
	var me *ManifestError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want *ManifestError", err)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	raw := []RawUnit{
		{Path: "b/x.go", Size: 100},
		{Path: "a/y.go", Size: 3000},
		{Path: "README.md", Size: 10},
	}
	m1, err := Normalize(SourceRepository, "r", raw, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	m2, err := Normalize(SourceRepository, "r", raw, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if diff := cmp.Diff(m1.Units, m2.Units); diff != "" {
		t.Errorf("manifests differ (-first +second):\n%s", diff)
	}
	// Input order is preserved.
	if m1.Units[0].ID != "b/x.go" || m1.Units[2].ID != "README.md" {
		t.Errorf("unit order changed: %v", m1.Units)
	}
}

func TestNormalizeSizeHint(t *testing.T) {
	m, err := Normalize(SourceRepository, "r", []RawUnit{
		{Path: "empty.go", Size: 0},
		{Path: "a.go", Size: 4000},
	}, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if u, _ := m.Unit("empty.go"); u.SizeHint != 1 {
		t.Errorf("empty file SizeHint = %d, want 1", u.SizeHint)
	}
	if u, _ := m.Unit("a.go"); u.SizeHint != 1000 {
		t.Errorf("SizeHint = %d, want 1000", u.SizeHint)
	}
}

func TestNormalizeCollapsesDeepDirectories(t *testing.T) {
	var raw []RawUnit
	raw = append(raw, RawUnit{Path: "main.go", Size: 100})
	for i := 0; i < 30; i++ {
		raw = append(raw, RawUnit{Path: fmt.Sprintf("vendor/lib/file%02d.go", i), Size: 400})
	}

	m, err := Normalize(SourceRepository, "r", raw, Options{MaxUnits: 10})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if m.Len() != 2 {
		t.Fatalf("Len = %d, want main.go plus one summary", m.Len())
	}
	if m.Units[0].ID != "main.go" {
		t.Errorf("shallow unit should keep its position, got %q first", m.Units[0].ID)
	}

	summary := m.Units[1]
	if !strings.HasPrefix(summary.ID, "vendor/lib/") || !strings.Contains(summary.ID, "30 files") {
		t.Errorf("summary id = %q", summary.ID)
	}
	if summary.Selectable() {
		t.Error("directory summaries must not be selectable")
	}
	if summary.SizeHint != 30*100 {
		t.Errorf("summary SizeHint = %d, want aggregate %d", summary.SizeHint, 30*100)
	}
}

func TestNormalizeRejectsCorpusOverCapAfterCollapsing(t *testing.T) {
	var raw []RawUnit
	for i := 0; i < 50; i++ {
		raw = append(raw, RawUnit{Path: fmt.Sprintf("file%02d.go", i), Size: 100})
	}
	_, err := Normalize(SourceRepository, "r", raw, Options{MaxUnits: 10})
	var me *ManifestError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want *ManifestError", err)
	}
}

func TestManifestLookups(t *testing.T) {
	m, err := Normalize(SourceRepository, "r", []RawUnit{
		{Path: "a.go", Size: 100},
		{Path: "logo.png", Size: 100},
	}, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if !m.Contains("a.go") || m.Contains("b.go") {
		t.Error("Contains misbehaves")
	}
	sel := m.Selectable()
	if len(sel) != 1 || sel[0].ID != "a.go" {
		t.Errorf("Selectable = %v", sel)
	}
}
