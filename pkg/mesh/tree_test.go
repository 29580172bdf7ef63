package mesh

import (
	"strings"
	"testing"
)

const treeFile = `Cardiovascular Diseases;C14
Heart Diseases;C14.280
Heart Arrest;C14.280.383
Myocardial Infarction;C14.280.647
Neoplasms;C04
`

// Note: Neoplasms is deliberately out of location order relative to
// C14 in real files too; the contiguity assumption only applies
// below a heading, so the fixture keeps C14's subtree contiguous.

func newTree(t *testing.T) *Tree {
	t.Helper()
	tree, err := NewTree(strings.NewReader(treeFile))
	if err != nil {
		t.Fatalf("NewTree failed: %v", err)
	}
	return tree
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Heart Diseases", "heart diseases"},
		{"  Neoplasms ", "neoplasms"},
		{"Leukemia, B-Cell", "leukemia, b cell"},
		{"Receptors (Artificial)", "receptors  artificial "},
	}
	for _, tt := range tests {
		if got := Analyze(tt.in); got != tt.want {
			t.Errorf("Analyze(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExplodeIncludesSelf(t *testing.T) {
	tree := newTree(t)
	got := tree.Explode("heart diseases")
	if len(got) == 0 || got[0] != "Heart Diseases" {
		t.Fatalf("Explode should start with the heading's own canonical form, got %v", got)
	}
}

func TestExplodeReturnsDescendantsOnly(t *testing.T) {
	tree := newTree(t)

	got := tree.Explode("Heart Diseases")
	want := map[string]bool{
		"Heart Diseases":        true,
		"Heart Arrest":          true,
		"Myocardial Infarction": true,
	}
	if len(got) != len(want) {
		t.Fatalf("Explode = %v, want exactly %v", got, want)
	}
	for _, h := range got {
		if !want[h] {
			t.Errorf("unexpected heading %q in explosion", h)
		}
	}

	// A child's explosion never climbs back up.
	for _, h := range tree.Explode("Myocardial Infarction") {
		if h == "Heart Diseases" || h == "Cardiovascular Diseases" {
			t.Errorf("explosion of a leaf returned ancestor %q", h)
		}
	}
}

func TestExplodeSupersetOfChild(t *testing.T) {
	tree := newTree(t)
	parent := make(map[string]bool)
	for _, h := range tree.Explode("Heart Diseases") {
		parent[h] = true
	}
	for _, h := range tree.Explode("Heart Arrest") {
		if !parent[h] {
			t.Errorf("parent explosion is missing child heading %q", h)
		}
	}
}

func TestExplodeUnknownHeading(t *testing.T) {
	tree := newTree(t)
	if got := tree.Explode("no such heading"); got != nil {
		t.Errorf("Explode of unknown heading = %v, want nil", got)
	}
}

func TestMapHeading(t *testing.T) {
	tree := newTree(t)
	if got := tree.MapHeading("heart diseases"); got != "Heart Diseases" {
		t.Errorf("MapHeading = %q, want canonical form", got)
	}
	if got := tree.MapHeading("unknown thing"); got != "unknown thing" {
		t.Errorf("MapHeading of unknown heading = %q, want input unchanged", got)
	}
}

func TestHeadingsContaining(t *testing.T) {
	tree := newTree(t)
	got := tree.HeadingsContaining("heart")
	want := map[string]bool{"Heart Diseases": true, "Heart Arrest": true}
	if len(got) != len(want) {
		t.Fatalf("HeadingsContaining = %v, want %v", got, want)
	}
	for _, h := range got {
		if !want[h] {
			t.Errorf("unexpected heading %q", h)
		}
	}
	if tree.HeadingsContaining("") != nil {
		t.Errorf("empty needle should match nothing")
	}
}

func TestMalformedLine(t *testing.T) {
	if _, err := NewTree(strings.NewReader("no separator here\n")); err == nil {
		t.Errorf("expected an error for a line without a separator")
	}
}
