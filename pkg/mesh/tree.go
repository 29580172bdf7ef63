// Package mesh loads the MeSH heading hierarchy from its flat tree
// file and answers subsumption queries over it. Headings are matched
// case-insensitively under a light normalization shared with the
// article indexing pipeline.
package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// defaultMinShortHeadingLength bounds the set of headings considered
// "short" and therefore prone to spurious substring matches.
const defaultMinShortHeadingLength = 5

type entry struct {
	location string
	heading  string
}

// Tree is the MeSH hierarchy. Entries are kept in file order, which
// is assumed to be sorted by tree location so that the descendants of
// a heading form a contiguous run.
type Tree struct {
	entries   []entry
	locations map[string]int
	analyzed  []string
	minShort  int
}

// Analyze normalizes a heading for lookup: lower-cased, trimmed, with
// hyphens, pluses and parentheses treated as spaces.
func Analyze(heading string) string {
	replacer := strings.NewReplacer("-", " ", "+", " ", "(", " ", ")", " ")
	return replacer.Replace(strings.ToLower(strings.TrimSpace(heading)))
}

// NewTree reads a tree file of "heading;location" lines. When a
// heading appears at several tree locations, the last one wins for
// lookup purposes.
func NewTree(r io.Reader) (*Tree, error) {
	t := &Tree{locations: make(map[string]int), minShort: defaultMinShortHeadingLength}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		heading, location, ok := strings.Cut(line, ";")
		if !ok {
			return nil, fmt.Errorf("malformed tree line %d: %q", lineNo, line)
		}
		analyzed := Analyze(heading)
		t.locations[analyzed] = len(t.entries)
		t.entries = append(t.entries, entry{
			location: strings.TrimSpace(location),
			heading:  strings.TrimSpace(heading),
		})
		t.analyzed = append(t.analyzed, analyzed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}
	return t, nil
}

// LoadTree opens and parses a tree file from disk.
func LoadTree(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mesh tree: %w", err)
	}
	defer f.Close()
	return NewTree(f)
}

// Len returns the number of tree entries.
func (t *Tree) Len() int { return len(t.entries) }

// Explode returns the heading and every heading subsumed by it, in
// tree order. An unknown heading explodes to nothing.
func (t *Tree) Explode(heading string) []string {
	index, ok := t.locations[Analyze(heading)]
	if !ok {
		return nil
	}
	prefix := t.entries[index].location
	var exploded []string
	for _, e := range t.entries[index:] {
		if !strings.HasPrefix(e.location, prefix) {
			break
		}
		exploded = append(exploded, e.heading)
	}
	return exploded
}

// MapHeading canonicalizes a heading to the exact form recorded in
// the tree file. Unknown headings are returned unchanged.
func (t *Tree) MapHeading(heading string) string {
	index, ok := t.locations[Analyze(heading)]
	if !ok {
		return heading
	}
	return t.entries[index].heading
}

// Contains reports whether the heading is present in the tree.
func (t *Tree) Contains(heading string) bool {
	_, ok := t.locations[Analyze(heading)]
	return ok
}

// HeadingsContaining returns the canonical headings whose analyzed
// form contains the analyzed needle as a substring, in tree order.
func (t *Tree) HeadingsContaining(needle string) []string {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for i, analyzed := range t.analyzed {
		if strings.Contains(analyzed, needle) && !seen[analyzed] {
			seen[analyzed] = true
			out = append(out, t.entries[i].heading)
		}
	}
	return out
}

// ShortHeadings returns the analyzed headings no longer than the
// short-heading cutoff. These tend to produce noisy substring
// matches during all-field expansion.
func (t *Tree) ShortHeadings() map[string]bool {
	short := make(map[string]bool)
	for analyzed := range t.locations {
		if len(analyzed) <= t.minShort {
			short[analyzed] = true
		}
	}
	return short
}
