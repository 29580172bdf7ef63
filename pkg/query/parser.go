package query

import (
	"fmt"
	"strings"
	"unicode"

	bleveq "github.com/blevesearch/bleve/v2/search/query"
)

// Parser turns raw query strings into trees and trees into executable
// index queries. Implementations fix the grammar and the default
// field applied to unrestricted atoms.
type Parser interface {
	// Parse parses the entire raw string into a query tree.
	Parse(raw string) (Node, error)
	// Compile lowers a parsed tree into a bleve query. Atoms are
	// reparsed from their raw form, so any tree assembled from
	// Format output compiles identically.
	Compile(node Node) (bleveq.Query, error)
	// DefaultField is the field applied to atoms written without a
	// restriction.
	DefaultField() Field
}

// ParseError reports where and why a raw query failed to parse. Pos
// is a rune offset into the query.
type ParseError struct {
	Query string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Msg)
}

// CompileError reports an atom that parsed but cannot be lowered to
// an index query, such as a date under a text field.
type CompileError struct {
	Atom string
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("cannot compile atom %q: %s", e.Atom, e.Msg)
}

// scanner is a backtracking cursor over the runes of a raw query.
// Branch attempts save the position and restore it on failure.
type scanner struct {
	input []rune
	pos   int
}

func newScanner(raw string) *scanner {
	return &scanner{input: []rune(raw)}
}

func (s *scanner) save() int       { return s.pos }
func (s *scanner) restore(pos int) { s.pos = pos }
func (s *scanner) eof() bool       { return s.pos >= len(s.input) }

func (s *scanner) peek() rune {
	if s.eof() {
		return 0
	}
	return s.input[s.pos]
}

func (s *scanner) next() rune {
	r := s.peek()
	if r != 0 {
		s.pos++
	}
	return r
}

func (s *scanner) skipSpaces() {
	for !s.eof() && unicode.IsSpace(s.peek()) {
		s.pos++
	}
}

// accept consumes the next rune if it equals r.
func (s *scanner) accept(r rune) bool {
	if s.peek() == r {
		s.pos++
		return true
	}
	return false
}

// digits consumes a maximal run of ASCII digits.
func (s *scanner) digits() string {
	start := s.pos
	for !s.eof() && s.peek() >= '0' && s.peek() <= '9' {
		s.pos++
	}
	return string(s.input[start:s.pos])
}

// word consumes a maximal run of runes accepted by valid.
func (s *scanner) word(valid func(rune) bool) string {
	start := s.pos
	for !s.eof() && valid(s.peek()) {
		s.pos++
	}
	return string(s.input[start:s.pos])
}

// keyword consumes one of the given words at the current position,
// requiring a word boundary after it. Matching is case-insensitive
// when fold is true, exact otherwise. Returns the canonical
// (upper-case) form of the matched word.
func (s *scanner) keyword(fold bool, words ...string) (string, bool) {
	for _, w := range words {
		n := len([]rune(w))
		if s.pos+n > len(s.input) {
			continue
		}
		got := string(s.input[s.pos : s.pos+n])
		if fold && !strings.EqualFold(got, w) {
			continue
		}
		if !fold && got != w {
			continue
		}
		// reject Andorra matching AND
		if s.pos+n < len(s.input) {
			after := s.input[s.pos+n]
			if unicode.IsLetter(after) || unicode.IsDigit(after) {
				continue
			}
		}
		s.pos += n
		return strings.ToUpper(w), true
	}
	return "", false
}

func (s *scanner) errorf(format string, args ...interface{}) *ParseError {
	return &ParseError{
		Query: string(s.input),
		Pos:   s.pos,
		Msg:   fmt.Sprintf(format, args...),
	}
}
