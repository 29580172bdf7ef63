package query

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/litsearch/boolir/pkg/mesh"
)

// PubmedDefaultField is the alias applied to atoms written without a
// field restriction in PubMed syntax.
const PubmedDefaultField = "All Fields"

// PubmedQueryParser parses PubMed/MEDLINE style Boolean queries.
//
// Operator precedence, tightest first: NOT (binary, right
// associative), AND (left associative), OR (left associative).
// Parentheses override precedence. An atom is one of a mesh
// heading/qualifier pair (which requires a field restriction), a date
// range, a date, a quoteless phrase, or a quoted phrase, each with an
// optional bracketed field restriction.
type PubmedQueryParser struct {
	tree     *mesh.Tree
	analyzer *Analyzer
}

// NewPubmedQueryParser builds a parser around a MeSH tree used for
// heading explosion at compile time.
func NewPubmedQueryParser(tree *mesh.Tree) (*PubmedQueryParser, error) {
	analyzer, err := NewStandardAnalyzer()
	if err != nil {
		return nil, err
	}
	return &PubmedQueryParser{tree: tree, analyzer: analyzer}, nil
}

// DefaultField returns the All Fields alias.
func (p *PubmedQueryParser) DefaultField() Field {
	return Field{Name: PubmedDefaultField}
}

// Tree returns the MeSH tree the compiler explodes headings against.
func (p *PubmedQueryParser) Tree() *mesh.Tree { return p.tree }

// Parse parses an entire raw query string. The ":NoExp" spelling of
// the field option is normalized to ":noexp" before parsing.
func (p *PubmedQueryParser) Parse(raw string) (Node, error) {
	raw = strings.ReplaceAll(raw, ":NoExp", ":noexp")
	s := newScanner(raw)
	s.skipSpaces()
	if s.eof() {
		return nil, s.errorf("empty query")
	}
	ps := &pubmedScan{s: s, defaultField: p.DefaultField()}
	node, err := ps.parseOr()
	if err != nil {
		return nil, err
	}
	s.skipSpaces()
	if !s.eof() {
		return nil, s.errorf("unexpected input %q", string(s.peek()))
	}
	return node, nil
}

// pubmedScan carries scanner state through one parse.
type pubmedScan struct {
	s            *scanner
	defaultField Field
}

func (ps *pubmedScan) parseOr() (Node, error) {
	child, err := ps.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Node{child}
	for {
		save := ps.s.save()
		ps.s.skipSpaces()
		if _, ok := ps.s.keyword(true, "OR"); !ok {
			ps.s.restore(save)
			break
		}
		child, err := ps.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &OperatorNode{Operator: "OR", Children: children}, nil
}

func (ps *pubmedScan) parseAnd() (Node, error) {
	child, err := ps.parseNot()
	if err != nil {
		return nil, err
	}
	children := []Node{child}
	for {
		save := ps.s.save()
		ps.s.skipSpaces()
		if _, ok := ps.s.keyword(true, "AND"); !ok {
			ps.s.restore(save)
			break
		}
		child, err := ps.parseNot()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &OperatorNode{Operator: "AND", Children: children}, nil
}

// parseNot handles the binary right-associative NOT: "a NOT b NOT c"
// parses as NOT(a, NOT(b, c)).
func (ps *pubmedScan) parseNot() (Node, error) {
	left, err := ps.parsePrimary()
	if err != nil {
		return nil, err
	}
	save := ps.s.save()
	ps.s.skipSpaces()
	if _, ok := ps.s.keyword(true, "NOT"); !ok {
		ps.s.restore(save)
		return left, nil
	}
	right, err := ps.parseNot()
	if err != nil {
		return nil, err
	}
	return &OperatorNode{Operator: "NOT", Children: []Node{left, right}}, nil
}

func (ps *pubmedScan) parsePrimary() (Node, error) {
	ps.s.skipSpaces()
	if ps.s.accept('(') {
		node, err := ps.parseOr()
		if err != nil {
			return nil, err
		}
		ps.s.skipSpaces()
		if !ps.s.accept(')') {
			return nil, ps.s.errorf("missing closing parenthesis")
		}
		return node, nil
	}
	return ps.parseAtom()
}

// parseAtom tries the atom alternatives in grammar order. The mesh
// heading/qualifier branch is tried first and requires a field
// restriction; without one the scanner backtracks and the phrase
// branches pick the slash text up instead.
func (ps *pubmedScan) parseAtom() (Node, error) {
	if node, ok := ps.tryMeshQualifier(); ok {
		return node, nil
	}
	if node, ok, err := ps.tryDateRange(); err != nil {
		return nil, err
	} else if ok {
		return node, nil
	}
	if node, ok, err := ps.tryDate(); err != nil {
		return nil, err
	} else if ok {
		return node, nil
	}
	if node, ok, err := ps.tryQuotelessPhrase(); err != nil {
		return nil, err
	} else if ok {
		return node, nil
	}
	if node, ok, err := ps.tryQuotedPhrase(); err != nil {
		return nil, err
	} else if ok {
		return node, nil
	}
	return nil, ps.s.errorf("expected an atom")
}

func (ps *pubmedScan) tryMeshQualifier() (Node, bool) {
	save := ps.s.save()
	ps.s.skipSpaces()
	ps.s.accept('"')
	heading := strings.TrimSpace(ps.s.word(isMeshRune))
	if heading == "" || !containsLetter(heading) || !ps.s.accept('/') {
		ps.s.restore(save)
		return nil, false
	}
	qualifier := strings.TrimSpace(ps.s.word(isMeshRune))
	if qualifier == "" {
		ps.s.restore(save)
		return nil, false
	}
	ps.s.accept('"')
	field, ok, err := ps.tryField()
	if err != nil || !ok {
		ps.s.restore(save)
		return nil, false
	}
	return &AtomNode{Query: heading + "/" + qualifier, Field: field}, true
}

func (ps *pubmedScan) tryDateRange() (Node, bool, error) {
	save := ps.s.save()
	ps.s.skipSpaces()
	from, ok := scanDate(ps.s)
	if !ok {
		ps.s.restore(save)
		return nil, false, nil
	}
	ps.s.skipSpaces()
	if !ps.s.accept(':') {
		ps.s.restore(save)
		return nil, false, nil
	}
	ps.s.skipSpaces()
	to, ok := scanDate(ps.s)
	if !ok {
		ps.s.restore(save)
		return nil, false, nil
	}
	node, ok, err := ps.finishDateAtom(from.String()+":"+to.String(), save)
	return node, ok, err
}

func (ps *pubmedScan) tryDate() (Node, bool, error) {
	save := ps.s.save()
	ps.s.skipSpaces()
	d, ok := scanDate(ps.s)
	if !ok {
		ps.s.restore(save)
		return nil, false, nil
	}
	node, ok, err := ps.finishDateAtom(d.String(), save)
	return node, ok, err
}

// finishDateAtom attaches an optional field restriction to a scanned
// date. A bare date not followed by a field must end the atom;
// otherwise the whole branch backtracks so text like "2020 vision"
// parses as a phrase.
func (ps *pubmedScan) finishDateAtom(raw string, save int) (Node, bool, error) {
	field, ok, err := ps.tryField()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		if !ps.atAtomBoundary() {
			ps.s.restore(save)
			return nil, false, nil
		}
		field = ps.defaultField
	}
	return &AtomNode{Query: raw, Field: field}, true, nil
}

// atAtomBoundary reports whether the scanner sits at a position that
// can legally end an atom: end of input, a closing parenthesis, or a
// boolean keyword. Pure lookahead, the position is always restored.
func (ps *pubmedScan) atAtomBoundary() bool {
	save := ps.s.save()
	defer ps.s.restore(save)
	ps.s.skipSpaces()
	if ps.s.eof() || ps.s.peek() == ')' {
		return true
	}
	_, ok := ps.s.keyword(true, "AND", "OR", "NOT")
	return ok
}

func (ps *pubmedScan) tryQuotelessPhrase() (Node, bool, error) {
	save := ps.s.save()
	ps.s.skipSpaces()
	var words []string
	for {
		wordSave := ps.s.save()
		if len(words) > 0 {
			ps.s.skipSpaces()
		}
		if ps.peekKeyword() {
			ps.s.restore(wordSave)
			break
		}
		w := ps.s.word(isPubmedWordRune)
		if w == "" {
			ps.s.restore(wordSave)
			break
		}
		if strings.Contains(w, "**") {
			return nil, false, ps.s.errorf("wildcard may not follow wildcard")
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		ps.s.restore(save)
		return nil, false, nil
	}
	node, err := ps.finishPhraseAtom(strings.Join(words, " "))
	if err != nil {
		return nil, false, err
	}
	return node, true, nil
}

func (ps *pubmedScan) tryQuotedPhrase() (Node, bool, error) {
	save := ps.s.save()
	ps.s.skipSpaces()
	if !ps.s.accept('"') {
		ps.s.restore(save)
		return nil, false, nil
	}
	start := ps.s.save()
	for !ps.s.eof() && ps.s.peek() != '"' {
		if !isPubmedQuotedRune(ps.s.peek()) {
			return nil, false, ps.s.errorf("invalid character %q in quoted phrase", string(ps.s.peek()))
		}
		ps.s.next()
	}
	if ps.s.eof() {
		return nil, false, ps.s.errorf("unterminated quoted phrase")
	}
	text := string(ps.s.input[start:ps.s.save()])
	ps.s.accept('"')
	if strings.Contains(text, "**") {
		return nil, false, ps.s.errorf("wildcard may not follow wildcard")
	}
	node, err := ps.finishPhraseAtom(`"` + text + `"`)
	if err != nil {
		return nil, false, err
	}
	return node, true, nil
}

func (ps *pubmedScan) finishPhraseAtom(raw string) (Node, error) {
	field, ok, err := ps.tryField()
	if err != nil {
		return nil, err
	}
	if !ok {
		field = ps.defaultField
	}
	return &AtomNode{Query: raw, Field: field}, nil
}

// peekKeyword reports whether a boolean keyword starts at the current
// position, without consuming it.
func (ps *pubmedScan) peekKeyword() bool {
	save := ps.s.save()
	defer ps.s.restore(save)
	_, ok := ps.s.keyword(true, "AND", "OR", "NOT")
	return ok
}

// tryField parses an optional bracketed field restriction. A '['
// commits to the field syntax, so malformed content inside the
// brackets is a hard parse error rather than a backtrack.
func (ps *pubmedScan) tryField() (Field, bool, error) {
	save := ps.s.save()
	ps.s.skipSpaces()
	if !ps.s.accept('[') {
		ps.s.restore(save)
		return Field{}, false, nil
	}
	name := strings.TrimSpace(ps.s.word(isFieldRune))
	if name == "" {
		return Field{}, false, ps.s.errorf("empty field restriction")
	}
	option := ""
	if ps.s.accept(':') {
		if _, ok := ps.s.keyword(true, "noexp"); !ok {
			return Field{}, false, ps.s.errorf("unknown field option")
		}
		option = ":noexp"
	}
	ps.s.skipSpaces()
	if !ps.s.accept(']') {
		return Field{}, false, ps.s.errorf("unterminated field restriction")
	}
	return Field{Name: name, Option: option}, true, nil
}

// scanDate scans a 4-digit year optionally followed by /MM and /DD,
// with months and days written as exactly two digits.
func scanDate(s *scanner) (DateUnit, bool) {
	save := s.save()
	year := s.digits()
	if len(year) != 4 {
		s.restore(save)
		return DateUnit{}, false
	}
	d := DateUnit{Year: atoi(year)}
	monthSave := s.save()
	if s.accept('/') {
		month := s.digits()
		if len(month) != 2 {
			s.restore(monthSave)
			return d, true
		}
		d.Month = atoi(month)
		daySave := s.save()
		if s.accept('/') {
			day := s.digits()
			if len(day) != 2 {
				s.restore(daySave)
				return d, true
			}
			d.Day = atoi(day)
		}
	}
	return d, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// parsePubmedUnit recovers the typed unit form of an atom's raw
// query string. Compilation runs every atom back through this, so a
// tree reassembled from formatted output compiles identically to the
// one parsed from the raw query.
func parsePubmedUnit(raw string) (Unit, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &CompileError{Atom: raw, Msg: "empty atom"}
	}

	// Quoted phrase.
	if strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) && len(raw) >= 2 {
		text := raw[1 : len(raw)-1]
		return TermUnit{Text: text, Quoted: true, Fuzzy: strings.Contains(text, "*")}, nil
	}

	// Date range, then date, matched against the whole string.
	s := newScanner(raw)
	if from, ok := scanDate(s); ok {
		if s.accept(':') {
			if to, ok := scanDate(s); ok && s.eof() {
				return DateRangeUnit{From: from, To: to}, nil
			}
		} else if s.eof() {
			return from, nil
		}
	}

	// Heading/qualifier pair.
	if i := strings.IndexByte(raw, '/'); i > 0 {
		heading := strings.TrimSpace(raw[:i])
		qualifier := strings.TrimSpace(raw[i+1:])
		if heading != "" && qualifier != "" && containsLetter(heading) &&
			!strings.ContainsRune(qualifier, '/') {
			return MeSHQualifiedUnit{Heading: heading, Qualifier: qualifier}, nil
		}
	}

	return TermUnit{Text: raw, Quoted: false, Fuzzy: strings.Contains(raw, "*")}, nil
}

// Character classes.

const pubmedExtraRunes = "-–_,'’&*?./"
const meshExtraRunes = "-–_,'’&*?. "
const fieldExtraRunes = "-_/ "

func isPubmedWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(pubmedExtraRunes, r)
}

func isPubmedQuotedRune(r rune) bool {
	return isPubmedWordRune(r) || strings.ContainsRune("[]() ", r)
}

func isMeshRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(meshExtraRunes, r)
}

func isFieldRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(fieldExtraRunes, r)
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
