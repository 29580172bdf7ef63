package query

import (
	"strings"
	"unicode"

	bleve "github.com/blevesearch/bleve/v2"
	bleveq "github.com/blevesearch/bleve/v2/search/query"
)

// GenericDefaultField is the field searched by atoms written without
// a ":field" suffix in the generic grammar.
const GenericDefaultField = "contents"

// GenericQueryParser parses Lucene-like queries: bare or quoted
// phrases with an optional ":field" suffix, combined with exact-case
// AND/OR/NOT keywords under the same precedence as the PubMed
// grammar. Punctuation is stripped from the raw query before
// parsing, so Format output renders atoms in PubMed bracket syntax
// rather than the ":field" input form; feed formatted trees back
// through the PubMed parser, not this one.
type GenericQueryParser struct {
	analyzer *Analyzer
}

// NewGenericQueryParser builds a generic parser. Atom text is
// stemmed and stop-filtered with the English analyzer at compile
// time.
func NewGenericQueryParser() (*GenericQueryParser, error) {
	analyzer, err := NewEnglishAnalyzer()
	if err != nil {
		return nil, err
	}
	return &GenericQueryParser{analyzer: analyzer}, nil
}

// DefaultField returns the contents field.
func (p *GenericQueryParser) DefaultField() Field {
	return Field{Name: GenericDefaultField}
}

// Parse parses an entire raw query string.
func (p *GenericQueryParser) Parse(raw string) (Node, error) {
	raw = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`.-/,?*'`, r) {
			return -1
		}
		return r
	}, raw)
	s := newScanner(raw)
	s.skipSpaces()
	if s.eof() {
		return nil, s.errorf("empty query")
	}
	gs := &genericScan{s: s, defaultField: p.DefaultField()}
	node, err := gs.parseOr()
	if err != nil {
		return nil, err
	}
	s.skipSpaces()
	if !s.eof() {
		return nil, s.errorf("unexpected input %q", string(s.peek()))
	}
	return node, nil
}

// Compile lowers a generic tree into a bleve query. Quoted
// multi-word atoms become phrase queries; everything else becomes a
// disjunction of stemmed terms on the atom's field.
func (p *GenericQueryParser) Compile(node Node) (bleveq.Query, error) {
	switch n := node.(type) {
	case *AtomNode:
		return p.compileAtom(n)
	case *OperatorNode:
		children := make([]bleveq.Query, len(n.Children))
		for i, c := range n.Children {
			q, err := p.Compile(c)
			if err != nil {
				return nil, err
			}
			children[i] = q
		}
		switch BaseOperator(strings.ToUpper(n.Operator)) {
		case "AND":
			return bleve.NewConjunctionQuery(children...), nil
		case "OR":
			return bleve.NewDisjunctionQuery(children...), nil
		case "NOT":
			if len(children) != 2 {
				return nil, &CompileError{Msg: "NOT takes exactly two operands"}
			}
			q := bleve.NewBooleanQuery()
			q.AddMust(children[0])
			q.AddMustNot(children[1])
			return q, nil
		}
		return nil, &CompileError{Msg: "unknown operator " + n.Operator}
	}
	return nil, &CompileError{Msg: "unsupported node type"}
}

func (p *GenericQueryParser) compileAtom(atom *AtomNode) (bleveq.Query, error) {
	field := atom.Field.Name
	text := atom.Query
	quoted := strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) && len(text) >= 2
	if quoted {
		text = text[1 : len(text)-1]
	}
	if quoted && len(strings.Fields(text)) > 1 {
		q := bleve.NewMatchPhraseQuery(text)
		q.SetField(field)
		return q, nil
	}
	tokens := p.analyzer.Tokens(text)
	if len(tokens) == 0 {
		return nil, &CompileError{Atom: atom.Format(), Msg: "atom analyzes to no tokens"}
	}
	terms := make([]bleveq.Query, len(tokens))
	for i, tok := range tokens {
		tq := bleve.NewTermQuery(tok)
		tq.SetField(field)
		terms[i] = tq
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return bleve.NewDisjunctionQuery(terms...), nil
}

type genericScan struct {
	s            *scanner
	defaultField Field
}

func (gs *genericScan) parseOr() (Node, error) {
	child, err := gs.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Node{child}
	for {
		save := gs.s.save()
		gs.s.skipSpaces()
		if _, ok := gs.s.keyword(false, "OR"); !ok {
			gs.s.restore(save)
			break
		}
		child, err := gs.parseAnd()
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

func (gs *genericScan) parseAnd() (Node, error) {
	child, err := gs.parseNot()
	if err != nil {
		return nil, err
	}
	children := []Node{child}
	for {
		save := gs.s.save()
		gs.s.skipSpaces()
		if _, ok := gs.s.keyword(false, "AND"); !ok {
			gs.s.restore(save)
			break
		}
		child, err := gs.parseNot()
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

func (gs *genericScan) parseNot() (Node, error) {
	left, err := gs.parsePrimary()
	if err != nil {
		return nil, err
	}
	save := gs.s.save()
	gs.s.skipSpaces()
	if _, ok := gs.s.keyword(false, "NOT"); !ok {
		gs.s.restore(save)
		return left, nil
	}
	right, err := gs.parseNot()
	if err != nil {
		return nil, err
	}
	return &OperatorNode{Operator: "NOT", Children: []Node{left, right}}, nil
}

func (gs *genericScan) parsePrimary() (Node, error) {
	gs.s.skipSpaces()
	if gs.s.accept('(') {
		node, err := gs.parseOr()
		if err != nil {
			return nil, err
		}
		gs.s.skipSpaces()
		if !gs.s.accept(')') {
			return nil, gs.s.errorf("missing closing parenthesis")
		}
		return node, nil
	}
	return gs.parseAtom()
}

func (gs *genericScan) parseAtom() (Node, error) {
	gs.s.skipSpaces()
	if gs.s.peek() == '"' {
		return gs.parseQuoted()
	}
	var words []string
	for {
		save := gs.s.save()
		if len(words) > 0 {
			gs.s.skipSpaces()
		}
		if gs.peekKeyword() {
			gs.s.restore(save)
			break
		}
		w := gs.s.word(isGenericWordRune)
		if w == "" {
			gs.s.restore(save)
			break
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return nil, gs.s.errorf("expected an atom")
	}
	return gs.finishAtom(strings.Join(words, " "))
}

func (gs *genericScan) parseQuoted() (Node, error) {
	gs.s.accept('"')
	start := gs.s.save()
	for !gs.s.eof() && gs.s.peek() != '"' {
		r := gs.s.next()
		if !isGenericWordRune(r) && r != ' ' {
			return nil, gs.s.errorf("invalid character %q in quoted phrase", string(r))
		}
	}
	if gs.s.eof() {
		return nil, gs.s.errorf("unterminated quoted phrase")
	}
	text := string(gs.s.input[start:gs.s.save()])
	gs.s.accept('"')
	return gs.finishAtom(`"` + text + `"`)
}

func (gs *genericScan) finishAtom(raw string) (Node, error) {
	field := gs.defaultField
	if gs.s.accept(':') {
		name := gs.s.word(isGenericFieldRune)
		if name == "" {
			return nil, gs.s.errorf("empty field restriction")
		}
		field = Field{Name: name}
	}
	return &AtomNode{Query: raw, Field: field}, nil
}

func (gs *genericScan) peekKeyword() bool {
	save := gs.s.save()
	defer gs.s.restore(save)
	_, ok := gs.s.keyword(false, "AND", "OR", "NOT")
	return ok
}

func isGenericWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isGenericFieldRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}
