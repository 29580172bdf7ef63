package query

import (
	"strings"
	"time"

	bleve "github.com/blevesearch/bleve/v2"
	bleveq "github.com/blevesearch/bleve/v2/search/query"
)

var rangeInclusive = true

// Compile lowers a parsed tree into a bleve query. Atom queries are
// recovered through parsePubmedUnit, so a tree reassembled from
// Format output compiles identically to the originally parsed one.
func (p *PubmedQueryParser) Compile(node Node) (bleveq.Query, error) {
	switch n := node.(type) {
	case *AtomNode:
		return p.compileAtom(n)
	case *OperatorNode:
		return p.compileOperator(n)
	}
	return nil, &CompileError{Msg: "unsupported node type"}
}

func (p *PubmedQueryParser) compileOperator(node *OperatorNode) (bleveq.Query, error) {
	children := make([]bleveq.Query, len(node.Children))
	for i, c := range node.Children {
		q, err := p.Compile(c)
		if err != nil {
			return nil, err
		}
		children[i] = q
	}
	switch BaseOperator(strings.ToUpper(node.Operator)) {
	case "AND":
		return bleve.NewConjunctionQuery(children...), nil
	case "OR":
		return bleve.NewDisjunctionQuery(children...), nil
	case "NOT":
		if len(children) != 2 {
			return nil, &CompileError{Msg: "NOT takes exactly two operands"}
		}
		// Left minus right: results are always a subset of the
		// left operand's matches.
		q := bleve.NewBooleanQuery()
		q.AddMust(children[0])
		q.AddMustNot(children[1])
		return q, nil
	}
	return nil, &CompileError{Msg: "unknown operator " + node.Operator}
}

func (p *PubmedQueryParser) compileAtom(atom *AtomNode) (bleveq.Query, error) {
	unit, err := parsePubmedUnit(atom.Query)
	if err != nil {
		return nil, err
	}
	mapped, err := ResolveField(atom.Field.Name)
	if err != nil {
		return nil, err
	}
	explode := !atom.Field.NoExplode()

	if mapped[0] == FieldAllFields {
		return p.compileAllFields(atom.Query), nil
	}

	switch u := unit.(type) {
	case MeSHQualifiedUnit:
		return p.compileMeshQualified(u, mapped, explode), nil
	case TermUnit:
		return p.compileTerm(u, mapped, explode, atom)
	case DateUnit:
		if len(mapped) != 1 || mapped[0] != FieldDate {
			return nil, &CompileError{Atom: atom.Format(), Msg: "date atom requires a date field"}
		}
		start, end := dateBounds(u)
		return dateRangeQuery(start, end), nil
	case DateRangeUnit:
		if len(mapped) != 1 || mapped[0] != FieldDate {
			return nil, &CompileError{Atom: atom.Format(), Msg: "date range atom requires a date field"}
		}
		return dateRangeQuery(rangeStart(u.From), rangeEnd(u.To)), nil
	}
	return nil, &CompileError{Atom: atom.Format(), Msg: "unsupported atom unit"}
}

// compileAllFields expands an unrestricted atom the way PubMed
// interprets All Fields: the free text against title and abstract,
// plus every MeSH heading containing the text as a substring,
// exploded and matched against the heading and publication type
// fields.
func (p *PubmedQueryParser) compileAllFields(text string) bleveq.Query {
	analyzed := p.analyzedText(TermUnit{Text: strings.Trim(text, `"`), Fuzzy: strings.Contains(text, "*")})

	var clauses []bleveq.Query
	for _, field := range []string{FieldTitle, FieldAbstract} {
		wq := bleve.NewWildcardQuery(analyzed)
		wq.SetField(field)
		pq := bleve.NewMatchPhraseQuery(analyzed)
		pq.SetField(field)
		tq := bleve.NewTermQuery(analyzed)
		tq.SetField(field)
		clauses = append(clauses, wq, pq, tq)
	}
	if p.tree != nil {
		for _, heading := range p.tree.HeadingsContaining(strings.ToLower(strings.Trim(text, `"`))) {
			for _, exploded := range p.tree.Explode(heading) {
				hq := bleve.NewTermQuery(exploded)
				hq.SetField(FieldMeSHHeadings)
				ptq := bleve.NewTermQuery(exploded)
				ptq.SetField(FieldPublicationTyp)
				clauses = append(clauses, hq, ptq)
			}
		}
	}
	return bleve.NewDisjunctionQuery(clauses...)
}

// compileMeshQualified matches a heading/qualifier pair: the heading
// (exploded unless suppressed) must co-occur with the qualifier on
// the qualifier list.
func (p *PubmedQueryParser) compileMeshQualified(u MeSHQualifiedUnit, mapped []string, explode bool) bleveq.Query {
	var headingClauses []bleveq.Query
	for _, f := range mapped {
		tq := bleve.NewTermQuery(p.canonicalHeading(u.Heading))
		tq.SetField(f)
		headingClauses = append(headingClauses, tq)
	}
	if explode && p.tree != nil {
		for _, heading := range p.tree.Explode(u.Heading) {
			tq := bleve.NewTermQuery(heading)
			tq.SetField(FieldMeSHHeadings)
			headingClauses = append(headingClauses, tq)
		}
	}
	qq := bleve.NewTermQuery(u.NormalQualifier())
	qq.SetField(FieldMeSHQualifiers)
	return bleve.NewConjunctionQuery(bleve.NewDisjunctionQuery(headingClauses...), qq)
}

func (p *PubmedQueryParser) compileTerm(u TermUnit, mapped []string, explode bool, atom *AtomNode) (bleveq.Query, error) {
	// MeSH-family and publication type fields hold controlled
	// vocabulary terms, not free text.
	if mapped[0] == FieldMeSHQualifiers {
		q := bleve.NewTermQuery(strings.ReplaceAll(strings.ToLower(u.Text), " and ", " & "))
		q.SetField(FieldMeSHQualifiers)
		return q, nil
	}
	if mapped[0] == FieldMeSHHeadings || mapped[0] == FieldMeSHMajor {
		return p.compileHeading(u.Text, mapped[0], explode), nil
	}
	if mapped[0] == FieldPublicationTyp {
		return p.compileHeading(u.Text, FieldPublicationTyp, explode), nil
	}
	if mapped[0] == FieldSupplementary {
		lower := bleve.NewTermQuery(strings.ToLower(u.Text))
		lower.SetField(FieldSupplementary)
		exact := bleve.NewTermQuery(u.Text)
		exact.SetField(FieldSupplementary)
		return bleve.NewDisjunctionQuery(lower, exact), nil
	}
	if mapped[0] == FieldID {
		q := bleve.NewDocIDQuery([]string{strings.TrimSpace(u.Text)})
		return q, nil
	}

	analyzed := p.analyzedText(u)
	if analyzed == "" {
		return nil, &CompileError{Atom: atom.Format(), Msg: "atom analyzes to no tokens"}
	}
	var perField []bleveq.Query
	for _, f := range mapped {
		perField = append(perField, textQuery(analyzed, u.Fuzzy, f))
	}
	if len(perField) == 1 {
		return perField[0], nil
	}
	return bleve.NewDisjunctionQuery(perField...), nil
}

// compileHeading matches a controlled vocabulary term on one field,
// exploding descendants onto the heading list unless suppressed.
func (p *PubmedQueryParser) compileHeading(text, field string, explode bool) bleveq.Query {
	self := bleve.NewTermQuery(p.canonicalHeading(text))
	self.SetField(field)
	if !explode || p.tree == nil {
		return self
	}
	exploded := p.tree.Explode(text)
	if len(exploded) <= 1 {
		return self
	}
	clauses := []bleveq.Query{self}
	// The first exploded entry is the heading itself, already
	// covered by the self clause.
	for _, heading := range exploded[1:] {
		tq := bleve.NewTermQuery(heading)
		tq.SetField(FieldMeSHHeadings)
		clauses = append(clauses, tq)
	}
	return bleve.NewDisjunctionQuery(clauses...)
}

func (p *PubmedQueryParser) canonicalHeading(text string) string {
	if p.tree == nil {
		return text
	}
	return p.tree.MapHeading(text)
}

// analyzedText normalizes free text for matching. Wildcard terms
// bypass the analyzer so the pattern characters survive.
func (p *PubmedQueryParser) analyzedText(u TermUnit) string {
	if u.Fuzzy {
		return strings.ToLower(strings.TrimSpace(u.Text))
	}
	return p.analyzer.Normalize(u.Text)
}

func textQuery(analyzed string, fuzzy bool, field string) bleveq.Query {
	if strings.Contains(analyzed, " ") {
		q := bleve.NewMatchPhraseQuery(analyzed)
		q.SetField(field)
		return q
	}
	if fuzzy {
		q := bleve.NewWildcardQuery(analyzed)
		q.SetField(field)
		return q
	}
	q := bleve.NewTermQuery(analyzed)
	q.SetField(field)
	return q
}

func dateRangeQuery(start, end time.Time) bleveq.Query {
	q := bleve.NewDateRangeInclusiveQuery(start, end, &rangeInclusive, &rangeInclusive)
	q.SetField(FieldDate)
	return q
}

// dateBounds resolves a single partially specified date to its
// inclusive calendar bounds: a full date spans one day, a year/month
// spans the month, a bare year spans the year.
func dateBounds(d DateUnit) (time.Time, time.Time) {
	switch d.Precision() {
	case 3:
		day := ClampDate(d.Year, d.Month, d.Day)
		return day, day
	case 2:
		return monthBounds(d.Year, d.Month)
	default:
		return ClampDate(d.Year, 1, 1), ClampDate(d.Year, 12, 31)
	}
}

// rangeStart resolves the from side of a date range to its earliest
// covered day.
func rangeStart(d DateUnit) time.Time {
	switch d.Precision() {
	case 3:
		return ClampDate(d.Year, d.Month, d.Day)
	case 2:
		start, _ := monthBounds(d.Year, d.Month)
		return start
	default:
		return ClampDate(d.Year, 1, 1)
	}
}

// rangeEnd resolves the to side of a date range to its latest
// covered day.
func rangeEnd(d DateUnit) time.Time {
	switch d.Precision() {
	case 3:
		return ClampDate(d.Year, d.Month, d.Day)
	case 2:
		_, end := monthBounds(d.Year, d.Month)
		return end
	default:
		return ClampDate(d.Year, 12, 31)
	}
}

func monthBounds(year, month int) (time.Time, time.Time) {
	start := ClampDate(year, month, 1)
	end := start.AddDate(0, 1, -1)
	return start, end
}

// ClampDate builds a UTC date from possibly malformed components.
// Publication date metadata is known to contain out-of-range values,
// which are tolerated rather than rejected: an out-of-range month is
// first swapped with the day, and a day that still does not fit its
// month resets to the 1st.
func ClampDate(year, month, day int) time.Time {
	if month < 1 || month > 12 {
		month, day = day, month
	}
	if month < 1 || month > 12 {
		month = 1
	}
	if day < 1 || day > daysInMonth(year, month) {
		day = 1
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
