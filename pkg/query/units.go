package query

import (
	"fmt"
	"strings"
)

// Unit is the typed form of an atom's query string, recovered by
// reparsing AtomNode.Query at compile time. Exactly one concrete
// type applies to any atom.
type Unit interface {
	unit()
}

// TermUnit is a free-text term or phrase. Quoted marks phrases that
// were written in double quotes, Fuzzy marks wildcard terms.
type TermUnit struct {
	Text   string
	Quoted bool
	Fuzzy  bool
}

func (TermUnit) unit() {}

// Words splits the term into its whitespace-separated words.
func (t TermUnit) Words() []string {
	return strings.Fields(t.Text)
}

// DateUnit is a date written at year, year/month, or year/month/day
// precision. Month and Day are zero when unspecified.
type DateUnit struct {
	Year  int
	Month int
	Day   int
}

func (DateUnit) unit() {}

// Precision reports how many components the date carries: 1 for a
// bare year, 2 for year/month, 3 for a full date.
func (d DateUnit) Precision() int {
	switch {
	case d.Day != 0:
		return 3
	case d.Month != 0:
		return 2
	default:
		return 1
	}
}

// String renders the date in raw query syntax at its own precision.
func (d DateUnit) String() string {
	switch d.Precision() {
	case 3:
		return fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day)
	case 2:
		return fmt.Sprintf("%04d/%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d", d.Year)
	}
}

// DateRangeUnit is a from:to pair of dates. The sides may carry
// different precisions and are completed independently when compiled.
type DateRangeUnit struct {
	From DateUnit
	To   DateUnit
}

func (DateRangeUnit) unit() {}

// MeSHQualifiedUnit is a heading/qualifier pair such as
// "diabetes mellitus/drug therapy". The qualifier is matched against
// the qualifier list independently of the heading.
type MeSHQualifiedUnit struct {
	Heading   string
	Qualifier string
}

func (MeSHQualifiedUnit) unit() {}

// NormalQualifier is NormalizeQualifier applied to the unit's
// qualifier.
func (m MeSHQualifiedUnit) NormalQualifier() string {
	return NormalizeQualifier(m.Qualifier)
}

// NormalizeQualifier lowercases a MeSH qualifier and collapses the
// written "and" conjunction to the ampersand form used by the
// qualifier vocabulary, so "Administration and Dosage" matches
// "administration & dosage". Ingestion applies the same normalization
// to stored qualifier lists.
func NormalizeQualifier(qualifier string) string {
	q := strings.ToLower(qualifier)
	return strings.ReplaceAll(q, " and ", " & ")
}
