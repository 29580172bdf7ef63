// Package index stores PubMed articles in a bleve index and exposes
// the search surface the retrieval layer evaluates queries against.
package index

import (
	"time"

	"github.com/litsearch/boolir/pkg/query"
)

// Article is one indexed PubMed record. Document identifiers in the
// index are PMIDs.
type Article struct {
	PMID             string    `json:"pmid"`
	Title            string    `json:"title"`
	Abstract         string    `json:"abstract"`
	Date             time.Time `json:"date"`
	MeSHHeadings     []string  `json:"mesh_heading_list"`
	MajorHeadings    []string  `json:"mesh_major_heading_list"`
	Qualifiers       []string  `json:"mesh_qualifier_list"`
	Supplementary    []string  `json:"supplementary_concept_list"`
	PublicationTypes []string  `json:"publication_type"`
	Keywords         []string  `json:"keyword_list"`
}

// Document converts the article to the flat map that gets indexed.
// Field names match the aliases the query compiler resolves to, and
// qualifiers are normalized the same way the compiler normalizes
// qualifier atoms so term matching lines up.
func (a *Article) Document() map[string]interface{} {
	qualifiers := make([]string, len(a.Qualifiers))
	for i, q := range a.Qualifiers {
		qualifiers[i] = query.NormalizeQualifier(q)
	}
	return map[string]interface{}{
		query.FieldID:             a.PMID,
		query.FieldTitle:          a.Title,
		query.FieldAbstract:       a.Abstract,
		query.FieldDate:           a.Date,
		query.FieldMeSHHeadings:   a.MeSHHeadings,
		query.FieldMeSHMajor:      a.MajorHeadings,
		query.FieldMeSHQualifiers: qualifiers,
		query.FieldSupplementary:  a.Supplementary,
		query.FieldPublicationTyp: a.PublicationTypes,
		query.FieldKeywords:       a.Keywords,
	}
}
