package query

import (
	"fmt"
)

// Index field names shared by the PubMed article mapping and the
// query compiler.
const (
	FieldID             = "id"
	FieldTitle          = "title"
	FieldAbstract       = "abstract"
	FieldDate           = "date"
	FieldMeSHHeadings   = "mesh_heading_list"
	FieldMeSHMajor      = "mesh_major_heading_list"
	FieldMeSHQualifiers = "mesh_qualifier_list"
	FieldSupplementary  = "supplementary_concept_list"
	FieldPublicationTyp = "publication_type"
	FieldKeywords       = "keyword_list"
	FieldAllFields      = "all_fields"
)

// fieldAliases maps the field tags that appear in raw PubMed queries
// to the index fields they search. An alias can fan out to more than
// one index field because title and abstract are stored separately.
var fieldAliases = map[string][]string{
	"All Fields":     {FieldAllFields},
	"all":            {FieldAllFields},
	"tw":             {FieldAllFields},
	"Text Word":      {FieldAllFields},

	"Title/Abstract": {FieldTitle, FieldAbstract},
	"tiab":           {FieldTitle, FieldAbstract},
	"TIAB":           {FieldTitle, FieldAbstract},
	"Title":          {FieldTitle},
	"ti":             {FieldTitle},
	"Abstract":       {FieldAbstract},
	"ab":             {FieldAbstract},

	"mh":                     {FieldMeSHHeadings},
	"MeSH":                   {FieldMeSHHeadings},
	"MESH":                   {FieldMeSHHeadings},
	"Mesh":                   {FieldMeSHHeadings},
	"MeSH Terms":             {FieldMeSHHeadings},
	"Pharmacological Action": {FieldMeSHHeadings},

	"nm":                    {FieldSupplementary},
	"Supplementary Concept": {FieldSupplementary},

	"sh":              {FieldMeSHQualifiers},
	"Subheading":      {FieldMeSHQualifiers},
	"MeSH Subheading": {FieldMeSHQualifiers},

	"MAJR": {FieldMeSHMajor},
	"Majr": {FieldMeSHMajor},
	"majr": {FieldMeSHMajor},

	"Publication Type": {FieldPublicationTyp},
	"pt":               {FieldPublicationTyp},
	"jour":             {FieldPublicationTyp},

	"Keywords": {FieldKeywords},
	"kw":       {FieldKeywords},

	"Publication Date": {FieldDate},
	"dp":               {FieldDate},

	"PMID": {FieldID},
	"pmid": {FieldID},
}

// meshFields is the set of index fields whose atoms count as MeSH
// atoms for analysis purposes.
var meshFields = map[string]bool{
	FieldMeSHHeadings:   true,
	FieldMeSHMajor:      true,
	FieldMeSHQualifiers: true,
	FieldSupplementary:  true,
}

// UnknownFieldError reports a field alias that has no index mapping.
type UnknownFieldError struct {
	Alias string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field alias %q", e.Alias)
}

// ResolveField maps a raw field alias to the index fields it
// searches. Aliases are matched exactly as written in the mapping
// table; an unmapped alias returns UnknownFieldError.
func ResolveField(alias string) ([]string, error) {
	fields, ok := fieldAliases[alias]
	if !ok {
		return nil, &UnknownFieldError{Alias: alias}
	}
	return fields, nil
}

// IsMeSHField reports whether the alias resolves to a MeSH-family
// index field. Unknown aliases report false.
func IsMeSHField(alias string) bool {
	fields, err := ResolveField(alias)
	if err != nil {
		return false
	}
	for _, f := range fields {
		if meshFields[f] {
			return true
		}
	}
	return false
}

// IsDateField reports whether the alias resolves to the single date
// index field.
func IsDateField(alias string) bool {
	fields, err := ResolveField(alias)
	if err != nil {
		return false
	}
	return len(fields) == 1 && fields[0] == FieldDate
}
