package query

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/registry"
)

// Analyzer normalizes free text the same way the index analyzes the
// title and abstract fields, so compiled term queries line up with
// indexed tokens.
type Analyzer struct {
	name     string
	analyzer analysis.Analyzer
}

// NewStandardAnalyzer returns the analyzer used for PubMed text
// fields: unicode tokenization and lowercasing without stemming.
func NewStandardAnalyzer() (*Analyzer, error) {
	return newAnalyzer(standard.Name)
}

// NewEnglishAnalyzer returns the analyzer used by the generic query
// grammar: English stop word removal and stemming on top of the
// standard tokenizer.
func NewEnglishAnalyzer() (*Analyzer, error) {
	return newAnalyzer(en.AnalyzerName)
}

func newAnalyzer(name string) (*Analyzer, error) {
	cache := registry.NewCache()
	a, err := cache.AnalyzerNamed(name)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s analyzer: %w", name, err)
	}
	return &Analyzer{name: name, analyzer: a}, nil
}

// Name returns the registered bleve name of the analyzer.
func (a *Analyzer) Name() string { return a.name }

// Tokens analyzes text and returns the resulting token terms in
// order.
func (a *Analyzer) Tokens(text string) []string {
	stream := a.analyzer.Analyze([]byte(text))
	tokens := make([]string, 0, len(stream))
	for _, t := range stream {
		tokens = append(tokens, string(t.Term))
	}
	return tokens
}

// Normalize analyzes text and joins the resulting tokens with single
// spaces. Bracket and slash characters are treated as separators
// before analysis so heading-like strings tokenize cleanly.
func (a *Analyzer) Normalize(text string) string {
	replacer := strings.NewReplacer("[", " ", "]", " ", "/", " ")
	return strings.Join(a.Tokens(replacer.Replace(text)), " ")
}
