// Package qpp computes query performance predictors: cheap
// structural and retrieval statistics of a Boolean query used as
// features for effectiveness prediction.
package qpp

import (
	"context"
	"fmt"

	"github.com/litsearch/boolir/pkg/index"
	"github.com/litsearch/boolir/pkg/query"
)

// Result is one predictor value for one query.
type Result struct {
	QPP    string  `json:"qpp"`
	Query  string  `json:"query"`
	Result float64 `json:"result"`
}

// Predictor computes one statistic over a parsed query.
type Predictor interface {
	Name() string
	Measure(ctx context.Context, searcher index.Searcher, parser query.Parser, node query.Node) (float64, error)
}

// astPredictor wraps a pure fold over the tree.
type astPredictor struct {
	name string
	fn   func(node query.Node) float64
}

func (p astPredictor) Name() string { return p.name }

func (p astPredictor) Measure(ctx context.Context, searcher index.Searcher, parser query.Parser, node query.Node) (float64, error) {
	return p.fn(node), nil
}

// numRetrieved counts the documents the whole query retrieves.
type numRetrieved struct{}

func (numRetrieved) Name() string { return "NumRetrieved" }

func (numRetrieved) Measure(ctx context.Context, searcher index.Searcher, parser query.Parser, node query.Node) (float64, error) {
	q, err := parser.Compile(node)
	if err != nil {
		return 0, fmt.Errorf("NumRetrieved: %w", err)
	}
	count, err := searcher.Count(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("NumRetrieved: %w", err)
	}
	return float64(count), nil
}

// NumRetrieved counts the documents retrieved by the whole query.
var NumRetrieved Predictor = numRetrieved{}

// NumBooleanClauses counts the operator nodes of the query.
var NumBooleanClauses Predictor = astPredictor{"NumBooleanClauses", func(node query.Node) float64 {
	count := 0.0
	query.Walk(node, func(n query.Node) bool {
		if _, ok := n.(*query.OperatorNode); ok {
			count++
		}
		return true
	})
	return count
}}

// NumKeywords counts the atomic clauses of the query.
var NumKeywords Predictor = astPredictor{"NumKeywords", func(node query.Node) float64 {
	count := 0.0
	query.Walk(node, func(n query.Node) bool {
		if _, ok := n.(*query.AtomNode); ok {
			count++
		}
		return true
	})
	return count
}}

// NumMeSHKeywords counts the atomic clauses restricted to a
// MeSH-family field.
var NumMeSHKeywords Predictor = astPredictor{"NumMeSHKeywords", func(node query.Node) float64 {
	count := 0.0
	query.Walk(node, func(n query.Node) bool {
		if atom, ok := n.(*query.AtomNode); ok && query.IsMeSHField(atom.Field.Name) {
			count++
		}
		return true
	})
	return count
}}

// MaximumDepth measures the height of the query tree, atoms counting
// one.
var MaximumDepth Predictor = astPredictor{"MaximumDepth", maxDepth}

func maxDepth(node query.Node) float64 {
	op, ok := node.(*query.OperatorNode)
	if !ok {
		return 1
	}
	deepest := 0.0
	for _, child := range op.Children {
		if d := maxDepth(child); d > deepest {
			deepest = d
		}
	}
	return 1 + deepest
}

// MaximumMeSHDepth is one when the query contains any MeSH atom and
// zero otherwise.
var MaximumMeSHDepth Predictor = astPredictor{"MaximumMeSHDepth", maxMeSHDepth}

func maxMeSHDepth(node query.Node) float64 {
	switch n := node.(type) {
	case *query.OperatorNode:
		deepest := 0.0
		for _, child := range n.Children {
			if d := maxMeSHDepth(child); d > deepest {
				deepest = d
			}
		}
		return deepest
	case *query.AtomNode:
		if query.IsMeSHField(n.Field.Name) {
			return 1
		}
	}
	return 0
}

// AverageMeSHDepth averages the per-subtree MeSH fraction, weighting
// each operator's children equally regardless of subtree size.
var AverageMeSHDepth Predictor = astPredictor{"AverageMeSHDepth", avgMeSHDepth}

func avgMeSHDepth(node query.Node) float64 {
	switch n := node.(type) {
	case *query.OperatorNode:
		sum := 0.0
		for _, child := range n.Children {
			sum += avgMeSHDepth(child)
		}
		return sum / float64(len(n.Children))
	case *query.AtomNode:
		if query.IsMeSHField(n.Field.Name) {
			return 1
		}
	}
	return 0
}

// MaximumWidth measures the widest operator node anywhere in the
// query.
var MaximumWidth Predictor = astPredictor{"MaximumWidth", func(node query.Node) float64 {
	widest := 1.0
	query.Walk(node, func(n query.Node) bool {
		if op, ok := n.(*query.OperatorNode); ok {
			if w := float64(len(op.Children)); w > widest {
				widest = w
			}
		}
		return true
	})
	return widest
}}

// RootWidth measures the child count of the root node, atoms counting
// one.
var RootWidth Predictor = astPredictor{"RootWidth", func(node query.Node) float64 {
	if op, ok := node.(*query.OperatorNode); ok {
		return float64(len(op.Children))
	}
	return 1
}}

// All is every built-in predictor.
var All = []Predictor{
	NumRetrieved,
	NumBooleanClauses,
	NumKeywords,
	NumMeSHKeywords,
	MaximumDepth,
	MaximumMeSHDepth,
	AverageMeSHDepth,
	MaximumWidth,
	RootWidth,
}

// Measure runs a set of predictors over one parsed query.
func Measure(ctx context.Context, searcher index.Searcher, parser query.Parser, node query.Node, identifier string, predictors ...Predictor) ([]Result, error) {
	if len(predictors) == 0 {
		predictors = All
	}
	results := make([]Result, 0, len(predictors))
	for _, p := range predictors {
		value, err := p.Measure(ctx, searcher, parser, node)
		if err != nil {
			return nil, fmt.Errorf("%s over %s: %w", p.Name(), identifier, err)
		}
		results = append(results, Result{QPP: p.Name(), Query: identifier, Result: value})
	}
	return results, nil
}
