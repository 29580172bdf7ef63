// Package decompose evaluates Boolean queries by executing every
// atomic clause separately and combining the result sets with
// pluggable operators. Exact operators reproduce strict Boolean
// semantics; smooth operators relax them with an inclusion
// probability threshold.
package decompose

import (
	"fmt"

	"github.com/litsearch/boolir/pkg/query"
)

// Operator combines the result sets of an operator node's children
// into the node's own result set. Implementations must be
// deterministic: the same child lists produce the same output order.
type Operator interface {
	Evaluate(childHits [][]string, children []query.Node) ([]string, error)
}

// ANDOperator intersects all child result sets. Output preserves the
// first child's order.
type ANDOperator struct{}

func (ANDOperator) Evaluate(childHits [][]string, children []query.Node) ([]string, error) {
	if len(childHits) == 0 {
		return nil, fmt.Errorf("AND requires at least one operand")
	}
	rest := make([]map[string]bool, len(childHits)-1)
	for i, hits := range childHits[1:] {
		rest[i] = toSet(hits)
	}
	var result []string
	seen := make(map[string]bool)
	for _, doc := range childHits[0] {
		if seen[doc] {
			continue
		}
		seen[doc] = true
		inAll := true
		for _, other := range rest {
			if !other[doc] {
				inAll = false
				break
			}
		}
		if inAll {
			result = append(result, doc)
		}
	}
	return result, nil
}

// OROperator unions all child result sets in order of first
// occurrence.
type OROperator struct{}

func (OROperator) Evaluate(childHits [][]string, children []query.Node) ([]string, error) {
	var result []string
	seen := make(map[string]bool)
	for _, hits := range childHits {
		for _, doc := range hits {
			if seen[doc] {
				continue
			}
			seen[doc] = true
			result = append(result, doc)
		}
	}
	return result, nil
}

// NOTOperator removes the second child's documents from the first.
type NOTOperator struct{}

func (NOTOperator) Evaluate(childHits [][]string, children []query.Node) ([]string, error) {
	if len(childHits) != 2 {
		return nil, fmt.Errorf("NOT requires exactly two operands, got %d", len(childHits))
	}
	exclude := toSet(childHits[1])
	var result []string
	seen := make(map[string]bool)
	for _, doc := range childHits[0] {
		if seen[doc] || exclude[doc] {
			continue
		}
		seen[doc] = true
		result = append(result, doc)
	}
	return result, nil
}

// ExactOperators returns the strict Boolean operator set.
func ExactOperators() map[string]Operator {
	return map[string]Operator{
		"AND": ANDOperator{},
		"OR":  OROperator{},
		"NOT": NOTOperator{},
	}
}

func toSet(docs []string) map[string]bool {
	set := make(map[string]bool, len(docs))
	for _, doc := range docs {
		set[doc] = true
	}
	return set
}
