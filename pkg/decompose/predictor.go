package decompose

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/litsearch/boolir/pkg/experiments"
	"github.com/litsearch/boolir/pkg/index"
	"github.com/litsearch/boolir/pkg/query"
)

// Features describe an operator node for threshold prediction.
type Features struct {
	// Depth of the node below the query root, root at zero.
	Depth float64
	// Children is the node's child count.
	Children float64
	// NumRet is the number of documents the node retrieves when
	// compiled as a strict Boolean query.
	NumRet float64
	// ChildMeanNumRet and ChildStdNumRet summarize the children's
	// individual retrieval counts.
	ChildMeanNumRet float64
	ChildStdNumRet  float64
	// NumChildOps and NumChildAtoms split the children by kind.
	NumChildOps   float64
	NumChildAtoms float64
}

// ThetaPredictor predicts a threshold for an operator node from its
// features. Implementations typically wrap a regression model trained
// on oracle thresholds.
type ThetaPredictor interface {
	Predict(operator string, features Features) (float64, error)
}

// FixedThetaPredictor predicts a constant threshold per operator,
// falling back to the operator's conventional default when unlisted.
type FixedThetaPredictor map[string]float64

func (p FixedThetaPredictor) Predict(operator string, features Features) (float64, error) {
	if theta, ok := p[operator]; ok {
		return theta, nil
	}
	return NewSmoothOperator(operator).Theta, nil
}

// PredictorEvaluator evaluates a query with smooth operators whose
// thresholds are predicted per node. The predicted thresholds are
// annotated onto the returned tree.
type PredictorEvaluator struct {
	*Evaluator
	predictor ThetaPredictor
}

// NewPredictorEvaluator creates an evaluator that asks the predictor
// for a threshold at every operator node.
func NewPredictorEvaluator(searcher index.Searcher, parser query.Parser, predictor ThetaPredictor) *PredictorEvaluator {
	e := NewEvaluator(searcher, parser)
	e.Operators = SmoothOperators()
	return &PredictorEvaluator{Evaluator: e, predictor: predictor}
}

// Evaluate runs the tree and returns the result set together with
// the threshold-annotated tree.
func (p *PredictorEvaluator) Evaluate(ctx context.Context, node query.Node, topic experiments.Topic) ([]string, query.Node, error) {
	return p.evaluateAt(ctx, node, topic, 0)
}

func (p *PredictorEvaluator) evaluateAt(ctx context.Context, node query.Node, topic experiments.Topic, depth int) ([]string, query.Node, error) {
	switch n := node.(type) {
	case *query.AtomNode:
		ids, err := p.evaluateAtom(ctx, n, topic)
		return ids, n, err
	case *query.OperatorNode:
		return p.evaluatePredicted(ctx, n, topic, depth)
	}
	return nil, nil, fmt.Errorf("unsupported node type %T", node)
}

func (p *PredictorEvaluator) evaluatePredicted(ctx context.Context, node *query.OperatorNode, topic experiments.Topic, depth int) ([]string, query.Node, error) {
	base := query.BaseOperator(strings.ToUpper(node.Operator))

	childHits := make([][]string, len(node.Children))
	annotated := make([]query.Node, len(node.Children))
	for i, child := range node.Children {
		hits, childNode, err := p.evaluateAt(ctx, child, topic, depth+1)
		if err != nil {
			return nil, nil, err
		}
		childHits[i] = hits
		annotated[i] = childNode
	}

	features, err := p.nodeFeatures(ctx, node, depth)
	if err != nil {
		return nil, nil, err
	}
	theta, err := p.predictor.Predict(base, features)
	if err != nil {
		return nil, nil, fmt.Errorf("theta prediction for %s: %w", base, err)
	}

	op := NewSmoothOperator(base).WithTheta(theta)
	results, err := op.Evaluate(childHits, node.Children)
	if err != nil {
		return nil, nil, err
	}
	if base == "NOT" {
		results, err = NewSmoothAND(1.0).Evaluate([][]string{childHits[0], results}, nil)
		if err != nil {
			return nil, nil, err
		}
	}

	label := base + "@" + strconv.FormatFloat(theta, 'g', -1, 64)
	p.logger.Debugf("%s depth=%d results=%d", label, depth, len(results))
	return results, &query.OperatorNode{Operator: label, Children: annotated}, nil
}

// nodeFeatures counts retrieval sizes of the node and its children by
// compiling them as strict Boolean queries, without date restriction.
func (p *PredictorEvaluator) nodeFeatures(ctx context.Context, node *query.OperatorNode, depth int) (Features, error) {
	numRet, err := p.countNode(ctx, node)
	if err != nil {
		return Features{}, err
	}

	childCounts := make([]float64, len(node.Children))
	var numOps, numAtoms float64
	for i, child := range node.Children {
		count, err := p.countNode(ctx, child)
		if err != nil {
			return Features{}, err
		}
		childCounts[i] = count
		switch child.(type) {
		case *query.OperatorNode:
			numOps++
		case *query.AtomNode:
			numAtoms++
		}
	}

	mean := 0.0
	for _, c := range childCounts {
		mean += c
	}
	mean /= float64(len(childCounts))
	variance := 0.0
	for _, c := range childCounts {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(childCounts))

	return Features{
		Depth:           float64(depth),
		Children:        float64(len(node.Children)),
		NumRet:          numRet,
		ChildMeanNumRet: mean,
		ChildStdNumRet:  math.Sqrt(variance),
		NumChildOps:     numOps,
		NumChildAtoms:   numAtoms,
	}, nil
}

func (p *PredictorEvaluator) countNode(ctx context.Context, node query.Node) (float64, error) {
	q, err := p.parser.Compile(node)
	if err != nil {
		return 0, fmt.Errorf("count for %s: %w", node.Format(), err)
	}
	count, err := p.searcher.Count(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count for %s: %w", node.Format(), err)
	}
	return float64(count), nil
}
