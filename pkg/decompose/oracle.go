package decompose

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/litsearch/boolir/pkg/experiments"
	"github.com/litsearch/boolir/pkg/index"
	"github.com/litsearch/boolir/pkg/query"
)

// Threshold grids searched per operator, ordered from strict to
// relaxed. The search stops as soon as relaxing further stops
// improving.
var (
	oracleThetasAND = []float64{1.0, 0.999, 0.99, 0.95, 0.9, 0.8}
	oracleThetasOR  = []float64{0.0, 0.001, 0.01, 0.1, 0.15, 0.2}
	oracleThetasNOT = []float64{1.0, 0.999, 0.99, 0.95, 0.9, 0.8}
)

// OracleEvaluator picks a per-operator threshold by grid search
// against the topic's relevance judgements: at every operator node it
// scores the candidates once, then sweeps the threshold grid and
// keeps the theta with the best set measures. The chosen thresholds
// are written back into the returned tree as operator annotations.
type OracleEvaluator struct {
	*Evaluator
	qrels []experiments.Qrel
}

// NewOracleEvaluator creates an oracle evaluator judged against the
// given qrels.
func NewOracleEvaluator(searcher index.Searcher, parser query.Parser, qrels []experiments.Qrel) *OracleEvaluator {
	e := NewEvaluator(searcher, parser)
	e.Operators = SmoothOperators()
	return &OracleEvaluator{Evaluator: e, qrels: qrels}
}

// Evaluate runs the tree with per-operator threshold search and
// returns the result set together with the annotated tree.
func (o *OracleEvaluator) Evaluate(ctx context.Context, node query.Node, topic experiments.Topic) ([]string, query.Node, error) {
	switch n := node.(type) {
	case *query.AtomNode:
		ids, err := o.evaluateAtom(ctx, n, topic)
		return ids, n, err
	case *query.OperatorNode:
		return o.evaluateOracleOperator(ctx, n, topic)
	}
	return nil, nil, fmt.Errorf("unsupported node type %T", node)
}

func (o *OracleEvaluator) evaluateOracleOperator(ctx context.Context, node *query.OperatorNode, topic experiments.Topic) ([]string, query.Node, error) {
	base := query.BaseOperator(strings.ToUpper(node.Operator))
	var op *SmoothOperator
	var grid []float64
	var defaultTheta float64
	switch base {
	case "AND":
		op, grid, defaultTheta = NewSmoothAND(1.0), oracleThetasAND, 1.0
	case "OR":
		op, grid, defaultTheta = NewSmoothOR(0.0), oracleThetasOR, 0.0
	case "NOT":
		op, grid, defaultTheta = NewSmoothNOT(1.0), oracleThetasNOT, 1.0
	default:
		return nil, nil, fmt.Errorf("unknown operator %q", node.Operator)
	}

	childHits := make([][]string, len(node.Children))
	annotated := make([]query.Node, len(node.Children))
	for i, child := range node.Children {
		hits, childNode, err := o.Evaluate(ctx, child, topic)
		if err != nil {
			return nil, nil, err
		}
		childHits[i] = hits
		annotated[i] = childNode
	}
	if base == "NOT" && len(childHits) != 2 {
		return nil, nil, fmt.Errorf("NOT requires exactly two operands, got %d", len(childHits))
	}

	scores := op.Scores(childHits)

	bestTheta := -1.0
	bestRecall, bestF := 0.0, 0.0
	var results []string
	prevBetter := false

	for i, theta := range grid {
		candidate := op.WithTheta(theta)
		var ids []string
		for _, doc := range scores {
			if candidate.Keep(doc.Prob) {
				ids = append(ids, doc.ID)
			}
		}
		if base == "NOT" {
			var err error
			ids, err = NewSmoothAND(1.0).Evaluate([][]string{childHits[0], ids}, nil)
			if err != nil {
				return nil, nil, err
			}
		}

		m := experiments.EvaluateSet(o.qrels, ids)
		if m.Recall >= bestRecall && m.F1 > bestF {
			o.logger.Debugf("%s theta[%d]=%g r=%g p=%g f=%g (new best)", base, i, theta, m.Recall, m.Precision, m.F1)
			bestRecall, bestF = m.Recall, m.F1
			bestTheta = theta
			results = ids
			prevBetter = true
		} else {
			o.logger.Debugf("%s theta[%d]=%g r=%g p=%g f=%g", base, i, theta, m.Recall, m.Precision, m.F1)
			if prevBetter {
				break
			}
		}
	}

	if bestTheta < 0 {
		var err error
		bestTheta = defaultTheta
		results, err = op.WithTheta(defaultTheta).Evaluate(childHits, node.Children)
		if err != nil {
			return nil, nil, err
		}
		if base == "NOT" {
			results, err = NewSmoothAND(1.0).Evaluate([][]string{childHits[0], results}, nil)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	label := base + "@" + strconv.FormatFloat(bestTheta, 'g', -1, 64)
	tree := &query.OperatorNode{Operator: label, Children: annotated}
	return results, tree, nil
}
