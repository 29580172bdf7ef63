package decompose

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/litsearch/boolir/pkg/common/logging"
	"github.com/litsearch/boolir/pkg/common/workers"
	"github.com/litsearch/boolir/pkg/experiments"
	"github.com/litsearch/boolir/pkg/index"
	"github.com/litsearch/boolir/pkg/query"
)

// AtomCallback observes each atomic clause right after execution,
// with its date-restricted form and result set.
type AtomCallback func(node query.Node, ids []string)

// Evaluator executes a query tree bottom-up: atoms run against the
// index, operator nodes combine their children's result sets. The
// topic date range is conjoined onto every atom rather than the whole
// query, so all atoms retrieve from the same slice of the literature.
type Evaluator struct {
	searcher  index.Searcher
	parser    query.Parser
	Operators map[string]Operator

	// Cache, when set, persists atomic result sets across calls.
	Cache *LeafCache
	// IgnoreDates skips per-atom date restriction.
	IgnoreDates bool
	// DateField is the field alias for the per-atom date restriction.
	DateField string
	// Workers bounds concurrent evaluation of sibling subtrees.
	Workers int
	// AtomCallback, when set, is invoked after every atomic query.
	AtomCallback AtomCallback

	logger *logging.Logger
}

// NewEvaluator creates an evaluator with the exact Boolean operators.
func NewEvaluator(searcher index.Searcher, parser query.Parser) *Evaluator {
	return &Evaluator{
		searcher:  searcher,
		parser:    parser,
		Operators: ExactOperators(),
		DateField: "dp",
		Workers:   1,
		logger:    logging.GetGlobalLogger().WithComponent("decompose"),
	}
}

// NewSmoothEvaluator creates an evaluator with smooth operators at
// the given thresholds.
func NewSmoothEvaluator(searcher index.Searcher, parser query.Parser, thetaAND, thetaOR, thetaNOT float64) *Evaluator {
	e := NewEvaluator(searcher, parser)
	e.Operators = map[string]Operator{
		"AND": NewSmoothAND(thetaAND),
		"OR":  NewSmoothOR(thetaOR),
		"NOT": NewSmoothNOT(thetaNOT),
	}
	return e
}

// Evaluate runs the whole tree for a topic and returns its result
// set.
func (e *Evaluator) Evaluate(ctx context.Context, node query.Node, topic experiments.Topic) ([]string, error) {
	switch n := node.(type) {
	case *query.AtomNode:
		return e.evaluateAtom(ctx, n, topic)
	case *query.OperatorNode:
		return e.evaluateOperator(ctx, n, topic)
	}
	return nil, fmt.Errorf("unsupported node type %T", node)
}

// evaluateAtom executes one atomic clause, date-restricted to the
// topic window.
func (e *Evaluator) evaluateAtom(ctx context.Context, atom *query.AtomNode, topic experiments.Topic) ([]string, error) {
	node := e.restrictDates(atom, topic)

	if e.Cache != nil {
		if ids, ok := e.Cache.Get(node); ok {
			e.logger.Debugf("cache hit: %s", node.Format())
			if e.AtomCallback != nil {
				e.AtomCallback(node, ids)
			}
			return ids, nil
		}
	}

	q, err := e.parser.Compile(node)
	if err != nil {
		return nil, fmt.Errorf("atom %s: %w", atom.Format(), err)
	}
	ids, err := e.searcher.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("atom %s: %w", atom.Format(), err)
	}

	if e.Cache != nil {
		if err := e.Cache.Put(node, ids); err != nil {
			e.logger.Warnf("failed to cache %s: %v", node.Format(), err)
		}
	}
	if e.AtomCallback != nil {
		e.AtomCallback(node, ids)
	}
	return ids, nil
}

// restrictDates conjoins the topic date window onto an atom. Explicit
// date atoms are wrapped too, intersecting their range with the topic
// window.
func (e *Evaluator) restrictDates(atom *query.AtomNode, topic experiments.Topic) query.Node {
	if e.IgnoreDates || topic.DateFrom == "" || topic.DateTo == "" {
		return atom
	}
	restriction := &query.AtomNode{
		Query: fmt.Sprintf("%s:%s", topic.DateFrom, topic.DateTo),
		Field: query.Field{Name: e.DateField},
	}
	return &query.OperatorNode{Operator: "AND", Children: []query.Node{atom, restriction}}
}

func (e *Evaluator) evaluateOperator(ctx context.Context, node *query.OperatorNode, topic experiments.Topic) ([]string, error) {
	pool := workers.NewPool(e.Workers)
	childHits, err := workers.Map(ctx, pool, node.Children, func(ctx context.Context, child query.Node) ([]string, error) {
		return e.Evaluate(ctx, child, topic)
	})
	if err != nil {
		return nil, err
	}

	op, theta, err := e.lookupOperator(node.Operator)
	if err != nil {
		return nil, err
	}
	results, err := op.Evaluate(childHits, node.Children)
	if err != nil {
		return nil, err
	}

	// Smooth NOT admits documents that appear only in the excluded
	// operand. Re-intersecting with the first operand restores the
	// guarantee that NOT never adds documents.
	if query.BaseOperator(strings.ToUpper(node.Operator)) == "NOT" {
		if _, smooth := op.(*SmoothOperator); smooth {
			results, err = NewSmoothAND(1.0).Evaluate([][]string{childHits[0], results}, nil)
			if err != nil {
				return nil, err
			}
		}
	}

	e.logger.Debugf("%s theta=%v children=%d results=%d", node.Operator, theta, len(childHits), len(results))
	return results, nil
}

// lookupOperator resolves an operator label. A label annotated with a
// threshold, such as "AND@0.95", selects the smooth flavor of the
// base operator at that threshold regardless of the configured set.
func (e *Evaluator) lookupOperator(label string) (Operator, float64, error) {
	upper := strings.ToUpper(label)
	base := query.BaseOperator(upper)

	if i := strings.IndexByte(upper, '@'); i >= 0 {
		theta, err := strconv.ParseFloat(upper[i+1:], 64)
		if err != nil {
			return nil, 0, fmt.Errorf("operator %q: bad threshold: %w", label, err)
		}
		return NewSmoothOperator(base).WithTheta(theta), theta, nil
	}

	op, ok := e.Operators[base]
	if !ok {
		return nil, 0, fmt.Errorf("unknown operator %q", label)
	}
	if smooth, isSmooth := op.(*SmoothOperator); isSmooth {
		return op, smooth.Theta, nil
	}
	return op, 0, nil
}
