package decompose

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litsearch/boolir/pkg/experiments"
	"github.com/litsearch/boolir/pkg/index"
	"github.com/litsearch/boolir/pkg/mesh"
	"github.com/litsearch/boolir/pkg/query"
)

const testTreeData = `Cardiovascular Diseases;C14
Heart Diseases;C14.280
Myocardial Infarction;C14.280.647
`

func newTestParser(t *testing.T) *query.PubmedQueryParser {
	t.Helper()
	tree, err := mesh.NewTree(strings.NewReader(testTreeData))
	require.NoError(t, err)
	parser, err := query.NewPubmedQueryParser(tree)
	require.NoError(t, err)
	return parser
}

func newTestStore(t *testing.T) *index.Store {
	t.Helper()
	store, err := index.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	articles := []*index.Article{
		{
			PMID:         "100",
			Title:        "Aspirin after infarction",
			Abstract:     "Aspirin reduces mortality after myocardial infarction.",
			Date:         time.Date(2010, 5, 1, 0, 0, 0, 0, time.UTC),
			MeSHHeadings: []string{"Myocardial Infarction"},
		},
		{
			PMID:     "200",
			Title:    "Aspirin and placebo compared",
			Abstract: "Placebo controlled aspirin trial.",
			Date:     time.Date(2012, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			PMID:         "300",
			Title:        "Statins in heart disease",
			Abstract:     "Statin treatment of heart diseases.",
			Date:         time.Date(2014, 8, 1, 0, 0, 0, 0, time.UTC),
			MeSHHeadings: []string{"Heart Diseases"},
		},
		{
			PMID:     "400",
			Title:    "Aspirin outside the window",
			Abstract: "Old aspirin study.",
			Date:     time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, store.AddBatch(articles))
	return store
}

func wideTopic() experiments.Topic {
	return experiments.Topic{
		Identifier: "0",
		DateFrom:   "1900/01/01",
		DateTo:     "2200/12/31",
	}
}

func evalRaw(t *testing.T, e *Evaluator, parser query.Parser, raw string, topic experiments.Topic) []string {
	t.Helper()
	node, err := parser.Parse(raw)
	require.NoError(t, err)
	ids, err := e.Evaluate(context.Background(), node, topic)
	require.NoError(t, err)
	return sorted(ids)
}

func TestEvaluateAtom(t *testing.T) {
	parser := newTestParser(t)
	e := NewEvaluator(newTestStore(t), parser)

	ids := evalRaw(t, e, parser, "aspirin[ti]", wideTopic())
	assert.Equal(t, []string{"100", "200", "400"}, ids)
}

func TestEvaluateAppliesDatesPerAtom(t *testing.T) {
	parser := newTestParser(t)
	e := NewEvaluator(newTestStore(t), parser)

	topic := experiments.Topic{Identifier: "0", DateFrom: "2000/01/01", DateTo: "2020/12/31"}
	ids := evalRaw(t, e, parser, "aspirin[ti]", topic)
	assert.Equal(t, []string{"100", "200"}, ids, "1950 article falls outside the window")
}

func TestEvaluateIgnoreDates(t *testing.T) {
	parser := newTestParser(t)
	e := NewEvaluator(newTestStore(t), parser)
	e.IgnoreDates = true

	topic := experiments.Topic{Identifier: "0", DateFrom: "2000/01/01", DateTo: "2020/12/31"}
	ids := evalRaw(t, e, parser, "aspirin[ti]", topic)
	assert.Equal(t, []string{"100", "200", "400"}, ids)
}

func TestEvaluateAdHocDateWindow(t *testing.T) {
	parser := newTestParser(t)
	e := NewEvaluator(newTestStore(t), parser)

	// The default ad-hoc window must be accepted by the index's
	// date-range validation, with every leaf date-wrapped.
	raw := "(infarction[tiab] OR statins[ti]) AND aspirin[ti] NOT placebo[tiab]"
	topic := experiments.AdHocCollection(raw).Topics[0]
	ids := evalRaw(t, e, parser, raw, topic)
	assert.Equal(t, []string{"100"}, ids)
}

func TestEvaluateBoolean(t *testing.T) {
	parser := newTestParser(t)
	e := NewEvaluator(newTestStore(t), parser)

	cases := []struct {
		raw  string
		want []string
	}{
		{"aspirin[ti] AND placebo[tiab]", []string{"200"}},
		{"aspirin[ti] OR statins[ti]", []string{"100", "200", "300", "400"}},
		{"aspirin[ti] NOT placebo[tiab]", []string{"100", "400"}},
		{"heart diseases[mh] AND aspirin[ti]", []string{"100"}},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, evalRaw(t, e, parser, tc.raw, wideTopic()))
		})
	}
}

func TestEvaluateMatchesWholeQueryRetrieval(t *testing.T) {
	parser := newTestParser(t)
	store := newTestStore(t)
	e := NewEvaluator(store, parser)

	raw := "(aspirin[ti] OR statins[ti]) AND heart diseases[mh]"
	got := evalRaw(t, e, parser, raw, wideTopic())

	node, err := parser.Parse(raw)
	require.NoError(t, err)
	q, err := parser.Compile(node)
	require.NoError(t, err)
	whole, err := store.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, sorted(whole), got)
}

func TestAtomCallbackSeesEveryLeaf(t *testing.T) {
	parser := newTestParser(t)
	e := NewEvaluator(newTestStore(t), parser)

	var mu sync.Mutex
	var seen []string
	e.AtomCallback = func(node query.Node, ids []string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, node.Format())
	}

	evalRaw(t, e, parser, "(aspirin[ti] OR statins[ti]) NOT placebo[tiab]", wideTopic())
	assert.Len(t, seen, 3)
	for _, formatted := range seen {
		assert.Contains(t, formatted, "[dp]", "callback should see the date-restricted atom")
	}
}

func TestEvaluateSmoothDefaultsMatchExact(t *testing.T) {
	parser := newTestParser(t)
	store := newTestStore(t)
	exact := NewEvaluator(store, parser)
	smooth := NewSmoothEvaluator(store, parser, 1.0, 0.0, 1.0)

	for _, raw := range []string{
		"aspirin[ti] AND placebo[tiab]",
		"aspirin[ti] OR statins[ti]",
		"aspirin[ti] NOT placebo[tiab]",
	} {
		t.Run(raw, func(t *testing.T) {
			assert.Equal(t,
				evalRaw(t, exact, parser, raw, wideTopic()),
				evalRaw(t, smooth, parser, raw, wideTopic()))
		})
	}
}

func TestEvaluateAnnotatedOperator(t *testing.T) {
	parser := newTestParser(t)
	e := NewEvaluator(newTestStore(t), parser)

	// An annotated label forces the smooth flavor at the embedded
	// threshold even on an exact evaluator.
	node := &query.OperatorNode{
		Operator: "AND@1.0",
		Children: []query.Node{
			&query.AtomNode{Query: "aspirin", Field: query.Field{Name: "ti"}},
			&query.AtomNode{Query: "placebo", Field: query.Field{Name: "tiab"}},
		},
	}
	ids, err := e.Evaluate(context.Background(), node, wideTopic())
	require.NoError(t, err)
	assert.Equal(t, []string{"200"}, sorted(ids))
}

func TestEvaluateUnknownOperator(t *testing.T) {
	parser := newTestParser(t)
	e := NewEvaluator(newTestStore(t), parser)

	node := &query.OperatorNode{
		Operator: "XOR",
		Children: []query.Node{
			&query.AtomNode{Query: "aspirin", Field: query.Field{Name: "ti"}},
			&query.AtomNode{Query: "placebo", Field: query.Field{Name: "tiab"}},
		},
	}
	_, err := e.Evaluate(context.Background(), node, wideTopic())
	assert.Error(t, err)
}

func TestEvaluateParallelChildren(t *testing.T) {
	parser := newTestParser(t)
	e := NewEvaluator(newTestStore(t), parser)
	e.Workers = 4

	ids := evalRaw(t, e, parser, "aspirin[ti] OR statins[ti] OR placebo[tiab]", wideTopic())
	assert.Equal(t, []string{"100", "200", "300", "400"}, ids)
}
