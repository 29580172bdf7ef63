package decompose

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litsearch/boolir/pkg/experiments"
)

func TestExperimentAdHoc(t *testing.T) {
	parser := newTestParser(t)
	store := newTestStore(t)
	e := NewEvaluator(store, parser)
	x := NewExperiment(e, parser, experiments.AdHocCollection("aspirin[ti] NOT placebo[tiab]"))

	results, err := x.Retrieve(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, []string{"100", "400"}, sorted(results[0].IDs))
}

func TestExperimentIsolatesFailures(t *testing.T) {
	parser := newTestParser(t)
	store := newTestStore(t)
	e := NewEvaluator(store, parser)
	collection := &Collection{
		Identifier: "test",
		Topics: []experiments.Topic{
			{Identifier: "good", RawQuery: "aspirin[ti]", DateFrom: "1900", DateTo: "2200"},
			{Identifier: "bad", RawQuery: "aspirin[nosuchfield]", DateFrom: "1900", DateTo: "2200"},
			{Identifier: "empty", RawQuery: ""},
		},
	}
	x := NewExperiment(e, parser, collection)

	results, err := x.Retrieve(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Empty(t, results[2].IDs)
}

func TestExperimentWriteRunFile(t *testing.T) {
	parser := newTestParser(t)
	store := newTestStore(t)
	e := NewEvaluator(store, parser)
	x := NewExperiment(e, parser, experiments.AdHocCollection("statins[ti]"))

	path := filepath.Join(t.TempDir(), "decompose.run")
	require.NoError(t, x.WriteRunFile(context.Background(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	fields := strings.Fields(lines[0])
	require.Len(t, fields, 6)
	assert.Equal(t, "0", fields[0])
	assert.Equal(t, "Q0", fields[1])
	assert.Equal(t, "300", fields[2])
}

func TestExperimentResults(t *testing.T) {
	parser := newTestParser(t)
	store := newTestStore(t)
	e := NewEvaluator(store, parser)
	collection := &Collection{
		Identifier: "test",
		Topics: []experiments.Topic{
			{Identifier: "1", RawQuery: "aspirin[ti]", DateFrom: "1900", DateTo: "2200"},
		},
		Qrels: []experiments.Qrel{
			{QueryID: "1", DocID: "100", Relevance: 1},
			{QueryID: "1", DocID: "300", Relevance: 1},
		},
	}
	x := NewExperiment(e, parser, collection)

	perTopic, err := x.Results(context.Background())
	require.NoError(t, err)
	m, ok := perTopic["1"]
	require.True(t, ok)
	// Retrieved 100, 200, 400; one of two relevant found.
	assert.InDelta(t, 1.0/3.0, m.Precision, 1e-9)
	assert.InDelta(t, 0.5, m.Recall, 1e-9)
}
