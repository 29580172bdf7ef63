package decompose

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litsearch/boolir/pkg/query"
)

// recordingPredictor captures the features it is asked about.
type recordingPredictor struct {
	FixedThetaPredictor
	calls []struct {
		Operator string
		Features Features
	}
}

func (r *recordingPredictor) Predict(operator string, features Features) (float64, error) {
	r.calls = append(r.calls, struct {
		Operator string
		Features Features
	}{operator, features})
	return r.FixedThetaPredictor.Predict(operator, features)
}

func TestFixedThetaPredictor(t *testing.T) {
	p := FixedThetaPredictor{"AND": 0.9}
	theta, err := p.Predict("AND", Features{})
	require.NoError(t, err)
	assert.Equal(t, 0.9, theta)

	// Unlisted operators fall back to their conventional default.
	theta, err = p.Predict("OR", Features{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, theta)
	theta, err = p.Predict("NOT", Features{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, theta)
}

func TestPredictorAnnotatesAndEvaluates(t *testing.T) {
	parser := newTestParser(t)
	store := newTestStore(t)
	predictor := &recordingPredictor{FixedThetaPredictor: FixedThetaPredictor{"AND": 0.9, "OR": 0.0}}
	e := NewPredictorEvaluator(store, parser, predictor)

	node, err := parser.Parse("(aspirin[ti] OR statins[ti]) AND placebo[tiab]")
	require.NoError(t, err)

	ids, annotated, err := e.Evaluate(context.Background(), node, wideTopic())
	require.NoError(t, err)

	// At theta 0.9 no partial match passes, so the result matches
	// strict AND.
	assert.Equal(t, []string{"200"}, sorted(ids))

	root, ok := annotated.(*query.OperatorNode)
	require.True(t, ok)
	assert.Equal(t, "AND@0.9", root.Operator)
	inner, ok := root.Children[0].(*query.OperatorNode)
	require.True(t, ok)
	assert.Equal(t, "OR@0", inner.Operator)
}

func TestPredictorFeatures(t *testing.T) {
	parser := newTestParser(t)
	store := newTestStore(t)
	predictor := &recordingPredictor{FixedThetaPredictor: FixedThetaPredictor{}}
	e := NewPredictorEvaluator(store, parser, predictor)

	node, err := parser.Parse("(aspirin[ti] OR statins[ti]) AND placebo[tiab]")
	require.NoError(t, err)

	_, _, err = e.Evaluate(context.Background(), node, wideTopic())
	require.NoError(t, err)
	require.Len(t, predictor.calls, 2)

	// Children are evaluated before their parent, so the inner OR is
	// predicted first.
	or := predictor.calls[0]
	assert.Equal(t, "OR", or.Operator)
	assert.Equal(t, 1.0, or.Features.Depth)
	assert.Equal(t, 2.0, or.Features.Children)
	assert.Equal(t, 4.0, or.Features.NumRet)
	assert.Equal(t, 2.0, or.Features.ChildMeanNumRet)
	assert.Equal(t, 1.0, or.Features.ChildStdNumRet)
	assert.Equal(t, 0.0, or.Features.NumChildOps)
	assert.Equal(t, 2.0, or.Features.NumChildAtoms)

	and := predictor.calls[1]
	assert.Equal(t, "AND", and.Operator)
	assert.Equal(t, 0.0, and.Features.Depth)
	assert.Equal(t, 2.0, and.Features.Children)
	assert.Equal(t, 1.0, and.Features.NumRet)
	assert.Equal(t, 2.5, and.Features.ChildMeanNumRet)
	assert.Equal(t, 1.5, and.Features.ChildStdNumRet)
	assert.Equal(t, 1.0, and.Features.NumChildOps)
	assert.Equal(t, 1.0, and.Features.NumChildAtoms)
}

func TestPredictorNOTReintersects(t *testing.T) {
	parser := newTestParser(t)
	store := newTestStore(t)
	e := NewPredictorEvaluator(store, parser, FixedThetaPredictor{})

	node, err := parser.Parse("aspirin[ti] NOT placebo[tiab]")
	require.NoError(t, err)

	ids, annotated, err := e.Evaluate(context.Background(), node, wideTopic())
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "400"}, sorted(ids))

	root, ok := annotated.(*query.OperatorNode)
	require.True(t, ok)
	assert.Equal(t, "NOT@1", root.Operator)
}
