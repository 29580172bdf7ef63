package decompose

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func TestSmoothANDDefaultMatchesExact(t *testing.T) {
	hits := [][]string{
		{"a", "b", "c", "d"},
		{"c", "a", "e"},
		{"a", "c", "f", "g"},
	}
	exact, err := ANDOperator{}.Evaluate(hits, nil)
	require.NoError(t, err)
	smooth, err := NewSmoothAND(1.0).Evaluate(hits, nil)
	require.NoError(t, err)
	assert.Equal(t, sorted(exact), sorted(smooth))
}

func TestSmoothORDefaultMatchesExact(t *testing.T) {
	hits := [][]string{
		{"a", "b"},
		{"b", "c", "d"},
	}
	exact, err := OROperator{}.Evaluate(hits, nil)
	require.NoError(t, err)
	smooth, err := NewSmoothOR(0.0).Evaluate(hits, nil)
	require.NoError(t, err)
	assert.Equal(t, sorted(exact), sorted(smooth))
}

func TestSmoothNOTDefaultMatchesExact(t *testing.T) {
	hits := [][]string{
		{"a", "b", "c"},
		{"b", "x"},
	}
	exact, err := NOTOperator{}.Evaluate(hits, nil)
	require.NoError(t, err)

	// Smooth NOT alone admits documents from either operand; the
	// re-intersection with the left operand restores set difference.
	smooth, err := NewSmoothNOT(1.0).Evaluate(hits, nil)
	require.NoError(t, err)
	smooth, err = NewSmoothAND(1.0).Evaluate([][]string{hits[0], smooth}, nil)
	require.NoError(t, err)
	assert.Equal(t, sorted(exact), sorted(smooth))
}

func TestSmoothANDRelaxedAdmitsNearMisses(t *testing.T) {
	// Document "b" appears in two of three lists near the top, so a
	// relaxed threshold should admit it while strict AND rejects it.
	hits := [][]string{
		{"a", "b"},
		{"b", "a"},
		{"a", "x", "y", "z"},
	}
	strict, err := NewSmoothAND(1.0).Evaluate(hits, nil)
	require.NoError(t, err)
	assert.NotContains(t, strict, "b")

	relaxed, err := NewSmoothAND(0.1).Evaluate(hits, nil)
	require.NoError(t, err)
	assert.Contains(t, relaxed, "a")
	assert.Contains(t, relaxed, "b")
}

func TestScoresProbabilityBounds(t *testing.T) {
	hits := [][]string{
		{"a", "b", "c"},
		{"a", "d"},
	}
	scores := NewSmoothAND(1.0).Scores(hits)
	require.Len(t, scores, 4)
	for _, doc := range scores {
		assert.GreaterOrEqual(t, doc.Prob, 0.0, "doc %s", doc.ID)
		assert.LessOrEqual(t, doc.Prob, 1.0, "doc %s", doc.ID)
	}
}

func TestScoresFullAgreementIsCertain(t *testing.T) {
	hits := [][]string{
		{"a", "b"},
		{"a", "c"},
	}
	scores := NewSmoothAND(1.0).Scores(hits)
	byID := make(map[string]ScoredDoc)
	for _, doc := range scores {
		byID[doc.ID] = doc
	}
	assert.Equal(t, 1.0, byID["a"].Prob)
	assert.Less(t, byID["b"].Prob, 1.0)
	assert.Less(t, byID["c"].Prob, 1.0)
}

func TestScoresOrderedByFusedScore(t *testing.T) {
	hits := [][]string{
		{"a", "b", "c"},
		{"a", "c"},
	}
	scores := NewSmoothAND(1.0).Scores(hits)
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1].RRF, scores[i].RRF)
	}
	// "a" ranks first in both lists, so it leads the fused order.
	assert.Equal(t, "a", scores[0].ID)
}

func TestSmoothDeterministicOrder(t *testing.T) {
	hits := [][]string{
		{"d", "c", "b", "a"},
		{"a", "b", "c", "d"},
	}
	first, err := NewSmoothOR(0.0).Evaluate(hits, nil)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := NewSmoothOR(0.0).Evaluate(hits, nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestWithThetaLeavesOriginal(t *testing.T) {
	op := NewSmoothAND(1.0)
	relaxed := op.WithTheta(0.5)
	assert.Equal(t, 1.0, op.Theta)
	assert.Equal(t, 0.5, relaxed.Theta)
}
