package decompose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestANDIntersects(t *testing.T) {
	hits := [][]string{
		{"a", "b", "c", "d"},
		{"b", "d", "e"},
		{"d", "b"},
	}
	got, err := ANDOperator{}.Evaluate(hits, nil)
	require.NoError(t, err)
	// Order follows the first child list.
	assert.Equal(t, []string{"b", "d"}, got)
}

func TestANDEmptyOperand(t *testing.T) {
	got, err := ANDOperator{}.Evaluate([][]string{{"a", "b"}, {}}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestANDNoOperands(t *testing.T) {
	_, err := ANDOperator{}.Evaluate(nil, nil)
	assert.Error(t, err)
}

func TestORUnions(t *testing.T) {
	hits := [][]string{
		{"a", "b"},
		{"b", "c"},
		{"c", "d"},
	}
	got, err := OROperator{}.Evaluate(hits, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestORDeduplicates(t *testing.T) {
	got, err := OROperator{}.Evaluate([][]string{{"a", "a", "b"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestNOTDifference(t *testing.T) {
	got, err := NOTOperator{}.Evaluate([][]string{{"a", "b", "c"}, {"b", "x"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, got)
}

func TestNOTArity(t *testing.T) {
	_, err := NOTOperator{}.Evaluate([][]string{{"a"}}, nil)
	assert.Error(t, err)
	_, err = NOTOperator{}.Evaluate([][]string{{"a"}, {"b"}, {"c"}}, nil)
	assert.Error(t, err)
}

func TestNOTNeverAdds(t *testing.T) {
	// Documents only in the excluded operand must not appear.
	got, err := NOTOperator{}.Evaluate([][]string{{"a"}, {"b", "c"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func TestExactOperatorsComplete(t *testing.T) {
	ops := ExactOperators()
	for _, name := range []string{"AND", "OR", "NOT"} {
		assert.Contains(t, ops, name)
	}
}
