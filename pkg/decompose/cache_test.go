package decompose

import (
	"context"
	"sync"
	"testing"

	bleveq "github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litsearch/boolir/pkg/index"
	"github.com/litsearch/boolir/pkg/query"
)

// countingSearcher wraps a searcher and counts actual index searches.
type countingSearcher struct {
	index.Searcher
	mu       sync.Mutex
	searches int
}

func (c *countingSearcher) Search(ctx context.Context, q bleveq.Query) ([]string, error) {
	c.mu.Lock()
	c.searches++
	c.mu.Unlock()
	return c.Searcher.Search(ctx, q)
}

func (c *countingSearcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searches
}

func TestLeafCacheRoundTrip(t *testing.T) {
	cache, err := NewLeafCache(t.TempDir(), 1000, 0.01)
	require.NoError(t, err)

	node := &query.AtomNode{Query: "aspirin", Field: query.Field{Name: "ti"}}
	_, ok := cache.Get(node)
	assert.False(t, ok)

	require.NoError(t, cache.Put(node, []string{"100", "200"}))
	ids, ok := cache.Get(node)
	require.True(t, ok)
	assert.Equal(t, []string{"100", "200"}, ids)
}

func TestLeafCacheDistinguishesNodes(t *testing.T) {
	cache, err := NewLeafCache(t.TempDir(), 1000, 0.01)
	require.NoError(t, err)

	a := &query.AtomNode{Query: "aspirin", Field: query.Field{Name: "ti"}}
	b := &query.AtomNode{Query: "aspirin", Field: query.Field{Name: "tiab"}}
	require.NoError(t, cache.Put(a, []string{"1"}))

	_, ok := cache.Get(b)
	assert.False(t, ok)
}

func TestLeafCacheEmptyResultSet(t *testing.T) {
	cache, err := NewLeafCache(t.TempDir(), 1000, 0.01)
	require.NoError(t, err)

	node := &query.AtomNode{Query: "nothing", Field: query.Field{Name: "ti"}}
	require.NoError(t, cache.Put(node, nil))
	ids, ok := cache.Get(node)
	require.True(t, ok)
	assert.Empty(t, ids)
}

func TestLeafCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewLeafCache(dir, 1000, 0.01)
	require.NoError(t, err)
	node := &query.AtomNode{Query: "aspirin", Field: query.Field{Name: "ti"}}
	require.NoError(t, cache.Put(node, []string{"100"}))

	reopened, err := NewLeafCache(dir, 1000, 0.01)
	require.NoError(t, err)
	ids, ok := reopened.Get(node)
	require.True(t, ok)
	assert.Equal(t, []string{"100"}, ids)
}

func TestEvaluatorUsesCache(t *testing.T) {
	parser := newTestParser(t)
	store := newTestStore(t)
	counting := &countingSearcher{Searcher: store}

	e := NewEvaluator(counting, parser)
	cache, err := NewLeafCache(t.TempDir(), 1000, 0.01)
	require.NoError(t, err)
	e.Cache = cache

	first := evalRaw(t, e, parser, "aspirin[ti] AND placebo[tiab]", wideTopic())
	assert.Equal(t, 2, counting.count())

	second := evalRaw(t, e, parser, "aspirin[ti] AND placebo[tiab]", wideTopic())
	assert.Equal(t, 2, counting.count(), "second evaluation should be served from the cache")
	assert.Equal(t, first, second)
}
