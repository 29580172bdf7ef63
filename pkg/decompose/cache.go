package decompose

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/litsearch/boolir/pkg/common/logging"
	"github.com/litsearch/boolir/pkg/query"
)

// LeafCache persists atomic result sets on disk keyed by the
// formatted atom, so repeated evaluation of shared clauses across
// thresholds and topics hits the filesystem instead of the index. A
// bloom filter fronts the directory to skip stat calls for keys that
// were never stored.
type LeafCache struct {
	dir    string
	mu     sync.Mutex
	filter *bloom.BloomFilter
	logger *logging.Logger
}

// NewLeafCache opens a cache directory, creating it when missing, and
// seeds the bloom filter from the entries already present.
func NewLeafCache(dir string, capacity uint, falsePositiveRate float64) (*LeafCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	cache := &LeafCache{
		dir:    dir,
		filter: bloom.NewWithEstimates(capacity, falsePositiveRate),
		logger: logging.GetGlobalLogger().WithComponent("leafcache"),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			cache.filter.AddString(entry.Name())
		}
	}
	return cache, nil
}

// Key derives the cache key of a node from its formatted form using
// 32-bit FNV-1a.
func (c *LeafCache) Key(node query.Node) string {
	h := fnv.New32a()
	h.Write([]byte(node.Format()))
	return strconv.FormatUint(uint64(h.Sum32()), 10)
}

// Get returns the cached result set for a node, if present.
func (c *LeafCache) Get(node query.Node) ([]string, bool) {
	key := c.Key(node)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.filter.TestString(key) {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(c.dir, key))
	if err != nil {
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		c.logger.Warnf("dropping corrupt cache entry %s: %v", key, err)
		os.Remove(filepath.Join(c.dir, key))
		return nil, false
	}
	return ids, true
}

// Put stores a node's result set.
func (c *LeafCache) Put(node query.Node, ids []string) error {
	key := c.Key(node)
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.WriteFile(filepath.Join(c.dir, key), data, 0644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	c.filter.AddString(key)
	return nil
}
