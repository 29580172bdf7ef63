package index

import (
	"context"
	"fmt"
	"sync"

	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/litsearch/boolir/pkg/common/logging"
	"github.com/litsearch/boolir/pkg/query"
)

// Searcher is the retrieval surface the evaluator runs compiled
// queries against.
type Searcher interface {
	// Search returns the identifiers of every matching document.
	Search(ctx context.Context, q bleveq.Query) ([]string, error)
	// Count returns the number of matching documents without
	// materializing identifiers.
	Count(ctx context.Context, q bleveq.Query) (uint64, error)
	// Get fetches the stored fields of one document by identifier.
	Get(ctx context.Context, id string, fields []string) (map[string]interface{}, error)
}

// Store wraps a bleve index of articles.
type Store struct {
	mu     sync.RWMutex
	index  bleve.Index
	logger *logging.Logger
}

// OpenStore opens the index at path, creating it with the article
// mapping when it does not exist yet.
func OpenStore(path string) (*Store, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, createArticleMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index at %s: %w", path, err)
	}
	return &Store{
		index:  index,
		logger: logging.GetGlobalLogger().WithComponent("index"),
	}, nil
}

// NewMemoryStore creates an in-memory store. Used by tests and
// throwaway experiments.
func NewMemoryStore() (*Store, error) {
	index, err := bleve.NewMemOnly(createArticleMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	return &Store{
		index:  index,
		logger: logging.GetGlobalLogger().WithComponent("index"),
	}, nil
}

// createArticleMapping builds the bleve mapping for articles. The
// controlled vocabulary fields use the keyword analyzer so term
// queries match whole headings, free text uses the standard analyzer.
func createArticleMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	articleMapping := bleve.NewDocumentMapping()

	idField := bleve.NewTextFieldMapping()
	idField.Store = true
	idField.Index = true
	idField.Analyzer = "keyword"
	articleMapping.AddFieldMappingsAt(query.FieldID, idField)

	titleField := bleve.NewTextFieldMapping()
	titleField.Store = true
	titleField.Index = true
	titleField.Analyzer = standard.Name
	articleMapping.AddFieldMappingsAt(query.FieldTitle, titleField)

	abstractField := bleve.NewTextFieldMapping()
	abstractField.Store = true
	abstractField.Index = true
	abstractField.Analyzer = standard.Name
	articleMapping.AddFieldMappingsAt(query.FieldAbstract, abstractField)

	dateField := bleve.NewDateTimeFieldMapping()
	dateField.Store = true
	dateField.Index = true
	articleMapping.AddFieldMappingsAt(query.FieldDate, dateField)

	keywordsField := bleve.NewTextFieldMapping()
	keywordsField.Store = true
	keywordsField.Index = true
	keywordsField.Analyzer = standard.Name
	articleMapping.AddFieldMappingsAt(query.FieldKeywords, keywordsField)

	for _, name := range []string{
		query.FieldMeSHHeadings,
		query.FieldMeSHMajor,
		query.FieldMeSHQualifiers,
		query.FieldSupplementary,
		query.FieldPublicationTyp,
	} {
		vocabField := bleve.NewTextFieldMapping()
		vocabField.Store = true
		vocabField.Index = true
		vocabField.Analyzer = "keyword"
		articleMapping.AddFieldMappingsAt(name, vocabField)
	}

	indexMapping.AddDocumentMapping("article", articleMapping)
	indexMapping.DefaultType = "article"
	return indexMapping
}

// Close releases the underlying index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

// Add indexes a single article under its PMID.
func (s *Store) Add(article *Article) error {
	if article.PMID == "" {
		return fmt.Errorf("article has no PMID")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.index.Index(article.PMID, article.Document()); err != nil {
		return fmt.Errorf("failed to index article %s: %w", article.PMID, err)
	}
	return nil
}

// AddBatch indexes a slice of articles in one bleve batch.
func (s *Store) AddBatch(articles []*Article) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch := s.index.NewBatch()
	for _, article := range articles {
		if article.PMID == "" {
			return fmt.Errorf("article has no PMID")
		}
		if err := batch.Index(article.PMID, article.Document()); err != nil {
			return fmt.Errorf("failed to batch article %s: %w", article.PMID, err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to apply batch: %w", err)
	}
	return nil
}

// Delete removes an article from the index.
func (s *Store) Delete(pmid string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.index.Delete(pmid); err != nil {
		return fmt.Errorf("failed to delete article %s: %w", pmid, err)
	}
	return nil
}

// DocCount reports the number of indexed articles.
func (s *Store) DocCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Count returns the number of documents matching q.
func (s *Store) Count(ctx context.Context, q bleveq.Query) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request := bleve.NewSearchRequest(q)
	request.Size = 0
	result, err := s.index.SearchInContext(ctx, request)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return result.Total, nil
}

// Get fetches the stored fields of one article by PMID. A nil or
// empty fields slice fetches every stored field.
func (s *Store) Get(ctx context.Context, pmid string, fields []string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request := bleve.NewSearchRequest(bleveq.NewDocIDQuery([]string{pmid}))
	request.Size = 1
	if len(fields) == 0 {
		request.Fields = []string{"*"}
	} else {
		request.Fields = fields
	}
	result, err := s.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article %s: %w", pmid, err)
	}
	if len(result.Hits) == 0 {
		return nil, fmt.Errorf("article %s not found", pmid)
	}
	return result.Hits[0].Fields, nil
}

// Search returns the PMIDs of every document matching q. The result
// set is complete, not a top-k page, because the evaluator combines
// result sets with exact set operations.
func (s *Store) Search(ctx context.Context, q bleveq.Query) ([]string, error) {
	total, err := s.Count(ctx, q)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []string{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	request := bleve.NewSearchRequest(q)
	request.Size = int(total)
	request.SortBy([]string{"-_score", "_id"})
	result, err := s.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
