package experiments

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/litsearch/boolir/pkg/common/logging"
	"github.com/litsearch/boolir/pkg/common/workers"
	"github.com/litsearch/boolir/pkg/index"
	"github.com/litsearch/boolir/pkg/query"
)

// RetrievalExperiment retrieves every topic of a collection as a
// single compiled query. The topic's date range is conjoined onto the
// whole query right before compilation, so the parsed tree itself
// stays date-free.
type RetrievalExperiment struct {
	searcher   index.Searcher
	parser     query.Parser
	collection *Collection

	// IgnoreDates skips the topic date restriction.
	IgnoreDates bool
	// DateField is the field alias the date restriction is written
	// under.
	DateField string
	// Workers bounds concurrent topic retrieval.
	Workers int

	identifier    string
	dateCreated   time.Time
	dateCompleted time.Time
	logger        *logging.Logger

	mu  sync.Mutex
	run []ScoredDoc
}

// TopicResult is the outcome of retrieving one topic. Failed topics
// carry their error instead of aborting the whole experiment.
type TopicResult struct {
	Topic Topic
	IDs   []string
	Err   error
}

// NewRetrievalExperiment creates an experiment over a collection.
func NewRetrievalExperiment(searcher index.Searcher, parser query.Parser, collection *Collection) *RetrievalExperiment {
	return &RetrievalExperiment{
		searcher:    searcher,
		parser:      parser,
		collection:  collection,
		DateField:   "dp",
		Workers:     1,
		identifier:  uuid.New().String(),
		dateCreated: time.Now(),
		logger:      logging.GetGlobalLogger().WithComponent("experiments"),
	}
}

// Identifier uniquely refers to this experiment instance. Run file
// rows carry its short prefix as the run tag.
func (e *RetrievalExperiment) Identifier() string {
	return e.identifier
}

// Collection returns the collection under experiment.
func (e *RetrievalExperiment) Collection() *Collection {
	return e.collection
}

// TopicQuery parses a topic's raw query and conjoins the topic date
// range unless dates are ignored.
func (e *RetrievalExperiment) TopicQuery(topic Topic) (query.Node, error) {
	node, err := e.parser.Parse(topic.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", topic.Identifier, err)
	}
	if e.IgnoreDates || topic.DateFrom == "" || topic.DateTo == "" {
		return node, nil
	}
	restriction := &query.AtomNode{
		Query: fmt.Sprintf("%s:%s", topic.DateFrom, topic.DateTo),
		Field: query.Field{Name: e.DateField},
	}
	return &query.OperatorNode{Operator: "AND", Children: []query.Node{node, restriction}}, nil
}

// RetrieveTopic runs one topic to completion. A topic with an empty
// raw query retrieves nothing rather than failing.
func (e *RetrievalExperiment) RetrieveTopic(ctx context.Context, topic Topic) ([]string, error) {
	if topic.RawQuery == "" {
		return []string{}, nil
	}
	node, err := e.TopicQuery(topic)
	if err != nil {
		return nil, err
	}
	q, err := e.parser.Compile(node)
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", topic.Identifier, err)
	}
	return e.searcher.Search(ctx, q)
}

// Retrieve runs every topic and returns per-topic results in
// collection order. Topic failures are reported in the result rather
// than aborting the remaining topics.
func (e *RetrievalExperiment) Retrieve(ctx context.Context) ([]TopicResult, error) {
	pool := workers.NewPool(e.Workers)
	results, err := workers.Map(ctx, pool, e.collection.Topics, func(ctx context.Context, topic Topic) (TopicResult, error) {
		ids, err := e.RetrieveTopic(ctx, topic)
		if err != nil {
			e.logger.Errorf("topic %s failed: %v", topic.Identifier, err)
		}
		return TopicResult{Topic: topic, IDs: ids, Err: err}, nil
	})
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.dateCompleted = time.Now()
	e.mu.Unlock()
	return results, nil
}

// Run retrieves every topic and flattens the results into scored
// documents, cached across calls.
func (e *RetrievalExperiment) Run(ctx context.Context) ([]ScoredDoc, error) {
	e.mu.Lock()
	if e.run != nil {
		cached := e.run
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	results, err := e.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	var docs []ScoredDoc
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		docs = append(docs, ScoreByPosition(result.Topic.Identifier, result.IDs)...)
	}

	e.mu.Lock()
	e.run = docs
	e.mu.Unlock()
	return docs, nil
}

// WriteRunFile writes the experiment's run in TREC format, tagged
// with the experiment identifier prefix.
func (e *RetrievalExperiment) WriteRunFile(ctx context.Context, path string) error {
	docs, err := e.Run(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create run file: %w", err)
	}
	defer f.Close()
	return WriteRun(f, docs, e.identifier[:7])
}

// Results evaluates the run against the collection's judgements,
// topic by topic.
func (e *RetrievalExperiment) Results(ctx context.Context) (map[string]SetMeasures, error) {
	results, err := e.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	perTopic := make(map[string]SetMeasures)
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		qrels := e.collection.TopicQrels(result.Topic.Identifier)
		perTopic[result.Topic.Identifier] = EvaluateSet(qrels, result.IDs)
	}
	return perTopic, nil
}
