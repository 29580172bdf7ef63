package decompose

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/litsearch/boolir/pkg/common/logging"
	"github.com/litsearch/boolir/pkg/experiments"
	"github.com/litsearch/boolir/pkg/query"
)

// Experiment runs decomposed retrieval over a collection. Unlike the
// whole-query path, date restrictions are conjoined onto atomic
// clauses, so every atom retrieves from the same date window.
type Experiment struct {
	evaluator  *Evaluator
	parser     query.Parser
	collection *Collection

	identifier string
	logger     *logging.Logger
}

// Collection aliases the experiments type so callers building ad-hoc
// runs only import this package.
type Collection = experiments.Collection

// NewExperiment creates a decomposed retrieval experiment.
func NewExperiment(evaluator *Evaluator, parser query.Parser, collection *Collection) *Experiment {
	return &Experiment{
		evaluator:  evaluator,
		parser:     parser,
		collection: collection,
		identifier: uuid.New().String(),
		logger:     logging.GetGlobalLogger().WithComponent("decompose"),
	}
}

// Identifier uniquely refers to this experiment instance.
func (x *Experiment) Identifier() string { return x.identifier }

// RetrieveTopic parses and evaluates one topic. An empty raw query
// retrieves nothing.
func (x *Experiment) RetrieveTopic(ctx context.Context, topic experiments.Topic) ([]string, error) {
	if topic.RawQuery == "" {
		return []string{}, nil
	}
	node, err := x.parser.Parse(topic.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", topic.Identifier, err)
	}
	return x.evaluator.Evaluate(ctx, node, topic)
}

// Retrieve runs every topic in collection order, isolating per-topic
// failures.
func (x *Experiment) Retrieve(ctx context.Context) ([]experiments.TopicResult, error) {
	results := make([]experiments.TopicResult, 0, len(x.collection.Topics))
	for _, topic := range x.collection.Topics {
		ids, err := x.RetrieveTopic(ctx, topic)
		if err != nil {
			x.logger.Errorf("topic %s failed: %v", topic.Identifier, err)
		}
		results = append(results, experiments.TopicResult{Topic: topic, IDs: ids, Err: err})
	}
	return results, nil
}

// Run retrieves every topic and flattens the results into scored
// documents, scored by reverse result position.
func (x *Experiment) Run(ctx context.Context) ([]experiments.ScoredDoc, error) {
	results, err := x.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	var docs []experiments.ScoredDoc
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		docs = append(docs, experiments.ScoreByPosition(result.Topic.Identifier, result.IDs)...)
	}
	return docs, nil
}

// WriteRunFile writes the experiment's run in TREC format.
func (x *Experiment) WriteRunFile(ctx context.Context, path string) error {
	docs, err := x.Run(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create run file: %w", err)
	}
	defer f.Close()
	return experiments.WriteRun(f, docs, x.identifier[:7])
}

// Results evaluates the run against the collection's judgements.
func (x *Experiment) Results(ctx context.Context) (map[string]experiments.SetMeasures, error) {
	results, err := x.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	perTopic := make(map[string]experiments.SetMeasures)
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		qrels := x.collection.TopicQrels(result.Topic.Identifier)
		perTopic[result.Topic.Identifier] = experiments.EvaluateSet(qrels, result.IDs)
	}
	return perTopic, nil
}
