package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/litsearch/boolir/pkg/common/config"
	"github.com/litsearch/boolir/pkg/common/logging"
	"github.com/litsearch/boolir/pkg/decompose"
	"github.com/litsearch/boolir/pkg/experiments"
	"github.com/litsearch/boolir/pkg/index"
	"github.com/litsearch/boolir/pkg/mesh"
	"github.com/litsearch/boolir/pkg/qpp"
	"github.com/litsearch/boolir/pkg/query"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path")
		indexPath   = flag.String("index", "", "Index directory (overrides config)")
		meshTree    = flag.String("mesh", "", "MeSH tree file (overrides config)")
		generic     = flag.Bool("generic", false, "Use the generic query syntax instead of PubMed")
		ignoreDates = flag.Bool("ignore-dates", false, "Disable topic date restriction")
		smooth      = flag.Bool("smooth", false, "Evaluate with relaxed set operators")
		thetaAND    = flag.Float64("theta-and", -1, "AND relaxation threshold (overrides config)")
		thetaOR     = flag.Float64("theta-or", -1, "OR relaxation threshold (overrides config)")
		thetaNOT    = flag.Float64("theta-not", -1, "NOT relaxation threshold (overrides config)")
		parseQuery  = flag.String("parse", "", "Query to parse and print")
		loadFile    = flag.String("load", "", "Article JSONL file to index")
		searchQuery = flag.String("search", "", "Query to retrieve as a single compiled search")
		decompQuery = flag.String("decompose", "", "Query to retrieve bottom-up, one search per atom")
		qppQuery    = flag.String("qpp", "", "Query to measure performance predictors for")
		collection  = flag.String("collection", "", "Collection directory for a batch experiment")
		strategy    = flag.String("strategy", "search", "Experiment strategy: search, decompose or oracle")
		runFile     = flag.String("run", "", "Run file path for experiment output")
	)

	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Apply command-line overrides
	if *indexPath != "" {
		cfg.Index.Path = *indexPath
	}
	if *meshTree != "" {
		cfg.MeSH.TreeFile = *meshTree
	}
	if *ignoreDates {
		cfg.Retrieval.IgnoreDates = true
	}
	if *thetaAND >= 0 {
		cfg.Retrieval.ThetaAND = *thetaAND
	}
	if *thetaOR >= 0 {
		cfg.Retrieval.ThetaOR = *thetaOR
	}
	if *thetaNOT >= 0 {
		cfg.Retrieval.ThetaNOT = *thetaNOT
	}

	if err := logging.InitFromConfig(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	parser, err := newParser(cfg, *generic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create parser: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	switch {
	case *parseQuery != "":
		err = runParse(parser, *parseQuery)
	case *loadFile != "":
		err = runLoad(cfg, *loadFile)
	case *searchQuery != "":
		err = runSearch(ctx, cfg, parser, *searchQuery)
	case *decompQuery != "":
		err = runDecompose(ctx, cfg, parser, *decompQuery, *smooth)
	case *qppQuery != "":
		err = runQPP(ctx, cfg, parser, *qppQuery)
	case *collection != "":
		err = runExperiment(ctx, cfg, parser, *collection, *strategy, *runFile, *smooth)
	default:
		fmt.Fprintf(os.Stderr, "No operation specified. Use -parse, -load, -search, -decompose, -qpp or -collection.\n")
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		// Try default config path
		defaultPath, err := config.GetDefaultConfigPath()
		if err == nil {
			configPath = defaultPath
		}
	}

	return config.LoadConfig(configPath)
}

func newParser(cfg *config.Config, generic bool) (query.Parser, error) {
	if generic {
		return query.NewGenericQueryParser()
	}

	tree, err := loadTree(cfg)
	if err != nil {
		return nil, err
	}
	return query.NewPubmedQueryParser(tree)
}

func loadTree(cfg *config.Config) (*mesh.Tree, error) {
	if cfg.MeSH.TreeFile == "" {
		return nil, fmt.Errorf("no MeSH tree file configured (set mesh.tree_file or -mesh)")
	}
	return mesh.LoadTree(cfg.MeSH.TreeFile)
}

func openStore(cfg *config.Config) (*index.Store, error) {
	if cfg.Index.Path == "" {
		return nil, fmt.Errorf("no index path configured (set index.path or -index)")
	}
	return index.OpenStore(cfg.Index.Path)
}

func runParse(parser query.Parser, raw string) error {
	node, err := parser.Parse(raw)
	if err != nil {
		return err
	}
	fmt.Println(node.Format())
	printTree(node, 0)
	return nil
}

func printTree(node query.Node, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	switch n := node.(type) {
	case *query.OperatorNode:
		fmt.Printf("%s%s\n", indent, n.Operator)
		for _, child := range n.Children {
			printTree(child, depth+1)
		}
	case *query.AtomNode:
		fmt.Printf("%s%s\n", indent, n.Format())
	}
}

func runLoad(cfg *config.Config, path string) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open article file: %w", err)
	}
	defer file.Close()

	ingestor := index.NewIngestor(store, cfg.Index.BatchSize, cfg.Index.Workers)
	if err := ingestor.Start(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var article index.Article
		if err := json.Unmarshal(scanner.Bytes(), &article); err != nil {
			ingestor.Stop()
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := ingestor.Enqueue(&article); err != nil {
			ingestor.Stop()
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		ingestor.Stop()
		return err
	}
	if err := ingestor.Stop(); err != nil {
		return err
	}

	indexed, errors := ingestor.Metrics()
	fmt.Printf("Indexed %d articles (%d errors)\n", indexed, errors)
	return nil
}

func runSearch(ctx context.Context, cfg *config.Config, parser query.Parser, raw string) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	experiment := experiments.NewRetrievalExperiment(store, parser, experiments.AdHocCollection(raw))
	experiment.IgnoreDates = cfg.Retrieval.IgnoreDates
	experiment.DateField = cfg.Retrieval.DateField
	experiment.Workers = cfg.Retrieval.Workers

	ids, err := experiment.RetrieveTopic(ctx, experiment.Collection().Topics[0])
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	fmt.Fprintf(os.Stderr, "%d documents\n", len(ids))
	return nil
}

func runDecompose(ctx context.Context, cfg *config.Config, parser query.Parser, raw string, smooth bool) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	evaluator, err := newEvaluator(cfg, store, parser, smooth)
	if err != nil {
		return err
	}

	node, err := parser.Parse(raw)
	if err != nil {
		return err
	}

	topic := experiments.AdHocCollection(raw).Topics[0]
	ids, err := evaluator.Evaluate(ctx, node, topic)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	fmt.Fprintf(os.Stderr, "%d documents\n", len(ids))
	return nil
}

func newEvaluator(cfg *config.Config, store *index.Store, parser query.Parser, smooth bool) (*decompose.Evaluator, error) {
	var evaluator *decompose.Evaluator
	if smooth {
		evaluator = decompose.NewSmoothEvaluator(store, parser,
			cfg.Retrieval.ThetaAND, cfg.Retrieval.ThetaOR, cfg.Retrieval.ThetaNOT)
	} else {
		evaluator = decompose.NewEvaluator(store, parser)
	}
	evaluator.IgnoreDates = cfg.Retrieval.IgnoreDates
	evaluator.DateField = cfg.Retrieval.DateField
	evaluator.Workers = cfg.Retrieval.Workers

	if cfg.Cache.Enabled {
		cache, err := decompose.NewLeafCache(cfg.Cache.Directory,
			cfg.Cache.BloomCapacity, cfg.Cache.BloomFalsePositiveRate)
		if err != nil {
			return nil, err
		}
		evaluator.Cache = cache
	}
	return evaluator, nil
}

func runQPP(ctx context.Context, cfg *config.Config, parser query.Parser, raw string) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	node, err := parser.Parse(raw)
	if err != nil {
		return err
	}

	results, err := qpp.Measure(ctx, store, parser, node, raw)
	if err != nil {
		return err
	}
	for _, result := range results {
		fmt.Printf("%-20s %g\n", result.QPP, result.Result)
	}
	return nil
}

func runExperiment(ctx context.Context, cfg *config.Config, parser query.Parser, dir, strategy, runPath string, smooth bool) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	collection, err := experiments.LoadCollection(dir)
	if err != nil {
		return err
	}

	switch strategy {
	case "search":
		experiment := experiments.NewRetrievalExperiment(store, parser, collection)
		experiment.IgnoreDates = cfg.Retrieval.IgnoreDates
		experiment.DateField = cfg.Retrieval.DateField
		experiment.Workers = cfg.Retrieval.Workers
		if runPath != "" {
			if err := experiment.WriteRunFile(ctx, runPath); err != nil {
				return err
			}
		}
		results, err := experiment.Results(ctx)
		if err != nil {
			return err
		}
		printResults(results)
	case "decompose":
		evaluator, err := newEvaluator(cfg, store, parser, smooth)
		if err != nil {
			return err
		}
		experiment := decompose.NewExperiment(evaluator, parser, collection)
		if runPath != "" {
			if err := experiment.WriteRunFile(ctx, runPath); err != nil {
				return err
			}
		}
		results, err := experiment.Results(ctx)
		if err != nil {
			return err
		}
		printResults(results)
	case "oracle":
		return runOracle(ctx, cfg, store, parser, collection, runPath)
	default:
		return fmt.Errorf("unknown strategy %q (want search, decompose or oracle)", strategy)
	}
	return nil
}

// runOracle evaluates each topic with per-operator thresholds tuned
// against the collection's judgements, and prints the annotated query
// alongside the set measures.
func runOracle(ctx context.Context, cfg *config.Config, store *index.Store, parser query.Parser, collection *experiments.Collection, runPath string) error {
	var docs []experiments.ScoredDoc
	results := make(map[string]experiments.SetMeasures)
	for _, topic := range collection.Topics {
		qrels := collection.TopicQrels(topic.Identifier)
		oracle := decompose.NewOracleEvaluator(store, parser, qrels)
		oracle.IgnoreDates = cfg.Retrieval.IgnoreDates
		oracle.DateField = cfg.Retrieval.DateField
		oracle.Workers = cfg.Retrieval.Workers

		node, err := parser.Parse(topic.RawQuery)
		if err != nil {
			fmt.Fprintf(os.Stderr, "topic %s: %v\n", topic.Identifier, err)
			continue
		}
		ids, annotated, err := oracle.Evaluate(ctx, node, topic)
		if err != nil {
			fmt.Fprintf(os.Stderr, "topic %s: %v\n", topic.Identifier, err)
			continue
		}
		fmt.Printf("%s\t%s\n", topic.Identifier, annotated.Format())
		docs = append(docs, experiments.ScoreByPosition(topic.Identifier, ids)...)
		results[topic.Identifier] = experiments.EvaluateSet(qrels, ids)
	}

	if runPath != "" {
		file, err := os.Create(runPath)
		if err != nil {
			return fmt.Errorf("failed to create run file: %w", err)
		}
		defer file.Close()
		if err := experiments.WriteRun(file, docs, "oracle"); err != nil {
			return err
		}
	}

	printResults(results)
	return nil
}

func printResults(results map[string]experiments.SetMeasures) {
	for topicID, measures := range results {
		fmt.Printf("%s\tP=%.4f\tR=%.4f\tF1=%.4f\n", topicID, measures.Precision, measures.Recall, measures.F1)
	}
	agg := experiments.AggregateMeasures(results)
	fmt.Printf("all\tP=%.4f\tR=%.4f\tF1=%.4f\n", agg.Precision, agg.Recall, agg.F1)
}
