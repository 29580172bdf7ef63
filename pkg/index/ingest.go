package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/litsearch/boolir/pkg/common/logging"
)

// Ingestor feeds articles into a Store through a queue drained by
// background workers. Each worker accumulates a batch before writing
// so bulk loads do not pay a segment flush per article.
type Ingestor struct {
	store     *Store
	batchSize int
	workers   int

	queue   chan *Article
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *logging.Logger
	mu      sync.Mutex
	started bool

	metrics IngestMetrics
}

// IngestMetrics counts ingestion outcomes.
type IngestMetrics struct {
	mu      sync.Mutex
	Indexed uint64
	Errors  uint64
}

// NewIngestor creates an ingestor over store. batchSize and workers
// fall back to sane values when non-positive.
func NewIngestor(store *Store, batchSize, workers int) *Ingestor {
	if batchSize <= 0 {
		batchSize = 500
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Ingestor{
		store:     store,
		batchSize: batchSize,
		workers:   workers,
		queue:     make(chan *Article, batchSize*2),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logging.GetGlobalLogger().WithComponent("ingest"),
	}
}

// Start launches the background workers.
func (in *Ingestor) Start() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.started {
		return fmt.Errorf("ingestor already started")
	}
	for i := 0; i < in.workers; i++ {
		in.wg.Add(1)
		go in.worker(i)
	}
	in.started = true
	return nil
}

// Enqueue queues one article for indexing. Blocks when the queue is
// full.
func (in *Ingestor) Enqueue(article *Article) error {
	in.mu.Lock()
	started := in.started
	in.mu.Unlock()
	if !started {
		return fmt.Errorf("ingestor not started")
	}
	select {
	case in.queue <- article:
		return nil
	case <-in.ctx.Done():
		return in.ctx.Err()
	}
}

// Stop drains the queue, flushes pending batches, and waits for the
// workers to exit.
func (in *Ingestor) Stop() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.started {
		return nil
	}
	close(in.queue)
	in.wg.Wait()
	in.cancel()
	in.started = false
	return nil
}

// Metrics returns a snapshot of ingestion counters.
func (in *Ingestor) Metrics() (indexed, errors uint64) {
	in.metrics.mu.Lock()
	defer in.metrics.mu.Unlock()
	return in.metrics.Indexed, in.metrics.Errors
}

func (in *Ingestor) worker(id int) {
	defer in.wg.Done()

	batch := make([]*Article, 0, in.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := in.store.AddBatch(batch); err != nil {
			in.logger.Errorf("worker %d: batch of %d failed: %v", id, len(batch), err)
			in.addErrors(uint64(len(batch)))
		} else {
			in.addIndexed(uint64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case article, ok := <-in.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, article)
			if len(batch) >= in.batchSize {
				flush()
			}
		case <-in.ctx.Done():
			flush()
			return
		}
	}
}

func (in *Ingestor) addIndexed(n uint64) {
	in.metrics.mu.Lock()
	defer in.metrics.mu.Unlock()
	in.metrics.Indexed += n
}

func (in *Ingestor) addErrors(n uint64) {
	in.metrics.mu.Lock()
	defer in.metrics.mu.Unlock()
	in.metrics.Errors += n
}
