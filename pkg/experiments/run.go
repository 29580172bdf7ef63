package experiments

import (
	"bufio"
	"fmt"
	"io"
)

// ScoredDoc is one row of a run: a document retrieved for a topic
// with its score. Decomposed retrieval scores documents by reverse
// result position, so earlier documents score higher.
type ScoredDoc struct {
	QueryID string
	DocID   string
	Score   float64
}

// WriteRun writes scored documents in the six-column TREC run format.
// Ranks restart per topic in document order, which assumes rows for
// one topic are contiguous.
func WriteRun(w io.Writer, docs []ScoredDoc, tag string) error {
	bw := bufio.NewWriter(w)
	ranks := make(map[string]int)
	for _, doc := range docs {
		rank := ranks[doc.QueryID]
		ranks[doc.QueryID] = rank + 1
		if _, err := fmt.Fprintf(bw, "%s Q0 %s %d %g %s\n",
			doc.QueryID, doc.DocID, rank, 1+doc.Score, tag); err != nil {
			return fmt.Errorf("failed to write run row: %w", err)
		}
	}
	return bw.Flush()
}

// ScoreByPosition turns an ordered result list into scored documents,
// scoring each document by its reverse position so TREC evaluation
// preserves the list order.
func ScoreByPosition(queryID string, ids []string) []ScoredDoc {
	docs := make([]ScoredDoc, len(ids))
	for i, id := range ids {
		docs[i] = ScoredDoc{
			QueryID: queryID,
			DocID:   id,
			Score:   float64(len(ids) - i),
		}
	}
	return docs
}
