package experiments

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const topicsJSONL = `{"identifier": "CD001", "description": "aspirin review", "raw_query": "aspirin[ti]", "date_from": "1990/01/01", "date_to": "2018/12/31"}
{"identifier": "CD002", "description": "statin review", "raw_query": "statins[ti]", "date_from": "1990/01/01", "date_to": "2018/12/31"}
`

const qrelsText = `CD001 0 100 1
CD001 0 200 0
CD002 0 200 1
CD002 0 300 2
`

func TestReadTopics(t *testing.T) {
	topics, err := ReadTopics(strings.NewReader(topicsJSONL))
	if err != nil {
		t.Fatalf("failed to read topics: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(topics))
	}
	if topics[0].Identifier != "CD001" || topics[0].RawQuery != "aspirin[ti]" {
		t.Errorf("unexpected first topic: %+v", topics[0])
	}
	if topics[1].DateTo != "2018/12/31" {
		t.Errorf("unexpected date_to: %q", topics[1].DateTo)
	}
}

func TestReadTopicsBadLine(t *testing.T) {
	_, err := ReadTopics(strings.NewReader("{not json\n"))
	if err == nil {
		t.Error("expected error for malformed topic line")
	}
}

func TestReadQrels(t *testing.T) {
	qrels, err := ReadQrels(strings.NewReader(qrelsText))
	if err != nil {
		t.Fatalf("failed to read qrels: %v", err)
	}
	if len(qrels) != 4 {
		t.Fatalf("expected 4 qrels, got %d", len(qrels))
	}
	if qrels[3].QueryID != "CD002" || qrels[3].DocID != "300" || qrels[3].Relevance != 2 {
		t.Errorf("unexpected last qrel: %+v", qrels[3])
	}
}

func TestReadQrelsBadLine(t *testing.T) {
	_, err := ReadQrels(strings.NewReader("CD001 0 100\n"))
	if err == nil {
		t.Error("expected error for short qrel line")
	}
}

func TestLoadCollection(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "topics.jsonl"), []byte(topicsJSONL), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "qrels"), []byte(qrelsText), 0644); err != nil {
		t.Fatal(err)
	}

	collection, err := LoadCollection(dir)
	if err != nil {
		t.Fatalf("failed to load collection: %v", err)
	}
	if len(collection.Topics) != 2 || len(collection.Qrels) != 4 {
		t.Errorf("unexpected collection sizes: %d topics, %d qrels",
			len(collection.Topics), len(collection.Qrels))
	}
}

func TestCollectionFilter(t *testing.T) {
	topics, _ := ReadTopics(strings.NewReader(topicsJSONL))
	qrels, _ := ReadQrels(strings.NewReader(qrelsText))
	collection := &Collection{Identifier: "test", Topics: topics, Qrels: qrels}

	filtered := collection.Filter([]string{"CD002"})
	if len(filtered.Topics) != 1 || filtered.Topics[0].Identifier != "CD002" {
		t.Errorf("unexpected filtered topics: %+v", filtered.Topics)
	}
	if len(filtered.Qrels) != 2 {
		t.Errorf("expected 2 filtered qrels, got %d", len(filtered.Qrels))
	}
}

func TestTopicQrels(t *testing.T) {
	qrels, _ := ReadQrels(strings.NewReader(qrelsText))
	collection := &Collection{Qrels: qrels}
	if got := collection.TopicQrels("CD001"); len(got) != 2 {
		t.Errorf("expected 2 qrels for CD001, got %d", len(got))
	}
	if got := collection.TopicQrels("CD999"); len(got) != 0 {
		t.Errorf("expected no qrels for unknown topic, got %d", len(got))
	}
}

func TestAdHocCollection(t *testing.T) {
	collection := AdHocCollection("heart diseases[mh] AND aspirin[ti]")
	if len(collection.Topics) != 1 {
		t.Fatalf("expected one topic, got %d", len(collection.Topics))
	}
	topic := collection.Topics[0]
	if topic.DateFrom != "1900/01/01" || topic.DateTo != "2200/12/31" {
		t.Errorf("unexpected ad-hoc date range: %s to %s", topic.DateFrom, topic.DateTo)
	}

	// Both bounds must stay within the index's nanosecond-encoded
	// date range or date-wrapped searches reject the window.
	ceiling := time.Unix(0, math.MaxInt64)
	for _, raw := range []string{topic.DateFrom, topic.DateTo} {
		parsed, err := time.Parse("2006/01/02", raw)
		if err != nil {
			t.Fatalf("failed to parse window bound %q: %v", raw, err)
		}
		if parsed.After(ceiling) {
			t.Errorf("window bound %s is not indexable", raw)
		}
	}
}
