// Package experiments runs retrieval experiments over collections of
// topics, producing TREC run files and set-based effectiveness
// measures.
package experiments

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Topic is one query of a collection. The date range reproduces when
// the query was originally issued, so reruns retrieve against the
// same slice of the literature.
type Topic struct {
	Identifier  string `json:"identifier"`
	Description string `json:"description"`
	RawQuery    string `json:"raw_query"`
	DateFrom    string `json:"date_from"`
	DateTo      string `json:"date_to"`
}

// Qrel is one relevance judgement in TREC format.
type Qrel struct {
	QueryID   string
	Iteration string
	DocID     string
	Relevance int
}

// Collection bundles topics with their relevance judgements. The
// documents themselves live in the index and are handled separately.
type Collection struct {
	Identifier string
	Topics     []Topic
	Qrels      []Qrel
}

// ReadTopics loads topics from a JSONL stream, one topic per line.
func ReadTopics(r io.Reader) ([]Topic, error) {
	var topics []Topic
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var topic Topic
		if err := json.Unmarshal([]byte(text), &topic); err != nil {
			return nil, fmt.Errorf("topics line %d: %w", line, err)
		}
		topics = append(topics, topic)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read topics: %w", err)
	}
	return topics, nil
}

// ReadQrels parses TREC qrels: "query-id iteration doc-id relevance"
// per line, whitespace separated.
func ReadQrels(r io.Reader) ([]Qrel, error) {
	var qrels []Qrel
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		parts := strings.Fields(text)
		if len(parts) != 4 {
			return nil, fmt.Errorf("qrels line %d: expected 4 fields, got %d", line, len(parts))
		}
		relevance, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil, fmt.Errorf("qrels line %d: bad relevance: %w", line, err)
		}
		qrels = append(qrels, Qrel{
			QueryID:   parts[0],
			Iteration: parts[1],
			DocID:     parts[2],
			Relevance: relevance,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read qrels: %w", err)
	}
	return qrels, nil
}

// LoadCollection loads a collection directory holding a topics.jsonl
// file and a qrels file.
func LoadCollection(dir string) (*Collection, error) {
	topicsFile, err := os.Open(filepath.Join(dir, "topics.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to open topics: %w", err)
	}
	defer topicsFile.Close()
	topics, err := ReadTopics(topicsFile)
	if err != nil {
		return nil, err
	}

	qrelsFile, err := os.Open(filepath.Join(dir, "qrels"))
	if err != nil {
		return nil, fmt.Errorf("failed to open qrels: %w", err)
	}
	defer qrelsFile.Close()
	qrels, err := ReadQrels(qrelsFile)
	if err != nil {
		return nil, err
	}

	return &Collection{
		Identifier: filepath.Base(dir),
		Topics:     topics,
		Qrels:      qrels,
	}, nil
}

// AdHocCollection wraps a single raw query as a one-topic collection
// so experiments can run without judgements. The date range spans all
// plausible publication dates unless overridden on the topic.
func AdHocCollection(rawQuery string) *Collection {
	return &Collection{
		Identifier: "adhoc",
		Topics: []Topic{{
			Identifier:  "0",
			Description: "ad-hoc topic",
			RawQuery:    rawQuery,
			// The index stores dates as int64 nanoseconds, which
			// caps representable dates around year 2262. The window
			// end must stay below that or every date-wrapped search
			// fails.
			DateFrom:    "1900/01/01",
			DateTo:      "2200/12/31",
		}},
	}
}

// Filter returns a copy of the collection restricted to the named
// topics and their judgements.
func (c *Collection) Filter(topicIDs []string) *Collection {
	keep := make(map[string]bool, len(topicIDs))
	for _, id := range topicIDs {
		keep[id] = true
	}
	filtered := &Collection{Identifier: c.Identifier}
	for _, topic := range c.Topics {
		if keep[topic.Identifier] {
			filtered.Topics = append(filtered.Topics, topic)
		}
	}
	for _, qrel := range c.Qrels {
		if keep[qrel.QueryID] {
			filtered.Qrels = append(filtered.Qrels, qrel)
		}
	}
	return filtered
}

// TopicQrels returns the judgements for one topic.
func (c *Collection) TopicQrels(queryID string) []Qrel {
	var qrels []Qrel
	for _, qrel := range c.Qrels {
		if qrel.QueryID == queryID {
			qrels = append(qrels, qrel)
		}
	}
	return qrels
}

// Topic returns the topic with the given identifier.
func (c *Collection) Topic(identifier string) (Topic, bool) {
	for _, topic := range c.Topics {
		if topic.Identifier == identifier {
			return topic, true
		}
	}
	return Topic{}, false
}
