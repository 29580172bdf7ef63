package experiments

// SetMeasures holds set-based effectiveness measures over an
// unranked result set.
type SetMeasures struct {
	Precision float64
	Recall    float64
	F1        float64
}

// EvaluateSet computes set precision, recall, and F1 of the retrieved
// documents against the judgements. Documents with relevance greater
// than zero count as relevant.
func EvaluateSet(qrels []Qrel, retrieved []string) SetMeasures {
	relevant := make(map[string]bool)
	for _, qrel := range qrels {
		if qrel.Relevance > 0 {
			relevant[qrel.DocID] = true
		}
	}

	seen := make(map[string]bool, len(retrieved))
	hits := 0
	for _, doc := range retrieved {
		if seen[doc] {
			continue
		}
		seen[doc] = true
		if relevant[doc] {
			hits++
		}
	}

	var m SetMeasures
	if len(seen) > 0 {
		m.Precision = float64(hits) / float64(len(seen))
	}
	if len(relevant) > 0 {
		m.Recall = float64(hits) / float64(len(relevant))
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// AggregateMeasures averages per-topic measures.
func AggregateMeasures(perTopic map[string]SetMeasures) SetMeasures {
	if len(perTopic) == 0 {
		return SetMeasures{}
	}
	var agg SetMeasures
	for _, m := range perTopic {
		agg.Precision += m.Precision
		agg.Recall += m.Recall
		agg.F1 += m.F1
	}
	n := float64(len(perTopic))
	agg.Precision /= n
	agg.Recall /= n
	agg.F1 /= n
	return agg
}
