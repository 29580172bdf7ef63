package decompose

import (
	"sort"

	"github.com/litsearch/boolir/pkg/query"
)

// rrfK dampens reciprocal rank fusion scores so long result lists
// still contribute.
const rrfK = 10_000

// ScoredDoc is one candidate document with its inclusion probability
// and reciprocal rank fusion score.
type ScoredDoc struct {
	ID   string
	Prob float64
	RRF  float64
}

// SmoothOperator relaxes a Boolean operator: instead of a strict set
// operation, each candidate document receives an inclusion
// probability and documents pass a threshold theta. Theta 1.0 for AND
// and NOT and 0.0 for OR reproduce the exact operators.
type SmoothOperator struct {
	Theta float64
	keep  func(prob, theta float64) bool
}

// NewSmoothAND keeps documents with inclusion probability at least
// theta.
func NewSmoothAND(theta float64) *SmoothOperator {
	return &SmoothOperator{Theta: theta, keep: probAtLeast}
}

// NewSmoothOR keeps documents with inclusion probability at least
// theta. With theta 0 every candidate passes, matching exact OR.
func NewSmoothOR(theta float64) *SmoothOperator {
	return &SmoothOperator{Theta: theta, keep: probAtLeast}
}

// NewSmoothNOT keeps documents with inclusion probability below
// theta. The evaluator re-intersects the outcome with the first
// operand so NOT can only remove documents.
func NewSmoothNOT(theta float64) *SmoothOperator {
	return &SmoothOperator{Theta: theta, keep: probBelow}
}

// NewSmoothOperator builds the smooth flavor of a base operator name
// with its conventional default threshold.
func NewSmoothOperator(base string) *SmoothOperator {
	switch base {
	case "OR":
		return NewSmoothOR(0.0)
	case "NOT":
		return NewSmoothNOT(1.0)
	default:
		return NewSmoothAND(1.0)
	}
}

// SmoothOperators returns the smooth operator set at its default
// thresholds, which behave identically to the exact operators.
func SmoothOperators() map[string]Operator {
	return map[string]Operator{
		"AND": NewSmoothAND(1.0),
		"OR":  NewSmoothOR(0.0),
		"NOT": NewSmoothNOT(1.0),
	}
}

func probAtLeast(prob, theta float64) bool { return prob >= theta }
func probBelow(prob, theta float64) bool   { return prob < theta }

// Keep reports whether a document with the given inclusion
// probability passes the operator's threshold.
func (s *SmoothOperator) Keep(prob float64) bool {
	return s.keep(prob, s.Theta)
}

// WithTheta returns a copy of the operator at a different threshold.
func (s *SmoothOperator) WithTheta(theta float64) *SmoothOperator {
	return &SmoothOperator{Theta: theta, keep: s.keep}
}

// Scores computes the inclusion probability and fused rank score of
// every candidate document, unfiltered, ordered by fused score
// descending with document ID as tiebreak.
func (s *SmoothOperator) Scores(childHits [][]string) []ScoredDoc {
	ranks := make([]map[string]int, len(childHits))
	for i, hits := range childHits {
		ranks[i] = make(map[string]int, len(hits))
		for pos, doc := range hits {
			if _, ok := ranks[i][doc]; !ok {
				ranks[i][doc] = pos + 1
			}
		}
	}

	candidates, _ := OROperator{}.Evaluate(childHits, nil)
	numQ := len(childHits)
	scored := make([]ScoredDoc, 0, len(candidates))
	for _, doc := range candidates {
		scored = append(scored, scoreDoc(doc, ranks, numQ))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RRF != scored[j].RRF {
			return scored[i].RRF > scored[j].RRF
		}
		return scored[i].ID < scored[j].ID
	})
	return scored
}

// scoreDoc derives a posterior inclusion probability for one document
// from how many child lists contain it and how deep it ranks in each.
func scoreDoc(doc string, ranks []map[string]int, numQ int) ScoredDoc {
	probCD := 1.0
	containing := 0.0
	rrfScore := 0.0
	for _, list := range ranks {
		pos, ok := list[doc]
		if !ok {
			continue
		}
		containing++
		probCD *= 1 - float64(1+pos)/float64(2+len(list))
		rrfScore += 1 / float64(rrfK+pos)
	}
	rrfMNZ := containing
	probD := containing / float64(numQ)

	// A document at the top of every child list drives probCD to
	// zero, which would zero the posterior for the strongest possible
	// candidate. Short-circuit to certainty instead.
	if probD == 1 && probCD == 0 {
		return ScoredDoc{ID: doc, Prob: 1, RRF: rrfMNZ * rrfScore}
	}
	prob := (probD * probCD) / ((probD * probCD) + (1-probD)*(1-probCD))
	return ScoredDoc{ID: doc, Prob: prob, RRF: rrfMNZ * rrfScore}
}

// Evaluate scores all candidates and returns those passing the
// threshold, ordered by fused score.
func (s *SmoothOperator) Evaluate(childHits [][]string, children []query.Node) ([]string, error) {
	scored := s.Scores(childHits)
	var result []string
	for _, doc := range scored {
		if s.Keep(doc.Prob) {
			result = append(result, doc.ID)
		}
	}
	return result, nil
}
