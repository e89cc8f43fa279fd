// Package ranker scores postings with BM25 and orders scored documents.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

type Params struct {
	TotalDocs    int
	AvgDocLength float64
}

// ParamsFrom derives BM25 collection statistics from index stats.
func ParamsFrom(stats index.Stats) Params {
	return Params{TotalDocs: stats.Docs, AvgDocLength: stats.AvgDocLength}
}

// ScoreTerm returns the BM25 contribution of one term for every document in
// its posting list. frequency overrides the posting frequency when non-nil,
// which phrase matching uses to count phrase occurrences instead of terms.
func ScoreTerm(
	postings index.PostingList,
	params Params,
	docLength func(docID string) int,
	frequency func(p index.Posting) int,
) map[string]float64 {
	scores := make(map[string]float64, len(postings))
	if len(postings) == 0 {
		return scores
	}
	idf := computeIDF(params.TotalDocs, len(postings))
	for _, posting := range postings {
		tf := posting.Frequency
		if frequency != nil {
			tf = frequency(posting)
		}
		if tf == 0 {
			continue
		}
		scores[posting.DocID] = idf * computeTFNorm(float64(tf), float64(docLength(posting.DocID)), params.AvgDocLength)
	}
	return scores
}

// Rank orders scores by descending score, then ascending DocID. Scores are
// rounded to four decimals so that equal inputs compare equal.
func Rank(scores map[string]float64) []ScoredDoc {
	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{
			DocID: docID,
			Score: Round(score),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	return result
}

func Round(score float64) float64 {
	return math.Round(score*10000) / 10000
}

func computeIDF(totalDocs int, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
