package ranking

import (
	"sort"

	"github.com/hyperjump/shelfrank/internal/models"
)

// Candidate is a filtered product together with its vector distance to the query.
type Candidate struct {
	Product  *models.Product
	Distance float64
}

// Ranked is a scored candidate.
type Ranked struct {
	Product *models.Product
	Score   CandidateScore
}

// Ranker scores candidates against a fixed population snapshot.
type Ranker struct {
	stats CountStats
}

// NewRanker creates a Ranker for the given population statistics.
func NewRanker(stats CountStats) *Ranker {
	return &Ranker{stats: stats}
}

// Score computes the breakdown of a single candidate.
func (r *Ranker) Score(c Candidate) CandidateScore {
	return Fuse(SemanticScore(c.Distance), r.stats.NormalizeCounters(c.Product.Counters()))
}

// Rank scores every candidate and orders them by final score descending, breaking
// ties by product ID ascending. Ordering uses full-precision scores.
func (r *Ranker) Rank(candidates []Candidate) []Ranked {
	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		ranked[i] = Ranked{Product: c.Product, Score: r.Score(c)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score.Final != ranked[j].Score.Final {
			return ranked[i].Score.Final > ranked[j].Score.Final
		}
		return ranked[i].Product.ProductID < ranked[j].Product.ProductID
	})
	return ranked
}
