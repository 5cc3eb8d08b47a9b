package ranking

import (
	"github.com/hyperjump/shelfrank/pkg/utils"
)

// Fixed fusion weights.
const (
	SemanticWeight = 0.55
	BuyWeight      = 0.20
	CartWeight     = 0.15
	ClickWeight    = 0.10
	BouncePenalty  = 0.10
)

// ScoreDigits is the rounding precision of presented scores.
const ScoreDigits = 4

// SemanticScore maps a squared L2 distance to (0, 1]; identical vectors score 1.
func SemanticScore(distance float64) float64 {
	return 1 / (1 + distance)
}

// CandidateScore is the full score breakdown of one candidate, at full precision.
type CandidateScore struct {
	Semantic   float64
	NormClick  float64
	NormCart   float64
	NormBuy    float64
	NormBounce float64
	Final      float64
}

// Fuse combines the semantic score with the behavioral signals. The result is not
// renormalized and can fall slightly below 0.
func Fuse(semantic float64, sig Signals) CandidateScore {
	final := SemanticWeight*semantic +
		BuyWeight*sig.Buy +
		CartWeight*sig.Cart +
		ClickWeight*sig.Click -
		BouncePenalty*sig.Bounce
	return CandidateScore{
		Semantic:   semantic,
		NormClick:  sig.Click,
		NormCart:   sig.Cart,
		NormBuy:    sig.Buy,
		NormBounce: sig.Bounce,
		Final:      final,
	}
}

// Rounded returns a copy with every component rounded for presentation.
func (c CandidateScore) Rounded() CandidateScore {
	return CandidateScore{
		Semantic:   utils.Round(c.Semantic, ScoreDigits),
		NormClick:  utils.Round(c.NormClick, ScoreDigits),
		NormCart:   utils.Round(c.NormCart, ScoreDigits),
		NormBuy:    utils.Round(c.NormBuy, ScoreDigits),
		NormBounce: utils.Round(c.NormBounce, ScoreDigits),
		Final:      utils.Round(c.Final, ScoreDigits),
	}
}
