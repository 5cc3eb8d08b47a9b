package ranking

import (
	"testing"

	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRanker_OrdersByFinalScore(t *testing.T) {
	popular := &models.Product{ProductID: "B", PurchaseCount: 10, AddToCartCount: 10, ClickCount: 20}
	quiet := &models.Product{ProductID: "A"}
	stats := ComputeStats([]models.Counters{popular.Counters(), quiet.Counters()})

	ranked := NewRanker(stats).Rank([]Candidate{
		{Product: quiet, Distance: 0.30},
		{Product: popular, Distance: 0.35},
	})
	require.Len(t, ranked, 2)
	assert.Equal(t, "B", ranked[0].Product.ProductID, "behavior should lift the slightly farther product")
	assert.GreaterOrEqual(t, ranked[0].Score.Final, ranked[1].Score.Final)
}

func TestRanker_TiesBreakOnProductID(t *testing.T) {
	r := NewRanker(CountStats{})
	ranked := r.Rank([]Candidate{
		{Product: &models.Product{ProductID: "p3"}, Distance: 0.5},
		{Product: &models.Product{ProductID: "p1"}, Distance: 0.5},
		{Product: &models.Product{ProductID: "p2"}, Distance: 0.5},
	})
	var got []string
	for _, x := range ranked {
		got = append(got, x.Product.ProductID)
	}
	assert.Equal(t, []string{"p1", "p2", "p3"}, got)
}

func TestRanker_SortsOnPreciseScores(t *testing.T) {
	r := NewRanker(CountStats{})
	// Both round to the same four-digit semantic score.
	ranked := r.Rank([]Candidate{
		{Product: &models.Product{ProductID: "a"}, Distance: 0.000101},
		{Product: &models.Product{ProductID: "b"}, Distance: 0.000100},
	})
	assert.Equal(t, "b", ranked[0].Product.ProductID)
	assert.Equal(t, ranked[0].Score.Rounded().Final, ranked[1].Score.Rounded().Final)
}

func TestRanker_Empty(t *testing.T) {
	assert.Empty(t, NewRanker(CountStats{}).Rank(nil))
}
