// Package ranking blends semantic similarity with normalized behavioral signals
// into a single product score.
package ranking

import "github.com/hyperjump/shelfrank/internal/models"

// CountStats holds population-wide min/max of each behavioral counter.
type CountStats struct {
	ClickMin, ClickMax int64
	CartMin, CartMax   int64
	BuyMin, BuyMax     int64
}

// ComputeStats scans every product's counters. An empty population yields all zeros.
func ComputeStats(counters []models.Counters) CountStats {
	if len(counters) == 0 {
		return CountStats{}
	}
	first := counters[0]
	s := CountStats{
		ClickMin: first.Click,
		ClickMax: first.Click,
		CartMin:  first.AddToCart,
		CartMax:  first.AddToCart,
		BuyMin:   first.Purchase,
		BuyMax:   first.Purchase,
	}
	for _, c := range counters[1:] {
		s.ClickMin, s.ClickMax = min(s.ClickMin, c.Click), max(s.ClickMax, c.Click)
		s.CartMin, s.CartMax = min(s.CartMin, c.AddToCart), max(s.CartMax, c.AddToCart)
		s.BuyMin, s.BuyMax = min(s.BuyMin, c.Purchase), max(s.BuyMax, c.Purchase)
	}
	return s
}

// Normalize min-max scales v. A degenerate range (lo == hi) maps to 0.
func Normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// Bounce estimates clicks without follow-through: max(click - cart - buy, 0).
func Bounce(c models.Counters) int64 {
	return max(c.Click-c.AddToCart-c.Purchase, 0)
}

// Signals are the normalized behavioral inputs of one product.
type Signals struct {
	Click  float64
	Cart   float64
	Buy    float64
	Bounce float64
}

// NormalizeCounters scales c against the population stats. Bounce shares the click range.
func (s CountStats) NormalizeCounters(c models.Counters) Signals {
	clickLo, clickHi := float64(s.ClickMin), float64(s.ClickMax)
	return Signals{
		Click:  Normalize(float64(c.Click), clickLo, clickHi),
		Cart:   Normalize(float64(c.AddToCart), float64(s.CartMin), float64(s.CartMax)),
		Buy:    Normalize(float64(c.Purchase), float64(s.BuyMin), float64(s.BuyMax)),
		Bounce: Normalize(float64(Bounce(c)), clickLo, clickHi),
	}
}
