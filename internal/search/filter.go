package search

import (
	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/internal/storage"
	"github.com/hyperjump/shelfrank/internal/vector"
)

// FilterFromIntent maps extracted intent onto store constraints. A nil intent yields an empty filter.
func FilterFromIntent(in *models.QueryIntent) storage.ProductFilter {
	if in == nil {
		return storage.ProductFilter{}
	}
	return storage.ProductFilter{
		Brand:     in.Brand,
		Color:     in.Color,
		Size:      in.Size,
		MinPrice:  in.MinPrice,
		MaxPrice:  in.MaxPrice,
		MinRating: in.MinRating,
	}
}

// candidateDistances collapses nearest-neighbor hits to one distance per product.
// Hits arrive in ascending distance, so the first occurrence of an ID is its minimum.
// The returned ids keep that first-seen order.
func candidateDistances(hits []*vector.VectorResult) (map[string]float64, []string) {
	distances := make(map[string]float64, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if d, ok := distances[h.ID]; ok {
			if h.Distance < d {
				distances[h.ID] = h.Distance
			}
			continue
		}
		distances[h.ID] = h.Distance
		ids = append(ids, h.ID)
	}
	return distances, ids
}
