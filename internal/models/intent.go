package models

// QueryIntent holds structured constraints inferred from a free-text query.
// A nil field means the dimension is unconstrained.
type QueryIntent struct {
	MinPrice  *float64 `json:"min_price,omitempty"`
	MaxPrice  *float64 `json:"max_price,omitempty"`
	Color     *string  `json:"color,omitempty"`
	Size      *string  `json:"size,omitempty"`
	Brand     *string  `json:"brand,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty"`
}

// IsEmpty reports whether no constraint was extracted.
func (q *QueryIntent) IsEmpty() bool {
	return q == nil || (q.MinPrice == nil && q.MaxPrice == nil && q.Color == nil &&
		q.Size == nil && q.Brand == nil && q.MinRating == nil)
}
