package models

// SearchResult is a single ranked product with its score breakdown.
// Scores are rounded to four decimal digits for presentation.
type SearchResult struct {
	Product       *Product `json:"product"`
	Rank          int      `json:"rank"`
	SemanticScore float64  `json:"semantic_score"`
	NormClick     float64  `json:"normalized_click_score"`
	NormCart      float64  `json:"normalized_add_to_cart_score"`
	NormBuy       float64  `json:"normalized_purchase_score"`
	NormBounce    float64  `json:"bounce_penalty"`
	FinalScore    float64  `json:"final_score"`
}

// SearchResponse is the response for a search request. Total counts the candidates
// that passed the filter; Results holds at most the requested limit of them.
// Candidates is the number of distinct products retrieved before filtering.
type SearchResponse struct {
	Results    []*SearchResult `json:"results"`
	Total      int             `json:"total"`
	Candidates int             `json:"candidates"`
	Intent     *QueryIntent    `json:"intent,omitempty"`
	QueryTime  int64           `json:"query_time_ms"`
	Query      string          `json:"query"`
}
