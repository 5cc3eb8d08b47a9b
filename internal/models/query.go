package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyQuery is returned when a search query has no text.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrInvalidLimit is returned for negative result limits.
	ErrInvalidLimit = errors.New("limit must not be negative")
)

const (
	// DefaultLimit is the number of results returned when no limit is given.
	DefaultLimit = 10
	// MaxLimit caps the number of results per search.
	MaxLimit = 100
)

// SearchQuery represents a product search request. A nil Limit means the default;
// an explicit 0 asks for no results.
type SearchQuery struct {
	Query string `json:"query"`
	Limit *int   `json:"limit,omitempty"`
}

// LimitOf returns a limit for SearchQuery.Limit.
func LimitOf(n int) *int { return &n }

// ResultLimit returns the requested number of results, DefaultLimit when unset.
func (q *SearchQuery) ResultLimit() int {
	if q.Limit == nil {
		return DefaultLimit
	}
	return *q.Limit
}

// Validate ensures the search query has text and normalizes the limit: nil becomes
// DefaultLimit and values above maxLimit are capped. maxLimit <= 0 falls back to MaxLimit.
func (q *SearchQuery) Validate(maxLimit int) error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrEmptyQuery
	}
	if q.Limit != nil && *q.Limit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, *q.Limit)
	}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	q.Limit = LimitOf(min(q.ResultLimit(), maxLimit))
	return nil
}
