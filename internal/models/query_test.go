package models

import (
	"errors"
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name      string
		query     *SearchQuery
		maxLimit  int
		wantErr   error
		wantLimit int
	}{
		{"empty query", &SearchQuery{Query: ""}, 0, ErrEmptyQuery, 0},
		{"blank query", &SearchQuery{Query: "   "}, 0, ErrEmptyQuery, 0},
		{"negative limit", &SearchQuery{Query: "shoes", Limit: LimitOf(-1)}, 0, ErrInvalidLimit, 0},
		{"sets default limit", &SearchQuery{Query: "shoes"}, 0, nil, DefaultLimit},
		{"keeps explicit limit", &SearchQuery{Query: "shoes", Limit: LimitOf(3)}, 0, nil, 3},
		{"keeps explicit zero", &SearchQuery{Query: "shoes", Limit: LimitOf(0)}, 0, nil, 0},
		{"caps limit at max", &SearchQuery{Query: "x", Limit: LimitOf(200)}, 0, nil, MaxLimit},
		{"caps limit at configured max", &SearchQuery{Query: "x", Limit: LimitOf(60)}, 50, nil, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(tt.maxLimit)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if got := tt.query.ResultLimit(); got != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", got, tt.wantLimit)
			}
		})
	}
}

func TestSearchQuery_Validate_DoesNotAliasCallerLimit(t *testing.T) {
	n := 500
	q := &SearchQuery{Query: "x", Limit: &n}
	if err := q.Validate(20); err != nil {
		t.Fatal(err)
	}
	if n != 500 || q.ResultLimit() != 20 {
		t.Errorf("caller limit = %d, query limit = %d", n, q.ResultLimit())
	}
}

func TestQueryIntent_IsEmpty(t *testing.T) {
	var nilIntent *QueryIntent
	if !nilIntent.IsEmpty() {
		t.Error("nil intent should be empty")
	}
	if !(&QueryIntent{}).IsEmpty() {
		t.Error("zero intent should be empty")
	}
	red := "red"
	if (&QueryIntent{Color: &red}).IsEmpty() {
		t.Error("intent with color should not be empty")
	}
}
