// Package intent extracts structured shopping constraints (price, size, color, brand,
// rating) from free-text queries.
package intent

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/shelfrank/internal/models"
	"go.uber.org/zap"
)

// Colors is the closed set of recognized color words.
var Colors = []string{"black", "white", "blue", "red", "grey"}

// A price token: digits with an optional fraction and "k" suffix. The price grammar
// does not look at what follows, so "over 4 stars" reads 4 as a lower price bound.
const priceNumber = `(\d+\.?\d*k?)`

var (
	betweenRe = regexp.MustCompile(`\bbetween\s+` + priceNumber + `\s+and\s+` + priceNumber)
	underRe   = regexp.MustCompile(`\b(?:under|below|less than)\s+` + priceNumber)
	overRe    = regexp.MustCompile(`\b(?:above|over|more than)\s+` + priceNumber)

	sizeRe = regexp.MustCompile(`\bsize(?:\s+|\s*[:=]\s*)(\w+)`)

	ratingAboveRe = regexp.MustCompile(`\b(?:above|over|more than)\s+(\d(?:\.\d)?)\s*(?:star|rating)`)
	ratingRe      = regexp.MustCompile(`\b(\d(?:\.\d)?)\s*(?:star|rating)`)
)

// BrandLister supplies the brand vocabulary currently present in the catalog.
type BrandLister interface {
	DistinctBrands(ctx context.Context) ([]string, error)
}

// Extractor turns a query into a QueryIntent. It is safe for concurrent use.
type Extractor struct {
	brands BrandLister
	logger *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets the logger for the extractor.
func WithLogger(logger *zap.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an Extractor. brands may be nil, in which case no brand is extracted.
func NewExtractor(brands BrandLister, opts ...ExtractorOption) *Extractor {
	e := &Extractor{brands: brands, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs every sub-extractor on the lower-cased query. Patterns that do not
// match leave their field nil. Only the brand lookup can fail.
func (e *Extractor) Extract(ctx context.Context, query string) (*models.QueryIntent, error) {
	q := strings.ToLower(query)
	intent := &models.QueryIntent{}

	intent.MinPrice, intent.MaxPrice = ExtractPriceRange(q)
	intent.Size = ExtractSize(q)
	intent.Color = ExtractColor(q)
	intent.MinRating = ExtractRating(q)

	if e.brands != nil {
		brands, err := e.brands.DistinctBrands(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list brands: %w", err)
		}
		intent.Brand = MatchBrand(q, brands)
	}

	e.logger.Debug("intent extracted",
		zap.String("query", query),
		zap.Any("intent", intent),
	)
	return intent, nil
}

// ExtractPriceRange recognizes, in priority order, "between A and B", "under|below|less
// than X" and "above|over|more than X". A malformed number leaves both bounds nil.
func ExtractPriceRange(q string) (minPrice, maxPrice *float64) {
	if m := betweenRe.FindStringSubmatch(q); m != nil {
		lo, okLo := ParseAmount(m[1])
		hi, okHi := ParseAmount(m[2])
		if !okLo || !okHi {
			return nil, nil
		}
		return &lo, &hi
	}
	if m := underRe.FindStringSubmatch(q); m != nil {
		if v, ok := ParseAmount(m[1]); ok {
			return nil, &v
		}
		return nil, nil
	}
	if m := overRe.FindStringSubmatch(q); m != nil {
		if v, ok := ParseAmount(m[1]); ok {
			return &v, nil
		}
	}
	return nil, nil
}

// ParseAmount converts a price token. A "k" suffix multiplies by 1000 and truncates
// to an integer; other tokens must be plain integers (a trailing period is dropped).
func ParseAmount(token string) (float64, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if strings.HasSuffix(token, "k") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(token, "k"), 64)
		if err != nil {
			return 0, false
		}
		return math.Trunc(f * 1000), true
	}
	n, err := strconv.Atoi(strings.TrimSuffix(token, "."))
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

// ExtractSize returns the token following "size".
func ExtractSize(q string) *string {
	m := sizeRe.FindStringSubmatch(q)
	if m == nil {
		return nil
	}
	return &m[1]
}

// ExtractColor returns the known color occurring leftmost in q.
func ExtractColor(q string) *string {
	best, bestAt := "", -1
	for _, c := range Colors {
		if at := strings.Index(q, c); at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = c, at
		}
	}
	if bestAt < 0 {
		return nil
	}
	return &best
}

// MatchBrand returns the lower-cased brand occurring in q. When several occur, the
// leftmost wins, then the longest, then the lexically smallest.
func MatchBrand(q string, brands []string) *string {
	type hit struct {
		brand string
		at    int
	}
	var hits []hit
	for _, b := range brands {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" {
			continue
		}
		if at := strings.Index(q, b); at >= 0 {
			hits = append(hits, hit{brand: b, at: at})
		}
	}
	if len(hits) == 0 {
		return nil
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].at != hits[j].at {
			return hits[i].at < hits[j].at
		}
		if len(hits[i].brand) != len(hits[j].brand) {
			return len(hits[i].brand) > len(hits[j].brand)
		}
		return hits[i].brand < hits[j].brand
	})
	return &hits[0].brand
}

// ExtractRating recognizes "above|over|more than D star|rating", else "D star|rating".
func ExtractRating(q string) *float64 {
	m := ratingAboveRe.FindStringSubmatch(q)
	if m == nil {
		m = ratingRe.FindStringSubmatch(q)
	}
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}
