// Package storage persists the product catalog, behavioral counters and the event log.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/hyperjump/shelfrank/internal/models"
)

// ErrProductNotFound is returned when a product ID is not in the catalog.
var ErrProductNotFound = errors.New("product not found")

// ProductFilter is a conjunction of structured constraints. Nil fields do not constrain.
// Text fields compare with Unicode case folding; price bounds and MinRating are inclusive.
type ProductFilter struct {
	// Brand matches as a case-insensitive substring of the product brand.
	Brand *string
	// Color matches as a case-insensitive substring of the product color.
	Color *string
	// Size is a case-insensitive exact match: "m" selects "M" but "1" does not
	// select "10".
	Size      *string
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
}

// IsEmpty reports whether the filter constrains nothing.
func (f ProductFilter) IsEmpty() bool {
	return f.Brand == nil && f.Color == nil && f.Size == nil &&
		f.MinPrice == nil && f.MaxPrice == nil && f.MinRating == nil
}

// matchesText reports whether p satisfies the Brand, Color and Size constraints.
// Folding happens in Go because SQLite's lower() only folds ASCII.
func (f ProductFilter) matchesText(p *models.Product) bool {
	if f.Brand != nil && !strings.Contains(strings.ToLower(p.Brand), strings.ToLower(*f.Brand)) {
		return false
	}
	if f.Color != nil && !strings.Contains(strings.ToLower(p.Color), strings.ToLower(*f.Color)) {
		return false
	}
	if f.Size != nil && !strings.EqualFold(p.Size, *f.Size) {
		return false
	}
	return true
}

// ProductStore is the catalog backing search, ingestion and event capture.
type ProductStore interface {
	// Catalog
	CreateProducts(ctx context.Context, products []*models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	CountProducts(ctx context.Context) (int64, error)
	ScanEmbeddings(ctx context.Context, fn func(id string, embedding []float32) error) error

	// Retrieval
	QueryByIDs(ctx context.Context, ids []string, filter ProductFilter) ([]*models.Product, error)
	DistinctBrands(ctx context.Context) ([]string, error)
	AllCounters(ctx context.Context) ([]models.Counters, error)

	// Behavior
	ApplyEvent(ctx context.Context, ev *models.Event) error
	CountEvents(ctx context.Context) (int64, error)

	Close() error
}
