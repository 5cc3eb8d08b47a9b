// Package vector provides the append-only embedding index used for nearest-neighbor retrieval.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrCorruptSnapshot is returned when a persisted index file has an impossible header.
var ErrCorruptSnapshot = errors.New("corrupt index snapshot")

// VectorIndex stores embeddings by insertion position and searches them by squared L2 distance.
// Entries are append-only: a position, once assigned, always maps to the same product ID.
type VectorIndex interface {
	Add(ctx context.Context, id string, vector []float32) error
	AddBatch(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ID       string
	Distance float64 // squared L2 distance to the query
	Position int
}
