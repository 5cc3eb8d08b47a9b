package ingest

import (
	"context"
	"fmt"

	"github.com/hyperjump/shelfrank/internal/storage"
	"github.com/hyperjump/shelfrank/internal/vector"
	"go.uber.org/zap"
)

const rebuildBatch = 1000

// NeedsRebuild reports whether idx is out of step with the catalog.
func NeedsRebuild(ctx context.Context, store storage.ProductStore, idx vector.VectorIndex) (bool, error) {
	count, err := store.CountProducts(ctx)
	if err != nil {
		return false, err
	}
	return int64(idx.Size()) != count, nil
}

// Rebuild fills an empty index from the stored embeddings in catalog insertion order.
// It returns the number of vectors added.
func Rebuild(ctx context.Context, store storage.ProductStore, idx vector.VectorIndex) (int, error) {
	if idx.Size() != 0 {
		return 0, fmt.Errorf("rebuild needs an empty index, got %d vectors", idx.Size())
	}
	ids := make([]string, 0, rebuildBatch)
	vecs := make([][]float32, 0, rebuildBatch)
	added := 0
	flush := func() error {
		if len(ids) == 0 {
			return nil
		}
		if err := idx.AddBatch(ctx, ids, vecs); err != nil {
			return err
		}
		added += len(ids)
		ids, vecs = ids[:0], vecs[:0]
		return nil
	}
	err := store.ScanEmbeddings(ctx, func(id string, emb []float32) error {
		ids = append(ids, id)
		vecs = append(vecs, emb)
		if len(ids) == rebuildBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return added, fmt.Errorf("scan embeddings: %w", err)
	}
	if err := flush(); err != nil {
		return added, err
	}
	return added, nil
}

// LoadOrRebuild opens the index snapshot at path and falls back to a rebuild from the
// catalog when the snapshot is missing, unreadable or stale. newIndex must return an
// empty index each time it is called.
func LoadOrRebuild(
	ctx context.Context,
	store storage.ProductStore,
	newIndex func() (vector.VectorIndex, error),
	path string,
	logger *zap.Logger,
) (vector.VectorIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx, err := newIndex()
	if err != nil {
		return nil, err
	}
	if err := idx.Load(path); err != nil {
		logger.Warn("vector index snapshot unreadable, rebuilding", zap.String("path", path), zap.Error(err))
		idx.Close()
		if idx, err = newIndex(); err != nil {
			return nil, err
		}
	}
	stale, err := NeedsRebuild(ctx, store, idx)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("count products: %w", err)
	}
	if !stale {
		return idx, nil
	}
	if idx.Size() > 0 {
		logger.Info("vector index out of date, rebuilding", zap.Int("index_size", idx.Size()))
		idx.Close()
		if idx, err = newIndex(); err != nil {
			return nil, err
		}
	}
	n, err := Rebuild(ctx, store, idx)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("rebuild vector index: %w", err)
	}
	logger.Info("vector index rebuilt", zap.Int("vectors", n))
	return idx, nil
}
