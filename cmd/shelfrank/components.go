package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/shelfrank/internal/config"
	"github.com/hyperjump/shelfrank/internal/embedding"
	"github.com/hyperjump/shelfrank/internal/ingest"
	"github.com/hyperjump/shelfrank/internal/search"
	"github.com/hyperjump/shelfrank/internal/storage"
	"github.com/hyperjump/shelfrank/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Storage     *storage.SQLiteStorage
	Embedder    embedding.Embedder
	VectorIndex vector.VectorIndex
	Engine      *search.Engine
	Ingester    *ingest.Ingester

	indexPath string
	logger    *zap.Logger
}

// SaveIndex writes the vector index snapshot next to the database.
func (c *Components) SaveIndex() {
	if c.indexPath == "" || c.VectorIndex == nil {
		return
	}
	if err := c.VectorIndex.Save(c.indexPath); err != nil {
		c.logger.Warn("vector index save failed", zap.String("path", c.indexPath), zap.Error(err))
		return
	}
	c.logger.Debug("vector index saved", zap.String("path", c.indexPath), zap.Int("vectors", c.VectorIndex.Size()))
}

func (c *Components) Close() {
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// newEmbedder loads the ONNX model, falling back to the hashing embedder when the model
// or runtime is unavailable. Either way, results are cached.
func newEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) embedding.Embedder {
	var inner embedding.Embedder
	onnx, err := embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	if err != nil {
		logger.Warn("ONNX embedder unavailable, using hashing embedder",
			zap.String("model_path", cfg.ModelPath), zap.Error(err))
		inner = embedding.NewMockEmbedder(cfg.Dimensions)
	} else {
		inner = onnx
	}
	if cfg.CacheSize <= 0 {
		return inner
	}
	return embedding.NewCachedEmbedder(inner, cfg.CacheSize)
}

// indexFactory returns a constructor for empty indexes of the configured type. FAISS
// falls back to the memory index when it is not compiled in; unknown types are errors.
func indexFactory(cfg *config.Config, logger *zap.Logger) (func() (vector.VectorIndex, error), error) {
	indexType, err := vector.ParseIndexType(cfg.Vector.IndexType)
	if err != nil {
		return nil, err
	}
	if indexType == vector.IndexTypeFAISS && !vector.IsFAISSAvailable() {
		logger.Warn("FAISS not available, falling back to memory index",
			zap.String("requested_type", cfg.Vector.IndexType))
		indexType = vector.IndexTypeMemory
	}
	return func() (vector.VectorIndex, error) {
		return vector.NewVectorIndex(string(indexType), cfg.Embedding.Dimensions)
	}, nil
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{
		Storage:   store,
		indexPath: cfg.Storage.VectorIndexPath,
		logger:    logger,
	}
	newIndex, err := indexFactory(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Embedder = newEmbedder(&cfg.Embedding, logger)

	c.VectorIndex, err = ingest.LoadOrRebuild(ctx, store, newIndex, cfg.Storage.VectorIndexPath, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Info("vector index initialized",
		zap.String("type", c.VectorIndex.Type()),
		zap.Int("vectors", c.VectorIndex.Size()),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()),
	)

	c.Engine = search.NewEngine(store, c.Embedder, c.VectorIndex, &cfg.Search, search.WithLogger(logger))
	c.Ingester = ingest.NewIngester(store, c.Embedder, c.VectorIndex, &cfg.Ingest, ingest.WithLogger(logger))
	return c, nil
}
