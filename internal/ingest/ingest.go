// Package ingest loads product catalogs into the store and the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hyperjump/shelfrank/internal/config"
	"github.com/hyperjump/shelfrank/internal/embedding"
	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/internal/storage"
	"github.com/hyperjump/shelfrank/internal/vector"
	"github.com/hyperjump/shelfrank/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result summarizes one ingestion run.
type Result struct {
	Read     int `json:"read"`
	Ingested int `json:"ingested"`
	Skipped  int `json:"skipped"`
}

// Ingester writes new products to the store and appends their embeddings to the index.
// Runs are serialized so duplicate detection sees every earlier run.
type Ingester struct {
	store    storage.ProductStore
	embedder embedding.Embedder
	index    vector.VectorIndex
	config   *config.IngestConfig
	logger   *zap.Logger

	mu sync.Mutex
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithLogger sets the logger for the ingester.
func WithLogger(l *zap.Logger) IngesterOption {
	return func(in *Ingester) { in.logger = utils.OrNop(l) }
}

// NewIngester creates an ingester. A nil cfg uses the default batch size and worker count.
func NewIngester(
	store storage.ProductStore,
	embedder embedding.Embedder,
	index vector.VectorIndex,
	cfg *config.IngestConfig,
	opts ...IngesterOption,
) *Ingester {
	if cfg == nil {
		cfg = &config.IngestConfig{}
	}
	in := &Ingester{
		store:    store,
		embedder: embedder,
		index:    index,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

func (in *Ingester) batchSize() int {
	if in.config.BatchSize > 0 {
		return in.config.BatchSize
	}
	return config.DefaultBatchSize
}

func (in *Ingester) workers() int {
	if in.config.Workers > 0 {
		return in.config.Workers
	}
	return 1
}

// IngestFile ingests a .csv or .xlsx catalog from disk.
func (in *Ingester) IngestFile(ctx context.Context, path string) (*Result, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	in.logger.Debug("ingesting catalog file", zap.String("path", path))
	return in.IngestReader(ctx, f, format)
}

// IngestReader reads a catalog in batches. Products whose ID is already stored, or
// was already seen earlier in this upload, are skipped. Rows that cannot be parsed
// are logged and skipped. A batch is stored before its vectors are indexed, so an
// index failure leaves products that a rebuild will pick up.
func (in *Ingester) IngestReader(ctx context.Context, r io.Reader, format Format) (*Result, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	src, err := openSource(r, format)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	header, err := src.Next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty catalog", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := newColumnMap(header)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	seen := make(map[string]bool)
	batch := make([]*models.Product, 0, in.batchSize())
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		record, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return res, fmt.Errorf("read row %d: %w", line, err)
		}
		p, err := cols.product(record)
		if err != nil {
			res.Read++
			res.Skipped++
			in.logger.Warn("skipping catalog row", zap.Int("row", line), zap.Error(err))
			continue
		}
		if p == nil {
			continue
		}
		res.Read++
		if seen[p.ProductID] {
			res.Skipped++
			continue
		}
		seen[p.ProductID] = true
		batch = append(batch, p)
		if len(batch) == in.batchSize() {
			if err := in.ingestBatch(ctx, batch, res); err != nil {
				return res, err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := in.ingestBatch(ctx, batch, res); err != nil {
			return res, err
		}
	}
	in.logger.Info("catalog ingested",
		zap.Int("read", res.Read),
		zap.Int("ingested", res.Ingested),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (in *Ingester) ingestBatch(ctx context.Context, batch []*models.Product, res *Result) error {
	ids := make([]string, len(batch))
	for i, p := range batch {
		ids[i] = p.ProductID
	}
	existing, err := in.store.ExistingIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("check existing products: %w", err)
	}
	fresh := make([]*models.Product, 0, len(batch))
	for _, p := range batch {
		if existing[p.ProductID] {
			res.Skipped++
			continue
		}
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return nil
	}

	vectors, err := in.embed(ctx, fresh)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	freshIDs := make([]string, len(fresh))
	for i, p := range fresh {
		p.Embedding = vectors[i]
		freshIDs[i] = p.ProductID
	}
	if err := in.store.CreateProducts(ctx, fresh); err != nil {
		return fmt.Errorf("failed to store products: %w", err)
	}
	if err := in.index.AddBatch(ctx, freshIDs, vectors); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	res.Ingested += len(fresh)
	in.logger.Debug("catalog batch ingested", zap.Int("products", len(fresh)))
	return nil
}

// embed splits products across workers; vectors come back in product order.
func (in *Ingester) embed(ctx context.Context, products []*models.Product) ([][]float32, error) {
	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = utils.CollapseSpaces(p.EmbeddingText())
	}
	vectors := make([][]float32, len(texts))
	workers := in.workers()
	chunk := (len(texts) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(texts); start += chunk {
		end := min(start+chunk, len(texts))
		g.Go(func() error {
			out, err := in.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(out) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(out), end-start)
			}
			copy(vectors[start:end], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
