// Package search runs the retrieve, filter and re-rank pipeline behind product search.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/shelfrank/internal/config"
	"github.com/hyperjump/shelfrank/internal/embedding"
	"github.com/hyperjump/shelfrank/internal/intent"
	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/internal/ranking"
	"github.com/hyperjump/shelfrank/internal/storage"
	"github.com/hyperjump/shelfrank/internal/vector"
	"go.uber.org/zap"
)

// OverFetchFactor is how many nearest neighbors are retrieved per requested result,
// leaving room for the structured filter to discard candidates.
const OverFetchFactor = 5

// Engine answers product search queries.
type Engine struct {
	store       storage.ProductStore
	embedder    embedding.Embedder
	vectorIndex vector.VectorIndex
	extractor   *intent.Extractor
	config      *config.SearchConfig
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithExtractor replaces the default store-backed intent extractor.
func WithExtractor(x *intent.Extractor) EngineOption {
	return func(e *Engine) {
		e.extractor = x
	}
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	store storage.ProductStore,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	cfg *config.SearchConfig,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		store:       store,
		embedder:    embedder,
		vectorIndex: vectorIndex,
		config:      cfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.extractor == nil {
		e.extractor = intent.NewExtractor(store, intent.WithLogger(e.logger))
	}
	return e
}

// Search embeds the query, over-fetches nearest neighbors, narrows them with the
// constraints extracted from the query text and re-ranks the survivors with
// behavioral signals. A zero limit, no candidates, or none passing the filter, is an
// empty response rather than an error.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(query, e.config); err != nil {
		return nil, err
	}
	response := &models.SearchResponse{
		Results: []*models.SearchResult{},
		Query:   query.Query,
	}
	done := func() (*models.SearchResponse, error) {
		response.QueryTime = time.Since(startTime).Milliseconds()
		return response, nil
	}
	limit := query.ResultLimit()
	if limit == 0 {
		return done()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryVec, err := e.embedder.Embed(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits, err := e.vectorIndex.Search(ctx, queryVec, limit*OverFetchFactor)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	e.logger.Debug("candidates retrieved", zap.String("query", query.Query), zap.Int("count", len(hits)))
	if len(hits) == 0 {
		return done()
	}
	distances, ids := candidateDistances(hits)
	response.Candidates = len(ids)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in, err := e.extractor.Extract(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("intent extraction failed: %w", err)
	}
	response.Intent = in

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	products, err := e.store.QueryByIDs(ctx, ids, FilterFromIntent(in))
	if err != nil {
		return nil, fmt.Errorf("filter candidates failed: %w", err)
	}
	e.logger.Debug("candidates filtered", zap.Int("before", len(ids)), zap.Int("after", len(products)))
	if len(products) == 0 {
		return done()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counters, err := e.store.AllCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("load behavior counters failed: %w", err)
	}
	ranker := ranking.NewRanker(ranking.ComputeStats(counters))

	candidates := make([]ranking.Candidate, len(products))
	for i, p := range products {
		candidates[i] = ranking.Candidate{Product: p, Distance: distances[p.ProductID]}
	}
	ranked := ranker.Rank(candidates)
	response.Total = len(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	for i, r := range ranked {
		s := r.Score.Rounded()
		response.Results = append(response.Results, &models.SearchResult{
			Product:       r.Product,
			Rank:          i + 1,
			SemanticScore: s.Semantic,
			NormClick:     s.NormClick,
			NormCart:      s.NormCart,
			NormBuy:       s.NormBuy,
			NormBounce:    s.NormBounce,
			FinalScore:    s.Final,
		})
	}
	return done()
}

// VectorIndexSize returns the number of vectors in the index.
func (e *Engine) VectorIndexSize() int {
	return e.vectorIndex.Size()
}

// VectorIndexType returns the index implementation in use.
func (e *Engine) VectorIndexType() string {
	return e.vectorIndex.Type()
}
