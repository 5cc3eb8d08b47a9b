// Package server provides the HTTP API for shelfrank.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/shelfrank/internal/config"
	"github.com/hyperjump/shelfrank/internal/ingest"
	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/internal/search"
	"github.com/hyperjump/shelfrank/internal/storage"
	"go.uber.org/zap"
)

// Searcher answers product searches.
type Searcher interface {
	Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error)
	VectorIndexSize() int
	VectorIndexType() string
}

// CatalogIngester loads uploaded catalogs.
type CatalogIngester interface {
	IngestReader(ctx context.Context, r io.Reader, format ingest.Format) (*ingest.Result, error)
}

// EventPublisher accepts behavioral events for asynchronous processing.
type EventPublisher interface {
	Publish(ctx context.Context, ev *models.Event) (*models.Event, error)
	Len() int
}

// WatchService manages catalog drop directories.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

var _ Searcher = (*search.Engine)(nil)

// Server is the HTTP server for the shelfrank API.
type Server struct {
	engine   Searcher
	store    storage.ProductStore
	ingester CatalogIngester
	events   EventPublisher
	config   *config.ServerConfig
	logger   *zap.Logger
	router   chi.Router
	server   *http.Server

	watch      WatchService
	appConfig  *config.Config
	configPath string
	configMu   sync.Mutex
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWatch enables the watch directory endpoints. When configPath is set, directory
// changes are written back to the config file.
func WithWatch(watch WatchService, configPath string, appConfig *config.Config) ServerOption {
	return func(s *Server) {
		s.watch = watch
		s.configPath = configPath
		s.appConfig = appConfig
	}
}

// WithAppConfig exposes the full configuration on the status endpoint.
func WithAppConfig(appConfig *config.Config) ServerOption {
	return func(s *Server) { s.appConfig = appConfig }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine Searcher,
	store storage.ProductStore,
	ingester CatalogIngester,
	events EventPublisher,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	opts ...ServerOption,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:   engine,
		store:    store,
		ingester: ingester,
		events:   events,
		config:   cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.config != nil && s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.With(middleware.Compress(5)).Get("/search", s.handleSearch)
		r.With(middleware.Compress(5)).Post("/search", s.handleSearch)
		r.Post("/ingest", s.handleIngest)
		r.Get("/products/{id}", s.handleGetProduct)
		r.Post("/events", s.handleEvent)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops. A graceful Stop is not an error.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
