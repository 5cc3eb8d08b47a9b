package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/shelfrank/internal/config"
	"github.com/hyperjump/shelfrank/internal/events"
	"github.com/hyperjump/shelfrank/internal/ingest"
	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/internal/storage"
	"go.uber.org/zap"
)

const maxUploadBytes = 64 << 20

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrEmptyQuery),
		errors.Is(err, models.ErrInvalidLimit),
		errors.Is(err, events.ErrProductIDRequired),
		errors.Is(err, events.ErrUnknownEventType),
		errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrMissingColumn):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, events.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if r.Method == http.MethodGet {
		query.Query = r.URL.Query().Get("query")
		if query.Query == "" {
			query.Query = r.URL.Query().Get("q")
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				s.respondError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			query.Limit = models.LimitOf(limit)
		}
	} else if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.ResultLimit()))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingester == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion not enabled")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := header.Filename
	if f := r.FormValue("format"); f != "" {
		name = "upload." + f
	}
	format, err := ingest.FormatFromPath(name)
	if err != nil {
		s.fail(w, "ingest rejected", err)
		return
	}
	s.logger.Info("ingest request", zap.String("filename", header.Filename), zap.Int64("size", header.Size))
	res, err := s.ingester.IngestReader(r.Context(), file, format)
	if err != nil {
		s.fail(w, "ingest failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.store.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get product failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.respondError(w, http.StatusNotImplemented, "event capture not enabled")
		return
	}
	var ev models.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	queued, err := s.events.Publish(r.Context(), &models.Event{
		Type:      ev.Type,
		Query:     ev.Query,
		ProductID: ev.ProductID,
	})
	if err != nil {
		s.fail(w, "publish event failed", err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]any{
		"id":     queued.ID,
		"status": "queued",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusConfig is the configuration echoed by the status endpoint.
type StatusConfig struct {
	VectorIndexType     string `json:"vector_index_type"`
	EmbeddingDimensions int    `json:"embedding_dimensions,omitempty"`
	DefaultLimit        int    `json:"default_limit,omitempty"`
	MaxLimit            int    `json:"max_limit,omitempty"`
	DatabasePath        string `json:"database_path,omitempty"`
	VectorIndexPath     string `json:"vector_index_path,omitempty"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Products        int64        `json:"products"`
	Events          int64        `json:"events"`
	PendingEvents   int          `json:"pending_events"`
	VectorIndexSize int          `json:"vector_index_size"`
	DiskUsageBytes  int64        `json:"disk_usage_bytes,omitempty"`
	Config          StatusConfig `json:"config"`
}

// CollectStatus gathers catalog and index figures. pending may be nil and appConfig,
// when set, adds configuration and disk usage.
func CollectStatus(ctx context.Context, store storage.ProductStore, engine Searcher, pending EventPublisher, appConfig *config.Config) (*StatusResponse, error) {
	products, err := store.CountProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	eventCount, err := store.CountEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	resp := &StatusResponse{
		Products:        products,
		Events:          eventCount,
		VectorIndexSize: engine.VectorIndexSize(),
		Config:          StatusConfig{VectorIndexType: engine.VectorIndexType()},
	}
	if pending != nil {
		resp.PendingEvents = pending.Len()
	}
	if cfg := appConfig; cfg != nil {
		resp.Config.EmbeddingDimensions = cfg.Embedding.Dimensions
		resp.Config.DefaultLimit = cfg.Search.DefaultLimit
		resp.Config.MaxLimit = cfg.Search.MaxLimit
		resp.Config.DatabasePath = cfg.Storage.DatabasePath
		resp.Config.VectorIndexPath = cfg.Storage.VectorIndexPath
		paths := storage.StoragePaths(cfg.Storage.DatabasePath, cfg.Storage.VectorIndexPath)
		if n, err := storage.DiskUsageBytes(paths...); err == nil {
			resp.DiskUsageBytes = n
		}
	}
	return resp, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := CollectStatus(r.Context(), s.store, s.engine, s.events, s.appConfig)
	if err != nil {
		s.fail(w, "status failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.fail(w, "watch add directory failed", err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.fail(w, "watch remove directory failed", err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories writes the current roots back to the config file, if any.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.appConfig == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.appConfig.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.appConfig); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
