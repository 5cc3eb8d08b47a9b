package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/shelfrank/internal/config"
	"github.com/hyperjump/shelfrank/internal/events"
	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/internal/server"
	"github.com/hyperjump/shelfrank/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"red shoes under 50", "-limit", "5"},
			expected: []string{"-limit", "5", "red shoes under 50"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "5", "red shoes under 50"},
			expected: []string{"-limit", "5", "red shoes under 50"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"red shoes under 50"},
			expected: []string{"red shoes under 50"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"black", "hoodie", "-output", "json"},
			expected: []string{"-output", "json", "black", "hoodie"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, searchArgsReorder(tt.args))
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"sneakers"}, "sneakers"},
		{"multiple words", []string{"red", "sneakers"}, "red sneakers"},
		{"single quoted phrase", []string{"red sneakers"}, "red sneakers"},
		{"with constraints", []string{"nike", "hoodie", "under", "60"}, "nike hoodie under 60"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
		{"one space", []string{" "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildSearchQuery(tt.args))
		})
	}
}

func TestSearchConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		defaultPath string
		want        string
	}{
		{"no config flag", []string{"-limit", "5", "query"}, "/default.yaml", "/default.yaml"},
		{"-config present", []string{"-config", "/custom.yaml", "query"}, "/default.yaml", "/custom.yaml"},
		{"--config present", []string{"--config", "/other.yaml"}, "/default.yaml", "/other.yaml"},
		{"config at end", []string{"query", "-config", "/end.yaml"}, "/default.yaml", "/end.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, searchConfigPathFromArgs(tt.args, tt.defaultPath))
		})
	}
}

func TestSearchLimitDefaultFromConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
search:
  default_limit: 25
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	assert.Equal(t, 25, searchLimitDefaultFromConfig(configPath))
	assert.Equal(t, models.DefaultLimit, searchLimitDefaultFromConfig(filepath.Join(dir, "nonexistent.yaml")))
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./products.db"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	origWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(origWd) }()
	require.NoError(t, os.Chdir(dir))

	cfg, resolved, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	assert.Equal(t, configPathCanon, resolvedCanon)
	assert.True(t, cfg.Debug, "debug should be true from cwd config.yaml")
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./products.db"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, resolved, err := loadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, resolved)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "products.db"), cfg.Storage.DatabasePath, "database path should sit next to the config")
}

func TestParseEventArgs(t *testing.T) {
	ev, serverURL, configPath, err := parseEventArgs([]string{"-product", " P1 ", "-query", "red shoes", "CLICK"})
	require.NoError(t, err)
	assert.Equal(t, models.EventClick, ev.Type)
	assert.Equal(t, "P1", ev.ProductID)
	assert.Equal(t, "red shoes", ev.Query)
	assert.Equal(t, defaultServerURL, serverURL)
	assert.Equal(t, defaultConfigPath, configPath)

	ev, serverURL, _, err = parseEventArgs([]string{"-server", "", "-query", "jackets", "search"})
	require.NoError(t, err)
	assert.Equal(t, models.EventSearch, ev.Type)
	assert.Empty(t, serverURL)

	_, _, _, err = parseEventArgs([]string{"purchase"})
	assert.True(t, errors.Is(err, events.ErrProductIDRequired))

	_, _, _, err = parseEventArgs([]string{"-product", "P1", "bounce"})
	assert.True(t, errors.Is(err, events.ErrUnknownEventType))

	_, _, _, err = parseEventArgs(nil)
	assert.Error(t, err)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "query cannot be empty", errorMessage(strings.NewReader(`{"error":"query cannot be empty"}`)))
	assert.Equal(t, "bad gateway", errorMessage(strings.NewReader("bad gateway\n")))
}

func TestWriteStatusText(t *testing.T) {
	var buf bytes.Buffer
	writeStatusText(&buf, &server.StatusResponse{
		Products:        3,
		Events:          7,
		PendingEvents:   1,
		VectorIndexSize: 3,
		Config:          server.StatusConfig{VectorIndexType: "memory", EmbeddingDimensions: 16},
	})
	out := buf.String()
	assert.Contains(t, out, "products:           3")
	assert.Contains(t, out, "events:             7")
	assert.Contains(t, out, "pending_events:     1")
	assert.Contains(t, out, "vector_index_type:  memory")
	assert.Contains(t, out, "embedding_dims:     16")
	assert.NotContains(t, out, "disk_usage_bytes")
}

const testCatalog = `product_id,title,description,category,brand,price,size,color,rating
P1,Red Runner,Light running shoe,shoes,Nike,2500,9,red,4.5
P2,Red Racer,Racing shoe,shoes,Nike,3500,9,red,4.8
P3,Blue Walker,Walking shoe,shoes,Adidas,1800,10,blue,4.1
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "products.db")
	cfg.Storage.VectorIndexPath = filepath.Join(dir, "products.vec")
	cfg.Embedding.ModelPath = filepath.Join(dir, "missing.onnx")
	cfg.Embedding.Dimensions = 16
	return cfg
}

func TestClientAgainstServer(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	components, err := initializeComponents(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer components.Close()
	assert.Equal(t, 16, components.Embedder.Dimensions())

	queue := events.NewQueue(8)
	defer queue.Close()
	srv := server.NewServer(components.Engine, components.Storage, components.Ingester, queue, &cfg.Server, zap.NewNop(),
		server.WithAppConfig(cfg))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client := newAPIClient(ts.URL + "/")

	catalogPath := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0600))
	res, err := client.Ingest(ctx, catalogPath)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Read)
	assert.Equal(t, 3, res.Ingested)

	response, err := client.Search(ctx, &models.SearchQuery{Query: "red running shoes", Limit: models.LimitOf(5)})
	require.NoError(t, err)
	require.NotEmpty(t, response.Results)
	for _, r := range response.Results {
		assert.Equal(t, "red", r.Product.Color)
	}

	_, err = client.Search(ctx, &models.SearchQuery{Query: "   "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	id, err := client.PublishEvent(ctx, &models.Event{Type: models.EventClick, ProductID: "P1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = client.PublishEvent(ctx, &models.Event{Type: models.EventPurchase})
	assert.Error(t, err)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.Products)
	assert.Equal(t, 1, status.PendingEvents)
	assert.Equal(t, 3, status.VectorIndexSize)
	assert.Equal(t, 16, status.Config.EmbeddingDimensions)

	_, err = client.WatchDirectories(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch not enabled")
}

func TestComponentsIndexSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	catalogPath := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0600))

	components, err := initializeComponents(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	_, err = components.Ingester.IngestFile(ctx, catalogPath)
	require.NoError(t, err)
	components.SaveIndex()
	components.Close()

	_, err = os.Stat(cfg.Storage.VectorIndexPath)
	require.NoError(t, err)

	reopened, err := initializeComponents(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 3, reopened.VectorIndex.Size())

	status, err := server.CollectStatus(ctx, reopened.Storage, reopened.Engine, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.Products)
	assert.Equal(t, 0, status.PendingEvents)
	assert.Positive(t, status.DiskUsageBytes)
}

func TestComponentsRebuildWithoutSnapshot(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	catalogPath := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0600))

	components, err := initializeComponents(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	_, err = components.Ingester.IngestFile(ctx, catalogPath)
	require.NoError(t, err)
	components.Close()

	reopened, err := initializeComponents(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 3, reopened.VectorIndex.Size())
}

func TestInitializeComponentsRejectsUnknownIndexType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vector.IndexType = "annoy"
	_, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, vector.ErrUnknownIndexType))
}
