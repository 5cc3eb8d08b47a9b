// Package main is the shelfrank CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/shelfrank/internal/cli"
	"github.com/hyperjump/shelfrank/internal/config"
	"github.com/hyperjump/shelfrank/internal/events"
	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/internal/server"
	"github.com/hyperjump/shelfrank/internal/storage"
	"github.com/hyperjump/shelfrank/internal/watcher"
	"github.com/hyperjump/shelfrank/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shelfrank/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory so that "shelfrank server" from a project dir
// uses that project's config. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// mustLoad loads the config and builds a logger, exiting on failure.
func mustLoad(path string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "ingest":
		runIngest()
	case "event":
		runEvent()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("shelfrank version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (events, ingestion, watcher activity)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := mustLoad(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	queue := events.NewQueue(cfg.Events.BufferSize)
	consumer, err := events.NewConsumer(queue, components.Storage, cfg.Events.Workers, events.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to start event consumer", zap.Error(err))
	}
	consumerDone := make(chan error, 1)
	go func() { consumerDone <- consumer.Run(ctx) }()

	ingester := components.Ingester
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		watcher.HandlerFunc(func(ctx context.Context, path string) error {
			res, err := ingester.IngestFile(ctx, path)
			if err != nil {
				return err
			}
			logger.Info("catalog file ingested",
				zap.String("path", path),
				zap.Int("read", res.Read),
				zap.Int("ingested", res.Ingested),
				zap.Int("skipped", res.Skipped),
			)
			return nil
		}),
		watcher.WithLogger(logger),
	)
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Engine,
		components.Storage,
		ingester,
		queue,
		&cfg.Server,
		logger,
		server.WithWatch(watchSvc, resolvedConfigPath, cfg),
	)
	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	logger.Info("Shutting down...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}
	watchSvc.Stop()

	// Buffered events are applied before the store closes.
	queue.Close()
	select {
	case err := <-consumerDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("event consumer stopped", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Warn("event consumer did not drain in time", zap.Int("pending", queue.Len()))
		cancel()
	}
	consumer.Close()
	logger.Info("events processed",
		zap.Int64("applied", consumer.Applied()),
		zap.Int64("dropped", consumer.Dropped()),
	)
	cancel()
	components.SaveIndex()
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: shelfrank search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Constraints written in the query narrow the results:
  colors and brands from the catalog, "size M", "under 50", "between 20 and 40", "4+ stars".

Examples:
  shelfrank search red running shoes under 80
  shelfrank search "nike hoodie size L"          # same as without quotes
  shelfrank search --output json black jacket     # structured JSON
  shelfrank search --server "" --limit 20 summer dress
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. The flag package stops at
// the first non-flag argument, so "shelfrank search shoes -limit 5" would otherwise
// leave -limit unparsed.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// searchLimitDefaultFromConfig returns the configured default limit, or models.DefaultLimit
// when the config cannot be loaded.
func searchLimitDefaultFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil || cfg.Search.DefaultLimit <= 0 {
		return models.DefaultLimit
	}
	return cfg.Search.DefaultLimit
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	configPath := searchConfigPathFromArgs(searchArgs, defaultConfigPath)

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = search the local database directly)")
	limit := fs.Int("limit", searchLimitDefaultFromConfig(configPath), "number of results")
	outputFormat := fs.String("output", "text", "output format: text (score breakdown), compact (one result per line), or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	searchQuery := &models.SearchQuery{Query: queryStr, Limit: models.LimitOf(*limit)}
	ctx := context.Background()

	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = newAPIClient(*serverURL).Search(ctx, searchQuery)
	} else {
		cfg, _, logger := mustLoad(*configPathFlag, false)
		defer logger.Sync()
		components, initErr := initializeComponents(ctx, cfg, logger)
		if initErr != nil {
			fatalf("Failed to initialize: %v", initErr)
		}
		defer components.Close()
		response, err = components.Engine.Search(ctx, searchQuery)
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = write to the local database directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: shelfrank ingest [flags] <catalog.csv|catalog.xlsx>...")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	ctx := context.Background()

	if *serverURL != "" {
		client := newAPIClient(*serverURL)
		for _, path := range fs.Args() {
			res, err := client.Ingest(ctx, path)
			if err != nil {
				fatalf("Ingest %s failed: %v", path, err)
			}
			_ = cli.WriteIngestResult(os.Stdout, path, res, format)
		}
		return
	}

	cfg, _, logger := mustLoad(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()
	failed := false
	for _, path := range fs.Args() {
		res, err := components.Ingester.IngestFile(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest %s failed: %v\n", path, err)
			failed = true
			continue
		}
		_ = cli.WriteIngestResult(os.Stdout, path, res, format)
	}
	components.SaveIndex()
	if failed {
		os.Exit(1)
	}
}

// parseEventArgs builds an event from the event subcommand's flags.
func parseEventArgs(args []string) (*models.Event, string, string, error) {
	fs := flag.NewFlagSet("event", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = write to the local database directly)")
	productID := fs.String("product", "", "product id (required for click, add_to_cart, purchase)")
	query := fs.String("query", "", "query text that led to the event")
	if err := fs.Parse(args); err != nil {
		return nil, "", "", err
	}
	if fs.NArg() < 1 {
		return nil, "", "", errors.New("event type is required")
	}
	ev := &models.Event{
		Type:      models.EventType(strings.ToLower(fs.Arg(0))),
		ProductID: strings.TrimSpace(*productID),
		Query:     *query,
	}
	if err := events.Validate(ev); err != nil {
		return nil, "", "", err
	}
	return ev, *serverURL, *configPath, nil
}

func runEvent() {
	ev, serverURL, configPath, err := parseEventArgs(os.Args[2:])
	if err != nil {
		fmt.Printf("Invalid event: %v\n", err)
		fmt.Println("Usage: shelfrank event [flags] <search|click|add_to_cart|purchase>")
		fmt.Println("  --product string   Product id (required except for search)")
		fmt.Println("  --query string     Query text")
		os.Exit(1)
	}
	ctx := context.Background()

	if serverURL != "" {
		id, err := newAPIClient(serverURL).PublishEvent(ctx, ev)
		if err != nil {
			fatalf("Event failed: %v", err)
		}
		fmt.Printf("Event queued: %s\n", id)
		return
	}

	// Direct mode only needs the catalog database.
	cfg, _, logger := mustLoad(configPath, false)
	defer logger.Sync()
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()
	stamped := events.Stamp(ev)
	if err := store.ApplyEvent(ctx, stamped); err != nil {
		fatalf("Event failed: %v", err)
	}
	fmt.Printf("Event recorded: %s\n", stamped.ID)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	ctx := context.Background()
	var status *server.StatusResponse
	var err error
	if *serverURL != "" {
		status, err = newAPIClient(*serverURL).Status(ctx)
	} else {
		cfg, _, logger := mustLoad(*configPath, false)
		defer logger.Sync()
		components, initErr := initializeComponents(ctx, cfg, logger)
		if initErr != nil {
			fatalf("Failed to initialize: %v", initErr)
		}
		defer components.Close()
		status, err = server.CollectStatus(ctx, components.Storage, components.Engine, nil, cfg)
	}
	if err != nil {
		fatalf("Status failed: %v", err)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fatalf("Output failed: %v", err)
		}
	case "text":
		writeStatusText(os.Stdout, status)
	default:
		fatalf("Unknown output format %q; use text or json", *outputFormat)
	}
}

func writeStatusText(w io.Writer, status *server.StatusResponse) {
	fmt.Fprintf(w, "products:           %d   # catalog size\n", status.Products)
	fmt.Fprintf(w, "events:             %d   # recorded behavioral events\n", status.Events)
	fmt.Fprintf(w, "pending_events:     %d   # queued, not yet applied\n", status.PendingEvents)
	fmt.Fprintf(w, "vector_index_size:  %d   # count of vectors in semantic index\n", status.VectorIndexSize)
	if status.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + index on disk\n", status.DiskUsageBytes)
	}
	c := status.Config
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "vector_index_type:  %s\n", c.VectorIndexType)
	if c.EmbeddingDimensions > 0 {
		fmt.Fprintf(w, "embedding_dims:     %d\n", c.EmbeddingDimensions)
	}
	if c.DefaultLimit > 0 {
		fmt.Fprintf(w, "default_limit:      %d\n", c.DefaultLimit)
	}
	if c.MaxLimit > 0 {
		fmt.Fprintf(w, "max_limit:          %d\n", c.MaxLimit)
	}
	if c.DatabasePath != "" {
		fmt.Fprintf(w, "database_path:      %s\n", c.DatabasePath)
	}
	if c.VectorIndexPath != "" {
		fmt.Fprintf(w, "vector_index_path:  %s\n", c.VectorIndexPath)
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: shelfrank watch <add|remove|list> [path]")
		fmt.Println("  shelfrank watch add <path>     Add catalog drop directory")
		fmt.Println("  shelfrank watch remove <path>  Remove catalog drop directory")
		fmt.Println("  shelfrank watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	syncExisting := fs.Bool("sync", true, "ingest catalog files already in the directory (add only)")
	_ = fs.Parse(os.Args[3:])

	client := newAPIClient(*serverURL)
	ctx := context.Background()
	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fatalf("Usage: shelfrank watch %s <path>", sub)
		}
		path, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			fatalf("Invalid path: %v", err)
		}
		if sub == "add" {
			if err := client.AddWatchDirectory(ctx, path, *syncExisting); err != nil {
				fatalf("Add failed: %v", err)
			}
			fmt.Printf("Added: %s\n", path)
			return
		}
		if err := client.RemoveWatchDirectory(ctx, path); err != nil {
			fatalf("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		dirs, err := client.WatchDirectories(ctx)
		if err != nil {
			fatalf("List failed: %v", err)
		}
		for _, d := range dirs {
			fmt.Println(d)
		}
	default:
		fatalf("Unknown watch subcommand: %s", sub)
	}
}

func printUsage() {
	fmt.Println(`shelfrank - Contextual product search with behavioral re-ranking

Usage:
  shelfrank server [flags]                 Start the HTTP server
  shelfrank search [flags] <query>         Search the catalog
  shelfrank ingest [flags] <file>...       Ingest CSV or XLSX catalog files
  shelfrank event [flags] <type>           Record a search, click, add_to_cart or purchase
  shelfrank status [flags]                 Show catalog/event/index status
  shelfrank watch <add|remove|list>        Manage catalog drop directories
  shelfrank version                        Show version
  shelfrank help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/shelfrank/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for direct mode; also used for the default limit)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to search the local database.
  --limit int        Number of results (default from config, or 10)
  --output string    Output format: text, compact or json (default: text)

Ingest Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to write the local database.
  --output string    Output format: text or json (default: text)

Event Flags:
  --product string   Product id (required for click, add_to_cart and purchase)
  --query string     Query text that led to the event
  --server string    Server URL (default: http://localhost:8080). Use --server "" to write the local database.

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)
  --sync             Ingest files already present when adding (default: true)

Examples:
  shelfrank server
  shelfrank ingest catalog.csv
  shelfrank search red running shoes under 80
  shelfrank search --output json "wireless headphones 4+ stars"
  shelfrank event --product SKU-123 --query "red shoes" click
  shelfrank status --output json
  shelfrank watch add /path/to/catalogs
  shelfrank watch list`)
}
