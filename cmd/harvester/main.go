package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-catalog-harvest/config"
	"github.com/aluiziolira/go-catalog-harvest/harvester"
	"github.com/aluiziolira/go-catalog-harvest/history"
	"github.com/aluiziolira/go-catalog-harvest/models"
	"github.com/aluiziolira/go-catalog-harvest/snapshot"
)

func main() {
	defaultCfg := config.DefaultConfig()
	workersDefault := defaultCfg.Workers
	if value, ok, err := config.EnvInt("HARVESTER_WORKERS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid HARVESTER_WORKERS: %v\n", err)
		os.Exit(1)
	} else if ok {
		workersDefault = value
	}
	rateDefault := defaultCfg.RateLimitPerSecond
	if value, ok, err := config.EnvInt("HARVESTER_RATE_LIMIT"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid HARVESTER_RATE_LIMIT: %v\n", err)
		os.Exit(1)
	} else if ok {
		rateDefault = value
	}
	outputDefault := defaultCfg.SnapshotDir
	if value, ok := config.EnvString("HARVESTER_OUTPUT_DIR"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("HARVESTER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	configFile := flag.String("config", "", "JSON configuration file (overrides defaults)")
	categoriesFile := flag.String("categories", "config/categories.json", "JSON file listing categories to harvest")
	workers := flag.Int("workers", workersDefault, "Number of concurrent detail fetchers")
	rateLimit := flag.Int("rate-limit", rateDefault, "Maximum requests per rolling second")
	maxProducts := flag.Int("max-products", defaultCfg.MaxProductsPerCategory, "Maximum products per category")
	outputDir := flag.String("output", outputDefault, "Snapshot output directory")
	dbPath := flag.String("db", defaultCfg.DatabasePath, "History database path for run logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("loading configuration", slog.Any("error", err))
		os.Exit(1)
	}
	applyFlags(cfg, *workers, *rateLimit, *maxProducts, *outputDir, *dbPath, *metricsAddr, *verbose)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	categories, err := config.LoadCategories(*categoriesFile)
	if err != nil {
		slog.Error("loading categories", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := harvester.NewMetrics()
	h, err := harvester.New(cfg, metrics)
	if err != nil {
		slog.Error("initialising harvester", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	snap, runErr := h.HarvestAll(ctx, categories)

	// An interrupted run still holds the categories finished so far; the
	// snapshot is written regardless so no observations are lost.
	path := ""
	if len(snap.AllProducts) > 0 || runErr == nil {
		path, err = snapshot.Write(cfg.SnapshotDir, snap)
		if err != nil {
			slog.Error("writing snapshot", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("snapshot written", slog.String("path", path))
	}

	logRun(cfg.DatabasePath, snap, categories, runErr)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(snap, path)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFile(path)
}

func applyFlags(cfg *config.Config, workers, rateLimit, maxProducts int, outputDir, dbPath, metricsAddr string, verbose bool) {
	cfg.Workers = workers
	cfg.RateLimitPerSecond = rateLimit
	cfg.MaxProductsPerCategory = maxProducts
	cfg.SnapshotDir = outputDir
	cfg.DatabasePath = dbPath
	cfg.MetricsAddr = metricsAddr
	cfg.Verbose = verbose
}

// logRun records the harvest in the history database's run log. The log is
// best-effort: a missing or unwritable database must not fail the harvest.
func logRun(dbPath string, snap *models.Snapshot, categories []models.Category, runErr error) {
	store, err := history.Open(dbPath)
	if err != nil {
		slog.Error("opening history database for run log", slog.Any("error", err))
		return
	}
	defer store.Close()

	status := history.StatusCompleted
	message := ""
	switch {
	case errors.Is(runErr, context.Canceled):
		status = history.StatusInterrupted
		message = "interrupted by signal"
	case runErr != nil:
		status = history.StatusFailed
		message = runErr.Error()
	}

	entry := history.CrawlLogEntry{
		CrawlType:     "harvest",
		StartTime:     snap.StartTime,
		EndTime:       snap.EndTime,
		ProductsCount: snap.Stats.SuccessfulProducts,
		ErrorsCount:   snap.Stats.FailedProducts,
		Status:        status,
		ErrorMessage:  message,
	}
	for _, c := range categories {
		entry.CategoriesCrawled = append(entry.CategoriesCrawled, c.Name)
	}

	if _, err := store.LogCrawl(context.Background(), entry); err != nil {
		slog.Error("writing crawl log entry", slog.Any("error", err))
	}
}

func printSummary(snap *models.Snapshot, path string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Harvest complete")
	fmt.Printf("  Categories:    %d\n", len(snap.Categories))
	fmt.Printf("  Total items:   %d\n", snap.Stats.TotalProducts)
	successRate := 0.0
	if snap.Stats.TotalProducts > 0 {
		successRate = float64(snap.Stats.SuccessfulProducts) / float64(snap.Stats.TotalProducts) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Failed:        %d\n", snap.Stats.FailedProducts)
	fmt.Printf("  Duration:      %.2fs\n", snap.DurationSeconds)
	fmt.Printf("  Items/sec:     %.2f\n", snap.OverallSpeed)
	if path != "" {
		fmt.Printf("  Snapshot:      %s\n", path)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
