package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aluiziolira/go-catalog-harvest/config"
	"github.com/aluiziolira/go-catalog-harvest/history"
	"github.com/aluiziolira/go-catalog-harvest/snapshot"
)

func main() {
	defaultCfg := config.DefaultConfig()
	dirDefault := defaultCfg.SnapshotDir
	if value, ok := config.EnvString("INGEST_SNAPSHOT_DIR"); ok {
		dirDefault = value
	}
	dbDefault := defaultCfg.DatabasePath
	if value, ok := config.EnvString("INGEST_DB_PATH"); ok {
		dbDefault = value
	}

	dir := flag.String("dir", dirDefault, "Directory holding snapshot JSON files")
	dbPath := flag.String("db", dbDefault, "History database path")
	resume := flag.Bool("resume", false, "Seed seller dedup from sellers already in the database")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := snapshot.ListOrdered(*dir)
	if err != nil {
		slog.Error("listing snapshots", slog.Any("error", err))
		os.Exit(1)
	}
	if len(files) == 0 {
		slog.Info("no snapshot files found", slog.String("dir", *dir))
		return
	}

	store, err := history.Open(*dbPath)
	if err != nil {
		slog.Error("opening history database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("closing history database", slog.Any("error", err))
		}
	}()

	var known []int64
	if *resume {
		known, err = store.KnownSellerIDs(ctx)
		if err != nil {
			slog.Error("loading known sellers", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("resuming with known sellers", slog.Int("count", len(known)))
	}

	engine := history.NewEngine(store, known...)

	slog.Info("starting ingestion",
		slog.Int("files", len(files)),
		slog.String("db", *dbPath),
	)

	summary, runErr := engine.Ingest(ctx, files)
	printSummary(summary)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("ingestion failed", slog.Any("error", runErr))
		os.Exit(1)
	}
}

func printSummary(summary *history.Summary) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Ingestion complete")
	fmt.Printf("  Files:           %d\n", summary.FilesProcessed)
	fmt.Printf("  Stored:          %d\n", summary.Stored)
	fmt.Printf("  Failed:          %d\n", summary.Failed)
	fmt.Printf("  Unique products: %d\n", summary.UniqueProducts)
	fmt.Printf("  Unique sellers:  %d\n", summary.UniqueSellers)
	if len(summary.FilesSkipped) > 0 {
		fmt.Printf("  Skipped files:   %s\n", strings.Join(summary.FilesSkipped, ", "))
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
