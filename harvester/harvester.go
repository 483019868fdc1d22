// Package harvester implements the concurrent, rate-limited harvesting
// engine: listing traversal, detail fetching, and per-category worker pools
// feeding one immutable snapshot per run.
package harvester

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aluiziolira/go-catalog-harvest/config"
	"github.com/aluiziolira/go-catalog-harvest/models"
)

// Harvester coordinates a harvesting run. Categories are processed one
// after another; within a category a fixed-size worker pool fans out detail
// fetches. The rate limiter, not the pool size, governs throughput.
type Harvester struct {
	cfg       *config.Config
	traverser *Traverser
	fetcher   *DetailFetcher
	metrics   *Metrics
}

// New wires a harvester from cfg. All workers share one rate limiter and
// one HTTP client.
func New(cfg *config.Config, metrics *Metrics) (*Harvester, error) {
	limiter := NewRateLimiter(cfg.RateLimitPerSecond)
	client := NewClient(cfg, limiter, metrics)
	fetcher, err := NewDetailFetcher(client, cfg.ProductURL, cfg.SellerURL)
	if err != nil {
		return nil, err
	}
	return &Harvester{
		cfg:       cfg,
		traverser: NewTraverser(client, cfg.ListingURL, cfg.ProductsPerPage),
		fetcher:   fetcher,
		metrics:   metrics,
	}, nil
}

// WithTransport swaps the HTTP transport on the shared client. Used by tests.
func (h *Harvester) WithTransport(rt http.RoundTripper) {
	h.fetcher.client.WithTransport(rt)
}

// HarvestCategory harvests one category: sequential listing traversal, then
// a worker pool over the collected ids. Results are gathered in completion
// order; ordering among them is not significant.
func (h *Harvester) HarvestCategory(ctx context.Context, category models.Category) models.CategoryResult {
	start := time.Now()

	ids := h.traverser.ProductIDs(ctx, category.ID, h.cfg.MaxProductsPerCategory)

	tasks := make(chan string)
	results := make(chan models.ProductObservation)

	var wg sync.WaitGroup
	for i := 0; i < h.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range tasks {
				results <- h.observe(ctx, id, category)
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, id := range ids {
			select {
			case <-ctx.Done():
				return
			case tasks <- id:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var observations []models.ProductObservation
	for obs := range results {
		observations = append(observations, obs)
	}

	duration := time.Since(start)
	stats := models.CategoryStats{
		Total:    len(ids),
		Duration: duration.Seconds(),
	}
	for _, obs := range observations {
		if obs.Success {
			stats.Successful++
		}
	}
	stats.Failed = stats.Total - stats.Successful
	if duration > 0 {
		stats.ProductsPerSecond = float64(len(ids)) / duration.Seconds()
	}

	slog.Info("category harvested",
		slog.Int64("category_id", category.ID),
		slog.String("category_name", category.Name),
		slog.Int("successful", stats.Successful),
		slog.Int("total", stats.Total),
		slog.Float64("products_per_second", stats.ProductsPerSecond),
	)

	return models.CategoryResult{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Products:     observations,
		Stats:        stats,
	}
}

// HarvestAll runs every category sequentially and assembles the snapshot.
// On interrupt it returns the partial snapshot together with the context's
// error so the caller can record the run as interrupted.
func (h *Harvester) HarvestAll(ctx context.Context, categories []models.Category) (*models.Snapshot, error) {
	start := time.Now()
	snap := &models.Snapshot{
		StartTime: start,
		Stats: models.SnapshotStats{
			TotalCategories: len(categories),
		},
	}

	slog.Info("starting harvest",
		slog.Int("categories", len(categories)),
		slog.Int("workers", h.cfg.Workers),
		slog.Int("rate_limit_per_second", h.cfg.RateLimitPerSecond),
	)

	for i, category := range categories {
		if ctx.Err() != nil {
			slog.Warn("harvest interrupted",
				slog.Int("categories_done", i),
				slog.Int("categories_total", len(categories)),
			)
			break
		}

		slog.Info("harvesting category",
			slog.Int("index", i+1),
			slog.Int("total", len(categories)),
			slog.String("name", category.Name),
		)

		result := h.HarvestCategory(ctx, category)
		snap.Categories = append(snap.Categories, result)
		snap.AllProducts = append(snap.AllProducts, result.Products...)
		snap.Stats.TotalProducts += result.Stats.Total
		snap.Stats.SuccessfulProducts += result.Stats.Successful
		snap.Stats.FailedProducts += result.Stats.Failed
	}

	snap.EndTime = time.Now()
	snap.DurationSeconds = snap.EndTime.Sub(start).Seconds()
	if snap.DurationSeconds > 0 {
		snap.OverallSpeed = float64(snap.Stats.TotalProducts) / snap.DurationSeconds
	}

	slog.Info("harvest finished",
		slog.Int("successful", snap.Stats.SuccessfulProducts),
		slog.Int("total", snap.Stats.TotalProducts),
		slog.Float64("overall_speed", snap.OverallSpeed),
	)

	return snap, ctx.Err()
}

func (h *Harvester) observe(ctx context.Context, productID string, category models.Category) models.ProductObservation {
	obs := models.ProductObservation{
		ProductID:    productID,
		CategoryID:   category.ID,
		CategoryName: category.Name,
	}

	detail := h.fetcher.Fetch(ctx, productID)
	if detail == nil {
		h.metrics.IncProducts("failed")
		return obs
	}

	h.metrics.IncProducts("successful")
	obs.Success = true
	obs.Details = detail
	return obs
}
