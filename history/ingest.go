package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aluiziolira/go-catalog-harvest/models"
	"github.com/aluiziolira/go-catalog-harvest/snapshot"
)

// Summary is the outcome of one ingestion run.
type Summary struct {
	Stored         int
	Failed         int
	UniqueProducts int
	UniqueSellers  int
	FilesProcessed int
	FilesSkipped   []string
}

// Engine consumes snapshot files strictly oldest-first and performs batched
// writes into the history store. Its dedup sets live for one Ingest call;
// seeding known sellers at construction lets a resumed run skip sellers the
// store already holds.
type Engine struct {
	store        *Store
	seenSellers  map[int64]struct{}
	seenProducts map[int64]struct{}
}

// NewEngine builds an engine over store, optionally pre-populating the
// seller dedup set.
func NewEngine(store *Store, knownSellers ...int64) *Engine {
	seenSellers := make(map[int64]struct{}, len(knownSellers))
	for _, id := range knownSellers {
		seenSellers[id] = struct{}{}
	}
	return &Engine{
		store:        store,
		seenSellers:  seenSellers,
		seenProducts: make(map[int64]struct{}),
	}
}

// Ingest processes files in the given (capture-time) order. A file that
// fails to load is logged and skipped; a batch-commit failure aborts the
// run, leaving prior snapshots committed. One crawl_logs entry is written
// regardless of outcome.
func (e *Engine) Ingest(ctx context.Context, files []snapshot.File) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}
	var runErr error

	for i, file := range files {
		name := filepath.Base(file.Path)
		slog.Info("processing snapshot",
			slog.Int("index", i+1),
			slog.Int("total", len(files)),
			slog.String("file", name),
		)

		snap, err := snapshot.Load(file.Path)
		if err != nil {
			slog.Error("skipping unreadable snapshot",
				slog.String("file", name),
				slog.Any("error", err),
			)
			summary.FilesSkipped = append(summary.FilesSkipped, name)
			continue
		}

		stored, failed, err := e.ingestSnapshot(ctx, snap)
		summary.Stored += stored
		summary.Failed += failed
		if err != nil {
			runErr = fmt.Errorf("ingest %s: %w", name, err)
			break
		}
		summary.FilesProcessed++

		slog.Info("snapshot ingested",
			slog.String("file", name),
			slog.Int("stored", stored),
			slog.Int("failed", failed),
		)
	}

	summary.UniqueProducts = len(e.seenProducts)
	summary.UniqueSellers = len(e.seenSellers)

	e.logRun(start, summary, runErr)
	return summary, runErr
}

// ingestSnapshot stages one snapshot's batches and commits them. The dedup
// sets are only updated once the corresponding batch committed, so a failed
// snapshot can be re-run without losing rows.
func (e *Engine) ingestSnapshot(ctx context.Context, snap *models.Snapshot) (stored, failed int, err error) {
	ts := snap.StartTime

	var (
		products []ProductRow
		sellers  []SellerRow
		prices   []PriceFact
		sales    []SalesFact
		ratings  []RatingFact
		details  []DetailFact
	)
	newSellers := make(map[int64]struct{})
	newProducts := make([]int64, 0, len(snap.AllProducts))

	for _, obs := range snap.AllProducts {
		if !obs.Success || obs.Details == nil {
			failed++
			continue
		}
		d := obs.Details
		if d.ID == 0 {
			slog.Warn("observation missing product id", slog.String("product_id", obs.ProductID))
			failed++
			continue
		}

		var sellerID int64
		if info := d.SellerInfo; info != nil && info.ID != 0 {
			sellerID = info.ID
			if _, known := e.seenSellers[sellerID]; !known {
				if _, staged := newSellers[sellerID]; !staged {
					sellers = append(sellers, SellerRow{
						ID:            info.ID,
						Name:          info.Name,
						URL:           info.Link,
						TotalFollower: info.TotalFollower,
					})
					newSellers[sellerID] = struct{}{}
				}
			}
		}

		products = append(products, ProductRow{
			ID:               d.ID,
			Name:             d.Name,
			ShortDescription: d.ShortDescription,
			URLKey:           d.URLKey,
			CategoryID:       obs.CategoryID,
			CategoryName:     obs.CategoryName,
		})
		prices = append(prices, PriceFact{
			ProductID:      d.ID,
			Price:          d.Price,
			OriginalPrice:  d.OriginalPrice,
			Discount:       d.Discount,
			DiscountRate:   d.DiscountRate,
			CrawlTimestamp: ts,
		})
		sales = append(sales, SalesFact{
			ProductID:           d.ID,
			QuantitySold:        d.SoldInPeriod(),
			AllTimeQuantitySold: d.AllTimeQuantitySold,
			CrawlTimestamp:      ts,
		})
		ratings = append(ratings, RatingFact{
			ProductID:      d.ID,
			RatingAverage:  d.RatingAverage,
			ReviewCount:    d.ReviewCount,
			CrawlTimestamp: ts,
		})
		details = append(details, DetailFact{
			ProductID:      d.ID,
			Brand:          encodeBrand(d.ResolvedBrand()),
			Badges:         string(d.ResolvedBadges()),
			SellerID:       sellerID,
			CrawlTimestamp: ts,
		})

		newProducts = append(newProducts, d.ID)
		stored++
	}

	if err := e.store.UpsertSellers(ctx, sellers); err != nil {
		return 0, failed, fmt.Errorf("commit sellers batch: %w", err)
	}
	for id := range newSellers {
		e.seenSellers[id] = struct{}{}
	}

	if err := e.store.UpsertProducts(ctx, products); err != nil {
		return 0, failed, fmt.Errorf("commit products batch: %w", err)
	}
	if err := e.store.InsertPriceFacts(ctx, prices); err != nil {
		return 0, failed, fmt.Errorf("commit price batch: %w", err)
	}
	if err := e.store.InsertSalesFacts(ctx, sales); err != nil {
		return 0, failed, fmt.Errorf("commit sales batch: %w", err)
	}
	if err := e.store.InsertRatingFacts(ctx, ratings); err != nil {
		return 0, failed, fmt.Errorf("commit rating batch: %w", err)
	}
	if err := e.store.InsertDetailFacts(ctx, details); err != nil {
		return 0, failed, fmt.Errorf("commit detail batch: %w", err)
	}

	for _, id := range newProducts {
		e.seenProducts[id] = struct{}{}
	}
	return stored, failed, nil
}

func (e *Engine) logRun(start time.Time, summary *Summary, runErr error) {
	status := StatusCompleted
	message := ""
	switch {
	case errors.Is(runErr, context.Canceled):
		status = StatusInterrupted
		message = runErr.Error()
	case runErr != nil:
		status = StatusFailed
		message = runErr.Error()
	}

	entry := CrawlLogEntry{
		CrawlType:     "ingest",
		StartTime:     start,
		EndTime:       time.Now(),
		ProductsCount: summary.Stored,
		ErrorsCount:   summary.Failed,
		Status:        status,
		ErrorMessage:  message,
	}
	for _, name := range summary.FilesSkipped {
		entry.CategoriesCrawled = append(entry.CategoriesCrawled, "skipped:"+name)
	}
	entry.CategoriesCrawled = append(entry.CategoriesCrawled,
		"files:"+strconv.Itoa(summary.FilesProcessed))

	// Run logging is auditability, not correctness: a failure here must
	// not mask the ingestion outcome.
	if _, err := e.store.LogCrawl(context.Background(), entry); err != nil {
		slog.Error("failed to write crawl log entry", slog.Any("error", err))
	}
}

func encodeBrand(b *models.Brand) string {
	if b == nil {
		return ""
	}
	data, err := json.Marshal(b)
	if err != nil {
		return ""
	}
	return string(data)
}
