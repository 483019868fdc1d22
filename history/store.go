// Package history implements the persisted relational model: current-state
// entities written with upsert semantics, append-only time-series facts,
// and the chronological ingestion engine that populates both.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// Run-log statuses. Every run writes exactly one entry with one of these.
const (
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// timestampLayout is the canonical encoding for crawl timestamps in the
// store. RFC3339 keeps lexical and chronological order aligned.
const timestampLayout = time.RFC3339

// ProductRow is the current-state record for one product; re-observation
// replaces the row.
type ProductRow struct {
	ID               int64
	Name             string
	ShortDescription string
	URLKey           string
	CategoryID       int64
	CategoryName     string
}

// SellerRow is the current-state record for one seller.
type SellerRow struct {
	ID            int64
	Name          string
	URL           string
	TotalFollower int64
}

// PriceFact is one append-only price observation.
type PriceFact struct {
	ProductID      int64
	Price          float64
	OriginalPrice  float64
	Discount       float64
	DiscountRate   int64
	CrawlTimestamp time.Time
}

// SalesFact is one append-only sales observation.
type SalesFact struct {
	ProductID           int64
	QuantitySold        int64
	AllTimeQuantitySold int64
	CrawlTimestamp      time.Time
}

// RatingFact is one append-only rating observation.
type RatingFact struct {
	ProductID      int64
	RatingAverage  float64
	ReviewCount    int64
	CrawlTimestamp time.Time
}

// DetailFact is one append-only denormalized detail observation. Brand and
// Badges hold serialized JSON; empty strings persist as NULL.
type DetailFact struct {
	ProductID      int64
	Brand          string
	Badges         string
	SellerID       int64
	CrawlTimestamp time.Time
}

// CrawlLogEntry records one harvesting or ingestion run.
type CrawlLogEntry struct {
	CrawlType         string
	StartTime         time.Time
	EndTime           time.Time
	ProductsCount     int
	ErrorsCount       int
	Status            string
	ErrorMessage      string
	CategoriesCrawled []string
}

// Store wraps the sqlite history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and ensures
// the schema exists. Pass ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	// sqlite allows one writer; serializing through a single connection
	// avoids SQLITE_BUSY under the sequential ingestion workload.
	db.SetMaxOpenConns(1)
	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// batchExec runs one statement for each of n rows inside a single
// transaction, pulling positional arguments from args.
func (s *Store) batchExec(ctx context.Context, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertProducts replaces the current-state row for every product in rows.
func (s *Store) UpsertProducts(ctx context.Context, rows []ProductRow) error {
	return s.batchExec(ctx,
		`INSERT OR REPLACE INTO products
		 (id, name, short_description, url_key, category_id, category_name)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		len(rows), func(i int) []any {
			r := rows[i]
			return []any{r.ID, r.Name, r.ShortDescription, r.URLKey, r.CategoryID, r.CategoryName}
		})
}

// UpsertSellers replaces the current-state row for every seller in rows.
func (s *Store) UpsertSellers(ctx context.Context, rows []SellerRow) error {
	return s.batchExec(ctx,
		`INSERT OR REPLACE INTO sellers
		 (seller_id, seller_name, seller_url, seller_total_follower, last_updated)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		len(rows), func(i int) []any {
			r := rows[i]
			return []any{r.ID, r.Name, r.URL, r.TotalFollower}
		})
}

// InsertPriceFacts appends price observations; rows are never updated.
func (s *Store) InsertPriceFacts(ctx context.Context, rows []PriceFact) error {
	return s.batchExec(ctx,
		`INSERT INTO price_history
		 (product_id, price, original_price, discount, discount_rate, crawl_timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		len(rows), func(i int) []any {
			r := rows[i]
			return []any{r.ProductID, r.Price, r.OriginalPrice, r.Discount, r.DiscountRate, encodeTime(r.CrawlTimestamp)}
		})
}

// InsertSalesFacts appends sales observations.
func (s *Store) InsertSalesFacts(ctx context.Context, rows []SalesFact) error {
	return s.batchExec(ctx,
		`INSERT INTO sales_history
		 (product_id, quantity_sold, all_time_quantity_sold, crawl_timestamp)
		 VALUES (?, ?, ?, ?)`,
		len(rows), func(i int) []any {
			r := rows[i]
			return []any{r.ProductID, r.QuantitySold, r.AllTimeQuantitySold, encodeTime(r.CrawlTimestamp)}
		})
}

// InsertRatingFacts appends rating observations.
func (s *Store) InsertRatingFacts(ctx context.Context, rows []RatingFact) error {
	return s.batchExec(ctx,
		`INSERT INTO rating_history
		 (product_id, rating_average, review_count, crawl_timestamp)
		 VALUES (?, ?, ?, ?)`,
		len(rows), func(i int) []any {
			r := rows[i]
			return []any{r.ProductID, r.RatingAverage, r.ReviewCount, encodeTime(r.CrawlTimestamp)}
		})
}

// InsertDetailFacts appends denormalized detail observations.
func (s *Store) InsertDetailFacts(ctx context.Context, rows []DetailFact) error {
	return s.batchExec(ctx,
		`INSERT INTO product_details
		 (product_id, brand, badges, seller_id, crawl_timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		len(rows), func(i int) []any {
			r := rows[i]
			return []any{r.ProductID, nullIfEmpty(r.Brand), nullIfEmpty(r.Badges), nullIfZero(r.SellerID), encodeTime(r.CrawlTimestamp)}
		})
}

// KnownSellerIDs returns every seller id already present in the store,
// used to seed a resumed ingestion run's dedup set.
func (s *Store) KnownSellerIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seller_id FROM sellers ORDER BY seller_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LogCrawl appends one run-log entry and returns its id.
func (s *Store) LogCrawl(ctx context.Context, entry CrawlLogEntry) (int64, error) {
	categories, err := json.Marshal(entry.CategoriesCrawled)
	if err != nil {
		return 0, fmt.Errorf("encode categories: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_logs
		 (crawl_type, start_time, end_time, products_count, errors_count, status, error_message, categories_crawled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CrawlType,
		encodeTime(entry.StartTime),
		encodeTime(entry.EndTime),
		entry.ProductsCount,
		entry.ErrorsCount,
		entry.Status,
		entry.ErrorMessage,
		string(categories),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// PriceHistory returns a product's price facts in chronological order.
func (s *Store) PriceHistory(ctx context.Context, productID int64) ([]PriceFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, price, original_price, discount, discount_rate, crawl_timestamp
		 FROM price_history WHERE product_id = ? ORDER BY crawl_timestamp`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PriceFact
	for rows.Next() {
		var f PriceFact
		var ts string
		if err := rows.Scan(&f.ProductID, &f.Price, &f.OriginalPrice, &f.Discount, &f.DiscountRate, &ts); err != nil {
			return nil, err
		}
		if f.CrawlTimestamp, err = decodeTime(ts); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SalesHistory returns a product's sales facts in chronological order.
func (s *Store) SalesHistory(ctx context.Context, productID int64) ([]SalesFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, quantity_sold, all_time_quantity_sold, crawl_timestamp
		 FROM sales_history WHERE product_id = ? ORDER BY crawl_timestamp`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SalesFact
	for rows.Next() {
		var f SalesFact
		var ts string
		if err := rows.Scan(&f.ProductID, &f.QuantitySold, &f.AllTimeQuantitySold, &ts); err != nil {
			return nil, err
		}
		if f.CrawlTimestamp, err = decodeTime(ts); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RatingHistory returns a product's rating facts in chronological order.
func (s *Store) RatingHistory(ctx context.Context, productID int64) ([]RatingFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, rating_average, review_count, crawl_timestamp
		 FROM rating_history WHERE product_id = ? ORDER BY crawl_timestamp`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RatingFact
	for rows.Next() {
		var f RatingFact
		var ts string
		if err := rows.Scan(&f.ProductID, &f.RatingAverage, &f.ReviewCount, &ts); err != nil {
			return nil, err
		}
		if f.CrawlTimestamp, err = decodeTime(ts); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ProductsByCategory returns the current-state products of one category.
func (s *Store) ProductsByCategory(ctx context.Context, categoryID int64) ([]ProductRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(short_description, ''), COALESCE(url_key, ''), category_id, category_name
		 FROM products WHERE category_id = ? ORDER BY id`,
		categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductRow
	for rows.Next() {
		var r ProductRow
		if err := rows.Scan(&r.ID, &r.Name, &r.ShortDescription, &r.URLKey, &r.CategoryID, &r.CategoryName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ProductIDs returns every known product id in ascending order.
func (s *Store) ProductIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
