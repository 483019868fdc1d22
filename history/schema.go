package history

import "database/sql"

// statements creating the history schema: two current-state tables
// (products, sellers), four append-only fact tables, and the run log.
// Every fact table carries a composite (product_id, crawl_timestamp) index
// for time-ordered retrieval by the analytical layer.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		short_description TEXT,
		url_key TEXT,
		category_id INTEGER,
		category_name TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sellers (
		seller_id INTEGER PRIMARY KEY,
		seller_name TEXT,
		seller_url TEXT,
		seller_total_follower INTEGER,
		last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		price REAL NOT NULL,
		original_price REAL,
		discount REAL,
		discount_rate INTEGER,
		crawl_timestamp TIMESTAMP NOT NULL,
		FOREIGN KEY (product_id) REFERENCES products(id)
	)`,
	`CREATE TABLE IF NOT EXISTS sales_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		quantity_sold INTEGER NOT NULL,
		all_time_quantity_sold INTEGER,
		crawl_timestamp TIMESTAMP NOT NULL,
		FOREIGN KEY (product_id) REFERENCES products(id)
	)`,
	`CREATE TABLE IF NOT EXISTS rating_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		rating_average REAL,
		review_count INTEGER,
		crawl_timestamp TIMESTAMP NOT NULL,
		FOREIGN KEY (product_id) REFERENCES products(id)
	)`,
	`CREATE TABLE IF NOT EXISTS product_details (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		brand TEXT,
		badges TEXT,
		seller_id INTEGER,
		crawl_timestamp TIMESTAMP NOT NULL,
		FOREIGN KEY (product_id) REFERENCES products(id),
		FOREIGN KEY (seller_id) REFERENCES sellers(seller_id)
	)`,
	`CREATE TABLE IF NOT EXISTS crawl_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		crawl_type TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP,
		products_count INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		status TEXT,
		error_message TEXT,
		categories_crawled TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_product
		ON price_history(product_id, crawl_timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_history_product
		ON sales_history(product_id, crawl_timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_rating_history_product
		ON rating_history(product_id, crawl_timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_product_details_product
		ON product_details(product_id, crawl_timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category
		ON products(category_id)`,
}

// EnsureSchema creates the history tables and indexes if absent.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
