package models

import "time"

// ProductObservation is one product's outcome within a snapshot.
type ProductObservation struct {
	ProductID    string         `json:"product_id"`
	CategoryID   int64          `json:"category_id"`
	CategoryName string         `json:"category_name"`
	Success      bool           `json:"success"`
	Details      *ProductDetail `json:"details,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// CategoryStats aggregates one category's harvest outcome.
type CategoryStats struct {
	Total             int     `json:"total"`
	Successful        int     `json:"successful"`
	Failed            int     `json:"failed"`
	Duration          float64 `json:"duration"`
	ProductsPerSecond float64 `json:"products_per_second"`
}

// CategoryResult is the harvest outcome for a single category.
type CategoryResult struct {
	CategoryID   int64                `json:"category_id"`
	CategoryName string               `json:"category_name"`
	Products     []ProductObservation `json:"products"`
	Stats        CategoryStats        `json:"stats"`
}

// SnapshotStats aggregates the whole harvesting run.
type SnapshotStats struct {
	TotalCategories    int `json:"total_categories"`
	TotalProducts      int `json:"total_products"`
	SuccessfulProducts int `json:"successful_products"`
	FailedProducts     int `json:"failed_products"`
}

// Snapshot is one complete harvesting run's output: every configured
// category's observations captured at a single instant. It is immutable
// once written; StartTime doubles as the crawl timestamp for every fact
// derived from it at ingestion time.
type Snapshot struct {
	StartTime       time.Time            `json:"start_time"`
	EndTime         time.Time            `json:"end_time"`
	Categories      []CategoryResult     `json:"categories"`
	AllProducts     []ProductObservation `json:"all_products"`
	Stats           SnapshotStats        `json:"stats"`
	DurationSeconds float64              `json:"duration_seconds"`
	OverallSpeed    float64              `json:"overall_speed"`
}
