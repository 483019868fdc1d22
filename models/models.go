// Package models defines the data structures shared by the harvester and
// the ingestion pipeline.
package models

import "encoding/json"

// Category is one catalog category to harvest, supplied by configuration.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Author appears on book-like catalog items that carry no brand.
type Author struct {
	Name string `json:"name"`
}

// Brand is the normalized brand record stored with each detail fact. For
// book-like items it is synthesized from the authors list.
type Brand struct {
	Name    string   `json:"name,omitempty"`
	Authors []Author `json:"authors,omitempty"`
}

// QuantitySold wraps the per-period sales counter as the API nests it.
type QuantitySold struct {
	Value int64 `json:"value"`
}

// SellerRef is the seller reference embedded in a detail payload.
type SellerRef struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	StoreID int64  `json:"store_id"`
	Link    string `json:"link"`
}

// SellerInfo is the enriched seller record merged into a detail after the
// follower-count lookup.
type SellerInfo struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Link          string `json:"link"`
	TotalFollower int64  `json:"total_follower"`
}

// ProductDetail is the detail payload for a single product. Badge variants
// are kept as raw JSON; they are persisted verbatim, never inspected.
type ProductDetail struct {
	ID                  int64           `json:"id"`
	Name                string          `json:"name"`
	ShortDescription    string          `json:"short_description"`
	URLKey              string          `json:"url_key"`
	Price               float64         `json:"price"`
	OriginalPrice       float64         `json:"original_price"`
	Discount            float64         `json:"discount"`
	DiscountRate        int64           `json:"discount_rate"`
	QuantitySold        *QuantitySold   `json:"quantity_sold,omitempty"`
	AllTimeQuantitySold int64           `json:"all_time_quantity_sold"`
	RatingAverage       float64         `json:"rating_average"`
	ReviewCount         int64           `json:"review_count"`
	Brand               *Brand          `json:"brand,omitempty"`
	Authors             []Author        `json:"authors,omitempty"`
	Badges              json.RawMessage `json:"badges,omitempty"`
	BadgesV3            json.RawMessage `json:"badges_v3,omitempty"`
	CurrentSeller       *SellerRef      `json:"current_seller,omitempty"`
	SellerInfo          *SellerInfo     `json:"seller_info_enriched,omitempty"`
}

// ResolvedBrand returns the brand to persist, falling back to a synthetic
// "Book" brand built from the authors list when no named brand is present.
// Returns nil when the item has neither.
func (d *ProductDetail) ResolvedBrand() *Brand {
	if d.Brand != nil && d.Brand.Name != "" {
		return d.Brand
	}
	if len(d.Authors) > 0 {
		return &Brand{Name: "Book", Authors: d.Authors}
	}
	return nil
}

// ResolvedBadges prefers the badges_v3 variant over the legacy badges list.
func (d *ProductDetail) ResolvedBadges() json.RawMessage {
	if len(d.BadgesV3) > 0 {
		return d.BadgesV3
	}
	return d.Badges
}

// SoldInPeriod returns the per-period sales counter, zero when absent.
func (d *ProductDetail) SoldInPeriod() int64 {
	if d.QuantitySold == nil {
		return 0
	}
	return d.QuantitySold.Value
}
