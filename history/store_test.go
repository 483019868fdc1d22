package history

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestUpsertProductsReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := []ProductRow{{ID: 1001, Name: "Widget", CategoryID: 8322, CategoryName: "Books"}}
	if err := store.UpsertProducts(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := []ProductRow{{ID: 1001, Name: "Widget (2nd Edition)", CategoryID: 8322, CategoryName: "Books"}}
	if err := store.UpsertProducts(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows, err := store.ProductsByCategory(ctx, 8322)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (upsert must replace, not append)", len(rows))
	}
	if rows[0].Name != "Widget (2nd Edition)" {
		t.Fatalf("name = %q, want the replacement", rows[0].Name)
	}
}

func TestPriceFactsAppend(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 11, 1, 3, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		fact := PriceFact{
			ProductID:      1001,
			Price:          float64(90000 - day*1000),
			OriginalPrice:  120000,
			DiscountRate:   int64(25 + day),
			CrawlTimestamp: base.AddDate(0, 0, day),
		}
		if err := store.InsertPriceFacts(ctx, []PriceFact{fact}); err != nil {
			t.Fatalf("insert day %d: %v", day, err)
		}
	}

	facts, err := store.PriceHistory(ctx, 1001)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("facts = %d, want 3 (one per observation)", len(facts))
	}
	for i := 1; i < len(facts); i++ {
		if !facts[i].CrawlTimestamp.After(facts[i-1].CrawlTimestamp) {
			t.Fatalf("timestamps out of order: %v then %v", facts[i-1].CrawlTimestamp, facts[i].CrawlTimestamp)
		}
	}
	if facts[0].Price != 90000 || facts[2].Price != 88000 {
		t.Fatalf("prices = %v, %v, %v", facts[0].Price, facts[1].Price, facts[2].Price)
	}
}

func TestSalesAndRatingFactsAppend(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ts1 := time.Date(2025, 11, 1, 3, 0, 0, 0, time.UTC)
	ts2 := ts1.AddDate(0, 0, 1)

	sales := []SalesFact{
		{ProductID: 5, QuantitySold: 10, AllTimeQuantitySold: 100, CrawlTimestamp: ts1},
		{ProductID: 5, QuantitySold: 12, AllTimeQuantitySold: 112, CrawlTimestamp: ts2},
	}
	if err := store.InsertSalesFacts(ctx, sales); err != nil {
		t.Fatalf("insert sales: %v", err)
	}
	ratings := []RatingFact{
		{ProductID: 5, RatingAverage: 4.5, ReviewCount: 20, CrawlTimestamp: ts1},
		{ProductID: 5, RatingAverage: 4.6, ReviewCount: 23, CrawlTimestamp: ts2},
	}
	if err := store.InsertRatingFacts(ctx, ratings); err != nil {
		t.Fatalf("insert ratings: %v", err)
	}

	gotSales, err := store.SalesHistory(ctx, 5)
	if err != nil {
		t.Fatalf("sales history: %v", err)
	}
	if len(gotSales) != 2 || gotSales[1].AllTimeQuantitySold != 112 {
		t.Fatalf("sales = %+v", gotSales)
	}

	gotRatings, err := store.RatingHistory(ctx, 5)
	if err != nil {
		t.Fatalf("rating history: %v", err)
	}
	if len(gotRatings) != 2 || gotRatings[0].RatingAverage != 4.5 {
		t.Fatalf("ratings = %+v", gotRatings)
	}
}

func TestKnownSellerIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sellers := []SellerRow{
		{ID: 3, Name: "Gamma"},
		{ID: 1, Name: "Alpha"},
		{ID: 2, Name: "Beta"},
	}
	if err := store.UpsertSellers(ctx, sellers); err != nil {
		t.Fatalf("upsert sellers: %v", err)
	}

	ids, err := store.KnownSellerIDs(ctx)
	if err != nil {
		t.Fatalf("known sellers: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("ids = %v, want [1 2 3]", ids)
	}
}

func TestUpsertSellersIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	row := SellerRow{ID: 7, Name: "Widget Store", TotalFollower: 42}
	for i := 0; i < 2; i++ {
		if err := store.UpsertSellers(ctx, []SellerRow{row}); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	ids, err := store.KnownSellerIDs(ctx)
	if err != nil {
		t.Fatalf("known sellers: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("ids = %v, want a single seller", ids)
	}
}

func TestLogCrawl(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry := CrawlLogEntry{
		CrawlType:         "harvest",
		StartTime:         time.Now().Add(-time.Minute),
		EndTime:           time.Now(),
		ProductsCount:     100,
		ErrorsCount:       3,
		Status:            StatusCompleted,
		CategoriesCrawled: []string{"Books", "Electronics"},
	}

	id1, err := store.LogCrawl(ctx, entry)
	if err != nil {
		t.Fatalf("log crawl: %v", err)
	}
	entry.CrawlType = "ingest"
	id2, err := store.LogCrawl(ctx, entry)
	if err != nil {
		t.Fatalf("log crawl: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("log ids = %d, %d; want strictly increasing", id1, id2)
	}
}

func TestBatchExecEmptyIsNoop(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.UpsertProducts(ctx, nil); err != nil {
		t.Fatalf("empty upsert: %v", err)
	}
	if err := store.InsertPriceFacts(ctx, nil); err != nil {
		t.Fatalf("empty insert: %v", err)
	}
}

func TestTimestampRoundtrip(t *testing.T) {
	original := time.Date(2025, 11, 21, 2, 24, 21, 0, time.FixedZone("ICT", 7*3600))
	decoded, err := decodeTime(encodeTime(original))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(original) {
		t.Fatalf("roundtrip changed instant: %v vs %v", decoded, original)
	}
	if decoded.Location() != time.UTC {
		t.Fatalf("decoded location = %v, want UTC", decoded.Location())
	}
}
