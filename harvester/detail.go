package harvester

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-catalog-harvest/models"
)

// followerCacheSize bounds the per-run seller follower cache. Categories
// concentrate on a relatively small seller set, so hits are frequent.
const followerCacheSize = 1024

type sellerFollowingResponse struct {
	Data struct {
		Following struct {
			TotalFollower int64 `json:"total_follower"`
		} `json:"following"`
	} `json:"data"`
}

// DetailFetcher fetches one product's detail record and, when the detail
// exposes a seller, enriches it with the seller's follower count.
type DetailFetcher struct {
	client     *Client
	productURL string
	sellerURL  string
	followers  *lru.Cache[int64, int64]
}

// NewDetailFetcher builds a fetcher issuing requests through client.
func NewDetailFetcher(client *Client, productURL, sellerURL string) (*DetailFetcher, error) {
	followers, err := lru.New[int64, int64](followerCacheSize)
	if err != nil {
		return nil, err
	}
	return &DetailFetcher{
		client:     client,
		productURL: productURL,
		sellerURL:  sellerURL,
		followers:  followers,
	}, nil
}

// Fetch returns the enriched detail for productID, or nil when it could not
// be fetched. Failure here is routine, not exceptional; callers record it
// as an unsuccessful observation.
func (f *DetailFetcher) Fetch(ctx context.Context, productID string) *models.ProductDetail {
	var detail models.ProductDetail
	if err := f.client.GetJSON(ctx, f.productURL+"/"+productID, nil, &detail); err != nil {
		slog.Warn("product detail fetch failed",
			slog.String("product_id", productID),
			slog.Any("error", err),
		)
		return nil
	}
	if detail.ID == 0 {
		slog.Warn("product detail missing id", slog.String("product_id", productID))
		return nil
	}

	if seller := detail.CurrentSeller; seller != nil && seller.ID != 0 {
		detail.SellerInfo = &models.SellerInfo{
			ID:            seller.ID,
			Name:          seller.Name,
			Link:          seller.Link,
			TotalFollower: f.followerCount(ctx, seller.ID),
		}
	}
	return &detail
}

// followerCount looks up a seller's follower total, caching per run. A
// failed enrichment yields zero rather than failing the product.
func (f *DetailFetcher) followerCount(ctx context.Context, sellerID int64) int64 {
	if cached, ok := f.followers.Get(sellerID); ok {
		return cached
	}

	params := url.Values{"tiki_seller_id": {strconv.FormatInt(sellerID, 10)}}
	var resp sellerFollowingResponse
	if err := f.client.GetJSON(ctx, f.sellerURL, params, &resp); err != nil {
		slog.Warn("seller follower lookup failed",
			slog.Int64("seller_id", sellerID),
			slog.Any("error", err),
		)
		return 0
	}

	total := resp.Data.Following.TotalFollower
	f.followers.Add(sellerID, total)
	return total
}
