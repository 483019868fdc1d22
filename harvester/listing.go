package harvester

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
)

type listingResponse struct {
	Data []struct {
		ID int64 `json:"id"`
	} `json:"data"`
	Paging struct {
		CurrentPage int `json:"current_page"`
		LastPage    int `json:"last_page"`
	} `json:"paging"`
}

// Traverser walks a category's paginated listing endpoint. Pagination is
// inherently ordered, so traversal is strictly sequential.
type Traverser struct {
	client     *Client
	listingURL string
	pageSize   int
}

// NewTraverser builds a traverser issuing requests through client.
func NewTraverser(client *Client, listingURL string, pageSize int) *Traverser {
	return &Traverser{
		client:     client,
		listingURL: listingURL,
		pageSize:   pageSize,
	}
}

// ProductIDs collects product identifiers for a category, at most maxItems.
// A failed or empty page ends traversal early; partial results are returned
// rather than discarded. An empty page is treated as end-of-results without
// a retry, matching upstream behavior.
func (t *Traverser) ProductIDs(ctx context.Context, categoryID int64, maxItems int) []string {
	var ids []string
	page := 1

	for len(ids) < maxItems {
		params := url.Values{
			"limit":        {strconv.Itoa(t.pageSize)},
			"category":     {strconv.FormatInt(categoryID, 10)},
			"page":         {strconv.Itoa(page)},
			"aggregations": {"2"},
		}

		var resp listingResponse
		if err := t.client.GetJSON(ctx, t.listingURL, params, &resp); err != nil {
			slog.Error("listing page fetch failed, returning partial results",
				slog.Int64("category_id", categoryID),
				slog.Int("page", page),
				slog.Any("error", err),
			)
			break
		}

		if len(resp.Data) == 0 {
			break
		}
		for _, product := range resp.Data {
			if len(ids) >= maxItems {
				break
			}
			if product.ID == 0 {
				continue
			}
			ids = append(ids, strconv.FormatInt(product.ID, 10))
		}

		if resp.Paging.CurrentPage >= resp.Paging.LastPage {
			break
		}
		page++
	}

	slog.Info("collected product ids",
		slog.Int64("category_id", categoryID),
		slog.Int("count", len(ids)),
	)
	return ids
}
