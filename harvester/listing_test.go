package harvester

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
)

func listingBody(ids []int64, currentPage, lastPage int) string {
	var entries []string
	for _, id := range ids {
		entries = append(entries, fmt.Sprintf(`{"id":%d}`, id))
	}
	return fmt.Sprintf(`{"data":[%s],"paging":{"current_page":%d,"last_page":%d}}`,
		strings.Join(entries, ","), currentPage, lastPage)
}

func registerListingPage(transport *httpmock.MockTransport, listingURL string, categoryID int64, pageSize, page int, body string, status int) {
	transport.RegisterResponderWithQuery("GET", listingURL,
		map[string]string{
			"limit":        fmt.Sprintf("%d", pageSize),
			"category":     fmt.Sprintf("%d", categoryID),
			"page":         fmt.Sprintf("%d", page),
			"aggregations": "2",
		},
		httpmock.NewStringResponder(status, body))
}

func TestTraverserPaginates(t *testing.T) {
	cfg := testConfig()
	cfg.ProductsPerPage = 2
	transport := httpmock.NewMockTransport()
	registerListingPage(transport, cfg.ListingURL, 100, 2, 1, listingBody([]int64{11, 12}, 1, 2), http.StatusOK)
	registerListingPage(transport, cfg.ListingURL, 100, 2, 2, listingBody([]int64{13, 14}, 2, 2), http.StatusOK)

	client := newTestClient(cfg, transport)
	tr := NewTraverser(client, cfg.ListingURL, cfg.ProductsPerPage)

	ids := tr.ProductIDs(context.Background(), 100, 10)
	want := []string{"11", "12", "13", "14"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("ids[%d] = %q, want %q", i, ids[i], id)
		}
	}
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls = %d, want 2 (stop at last page)", got)
	}
}

func TestTraverserHonorsMaxItems(t *testing.T) {
	cfg := testConfig()
	cfg.ProductsPerPage = 5
	transport := httpmock.NewMockTransport()
	registerListingPage(transport, cfg.ListingURL, 200, 5, 1, listingBody([]int64{1, 2, 3, 4, 5}, 1, 9), http.StatusOK)

	client := newTestClient(cfg, transport)
	tr := NewTraverser(client, cfg.ListingURL, cfg.ProductsPerPage)

	ids := tr.ProductIDs(context.Background(), 200, 3)
	if len(ids) != 3 {
		t.Fatalf("ids = %v, want 3 items", ids)
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("calls = %d, want 1 (cap reached on first page)", got)
	}
}

func TestTraverserEmptyPageEndsTraversal(t *testing.T) {
	cfg := testConfig()
	cfg.ProductsPerPage = 2
	transport := httpmock.NewMockTransport()
	registerListingPage(transport, cfg.ListingURL, 300, 2, 1, listingBody(nil, 1, 5), http.StatusOK)

	client := newTestClient(cfg, transport)
	tr := NewTraverser(client, cfg.ListingURL, cfg.ProductsPerPage)

	ids := tr.ProductIDs(context.Background(), 300, 10)
	if len(ids) != 0 {
		t.Fatalf("ids = %v, want none", ids)
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("calls = %d, want 1 (empty page ends traversal without retry)", got)
	}
}

func TestTraverserReturnsPartialOnError(t *testing.T) {
	cfg := testConfig()
	cfg.ProductsPerPage = 2
	cfg.MaxRetries = 1
	transport := httpmock.NewMockTransport()
	registerListingPage(transport, cfg.ListingURL, 400, 2, 1, listingBody([]int64{21, 22}, 1, 3), http.StatusOK)
	registerListingPage(transport, cfg.ListingURL, 400, 2, 2, "", http.StatusInternalServerError)

	client := newTestClient(cfg, transport)
	tr := NewTraverser(client, cfg.ListingURL, cfg.ProductsPerPage)

	ids := tr.ProductIDs(context.Background(), 400, 10)
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want the 2 collected before the failure", ids)
	}
}

func TestTraverserSkipsZeroIDs(t *testing.T) {
	cfg := testConfig()
	cfg.ProductsPerPage = 3
	transport := httpmock.NewMockTransport()
	registerListingPage(transport, cfg.ListingURL, 500, 3, 1, listingBody([]int64{31, 0, 33}, 1, 1), http.StatusOK)

	client := newTestClient(cfg, transport)
	tr := NewTraverser(client, cfg.ListingURL, cfg.ProductsPerPage)

	ids := tr.ProductIDs(context.Background(), 500, 10)
	if len(ids) != 2 || ids[0] != "31" || ids[1] != "33" {
		t.Fatalf("ids = %v, want [31 33]", ids)
	}
}
