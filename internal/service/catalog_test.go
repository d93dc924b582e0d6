package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopadvisor/internal/config"
	"shopadvisor/internal/model"
)

type fakePageFetcher struct {
	mu      sync.Mutex
	pages   map[int]*CatalogPage
	err     error
	calls   []int
	queries []CatalogQuery
}

func (f *fakePageFetcher) FetchPage(_ context.Context, query CatalogQuery, page int) (*CatalogPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, page)
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.pages[page]
	if !ok {
		return nil, fmt.Errorf("fake: no page %d", page)
	}
	return p, nil
}

func testCatalogConfig() *config.CatalogConfig {
	return &config.CatalogConfig{
		PageSize:    50,
		MaxPages:    5,
		MaxInFlight: 4,
	}
}

func rawProduct(id int64, price string) RawProduct {
	return RawProduct{
		ID:          id,
		Name:        fmt.Sprintf("product %d", id),
		Price:       price,
		StockStatus: "instock",
	}
}

func TestCatalogQueryPagination(t *testing.T) {
	fetcher := &fakePageFetcher{pages: map[int]*CatalogPage{
		1: {Products: []RawProduct{rawProduct(1, "100"), rawProduct(2, "200")}, TotalPages: 3},
		2: {Products: []RawProduct{rawProduct(3, "300")}},
		3: {Products: []RawProduct{rawProduct(4, "400")}},
	}}
	adapter := NewCatalogAdapter(fetcher, testCatalogConfig(), zap.NewNop())

	result, err := adapter.Query(context.Background(), model.NewConstraintSet())
	require.NoError(t, err)
	require.Len(t, result.Products, 4)

	// Page order survives the concurrent fetch.
	ids := make([]string, 0, len(result.Products))
	for _, p := range result.Products {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
}

func TestCatalogQueryMissingPagingHeader(t *testing.T) {
	// A store that omits X-WP-TotalPages reports 0 pages; the single page it
	// returned is still the whole result.
	fetcher := &fakePageFetcher{pages: map[int]*CatalogPage{
		1: {Products: []RawProduct{rawProduct(1, "100"), rawProduct(2, "200")}, TotalPages: 0},
	}}
	adapter := NewCatalogAdapter(fetcher, testCatalogConfig(), zap.NewNop())

	result, err := adapter.Query(context.Background(), model.NewConstraintSet())
	require.NoError(t, err)
	assert.Len(t, result.Products, 2)
	assert.Equal(t, []int{1}, fetcher.calls)
}

func TestCatalogQueryPageCap(t *testing.T) {
	cfg := testCatalogConfig()
	cfg.MaxPages = 2
	fetcher := &fakePageFetcher{pages: map[int]*CatalogPage{
		1: {Products: []RawProduct{rawProduct(1, "100")}, TotalPages: 10},
		2: {Products: []RawProduct{rawProduct(2, "200")}},
	}}
	adapter := NewCatalogAdapter(fetcher, cfg, zap.NewNop())

	result, err := adapter.Query(context.Background(), model.NewConstraintSet())
	require.NoError(t, err)
	assert.Len(t, result.Products, 2)

	for _, page := range fetcher.calls {
		assert.LessOrEqual(t, page, 2)
	}
}

func TestCatalogQueryUpstreamFailure(t *testing.T) {
	fetcher := &fakePageFetcher{err: errors.New("connection reset")}
	adapter := NewCatalogAdapter(fetcher, testCatalogConfig(), zap.NewNop())

	_, err := adapter.Query(context.Background(), model.NewConstraintSet())
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrUpstreamUnavailable))
	// First page gets one retry before the turn fails.
	assert.Equal(t, []int{1, 1}, fetcher.calls)
}

func TestCatalogQuerySkipsUnnormalizable(t *testing.T) {
	fetcher := &fakePageFetcher{pages: map[int]*CatalogPage{
		1: {Products: []RawProduct{
			rawProduct(1, "100"),
			{ID: 0, Name: "no id", Price: "100"},
			{ID: 2, Name: "no price"},
			{ID: 3, Name: "bad price", Price: "free!"},
		}, TotalPages: 1},
	}}
	adapter := NewCatalogAdapter(fetcher, testCatalogConfig(), zap.NewNop())

	result, err := adapter.Query(context.Background(), model.NewConstraintSet())
	require.NoError(t, err)
	assert.Len(t, result.Products, 1)
	assert.Equal(t, 3, result.Skipped)
}

func TestCatalogQuerySearchTerms(t *testing.T) {
	fetcher := &fakePageFetcher{pages: map[int]*CatalogPage{
		1: {TotalPages: 1},
	}}
	adapter := NewCatalogAdapter(fetcher, testCatalogConfig(), zap.NewNop())

	constraints := model.NewConstraintSet()
	constraints.Category = strPtr("ساعت!")
	constraints.Attributes = map[string]string{"color": "مشکی"}

	_, err := adapter.Query(context.Background(), constraints)
	require.NoError(t, err)
	require.Len(t, fetcher.queries, 1)
	assert.Equal(t, "ساعت مشکی", fetcher.queries[0].Search)
	assert.True(t, fetcher.queries[0].InStockOnly)
	assert.Equal(t, 50, fetcher.queries[0].PerPage)
}

func TestNormalizeProduct(t *testing.T) {
	qty := 3
	raw := RawProduct{
		ID:            42,
		Name:          "  Classic Watch  ",
		Price:         "",
		RegularPrice:  "549000.00",
		StockStatus:   "outofstock",
		ManageStock:   true,
		StockQuantity: &qty,
		Permalink:     "https://shop.example/p/42",
		Categories:    []namedRef{{Name: "Watches"}, {Name: "Accessories"}},
		Attributes: []rawAttribute{
			{Name: "Color", Options: []string{"Black", "Silver"}},
			{Name: "", Options: []string{"ignored"}},
			{Name: "Band", Options: nil},
		},
	}

	product, ok := normalizeProduct(raw)
	require.True(t, ok)
	assert.Equal(t, "42", product.ID)
	assert.Equal(t, "Classic Watch", product.Name)
	assert.Equal(t, int64(549000), product.PriceMinor)
	assert.True(t, product.InStock) // managed stock with positive quantity
	assert.Equal(t, "Watches", product.Category)
	assert.Equal(t, map[string]string{"Color": "Black"}, product.Attributes)
}

func TestIsInStock(t *testing.T) {
	zero, three := 0, 3
	tests := []struct {
		name string
		raw  RawProduct
		want bool
	}{
		{"status flag", RawProduct{StockStatus: "instock"}, true},
		{"out of stock unmanaged", RawProduct{StockStatus: "outofstock"}, false},
		{"managed positive quantity", RawProduct{StockStatus: "outofstock", ManageStock: true, StockQuantity: &three}, true},
		{"managed zero quantity", RawProduct{StockStatus: "outofstock", ManageStock: true, StockQuantity: &zero}, false},
		{"managed nil quantity", RawProduct{StockStatus: "outofstock", ManageStock: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isInStock(tt.raw))
		})
	}
}

func TestWooClientFetchPage(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wp-json/wc/v3/products", r.URL.Path)
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("X-WP-TotalPages", "4")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id": 7, "name": "Watch", "price": "100", "stock_status": "instock"}]`)
	}))
	defer server.Close()

	client := NewWooClient(&config.CatalogConfig{
		BaseURL: server.URL,
		Key:     "ck_test",
		Secret:  "cs_test",
	})

	page, err := client.FetchPage(context.Background(), CatalogQuery{
		Search:      "watch",
		InStockOnly: true,
		PerPage:     50,
	}, 2)
	require.NoError(t, err)

	assert.Equal(t, 4, page.TotalPages)
	require.Len(t, page.Products, 1)
	assert.Equal(t, int64(7), page.Products[0].ID)

	assert.Equal(t, "ck_test", gotQuery["consumer_key"])
	assert.Equal(t, "cs_test", gotQuery["consumer_secret"])
	assert.Equal(t, "publish", gotQuery["status"])
	assert.Equal(t, "relevance", gotQuery["orderby"])
	assert.Equal(t, "desc", gotQuery["order"])
	assert.Equal(t, "watch", gotQuery["search"])
	assert.Equal(t, "instock", gotQuery["stock_status"])
	assert.Equal(t, "50", gotQuery["per_page"])
	assert.Equal(t, "2", gotQuery["page"])
}

func TestWooClientStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream exploded")
	}))
	defer server.Close()

	client := NewWooClient(&config.CatalogConfig{BaseURL: server.URL})

	_, err := client.FetchPage(context.Background(), CatalogQuery{PerPage: 10}, 1)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}
