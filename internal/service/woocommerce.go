package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"shopadvisor/internal/config"
)

// CatalogQuery is one upstream product search. Budget bounds are deliberately
// absent: price is filtered downstream by the ranker, because catalog price
// attribute slugs and currency units are unreliable upstream.
type CatalogQuery struct {
	Search      string
	InStockOnly bool
	PerPage     int
}

// CatalogPage is one page of raw catalog records plus the paging signal.
type CatalogPage struct {
	Products   []RawProduct
	TotalPages int
}

// RawProduct mirrors the upstream WooCommerce product shape, prior to
// normalization into CanonicalProduct.
type RawProduct struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Price         string         `json:"price"`
	RegularPrice  string         `json:"regular_price"`
	StockStatus   string         `json:"stock_status"`
	ManageStock   bool           `json:"manage_stock"`
	StockQuantity *int           `json:"stock_quantity"`
	Permalink     string         `json:"permalink"`
	Categories    []namedRef     `json:"categories"`
	Attributes    []rawAttribute `json:"attributes"`
}

type namedRef struct {
	Name string `json:"name"`
}

type rawAttribute struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

// PageFetcher fetches one catalog page; the adapter owns pagination, fan-out
// and normalization.
type PageFetcher interface {
	FetchPage(ctx context.Context, query CatalogQuery, page int) (*CatalogPage, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("catalog: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// WooClient talks to the WooCommerce REST v3 products endpoint. Authentication
// uses consumer key/secret query parameters, the scheme the store exposes for
// server-to-server access.
type WooClient struct {
	baseURL    string
	key        string
	secret     string
	httpClient *http.Client
}

// NewWooClient creates a catalog client from configuration. The per-page
// timeout lives on the HTTP client so a hung page cannot stall the turn.
func NewWooClient(cfg *config.CatalogConfig) *WooClient {
	return &WooClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.Key,
		secret:  cfg.Secret,
		httpClient: &http.Client{
			Timeout: cfg.PageTimeout,
		},
	}
}

// FetchPage fetches a single products page. The returned TotalPages comes
// from the X-WP-TotalPages header (0 when the store omits it).
func (c *WooClient) FetchPage(ctx context.Context, query CatalogQuery, page int) (*CatalogPage, error) {
	params := url.Values{}
	params.Set("consumer_key", c.key)
	params.Set("consumer_secret", c.secret)
	params.Set("status", "publish")
	params.Set("orderby", "relevance")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(query.PerPage))
	params.Set("page", strconv.Itoa(page))
	if query.Search != "" {
		params.Set("search", query.Search)
	}
	if query.InStockOnly {
		params.Set("stock_status", "instock")
	}

	endpoint := fmt.Sprintf("%s/wp-json/wc/v3/products?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: c.baseURL, Body: string(buf)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("catalog: read response: %w", err)
	}

	var products []RawProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}

	totalPages, _ := strconv.Atoi(resp.Header.Get("X-WP-TotalPages"))

	return &CatalogPage{Products: products, TotalPages: totalPages}, nil
}
