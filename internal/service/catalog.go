package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shopadvisor/internal/config"
	"shopadvisor/internal/model"
	"shopadvisor/internal/retry"
	"shopadvisor/internal/utils"
)

// CatalogAdapter maps a constraint set onto catalog search requests, walks the
// pagination with bounded fan-out, and normalizes the heterogeneous upstream
// records into CanonicalProduct. Repeated calls with identical constraints
// against an unchanged catalog return the same set; ordering within a page is
// the catalog's business and callers must not rely on it.
type CatalogAdapter struct {
	fetcher     PageFetcher
	pageSize    int
	maxPages    int
	maxInFlight int
	log         *zap.Logger
}

// NewCatalogAdapter creates a new catalog query adapter
func NewCatalogAdapter(fetcher PageFetcher, cfg *config.CatalogConfig, log *zap.Logger) *CatalogAdapter {
	return &CatalogAdapter{
		fetcher:     fetcher,
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		maxInFlight: cfg.MaxInFlight,
		log:         log,
	}
}

// Query resolves a constraint set against the live catalog. A persistent
// upstream failure yields an UpstreamUnavailable error, never an empty result:
// "no matches" and "search failed" mean different things to the user.
func (a *CatalogAdapter) Query(ctx context.Context, constraints *model.ConstraintSet) (*model.QueryResult, error) {
	query := a.buildQuery(constraints)

	first, err := a.fetchPage(ctx, query, 1)
	if err != nil {
		return nil, newError(ErrUpstreamUnavailable, "catalog_fetch_failed", err)
	}

	// Page-count ceiling bounds turn latency on large catalogs. A store that
	// omits the paging header reports 0 pages; the first page still counts.
	totalPages := first.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}
	if totalPages > a.maxPages {
		totalPages = a.maxPages
	}

	pages := make([][]RawProduct, totalPages+1)
	pages[1] = first.Products

	if totalPages > 1 {
		g, groupCtx := errgroup.WithContext(ctx)
		g.SetLimit(a.maxInFlight)
		for page := 2; page <= totalPages; page++ {
			page := page
			g.Go(func() error {
				result, err := a.fetchPage(groupCtx, query, page)
				if err != nil {
					return fmt.Errorf("page %d: %w", page, err)
				}
				pages[page] = result.Products
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, newError(ErrUpstreamUnavailable, "catalog_fetch_failed", err)
		}
	}

	result := &model.QueryResult{}
	for _, page := range pages {
		for _, raw := range page {
			product, ok := normalizeProduct(raw)
			if !ok {
				result.Skipped++
				continue
			}
			result.Products = append(result.Products, product)
		}
	}

	if result.Skipped > 0 {
		a.log.Info("skipped unnormalizable catalog records",
			zap.Int("skipped", result.Skipped),
			zap.Int("kept", len(result.Products)))
	}

	return result, nil
}

// fetchPage retries a single page once with backoff before giving up.
func (a *CatalogAdapter) fetchPage(ctx context.Context, query CatalogQuery, page int) (*CatalogPage, error) {
	var result *CatalogPage
	err := retry.Do(ctx, retry.Once(), func() error {
		p, err := a.fetcher.FetchPage(ctx, query, page)
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildQuery derives the upstream search from category and attribute values.
// Free-text hints never reach the catalog: they only nudge ranking.
func (a *CatalogAdapter) buildQuery(constraints *model.ConstraintSet) CatalogQuery {
	var terms []string
	if constraints.Category != nil {
		terms = append(terms, *constraints.Category)
	}
	for _, name := range sortedAttributeNames(constraints.Attributes) {
		terms = append(terms, constraints.Attributes[name])
	}
	return CatalogQuery{
		Search:      utils.SanitizeSearchTerm(strings.Join(terms, " ")),
		InStockOnly: constraints.RequireInStock,
		PerPage:     a.pageSize,
	}
}

// normalizeProduct maps one raw record into the canonical shape. Records
// without a usable identifier or price are not salvageable.
func normalizeProduct(raw RawProduct) (model.CanonicalProduct, bool) {
	if raw.ID == 0 {
		return model.CanonicalProduct{}, false
	}
	priceMinor, ok := parsePriceMinor(raw.Price, raw.RegularPrice)
	if !ok {
		return model.CanonicalProduct{}, false
	}

	product := model.CanonicalProduct{
		ID:         strconv.FormatInt(raw.ID, 10),
		Name:       strings.TrimSpace(raw.Name),
		PriceMinor: priceMinor,
		InStock:    isInStock(raw),
		URL:        strings.TrimSpace(raw.Permalink),
	}
	if len(raw.Categories) > 0 {
		product.Category = strings.TrimSpace(raw.Categories[0].Name)
	}
	for _, attr := range raw.Attributes {
		name := strings.TrimSpace(attr.Name)
		if name == "" || len(attr.Options) == 0 {
			continue
		}
		if product.Attributes == nil {
			product.Attributes = make(map[string]string, len(raw.Attributes))
		}
		product.Attributes[name] = strings.TrimSpace(attr.Options[0])
	}
	return product, true
}

// parsePriceMinor reads the upstream decimal price string, falling back to
// the regular price when the sale price is absent.
func parsePriceMinor(price, regularPrice string) (int64, bool) {
	for _, s := range []string{price, regularPrice} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			continue
		}
		return int64(math.Round(v)), true
	}
	return 0, false
}

// isInStock applies the store's stock semantics: the status flag wins, and
// managed-stock products fall back to the live quantity.
func isInStock(raw RawProduct) bool {
	if raw.StockStatus == "instock" {
		return true
	}
	if raw.ManageStock && raw.StockQuantity != nil {
		return *raw.StockQuantity > 0
	}
	return false
}
