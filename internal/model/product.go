package model

// CanonicalProduct is a catalog item normalized into the service's internal
// shape, independent of upstream field naming. Prices are kept in the catalog's
// minor currency unit; display conversion happens in the formatter.
type CanonicalProduct struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	PriceMinor int64             `json:"price_minor"`
	InStock    bool              `json:"in_stock"`
	Category   string            `json:"category,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	URL        string            `json:"url,omitempty"`
}

// RankedProduct is a scored product with the reasons each rule fired.
type RankedProduct struct {
	CanonicalProduct
	Score        float64  `json:"score"`
	MatchReasons []string `json:"match_reasons"`
}

// QueryResult is what the catalog adapter hands to the ranker: the joined,
// normalized pages plus a count of raw records dropped during normalization.
type QueryResult struct {
	Products []CanonicalProduct `json:"products"`
	Skipped  int                `json:"skipped"`
}
