package service

import (
	"fmt"

	"shopadvisor/internal/config"
	"shopadvisor/internal/model"
)

// Formatter turns a ranked product list into the channel-neutral answer
// payload. It is a pure function of its input: no I/O, no clock.
type Formatter struct {
	divisor int64
	label   string
	limit   int
}

// NewFormatter creates a new answer formatter
func NewFormatter(cfg config.PresentationConfig) *Formatter {
	return &Formatter{
		divisor: cfg.PriceDivisor,
		label:   cfg.CurrencyLabel,
		limit:   cfg.ResultsLimit,
	}
}

// Format renders the top results. TotalMatches always reflects the full
// ranked count, even when the line list is truncated to the display limit.
func (f *Formatter) Format(ranked []model.RankedProduct) model.AnswerPayload {
	if len(ranked) == 0 {
		return model.AnswerPayload{Kind: model.AnswerNoMatches}
	}

	shown := ranked
	if len(shown) > f.limit {
		shown = shown[:f.limit]
	}

	lines := make([]model.ProductLine, 0, len(shown))
	for _, p := range shown {
		lines = append(lines, model.ProductLine{
			Name:         p.Name,
			DisplayPrice: f.displayPrice(p.PriceMinor),
			URL:          p.URL,
			MatchReasons: p.MatchReasons,
		})
	}

	return model.AnswerPayload{
		Kind:         model.AnswerResults,
		Lines:        lines,
		TotalMatches: len(ranked),
	}
}

// displayPrice converts minor units into the display currency with integer
// division, then appends the currency label.
func (f *Formatter) displayPrice(priceMinor int64) string {
	return fmt.Sprintf("%d %s", priceMinor/f.divisor, f.label)
}
