package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopadvisor/internal/config"
	"shopadvisor/internal/model"
)

func TestFormatDisplayPrice(t *testing.T) {
	f := NewFormatter(config.PresentationConfig{
		PriceDivisor:  10,
		CurrencyLabel: "تومان",
		ResultsLimit:  5,
	})

	payload := f.Format([]model.RankedProduct{
		{CanonicalProduct: model.CanonicalProduct{Name: "Watch", PriceMinor: 1000000, URL: "https://shop.example/p/1"}, Score: 3, MatchReasons: []string{ReasonInBudget}},
	})

	require.Equal(t, model.AnswerResults, payload.Kind)
	require.Len(t, payload.Lines, 1)
	assert.Equal(t, "100000 تومان", payload.Lines[0].DisplayPrice)
	assert.Equal(t, "Watch", payload.Lines[0].Name)
	assert.Equal(t, []string{ReasonInBudget}, payload.Lines[0].MatchReasons)
	assert.Equal(t, 1, payload.TotalMatches)
}

func TestFormatTruncation(t *testing.T) {
	f := NewFormatter(config.PresentationConfig{
		PriceDivisor:  1,
		CurrencyLabel: "تومان",
		ResultsLimit:  2,
	})

	ranked := make([]model.RankedProduct, 7)
	for i := range ranked {
		ranked[i].PriceMinor = int64(i + 1)
	}

	payload := f.Format(ranked)
	assert.Len(t, payload.Lines, 2)
	// The full match count survives truncation.
	assert.Equal(t, 7, payload.TotalMatches)
}

func TestFormatNoMatches(t *testing.T) {
	f := NewFormatter(config.PresentationConfig{
		PriceDivisor:  1,
		CurrencyLabel: "تومان",
		ResultsLimit:  5,
	})

	payload := f.Format(nil)
	assert.Equal(t, model.AnswerNoMatches, payload.Kind)
	assert.Empty(t, payload.Lines)
	assert.Zero(t, payload.TotalMatches)
}
