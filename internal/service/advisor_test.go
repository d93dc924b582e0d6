package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopadvisor/internal/config"
	"shopadvisor/internal/model"
)

type fakeExtractor struct {
	result *model.ExtractionResult
	err    error
}

func (f *fakeExtractor) Extract(context.Context, model.Utterance) (*model.ExtractionResult, error) {
	return f.result, f.err
}

type fakeCatalog struct {
	result *model.QueryResult
	err    error
}

func (f *fakeCatalog) Query(context.Context, *model.ConstraintSet) (*model.QueryResult, error) {
	return f.result, f.err
}

func newTestAdvisor(extractor ConstraintExtractor, catalog CatalogSource) *Advisor {
	return NewAdvisor(
		extractor,
		catalog,
		NewRanker(defaultRankingConfig()),
		NewFormatter(config.PresentationConfig{PriceDivisor: 1, CurrencyLabel: "تومان", ResultsLimit: 5}),
		zap.NewNop(),
	)
}

func TestHandleTurnResults(t *testing.T) {
	extractor := &fakeExtractor{result: &model.ExtractionResult{Constraints: model.NewConstraintSet()}}
	catalog := &fakeCatalog{result: &model.QueryResult{Products: []model.CanonicalProduct{
		{ID: "1", Name: "Watch", PriceMinor: 100, InStock: true},
	}}}

	payload, err := newTestAdvisor(extractor, catalog).HandleTurn(context.Background(), model.Utterance{Text: "x", ConversationID: "c"})
	require.NoError(t, err)
	assert.Equal(t, model.AnswerResults, payload.Kind)
	require.Len(t, payload.Lines, 1)
	assert.Equal(t, "Watch", payload.Lines[0].Name)
}

func TestHandleTurnClarification(t *testing.T) {
	extractor := &fakeExtractor{result: &model.ExtractionResult{
		Clarification: &model.ClarificationRequest{Question: "چی می‌خوای؟"},
	}}
	catalog := &fakeCatalog{}

	payload, err := newTestAdvisor(extractor, catalog).HandleTurn(context.Background(), model.Utterance{Text: "x", ConversationID: "c"})
	require.NoError(t, err)
	assert.Equal(t, model.AnswerClarification, payload.Kind)
	assert.Equal(t, "چی می‌خوای؟", payload.Question)
}

func TestHandleTurnNoMatchesVsUnavailable(t *testing.T) {
	extractor := &fakeExtractor{result: &model.ExtractionResult{Constraints: model.NewConstraintSet()}}

	// Empty catalog answer.
	payload, err := newTestAdvisor(extractor, &fakeCatalog{result: &model.QueryResult{}}).
		HandleTurn(context.Background(), model.Utterance{Text: "x", ConversationID: "c"})
	require.NoError(t, err)
	assert.Equal(t, model.AnswerNoMatches, payload.Kind)

	// Failed search looks different from an empty one.
	broken := &fakeCatalog{err: newError(ErrUpstreamUnavailable, "catalog_fetch_failed", assert.AnError)}
	payload, err = newTestAdvisor(extractor, broken).
		HandleTurn(context.Background(), model.Utterance{Text: "x", ConversationID: "c"})
	require.NoError(t, err)
	assert.Equal(t, model.AnswerUpstreamUnavailable, payload.Kind)
}

func TestHandleTurnGenerationUnavailable(t *testing.T) {
	extractor := &fakeExtractor{err: newError(ErrUpstreamUnavailable, "generation_failed", assert.AnError)}

	payload, err := newTestAdvisor(extractor, &fakeCatalog{}).
		HandleTurn(context.Background(), model.Utterance{Text: "x", ConversationID: "c"})
	require.NoError(t, err)
	assert.Equal(t, model.AnswerUpstreamUnavailable, payload.Kind)
}
