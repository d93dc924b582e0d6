package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopadvisor/internal/config"
	"shopadvisor/internal/model"
	"shopadvisor/internal/service"
	"shopadvisor/internal/telegram"
)

type stubExtractor struct {
	result *model.ExtractionResult
}

func (s *stubExtractor) Extract(context.Context, model.Utterance) (*model.ExtractionResult, error) {
	return s.result, nil
}

type stubCatalog struct {
	result *model.QueryResult
}

func (s *stubCatalog) Query(context.Context, *model.ConstraintSet) (*model.QueryResult, error) {
	return s.result, nil
}

func testAdvisor(extractor service.ConstraintExtractor, catalog service.CatalogSource) *service.Advisor {
	return service.NewAdvisor(
		extractor,
		catalog,
		service.NewRanker(config.RankingConfig{BudgetFitScore: 3, BudgetNearScore: 1, BudgetSlack: 0.15, AttributeScore: 2, AttributePenalty: -1, HintScore: 0.5, HintBonusCap: 2}),
		service.NewFormatter(config.PresentationConfig{PriceDivisor: 1, CurrencyLabel: "تومان", ResultsLimit: 5}),
		zap.NewNop(),
	)
}

func TestWebhookSendsResults(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var sent map[string]any
	botServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/sendMessage"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer botServer.Close()

	bot := telegram.NewClient("test-token", true).WithAPIBase(botServer.URL)
	advisor := testAdvisor(
		&stubExtractor{result: &model.ExtractionResult{Constraints: model.NewConstraintSet()}},
		&stubCatalog{result: &model.QueryResult{Products: []model.CanonicalProduct{
			{ID: "1", Name: "Classic Watch", PriceMinor: 1000000, InStock: true, URL: "https://shop.example/p/1"},
		}}},
	)

	router := gin.New()
	router.POST("/telegram/webhook", NewWebhookHandler(advisor, bot, zap.NewNop()).Handle)

	body, _ := json.Marshal(telegram.Update{Message: &telegram.Message{
		Chat: telegram.Chat{ID: 12345},
		Text: "یک ساعت کلاسیک می‌خوام",
	}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, sent)
	assert.Equal(t, float64(12345), sent["chat_id"])
	assert.Equal(t, "HTML", sent["parse_mode"])

	text := sent["text"].(string)
	assert.Contains(t, text, msgResultsHeader)
	assert.Contains(t, text, "Classic Watch")
	assert.Contains(t, text, "1٬000٬000 تومان")
	assert.Contains(t, text, "https://shop.example/p/1")
}

func TestWebhookIgnoresNonTextUpdates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	bot := telegram.NewClient("test-token", true)
	advisor := testAdvisor(
		&stubExtractor{result: &model.ExtractionResult{Constraints: model.NewConstraintSet()}},
		&stubCatalog{result: &model.QueryResult{}},
	)

	router := gin.New()
	router.POST("/telegram/webhook", NewWebhookHandler(advisor, bot, zap.NewNop()).Handle)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id": 1}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRenderAnswerVariants(t *testing.T) {
	clarification := renderAnswer(model.AnswerPayload{
		Kind:     model.AnswerClarification,
		Question: "چه بودجه‌ای داری؟",
	})
	assert.Equal(t, "چه بودجه‌ای داری؟", clarification)

	assert.Equal(t, msgNoMatches, renderAnswer(model.AnswerPayload{Kind: model.AnswerNoMatches}))
	assert.Equal(t, msgUpstreamDown, renderAnswer(model.AnswerPayload{Kind: model.AnswerUpstreamUnavailable}))
}

func TestRenderAnswerEscapesHTML(t *testing.T) {
	text := renderAnswer(model.AnswerPayload{
		Kind: model.AnswerResults,
		Lines: []model.ProductLine{
			{Name: "Watch <script>", DisplayPrice: "100 تومان"},
		},
		TotalMatches: 1,
	})
	assert.NotContains(t, text, "<script>")
	assert.Contains(t, text, "&lt;script&gt;")
}

func TestRenderAnswerOverflowNote(t *testing.T) {
	text := renderAnswer(model.AnswerPayload{
		Kind: model.AnswerResults,
		Lines: []model.ProductLine{
			{Name: "A", DisplayPrice: "100 تومان"},
		},
		TotalMatches: 8,
	})
	assert.Contains(t, text, "7")
}
