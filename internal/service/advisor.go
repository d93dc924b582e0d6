package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shopadvisor/internal/model"
)

// ConstraintExtractor is the extraction stage seen by the advisor.
type ConstraintExtractor interface {
	Extract(ctx context.Context, utt model.Utterance) (*model.ExtractionResult, error)
}

// CatalogSource is the catalog stage seen by the advisor.
type CatalogSource interface {
	Query(ctx context.Context, constraints *model.ConstraintSet) (*model.QueryResult, error)
}

// Advisor runs one full conversation turn: extract, query, rank, format.
// Upstream outages surface as an UpstreamUnavailable payload, never disguised
// as an empty result.
type Advisor struct {
	extractor ConstraintExtractor
	catalog   CatalogSource
	ranker    *Ranker
	formatter *Formatter
	log       *zap.Logger
}

// NewAdvisor creates a new conversation advisor
func NewAdvisor(extractor ConstraintExtractor, catalog CatalogSource, ranker *Ranker, formatter *Formatter, log *zap.Logger) *Advisor {
	return &Advisor{
		extractor: extractor,
		catalog:   catalog,
		ranker:    ranker,
		formatter: formatter,
		log:       log,
	}
}

// HandleTurn processes one utterance into an answer payload.
func (a *Advisor) HandleTurn(ctx context.Context, utt model.Utterance) (model.AnswerPayload, error) {
	turnID := uuid.NewString()
	start := time.Now()
	log := a.log.With(
		zap.String("turn_id", turnID),
		zap.String("conversation_id", utt.ConversationID))

	result, err := a.extractor.Extract(ctx, utt)
	if err != nil {
		if IsKind(err, ErrUpstreamUnavailable) {
			log.Error("generation provider unavailable", zap.Error(err))
			return model.AnswerPayload{Kind: model.AnswerUpstreamUnavailable}, nil
		}
		return model.AnswerPayload{}, err
	}

	if result.IsClarification() {
		log.Info("turn resolved with clarification",
			zap.Strings("missing_fields", result.Clarification.MissingFields),
			zap.Duration("took", time.Since(start)))
		return model.AnswerPayload{
			Kind:     model.AnswerClarification,
			Question: result.Clarification.Question,
		}, nil
	}

	queryResult, err := a.catalog.Query(ctx, result.Constraints)
	if err != nil {
		if IsKind(err, ErrUpstreamUnavailable) {
			log.Error("catalog unavailable", zap.Error(err))
			return model.AnswerPayload{Kind: model.AnswerUpstreamUnavailable}, nil
		}
		return model.AnswerPayload{}, err
	}

	ranked := a.ranker.Rank(queryResult.Products, result.Constraints)
	payload := a.formatter.Format(ranked)

	log.Info("turn resolved",
		zap.String("kind", string(payload.Kind)),
		zap.Int("candidates", len(queryResult.Products)),
		zap.Int("matches", payload.TotalMatches),
		zap.Duration("took", time.Since(start)))

	return payload, nil
}
