package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"shopadvisor/internal/model"
	"shopadvisor/internal/repository"
	"shopadvisor/internal/retry"
	"shopadvisor/internal/utils"
)

const extractorSystemPrompt = `تو یک دستیار فروش حرفه‌ای برای فروشگاه هستی.
- پاسخ‌هایت کوتاه، دقیق و محترمانه باشد.
- اگر برای توصیه خرید به اطلاعات بیشتری نیاز داری، حداکثر ۲ سؤال روشن‌کننده بپرس.
- بودجه را اگر کاربر گفت، در budget_min/budget_max بنویس؛ واحد همان واحد فروشگاه است.

You convert the user's message into a JSON object matching the schema exactly.
Rules:
- Set "kind" to "constraints" when the message describes a product to search
  for; fill category, attributes, budget_min, budget_max, require_in_stock and
  free_text_hints from the message. Leave unknown fields null or empty.
- Set "kind" to "clarification" when you need more detail before searching;
  put one short question (same language as the user) in "question" and list
  the unknown field names in "missing_fields". You may still fill any
  constraint fields the message did supply.
- free_text_hints holds leftover descriptive words that fit no other field.
- Never invent values the user did not state.`

const fallbackQuestion = "لطفاً کمی دقیق‌تر بگو دنبال چه محصولی هستی؟ دسته، ویژگی‌ها یا بودجه را مشخص کن."

const budgetQuestion = "بازه بودجه‌ای که گفتی درست به نظر نمی‌رسد؛ لطفاً حداقل و حداکثر بودجه را دوباره بگو."

// extractionWire is the flat shape the generation provider returns; the kind
// tag selects which ExtractionResult variant it becomes.
type extractionWire struct {
	Kind           string          `json:"kind" validate:"required,oneof=constraints clarification"`
	Category       *string         `json:"category"`
	Attributes     []wireAttribute `json:"attributes" validate:"dive"`
	BudgetMin      *float64        `json:"budget_min" validate:"omitempty,gte=0"`
	BudgetMax      *float64        `json:"budget_max" validate:"omitempty,gte=0"`
	RequireInStock *bool           `json:"require_in_stock"`
	FreeTextHints  []string        `json:"free_text_hints"`
	Question       *string         `json:"question"`
	MissingFields  []string        `json:"missing_fields"`
}

type wireAttribute struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// Extractor converts an utterance plus conversation history into either a
// ConstraintSet or a ClarificationRequest, and keeps the conversation state
// in step. The generation call is non-deterministic; schema enforcement and
// the merge rule are not.
type Extractor struct {
	llm      GenerationClient
	store    repository.StateStore
	validate *validator.Validate
	timeout  time.Duration
	log      *zap.Logger
}

// NewExtractor creates a new constraint extractor
func NewExtractor(llm GenerationClient, store repository.StateStore, timeout time.Duration, log *zap.Logger) *Extractor {
	return &Extractor{
		llm:      llm,
		store:    store,
		validate: validator.New(),
		timeout:  timeout,
		log:      log,
	}
}

// Extract runs one extraction turn. An UpstreamUnavailable error means the
// generation provider could not be reached; every other failure mode is
// recovered into a clarification result.
func (e *Extractor) Extract(ctx context.Context, utt model.Utterance) (*model.ExtractionResult, error) {
	prior, err := e.store.Get(ctx, utt.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation state: %w", err)
	}

	text := strings.TrimSpace(utt.Text)
	if text == "" {
		// An empty message must not wipe partial constraints gathered so far.
		result := clarificationResult(fallbackQuestion, []string{"category"})
		return result, e.saveClarified(ctx, utt.ConversationID, pendingConstraints(prior))
	}

	wire, err := e.callModel(ctx, text, prior)
	if err != nil {
		if IsKind(err, ErrUpstreamUnavailable) {
			return nil, err
		}
		// SchemaViolation after retry: degrade to a generic clarification
		// rather than failing the turn.
		e.log.Warn("extraction output rejected, falling back to clarification",
			zap.String("conversation_id", utt.ConversationID), zap.Error(err))
		result := clarificationResult(fallbackQuestion, []string{"category"})
		return result, e.saveClarified(ctx, utt.ConversationID, pendingConstraints(prior))
	}

	update := wire.toConstraintSet()
	base := pendingConstraints(prior)

	if wire.Kind == "clarification" {
		// Partial fields supplied alongside the question still advance the
		// multi-turn completion.
		partial := base.Merge(update)
		if wire.RequireInStock != nil {
			partial.RequireInStock = *wire.RequireInStock
		}
		question := fallbackQuestion
		if wire.Question != nil && strings.TrimSpace(*wire.Question) != "" {
			question = strings.TrimSpace(*wire.Question)
		}
		result := clarificationResult(question, wire.MissingFields)
		return result, e.saveClarified(ctx, utt.ConversationID, partial)
	}

	merged := base.Merge(update)
	if wire.RequireInStock != nil {
		merged.RequireInStock = *wire.RequireInStock
	}
	if merged.HasBudgetRange() && *merged.BudgetMin > *merged.BudgetMax {
		e.log.Warn("merged constraints rejected",
			zap.String("conversation_id", utt.ConversationID),
			zap.Float64("budget_min", *merged.BudgetMin),
			zap.Float64("budget_max", *merged.BudgetMax),
			zap.String("kind", string(ErrInvalidConstraints)))
		result := clarificationResult(budgetQuestion, []string{"budget_min", "budget_max"})
		return result, e.saveClarified(ctx, utt.ConversationID, base)
	}

	err = e.store.Update(ctx, utt.ConversationID, func(state *model.ConversationState) error {
		state.PendingClarification = false
		state.LastConstraints = merged.Clone()
		state.TurnCount++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save conversation state: %w", err)
	}

	return &model.ExtractionResult{Constraints: merged}, nil
}

// callModel issues the schema-constrained generation call, retrying once.
// Transport failures and schema failures both get the one retry; the error
// kind of the final failure tells them apart.
func (e *Extractor) callModel(ctx context.Context, text string, prior *model.ConversationState) (*extractionWire, error) {
	userPrompt := text
	if base := pendingConstraints(prior); base != nil {
		if priorJSON, err := json.Marshal(base); err == nil {
			userPrompt = fmt.Sprintf("Previously extracted constraints (merge new details into these):\n%s\n\nUser message:\n%s", priorJSON, text)
		}
	}

	var wire *extractionWire
	var lastSchemaErr error
	err := retry.Do(ctx, retry.Once(), func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		raw, err := e.llm.Complete(attemptCtx, extractorSystemPrompt, userPrompt)
		if err != nil {
			lastSchemaErr = nil
			return err
		}

		parsed, err := e.decodeWire(raw)
		if err != nil {
			lastSchemaErr = err
			return err
		}
		wire = parsed
		return nil
	})
	if err != nil {
		if lastSchemaErr != nil {
			return nil, newError(ErrSchemaViolation, "generation_output_invalid", lastSchemaErr)
		}
		return nil, newError(ErrUpstreamUnavailable, "generation_failed", err)
	}
	return wire, nil
}

// decodeWire parses and structurally validates one model output.
func (e *Extractor) decodeWire(raw string) (*extractionWire, error) {
	var wire extractionWire
	if err := utils.ParseAIJSON(raw, &wire); err != nil {
		return nil, err
	}
	if err := e.validate.Struct(&wire); err != nil {
		return nil, err
	}
	if wire.Kind == "clarification" && (wire.Question == nil || strings.TrimSpace(*wire.Question) == "") {
		return nil, fmt.Errorf("clarification output missing question")
	}
	if wire.Kind == "constraints" && wire.Question != nil && strings.TrimSpace(*wire.Question) != "" {
		return nil, fmt.Errorf("constraints output carries a question")
	}
	if wire.BudgetMin != nil && wire.BudgetMax != nil && *wire.BudgetMin > *wire.BudgetMax {
		return nil, fmt.Errorf("budget_min %.0f exceeds budget_max %.0f", *wire.BudgetMin, *wire.BudgetMax)
	}
	return &wire, nil
}

// saveClarified records a clarification turn: pending flag up, partial
// constraints retained for the merge on the next turn.
func (e *Extractor) saveClarified(ctx context.Context, conversationID string, partial *model.ConstraintSet) error {
	if partial == nil {
		partial = model.NewConstraintSet()
	}
	err := e.store.Update(ctx, conversationID, func(state *model.ConversationState) error {
		state.PendingClarification = true
		state.LastConstraints = partial.Clone()
		state.TurnCount++
		return nil
	})
	if err != nil {
		return fmt.Errorf("save conversation state: %w", err)
	}
	return nil
}

func (w *extractionWire) toConstraintSet() *model.ConstraintSet {
	cs := model.NewConstraintSet()
	if w.Category != nil && strings.TrimSpace(*w.Category) != "" {
		v := strings.TrimSpace(*w.Category)
		cs.Category = &v
	}
	for _, attr := range w.Attributes {
		name := strings.TrimSpace(attr.Name)
		if name == "" {
			continue
		}
		if cs.Attributes == nil {
			cs.Attributes = make(map[string]string, len(w.Attributes))
		}
		cs.Attributes[name] = strings.TrimSpace(attr.Value)
	}
	cs.BudgetMin = w.BudgetMin
	cs.BudgetMax = w.BudgetMax
	if w.RequireInStock != nil {
		cs.RequireInStock = *w.RequireInStock
	}
	for _, hint := range w.FreeTextHints {
		if hint = strings.TrimSpace(hint); hint != "" {
			cs.FreeTextHints = append(cs.FreeTextHints, hint)
		}
	}
	return cs
}

func pendingConstraints(state *model.ConversationState) *model.ConstraintSet {
	if state == nil || !state.PendingClarification {
		return nil
	}
	return state.LastConstraints
}

func clarificationResult(question string, missing []string) *model.ExtractionResult {
	return &model.ExtractionResult{
		Clarification: &model.ClarificationRequest{
			Question:      question,
			MissingFields: missing,
		},
	}
}
