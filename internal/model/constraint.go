package model

import "time"

// Utterance is one raw user message on a conversation.
type Utterance struct {
	Text           string    `json:"text"`
	ConversationID string    `json:"conversation_id"`
	ReceivedAt     time.Time `json:"received_at"`
}

// ConstraintSet is the structured representation of what the user is looking for.
// Instances are treated as immutable once produced; Merge returns a new set.
type ConstraintSet struct {
	Category       *string           `json:"category,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	BudgetMin      *float64          `json:"budget_min,omitempty"`
	BudgetMax      *float64          `json:"budget_max,omitempty"`
	RequireInStock bool              `json:"require_in_stock"`
	FreeTextHints  []string          `json:"free_text_hints,omitempty"`
}

// NewConstraintSet returns an empty set with the stock requirement defaulted on.
func NewConstraintSet() *ConstraintSet {
	return &ConstraintSet{RequireInStock: true}
}

// Clone returns a deep copy so stored state never aliases a caller's set.
func (c *ConstraintSet) Clone() *ConstraintSet {
	if c == nil {
		return nil
	}
	out := &ConstraintSet{RequireInStock: c.RequireInStock}
	if c.Category != nil {
		v := *c.Category
		out.Category = &v
	}
	if c.BudgetMin != nil {
		v := *c.BudgetMin
		out.BudgetMin = &v
	}
	if c.BudgetMax != nil {
		v := *c.BudgetMax
		out.BudgetMax = &v
	}
	if c.Attributes != nil {
		out.Attributes = make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			out.Attributes[k] = v
		}
	}
	if c.FreeTextHints != nil {
		out.FreeTextHints = append([]string(nil), c.FreeTextHints...)
	}
	return out
}

// Merge overlays the newly extracted fields onto a prior set: supplied fields
// overwrite, omitted fields retain their prior values. Attributes merge per key.
func (c *ConstraintSet) Merge(update *ConstraintSet) *ConstraintSet {
	merged := c.Clone()
	if merged == nil {
		merged = NewConstraintSet()
	}
	if update == nil {
		return merged
	}
	if update.Category != nil {
		v := *update.Category
		merged.Category = &v
	}
	if update.BudgetMin != nil {
		v := *update.BudgetMin
		merged.BudgetMin = &v
	}
	if update.BudgetMax != nil {
		v := *update.BudgetMax
		merged.BudgetMax = &v
	}
	for k, v := range update.Attributes {
		if merged.Attributes == nil {
			merged.Attributes = make(map[string]string, len(update.Attributes))
		}
		merged.Attributes[k] = v
	}
	if len(update.FreeTextHints) > 0 {
		merged.FreeTextHints = append([]string(nil), update.FreeTextHints...)
	}
	// RequireInStock is a plain bool, so "omitted" is indistinguishable from
	// its default here; the extractor overwrites it only when the model
	// actually supplied the field.
	return merged
}

// HasBudgetRange reports whether both bounds are present.
func (c *ConstraintSet) HasBudgetRange() bool {
	return c != nil && c.BudgetMin != nil && c.BudgetMax != nil
}

// ClarificationRequest asks the user for the fields the extractor could not fill.
type ClarificationRequest struct {
	Question      string   `json:"question"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// ExtractionResult is the tagged union produced by the constraint extractor:
// exactly one of Constraints or Clarification is non-nil.
type ExtractionResult struct {
	Constraints   *ConstraintSet        `json:"constraints,omitempty"`
	Clarification *ClarificationRequest `json:"clarification,omitempty"`
}

// IsClarification reports which variant the result holds.
func (r *ExtractionResult) IsClarification() bool {
	return r != nil && r.Clarification != nil
}

// ConversationState is the per-conversation dialogue state carried across turns.
// Invariant: PendingClarification implies LastConstraints is non-nil.
type ConversationState struct {
	ConversationID       string         `json:"conversation_id" db:"conversation_id"`
	PendingClarification bool           `json:"pending_clarification" db:"pending_clarification"`
	LastConstraints      *ConstraintSet `json:"last_constraints,omitempty" db:"-"`
	TurnCount            int            `json:"turn_count" db:"turn_count"`
	UpdatedAt            time.Time      `json:"updated_at" db:"updated_at"`
}
