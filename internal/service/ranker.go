package service

import (
	"fmt"
	"sort"
	"strings"

	"shopadvisor/internal/config"
	"shopadvisor/internal/model"
	"shopadvisor/internal/utils"
)

// Match reason labels attached to ranked products for explainability.
const (
	ReasonInBudget     = "in_budget"
	ReasonNearBudget   = "near_budget"
	ReasonAttrMatch    = "attribute_match"
	ReasonAttrMismatch = "attribute_mismatch"
	ReasonHintMatch    = "hint_match"
)

// Ranker orders candidate products against a constraint set. Scoring is pure
// and deterministic: the same products and constraints always produce the
// same order, independent of input order.
type Ranker struct {
	cfg config.RankingConfig
}

// NewRanker creates a new product ranker
func NewRanker(cfg config.RankingConfig) *Ranker {
	return &Ranker{cfg: cfg}
}

// Rank filters and scores candidates, best first. Hard filters run before
// scoring: out-of-stock products when stock is required, and products priced
// beyond the slack window around the budget, never appear in the output.
func (r *Ranker) Rank(products []model.CanonicalProduct, constraints *model.ConstraintSet) []model.RankedProduct {
	if constraints == nil {
		constraints = model.NewConstraintSet()
	}

	ranked := make([]model.RankedProduct, 0, len(products))
	for _, p := range products {
		if constraints.RequireInStock && !p.InStock {
			continue
		}
		if r.beyondBudgetWindow(p, constraints) {
			continue
		}
		score, reasons := r.score(p, constraints)
		ranked = append(ranked, model.RankedProduct{
			CanonicalProduct: p,
			Score:            score,
			MatchReasons:     reasons,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		di, dj := r.priceDistance(ranked[i].CanonicalProduct, constraints), r.priceDistance(ranked[j].CanonicalProduct, constraints)
		if di != dj {
			return di < dj
		}
		return ranked[i].ID < ranked[j].ID
	})

	return ranked
}

// beyondBudgetWindow reports whether the price falls outside the budget by
// more than the slack fraction. A missing bound is unbounded on that side.
func (r *Ranker) beyondBudgetWindow(p model.CanonicalProduct, c *model.ConstraintSet) bool {
	price := float64(p.PriceMinor)
	if c.BudgetMax != nil && price > *c.BudgetMax*(1+r.cfg.BudgetSlack) {
		return true
	}
	if c.BudgetMin != nil && price < *c.BudgetMin*(1-r.cfg.BudgetSlack) {
		return true
	}
	return false
}

func (r *Ranker) score(p model.CanonicalProduct, c *model.ConstraintSet) (float64, []string) {
	var score float64
	var reasons []string

	if c.BudgetMin != nil || c.BudgetMax != nil {
		if r.withinBudget(p, c) {
			score += r.cfg.BudgetFitScore
			reasons = append(reasons, ReasonInBudget)
		} else {
			// Survived the hard filter, so it is within the slack window.
			score += r.cfg.BudgetNearScore
			reasons = append(reasons, ReasonNearBudget)
		}
	}

	for _, name := range sortedAttributeNames(c.Attributes) {
		want := c.Attributes[name]
		got, ok := lookupAttribute(p.Attributes, name)
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want)) {
			score += r.cfg.AttributeScore
			reasons = append(reasons, fmt.Sprintf("%s:%s", ReasonAttrMatch, name))
		} else {
			score += r.cfg.AttributePenalty
			reasons = append(reasons, fmt.Sprintf("%s:%s", ReasonAttrMismatch, name))
		}
	}

	var hintBonus float64
	for _, hint := range c.FreeTextHints {
		if !utils.HintMatches(hint, p.Name, p.Attributes) {
			continue
		}
		if hintBonus+r.cfg.HintScore > r.cfg.HintBonusCap {
			break
		}
		hintBonus += r.cfg.HintScore
		reasons = append(reasons, fmt.Sprintf("%s:%s", ReasonHintMatch, hint))
	}
	score += hintBonus

	return score, reasons
}

func (r *Ranker) withinBudget(p model.CanonicalProduct, c *model.ConstraintSet) bool {
	price := float64(p.PriceMinor)
	if c.BudgetMin != nil && price < *c.BudgetMin {
		return false
	}
	if c.BudgetMax != nil && price > *c.BudgetMax {
		return false
	}
	return true
}

// priceDistance is the tie-break key: distance to the budget midpoint when
// both bounds are known, otherwise the raw price so cheaper wins.
func (r *Ranker) priceDistance(p model.CanonicalProduct, c *model.ConstraintSet) float64 {
	price := float64(p.PriceMinor)
	if c.HasBudgetRange() {
		mid := (*c.BudgetMin + *c.BudgetMax) / 2
		d := price - mid
		if d < 0 {
			d = -d
		}
		return d
	}
	return price
}

// lookupAttribute matches attribute names case-insensitively; upstream slugs
// vary in casing between stores.
func lookupAttribute(attributes map[string]string, name string) (string, bool) {
	if v, ok := attributes[name]; ok {
		return v, true
	}
	for k, v := range attributes {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// sortedAttributeNames gives map iteration a stable order.
func sortedAttributeNames(attributes map[string]string) []string {
	if len(attributes) == 0 {
		return nil
	}
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
