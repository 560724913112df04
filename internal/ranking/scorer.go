package ranking

import (
	"sort"
	"time"
)

// MatchContext is the search context a supplier is ranked against.
// Both fields are free text; they are slugged before matching.
type MatchContext struct {
	CategorySlug string `json:"category_slug"`
	LocationSlug string `json:"location_slug"`
}

// Normalized returns the context with both fields slugged.
func (mc MatchContext) Normalized() MatchContext {
	return MatchContext{
		CategorySlug: ToSlug(mc.CategorySlug),
		LocationSlug: ToSlug(mc.LocationSlug),
	}
}

// Candidate is one supplier ready to be ranked.
type Candidate struct {
	SupplierID string
	Features   Features
	Categories []string
	Location   LocationCandidates
	IsVerified bool
	PlanType   string
}

// Ranked is the full scoring trace for one candidate.
type Ranked struct {
	SupplierID  string         `json:"supplier_id"`
	Features    Features       `json:"features"`
	Scored      ScoredFeatures `json:"scored"`
	Rank        RankResult     `json:"rank"`
	Explanation []string       `json:"explanation"`
}

// Scorer runs the ranking pipeline with a fixed set of weights and a clock.
// A Scorer holds no mutable state and is safe for concurrent use.
type Scorer struct {
	weights *Weights
	now     func() time.Time
}

// NewScorer creates a Scorer. Nil weights select the defaults and a nil
// clock selects time.Now.
func NewScorer(weights *Weights, now func() time.Time) *Scorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	if now == nil {
		now = time.Now
	}
	return &Scorer{weights: weights, now: now}
}

// Weights returns the weights the scorer was built with.
func (s *Scorer) Weights() *Weights {
	return s.weights
}

// Score ranks a single candidate against the match context.
func (s *Scorer) Score(c Candidate, mc MatchContext) Ranked {
	return s.scoreAt(c, mc, s.now())
}

// RankAll scores every candidate against the same context and returns them
// sorted best first. All candidates share one reading of the clock.
func (s *Scorer) RankAll(candidates []Candidate, mc MatchContext) []Ranked {
	now := s.now()
	ranked := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, s.scoreAt(c, mc, now))
	}
	SortRanked(ranked)
	return ranked
}

func (s *Scorer) scoreAt(c Candidate, mc MatchContext, now time.Time) Ranked {
	scored := BaseQualityScore(c.Features, now, s.weights)

	result := ComputeRank(RankInput{
		Features:      scored,
		CategoryMatch: CategoryMatchStrength(mc.CategorySlug, c.Categories),
		LocationMatch: LocationMatchStrength(mc.LocationSlug, c.Location),
		IsVerified:    c.IsVerified,
		PlanType:      c.PlanType,
	}, s.weights)

	return Ranked{
		SupplierID: c.SupplierID,
		Features:   c.Features,
		Scored:     scored,
		Rank:       result,
		Explanation: Explain(ExplanationInput{
			Features: c.Features,
			Scored:   scored,
			Rank:     result,
		}),
	}
}

// SortRanked orders results by rank score, highest first. Equal scores are
// ordered by supplier ID so pages are stable.
func SortRanked(ranked []Ranked) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Rank.RankScore != ranked[j].Rank.RankScore {
			return ranked[i].Rank.RankScore > ranked[j].Rank.RankScore
		}
		return ranked[i].SupplierID < ranked[j].SupplierID
	})
}
