package ranking

// rankScale converts the blended [0, 1] score into points.
const rankScale = 100.0

// RankInput carries everything the rank composer needs for one supplier.
type RankInput struct {
	Features      ScoredFeatures
	CategoryMatch float64
	LocationMatch float64
	IsVerified    bool
	PlanType      string
}

// RankResult is the outcome of rank composition.
type RankResult struct {
	CategoryMatch  float64  `json:"category_match"`
	LocationMatch  float64  `json:"location_match"`
	Match          float64  `json:"match"`
	VerifiedBonus  float64  `json:"verified_bonus"`
	PlanType       PlanType `json:"plan_type"`
	PlanMultiplier float64  `json:"plan_multiplier"`
	RankScore      float64  `json:"rank_score"`
}

// ComputeRank combines base quality, context match and the commercial
// modifiers into a sortable score:
//
//	match = 0.6*category + 0.4*location
//	raw   = 100 * (0.7*base_quality + 0.3*match + verified_bonus)
//	score = raw * plan_multiplier
//
// The score is not re-clamped, so a verified pro supplier can exceed 100.
func ComputeRank(in RankInput, w *Weights) RankResult {
	w = orDefault(w)

	category := Clamp01(in.CategoryMatch)
	location := Clamp01(in.LocationMatch)
	match := Clamp01(w.Match.Category*category + w.Match.Location*location)

	var bonus float64
	if in.IsVerified {
		bonus = w.Rank.VerifiedBonus
	}

	plan := SafePlanType(in.PlanType)
	multiplier := PlanMultiplier(string(plan), w)

	raw := rankScale * (w.Rank.BaseQuality*Clamp01(in.Features.BaseQuality) + w.Rank.Match*match + bonus)

	return RankResult{
		CategoryMatch:  category,
		LocationMatch:  location,
		Match:          match,
		VerifiedBonus:  bonus,
		PlanType:       plan,
		PlanMultiplier: multiplier,
		RankScore:      raw * multiplier,
	}
}
