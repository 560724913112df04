package ranking

import (
	"fmt"
	"math"
)

// ExplanationInput holds already-computed values to be rendered.
type ExplanationInput struct {
	Features Features
	Scored   ScoredFeatures
	Rank     RankResult
}

// Explain renders a ranking trace for admin debugging. Lines appear in
// pipeline order; the verified and plan lines only appear when the
// modifier applied. Nothing is recomputed here.
func Explain(in ExplanationInput) []string {
	lines := []string{
		fmt.Sprintf("Base quality: %s", percent(in.Scored.BaseQuality)),
		fmt.Sprintf("Smoothed acceptance: %s (%d accepted / %d sent, marketplace prior %s)",
			percent(in.Scored.SmoothedAcceptance),
			in.Features.Accepted30d,
			in.Features.QuotesSent30d,
			percent(in.Features.GlobalAcceptanceRate30d)),
		fmt.Sprintf("Response score: %s (%s)", percent(in.Scored.ResponseScore), describeResponse(in.Features.ResponseMinutes30d)),
		fmt.Sprintf("Activity score: %s", percent(in.Scored.ActivityScore)),
		fmt.Sprintf("Volume score: %s", percent(in.Scored.VolumeScore)),
		fmt.Sprintf("Context match: %s (category %s, location %s)",
			percent(in.Rank.Match),
			percent(in.Rank.CategoryMatch),
			percent(in.Rank.LocationMatch)),
	}

	if in.Rank.VerifiedBonus > 0 {
		lines = append(lines, fmt.Sprintf("Verified supplier bonus: +%.1f points", in.Rank.VerifiedBonus*rankScale))
	}
	if in.Rank.PlanMultiplier != 1 {
		lines = append(lines, fmt.Sprintf("%s plan multiplier: x%.2f", ToTitle(string(in.Rank.PlanType)), in.Rank.PlanMultiplier))
	}

	lines = append(lines, fmt.Sprintf("Final rank score: %.2f", in.Rank.RankScore))
	return lines
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func describeResponse(minutes *float64) string {
	if minutes == nil || !(*minutes > 0) || math.IsInf(*minutes, 1) {
		return "no response data"
	}
	return fmt.Sprintf("median %.0f min", *minutes)
}
