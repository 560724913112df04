package ranking

import "strings"

// PlanType is a supplier's commercial tier.
type PlanType string

// Supported plan tiers.
const (
	PlanFree PlanType = "free"
	PlanPro  PlanType = "pro"
)

// SafePlanType normalizes a raw plan value. Anything other than "pro"
// (case-insensitive, surrounding space ignored) is treated as free.
func SafePlanType(value string) PlanType {
	if strings.EqualFold(strings.TrimSpace(value), string(PlanPro)) {
		return PlanPro
	}
	return PlanFree
}

// PlanMultiplier returns the final-score multiplier for a raw plan value.
func PlanMultiplier(value string, w *Weights) float64 {
	if SafePlanType(value) == PlanPro {
		return orDefault(w).ProPlanMultiplier
	}
	return 1.0
}
