package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
)

// SignalWeights defines how the four supplier quality signals blend into base quality.
type SignalWeights struct {
	Acceptance float64 `json:"acceptance"` // Weight for smoothed acceptance (default: 0.45)
	Response   float64 `json:"response"`   // Weight for response speed (default: 0.25)
	Activity   float64 `json:"activity"`   // Weight for recent activity (default: 0.2)
	Volume     float64 `json:"volume"`     // Weight for quote volume confidence (default: 0.1)
}

// MatchWeights defines how category and location strengths blend into context match.
type MatchWeights struct {
	Category float64 `json:"category"` // Weight for category match (default: 0.6)
	Location float64 `json:"location"` // Weight for location match (default: 0.4)
}

// RankWeights defines the final rank composition.
type RankWeights struct {
	BaseQuality   float64 `json:"base_quality"`   // Weight for base quality (default: 0.7)
	Match         float64 `json:"match"`          // Weight for context match (default: 0.3)
	VerifiedBonus float64 `json:"verified_bonus"` // Additive bonus for verified suppliers (default: 0.05)
}

// Weights holds every tunable ranking parameter.
type Weights struct {
	Signals SignalWeights `json:"signals"`
	Match   MatchWeights  `json:"match"`
	Rank    RankWeights   `json:"rank"`

	// PriorWeight is the number of virtual quotes at the marketplace prior
	// used to smooth acceptance rates (default: 10).
	PriorWeight float64 `json:"prior_weight"`
	// ActivityHalfLifeDays is the half-life of the activity decay (default: 14).
	ActivityHalfLifeDays float64 `json:"activity_half_life_days"`
	// ProPlanMultiplier is applied to the final score of pro-plan suppliers (default: 1.08).
	ProPlanMultiplier float64 `json:"pro_plan_multiplier"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// Default tuning constants.
const (
	DefaultPriorWeight          = 10.0
	DefaultActivityHalfLifeDays = 14.0
	DefaultProPlanMultiplier    = 1.08
)

// weightSumTolerance bounds the drift allowed when weight groups are checked to sum to 1.
const weightSumTolerance = 1e-9

// Calibration validation errors.
var (
	ErrSignalWeightsSum   = errors.New("signal weights must sum to 1.0")
	ErrMatchWeightsSum    = errors.New("match weights must sum to 1.0")
	ErrRankWeightsSum     = errors.New("base_quality and match rank weights must sum to 1.0")
	ErrNegativeWeight     = errors.New("weights must not be negative")
	ErrInvalidPriorWeight = errors.New("prior_weight must be positive")
	ErrInvalidHalfLife    = errors.New("activity_half_life_days must be positive")
	ErrInvalidMultiplier  = errors.New("pro_plan_multiplier must be at least 1.0")
)

// DefaultWeights returns the default ranking configuration.
//
// Base quality: 0.45*acceptance + 0.25*response + 0.2*activity + 0.1*volume
// Match:        0.6*category + 0.4*location
// Rank:         100 * (0.7*base_quality + 0.3*match + 0.05 if verified) * plan multiplier
func DefaultWeights() *Weights {
	return &Weights{
		Signals: SignalWeights{
			Acceptance: 0.45,
			Response:   0.25,
			Activity:   0.2,
			Volume:     0.1,
		},
		Match: MatchWeights{
			Category: 0.6,
			Location: 0.4,
		},
		Rank: RankWeights{
			BaseQuality:   0.7,
			Match:         0.3,
			VerifiedBonus: 0.05,
		},
		PriorWeight:          DefaultPriorWeight,
		ActivityHalfLifeDays: DefaultActivityHalfLifeDays,
		ProPlanMultiplier:    DefaultProPlanMultiplier,
	}
}

// Validate checks that each weight group sums to 1.0 and that the scalar
// parameters are usable. All violations are joined into a single error.
func (w *Weights) Validate() error {
	var errs []error

	s := w.Signals
	if s.Acceptance < 0 || s.Response < 0 || s.Activity < 0 || s.Volume < 0 ||
		w.Match.Category < 0 || w.Match.Location < 0 ||
		w.Rank.BaseQuality < 0 || w.Rank.Match < 0 || w.Rank.VerifiedBonus < 0 {
		errs = append(errs, ErrNegativeWeight)
	}
	if !sumsToOne(s.Acceptance, s.Response, s.Activity, s.Volume) {
		errs = append(errs, ErrSignalWeightsSum)
	}
	if !sumsToOne(w.Match.Category, w.Match.Location) {
		errs = append(errs, ErrMatchWeightsSum)
	}
	if !sumsToOne(w.Rank.BaseQuality, w.Rank.Match) {
		errs = append(errs, ErrRankWeightsSum)
	}
	if !(w.PriorWeight > 0) || math.IsInf(w.PriorWeight, 0) {
		errs = append(errs, ErrInvalidPriorWeight)
	}
	if !(w.ActivityHalfLifeDays > 0) || math.IsInf(w.ActivityHalfLifeDays, 0) {
		errs = append(errs, ErrInvalidHalfLife)
	}
	if !(w.ProPlanMultiplier >= 1) || math.IsInf(w.ProPlanMultiplier, 0) {
		errs = append(errs, ErrInvalidMultiplier)
	}

	return errors.Join(errs...)
}

func sumsToOne(values ...float64) bool {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return math.Abs(sum-1.0) <= weightSumTolerance
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// An empty path returns the defaults. If the file can't be read or parsed,
// the defaults are returned together with the error so callers can decide
// whether to continue. Partial files are merged over the defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights over base weights.
// Only non-zero override values are applied.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}

	result := *base
	if override == nil {
		return &result
	}

	mergeFloat(&result.Signals.Acceptance, override.Signals.Acceptance)
	mergeFloat(&result.Signals.Response, override.Signals.Response)
	mergeFloat(&result.Signals.Activity, override.Signals.Activity)
	mergeFloat(&result.Signals.Volume, override.Signals.Volume)

	mergeFloat(&result.Match.Category, override.Match.Category)
	mergeFloat(&result.Match.Location, override.Match.Location)

	mergeFloat(&result.Rank.BaseQuality, override.Rank.BaseQuality)
	mergeFloat(&result.Rank.Match, override.Rank.Match)
	mergeFloat(&result.Rank.VerifiedBonus, override.Rank.VerifiedBonus)

	mergeFloat(&result.PriorWeight, override.PriorWeight)
	mergeFloat(&result.ActivityHalfLifeDays, override.ActivityHalfLifeDays)
	mergeFloat(&result.ProPlanMultiplier, override.ProPlanMultiplier)

	return &result
}

func mergeFloat(dst *float64, override float64) {
	if override != 0 {
		*dst = override
	}
}

// logCalibrationOverrides logs which weights differ from the defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	fields := []struct {
		name          string
		before, after float64
	}{
		{"signals.acceptance", defaults.Signals.Acceptance, loaded.Signals.Acceptance},
		{"signals.response", defaults.Signals.Response, loaded.Signals.Response},
		{"signals.activity", defaults.Signals.Activity, loaded.Signals.Activity},
		{"signals.volume", defaults.Signals.Volume, loaded.Signals.Volume},
		{"match.category", defaults.Match.Category, loaded.Match.Category},
		{"match.location", defaults.Match.Location, loaded.Match.Location},
		{"rank.base_quality", defaults.Rank.BaseQuality, loaded.Rank.BaseQuality},
		{"rank.match", defaults.Rank.Match, loaded.Rank.Match},
		{"rank.verified_bonus", defaults.Rank.VerifiedBonus, loaded.Rank.VerifiedBonus},
		{"prior_weight", defaults.PriorWeight, loaded.PriorWeight},
		{"activity_half_life_days", defaults.ActivityHalfLifeDays, loaded.ActivityHalfLifeDays},
		{"pro_plan_multiplier", defaults.ProPlanMultiplier, loaded.ProPlanMultiplier},
	}

	var overrides []string
	for _, f := range fields {
		if f.before != f.after {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", f.name, f.before, f.after))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}

// defaultWeights backs nil *Weights arguments. It is shared and must not be mutated.
var defaultWeights = DefaultWeights()

// orDefault returns w, or the shared default weights when w is nil.
func orDefault(w *Weights) *Weights {
	if w == nil {
		return defaultWeights
	}
	return w
}
