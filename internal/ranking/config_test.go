package ranking

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultWeights verifies the default weight configuration.
func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()

	checks := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"signals.acceptance", w.Signals.Acceptance, 0.45},
		{"signals.response", w.Signals.Response, 0.25},
		{"signals.activity", w.Signals.Activity, 0.2},
		{"signals.volume", w.Signals.Volume, 0.1},
		{"match.category", w.Match.Category, 0.6},
		{"match.location", w.Match.Location, 0.4},
		{"rank.base_quality", w.Rank.BaseQuality, 0.7},
		{"rank.match", w.Rank.Match, 0.3},
		{"rank.verified_bonus", w.Rank.VerifiedBonus, 0.05},
		{"prior_weight", w.PriorWeight, 10},
		{"activity_half_life_days", w.ActivityHalfLifeDays, 14},
		{"pro_plan_multiplier", w.ProPlanMultiplier, 1.08},
	}

	for _, c := range checks {
		if c.got != c.expected {
			t.Errorf("expected %s %f, got %f", c.name, c.expected, c.got)
		}
	}

	if err := w.Validate(); err != nil {
		t.Errorf("expected default weights to be valid, got: %v", err)
	}
}

// TestOrDefault verifies nil weights resolve to one shared default value.
func TestOrDefault(t *testing.T) {
	first := orDefault(nil)
	if first != orDefault(nil) {
		t.Error("expected nil weights to resolve to the same default instance")
	}
	if *first != *DefaultWeights() {
		t.Errorf("expected shared defaults to equal DefaultWeights(), got %+v", *first)
	}

	custom := DefaultWeights()
	if orDefault(custom) != custom {
		t.Error("expected non-nil weights to be returned unchanged")
	}

	allocs := testing.AllocsPerRun(100, func() {
		_ = orDefault(nil)
	})
	if allocs != 0 {
		t.Errorf("expected no allocations for nil weights, got %.0f", allocs)
	}
}

// TestWeights_Validate tests calibration validation.
func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Weights)
		wantErr error
	}{
		{
			name:    "signals do not sum to one",
			mutate:  func(w *Weights) { w.Signals.Volume = 0.3 },
			wantErr: ErrSignalWeightsSum,
		},
		{
			name:    "match does not sum to one",
			mutate:  func(w *Weights) { w.Match.Location = 0.5 },
			wantErr: ErrMatchWeightsSum,
		},
		{
			name:    "rank does not sum to one",
			mutate:  func(w *Weights) { w.Rank.Match = 0.4 },
			wantErr: ErrRankWeightsSum,
		},
		{
			name: "negative weight",
			mutate: func(w *Weights) {
				w.Match.Category = 1.2
				w.Match.Location = -0.2
			},
			wantErr: ErrNegativeWeight,
		},
		{
			name:    "zero prior weight",
			mutate:  func(w *Weights) { w.PriorWeight = 0 },
			wantErr: ErrInvalidPriorWeight,
		},
		{
			name:    "negative half-life",
			mutate:  func(w *Weights) { w.ActivityHalfLifeDays = -1 },
			wantErr: ErrInvalidHalfLife,
		},
		{
			name:    "plan multiplier below one",
			mutate:  func(w *Weights) { w.ProPlanMultiplier = 0.9 },
			wantErr: ErrInvalidMultiplier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights()
			tt.mutate(w)
			err := w.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestLoadCalibration_DefaultFile tests loading the shipped calibration file.
func TestLoadCalibration_DefaultFile(t *testing.T) {
	configPath := filepath.Join("..", "..", "configs", "ranking.calibration.json")
	weights, err := LoadCalibration(configPath)

	if _, statErr := os.Stat(configPath); statErr == nil {
		if err != nil {
			t.Fatalf("expected no error loading default calibration file, got: %v", err)
		}
		if *weights != *DefaultWeights() {
			t.Errorf("loaded weights don't match defaults:\nloaded: %+v\ndefaults: %+v",
				weights, DefaultWeights())
		}
	} else {
		if err == nil {
			t.Error("expected error when file doesn't exist")
		}
		if *weights != *DefaultWeights() {
			t.Error("should return defaults when file doesn't exist")
		}
	}
}

// TestLoadCalibration_EmptyPath tests loading with empty file path.
func TestLoadCalibration_EmptyPath(t *testing.T) {
	weights, err := LoadCalibration("")
	if err != nil {
		t.Errorf("expected no error with empty path, got: %v", err)
	}
	if *weights != *DefaultWeights() {
		t.Error("should return defaults when path is empty")
	}
}

// TestLoadCalibration_NonExistentFile tests loading a non-existent file.
func TestLoadCalibration_NonExistentFile(t *testing.T) {
	weights, err := LoadCalibration("/nonexistent/path/to/file.json")
	if err == nil {
		t.Error("expected error when file doesn't exist")
	}
	if *weights != *DefaultWeights() {
		t.Error("should return defaults when file doesn't exist")
	}
}

// TestLoadCalibration_PartialOverride tests that partial files merge over defaults.
func TestLoadCalibration_PartialOverride(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "custom.json")

	custom := CalibrationConfig{
		Version: "1.1",
		Weights: Weights{
			Match:             MatchWeights{Category: 0.5, Location: 0.5},
			ProPlanMultiplier: 1.1,
		},
	}
	data, err := json.MarshalIndent(custom, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	weights, err := LoadCalibration(tmpFile)
	if err != nil {
		t.Fatalf("expected no error loading custom file, got: %v", err)
	}

	if weights.Match.Category != 0.5 || weights.Match.Location != 0.5 {
		t.Errorf("expected match weights 0.5/0.5, got %+v", weights.Match)
	}
	if weights.ProPlanMultiplier != 1.1 {
		t.Errorf("expected pro plan multiplier 1.1, got %f", weights.ProPlanMultiplier)
	}
	if weights.Signals != DefaultWeights().Signals {
		t.Errorf("expected signal weights unchanged, got %+v", weights.Signals)
	}
	if weights.PriorWeight != DefaultPriorWeight {
		t.Errorf("expected prior weight unchanged, got %f", weights.PriorWeight)
	}
}

// TestLoadCalibration_InvalidJSON tests loading invalid JSON.
func TestLoadCalibration_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(tmpFile, []byte("{invalid json}"), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	weights, err := LoadCalibration(tmpFile)
	if err == nil {
		t.Error("expected error when JSON is invalid")
	}
	if *weights != *DefaultWeights() {
		t.Error("should return defaults when JSON is invalid")
	}
}

// TestMergeCalibration tests nil handling and copy semantics.
func TestMergeCalibration(t *testing.T) {
	if got := MergeCalibration(nil, &Weights{PriorWeight: 5}); *got != *DefaultWeights() {
		t.Error("nil base should fall back to defaults")
	}

	base := DefaultWeights()
	copied := MergeCalibration(base, nil)
	if copied == base {
		t.Error("merge with nil override should return a copy")
	}
	copied.PriorWeight = 99
	if base.PriorWeight != DefaultPriorWeight {
		t.Error("mutating the merged copy should not affect the base")
	}

	merged := MergeCalibration(base, &Weights{Rank: RankWeights{VerifiedBonus: 0.1}})
	if merged.Rank.VerifiedBonus != 0.1 {
		t.Errorf("expected verified bonus 0.1, got %f", merged.Rank.VerifiedBonus)
	}
	if merged.Rank.BaseQuality != 0.7 {
		t.Errorf("expected base quality weight unchanged at 0.7, got %f", merged.Rank.BaseQuality)
	}
}
