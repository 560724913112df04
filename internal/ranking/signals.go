package ranking

import (
	"math"
	"time"
)

// Response time anchors on the log scale, in minutes.
const (
	responseGoodMinutes = 30.0   // at or below: full score
	responseBadMinutes  = 1440.0 // at or above: zero score
)

// NeutralResponseScore is returned when response time is unknown.
const NeutralResponseScore = 0.5

// volumeScale is the quote count at which volume confidence reaches 1-1/e.
const volumeScale = 10.0

// Features holds the raw per-supplier metrics for one scoring window.
type Features struct {
	Accepted30d             int        `json:"accepted_30d"`
	QuotesSent30d           int        `json:"quotes_sent_30d"`
	GlobalAcceptanceRate30d float64    `json:"global_acceptance_rate_30d"`
	ResponseMinutes30d      *float64   `json:"response_minutes_30d"`
	LastActiveAt            *time.Time `json:"last_active_at"`
}

// ScoredFeatures holds the four quality signals and their weighted blend.
// Every field is in [0, 1].
type ScoredFeatures struct {
	SmoothedAcceptance float64 `json:"smoothed_acceptance"`
	ResponseScore      float64 `json:"response_score"`
	ActivityScore      float64 `json:"activity_score"`
	VolumeScore        float64 `json:"volume_score"`
	BaseQuality        float64 `json:"base_quality"`
}

// Clamp01 restricts x to [0, 1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// SmoothedAcceptance returns the Bayesian-smoothed acceptance rate:
// (accepted + K*prior) / (sent + K), clamped to [0, 1].
// Suppliers with few quotes are pulled toward the marketplace prior.
func SmoothedAcceptance(accepted, sent int, prior float64, w *Weights) float64 {
	w = orDefault(w)
	k := w.PriorWeight

	a := float64(max(accepted, 0))
	s := float64(max(sent, 0))
	p := Clamp01(prior)

	return Clamp01((a + k*p) / (s + k))
}

// ResponseScoreFromMinutes maps a median response time onto [0, 1] on a log
// scale between 30 minutes (score 1) and 24 hours (score 0).
// A missing, non-finite or non-positive value yields the neutral 0.5.
func ResponseScoreFromMinutes(minutes *float64) float64 {
	if minutes == nil {
		return NeutralResponseScore
	}
	m := *minutes
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
		return NeutralResponseScore
	}

	good := math.Log(responseGoodMinutes)
	bad := math.Log(responseBadMinutes)
	x := (math.Log(m) - good) / (bad - good)

	return 1 - Clamp01(x)
}

// ActivityScoreFromLastActive decays exponentially with the time since the
// supplier was last active, halving every ActivityHalfLifeDays.
// A supplier that was never active scores 0. A timestamp after now
// (clock skew) counts as fully fresh.
func ActivityScoreFromLastActive(lastActive *time.Time, now time.Time, w *Weights) float64 {
	if lastActive == nil || lastActive.IsZero() {
		return 0
	}
	w = orDefault(w)

	elapsed := now.Sub(*lastActive)
	if elapsed < 0 {
		return 1
	}

	days := elapsed.Hours() / 24
	return Clamp01(math.Exp(-math.Ln2 * days / w.ActivityHalfLifeDays))
}

// VolumeScoreFromQuotesSent is a saturating confidence in the supplier's
// track record: 1 - exp(-sent/10).
func VolumeScoreFromQuotesSent(sent int) float64 {
	s := float64(max(sent, 0))
	return Clamp01(1 - math.Exp(-s/volumeScale))
}

// BaseQualityScore computes the four signals for f and blends them into the
// context-independent base quality of the supplier.
func BaseQualityScore(f Features, now time.Time, w *Weights) ScoredFeatures {
	w = orDefault(w)

	scored := ScoredFeatures{
		SmoothedAcceptance: SmoothedAcceptance(f.Accepted30d, f.QuotesSent30d, f.GlobalAcceptanceRate30d, w),
		ResponseScore:      ResponseScoreFromMinutes(f.ResponseMinutes30d),
		ActivityScore:      ActivityScoreFromLastActive(f.LastActiveAt, now, w),
		VolumeScore:        VolumeScoreFromQuotesSent(f.QuotesSent30d),
	}

	scored.BaseQuality = Clamp01(
		w.Signals.Acceptance*scored.SmoothedAcceptance +
			w.Signals.Response*scored.ResponseScore +
			w.Signals.Activity*scored.ActivityScore +
			w.Signals.Volume*scored.VolumeScore,
	)

	return scored
}
