// Package ranking scores event suppliers for marketplace search.
//
// The pipeline is a sequence of pure functions:
//
//	raw features -> four quality signals -> base quality
//	             -> + category/location match + verification + plan
//	             -> rank score (+ explanation trace)
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//	scorer := ranking.NewScorer(weights, time.Now)
//
//	ranked := scorer.Score(ranking.Candidate{
//		SupplierID: id,
//		Features: ranking.Features{
//			Accepted30d:             3,
//			QuotesSent30d:           5,
//			GlobalAcceptanceRate30d: 0.4,
//		},
//		Categories: []string{"florist"},
//		Location:   ranking.LocationCandidates{BaseCity: "London"},
//		IsVerified: true,
//		PlanType:   "pro",
//	}, ranking.MatchContext{CategorySlug: "florist", LocationSlug: "london"})
//
// Signals:
//
// Every signal is in [0, 1]. Acceptance is Bayesian-smoothed toward the
// marketplace prior, response time is scored on a log scale between 30
// minutes and 24 hours, activity halves every 14 days and quote volume
// saturates exponentially. Unknown or malformed inputs degrade to a neutral
// or zero value instead of failing: ranking always yields a sortable number.
//
// Rank score:
//
// The rank score is 100 * (0.7*base + 0.3*match + verified bonus) times the
// plan multiplier. It is only meant for ordering and is not bounded to 100.
//
// Calibration:
//
// All weights live in Weights and can be overridden by a JSON calibration
// file loaded at startup. See configs/ranking.calibration.json.
package ranking
