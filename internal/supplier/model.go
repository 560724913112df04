// Package supplier provides the supplier data that feeds the ranking engine:
// precomputed feature rows, listings, raw quote history and marketplace stats,
// plus the background job that keeps feature rows fresh.
package supplier

import (
	"time"

	"github.com/onnwee/eventsupply/internal/ranking"
)

// FeatureRow is the precomputed per-supplier metrics row for the trailing window.
type FeatureRow struct {
	SupplierID                   string     `json:"supplier_id"`
	QuotesSent30d                int        `json:"quotes_sent_30d"`
	Accepted30d                  int        `json:"accepted_30d"`
	ResponseTimeMedianMinutes30d *float64   `json:"response_time_median_minutes_30d"`
	LastActiveAt                 *time.Time `json:"last_active_at"`
	ComputedAt                   time.Time  `json:"computed_at"`
}

// RankFeatures converts the row into ranking input using the given marketplace prior.
func (r FeatureRow) RankFeatures(globalAcceptanceRate float64) ranking.Features {
	return ranking.Features{
		Accepted30d:             r.Accepted30d,
		QuotesSent30d:           r.QuotesSent30d,
		GlobalAcceptanceRate30d: globalAcceptanceRate,
		ResponseMinutes30d:      r.ResponseTimeMedianMinutes30d,
		LastActiveAt:            r.LastActiveAt,
	}
}

// IsFresh reports whether the row was computed within maxAge of now.
// A non-positive maxAge means rows never go stale.
func (r FeatureRow) IsFresh(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}
	return now.Sub(r.ComputedAt) <= maxAge
}

// ListingStatus is the moderation state of a supplier listing.
type ListingStatus string

const (
	ListingStatusPending  ListingStatus = "pending"
	ListingStatusApproved ListingStatus = "approved"
	ListingStatusRejected ListingStatus = "rejected"
)

// Listing is the public supplier listing used for context matching.
type Listing struct {
	SupplierID        string        `json:"supplier_id"`
	Name              string        `json:"name"`
	ListingCategories []string      `json:"listing_categories"`
	LocationLabel     string        `json:"location_label"`
	BaseCity          string        `json:"base_city"`
	RegionLabel       string        `json:"region_label"`
	IsVerified        bool          `json:"is_verified"`
	PlanType          string        `json:"plan_type"`
	Status            ListingStatus `json:"status"`
}

// Candidate builds the ranking candidate for this listing.
func (l Listing) Candidate(features ranking.Features) ranking.Candidate {
	return ranking.Candidate{
		SupplierID: l.SupplierID,
		Features:   features,
		Categories: l.ListingCategories,
		Location: ranking.LocationCandidates{
			LocationLabel: l.LocationLabel,
			BaseCity:      l.BaseCity,
			RegionLabel:   l.RegionLabel,
		},
		IsVerified: l.IsVerified,
		PlanType:   l.PlanType,
	}
}

// QuoteEvent is one enquiry a supplier received and, optionally, quoted on.
type QuoteEvent struct {
	ID               string     `json:"id"`
	SupplierID       string     `json:"supplier_id"`
	EnquiryCreatedAt time.Time  `json:"enquiry_created_at"`
	QuoteSentAt      *time.Time `json:"quote_sent_at"`
	AcceptedAt       *time.Time `json:"accepted_at"`
}

// FeatureSource identifies where a feature row came from.
type FeatureSource string

const (
	// FeatureSourcePrecomputed is a fresh row from the feature store.
	FeatureSourcePrecomputed FeatureSource = "precomputed"
	// FeatureSourceHistory is a row derived on the fly from raw quote history.
	FeatureSourceHistory FeatureSource = "history"
)
