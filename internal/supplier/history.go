package supplier

import (
	"sort"
	"time"
)

// DefaultFeatureWindow is the trailing window feature rows are computed over.
const DefaultFeatureWindow = 30 * 24 * time.Hour

// DefaultGlobalAcceptanceRate is the marketplace prior used when no quotes
// were sent in the window.
const DefaultGlobalAcceptanceRate = 0.3

// FeatureFromHistory derives a feature row from raw quote events.
//
// Quotes count when they were sent inside the window ending at now. Accepted
// quotes are counted among those, so Accepted30d never exceeds QuotesSent30d.
// The response median uses minutes from enquiry to quote for quotes in the
// window. LastActiveAt is the latest quote send time across all events.
func FeatureFromHistory(supplierID string, events []QuoteEvent, now time.Time, window time.Duration) FeatureRow {
	if window <= 0 {
		window = DefaultFeatureWindow
	}
	since := now.Add(-window)

	row := FeatureRow{
		SupplierID: supplierID,
		ComputedAt: now,
	}

	var responses []float64
	for _, ev := range events {
		if ev.SupplierID != supplierID || ev.QuoteSentAt == nil {
			continue
		}
		sent := *ev.QuoteSentAt

		if row.LastActiveAt == nil || sent.After(*row.LastActiveAt) {
			last := sent
			row.LastActiveAt = &last
		}

		if !inWindow(sent, since, now) {
			continue
		}
		row.QuotesSent30d++
		if ev.AcceptedAt != nil {
			row.Accepted30d++
		}
		if minutes := sent.Sub(ev.EnquiryCreatedAt).Minutes(); minutes > 0 {
			responses = append(responses, minutes)
		}
	}

	if m, ok := median(responses); ok {
		row.ResponseTimeMedianMinutes30d = &m
	}
	return row
}

// GlobalAcceptanceRate computes accepted / sent across every supplier for
// quotes sent inside the window. Returns DefaultGlobalAcceptanceRate when
// no quotes were sent.
func GlobalAcceptanceRate(events []QuoteEvent, now time.Time, window time.Duration) float64 {
	if window <= 0 {
		window = DefaultFeatureWindow
	}
	since := now.Add(-window)

	var sent, accepted int
	for _, ev := range events {
		if ev.QuoteSentAt == nil || !inWindow(*ev.QuoteSentAt, since, now) {
			continue
		}
		sent++
		if ev.AcceptedAt != nil {
			accepted++
		}
	}

	if sent == 0 {
		return DefaultGlobalAcceptanceRate
	}
	return float64(accepted) / float64(sent)
}

func inWindow(t, since, now time.Time) bool {
	return !t.Before(since) && !t.After(now)
}

// median returns the median of values without modifying the slice.
func median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}
