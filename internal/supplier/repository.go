package supplier

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSupplierNotFound is returned when no listing exists for a supplier ID.
	ErrSupplierNotFound = errors.New("supplier not found")
	// ErrFeatureRowNotFound is returned when no precomputed feature row exists.
	ErrFeatureRowNotFound = errors.New("feature row not found")
)

// FeatureRepository stores precomputed feature rows.
type FeatureRepository interface {
	// GetFeatures returns the row for a supplier or ErrFeatureRowNotFound.
	GetFeatures(ctx context.Context, supplierID string) (*FeatureRow, error)
	// SaveFeatures inserts or replaces the row for row.SupplierID.
	SaveFeatures(ctx context.Context, row FeatureRow) error
}

// ListingRepository reads supplier listings.
type ListingRepository interface {
	// GetListing returns a listing regardless of status, or ErrSupplierNotFound.
	GetListing(ctx context.Context, supplierID string) (*Listing, error)
	// ListApproved returns every approved listing ordered by supplier ID.
	ListApproved(ctx context.Context) ([]Listing, error)
}

// QuoteHistoryRepository reads raw quote events.
type QuoteHistoryRepository interface {
	// ListBySupplier returns events for one supplier with enquiries created at or after since.
	ListBySupplier(ctx context.Context, supplierID string, since time.Time) ([]QuoteEvent, error)
	// ListSince returns events for all suppliers with quotes sent at or after
	// since. Unquoted enquiries are excluded.
	ListSince(ctx context.Context, since time.Time) ([]QuoteEvent, error)
}

// StatsRepository stores marketplace-wide statistics.
type StatsRepository interface {
	// GlobalAcceptanceRate30d returns the marketplace prior, or
	// DefaultGlobalAcceptanceRate when none has been recorded.
	GlobalAcceptanceRate30d(ctx context.Context) (float64, error)
	// SetGlobalAcceptanceRate30d records a freshly computed prior.
	SetGlobalAcceptanceRate30d(ctx context.Context, rate float64) error
}
