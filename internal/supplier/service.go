package supplier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/eventsupply/internal/ranking"
)

// DefaultFeatureStaleAfter is the age after which a precomputed row is
// ignored in favour of raw history.
const DefaultFeatureStaleAfter = 24 * time.Hour

// DefaultFetchConcurrency bounds concurrent feature lookups when loading many suppliers.
const DefaultFetchConcurrency = 8

// activityLookback is how far back history is read so LastActiveAt is
// found for suppliers quiet during the feature window. At 90 days the
// activity signal has decayed below 2%.
const activityLookback = 90 * 24 * time.Hour

// ServiceConfig configures the supplier Service.
type ServiceConfig struct {
	// StaleAfter is the maximum age of a usable precomputed row. Zero or
	// negative uses DefaultFeatureStaleAfter.
	StaleAfter time.Duration
	// Window is the trailing feature window.
	Window time.Duration
	// Concurrency bounds parallel feature lookups.
	Concurrency int
	// Tracker, when set, is told about suppliers served from history so the
	// recompute job refreshes their rows.
	Tracker *DirtyTracker
	Logger  *slog.Logger
	// Now returns the current time (defaults to time.Now).
	Now func() time.Time
}

// ResolvedFeatures is a feature row and where it came from.
type ResolvedFeatures struct {
	Row    FeatureRow
	Source FeatureSource
}

// SupplierContext is everything the ranking engine needs about one supplier
// except the marketplace prior.
type SupplierContext struct {
	Listing  Listing
	Features ResolvedFeatures
}

// Candidate builds the ranking candidate using the given marketplace prior.
func (sc SupplierContext) Candidate(globalAcceptanceRate float64) ranking.Candidate {
	return sc.Listing.Candidate(sc.Features.Row.RankFeatures(globalAcceptanceRate))
}

// Service resolves supplier listings and features for ranking.
type Service struct {
	features FeatureRepository
	listings ListingRepository
	history  QuoteHistoryRepository
	stats    StatsRepository
	config   ServiceConfig
}

// NewService creates a new supplier Service.
func NewService(
	features FeatureRepository,
	listings ListingRepository,
	history QuoteHistoryRepository,
	stats StatsRepository,
	config ServiceConfig,
) *Service {
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultFeatureStaleAfter
	}
	if config.Window <= 0 {
		config.Window = DefaultFeatureWindow
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultFetchConcurrency
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Service{
		features: features,
		listings: listings,
		history:  history,
		stats:    stats,
		config:   config,
	}
}

// GlobalAcceptanceRate returns the marketplace prior. Lookup failures are
// logged and DefaultGlobalAcceptanceRate is used instead.
func (s *Service) GlobalAcceptanceRate(ctx context.Context) float64 {
	rate, err := s.stats.GlobalAcceptanceRate30d(ctx)
	if err != nil {
		s.config.Logger.Warn("global acceptance rate unavailable, using default",
			"default", DefaultGlobalAcceptanceRate,
			"error", err)
		return DefaultGlobalAcceptanceRate
	}
	return rate
}

// FeaturesFor returns the precomputed row for a supplier when present and
// fresh, otherwise a row derived from raw quote history.
func (s *Service) FeaturesFor(ctx context.Context, supplierID string) (ResolvedFeatures, error) {
	now := s.config.Now()

	row, err := s.features.GetFeatures(ctx, supplierID)
	switch {
	case err == nil && row.IsFresh(now, s.config.StaleAfter):
		return ResolvedFeatures{Row: *row, Source: FeatureSourcePrecomputed}, nil
	case err != nil && !errors.Is(err, ErrFeatureRowNotFound):
		s.config.Logger.Warn("feature row lookup failed, using quote history",
			"supplier_id", supplierID,
			"error", err)
	}

	events, err := s.history.ListBySupplier(ctx, supplierID, now.Add(-activityLookback))
	if err != nil {
		return ResolvedFeatures{}, err
	}

	if s.config.Tracker != nil {
		s.config.Tracker.MarkDirty(supplierID)
	}

	return ResolvedFeatures{
		Row:    FeatureFromHistory(supplierID, events, now, s.config.Window),
		Source: FeatureSourceHistory,
	}, nil
}

// Load returns the listing and features of one supplier, whatever its status.
func (s *Service) Load(ctx context.Context, supplierID string) (*SupplierContext, error) {
	listing, err := s.listings.GetListing(ctx, supplierID)
	if err != nil {
		return nil, err
	}

	features, err := s.FeaturesFor(ctx, supplierID)
	if err != nil {
		return nil, err
	}

	return &SupplierContext{Listing: *listing, Features: features}, nil
}

// LoadApproved returns every approved supplier with its features, in
// listing order. Feature lookups run concurrently.
func (s *Service) LoadApproved(ctx context.Context) ([]SupplierContext, error) {
	listings, err := s.listings.ListApproved(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]SupplierContext, len(listings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	for i, listing := range listings {
		g.Go(func() error {
			features, err := s.FeaturesFor(gctx, listing.SupplierID)
			if err != nil {
				return err
			}
			result[i] = SupplierContext{Listing: listing, Features: features}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
