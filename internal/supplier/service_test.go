package supplier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/eventsupply/internal/ranking"
)

type serviceFixture struct {
	features *InMemoryFeatureRepository
	listings *InMemoryListingRepository
	history  *InMemoryQuoteHistory
	stats    *InMemoryStats
	tracker  *DirtyTracker
	service  *Service
}

func newServiceFixture(stats StatsRepository) *serviceFixture {
	f := &serviceFixture{
		features: NewInMemoryFeatureRepository(),
		listings: NewInMemoryListingRepository(),
		history:  NewInMemoryQuoteHistory(),
		stats:    NewInMemoryStats(),
		tracker:  NewDirtyTracker(),
	}
	if stats == nil {
		stats = f.stats
	}
	f.service = NewService(f.features, f.listings, f.history, stats, ServiceConfig{
		StaleAfter: 6 * time.Hour,
		Tracker:    f.tracker,
		Logger:     quietLogger(),
		Now:        func() time.Time { return testNow },
	})
	return f
}

type failingFeatures struct{}

func (failingFeatures) GetFeatures(context.Context, string) (*FeatureRow, error) {
	return nil, errors.New("feature store unavailable")
}

func (failingFeatures) SaveFeatures(context.Context, FeatureRow) error {
	return errors.New("feature store unavailable")
}

type failingHistory struct {
	failFor string
	inner   QuoteHistoryRepository
}

func (h failingHistory) ListBySupplier(ctx context.Context, supplierID string, since time.Time) ([]QuoteEvent, error) {
	if supplierID == h.failFor {
		return nil, errors.New("history unavailable")
	}
	return h.inner.ListBySupplier(ctx, supplierID, since)
}

func (h failingHistory) ListSince(ctx context.Context, since time.Time) ([]QuoteEvent, error) {
	return h.inner.ListSince(ctx, since)
}

func TestService_FeaturesFor(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh precomputed row", func(t *testing.T) {
		f := newServiceFixture(nil)
		_ = f.features.SaveFeatures(ctx, FeatureRow{SupplierID: "sup-1", QuotesSent30d: 9, ComputedAt: testNow.Add(-time.Hour)})

		got, err := f.service.FeaturesFor(ctx, "sup-1")
		if err != nil {
			t.Fatalf("FeaturesFor() error = %v", err)
		}
		if got.Source != FeatureSourcePrecomputed {
			t.Errorf("expected precomputed source, got %s", got.Source)
		}
		if got.Row.QuotesSent30d != 9 {
			t.Errorf("expected stored row, got %+v", got.Row)
		}
		if f.tracker.IsDirty("sup-1") {
			t.Error("fresh row should not mark the supplier dirty")
		}
	})

	t.Run("stale row falls back to history", func(t *testing.T) {
		f := newServiceFixture(nil)
		_ = f.features.SaveFeatures(ctx, FeatureRow{SupplierID: "sup-1", QuotesSent30d: 9, ComputedAt: testNow.Add(-7 * time.Hour)})
		for _, ev := range sampleHistory() {
			f.history.AddEvent(ev)
		}

		got, err := f.service.FeaturesFor(ctx, "sup-1")
		if err != nil {
			t.Fatalf("FeaturesFor() error = %v", err)
		}
		if got.Source != FeatureSourceHistory {
			t.Errorf("expected history source, got %s", got.Source)
		}
		if got.Row.QuotesSent30d != 3 || got.Row.Accepted30d != 2 {
			t.Errorf("expected history-derived counts 3/2, got %d/%d", got.Row.QuotesSent30d, got.Row.Accepted30d)
		}
		if !f.tracker.IsDirty("sup-1") {
			t.Error("history fallback should mark the supplier dirty")
		}
	})

	t.Run("missing row falls back to history", func(t *testing.T) {
		f := newServiceFixture(nil)
		got, err := f.service.FeaturesFor(ctx, "sup-9")
		if err != nil {
			t.Fatalf("FeaturesFor() error = %v", err)
		}
		if got.Source != FeatureSourceHistory {
			t.Errorf("expected history source, got %s", got.Source)
		}
		if got.Row.QuotesSent30d != 0 || got.Row.LastActiveAt != nil {
			t.Errorf("expected empty history row, got %+v", got.Row)
		}
	})

	t.Run("feature store error falls back to history", func(t *testing.T) {
		history := NewInMemoryQuoteHistory()
		history.AddEvent(quoteEvent("q1", "sup-1", 1, 30, true))
		svc := NewService(failingFeatures{}, NewInMemoryListingRepository(), history, NewInMemoryStats(), ServiceConfig{
			Logger: quietLogger(),
			Now:    func() time.Time { return testNow },
		})

		got, err := svc.FeaturesFor(ctx, "sup-1")
		if err != nil {
			t.Fatalf("FeaturesFor() error = %v", err)
		}
		if got.Source != FeatureSourceHistory || got.Row.QuotesSent30d != 1 {
			t.Errorf("expected history row with 1 quote, got %+v", got)
		}
	})

	t.Run("non-positive stale age uses the default", func(t *testing.T) {
		for _, staleAfter := range []time.Duration{0, -time.Hour} {
			features := NewInMemoryFeatureRepository()
			_ = features.SaveFeatures(ctx, FeatureRow{SupplierID: "sup-1", QuotesSent30d: 9, ComputedAt: testNow.Add(-DefaultFeatureStaleAfter - time.Hour)})
			_ = features.SaveFeatures(ctx, FeatureRow{SupplierID: "sup-2", QuotesSent30d: 4, ComputedAt: testNow.Add(-time.Hour)})
			svc := NewService(features, NewInMemoryListingRepository(), NewInMemoryQuoteHistory(), NewInMemoryStats(), ServiceConfig{
				StaleAfter: staleAfter,
				Logger:     quietLogger(),
				Now:        func() time.Time { return testNow },
			})

			old, err := svc.FeaturesFor(ctx, "sup-1")
			if err != nil {
				t.Fatalf("FeaturesFor() error = %v", err)
			}
			if old.Source != FeatureSourceHistory {
				t.Errorf("StaleAfter=%v: expected row older than the default to come from history, got %s", staleAfter, old.Source)
			}

			recent, err := svc.FeaturesFor(ctx, "sup-2")
			if err != nil {
				t.Fatalf("FeaturesFor() error = %v", err)
			}
			if recent.Source != FeatureSourcePrecomputed {
				t.Errorf("StaleAfter=%v: expected recent row to be precomputed, got %s", staleAfter, recent.Source)
			}
		}
	})

	t.Run("history error is returned", func(t *testing.T) {
		svc := NewService(NewInMemoryFeatureRepository(), NewInMemoryListingRepository(),
			failingHistory{failFor: "sup-1", inner: NewInMemoryQuoteHistory()}, NewInMemoryStats(),
			ServiceConfig{Logger: quietLogger()})

		if _, err := svc.FeaturesFor(ctx, "sup-1"); err == nil {
			t.Error("expected error when history is unavailable")
		}
	})
}

func TestService_GlobalAcceptanceRate(t *testing.T) {
	ctx := context.Background()

	f := newServiceFixture(nil)
	_ = f.stats.SetGlobalAcceptanceRate30d(ctx, 0.44)
	if got := f.service.GlobalAcceptanceRate(ctx); got != 0.44 {
		t.Errorf("expected 0.44, got %f", got)
	}

	failing := newServiceFixture(failingStats{})
	if got := failing.service.GlobalAcceptanceRate(ctx); got != DefaultGlobalAcceptanceRate {
		t.Errorf("expected default %f on stats error, got %f", DefaultGlobalAcceptanceRate, got)
	}
}

func TestService_Load(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(nil)
	f.listings.AddListing(Listing{SupplierID: "sup-1", Status: ListingStatusPending, BaseCity: "London"})

	sc, err := f.service.Load(ctx, "sup-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sc.Listing.BaseCity != "London" {
		t.Errorf("expected listing to be loaded, got %+v", sc.Listing)
	}

	if _, err := f.service.Load(ctx, "missing"); !errors.Is(err, ErrSupplierNotFound) {
		t.Errorf("expected ErrSupplierNotFound, got %v", err)
	}
}

func TestService_LoadApproved(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(nil)

	for i, id := range []string{"sup-c", "sup-a", "sup-b", "sup-d", "sup-e"} {
		status := ListingStatusApproved
		if id == "sup-d" {
			status = ListingStatusRejected
		}
		f.listings.AddListing(Listing{SupplierID: id, Status: status})
		_ = f.features.SaveFeatures(ctx, FeatureRow{SupplierID: id, QuotesSent30d: i, ComputedAt: testNow})
	}

	got, err := f.service.LoadApproved(ctx)
	if err != nil {
		t.Fatalf("LoadApproved() error = %v", err)
	}

	want := []string{"sup-a", "sup-b", "sup-c", "sup-e"}
	if len(got) != len(want) {
		t.Fatalf("expected %d suppliers, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].Listing.SupplierID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].Listing.SupplierID)
		}
		if got[i].Features.Row.SupplierID != id {
			t.Errorf("position %d: features belong to %s", i, got[i].Features.Row.SupplierID)
		}
	}
}

func TestService_LoadApprovedPropagatesErrors(t *testing.T) {
	listings := NewInMemoryListingRepository()
	listings.AddListing(Listing{SupplierID: "sup-1", Status: ListingStatusApproved})
	listings.AddListing(Listing{SupplierID: "sup-2", Status: ListingStatusApproved})

	svc := NewService(NewInMemoryFeatureRepository(), listings,
		failingHistory{failFor: "sup-2", inner: NewInMemoryQuoteHistory()}, NewInMemoryStats(),
		ServiceConfig{Logger: quietLogger(), Concurrency: 1})

	if _, err := svc.LoadApproved(context.Background()); err == nil {
		t.Error("expected error from failing history lookup")
	}
}

func TestSupplierContext_Candidate(t *testing.T) {
	minutes := 45.0
	sc := SupplierContext{
		Listing: Listing{
			SupplierID:        "sup-1",
			ListingCategories: []string{"florist"},
			LocationLabel:     "Hackney",
			BaseCity:          "London",
			RegionLabel:       "Greater London",
			IsVerified:        true,
			PlanType:          "pro",
		},
		Features: ResolvedFeatures{
			Row: FeatureRow{SupplierID: "sup-1", QuotesSent30d: 5, Accepted30d: 3, ResponseTimeMedianMinutes30d: &minutes},
		},
	}

	c := sc.Candidate(0.4)
	expected := ranking.Features{
		Accepted30d:             3,
		QuotesSent30d:           5,
		GlobalAcceptanceRate30d: 0.4,
		ResponseMinutes30d:      &minutes,
	}
	if c.Features != expected {
		t.Errorf("expected features %+v, got %+v", expected, c.Features)
	}
	if c.Location.BaseCity != "London" || c.Location.RegionLabel != "Greater London" {
		t.Errorf("unexpected location: %+v", c.Location)
	}
	if !c.IsVerified || c.PlanType != "pro" || c.SupplierID != "sup-1" {
		t.Errorf("unexpected candidate: %+v", c)
	}
}
