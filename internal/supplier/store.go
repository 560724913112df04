package supplier

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryFeatureRepository is an in-memory implementation of FeatureRepository.
type InMemoryFeatureRepository struct {
	mu   sync.RWMutex
	rows map[string]FeatureRow // supplierID -> row
}

// NewInMemoryFeatureRepository creates a new in-memory feature repository.
func NewInMemoryFeatureRepository() *InMemoryFeatureRepository {
	return &InMemoryFeatureRepository{
		rows: make(map[string]FeatureRow),
	}
}

// GetFeatures returns the row for a supplier.
func (r *InMemoryFeatureRepository) GetFeatures(_ context.Context, supplierID string) (*FeatureRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[supplierID]
	if !ok {
		return nil, ErrFeatureRowNotFound
	}
	return &row, nil
}

// SaveFeatures inserts or replaces a row.
func (r *InMemoryFeatureRepository) SaveFeatures(_ context.Context, row FeatureRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[row.SupplierID] = row
	return nil
}

// InMemoryListingRepository is an in-memory implementation of ListingRepository.
type InMemoryListingRepository struct {
	mu       sync.RWMutex
	listings map[string]Listing // supplierID -> listing
}

// NewInMemoryListingRepository creates a new in-memory listing repository.
func NewInMemoryListingRepository() *InMemoryListingRepository {
	return &InMemoryListingRepository{
		listings: make(map[string]Listing),
	}
}

// AddListing inserts or replaces a listing.
func (r *InMemoryListingRepository) AddListing(l Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ListingCategories = append([]string(nil), l.ListingCategories...)
	r.listings[l.SupplierID] = l
}

// GetListing returns a listing regardless of status.
func (r *InMemoryListingRepository) GetListing(_ context.Context, supplierID string) (*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[supplierID]
	if !ok {
		return nil, ErrSupplierNotFound
	}
	l.ListingCategories = append([]string(nil), l.ListingCategories...)
	return &l, nil
}

// ListApproved returns approved listings ordered by supplier ID.
func (r *InMemoryListingRepository) ListApproved(_ context.Context) ([]Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Listing, 0, len(r.listings))
	for _, l := range r.listings {
		if l.Status != ListingStatusApproved {
			continue
		}
		l.ListingCategories = append([]string(nil), l.ListingCategories...)
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SupplierID < result[j].SupplierID
	})
	return result, nil
}

// InMemoryQuoteHistory is an in-memory implementation of QuoteHistoryRepository.
type InMemoryQuoteHistory struct {
	mu     sync.RWMutex
	events []QuoteEvent
}

// NewInMemoryQuoteHistory creates a new in-memory quote history.
func NewInMemoryQuoteHistory() *InMemoryQuoteHistory {
	return &InMemoryQuoteHistory{}
}

// AddEvent appends a quote event.
func (h *InMemoryQuoteHistory) AddEvent(ev QuoteEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

// ListBySupplier returns events for one supplier created at or after since.
func (h *InMemoryQuoteHistory) ListBySupplier(_ context.Context, supplierID string, since time.Time) ([]QuoteEvent, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []QuoteEvent
	for _, ev := range h.events {
		if ev.SupplierID == supplierID && !ev.EnquiryCreatedAt.Before(since) {
			result = append(result, ev)
		}
	}
	return result, nil
}

// ListSince returns events for all suppliers with quotes sent at or after since.
func (h *InMemoryQuoteHistory) ListSince(_ context.Context, since time.Time) ([]QuoteEvent, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []QuoteEvent
	for _, ev := range h.events {
		if ev.QuoteSentAt != nil && !ev.QuoteSentAt.Before(since) {
			result = append(result, ev)
		}
	}
	return result, nil
}

// InMemoryStats is an in-memory implementation of StatsRepository.
type InMemoryStats struct {
	mu   sync.RWMutex
	rate *float64
}

// NewInMemoryStats creates a new in-memory stats repository with no recorded prior.
func NewInMemoryStats() *InMemoryStats {
	return &InMemoryStats{}
}

// GlobalAcceptanceRate30d returns the recorded prior or the default.
func (s *InMemoryStats) GlobalAcceptanceRate30d(_ context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rate == nil {
		return DefaultGlobalAcceptanceRate, nil
	}
	return *s.rate, nil
}

// SetGlobalAcceptanceRate30d records the prior.
func (s *InMemoryStats) SetGlobalAcceptanceRate30d(_ context.Context, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = &rate
	return nil
}
