package supplier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/eventsupply/internal/tracing"
)

// globalAcceptanceRateKey is the marketplace_stats key of the 30 day prior.
const globalAcceptanceRateKey = "global_acceptance_rate_30d"

// PostgresFeatureRepository implements FeatureRepository using the supplier_rank_features table.
type PostgresFeatureRepository struct {
	db *sql.DB
}

// NewPostgresFeatureRepository creates a new PostgresFeatureRepository.
func NewPostgresFeatureRepository(db *sql.DB) *PostgresFeatureRepository {
	return &PostgresFeatureRepository{db: db}
}

// GetFeatures retrieves the precomputed row for a supplier.
func (r *PostgresFeatureRepository) GetFeatures(ctx context.Context, supplierID string) (row *FeatureRow, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "supplier_rank_features", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT supplier_id, quotes_sent_30d, accepted_30d,
		       response_time_median_minutes_30d, last_active_at, computed_at
		FROM supplier_rank_features
		WHERE supplier_id = $1
	`

	var (
		result       FeatureRow
		responseMins sql.NullFloat64
		lastActive   sql.NullTime
	)
	err = r.db.QueryRowContext(ctx, query, supplierID).Scan(
		&result.SupplierID,
		&result.QuotesSent30d,
		&result.Accepted30d,
		&responseMins,
		&lastActive,
		&result.ComputedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeatureRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature row: %w", err)
	}

	result.ResponseTimeMedianMinutes30d = floatPtr(responseMins)
	result.LastActiveAt = timePtr(lastActive)
	return &result, nil
}

// SaveFeatures upserts the row for row.SupplierID.
func (r *PostgresFeatureRepository) SaveFeatures(ctx context.Context, row FeatureRow) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "supplier_rank_features", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO supplier_rank_features (
			supplier_id, quotes_sent_30d, accepted_30d,
			response_time_median_minutes_30d, last_active_at, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (supplier_id) DO UPDATE SET
			quotes_sent_30d = EXCLUDED.quotes_sent_30d,
			accepted_30d = EXCLUDED.accepted_30d,
			response_time_median_minutes_30d = EXCLUDED.response_time_median_minutes_30d,
			last_active_at = EXCLUDED.last_active_at,
			computed_at = EXCLUDED.computed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		row.SupplierID,
		row.QuotesSent30d,
		row.Accepted30d,
		nullFloat(row.ResponseTimeMedianMinutes30d),
		nullTime(row.LastActiveAt),
		row.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save feature row: %w", err)
	}
	return nil
}

// PostgresListingRepository implements ListingRepository using the supplier_listings table.
type PostgresListingRepository struct {
	db *sql.DB
}

// NewPostgresListingRepository creates a new PostgresListingRepository.
func NewPostgresListingRepository(db *sql.DB) *PostgresListingRepository {
	return &PostgresListingRepository{db: db}
}

const listingColumns = `supplier_id, name, listing_categories, location_label,
		       base_city, region_label, is_verified, plan_type, status`

// GetListing retrieves a listing by supplier ID.
func (r *PostgresListingRepository) GetListing(ctx context.Context, supplierID string) (listing *Listing, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "supplier_listings", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + listingColumns + ` FROM supplier_listings WHERE supplier_id = $1`

	l, err := scanListing(r.db.QueryRowContext(ctx, query, supplierID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSupplierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// ListApproved retrieves all approved listings ordered by supplier ID.
func (r *PostgresListingRepository) ListApproved(ctx context.Context) (listings []Listing, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "supplier_listings", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + listingColumns + `
		FROM supplier_listings
		WHERE status = $1
		ORDER BY supplier_id`

	rows, err := r.db.QueryContext(ctx, query, string(ListingStatusApproved))
	if err != nil {
		return nil, fmt.Errorf("failed to list approved listings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}
	return listings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(s rowScanner) (*Listing, error) {
	var (
		l      Listing
		status string
	)
	err := s.Scan(
		&l.SupplierID,
		&l.Name,
		pq.Array(&l.ListingCategories),
		&l.LocationLabel,
		&l.BaseCity,
		&l.RegionLabel,
		&l.IsVerified,
		&l.PlanType,
		&status,
	)
	if err != nil {
		return nil, err
	}
	l.Status = ListingStatus(status)
	return &l, nil
}

// PostgresQuoteHistoryRepository implements QuoteHistoryRepository over the
// enquiries and quotes tables.
type PostgresQuoteHistoryRepository struct {
	db *sql.DB
}

// NewPostgresQuoteHistoryRepository creates a new PostgresQuoteHistoryRepository.
func NewPostgresQuoteHistoryRepository(db *sql.DB) *PostgresQuoteHistoryRepository {
	return &PostgresQuoteHistoryRepository{db: db}
}

const quoteEventSelect = `
		SELECT q.id, q.supplier_id, e.created_at, q.sent_at, q.accepted_at
		FROM quotes q
		JOIN enquiries e ON e.id = q.enquiry_id`

// ListBySupplier returns quote events for one supplier.
func (r *PostgresQuoteHistoryRepository) ListBySupplier(ctx context.Context, supplierID string, since time.Time) (events []QuoteEvent, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "quotes", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := quoteEventSelect + `
		WHERE q.supplier_id = $1 AND e.created_at >= $2
		ORDER BY e.created_at`

	return r.list(ctx, query, supplierID, since)
}

// ListSince returns quote events for all suppliers with quotes sent at or
// after since, regardless of when the enquiry was created.
func (r *PostgresQuoteHistoryRepository) ListSince(ctx context.Context, since time.Time) (events []QuoteEvent, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "quotes", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := quoteEventSelect + `
		WHERE q.sent_at >= $1
		ORDER BY q.sent_at`

	return r.list(ctx, query, since)
}

func (r *PostgresQuoteHistoryRepository) list(ctx context.Context, query string, args ...any) ([]QuoteEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quote events: %w", err)
	}
	defer rows.Close()

	var events []QuoteEvent
	for rows.Next() {
		var (
			ev       QuoteEvent
			sentAt   sql.NullTime
			accepted sql.NullTime
		)
		if err := rows.Scan(&ev.ID, &ev.SupplierID, &ev.EnquiryCreatedAt, &sentAt, &accepted); err != nil {
			return nil, fmt.Errorf("failed to scan quote event: %w", err)
		}
		ev.QuoteSentAt = timePtr(sentAt)
		ev.AcceptedAt = timePtr(accepted)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quote events: %w", err)
	}
	return events, nil
}

// PostgresStatsRepository implements StatsRepository using the marketplace_stats table.
type PostgresStatsRepository struct {
	db *sql.DB
}

// NewPostgresStatsRepository creates a new PostgresStatsRepository.
func NewPostgresStatsRepository(db *sql.DB) *PostgresStatsRepository {
	return &PostgresStatsRepository{db: db}
}

// GlobalAcceptanceRate30d reads the recorded prior.
func (r *PostgresStatsRepository) GlobalAcceptanceRate30d(ctx context.Context) (rate float64, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "marketplace_stats", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT value FROM marketplace_stats WHERE key = $1`
	err = r.db.QueryRowContext(ctx, query, globalAcceptanceRateKey).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultGlobalAcceptanceRate, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get global acceptance rate: %w", err)
	}
	return rate, nil
}

// SetGlobalAcceptanceRate30d upserts the prior.
func (r *PostgresStatsRepository) SetGlobalAcceptanceRate30d(ctx context.Context, rate float64) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "marketplace_stats", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO marketplace_stats (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err = r.db.ExecContext(ctx, query, globalAcceptanceRateKey, rate); err != nil {
		return fmt.Errorf("failed to set global acceptance rate: %w", err)
	}
	return nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
