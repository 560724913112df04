package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/eventsupply/internal/middleware"
	"github.com/onnwee/eventsupply/internal/ranking"
	"github.com/onnwee/eventsupply/internal/supplier"
	"github.com/onnwee/eventsupply/internal/tracing"
)

// Search pagination limits.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
)

// Endpoint labels used for ranking metrics.
const (
	endpointSupplierRanking = "/suppliers/{id}/ranking"
	endpointSearchSuppliers = "/search/suppliers"
)

// SupplierProvider resolves suppliers and the marketplace prior for ranking.
// *supplier.Service satisfies it.
type SupplierProvider interface {
	Load(ctx context.Context, supplierID string) (*supplier.SupplierContext, error)
	LoadApproved(ctx context.Context) ([]supplier.SupplierContext, error)
	GlobalAcceptanceRate(ctx context.Context) float64
}

// RankingHandlers serves the supplier search and ranking debug endpoints.
type RankingHandlers struct {
	suppliers SupplierProvider
	scorer    *ranking.Scorer
	metrics   *ranking.Metrics
}

// NewRankingHandlers creates a new RankingHandlers. metrics may be nil.
func NewRankingHandlers(suppliers SupplierProvider, scorer *ranking.Scorer, metrics *ranking.Metrics) *RankingHandlers {
	if scorer == nil {
		scorer = ranking.NewScorer(nil, nil)
	}
	return &RankingHandlers{
		suppliers: suppliers,
		scorer:    scorer,
		metrics:   metrics,
	}
}

// RankingDebugResponse is the full ranking trace for one supplier.
type RankingDebugResponse struct {
	SupplierID        string                 `json:"supplier_id"`
	Name              string                 `json:"name"`
	Status            supplier.ListingStatus `json:"status"`
	Context           ranking.MatchContext   `json:"context"`
	FeatureSource     supplier.FeatureSource `json:"feature_source"`
	FeatureComputedAt *time.Time             `json:"feature_computed_at,omitempty"`
	Features          ranking.Features       `json:"features"`
	Scores            ranking.ScoredFeatures `json:"scores"`
	Rank              ranking.RankResult     `json:"rank"`
	RankScore         float64                `json:"rank_score"`
	Explanation       []string               `json:"explanation"`
	Weights           *ranking.Weights       `json:"weights"`
}

// SupplierSearchResponse is the ranked search result page.
type SupplierSearchResponse struct {
	Context ranking.MatchContext    `json:"context"`
	Results []*SupplierSearchResult `json:"results"`
	Count   int                     `json:"count"`
	Total   int                     `json:"total"`
}

// SupplierSearchResult is one ranked supplier in a search page.
type SupplierSearchResult struct {
	SupplierID    string   `json:"supplier_id"`
	Name          string   `json:"name"`
	Categories    []string `json:"categories"`
	LocationLabel string   `json:"location_label,omitempty"`
	IsVerified    bool     `json:"is_verified"`
	PlanType      string   `json:"plan_type"`
	RankScore     float64  `json:"rank_score"`
	BaseQuality   float64  `json:"base_quality"`
	Match         float64  `json:"match"`
}

// SupplierRanking handles GET /suppliers/{id}/ranking, the admin debug view
// of how one supplier scores against an optional category and location.
func (h *RankingHandlers) SupplierRanking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeMethodNotAllowed)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/suppliers/"), "/")
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] != "ranking" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}
	supplierID := pathParts[0]

	mc := matchContextFromQuery(r)

	ctx, endSpan := tracing.StartSpan(r.Context(), "ranking.load_supplier")
	tracing.SetAttributes(ctx, attribute.String("supplier.id", supplierID))
	sc, err := h.suppliers.Load(ctx, supplierID)
	endSpan(err)
	if err != nil {
		if errors.Is(err, supplier.ErrSupplierNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeSupplierNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeSupplierNotFound, "Supplier not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load supplier for ranking",
			"supplier_id", supplierID,
			"error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load supplier")
		return
	}

	prior := h.suppliers.GlobalAcceptanceRate(r.Context())

	_, endScore := tracing.StartSpan(r.Context(), "ranking.score")
	ranked := h.scorer.Score(sc.Candidate(prior), mc)
	endScore(nil)

	h.observe(endpointSupplierRanking, ranked, sc.Features.Source)

	response := RankingDebugResponse{
		SupplierID:    supplierID,
		Name:          sc.Listing.Name,
		Status:        sc.Listing.Status,
		Context:       mc,
		FeatureSource: sc.Features.Source,
		Features:      ranked.Features,
		Scores:        ranked.Scored,
		Rank:          ranked.Rank,
		RankScore:     ranked.Rank.RankScore,
		Explanation:   ranked.Explanation,
		Weights:       h.scorer.Weights(),
	}
	if sc.Features.Source == supplier.FeatureSourcePrecomputed {
		computedAt := sc.Features.Row.ComputedAt
		response.FeatureComputedAt = &computedAt
	}

	writeJSON(w, r, http.StatusOK, response)
}

// SearchSuppliers handles GET /search/suppliers, returning approved suppliers
// ranked against the category and location in the query string.
func (h *RankingHandlers) SearchSuppliers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeMethodNotAllowed)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	limit := DefaultSearchLimit
	if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > MaxSearchLimit {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be an integer between 1 and 50")
			return
		}
		limit = parsed
	}

	mc := matchContextFromQuery(r)

	ctx, endSpan := tracing.StartSpan(r.Context(), "ranking.load_approved")
	suppliers, err := h.suppliers.LoadApproved(ctx)
	tracing.SetAttributes(ctx, attribute.Int("supplier.count", len(suppliers)))
	endSpan(err)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load approved suppliers", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load suppliers")
		return
	}

	prior := h.suppliers.GlobalAcceptanceRate(r.Context())

	byID := make(map[string]supplier.SupplierContext, len(suppliers))
	candidates := make([]ranking.Candidate, 0, len(suppliers))
	for _, sc := range suppliers {
		byID[sc.Listing.SupplierID] = sc
		candidates = append(candidates, sc.Candidate(prior))
	}

	_, endScore := tracing.StartSpan(r.Context(), "ranking.rank_all")
	ranked := h.scorer.RankAll(candidates, mc)
	endScore(nil)

	for _, rk := range ranked {
		h.observe(endpointSearchSuppliers, rk, byID[rk.SupplierID].Features.Source)
	}

	page := ranked
	if len(page) > limit {
		page = page[:limit]
	}

	results := make([]*SupplierSearchResult, 0, len(page))
	for _, rk := range page {
		listing := byID[rk.SupplierID].Listing
		results = append(results, &SupplierSearchResult{
			SupplierID:    rk.SupplierID,
			Name:          listing.Name,
			Categories:    listing.ListingCategories,
			LocationLabel: listing.LocationLabel,
			IsVerified:    listing.IsVerified,
			PlanType:      string(rk.Rank.PlanType),
			RankScore:     rk.Rank.RankScore,
			BaseQuality:   rk.Scored.BaseQuality,
			Match:         rk.Rank.Match,
		})
	}

	writeJSON(w, r, http.StatusOK, SupplierSearchResponse{
		Context: mc,
		Results: results,
		Count:   len(results),
		Total:   len(ranked),
	})
}

func (h *RankingHandlers) observe(endpoint string, ranked ranking.Ranked, source supplier.FeatureSource) {
	if h.metrics == nil {
		return
	}
	h.metrics.ObserveRanked(endpoint, ranked)
	h.metrics.IncFeatureSource(string(source))
}

func matchContextFromQuery(r *http.Request) ranking.MatchContext {
	query := r.URL.Query()
	return ranking.MatchContext{
		CategorySlug: query.Get("category_slug"),
		LocationSlug: query.Get("location_slug"),
	}.Normalized()
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
