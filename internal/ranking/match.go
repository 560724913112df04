package ranking

import "strings"

// Category match strengths.
const (
	CategoryExactMatch   = 1.0
	CategoryPartialMatch = 0.6
)

// Location match strengths, most specific field first. Any exact match
// outranks any partial match.
const (
	LocationLabelExact   = 1.0
	BaseCityExact        = 0.9
	RegionLabelExact     = 0.8
	LocationLabelPartial = 0.7
	BaseCityPartial      = 0.65
	RegionLabelPartial   = 0.6
)

// LocationCandidates are the location strings a listing can be matched on.
type LocationCandidates struct {
	LocationLabel string `json:"location_label"`
	BaseCity      string `json:"base_city"`
	RegionLabel   string `json:"region_label"`
}

// CategoryMatchStrength scores how well a category query matches any of
// the listing's categories: 1 for an exact slug match, 0.6 when one slug
// contains the other, 0 otherwise. An empty query never matches.
func CategoryMatchStrength(query string, candidates []string) float64 {
	q := ToSlug(query)
	if q == "" {
		return 0
	}

	slugs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if s := ToSlug(c); s != "" {
			slugs = append(slugs, s)
		}
	}

	for _, s := range slugs {
		if s == q {
			return CategoryExactMatch
		}
	}
	for _, s := range slugs {
		if partialMatch(q, s) {
			return CategoryPartialMatch
		}
	}
	return 0
}

// LocationMatchStrength scores a location query against the listing's
// location label, base city and region. Exact matches are checked on all
// three fields before any partial match is considered.
func LocationMatchStrength(query string, loc LocationCandidates) float64 {
	q := ToSlug(query)
	if q == "" {
		return 0
	}

	label := ToSlug(loc.LocationLabel)
	city := ToSlug(loc.BaseCity)
	region := ToSlug(loc.RegionLabel)

	switch {
	case label != "" && label == q:
		return LocationLabelExact
	case city != "" && city == q:
		return BaseCityExact
	case region != "" && region == q:
		return RegionLabelExact
	case partialMatch(q, label):
		return LocationLabelPartial
	case partialMatch(q, city):
		return BaseCityPartial
	case partialMatch(q, region):
		return RegionLabelPartial
	}
	return 0
}

// partialMatch reports whether either slug contains the other.
// Empty slugs never match.
func partialMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
