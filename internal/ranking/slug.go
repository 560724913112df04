package ranking

import (
	"regexp"
	"strings"
)

var (
	quoteChars  = strings.NewReplacer(`'`, "", `"`, "", "‘", "", "’", "", "“", "", "”", "", "`", "")
	nonSlugRuns = regexp.MustCompile(`[^a-z0-9]+`)
)

// ToSlug normalizes free text into a canonical slug: lowercase ASCII
// letters and digits separated by single hyphens, with no leading or
// trailing hyphen. Quote characters are dropped so "Jo's" becomes "jos".
// ToSlug is idempotent.
func ToSlug(value string) string {
	s := strings.ToLower(strings.TrimSpace(value))
	s = quoteChars.Replace(s)
	s = nonSlugRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ToTitle renders a slug for display: "live-music" becomes "Live Music".
// The input is re-slugged first, so raw text is accepted too.
func ToTitle(slug string) string {
	parts := strings.Split(ToSlug(slug), "-")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		words = append(words, strings.ToUpper(p[:1])+p[1:])
	}
	return strings.Join(words, " ")
}
