package ranking

import "testing"

// TestToSlug tests free-text normalization into slugs.
func TestToSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"punctuation collapsed", "Live Music!!", "live-music"},
		{"whitespace only", "  ", ""},
		{"empty", "", ""},
		{"already a slug", "wedding-venues", "wedding-venues"},
		{"apostrophe dropped", "Jo's Flowers", "jos-flowers"},
		{"double quotes dropped", `"Best" Caterers`, "best-caterers"},
		{"typographic quotes dropped", "Jo’s “Best” Cakes", "jos-best-cakes"},
		{"leading and trailing separators", "--DJ & Sound--", "dj-sound"},
		{"duplicate separators", "photo   /  video", "photo-video"},
		{"digits kept", "Top 10 Bands", "top-10-bands"},
		{"non-ascii letters become separators", "Café Crème", "caf-cr-me"},
		{"underscores become hyphens", "hair_and_makeup", "hair-and-makeup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToSlug(tt.input)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

// TestToSlug_Idempotent verifies ToSlug(ToSlug(s)) == ToSlug(s).
func TestToSlug_Idempotent(t *testing.T) {
	inputs := []string{
		"Live Music!!",
		"  ",
		"Jo's Flowers",
		"--DJ & Sound--",
		"Café Crème",
		"İstanbul Events",
		"a--b__c  d",
		"ÆØÅ",
		"\t\n",
		"123",
	}

	for _, s := range inputs {
		once := ToSlug(s)
		twice := ToSlug(once)
		if once != twice {
			t.Errorf("ToSlug not idempotent for %q: %q then %q", s, once, twice)
		}
	}
}

// TestToTitle tests slug to display title conversion.
func TestToTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"single word", "florist", "Florist"},
		{"multiple words", "live-music", "Live Music"},
		{"raw text is re-slugged", "  wedding   VENUES ", "Wedding Venues"},
		{"leading digit segment", "top-10-bands", "Top 10 Bands"},
		{"separators only", "---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToTitle(tt.input)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}
