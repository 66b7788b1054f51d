package match

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Breaking Bad (2008)", "breaking bad"},
		{"Во все тяжкое / Breaking Bad", "breaking bad"},
		{"  The Wire  ", "the wire"},
		{"Dune: Part Two (2024)", "dune: part two"},
		{"Твин Пикс/Twin Peaks (1990)", "twin peaks"},
		{"Heat", "heat"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTightKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dune: Part Two", "duneparttwo"},
		{"Spider-Man", "spiderman"},
		{"Amélie (2001)", "amelie"},
		{"Во все тяжкое / Breaking Bad", "breakingbad"},
	}

	for _, tt := range tests {
		if got := TightKey(tt.in); got != tt.want {
			t.Errorf("TightKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEquivalent(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		// Directional containment: subtitle differences must not break matching
		{"Dune", "Dune: Part Two", true},
		{"Blade Runner 2049", "Blade Runner", true},
		// Dual-language remote titles
		{"Breaking Bad (2008)", "Во все тяжкое / Breaking Bad", true},
		// Tight key equality across punctuation
		{"Spider-Man", "Spider Man", true},
		{"Dune: Part Two", "Dune Part Two", true},
		// Different content
		{"The Wire", "The Shield", false},
		{"Heat", "Fargo", false},
		// Empty titles never match
		{"", "Heat", false},
	}

	for _, tt := range tests {
		if got := Equivalent(tt.a, tt.b); got != tt.want {
			t.Errorf("Equivalent(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseSuggestion(t *testing.T) {
	tests := []struct {
		in        string
		wantTitle string
		wantYear  int
	}{
		{"Breaking Bad (2008)", "Breaking Bad", 2008},
		{"1. The Wire (2002)", "The Wire", 2002},
		{"- Severance (2022)", "Severance", 2022},
		{"* Dark", "Dark", 0},
		{"  Heat (1995)  ", "Heat", 1995},
	}

	for _, tt := range tests {
		got, err := ParseSuggestion(tt.in)
		if err != nil {
			t.Fatalf("ParseSuggestion(%q) returned error: %v", tt.in, err)
		}
		if got.Title != tt.wantTitle {
			t.Errorf("ParseSuggestion(%q).Title = %q, want %q", tt.in, got.Title, tt.wantTitle)
		}
		if got.Year != tt.wantYear {
			t.Errorf("ParseSuggestion(%q).Year = %d, want %d", tt.in, got.Year, tt.wantYear)
		}
	}
}

func TestParseSuggestionInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "- ", "(2020)"} {
		if _, err := ParseSuggestion(in); err == nil {
			t.Errorf("ParseSuggestion(%q) should fail", in)
		}
	}
}

func TestDistance(t *testing.T) {
	if d := Distance("Breaking Bad (2008)", "Breaking Bad"); d != 0 {
		t.Errorf("expected zero distance after normalization, got %d", d)
	}
	if d := Distance("Heat", "Heap"); d != 1 {
		t.Errorf("expected distance 1, got %d", d)
	}
}
