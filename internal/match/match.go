// Package match implements title normalization and fuzzy equivalence for
// comparing model-generated suggestions against remote catalog titles. The
// remote service stores dual-language titles ("English/Original") and the
// model appends release years, so comparisons go through a canonical form.
package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	yearSuffixRe = regexp.MustCompile(`\s*\(((?:19|20)\d{2})\)\s*$`)
	listMarkerRe = regexp.MustCompile(`^(?:\d+[.)]\s*|[-*•]\s*)`)
)

// diacriticsFolder strips combining marks so "Amélie" and "Amelie"
// produce the same tight key
var diacriticsFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a title: lower-case, drop a trailing "(YYYY)"
// suffix, drop any dual-language prefix before the first "/"
func Normalize(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = yearSuffixRe.ReplaceAllString(s, "")
	if idx := strings.Index(s, "/"); idx >= 0 {
		s = s[idx+1:]
	}
	return strings.TrimSpace(s)
}

// TightKey reduces a title to a comparison key with colons, hyphens,
// whitespace and diacritics removed
func TightKey(title string) string {
	s := Normalize(title)
	if folded, _, err := transform.String(diacriticsFolder, s); err == nil {
		s = folded
	}
	var b strings.Builder
	for _, r := range s {
		if r == ':' || r == '-' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Equivalent reports whether two titles refer to the same content. The check
// is deliberately directional containment rather than exact equality: remote
// and model-generated titles frequently differ by subtitle or punctuation.
func Equivalent(a, b string) bool {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	return TightKey(a) == TightKey(b)
}

// Distance returns the Levenshtein distance between normalized titles,
// used to rank search candidates
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(Normalize(a), Normalize(b))
}

// Suggestion is one parsed recommendation line
type Suggestion struct {
	Title string
	Year  int // 0 when the line carried no year
}

// ParseSuggestion parses a free-text "Title (Year)" line from the
// recommender, tolerating list markers the model sometimes emits
func ParseSuggestion(line string) (*Suggestion, error) {
	s := strings.TrimSpace(line)
	s = listMarkerRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty suggestion line")
	}

	year := 0
	if m := yearSuffixRe.FindStringSubmatch(s); m != nil {
		year, _ = strconv.Atoi(m[1])
		s = strings.TrimSpace(yearSuffixRe.ReplaceAllString(s, ""))
	}
	if s == "" {
		return nil, fmt.Errorf("suggestion line %q has no title", line)
	}

	return &Suggestion{Title: s, Year: year}, nil
}
