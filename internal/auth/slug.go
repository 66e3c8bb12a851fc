package auth

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Badshah-h/v0-production-grade-review/internal/ids"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

const (
	fallbackSlug        = "org"
	maxNumberedSlugs    = 9
	randomSlugSuffixLen = 6
)

// Slugify lowercases name, collapses every run of non-alphanumerics into one
// hyphen and strips leading and trailing hyphens.
func Slugify(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.Trim(nonSlugChars.ReplaceAllString(lower, "-"), "-")
}

// slugCandidates yields base, base-2 … base-9 and finally base-<random>.
func slugCandidates(name string) []string {
	base := Slugify(name)
	if base == "" {
		base = fallbackSlug
	}
	out := make([]string, 0, maxNumberedSlugs+1)
	out = append(out, base)
	for i := 2; i <= maxNumberedSlugs; i++ {
		out = append(out, fmt.Sprintf("%s-%d", base, i))
	}
	return append(out, base+"-"+ids.Suffix(randomSlugSuffixLen))
}
