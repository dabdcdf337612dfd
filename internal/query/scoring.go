package query

import "strings"

// weights for one field. Tiers are cumulative: an exact match also counts
// as a prefix match and a substring match.
type weights struct {
	exact, prefix, contains, extra int
}

var (
	nameWeights  = weights{exact: 100, prefix: 50, contains: 20, extra: 5}
	emailWeights = weights{exact: 80, prefix: 40, contains: 15, extra: 3}
)

// Score ranks a record against a normalized (trimmed, lower-cased) term.
// A score of zero means the record does not match.
func Score(term, fullName, email string) int {
	if term == "" {
		return 0
	}
	return fieldScore(term, strings.ToLower(fullName), nameWeights) +
		fieldScore(term, strings.ToLower(email), emailWeights)
}

func fieldScore(term, value string, w weights) int {
	if !strings.Contains(value, term) {
		return 0
	}
	score := w.contains
	if value == term {
		score += w.exact
	}
	if strings.HasPrefix(value, term) {
		score += w.prefix
	}
	if n := strings.Count(value, term); n > 1 {
		score += (n - 1) * w.extra
	}
	return score
}

// normalize trims and lower-cases a raw query.
func normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
