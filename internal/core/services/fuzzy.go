package services

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Fuzzy scoring weights. Heuristic, tuned against known contact-name
// variants ("Max Mustermann" vs "M. Mustermann" vs "Mustermann").
const (
	// prefixCredit is the similarity for abbreviations, where one token is
	// a strict prefix of the other ("m" vs "max").
	prefixCredit = 0.75

	// editTolerance is the maximum edit distance that still earns partial
	// credit for a typo.
	editTolerance = 2

	// orderBonus rewards two or more matched tokens appearing in the same
	// relative order as in the query.
	orderBonus = 0.1

	// DefaultThreshold is the minimum score a match must reach. Results
	// below it are dropped rather than surfaced as low-confidence noise.
	DefaultThreshold = 0.45
)

// tokenSimilarity scores two normalised tokens in [0, 1]: exact match 1,
// prefix/abbreviation prefixCredit, otherwise edit-distance partial credit
// within editTolerance, else 0.
func tokenSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
		return prefixCredit
	}

	dist := levenshtein.ComputeDistance(a, b)
	if dist > editTolerance {
		return 0
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(dist)/float64(maxLen)
}

// scoreTokens combines per-token similarity into a record score: the mean of
// the best similarity per query token, plus orderBonus when at least two
// matched tokens keep the query's relative order.
func scoreTokens(query, record []string) float64 {
	if len(query) == 0 || len(record) == 0 {
		return 0
	}

	total := 0.0
	positions := make([]int, 0, len(query))
	for _, q := range query {
		best := 0.0
		bestPos := -1
		for i, r := range record {
			if s := tokenSimilarity(q, r); s > best {
				best = s
				bestPos = i
			}
		}
		total += best
		if bestPos >= 0 {
			positions = append(positions, bestPos)
		}
	}

	score := total / float64(len(query))
	if len(positions) >= 2 && sort.IntsAreSorted(positions) {
		score += orderBonus
	}
	return score
}

// lessID orders IDs ascending for deterministic tie-breaking. Numeric IDs
// compare numerically, everything else lexicographically.
func lessID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
