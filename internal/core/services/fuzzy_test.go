package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "exact", a: "mustermann", b: "mustermann", want: 1},
		{name: "abbreviation", a: "max", b: "m", want: prefixCredit},
		{name: "prefix", a: "muster", b: "mustermann", want: prefixCredit},
		{name: "one typo", a: "mustermann", b: "mustermnan", want: 0.8},
		{name: "unrelated", a: "max", b: "mustermann", want: 0},
		{name: "beyond tolerance", a: "care", b: "brot", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tokenSimilarity(tt.a, tt.b), 0.001)
		})
	}
}

func TestScoreTokens(t *testing.T) {
	query := []string{"max", "mustermann"}

	exact := scoreTokens(query, []string{"max", "mustermann"})
	abbreviated := scoreTokens(query, []string{"m", "mustermann"})
	partial := scoreTokens(query, []string{"mustermann"})

	// Exact full-name match must rank above the abbreviation, which must
	// rank above the single-token partial.
	assert.Greater(t, exact, abbreviated)
	assert.Greater(t, abbreviated, partial)

	// All three name variants must clear the acceptance threshold.
	assert.GreaterOrEqual(t, exact, DefaultThreshold)
	assert.GreaterOrEqual(t, abbreviated, DefaultThreshold)
	assert.GreaterOrEqual(t, partial, DefaultThreshold)

	// Unrelated records must not.
	assert.Less(t, scoreTokens(query, []string{"erika", "musterfrau"}), DefaultThreshold)
}

func TestScoreTokensOrderBonus(t *testing.T) {
	query := []string{"max", "mustermann"}

	inOrder := scoreTokens(query, []string{"max", "mustermann"})
	reversed := scoreTokens(query, []string{"mustermann", "max"})

	assert.InDelta(t, orderBonus, inOrder-reversed, 0.001)
}

func TestScoreTokensEmpty(t *testing.T) {
	assert.Zero(t, scoreTokens(nil, []string{"max"}))
	assert.Zero(t, scoreTokens([]string{"max"}, nil))
}

func TestLessID(t *testing.T) {
	assert.True(t, lessID("2", "10"), "numeric IDs compare numerically")
	assert.False(t, lessID("10", "2"))
	assert.True(t, lessID("abc", "abd"), "non-numeric IDs compare lexicographically")
}
