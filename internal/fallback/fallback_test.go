package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdeas_Deterministic(t *testing.T) {
	a := Ideas("cheap food products", 8)
	b := Ideas("cheap food products", 8)
	assert.Equal(t, a, b)
}

func TestIdeas_NeverEmpty(t *testing.T) {
	for _, q := range []string{"", "   ", "anything at all"} {
		got := Ideas(q, 8)
		assert.NotEmpty(t, got, "query %q", q)
	}
}

func TestIdeas_RespectsLimit(t *testing.T) {
	assert.Len(t, Ideas("x", 3), 3)
	// Zero uses the default; the seed list caps output at 10.
	assert.Len(t, Ideas("x", 0), 8)
	assert.Len(t, Ideas("x", 99), 10)
}

func TestIdeas_FlagComposition(t *testing.T) {
	got := Ideas("cheap food business", 2)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "Low-cost")
	assert.Contains(t, got[0], "Food Stall")

	plain := Ideas("bakery", 2)
	assert.NotContains(t, plain[0], "Low-cost")
}

func TestIdeas_Unique(t *testing.T) {
	got := Ideas("product ideas", 10)
	seen := make(map[string]bool)
	for _, idea := range got {
		assert.False(t, seen[idea], "duplicate idea %q", idea)
		seen[idea] = true
	}
}

func TestSolutions(t *testing.T) {
	got := Solutions(2)
	require.Len(t, got, 2)
	assert.Equal(t, "Clarify Core Issue", got[0].Title)
	assert.Equal(t, "Lightweight Pilot Test", got[1].Title)

	// Default count is 3, cap is 5.
	assert.Len(t, Solutions(0), 3)
	assert.Len(t, Solutions(10), 5)

	for _, s := range Solutions(5) {
		assert.NotEmpty(t, s.Title)
		assert.NotEmpty(t, s.Rationale)
		assert.NotEmpty(t, s.Steps)
	}
}

func TestMilestone(t *testing.T) {
	got := Milestone("Launch v1 beta")
	assert.Equal(t, "Foundational progress toward: Launch v1 beta", got.Definition)
	assert.Len(t, got.Steps, 5)

	blank := Milestone("  ")
	assert.Equal(t, "Foundational progress toward: Core Milestone", blank.Definition)
}

func TestSearch_RelevanceDescending(t *testing.T) {
	got := Search("market sizing tactics", 10)
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i-1].Relevance, got[i].Relevance)
	}
	for _, r := range got {
		assert.GreaterOrEqual(t, r.Relevance, 0)
		assert.LessOrEqual(t, r.Relevance, 100)
	}
}

func TestSearch_TokenAugmentation(t *testing.T) {
	got := Search("local catering growth", 4)
	require.Len(t, got, 4)
	// Tokens longer than 3 chars: "local", "catering" (first two only).
	assert.Contains(t, got[0].Title, "Local")
	assert.Contains(t, got[1].Title, "Catering")
	assert.Contains(t, got[0].Snippet, "Focus: local, catering.")
}

func TestSearch_ShortTokensIgnored(t *testing.T) {
	got := Search("a bc def", 3)
	require.Len(t, got, 3)
	// "a" and "bc" are too short; "def" is too ("def" has 3 chars).
	assert.Equal(t, "Core Overview Guide", got[0].Title)
	assert.NotContains(t, got[0].Snippet, "Focus:")
}

func TestSearch_EmptyQuery(t *testing.T) {
	got := Search("", 5)
	require.Len(t, got, 5)
	// Default query "business strategy" contributes tokens.
	assert.Contains(t, got[0].Title, "Business")
}
