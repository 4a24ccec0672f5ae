package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLimit(t *testing.T) {
	tests := []struct {
		name string
		raw  int
		want int
	}{
		{"zero_uses_default", 0, 8},
		{"negative_uses_default", -3, 8},
		{"in_range", 5, 5},
		{"above_cap", 40, 12},
		{"at_cap", 12, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeLimit(tt.raw, DefaultLimit, MaxLimit))
		})
	}
}

func TestNormalizeIdeas(t *testing.T) {
	obj := map[string]any{"ideas": []any{" A ", "", "B", 3.0, "C"}}
	got := NormalizeIdeas(obj, 2)
	assert.Equal(t, []string{"A", "B"}, got)

	// Missing or wrongly typed ideas field yields empty.
	assert.Empty(t, NormalizeIdeas(map[string]any{}, 5))
	assert.Empty(t, NormalizeIdeas(map[string]any{"ideas": "nope"}, 5))
}

func TestNormalizeIdeas_Idempotent(t *testing.T) {
	obj := map[string]any{"ideas": []any{"  one ", "two", "", "three", "four"}}
	once := NormalizeIdeas(obj, 3)

	again := make([]any, len(once))
	for i, s := range once {
		again[i] = s
	}
	twice := NormalizeIdeas(map[string]any{"ideas": again}, 3)
	assert.Equal(t, once, twice)
}

func TestNormalizeSolutions(t *testing.T) {
	obj := map[string]any{"solutions": []any{
		map[string]any{"title": " Fix it ", "rationale": "Because.", "steps": []any{"a", "", "b"}},
		map[string]any{"title": "", "steps": []any{"a"}},          // no title: dropped
		map[string]any{"title": "No steps", "steps": []any{}},    // no steps: dropped
		map[string]any{"title": "Many", "steps": []any{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}},
		"not an object",
	}}
	got := NormalizeSolutions(obj)
	require.Len(t, got, 2)
	assert.Equal(t, "Fix it", got[0].Title)
	assert.Equal(t, []string{"a", "b"}, got[0].Steps)
	assert.Len(t, got[1].Steps, 8)
}

func TestNormalizeMilestone(t *testing.T) {
	obj := map[string]any{
		"definition": " Ship the beta. ",
		"steps":      []any{"a", "b", "c", "d", "e", "f", "g", "h"},
	}
	got := NormalizeMilestone(obj)
	assert.Equal(t, "Ship the beta.", got.Definition)
	assert.Len(t, got.Steps, 7)

	empty := NormalizeMilestone(map[string]any{})
	assert.Empty(t, empty.Definition)
	assert.Empty(t, empty.Steps)
}

func TestNormalizeSearch(t *testing.T) {
	obj := map[string]any{"results": []any{
		map[string]any{"title": "Low", "snippet": "s", "relevance": 10.0},
		map[string]any{"title": "High", "snippet": "s", "relevance": 90.0},
		map[string]any{"title": "Overflow", "snippet": "s", "relevance": 250.0},
		map[string]any{"title": "Negative", "snippet": "s", "relevance": -5.0},
		map[string]any{"title": "", "snippet": "dropped"},
		map[string]any{"title": "NoSnippet", "snippet": ""},
	}}
	got := NormalizeSearch(obj, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "Overflow", got[0].Title)
	assert.Equal(t, 100, got[0].Relevance)
	assert.Equal(t, "High", got[1].Title)
	assert.Equal(t, "Low", got[2].Title)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Relevance, got[i].Relevance)
	}
	for _, r := range got {
		assert.GreaterOrEqual(t, r.Relevance, 0)
		assert.LessOrEqual(t, r.Relevance, 100)
	}
}

func TestNormalizeSearch_ClipsLengths(t *testing.T) {
	obj := map[string]any{"results": []any{
		map[string]any{
			"title":     strings.Repeat("t", 200),
			"snippet":   strings.Repeat("s", 500),
			"relevance": 50.0,
		},
	}}
	got := NormalizeSearch(obj, 12)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Title, 120)
	assert.Len(t, got[0].Snippet, 320)
}

func TestNormalizePlan(t *testing.T) {
	obj := map[string]any{
		"title":   "  Coffee Cart  ",
		"summary": "Sell coffee.",
		"pricing": map[string]any{"pricePerUnit": 4.5, "capitalRequired": 2000.0},
		"sales": map[string]any{
			"estMonthlyUnits": 800.0,
			"assumptions":     []any{"a1", "a2", "a3", "a4", "a5", "a6", "a7"},
			"growthPctMonth":  "12",
		},
		"inventory": []any{
			map[string]any{"name": "Beans", "qty": 10.0, "unitCost": 15.0},
			map[string]any{"name": "Ghost", "qty": 0.0, "unitCost": 5.0}, // qty<=0 dropped
			map[string]any{"name": "", "qty": 2.0, "unitCost": 5.0},      // no name dropped
		},
		"expenses": []any{
			map[string]any{"name": "Rent", "monthlyCost": 600.0},
			map[string]any{"name": "Bad", "monthlyCost": -5.0}, // negative dropped
		},
		"milestones":  []any{"m1", "m2"},
		"innovations": []any{"i1"},
		"metrics":     map[string]any{"grossMarginPct": 60.0, "operatingMarginPct": 20.0, "breakevenMonths": 3.0},
	}

	p := NormalizePlan(obj)
	require.NotNil(t, p)
	assert.Equal(t, "Coffee Cart", p.Title)
	assert.Equal(t, 4.5, p.Pricing.PricePerUnit)
	assert.Equal(t, 800, p.Sales.EstMonthlyUnits)
	assert.Equal(t, 12.0, p.Sales.GrowthPctMonth)
	assert.Len(t, p.Sales.Assumptions, 6)
	require.Len(t, p.Inventory, 1)
	assert.Equal(t, "Beans", p.Inventory[0].Name)
	require.Len(t, p.Expenses, 1)
	assert.Equal(t, "Rent", p.Expenses[0].Name)
	assert.Equal(t, 3.0, p.Metrics.BreakevenMonths)
}

func TestNormalizePlan_NilAndMissingFields(t *testing.T) {
	assert.Nil(t, NormalizePlan(nil))

	p := NormalizePlan(map[string]any{})
	require.NotNil(t, p)
	assert.Empty(t, p.Title)
	assert.Zero(t, p.Pricing.PricePerUnit)
	assert.Empty(t, p.Inventory)
	assert.Empty(t, p.Expenses)
}

func TestCoercionHelpers(t *testing.T) {
	assert.Equal(t, "5", toString(5.0))
	assert.Equal(t, "true", toString(true))
	assert.Equal(t, "", toString(map[string]any{}))
	assert.Equal(t, 7.5, toFloat("7.5"))
	assert.Equal(t, 0.0, toFloat("abc"))
	assert.Equal(t, 3, toInt(3.9))
}
