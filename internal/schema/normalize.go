package schema

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Shape bounds. List caps come from the plan prompt contract; ideas and
// search share the request limit cap.
const (
	DefaultLimit = 8
	MaxLimit     = 12

	maxSolutionSteps  = 8
	maxMilestoneSteps = 7
	maxAssumptions    = 6
	maxInventory      = 6
	maxExpenses       = 8
	maxMilestones     = 8
	maxInnovations    = 6

	maxSearchTitle   = 120
	maxSearchSnippet = 320
)

// SanitizeLimit coerces a requested limit into [1, max], substituting def for
// zero/negative values.
func SanitizeLimit(raw, def, max int) int {
	n := raw
	if n <= 0 {
		n = def
	}
	if n > max {
		n = max
	}
	return n
}

// NormalizeIdeas extracts a bounded list of non-empty idea strings. Returns
// an empty slice when the payload has no usable ideas array.
func NormalizeIdeas(obj map[string]any, limit int) []string {
	limit = SanitizeLimit(limit, DefaultLimit, MaxLimit)
	return stringList(obj["ideas"], limit)
}

// NormalizeSolutions extracts solution entries, dropping any with no title or
// no steps.
func NormalizeSolutions(obj map[string]any) []Solution {
	arr, _ := obj["solutions"].([]any)
	out := make([]Solution, 0, len(arr))
	for _, v := range arr {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		s := Solution{
			Title:     strings.TrimSpace(toString(m["title"])),
			Rationale: strings.TrimSpace(toString(m["rationale"])),
			Steps:     stringList(m["steps"], maxSolutionSteps),
		}
		if s.Title == "" || len(s.Steps) == 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

// NormalizeMilestone extracts a milestone. The caller treats an empty
// definition or empty steps as invalid.
func NormalizeMilestone(obj map[string]any) Milestone {
	return Milestone{
		Definition: strings.TrimSpace(toString(obj["definition"])),
		Steps:      stringList(obj["steps"], maxMilestoneSteps),
	}
}

// NormalizeSearch extracts search results: bounded title/snippet, relevance
// clamped to [0,100], sorted by descending relevance, truncated to limit.
// Entries missing a title or snippet are dropped.
func NormalizeSearch(obj map[string]any, limit int) []SearchResult {
	limit = SanitizeLimit(limit, DefaultLimit, MaxLimit)
	arr, _ := obj["results"].([]any)
	out := make([]SearchResult, 0, len(arr))
	for _, v := range arr {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		r := SearchResult{
			Title:     clip(strings.TrimSpace(toString(m["title"])), maxSearchTitle),
			Snippet:   clip(strings.TrimSpace(toString(m["snippet"])), maxSearchSnippet),
			Relevance: clampInt(toInt(m["relevance"]), 0, 100),
		}
		if r.Title == "" || r.Snippet == "" {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// NormalizePlan coerces an untyped payload into a Plan. It never fails;
// validity is decided by the caller on Title being non-empty.
func NormalizePlan(obj map[string]any) *Plan {
	if obj == nil {
		return nil
	}

	pricing, _ := obj["pricing"].(map[string]any)
	sales, _ := obj["sales"].(map[string]any)
	metrics, _ := obj["metrics"].(map[string]any)

	return &Plan{
		Title:   clip(strings.TrimSpace(toString(obj["title"])), 120),
		Summary: clip(strings.TrimSpace(toString(obj["summary"])), 240),
		Pricing: Pricing{
			PricePerUnit:    toFloat(pricing["pricePerUnit"]),
			CapitalRequired: toFloat(pricing["capitalRequired"]),
		},
		Sales: Sales{
			EstMonthlyUnits: toInt(sales["estMonthlyUnits"]),
			Assumptions:     stringList(sales["assumptions"], maxAssumptions),
			GrowthPctMonth:  toFloat(sales["growthPctMonth"]),
		},
		Inventory:   inventoryList(obj["inventory"], maxInventory),
		Expenses:    expenseList(obj["expenses"], maxExpenses),
		Milestones:  stringList(obj["milestones"], maxMilestones),
		Innovations: stringList(obj["innovations"], maxInnovations),
		Metrics: Metrics{
			GrossMarginPct:     toFloat(metrics["grossMarginPct"]),
			OperatingMarginPct: toFloat(metrics["operatingMarginPct"]),
			BreakevenMonths:    toFloat(metrics["breakevenMonths"]),
		},
	}
}

func inventoryList(v any, max int) []InventoryItem {
	arr, _ := v.([]any)
	out := make([]InventoryItem, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		item := InventoryItem{
			Name:     strings.TrimSpace(toString(m["name"])),
			Qty:      toInt(m["qty"]),
			UnitCost: toFloat(m["unitCost"]),
		}
		if item.Name == "" || item.Qty <= 0 {
			continue
		}
		out = append(out, item)
		if len(out) == max {
			break
		}
	}
	return out
}

func expenseList(v any, max int) []Expense {
	arr, _ := v.([]any)
	out := make([]Expense, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		exp := Expense{
			Name:        strings.TrimSpace(toString(m["name"])),
			MonthlyCost: toFloat(m["monthlyCost"]),
		}
		if exp.Name == "" || exp.MonthlyCost < 0 {
			continue
		}
		out = append(out, exp)
		if len(out) == max {
			break
		}
	}
	return out
}

// stringList coerces a value into trimmed non-empty strings, capped at max.
func stringList(v any, max int) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s := strings.TrimSpace(toString(e))
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}

// toString renders scalars as strings the way loose JS coercion would.
func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// toFloat coerces numbers and numeric strings; anything else is 0.
func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func toInt(v any) int {
	return int(toFloat(v))
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// clip truncates to max characters (runes, not bytes).
func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
