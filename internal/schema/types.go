// Package schema defines the normalized result shapes for each request kind
// and the defensive normalizers that produce them from untyped model output.
package schema

// Solution is one strategy for a stated activity/problem pair.
type Solution struct {
	Title     string   `json:"title"`
	Rationale string   `json:"rationale"`
	Steps     []string `json:"steps"`
}

// Milestone is a definition plus an ordered execution checklist.
type Milestone struct {
	Definition string   `json:"definition"`
	Steps      []string `json:"steps"`
}

// SearchResult is one topic-discovery hit.
type SearchResult struct {
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Relevance int    `json:"relevance"`
}

// Pricing holds the plan's unit price and capital requirement.
type Pricing struct {
	PricePerUnit    float64 `json:"pricePerUnit"`
	CapitalRequired float64 `json:"capitalRequired"`
}

// Sales holds the plan's volume assumptions.
type Sales struct {
	EstMonthlyUnits int      `json:"estMonthlyUnits"`
	Assumptions     []string `json:"assumptions"`
	GrowthPctMonth  float64  `json:"growthPctMonth"`
}

// InventoryItem is a single stocked item.
type InventoryItem struct {
	Name     string  `json:"name"`
	Qty      int     `json:"qty"`
	UnitCost float64 `json:"unitCost"`
}

// Expense is a recurring monthly cost.
type Expense struct {
	Name        string  `json:"name"`
	MonthlyCost float64 `json:"monthlyCost"`
}

// Metrics holds the model-asserted plan metrics. The derivation engine
// computes its own projections independently of these.
type Metrics struct {
	GrossMarginPct     float64 `json:"grossMarginPct"`
	OperatingMarginPct float64 `json:"operatingMarginPct"`
	BreakevenMonths    float64 `json:"breakevenMonths"`
}

// Plan is a normalized 6-month business plan. A plan is valid only when its
// title is non-empty; there is no heuristic substitute for a plan.
type Plan struct {
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	Pricing     Pricing         `json:"pricing"`
	Sales       Sales           `json:"sales"`
	Inventory   []InventoryItem `json:"inventory"`
	Expenses    []Expense       `json:"expenses"`
	Milestones  []string        `json:"milestones"`
	Innovations []string        `json:"innovations"`
	Metrics     Metrics         `json:"metrics"`
}
