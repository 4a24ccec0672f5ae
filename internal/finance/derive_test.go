package finance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venture-kit/plan-proxy/internal/schema"
)

func basePlan() *schema.Plan {
	return &schema.Plan{
		Title:   "Coffee Cart",
		Summary: "Sell coffee near the station.",
		Pricing: schema.Pricing{PricePerUnit: 5, CapitalRequired: 3000},
		Sales:   schema.Sales{EstMonthlyUnits: 1000, GrowthPctMonth: 10},
		Inventory: []schema.InventoryItem{
			{Name: "Beans", Qty: 20, UnitCost: 1},
			{Name: "Cups", Qty: 1000, UnitCost: 0.1},
		},
		Expenses: []schema.Expense{
			{Name: "Rent", MonthlyCost: 1200},
			{Name: "Power", MonthlyCost: 300},
		},
	}
}

func TestDerive_BasicProjection(t *testing.T) {
	d := Derive(basePlan())

	require.Len(t, d.ProjectedRevenueMonths, Horizon)
	require.Len(t, d.GrossProfitMonths, Horizon)
	require.Len(t, d.NetProfitMonths, Horizon)
	require.Len(t, d.CumulativeNetProfitMonths, Horizon)
	assert.Empty(t, d.ValidationWarnings)

	// Month 1: 1000 units * $5 = $5000 revenue, avg unit cost $0.55.
	assert.Equal(t, 5000.0, d.ProjectedRevenueMonths[0])
	assert.Equal(t, 4450.0, d.GrossProfitMonths[0])
	assert.Equal(t, 2950.0, d.NetProfitMonths[0])

	// Month 2 grows 10%: 1100 units.
	assert.Equal(t, 5500.0, d.ProjectedRevenueMonths[1])

	require.NotNil(t, d.ComputedBreakevenMonth)
	assert.Equal(t, 1, *d.ComputedBreakevenMonth)
}

func TestDerive_CumulativeIsRunningSum(t *testing.T) {
	d := Derive(basePlan())
	var sum float64
	for i := 0; i < Horizon; i++ {
		sum = round2(sum + d.NetProfitMonths[i])
		assert.Equal(t, sum, d.CumulativeNetProfitMonths[i], "month %d", i+1)
	}
}

func TestDerive_ZeroPriceScenario(t *testing.T) {
	plan := &schema.Plan{
		Title:   "Free Product",
		Pricing: schema.Pricing{PricePerUnit: 0},
		Sales:   schema.Sales{EstMonthlyUnits: 100},
	}
	d := Derive(plan)

	for i := 0; i < Horizon; i++ {
		assert.Zero(t, d.ProjectedRevenueMonths[i])
		assert.Zero(t, d.GrossProfitMonths[i])
		assert.Zero(t, d.NetProfitMonths[i])
		assert.Zero(t, d.CumulativeNetProfitMonths[i])
	}
	// Cumulative 0 >= 0 immediately.
	require.NotNil(t, d.ComputedBreakevenMonth)
	assert.Equal(t, 1, *d.ComputedBreakevenMonth)
	assert.Contains(t, d.ValidationWarnings, "price_per_unit_non_positive")
}

func TestDerive_NeverBreaksEven(t *testing.T) {
	plan := &schema.Plan{
		Title:    "Money Pit",
		Pricing:  schema.Pricing{PricePerUnit: 1},
		Sales:    schema.Sales{EstMonthlyUnits: 10},
		Expenses: []schema.Expense{{Name: "Rent", MonthlyCost: 5000}},
	}
	d := Derive(plan)
	assert.Nil(t, d.ComputedBreakevenMonth)
	for _, c := range d.CumulativeNetProfitMonths {
		assert.Negative(t, c)
	}
}

func TestDerive_BreakevenIsFirstNonNegativeMonth(t *testing.T) {
	// Loses money for the first months, then growth catches up.
	plan := &schema.Plan{
		Title:    "Slow Burn",
		Pricing:  schema.Pricing{PricePerUnit: 10},
		Sales:    schema.Sales{EstMonthlyUnits: 100, GrowthPctMonth: 100},
		Expenses: []schema.Expense{{Name: "Staff", MonthlyCost: 2000}},
	}
	d := Derive(plan)
	require.NotNil(t, d.ComputedBreakevenMonth)
	m := *d.ComputedBreakevenMonth
	assert.GreaterOrEqual(t, d.CumulativeNetProfitMonths[m-1], 0.0)
	for i := 0; i < m-1; i++ {
		assert.Negative(t, d.CumulativeNetProfitMonths[i])
	}
}

func TestDerive_GrowthClamp(t *testing.T) {
	plan := &schema.Plan{
		Title:   "Rocket",
		Pricing: schema.Pricing{PricePerUnit: 1},
		Sales:   schema.Sales{EstMonthlyUnits: 100, GrowthPctMonth: 500},
	}
	d := Derive(plan)
	// Growth is clamped to 300%: month 2 = 100 * 4 = 400 units.
	assert.Equal(t, 400.0, d.ProjectedRevenueMonths[1])
	assert.NotContains(t, d.ValidationWarnings, "growth_pct_implausible")
}

func TestDerive_ImplausibleGrowthWarnsAndStillClamps(t *testing.T) {
	plan := &schema.Plan{
		Title:   "Hockey Stick",
		Pricing: schema.Pricing{PricePerUnit: 1},
		Sales:   schema.Sales{EstMonthlyUnits: 100, GrowthPctMonth: 20000},
	}
	d := Derive(plan)
	assert.Contains(t, d.ValidationWarnings, "growth_pct_implausible")
	// Still computed at the 300% clamp.
	assert.Equal(t, 400.0, d.ProjectedRevenueMonths[1])
}

func TestDerive_NegativeCostWarnings(t *testing.T) {
	plan := &schema.Plan{
		Title:     "Odd Inputs",
		Pricing:   schema.Pricing{PricePerUnit: 5, CapitalRequired: -100},
		Sales:     schema.Sales{EstMonthlyUnits: 10},
		Inventory: []schema.InventoryItem{{Name: "X", Qty: 1, UnitCost: -2}},
		Expenses:  []schema.Expense{{Name: "Y", MonthlyCost: -50}},
	}
	d := Derive(plan)
	assert.Contains(t, d.ValidationWarnings, "negative_inventory_unit_cost")
	assert.Contains(t, d.ValidationWarnings, "negative_expense_monthly_cost")
	assert.Contains(t, d.ValidationWarnings, "capital_required_negative")
}

func TestDerive_EmptyInventoryMeansZeroCOGS(t *testing.T) {
	plan := &schema.Plan{
		Title:   "Pure Service",
		Pricing: schema.Pricing{PricePerUnit: 50},
		Sales:   schema.Sales{EstMonthlyUnits: 10},
	}
	d := Derive(plan)
	assert.Equal(t, d.ProjectedRevenueMonths[0], d.GrossProfitMonths[0])
}

func TestDerivedPlan_JSONShape(t *testing.T) {
	d := Derive(basePlan())
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	// Plan fields and projection fields share the top level.
	assert.Equal(t, "Coffee Cart", m["title"])
	assert.Contains(t, m, "projectedRevenueMonths")
	assert.Contains(t, m, "computedBreakevenMonth")
	assert.EqualValues(t, PlanVersion, m["planVersion"])
}

func TestSlice_OmitsNarrativeFields(t *testing.T) {
	d := Derive(basePlan())
	raw, err := json.Marshal(d.Slice())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.NotContains(t, m, "title")
	assert.NotContains(t, m, "summary")
	assert.NotContains(t, m, "milestones")
	assert.Contains(t, m, "pricing")
	assert.Contains(t, m, "cumulativeNetProfitMonths")
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, round2(1.2345))
	assert.Equal(t, 1.24, round2(1.235))
	assert.Equal(t, -1.23, round2(-1.2349))
}
