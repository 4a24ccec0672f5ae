// Package finance computes 6-month revenue/profit projections and advisory
// validation warnings for a normalized plan.
package finance

import (
	"math"

	"go.uber.org/zap"

	"github.com/venture-kit/plan-proxy/internal/schema"
)

// Horizon is the projection length in months.
const Horizon = 6

// PlanVersion tags the derived-plan payload shape.
const PlanVersion = 4

// Growth above this computational bound is clamped; growth above the warning
// bound additionally flags the input as implausible. The two thresholds are
// intentionally different: one protects the projection, the other the reader.
const (
	growthClampPct = 300
	growthWarnPct  = 10000
)

// Projection holds the derived monthly series and warnings.
type Projection struct {
	PlanVersion               int       `json:"planVersion"`
	ProjectedRevenueMonths    []float64 `json:"projectedRevenueMonths"`
	GrossProfitMonths         []float64 `json:"grossProfitMonths"`
	NetProfitMonths           []float64 `json:"netProfitMonths"`
	CumulativeNetProfitMonths []float64 `json:"cumulativeNetProfitMonths"`
	ComputedBreakevenMonth    *int      `json:"computedBreakevenMonth"`
	ValidationWarnings        []string  `json:"validationWarnings"`
}

// DerivedPlan is a plan with its projection attached. The embedded plan's
// fields marshal at the top level, mirroring the narrative+financial document
// clients consume.
type DerivedPlan struct {
	schema.Plan
	Projection
}

// Derive computes the 6-month projection for a normalized plan. It never
// fails: an internal computation fault degrades to empty series, a nil
// breakeven, and a single "derivation_error" warning.
func Derive(plan *schema.Plan) (out DerivedPlan) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("finance: derivation panic", zap.Any("cause", r))
			out = DerivedPlan{
				Plan: *plan,
				Projection: Projection{
					PlanVersion:               PlanVersion,
					ProjectedRevenueMonths:    []float64{},
					GrossProfitMonths:         []float64{},
					NetProfitMonths:           []float64{},
					CumulativeNetProfitMonths: []float64{},
					ValidationWarnings:        []string{"derivation_error"},
				},
			}
		}
	}()

	warnings := []string{}

	price := plan.Pricing.PricePerUnit
	if price <= 0 {
		warnings = append(warnings, "price_per_unit_non_positive")
	}

	growthPct := plan.Sales.GrowthPctMonth
	if growthPct > growthWarnPct {
		warnings = append(warnings, "growth_pct_implausible")
	}
	growth := math.Max(0, math.Min(growthPct, growthClampPct))

	var avgUnitCost float64
	if len(plan.Inventory) > 0 {
		var sum float64
		for _, item := range plan.Inventory {
			if item.UnitCost < 0 {
				warnings = append(warnings, "negative_inventory_unit_cost")
			}
			sum += item.UnitCost
		}
		avgUnitCost = sum / float64(len(plan.Inventory))
	}

	var monthlyFixed float64
	for _, e := range plan.Expenses {
		if e.MonthlyCost < 0 {
			warnings = append(warnings, "negative_expense_monthly_cost")
		}
		monthlyFixed += e.MonthlyCost
	}

	if plan.Pricing.CapitalRequired < 0 {
		warnings = append(warnings, "capital_required_negative")
	}

	revenue := make([]float64, 0, Horizon)
	gross := make([]float64, 0, Horizon)
	net := make([]float64, 0, Horizon)
	cumulativeSeries := make([]float64, 0, Horizon)

	units := float64(plan.Sales.EstMonthlyUnits)
	var cumulative float64
	breakevenIdx := -1
	for i := 0; i < Horizon; i++ {
		rev := round2(units * price)
		cogs := round2(units * avgUnitCost)
		g := round2(rev - cogs)
		n := round2(g - monthlyFixed)
		cumulative = round2(cumulative + n)

		revenue = append(revenue, rev)
		gross = append(gross, g)
		net = append(net, n)
		cumulativeSeries = append(cumulativeSeries, cumulative)

		if breakevenIdx == -1 && cumulative >= 0 {
			breakevenIdx = i
		}
		units *= 1 + growth/100
	}

	var breakeven *int
	if breakevenIdx >= 0 {
		m := breakevenIdx + 1
		breakeven = &m
	}

	return DerivedPlan{
		Plan: *plan,
		Projection: Projection{
			PlanVersion:               PlanVersion,
			ProjectedRevenueMonths:    revenue,
			GrossProfitMonths:         gross,
			NetProfitMonths:           net,
			CumulativeNetProfitMonths: cumulativeSeries,
			ComputedBreakevenMonth:    breakeven,
			ValidationWarnings:        warnings,
		},
	}
}

// FinancialSlice is the reduced payload for plan_financials responses:
// financial fields plus projections, narrative fields omitted so clients can
// merge numbers into an existing plan.
type FinancialSlice struct {
	Pricing                   schema.Pricing         `json:"pricing"`
	Sales                     schema.Sales           `json:"sales"`
	Expenses                  []schema.Expense       `json:"expenses"`
	Inventory                 []schema.InventoryItem `json:"inventory"`
	Metrics                   schema.Metrics         `json:"metrics"`
	ProjectedRevenueMonths    []float64              `json:"projectedRevenueMonths"`
	GrossProfitMonths         []float64              `json:"grossProfitMonths"`
	NetProfitMonths           []float64              `json:"netProfitMonths"`
	CumulativeNetProfitMonths []float64              `json:"cumulativeNetProfitMonths"`
	ComputedBreakevenMonth    *int                   `json:"computedBreakevenMonth"`
	ValidationWarnings        []string               `json:"validationWarnings"`
}

// Slice extracts the financial-only view of a derived plan.
func (d DerivedPlan) Slice() FinancialSlice {
	return FinancialSlice{
		Pricing:                   d.Pricing,
		Sales:                     d.Sales,
		Expenses:                  d.Expenses,
		Inventory:                 d.Inventory,
		Metrics:                   d.Metrics,
		ProjectedRevenueMonths:    d.ProjectedRevenueMonths,
		GrossProfitMonths:         d.GrossProfitMonths,
		NetProfitMonths:           d.NetProfitMonths,
		CumulativeNetProfitMonths: d.CumulativeNetProfitMonths,
		ComputedBreakevenMonth:    d.ComputedBreakevenMonth,
		ValidationWarnings:        d.ValidationWarnings,
	}
}

// round2 rounds to 2 decimal places. Intermediate values are rounded at every
// step so drift cannot accumulate across the horizon.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
