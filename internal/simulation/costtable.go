package simulation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/solarhub/marketplace/internal/model"
)

// CostForSize returns the installed cost of a system of sizeKwp.
//
// With a size table it prefers an exact entry, then linear interpolation
// between the bracketing entries, then extrapolation from the nearest
// entry's cost per kWp. Without a table it charges sizeKwp × pricePerKwp.
func CostForSize(table []model.SizeCost, sizeKwp, pricePerKwp decimal.Decimal) decimal.Decimal {
	fallback := sizeKwp.Mul(pricePerKwp)

	entries := make([]model.SizeCost, 0, len(table))
	for _, e := range table {
		if e.SizeKwp.IsPositive() {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return fallback
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SizeKwp.LessThan(entries[j].SizeKwp)
	})

	for _, e := range entries {
		if e.SizeKwp.Equal(sizeKwp) {
			return e.Cost
		}
	}

	for i := 1; i < len(entries); i++ {
		lo, hi := entries[i-1], entries[i]
		if sizeKwp.GreaterThan(lo.SizeKwp) && sizeKwp.LessThan(hi.SizeKwp) {
			span := hi.SizeKwp.Sub(lo.SizeKwp)
			slope := hi.Cost.Sub(lo.Cost).Div(span)
			return lo.Cost.Add(sizeKwp.Sub(lo.SizeKwp).Mul(slope))
		}
	}

	nearest := entries[0]
	if sizeKwp.GreaterThan(entries[len(entries)-1].SizeKwp) {
		nearest = entries[len(entries)-1]
	}
	return nearest.Cost.Div(nearest.SizeKwp).Mul(sizeKwp)
}

// ActiveLineItemsCost sums the cost of active line items.
func ActiveLineItemsCost(items []model.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.Active {
			total = total.Add(it.Cost)
		}
	}
	return total
}
