package core

import (
	"github.com/shopspring/decimal"
)

// Totals aggregates expanded occurrences split by amount sign.
type Totals struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Net      decimal.Decimal
}

func sumOccurrences(items []Item) Totals {
	t := Totals{
		Income:   decimal.Zero,
		Expenses: decimal.Zero,
		Net:      decimal.Zero,
	}
	for _, item := range items {
		if item.Amount.IsNegative() {
			t.Expenses = t.Expenses.Add(item.Amount)
		} else {
			t.Income = t.Income.Add(item.Amount)
		}
		t.Net = t.Net.Add(item.Amount)
	}
	return t
}

// MonthlyTotals sums the month view's occurrences split into income,
// expenses, and net.
func MonthlyTotals(groups map[string]Group, month Month) Totals {
	return sumOccurrences(ExpandForMonth(groups, month))
}

// ActualBalance sums every occurrence dated on or before asOf. It
// represents the confirmed balance regardless of which month is being
// viewed.
func ActualBalance(groups map[string]Group, asOf Date) Totals {
	return sumOccurrences(ExpandUpTo(groups, asOf))
}

// ProjectedBalance sums every occurrence through the end of the viewed
// month, including future scheduled recurrences, and returns the net.
func ProjectedBalance(groups map[string]Group, month Month) decimal.Decimal {
	return sumOccurrences(ExpandUpTo(groups, month.Last())).Net
}
