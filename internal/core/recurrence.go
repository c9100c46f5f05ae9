package core

import (
	"sort"

	"budgetcore/pkg/domain"
)

// Recurrence expansion projects stored items, including recurring
// templates, into concrete dated occurrences. Both entry points are pure:
// the input group map is never mutated, occurrences are deep copies, and
// output order is deterministic (date, then order index, then id).
// Pending groups hold drafts and are skipped entirely.

// ExpandForMonth returns every occurrence falling inside the target month.
// An item whose stored date is in the month appears verbatim. A recurring
// template anchored in an earlier month synthesizes one occurrence on the
// same day-of-month, clamped to the month's last valid day, unless its
// repeat window ended in a prior month. Templates anchored after the
// target month never contribute; recurrence projects forward only.
func ExpandForMonth(groups map[string]Group, month Month) []Item {
	var out []Item
	for _, g := range groups {
		if g.IsPending {
			continue
		}
		for _, item := range g.Items {
			if month.Contains(item.Date) {
				out = append(out, domain.CloneItem(item))
				continue
			}
			if !item.Repeat.IsRecurring() {
				continue
			}
			if item.Date.MonthOf().Compare(month) > 0 {
				continue
			}
			if item.RepeatEndDate != nil && item.RepeatEndDate.MonthOf().Compare(month) < 0 {
				continue
			}
			occ := domain.CloneItem(item)
			orig := item.Date
			occ.OriginalDate = &orig
			occ.Date = month.DateOn(item.Date.Day())
			out = append(out, occ)
		}
	}
	sortOccurrences(out)
	return out
}

// ExpandUpTo returns every occurrence dated on or before cutoff. Items are
// included verbatim when their stored date qualifies; recurring templates
// additionally emit one synthesized occurrence per period, starting one
// period after the anchor, while the cursor stays within both the cutoff
// and the template's repeat end date (inclusive).
func ExpandUpTo(groups map[string]Group, cutoff Date) []Item {
	var out []Item
	for _, g := range groups {
		if g.IsPending {
			continue
		}
		for _, item := range g.Items {
			if !item.Date.After(cutoff) {
				out = append(out, domain.CloneItem(item))
			}
			if !item.Repeat.IsRecurring() {
				continue
			}
			cursor := item.Repeat.Next(item.Date)
			for !cursor.After(cutoff) {
				if item.RepeatEndDate != nil && cursor.After(*item.RepeatEndDate) {
					break
				}
				occ := domain.CloneItem(item)
				orig := item.Date
				occ.OriginalDate = &orig
				occ.Date = cursor
				out = append(out, occ)

				next := item.Repeat.Next(cursor)
				if !next.After(cursor) {
					// A non-advancing period would loop forever.
					break
				}
				cursor = next
			}
		}
	}
	sortOccurrences(out)
	return out
}

func sortOccurrences(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		if items[i].OrderIndex != items[j].OrderIndex {
			return items[i].OrderIndex < items[j].OrderIndex
		}
		return items[i].ID < items[j].ID
	})
}
