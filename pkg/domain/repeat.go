package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Repeat is the recurrence cadence of an item template.
type Repeat string

// Recurrence cadences. RepeatNone marks a one-off item.
const (
	RepeatNone    Repeat = ""
	RepeatWeekly  Repeat = "weekly"
	RepeatMonthly Repeat = "monthly"
)

// IsRecurring reports whether the cadence produces synthesized
// occurrences.
func (r Repeat) IsRecurring() bool {
	return r == RepeatWeekly || r == RepeatMonthly
}

// Next advances a cursor by one period. The step is always strictly
// forward in time; Next on RepeatNone returns its input unchanged, which
// expansion loops must treat as a termination condition.
func (r Repeat) Next(d Date) Date {
	switch r {
	case RepeatMonthly:
		return d.AddMonths(1)
	case RepeatWeekly:
		return d.AddDays(7)
	default:
		return d
	}
}

// MarshalJSON encodes the cadence in its canonical string form.
func (r Repeat) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r))
}

// UnmarshalJSON accepts the canonical strings plus the legacy boolean
// encoding: documents written by early clients stored `repeat: true` to
// mean monthly.
func (r *Repeat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("true")):
		*r = RepeatMonthly
		return nil
	case bytes.Equal(b, []byte("false")), bytes.Equal(b, []byte("null")):
		*r = RepeatNone
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode repeat: %w", err)
	}
	switch Repeat(s) {
	case RepeatNone, RepeatWeekly, RepeatMonthly:
		*r = Repeat(s)
		return nil
	default:
		return fmt.Errorf("unknown repeat cadence %q", s)
	}
}
