// Package domain defines the persistent entities, value types, and
// persistence contracts used by budgetcore.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryTransfer marks an item as one half of a cross-dashboard transfer
// pair. Items carrying it are owned by the transfer coordinator and their
// category is immutable.
const CategoryTransfer = "Transfer"

// TransferDirection labels which side of a transfer pair an item is.
type TransferDirection string

// Transfer pair sides. The outgoing side carries the negative amount.
const (
	TransferOutgoing TransferDirection = "outgoing"
	TransferIncoming TransferDirection = "incoming"
)

// Seed group titles created alongside every new dashboard.
const (
	SeedGroupSchedule = "Monthly Schedule"
	SeedGroupLedger   = "Running Ledger"
	SeedGroupDrafts   = "Drafts"
)

// NewID mints a fresh opaque entity identifier.
func NewID() string {
	return uuid.NewString()
}

// Dashboard is an independent budget workspace containing its own groups
// and items.
type Dashboard struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DashboardData is the per-dashboard bag of schedule groups, keyed by
// dashboard id in the persisted document.
type DashboardData struct {
	ScheduleGroups map[string]Group `json:"scheduleGroups"`
	LastModified   time.Time        `json:"lastModified"`
	SharedWith     []string         `json:"sharedWith"`
}

// Group is a named collection of items. Pending groups hold draft items
// that are excluded from balance calculations and month views. Protected
// groups cannot be renamed or deleted through the mutation interface.
type Group struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	IsPending  bool            `json:"isPending"`
	Items      map[string]Item `json:"items"`
	Tags       []string        `json:"tags"`
	Archived   bool            `json:"archived"`
	CreatedAt  time.Time       `json:"createdAt"`
	OrderIndex int             `json:"orderIndex"`
	Protected  bool            `json:"protected,omitempty"`
}

// Item is a single transaction, or a recurring template when Repeat is
// set. Amount sign encodes income (positive) versus expense (negative).
// For templates, Date is the anchor of the first occurrence and
// RepeatEndDate, if present, bounds the last one inclusively.
type Item struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Amount        decimal.Decimal `json:"amount"`
	Date          Date            `json:"date"`
	Category      string          `json:"category,omitempty"`
	Icon          string          `json:"icon,omitempty"`
	Repeat        Repeat          `json:"repeat,omitempty"`
	RepeatEndDate *Date           `json:"repeatEndDate,omitempty"`
	IsPending     bool            `json:"isPending,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	OrderIndex    int             `json:"orderIndex"`
	Archived      bool            `json:"archived"`

	// OriginalDate is only set on occurrences synthesized by recurrence
	// expansion. It points back at the template's stored anchor date so a
	// displayed occurrence can be traced to its editable template.
	OriginalDate *Date `json:"originalDate,omitempty"`

	// Transfer linkage, set only when Category == CategoryTransfer.
	TransferDirection   TransferDirection `json:"transferDirection,omitempty"`
	TransferTo          string            `json:"transferTo,omitempty"`
	TransferFrom        string            `json:"transferFrom,omitempty"`
	LinkedTransactionID string            `json:"linkedTransactionId,omitempty"`
}

// IsTransfer reports whether the item is one half of a transfer pair.
func (i Item) IsTransfer() bool {
	return i.Category == CategoryTransfer
}

// CloneItem returns a deep copy of an item.
func CloneItem(i Item) Item {
	cp := i
	if i.RepeatEndDate != nil {
		end := *i.RepeatEndDate
		cp.RepeatEndDate = &end
	}
	if i.OriginalDate != nil {
		orig := *i.OriginalDate
		cp.OriginalDate = &orig
	}
	return cp
}

// CloneGroup returns a deep copy of a group and its item map.
func CloneGroup(g Group) Group {
	cp := g
	cp.Tags = append([]string(nil), g.Tags...)
	cp.Items = make(map[string]Item, len(g.Items))
	for id, item := range g.Items {
		cp.Items[id] = CloneItem(item)
	}
	return cp
}

// CloneGroups returns a deep copy of a group map.
func CloneGroups(groups map[string]Group) map[string]Group {
	out := make(map[string]Group, len(groups))
	for id, g := range groups {
		out[id] = CloneGroup(g)
	}
	return out
}

// CloneDashboardData returns a deep copy of a dashboard data bag.
func CloneDashboardData(d DashboardData) DashboardData {
	cp := d
	cp.ScheduleGroups = CloneGroups(d.ScheduleGroups)
	cp.SharedWith = append([]string(nil), d.SharedWith...)
	return cp
}

// SeedDashboardData builds the group set every fresh dashboard starts
// with: a monthly schedule group, a protected running ledger, and a
// pending drafts group.
func SeedDashboardData(now time.Time) DashboardData {
	groups := make(map[string]Group, 3)
	seed := []struct {
		title     string
		pending   bool
		protected bool
	}{
		{SeedGroupSchedule, false, false},
		{SeedGroupLedger, false, true},
		{SeedGroupDrafts, true, false},
	}
	for i, s := range seed {
		id := NewID()
		groups[id] = Group{
			ID:         id,
			Title:      s.title,
			IsPending:  s.pending,
			Protected:  s.protected,
			Items:      make(map[string]Item),
			Tags:       []string{},
			CreatedAt:  now,
			OrderIndex: i,
		}
	}
	return DashboardData{
		ScheduleGroups: groups,
		LastModified:   now,
		SharedWith:     []string{},
	}
}
