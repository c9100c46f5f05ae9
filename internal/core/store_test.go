package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budgetcore/pkg/domain"
)

var testNow = time.Date(2024, time.July, 10, 9, 0, 0, 0, time.UTC)

// newTestStore returns a store with a fixed clock, sequential ids, and
// one seeded dashboard.
func newTestStore(t *testing.T) (*Store, Dashboard) {
	t.Helper()
	s := NewStore()
	s.SetNowFunc(func() time.Time { return testNow })
	seq := 0
	s.SetIDFunc(func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	})
	dash, err := s.AddDashboard("Main")
	if err != nil {
		t.Fatalf("seed dashboard: %v", err)
	}
	return s, dash
}

func findGroupByTitle(t *testing.T, s *Store, dashboardID, title string) Group {
	t.Helper()
	groups, ok := s.GroupsOf(dashboardID)
	if !ok {
		t.Fatalf("dashboard %s has no data", dashboardID)
	}
	for _, g := range groups {
		if g.Title == title {
			return g
		}
	}
	t.Fatalf("group %q not found", title)
	return Group{}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAddDashboardSeedsGroups(t *testing.T) {
	s, dash := newTestStore(t)
	groups, ok := s.GroupsOf(dash.ID)
	if !ok {
		t.Fatalf("no data bag for new dashboard")
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 seeded groups, got %d", len(groups))
	}
	ledger := findGroupByTitle(t, s, dash.ID, domain.SeedGroupLedger)
	if !ledger.Protected {
		t.Fatalf("ledger group must be protected")
	}
	drafts := findGroupByTitle(t, s, dash.ID, domain.SeedGroupDrafts)
	if !drafts.IsPending {
		t.Fatalf("drafts group must be pending")
	}
	if s.CurrentDashboardID() != dash.ID {
		t.Fatalf("first dashboard must become current")
	}
}

func TestRemoveDashboardGuardsLastOne(t *testing.T) {
	s, dash := newTestStore(t)
	if err := s.RemoveDashboard(dash.ID); !errors.Is(err, domain.ErrLastDashboard) {
		t.Fatalf("expected ErrLastDashboard, got %v", err)
	}

	second, err := s.AddDashboard("Savings")
	if err != nil {
		t.Fatalf("add dashboard: %v", err)
	}
	if err := s.SwitchDashboard(second.ID); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if err := s.RemoveDashboard(second.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.CurrentDashboardID() != dash.ID {
		t.Fatalf("current dashboard must fall back after removing the active one")
	}
	if _, ok := s.GroupsOf(second.ID); ok {
		t.Fatalf("removed dashboard data must be dropped")
	}
}

func TestProtectedGroupRejectsRenameAndDelete(t *testing.T) {
	s, dash := newTestStore(t)
	ledger := findGroupByTitle(t, s, dash.ID, domain.SeedGroupLedger)

	if err := s.RenameGroup(dash.ID, ledger.ID, "Renamed"); !errors.Is(err, domain.ErrProtectedGroup) {
		t.Fatalf("rename: expected ErrProtectedGroup, got %v", err)
	}
	if err := s.DeleteGroup(dash.ID, ledger.ID); !errors.Is(err, domain.ErrProtectedGroup) {
		t.Fatalf("delete: expected ErrProtectedGroup, got %v", err)
	}
	// The failed mutations must leave the group untouched.
	after := findGroupByTitle(t, s, dash.ID, domain.SeedGroupLedger)
	if after.Title != domain.SeedGroupLedger {
		t.Fatalf("protected group was modified by a rejected operation")
	}
}

func TestAddGroupAssignsOrderIndex(t *testing.T) {
	s, dash := newTestStore(t)
	g, err := s.AddGroup(dash.ID, "Subscriptions", false, nil)
	if err != nil {
		t.Fatalf("add group: %v", err)
	}
	if g.OrderIndex != 3 {
		t.Fatalf("order index = %d, want 3 (after the seeds)", g.OrderIndex)
	}
	if g.Tags == nil {
		t.Fatalf("tags must default to an empty slice")
	}
}

func TestItemLifecycle(t *testing.T) {
	s, dash := newTestStore(t)
	sched := findGroupByTitle(t, s, dash.ID, domain.SeedGroupSchedule)

	item, err := s.AddItem(dash.ID, sched.ID, Item{
		Title:  "Rent",
		Amount: dec("-1200"),
		Date:   domain.MustDate("2024-07-01"),
	}, "")
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if item.ID == "" {
		t.Fatalf("item id not assigned")
	}
	if !item.CreatedAt.Equal(testNow) {
		t.Fatalf("createdAt not stamped")
	}

	if err := s.UpdateItem(dash.ID, sched.ID, item.ID, func(i *Item) {
		i.Title = "Rent (new lease)"
		i.ID = "sneaky"
	}); err != nil {
		t.Fatalf("update item: %v", err)
	}
	got, ok := s.FindItem(dash.ID, sched.ID, item.ID)
	if !ok {
		t.Fatalf("item lost after update")
	}
	if got.Title != "Rent (new lease)" {
		t.Fatalf("title not updated: %q", got.Title)
	}
	if got.ID != item.ID {
		t.Fatalf("mutator must not be able to change the id")
	}

	if err := s.DeleteItem(dash.ID, sched.ID, item.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if _, ok := s.FindItem(dash.ID, sched.ID, item.ID); ok {
		t.Fatalf("item still present after delete")
	}
}

func TestAddItemValidations(t *testing.T) {
	s, dash := newTestStore(t)
	sched := findGroupByTitle(t, s, dash.ID, domain.SeedGroupSchedule)

	var vErr domain.ValidationError
	if _, err := s.AddItem(dash.ID, sched.ID, Item{Title: " ", Date: domain.MustDate("2024-07-01")}, ""); !errors.As(err, &vErr) {
		t.Fatalf("blank title: expected validation error, got %v", err)
	}
	if _, err := s.AddItem(dash.ID, sched.ID, Item{Title: "No date"}, ""); !errors.As(err, &vErr) {
		t.Fatalf("zero date: expected validation error, got %v", err)
	}
	var nfErr domain.NotFoundError
	if _, err := s.AddItem(dash.ID, "missing", Item{Title: "X", Date: domain.MustDate("2024-07-01")}, ""); !errors.As(err, &nfErr) {
		t.Fatalf("missing group: expected not found, got %v", err)
	}
}

func TestReorderItemsSkipsUnknownIDs(t *testing.T) {
	s, dash := newTestStore(t)
	sched := findGroupByTitle(t, s, dash.ID, domain.SeedGroupSchedule)

	a, _ := s.AddItem(dash.ID, sched.ID, Item{Title: "A", Amount: dec("1"), Date: domain.MustDate("2024-07-01")}, "")
	b, _ := s.AddItem(dash.ID, sched.ID, Item{Title: "B", Amount: dec("1"), Date: domain.MustDate("2024-07-02")}, "")
	c, _ := s.AddItem(dash.ID, sched.ID, Item{Title: "C", Amount: dec("1"), Date: domain.MustDate("2024-07-03")}, "")

	if err := s.ReorderItems(dash.ID, sched.ID, []string{c.ID, "ghost", a.ID, b.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	wantOrder := map[string]int{c.ID: 0, a.ID: 1, b.ID: 2}
	for id, want := range wantOrder {
		got, _ := s.FindItem(dash.ID, sched.ID, id)
		if got.OrderIndex != want {
			t.Fatalf("item %s order = %d, want %d", id, got.OrderIndex, want)
		}
	}
}

func TestImportExportDocumentRoundTrip(t *testing.T) {
	s, dash := newTestStore(t)
	sched := findGroupByTitle(t, s, dash.ID, domain.SeedGroupSchedule)
	if _, err := s.AddItem(dash.ID, sched.ID, Item{Title: "Rent", Amount: dec("-1200"), Date: domain.MustDate("2024-07-01")}, ""); err != nil {
		t.Fatalf("add item: %v", err)
	}

	doc := s.ExportDocument()
	if doc.Version != domain.SchemaVersion {
		t.Fatalf("exported version = %d", doc.Version)
	}

	other := NewStore()
	other.ImportDocument(doc)
	if other.CurrentDashboardID() != dash.ID {
		t.Fatalf("current dashboard lost in round trip")
	}
	groups, _ := other.GroupsOf(dash.ID)
	if len(groups) != 3 {
		t.Fatalf("groups lost in round trip")
	}

	// Mutating the importing store must not leak back into the document.
	otherSched := findGroupByTitle(t, other, dash.ID, domain.SeedGroupSchedule)
	if err := other.DeleteGroup(dash.ID, otherSched.ID); err == nil {
		if len(doc.DashboardData[dash.ID].ScheduleGroups) != 3 {
			t.Fatalf("imported document aliased store state")
		}
	}
}

func TestImportDocumentRepairsCurrentID(t *testing.T) {
	s := NewStore()
	doc := domain.NewDefaultDocument(testNow)
	doc.CurrentDashboardID = "dangling"
	s.ImportDocument(doc)
	if s.CurrentDashboardID() != doc.Dashboards[0].ID {
		t.Fatalf("dangling current dashboard id not repaired")
	}
}
