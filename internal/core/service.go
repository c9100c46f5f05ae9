package core

import (
	"time"

	"budgetcore/pkg/domain"

	"github.com/shopspring/decimal"
)

// Service exposes the mutation and query interface UI collaborators call
// into. It operates on the active dashboard, delegates state changes to
// the entity store, and fires the persistence hook after every successful
// mutation. Mutators report success or failure explicitly; there is no
// ambient shared state.
type Service struct {
	store   *Store
	persist func()
	nowFn   func() time.Time
}

// NewService constructs a service backed by the supplied store.
func NewService(store *Store) *Service {
	return &Service{
		store: store,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// Store returns the underlying entity store.
func (s *Service) Store() *Store { return s.store }

// OnMutate registers the hook fired after each successful mutation. The
// sync engine wires its save trigger here; the hook is fire-and-forget
// from the caller's perspective and surfaces failures via sync status.
func (s *Service) OnMutate(fn func()) { s.persist = fn }

// SetNowFunc overrides the clock. Test hook.
func (s *Service) SetNowFunc(fn func() time.Time) { s.nowFn = fn }

func (s *Service) mutated() {
	if s.persist != nil {
		s.persist()
	}
}

// Dashboard lifecycle --------------------------------------------------------

// ListDashboards returns all dashboards in creation order.
func (s *Service) ListDashboards() []Dashboard {
	return s.store.Dashboards()
}

// AddDashboard creates a new named dashboard with seeded groups.
func (s *Service) AddDashboard(name string) (Dashboard, error) {
	dash, err := s.store.AddDashboard(name)
	if err != nil {
		return Dashboard{}, err
	}
	s.mutated()
	return dash, nil
}

// RenameDashboard renames a dashboard in place.
func (s *Service) RenameDashboard(id, name string) error {
	if err := s.store.RenameDashboard(id, name); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// RemoveDashboard deletes a dashboard unless it is the last one.
func (s *Service) RemoveDashboard(id string) error {
	if err := s.store.RemoveDashboard(id); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// SetCurrentDashboard switches the active dashboard and re-derives the
// working group view.
func (s *Service) SetCurrentDashboard(id string) error {
	if err := s.store.SwitchDashboard(id); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// Group CRUD -----------------------------------------------------------------

// AddScheduleGroup appends a group to the active dashboard.
func (s *Service) AddScheduleGroup(title string, isPending bool, tags []string) (Group, error) {
	g, err := s.store.AddGroup(s.store.CurrentDashboardID(), title, isPending, tags)
	if err != nil {
		return Group{}, err
	}
	s.mutated()
	return g, nil
}

// RenameGroup retitles a group on the active dashboard. Protected groups
// reject the rename.
func (s *Service) RenameGroup(groupID, title string) error {
	if err := s.store.RenameGroup(s.store.CurrentDashboardID(), groupID, title); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// DeleteGroup removes a group from the active dashboard. Protected groups
// reject the delete.
func (s *Service) DeleteGroup(groupID string) error {
	if err := s.store.DeleteGroup(s.store.CurrentDashboardID(), groupID); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// Item CRUD ------------------------------------------------------------------

// ItemPatch carries a partial item update. Nil fields are left untouched.
type ItemPatch struct {
	Title         *string
	Amount        *decimal.Decimal
	Date          *Date
	Category      *string
	Icon          *string
	Repeat        *Repeat
	RepeatEndDate *Date
	ClearRepeat   bool
	IsPending     *bool
	Archived      *bool
}

func (p ItemPatch) apply(item *Item) {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Amount != nil {
		item.Amount = *p.Amount
	}
	if p.Date != nil {
		item.Date = *p.Date
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Icon != nil {
		item.Icon = *p.Icon
	}
	if p.ClearRepeat {
		item.Repeat = RepeatNone
		item.RepeatEndDate = nil
	}
	if p.Repeat != nil {
		item.Repeat = *p.Repeat
	}
	if p.RepeatEndDate != nil {
		end := *p.RepeatEndDate
		item.RepeatEndDate = &end
	}
	if p.IsPending != nil {
		item.IsPending = *p.IsPending
	}
	if p.Archived != nil {
		item.Archived = *p.Archived
	}
}

// AddItemToGroup inserts a new one-off or template item into a group on
// the active dashboard.
func (s *Service) AddItemToGroup(groupID string, item Item) (Item, error) {
	created, err := s.store.AddItem(s.store.CurrentDashboardID(), groupID, item, "")
	if err != nil {
		return Item{}, err
	}
	s.mutated()
	return created, nil
}

// EditItemInGroup shallow-merges a patch into an existing item. Transfer
// items reject category changes; their shared fields must be edited
// through EditTransferTransaction so both sides stay consistent.
func (s *Service) EditItemInGroup(groupID, itemID string, patch ItemPatch) error {
	dashID := s.store.CurrentDashboardID()
	existing, ok := s.store.FindItem(dashID, groupID, itemID)
	if !ok {
		return domain.NotFoundError{Kind: "item", ID: itemID}
	}
	if existing.IsTransfer() && patch.Category != nil && *patch.Category != domain.CategoryTransfer {
		return domain.ErrTransferCategory
	}
	if err := s.store.UpdateItem(dashID, groupID, itemID, patch.apply); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// DeleteItemFromGroup removes an item from a group on the active
// dashboard.
func (s *Service) DeleteItemFromGroup(groupID, itemID string) error {
	if err := s.store.DeleteItem(s.store.CurrentDashboardID(), groupID, itemID); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// ReorderItemsInGroup reassigns item order by position.
func (s *Service) ReorderItemsInGroup(groupID string, orderedIDs []string) error {
	if err := s.store.ReorderItems(s.store.CurrentDashboardID(), groupID, orderedIDs); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// Transfers ------------------------------------------------------------------

// AddTransferTransaction creates a linked transfer pair across two
// dashboards. Both inserts commit in the same logical operation; a
// failure on either side leaves no partial write.
func (s *Service) AddTransferTransaction(req TransferRequest) (TransferPair, error) {
	pair, err := s.store.CreateTransferPair(req)
	if err != nil {
		return TransferPair{}, err
	}
	s.mutated()
	return pair, nil
}

// EditTransferTransaction edits both sides of an existing transfer.
func (s *Service) EditTransferTransaction(dashboardID, groupID, itemID string, upd TransferUpdate) (TransferPair, error) {
	pair, err := s.store.UpdateTransferPair(dashboardID, groupID, itemID, upd)
	if err != nil {
		return TransferPair{}, err
	}
	s.mutated()
	return pair, nil
}

// DeleteTransferTransaction removes both sides of a transfer as one unit.
func (s *Service) DeleteTransferTransaction(dashboardID, groupID, itemID string) error {
	if err := s.store.DeleteTransferPair(dashboardID, groupID, itemID); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// Derived reads --------------------------------------------------------------

// ItemsForMonth expands the active dashboard's groups into the month
// view.
func (s *Service) ItemsForMonth(month Month) []Item {
	return ExpandForMonth(s.store.CurrentGroups(), month)
}

// AllItemsTillDate expands the active dashboard's groups cumulatively up
// to the cutoff date.
func (s *Service) AllItemsTillDate(cutoff Date) []Item {
	return ExpandUpTo(s.store.CurrentGroups(), cutoff)
}

// MonthlyTotals returns the month view's income, expense, and net sums.
func (s *Service) MonthlyTotals(month Month) Totals {
	return MonthlyTotals(s.store.CurrentGroups(), month)
}

// ActualBalance returns the confirmed balance as of the given date.
func (s *Service) ActualBalance(asOf Date) Totals {
	return ActualBalance(s.store.CurrentGroups(), asOf)
}

// ProjectedBalance returns the net balance projected through the end of
// the viewed month.
func (s *Service) ProjectedBalance(month Month) decimal.Decimal {
	return ProjectedBalance(s.store.CurrentGroups(), month)
}

// AdjustBalance reconciles the tracked balance with an externally
// observed value by inserting a one-off correcting item into the target
// group, dated today. Adjustments are only permitted while viewing the
// present calendar month.
func (s *Service) AdjustBalance(targetGroupID string, actual decimal.Decimal, viewed Month) (Item, error) {
	now := s.nowFn()
	today := domain.DateOf(now)
	if viewed.Compare(domain.MonthOf(now)) != 0 {
		return Item{}, domain.ErrNotCurrentMonth
	}
	dashID := s.store.CurrentDashboardID()
	groups := s.store.CurrentGroups()
	if _, ok := groups[targetGroupID]; !ok {
		return Item{}, domain.NotFoundError{Kind: "group", ID: targetGroupID}
	}

	diff := actual.Sub(ActualBalance(groups, today).Net)
	if diff.IsZero() {
		return Item{}, nil
	}
	created, err := s.store.AddItem(dashID, targetGroupID, Item{
		Title:  "Balance adjustment",
		Amount: diff,
		Date:   today,
	}, "")
	if err != nil {
		return Item{}, err
	}
	s.mutated()
	return created, nil
}
