package core

import (
	"strings"
	"sync"
	"time"

	"budgetcore/pkg/domain"
)

type state struct {
	dashboards []Dashboard
	data       map[string]DashboardData
	currentID  string
}

func newState() state {
	return state{
		data: make(map[string]DashboardData),
	}
}

func (st state) clone() state {
	cloned := state{
		dashboards: append([]Dashboard(nil), st.dashboards...),
		data:       make(map[string]DashboardData, len(st.data)),
		currentID:  st.currentID,
	}
	for id, d := range st.data {
		cloned.data[id] = domain.CloneDashboardData(d)
	}
	return cloned
}

func (st *state) findDashboard(id string) (int, bool) {
	for i, d := range st.dashboards {
		if d.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (st *state) groups(dashboardID string) (map[string]Group, bool) {
	d, ok := st.data[dashboardID]
	if !ok {
		return nil, false
	}
	return d.ScheduleGroups, true
}

// ledgerGroup resolves a dashboard's primary ledger by convention: the
// protected non-pending group with the lowest order index.
func (st *state) ledgerGroup(dashboardID string) (Group, bool) {
	groups, ok := st.groups(dashboardID)
	if !ok {
		return Group{}, false
	}
	var best Group
	found := false
	for _, g := range groups {
		if !g.Protected || g.IsPending {
			continue
		}
		if !found || g.OrderIndex < best.OrderIndex {
			best = g
			found = true
		}
	}
	return best, found
}

func (st *state) touch(dashboardID string, now time.Time) {
	if d, ok := st.data[dashboardID]; ok {
		d.LastModified = now
		st.data[dashboardID] = d
	}
}

// Store is the in-memory normalized entity store owning dashboards,
// schedule groups, and items. Every mutator applies its changes to a
// cloned state and swaps it in only on success, so multi-step operations
// such as transfer pairs commit all-or-nothing.
type Store struct {
	mu    sync.RWMutex
	state state
	nowFn func() time.Time
	newID func() string
}

// NewStore constructs an empty entity store.
func NewStore() *Store {
	return &Store{
		state: newState(),
		nowFn: func() time.Time { return time.Now().UTC() },
		newID: domain.NewID,
	}
}

// SetNowFunc overrides the clock. Test hook.
func (s *Store) SetNowFunc(fn func() time.Time) { s.nowFn = fn }

// SetIDFunc overrides id generation. Test hook.
func (s *Store) SetIDFunc(fn func() string) { s.newID = fn }

func (s *Store) run(fn func(st *state, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state.clone()
	if err := fn(&st, s.nowFn()); err != nil {
		return err
	}
	s.state = st
	return nil
}

// ImportDocument replaces the whole in-memory state from a persisted
// document and re-derives the active view. Used by the sync engine on load
// and on every remote push.
func (s *Store) ImportDocument(doc UserDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc = domain.CloneDocument(doc)
	st := newState()
	st.dashboards = doc.Dashboards
	st.data = doc.DashboardData
	st.currentID = doc.CurrentDashboardID
	if _, ok := st.findDashboard(st.currentID); !ok && len(st.dashboards) > 0 {
		st.currentID = st.dashboards[0].ID
	}
	s.state = st
}

// ExportDocument snapshots the full in-memory state as a persistable
// document. The version and write timestamp are stamped by the caller.
func (s *Store) ExportDocument() UserDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneDocument(UserDocument{
		Dashboards:         s.state.dashboards,
		CurrentDashboardID: s.state.currentID,
		DashboardData:      s.state.data,
		Version:            domain.SchemaVersion,
	})
}

// Dashboards lists all dashboards in creation order.
func (s *Store) Dashboards() []Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Dashboard(nil), s.state.dashboards...)
}

// CurrentDashboardID returns the active dashboard id.
func (s *Store) CurrentDashboardID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.currentID
}

// CurrentGroups returns a deep copy of the active dashboard's group map,
// empty if no dashboard data exists yet.
func (s *Store) CurrentGroups() map[string]Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups, ok := s.state.groups(s.state.currentID)
	if !ok {
		return map[string]Group{}
	}
	return domain.CloneGroups(groups)
}

// GroupsOf returns a deep copy of the named dashboard's group map.
func (s *Store) GroupsOf(dashboardID string) (map[string]Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups, ok := s.state.groups(dashboardID)
	if !ok {
		return nil, false
	}
	return domain.CloneGroups(groups), true
}

// AddDashboard creates a named dashboard seeded with the standard groups
// and returns it.
func (s *Store) AddDashboard(name string) (Dashboard, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Dashboard{}, domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	var created Dashboard
	err := s.run(func(st *state, now time.Time) error {
		created = Dashboard{ID: s.newID(), Name: name}
		st.dashboards = append(st.dashboards, created)
		st.data[created.ID] = domain.SeedDashboardData(now)
		if st.currentID == "" {
			st.currentID = created.ID
		}
		return nil
	})
	return created, err
}

// RenameDashboard renames a dashboard in place.
func (s *Store) RenameDashboard(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return s.run(func(st *state, now time.Time) error {
		i, ok := st.findDashboard(id)
		if !ok {
			return domain.NotFoundError{Kind: "dashboard", ID: id}
		}
		st.dashboards[i].Name = name
		st.touch(id, now)
		return nil
	})
}

// RemoveDashboard deletes a dashboard and its data. The collection is
// never allowed to become empty.
func (s *Store) RemoveDashboard(id string) error {
	return s.run(func(st *state, now time.Time) error {
		i, ok := st.findDashboard(id)
		if !ok {
			return domain.NotFoundError{Kind: "dashboard", ID: id}
		}
		if len(st.dashboards) <= 1 {
			return domain.ErrLastDashboard
		}
		st.dashboards = append(st.dashboards[:i], st.dashboards[i+1:]...)
		delete(st.data, id)
		if st.currentID == id {
			st.currentID = st.dashboards[0].ID
		}
		return nil
	})
}

// SwitchDashboard sets the active dashboard. A dashboard whose data bag is
// missing gets an empty one so the working view derives cleanly.
func (s *Store) SwitchDashboard(id string) error {
	return s.run(func(st *state, now time.Time) error {
		if _, ok := st.findDashboard(id); !ok {
			return domain.NotFoundError{Kind: "dashboard", ID: id}
		}
		if _, ok := st.data[id]; !ok {
			st.data[id] = DashboardData{
				ScheduleGroups: make(map[string]Group),
				LastModified:   now,
				SharedWith:     []string{},
			}
		}
		st.currentID = id
		return nil
	})
}

// AddGroup appends a new group to a dashboard with a fresh id and an order
// index equal to the current group count.
func (s *Store) AddGroup(dashboardID, title string, isPending bool, tags []string) (Group, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Group{}, domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if tags == nil {
		tags = []string{}
	}
	var created Group
	err := s.run(func(st *state, now time.Time) error {
		groups, ok := st.groups(dashboardID)
		if !ok {
			return domain.NotFoundError{Kind: "dashboard", ID: dashboardID}
		}
		created = Group{
			ID:         s.newID(),
			Title:      title,
			IsPending:  isPending,
			Items:      make(map[string]Item),
			Tags:       append([]string(nil), tags...),
			CreatedAt:  now,
			OrderIndex: len(groups),
		}
		groups[created.ID] = created
		st.touch(dashboardID, now)
		return nil
	})
	return created, err
}

// RenameGroup retitles a group. Protected groups reject the rename with no
// state change.
func (s *Store) RenameGroup(dashboardID, groupID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	return s.run(func(st *state, now time.Time) error {
		groups, ok := st.groups(dashboardID)
		if !ok {
			return domain.NotFoundError{Kind: "dashboard", ID: dashboardID}
		}
		g, ok := groups[groupID]
		if !ok {
			return domain.NotFoundError{Kind: "group", ID: groupID}
		}
		if g.Protected {
			return domain.ErrProtectedGroup
		}
		g.Title = title
		groups[groupID] = g
		st.touch(dashboardID, now)
		return nil
	})
}

// DeleteGroup removes a group and its items. Protected groups reject the
// delete with no state change.
func (s *Store) DeleteGroup(dashboardID, groupID string) error {
	return s.run(func(st *state, now time.Time) error {
		groups, ok := st.groups(dashboardID)
		if !ok {
			return domain.NotFoundError{Kind: "dashboard", ID: dashboardID}
		}
		g, ok := groups[groupID]
		if !ok {
			return domain.NotFoundError{Kind: "group", ID: groupID}
		}
		if g.Protected {
			return domain.ErrProtectedGroup
		}
		delete(groups, groupID)
		st.touch(dashboardID, now)
		return nil
	})
}

// AddItem inserts an item into a group. customID, when non-empty,
// pre-assigns the item id; the transfer coordinator uses this to
// cross-reference pair members before insertion.
func (s *Store) AddItem(dashboardID, groupID string, item Item, customID string) (Item, error) {
	if strings.TrimSpace(item.Title) == "" {
		return Item{}, domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if item.Date.IsZero() {
		return Item{}, domain.ValidationError{Field: "date", Reason: "must be set"}
	}
	var created Item
	err := s.run(func(st *state, now time.Time) error {
		var insertErr error
		created, insertErr = insertItem(st, dashboardID, groupID, item, customID, s.newID, now)
		return insertErr
	})
	return created, err
}

// insertItem is the shared insertion path for AddItem and the transfer
// coordinator, operating on an uncommitted state clone.
func insertItem(st *state, dashboardID, groupID string, item Item, customID string, newID func() string, now time.Time) (Item, error) {
	groups, ok := st.groups(dashboardID)
	if !ok {
		return Item{}, domain.NotFoundError{Kind: "dashboard", ID: dashboardID}
	}
	g, ok := groups[groupID]
	if !ok {
		return Item{}, domain.NotFoundError{Kind: "group", ID: groupID}
	}
	if customID != "" {
		item.ID = customID
	} else {
		item.ID = newID()
	}
	item.CreatedAt = now
	item.OrderIndex = len(g.Items)
	item.Archived = false
	g.Items[item.ID] = item
	groups[groupID] = g
	st.touch(dashboardID, now)
	return domain.CloneItem(item), nil
}

// UpdateItem mutates an item in place via the provided mutator. The item
// id is preserved across the mutation.
func (s *Store) UpdateItem(dashboardID, groupID, itemID string, mutate func(*Item)) error {
	return s.run(func(st *state, now time.Time) error {
		groups, ok := st.groups(dashboardID)
		if !ok {
			return domain.NotFoundError{Kind: "dashboard", ID: dashboardID}
		}
		g, ok := groups[groupID]
		if !ok {
			return domain.NotFoundError{Kind: "group", ID: groupID}
		}
		item, ok := g.Items[itemID]
		if !ok {
			return domain.NotFoundError{Kind: "item", ID: itemID}
		}
		mutate(&item)
		item.ID = itemID
		g.Items[itemID] = item
		groups[groupID] = g
		st.touch(dashboardID, now)
		return nil
	})
}

// DeleteItem removes an item from a group.
func (s *Store) DeleteItem(dashboardID, groupID, itemID string) error {
	return s.run(func(st *state, now time.Time) error {
		groups, ok := st.groups(dashboardID)
		if !ok {
			return domain.NotFoundError{Kind: "dashboard", ID: dashboardID}
		}
		g, ok := groups[groupID]
		if !ok {
			return domain.NotFoundError{Kind: "group", ID: groupID}
		}
		if _, ok := g.Items[itemID]; !ok {
			return domain.NotFoundError{Kind: "item", ID: itemID}
		}
		delete(g.Items, itemID)
		groups[groupID] = g
		st.touch(dashboardID, now)
		return nil
	})
}

// ReorderItems reassigns order indexes by position in orderedIDs. Ids not
// present in the group are skipped; items not listed keep their index.
func (s *Store) ReorderItems(dashboardID, groupID string, orderedIDs []string) error {
	return s.run(func(st *state, now time.Time) error {
		groups, ok := st.groups(dashboardID)
		if !ok {
			return domain.NotFoundError{Kind: "dashboard", ID: dashboardID}
		}
		g, ok := groups[groupID]
		if !ok {
			return domain.NotFoundError{Kind: "group", ID: groupID}
		}
		pos := 0
		for _, id := range orderedIDs {
			item, ok := g.Items[id]
			if !ok {
				continue
			}
			item.OrderIndex = pos
			g.Items[id] = item
			pos++
		}
		groups[groupID] = g
		st.touch(dashboardID, now)
		return nil
	})
}

// FindItem retrieves an item by id from a specific group.
func (s *Store) FindItem(dashboardID, groupID, itemID string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups, ok := s.state.groups(dashboardID)
	if !ok {
		return Item{}, false
	}
	g, ok := groups[groupID]
	if !ok {
		return Item{}, false
	}
	item, ok := g.Items[itemID]
	if !ok {
		return Item{}, false
	}
	return domain.CloneItem(item), true
}
