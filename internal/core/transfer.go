package core

import (
	"fmt"
	"strings"
	"time"

	"budgetcore/pkg/domain"

	"github.com/shopspring/decimal"
)

// TransferRequest describes a cross-dashboard money movement. Group ids
// left empty resolve to the target dashboard's primary ledger group.
type TransferRequest struct {
	FromDashboardID string
	FromGroupID     string
	ToDashboardID   string
	ToGroupID       string
	Title           string
	Amount          decimal.Decimal // magnitude; the sign is derived per side
	Date            Date
	Icon            string
}

// TransferUpdate carries the editable fields of an existing transfer.
// Amount is the new unsigned magnitude applied to both sides. Date and
// icon are shared fields propagated to the counterpart; the title applies
// to the edited side only. The category is not representable here: it is
// immutable once a transfer exists.
type TransferUpdate struct {
	Amount *decimal.Decimal
	Date   *Date
	Icon   *string
	Title  *string
}

// TransferPair holds both sides of a linked transfer after a create or
// edit.
type TransferPair struct {
	Outgoing Item
	Incoming Item
}

// CreateTransferPair inserts both halves of a transfer in one atomic
// state swap: the outgoing item (negative amount) into the source group
// and the incoming item (positive amount, auto-generated title) into the
// destination group, each carrying the other's pre-allocated id.
func (s *Store) CreateTransferPair(req TransferRequest) (TransferPair, error) {
	if strings.TrimSpace(req.Title) == "" {
		return TransferPair{}, domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if req.Amount.IsZero() {
		return TransferPair{}, domain.ValidationError{Field: "amount", Reason: "must not be zero"}
	}
	if req.Date.IsZero() {
		return TransferPair{}, domain.ValidationError{Field: "date", Reason: "must be set"}
	}
	if req.FromDashboardID == req.ToDashboardID {
		return TransferPair{}, domain.ValidationError{Field: "toDashboardId", Reason: "must differ from source dashboard"}
	}

	var pair TransferPair
	err := s.run(func(st *state, now time.Time) error {
		fromIdx, ok := st.findDashboard(req.FromDashboardID)
		if !ok {
			return domain.NotFoundError{Kind: "dashboard", ID: req.FromDashboardID}
		}
		if _, ok := st.findDashboard(req.ToDashboardID); !ok {
			return domain.NotFoundError{Kind: "dashboard", ID: req.ToDashboardID}
		}
		fromGroupID, err := resolveTransferGroup(st, req.FromDashboardID, req.FromGroupID)
		if err != nil {
			return err
		}
		toGroupID, err := resolveTransferGroup(st, req.ToDashboardID, req.ToGroupID)
		if err != nil {
			return err
		}

		magnitude := req.Amount.Abs()
		fromID := s.newID()
		toID := s.newID()

		outgoing := Item{
			Title:               req.Title,
			Amount:              magnitude.Neg(),
			Date:                req.Date,
			Category:            domain.CategoryTransfer,
			Icon:                req.Icon,
			TransferDirection:   domain.TransferOutgoing,
			TransferTo:          req.ToDashboardID,
			LinkedTransactionID: toID,
		}
		incoming := Item{
			Title:               fmt.Sprintf("Received from %s", st.dashboards[fromIdx].Name),
			Amount:              magnitude,
			Date:                req.Date,
			Category:            domain.CategoryTransfer,
			Icon:                req.Icon,
			TransferDirection:   domain.TransferIncoming,
			TransferFrom:        req.FromDashboardID,
			LinkedTransactionID: fromID,
		}

		pair.Outgoing, err = insertItem(st, req.FromDashboardID, fromGroupID, outgoing, fromID, s.newID, now)
		if err != nil {
			return err
		}
		pair.Incoming, err = insertItem(st, req.ToDashboardID, toGroupID, incoming, toID, s.newID, now)
		if err != nil {
			return err
		}
		return nil
	})
	return pair, err
}

// UpdateTransferPair edits a transfer item and propagates the shared
// fields to its counterpart. The edit aborts without mutation when the
// counterpart cannot be located.
func (s *Store) UpdateTransferPair(dashboardID, groupID, itemID string, upd TransferUpdate) (TransferPair, error) {
	var pair TransferPair
	err := s.run(func(st *state, now time.Time) error {
		item, ok := lookupItem(st, dashboardID, groupID, itemID)
		if !ok {
			return domain.NotFoundError{Kind: "item", ID: itemID}
		}
		if !item.IsTransfer() {
			return domain.ValidationError{Field: "item", Reason: "not a transfer"}
		}
		partnerDash, partnerGroup, partner, ok := locateCounterpart(st, item)
		if !ok {
			return domain.ErrCounterpartMissing
		}

		applySide := func(side *Item, outgoing bool) {
			if upd.Amount != nil {
				magnitude := upd.Amount.Abs()
				if outgoing {
					side.Amount = magnitude.Neg()
				} else {
					side.Amount = magnitude
				}
			}
			if upd.Date != nil {
				side.Date = *upd.Date
			}
			if upd.Icon != nil {
				side.Icon = *upd.Icon
			}
		}
		applySide(&item, item.TransferDirection == domain.TransferOutgoing)
		applySide(&partner, partner.TransferDirection == domain.TransferOutgoing)
		if upd.Title != nil {
			item.Title = strings.TrimSpace(*upd.Title)
			if item.Title == "" {
				return domain.ValidationError{Field: "title", Reason: "must not be empty"}
			}
		}

		storeItem(st, dashboardID, groupID, item, now)
		storeItem(st, partnerDash, partnerGroup, partner, now)
		if item.TransferDirection == domain.TransferOutgoing {
			pair = TransferPair{Outgoing: domain.CloneItem(item), Incoming: domain.CloneItem(partner)}
		} else {
			pair = TransferPair{Outgoing: domain.CloneItem(partner), Incoming: domain.CloneItem(item)}
		}
		return nil
	})
	return pair, err
}

// DeleteTransferPair removes a transfer item and its counterpart as one
// unit. If the counterpart cannot be located the whole delete aborts
// rather than leaving an orphan.
func (s *Store) DeleteTransferPair(dashboardID, groupID, itemID string) error {
	return s.run(func(st *state, now time.Time) error {
		item, ok := lookupItem(st, dashboardID, groupID, itemID)
		if !ok {
			return domain.NotFoundError{Kind: "item", ID: itemID}
		}
		if !item.IsTransfer() {
			return domain.ValidationError{Field: "item", Reason: "not a transfer"}
		}
		partnerDash, partnerGroup, partner, ok := locateCounterpart(st, item)
		if !ok {
			return domain.ErrCounterpartMissing
		}
		removeItem(st, dashboardID, groupID, item.ID, now)
		removeItem(st, partnerDash, partnerGroup, partner.ID, now)
		return nil
	})
}

// resolveTransferGroup validates an explicit group id or falls back to the
// dashboard's primary ledger.
func resolveTransferGroup(st *state, dashboardID, groupID string) (string, error) {
	groups, ok := st.groups(dashboardID)
	if !ok {
		return "", domain.NotFoundError{Kind: "dashboard", ID: dashboardID}
	}
	if groupID != "" {
		if _, ok := groups[groupID]; !ok {
			return "", domain.NotFoundError{Kind: "group", ID: groupID}
		}
		return groupID, nil
	}
	ledger, ok := st.ledgerGroup(dashboardID)
	if !ok {
		return "", domain.ErrLedgerNotFound
	}
	return ledger.ID, nil
}

// locateCounterpart resolves the partner item of a transfer using the
// direction-derived target dashboard and the linked transaction id.
func locateCounterpart(st *state, item Item) (dashboardID, groupID string, partner Item, ok bool) {
	switch item.TransferDirection {
	case domain.TransferOutgoing:
		dashboardID = item.TransferTo
	case domain.TransferIncoming:
		dashboardID = item.TransferFrom
	default:
		return "", "", Item{}, false
	}
	if item.LinkedTransactionID == "" {
		return "", "", Item{}, false
	}
	groups, found := st.groups(dashboardID)
	if !found {
		return "", "", Item{}, false
	}
	for gid, g := range groups {
		if p, exists := g.Items[item.LinkedTransactionID]; exists {
			return dashboardID, gid, p, true
		}
	}
	return "", "", Item{}, false
}

func lookupItem(st *state, dashboardID, groupID, itemID string) (Item, bool) {
	groups, ok := st.groups(dashboardID)
	if !ok {
		return Item{}, false
	}
	g, ok := groups[groupID]
	if !ok {
		return Item{}, false
	}
	item, ok := g.Items[itemID]
	return item, ok
}

func storeItem(st *state, dashboardID, groupID string, item Item, now time.Time) {
	groups, _ := st.groups(dashboardID)
	g := groups[groupID]
	g.Items[item.ID] = item
	groups[groupID] = g
	st.touch(dashboardID, now)
}

func removeItem(st *state, dashboardID, groupID, itemID string, now time.Time) {
	groups, _ := st.groups(dashboardID)
	g := groups[groupID]
	delete(g.Items, itemID)
	groups[groupID] = g
	st.touch(dashboardID, now)
}
