package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the persistence and mutation boundaries.
var (
	// ErrDocumentNotFound is returned by a remote store fetch when no
	// document exists for the user.
	ErrDocumentNotFound = errors.New("user document not found")

	// ErrVersionConflict is returned by a conditional remote write when
	// another session wrote the document after the caller's snapshot.
	ErrVersionConflict = errors.New("remote document version conflict")

	// ErrUnsupported is returned for optional driver capabilities, such as
	// change notification on stores that cannot push.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrProtectedGroup rejects rename or delete of a protected group.
	ErrProtectedGroup = errors.New("group is protected")

	// ErrLastDashboard rejects removal of the sole remaining dashboard.
	ErrLastDashboard = errors.New("cannot remove the last dashboard")

	// ErrCounterpartMissing aborts a transfer edit or delete whose linked
	// item cannot be located.
	ErrCounterpartMissing = errors.New("transfer counterpart not found")

	// ErrLedgerNotFound aborts operations that require a dashboard's
	// primary ledger group when none can be resolved.
	ErrLedgerNotFound = errors.New("primary ledger group not found")

	// ErrTransferCategory rejects changing the category of an existing
	// transfer item.
	ErrTransferCategory = errors.New("transfer category is immutable")

	// ErrNotCurrentMonth rejects balance adjustments outside the present
	// calendar month.
	ErrNotCurrentMonth = errors.New("balance can only be adjusted for the current month")
)

// NotFoundError reports a missing entity by kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ValidationError reports input rejected at the mutation boundary before
// any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
