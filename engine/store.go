/*
store.go - Record store contract (the engine's only blocking boundary)

PURPOSE:
  Defines the interface between the reconciliation engine and whatever
  persists the raw records. The engine consumes and produces in-memory
  values only; every read and write of durable state goes through this
  interface, which is where network I/O and timeouts live.

CONTRACT NOTES:
  - DeleteTimeEntry must succeed when the id no longer exists.
    Not-found is NOT an error for delete: the reconciler issues
    opportunistic duplicate cleanup that may race with itself.
  - Writes carry the caller-supplied UpdatedAt; the store must persist
    it verbatim because last-writer-wins resolution depends on it.
  - Reads return copies. The engine treats results as snapshots and
    never mutates records in place.

IMPLEMENTATIONS:
  - store/sqlite: production store
  - engine/store: in-memory store for tests and dev
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RecordStore is the engine's persistence collaborator.
type RecordStore interface {
	// ListTimeEntries returns all raw entries for the employee/month,
	// including historical duplicates. Order is unspecified; the
	// deduplicator must not depend on it.
	ListTimeEntries(ctx context.Context, employeeID EmployeeID, month MonthKey) ([]TimeEntry, error)

	// CreateTimeEntry persists a new entry and returns its id. If
	// entry.ID is empty the store assigns one.
	CreateTimeEntry(ctx context.Context, entry TimeEntry) (EntryID, error)

	// UpdateTimeEntry rewrites hours and UpdatedAt for an existing entry.
	UpdateTimeEntry(ctx context.Context, id EntryID, hours decimal.Decimal, updatedAt time.Time) error

	// DeleteTimeEntry removes an entry. Deleting a missing id is a no-op.
	DeleteTimeEntry(ctx context.Context, id EntryID) error

	// ListReceipts returns the month's receipts (read-only input to
	// per-diem computation).
	ListReceipts(ctx context.Context, employeeID EmployeeID, month MonthKey) ([]Receipt, error)

	// ListMileageLogs returns the month's travel records, the other
	// input to the rule-based per-diem calculation.
	ListMileageLogs(ctx context.Context, employeeID EmployeeID, month MonthKey) ([]MileageLog, error)

	// ListDailyNotes returns the month's daily description records.
	ListDailyNotes(ctx context.Context, employeeID EmployeeID, month MonthKey) ([]DailyNote, error)
}
