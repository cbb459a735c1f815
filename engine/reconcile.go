/*
reconcile.go - Single-cell edit -> minimal write set

PURPOSE:
  Translates one edited (day, slot) cell into the minimal sequence of
  create/update/delete operations against the record store, without
  creating or leaving behind duplicate records.

DIFF RULES (for the records currently matching the edited cell):
  newValue == 0              -> delete all matches (zero matches: no-op)
  newValue > 0, no matches   -> create one record
  newValue > 0, matches      -> update the last-writer-wins keeper,
                                delete every other match as cleanup

APPLY ORDERING:
  Deletes are issued before updates and creates for the same slot.
  Otherwise a concurrent ComputeMonth could observe both the old and
  the new record as effective and double-count the cell.

FAILURE SEMANTICS:
  The reconciler never retries and never partially commits silently.
  Every sub-operation's outcome is reported (applied / rejected /
  unknown); on any failure the caller must re-read ground truth via
  ComputeMonth instead of trusting its optimistic in-memory state.
*/
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECONCILIATION DIFF
// =============================================================================

// HoursUpdate rewrites one existing record's hours. UpdatedAt is the
// edit's write timestamp; carrying it on the diff keeps Apply free of
// clock access, so planning and applying see the same instant.
type HoursUpdate struct {
	ID        EntryID
	Hours     decimal.Decimal
	UpdatedAt time.Time
}

// ReconciliationDiff is the minimal write set for one edited cell,
// plus opportunistic cleanup of stale duplicates.
type ReconciliationDiff struct {
	ToCreate []TimeEntry
	ToUpdate []HoursUpdate
	ToDelete []EntryID
}

func (d ReconciliationDiff) IsEmpty() bool {
	return len(d.ToCreate) == 0 && len(d.ToUpdate) == 0 && len(d.ToDelete) == 0
}

// =============================================================================
// PLANNING
// =============================================================================

// PlanCell computes the diff for setting one cell to newValue.
// entries is the month's raw record set (duplicates included); slot
// must already be resolved against the configured cost-center list.
// now is stamped on every write so last-writer-wins sees this edit as
// newest. Pure: nothing is written here.
func PlanCell(entries []TimeEntry, employeeID EmployeeID, date Date, slot Slot, newValue decimal.Decimal, now time.Time) (ReconciliationDiff, error) {
	var matches []TimeEntry
	for _, e := range entries {
		if e.Date != date {
			continue
		}
		s, err := e.SlotOf()
		if err != nil {
			return ReconciliationDiff{}, err
		}
		if s.Key() == slot.Key() {
			matches = append(matches, e)
		}
	}

	var diff ReconciliationDiff

	if newValue.IsZero() {
		// Deleting zero matches is a no-op, not an error.
		for _, m := range matches {
			diff.ToDelete = append(diff.ToDelete, m.ID)
		}
		return diff, nil
	}

	if len(matches) == 0 {
		entry := TimeEntry{
			EmployeeID: employeeID,
			Date:       date,
			Hours:      newValue,
			UpdatedAt:  now,
		}
		if slot.Kind == SlotCostCenter {
			entry.CostCenter = slot.Name
		} else {
			entry.Category = slot.Name
		}
		diff.ToCreate = append(diff.ToCreate, entry)
		return diff, nil
	}

	keeper, err := SelectKeeper(matches)
	if err != nil {
		if ise, ok := err.(*InconsistentSlotError); ok {
			ise.Date = date
			ise.SlotKey = slot.Key()
		}
		return ReconciliationDiff{}, err
	}
	diff.ToUpdate = append(diff.ToUpdate, HoursUpdate{ID: keeper.ID, Hours: newValue, UpdatedAt: now})
	for _, m := range matches {
		if m.ID != keeper.ID {
			diff.ToDelete = append(diff.ToDelete, m.ID)
		}
	}
	return diff, nil
}

// AddStaleCleanup folds month-wide stale duplicate ids into the diff's
// delete set, skipping ids the diff already touches.
func (d ReconciliationDiff) AddStaleCleanup(staleIDs []EntryID) ReconciliationDiff {
	seen := make(map[EntryID]bool, len(d.ToDelete)+len(d.ToUpdate))
	for _, id := range d.ToDelete {
		seen[id] = true
	}
	for _, u := range d.ToUpdate {
		seen[u.ID] = true
	}
	for _, id := range staleIDs {
		if !seen[id] {
			d.ToDelete = append(d.ToDelete, id)
			seen[id] = true
		}
	}
	return d
}

// =============================================================================
// APPLY REPORT
// =============================================================================

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

type OpStatus string

const (
	// OpApplied: the store confirmed the write.
	OpApplied OpStatus = "applied"
	// OpRejected: the store returned a definite error; the write did not happen.
	OpRejected OpStatus = "rejected"
	// OpUnknown: the outcome is indeterminate - the request was canceled
	// or timed out mid-flight, or the op was never attempted because an
	// earlier one failed. The caller must re-read before trusting state.
	OpUnknown OpStatus = "unknown"
)

// OpResult is the outcome of one sub-operation in a diff.
type OpResult struct {
	Kind   OpKind
	ID     EntryID
	Hours  decimal.Decimal
	Status OpStatus
	Error  string
}

// ApplyReport lists every sub-operation's outcome, in issue order.
type ApplyReport struct {
	Ops []OpResult
}

func (r *ApplyReport) Count(status OpStatus) int {
	n := 0
	for _, op := range r.Ops {
		if op.Status == status {
			n++
		}
	}
	return n
}

func (r *ApplyReport) AllApplied() bool {
	return r.Count(OpApplied) == len(r.Ops)
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler applies diffs through the record store.
type Reconciler struct {
	Store RecordStore
}

// Apply issues the diff: deletes first, then updates, then creates.
// On the first failure, remaining operations are NOT attempted and are
// reported as unknown; the returned error is a *StoreWriteError
// wrapping the full report.
func (r *Reconciler) Apply(ctx context.Context, diff ReconciliationDiff) (*ApplyReport, error) {
	report := &ApplyReport{}
	failed := false

	run := func(op OpResult, write func() error) {
		if failed {
			op.Status = OpUnknown
			op.Error = "not attempted: earlier operation failed"
			report.Ops = append(report.Ops, op)
			return
		}
		if err := write(); err != nil {
			failed = true
			op.Error = err.Error()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				op.Status = OpUnknown
			} else {
				op.Status = OpRejected
			}
			report.Ops = append(report.Ops, op)
			return
		}
		op.Status = OpApplied
		report.Ops = append(report.Ops, op)
	}

	for _, id := range diff.ToDelete {
		id := id
		run(OpResult{Kind: OpDelete, ID: id}, func() error {
			return r.Store.DeleteTimeEntry(ctx, id)
		})
	}
	for _, u := range diff.ToUpdate {
		u := u
		run(OpResult{Kind: OpUpdate, ID: u.ID, Hours: u.Hours}, func() error {
			return r.Store.UpdateTimeEntry(ctx, u.ID, u.Hours, u.UpdatedAt)
		})
	}
	for _, e := range diff.ToCreate {
		e := e
		var createdID EntryID
		run(OpResult{Kind: OpCreate, Hours: e.Hours}, func() error {
			id, err := r.Store.CreateTimeEntry(ctx, e)
			createdID = id
			return err
		})
		if createdID != "" {
			report.Ops[len(report.Ops)-1].ID = createdID
		}
	}

	if !failed {
		return report, nil
	}
	return report, &StoreWriteError{Report: report}
}
