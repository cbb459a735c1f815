/*
engine.go - The reconciliation engine facade

PURPOSE:
  Wires the pure pieces (dedup, distribute, caps, reconcile) behind the
  three operations the caller sees:

    ComputeMonth  read path: records -> canonical daily distributions
    EditCell      write path: one cell edit -> validated, reconciled diff
    ValidateCell  dry-run validation/clamping, no writes

CONCURRENCY:
  One Engine value is safe for concurrent use: it holds the store, the
  caps/rule configuration, and a clock - no mutable state. Each call
  operates on a snapshot it loads itself. Concurrent edits to the SAME
  cell by different actors are resolved last-writer-wins only; callers
  needing stronger guarantees must serialize those edits upstream.

EDIT ORDERING:
  EditCell plans deletes of stale duplicates into the same diff as the
  edit and the reconciler issues them first, so a re-read that follows
  a successful edit can never see both the old and new record for the
  slot.
*/
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the reconciliation facade. Construct with New; the zero
// value is not usable.
type Engine struct {
	store RecordStore
	caps  Caps
	rule  PerDiemRule
	log   zerolog.Logger
	now   func() time.Time
}

type Option func(*Engine)

func WithCaps(c Caps) Option            { return func(e *Engine) { e.caps = c } }
func WithPerDiemRule(r PerDiemRule) Option { return func(e *Engine) { e.rule = r } }
func WithLogger(l zerolog.Logger) Option   { return func(e *Engine) { e.log = l } }

// WithClock overrides the write-timestamp source (tests).
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func New(store RecordStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		caps:  DefaultCaps(),
		rule:  DefaultPerDiemRule(),
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// READ PATH
// =============================================================================

// ComputeRequest identifies one employee-month and the employee's
// configured cost centers (ordered, index-addressable).
type ComputeRequest struct {
	EmployeeID  EmployeeID
	Month       MonthKey
	CostCenters []string
}

// ComputeMonth loads the month's records and derives the canonical
// per-day distribution. Read-only; duplicate cleanup happens on the
// edit path, never here.
func (e *Engine) ComputeMonth(ctx context.Context, req ComputeRequest) ([]DailyDistribution, error) {
	entries, err := e.store.ListTimeEntries(ctx, req.EmployeeID, req.Month)
	if err != nil {
		return nil, err
	}
	dedup, err := Deduplicate(entries)
	if err != nil {
		return nil, err
	}
	receipts, err := e.store.ListReceipts(ctx, req.EmployeeID, req.Month)
	if err != nil {
		return nil, err
	}
	mileage, err := e.store.ListMileageLogs(ctx, req.EmployeeID, req.Month)
	if err != nil {
		return nil, err
	}
	notes, err := e.store.ListDailyNotes(ctx, req.EmployeeID, req.Month)
	if err != nil {
		return nil, err
	}

	if len(dedup.StaleIDs) > 0 {
		e.log.Debug().
			Str("employee", string(req.EmployeeID)).
			Str("month", req.Month.String()).
			Int("stale", len(dedup.StaleIDs)).
			Msg("duplicate records pending cleanup")
	}

	d := Distributor{Rule: e.rule, Caps: e.caps}
	return d.Distribute(req.Month, req.CostCenters, dedup, receipts, mileage, notes), nil
}

// =============================================================================
// WRITE PATH
// =============================================================================

// EditRequest is one user edit of a single (day, slot) cell.
type EditRequest struct {
	EmployeeID  EmployeeID
	Date        Date
	Slot        Slot
	CostCenters []string
	NewValue    decimal.Decimal
}

// EditOutcome forces the caller to branch instead of assuming success.
type EditOutcome string

const (
	// EditApplied: every operation in the diff was confirmed.
	EditApplied EditOutcome = "applied"
	// EditRejected: validation failed; no state was changed.
	EditRejected EditOutcome = "rejected"
	// EditUnknown: one or more writes failed or are indeterminate.
	// The caller must re-run ComputeMonth for ground truth.
	EditUnknown EditOutcome = "unknown"
)

// EditResult is what EditCell applied, for optimistic-update confirmation.
type EditResult struct {
	Outcome     EditOutcome
	Accepted    decimal.Decimal
	Adjustments []Adjustment
	Diff        ReconciliationDiff
	Report      *ApplyReport
}

// EditCell validates newValue, computes the minimal diff for the cell
// (folding in month-wide stale-duplicate cleanup), and applies it.
// Returns the result alongside any error so a partial-failure caller
// still sees exactly which sub-operations went through.
func (e *Engine) EditCell(ctx context.Context, req EditRequest) (*EditResult, error) {
	slot, err := req.Slot.Resolve(req.CostCenters)
	if err != nil {
		return &EditResult{Outcome: EditRejected}, err
	}
	if err := e.caps.ValidateHours(slot, req.NewValue); err != nil {
		return &EditResult{Outcome: EditRejected}, err
	}

	month := NewMonthKey(req.Date.Year, req.Date.Month)
	entries, err := e.store.ListTimeEntries(ctx, req.EmployeeID, month)
	if err != nil {
		return &EditResult{Outcome: EditUnknown}, err
	}
	dedup, err := Deduplicate(entries)
	if err != nil {
		return &EditResult{Outcome: EditRejected}, err
	}

	now := e.now().UTC()
	diff, err := PlanCell(entries, req.EmployeeID, req.Date, slot, req.NewValue, now)
	if err != nil {
		return &EditResult{Outcome: EditRejected}, err
	}
	diff = diff.AddStaleCleanup(dedup.StaleIDs)

	result := &EditResult{
		Accepted: req.NewValue,
		Diff:     diff,
	}
	if diff.IsEmpty() {
		// Zero-edit of an empty slot, nothing stale to clean.
		result.Outcome = EditApplied
		result.Report = &ApplyReport{}
		return result, nil
	}

	rec := Reconciler{Store: e.store}
	report, applyErr := rec.Apply(ctx, diff)
	result.Report = report
	if applyErr != nil {
		result.Outcome = EditUnknown
		e.log.Warn().
			Str("employee", string(req.EmployeeID)).
			Str("date", req.Date.String()).
			Str("slot", slot.Key()).
			Err(applyErr).
			Msg("cell edit partially applied")
		return result, applyErr
	}

	result.Outcome = EditApplied
	e.log.Info().
		Str("employee", string(req.EmployeeID)).
		Str("date", req.Date.String()).
		Str("slot", slot.Key()).
		Str("hours", req.NewValue.String()).
		Int("deletes", len(diff.ToDelete)).
		Msg("cell edit applied")
	return result, nil
}

// =============================================================================
// VALIDATION (dry-run, no writes)
// =============================================================================

// MonthContext carries the month state validation needs: the current
// per-diem value of every day, keyed by day of month.
type MonthContext struct {
	PerDiemByDay map[int]decimal.Decimal
}

// ValidateCell checks a proposed hours value for a slot. Hours are
// rejected, never clamped; accepted value therefore always equals the
// proposal when err is nil.
func (e *Engine) ValidateCell(slot Slot, newValue decimal.Decimal, costCenters []string) (decimal.Decimal, error) {
	resolved, err := slot.Resolve(costCenters)
	if err != nil {
		return decimal.Zero, err
	}
	if err := e.caps.ValidateHours(resolved, newValue); err != nil {
		return decimal.Zero, err
	}
	return newValue, nil
}

// ValidatePerDiem clamps a proposed per-diem value for one day against
// the daily and monthly caps. Adjustments are reported, not errors:
// the accepted value may be lower than requested and the caller must
// display it.
func (e *Engine) ValidatePerDiem(day int, newValue decimal.Decimal, mc MonthContext) (decimal.Decimal, []Adjustment) {
	return e.caps.ClampMonthlyPerDiem(day, newValue, mc.PerDiemByDay)
}
