/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these to HTTP statuses without string matching.

ERROR CATEGORIES:
  1. Validation errors  - rejected before any write, no state changed
  2. Store write errors - partial diff application, caller must re-read
  3. Consistency errors - defensive detection of unresolvable duplicates

NOT ERRORS:
  Per-diem cap clamps are adjustments, not failures. They are reported
  on the Adjustment type (caps.go) and the edit still succeeds with the
  reduced value.

USAGE:
  if errors.Is(err, engine.ErrHoursExceedDay) { ... 400 ... }
  var swe *engine.StoreWriteError
  if errors.As(err, &swe) { ... 502, force client re-read ... }
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrHoursExceedDay is returned when a single-day single-slot value
	// exceeds 24 hours. This is a hard rejection, never a clamp: a >24h
	// day is an operator-error signal, not a value to silently fix.
	ErrHoursExceedDay = errors.New("hours exceed 24 per day")

	// ErrNegativeHours is returned for negative hour values.
	ErrNegativeHours = errors.New("hours must not be negative")

	// ErrInvalidSlot is returned when a slot does not match the fixed
	// category set or the configured cost-center list.
	ErrInvalidSlot = errors.New("invalid slot")

	// ErrMalformedEntry is returned for records violating the
	// cost-center/category exclusivity invariant.
	ErrMalformedEntry = errors.New("malformed time entry")

	// ErrInconsistentSlot is returned when duplicate records for a slot
	// cannot be tie-broken (distinct records comparing equal on both
	// UpdatedAt and ID). Detected and reported, never silently resolved.
	ErrInconsistentSlot = errors.New("inconsistent slot state")

	// ErrStoreWrite is the sentinel wrapped by StoreWriteError.
	ErrStoreWrite = errors.New("record store write failed")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a rejected cell value. No state was changed.
type ValidationError struct {
	Slot      Slot
	Requested string // decimal value as entered
	Rule      error  // sentinel: ErrHoursExceedDay, ErrNegativeHours, ...
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s (%v)", e.Slot, e.Requested, e.Rule)
}

func (e *ValidationError) Unwrap() error { return e.Rule }

// InconsistentSlotError reports duplicate records that share both
// UpdatedAt and ID, so the last-writer-wins tie-break cannot pick one.
type InconsistentSlotError struct {
	Date    Date
	SlotKey string
	IDs     []EntryID
}

func (e *InconsistentSlotError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = string(id)
	}
	return fmt.Sprintf("inconsistent slot state on %s (%s): unresolvable records [%s]",
		e.Date, e.SlotKey, strings.Join(ids, ", "))
}

func (e *InconsistentSlotError) Unwrap() error { return ErrInconsistentSlot }

// StoreWriteError reports a partially applied reconciliation diff.
// The engine never retries internally; the caller must re-run
// ComputeMonth for ground truth instead of trusting optimistic state.
type StoreWriteError struct {
	Report *ApplyReport
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("record store write failed: %d applied, %d rejected, %d unknown",
		e.Report.Count(OpApplied), e.Report.Count(OpRejected), e.Report.Count(OpUnknown))
}

func (e *StoreWriteError) Unwrap() error { return ErrStoreWrite }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is a client-input rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrHoursExceedDay) ||
		errors.Is(err, ErrNegativeHours) ||
		errors.Is(err, ErrInvalidSlot) ||
		errors.Is(err, ErrMalformedEntry)
}

// IsConsistency returns true if the error indicates corrupt stored state.
func IsConsistency(err error) bool {
	return errors.Is(err, ErrInconsistentSlot)
}
