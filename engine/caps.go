/*
caps.go - Monetary and time-budget invariants

PURPOSE:
  Enforces the three cross-cutting caps before a value is accepted:
    - hours:    <= 24 per slot per day (hard rejection, never clamped)
    - per diem: <= $35 per day (clamped)
    - per diem: <= $350 per month (excess taken from the edited day only)

WHY REJECT vs CLAMP:
  A >24h day is a physical impossibility and therefore an operator-error
  signal; silently clamping it would hide the mistake. Per-diem caps are
  policy limits, so exceeding them is an expected condition and the
  value is reduced with an Adjustment the caller must surface.

LOCALITY:
  The monthly clamp reduces the just-edited day, never redistributes
  across other days. Repeating the same edit yields the same accepted
  value, so edits stay idempotent from the user's point of view.
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CAPS
// =============================================================================

// Caps holds the budget limits. Zero value is not usable; construct
// with DefaultCaps and override fields as needed.
type Caps struct {
	MaxDailyHours     decimal.Decimal
	DailyPerDiemCap   decimal.Decimal
	MonthlyPerDiemCap decimal.Decimal
}

func DefaultCaps() Caps {
	return Caps{
		MaxDailyHours:     decimal.NewFromInt(24),
		DailyPerDiemCap:   decimal.NewFromInt(35),
		MonthlyPerDiemCap: decimal.NewFromInt(350),
	}
}

// =============================================================================
// ADJUSTMENT - An accepted-but-reduced value. Not an error.
// =============================================================================

const (
	AdjustDailyPerDiemCap   = "daily_per_diem_cap"
	AdjustMonthlyPerDiemCap = "monthly_per_diem_cap"
)

// Adjustment records that a requested value was reduced to stay within
// a cap. The edit still succeeds; the caller must display To, not From.
type Adjustment struct {
	Code    string
	Message string
	From    decimal.Decimal
	To      decimal.Decimal
}

// =============================================================================
// HOURS VALIDATION - Hard reject, no clamp
// =============================================================================

// ValidateHours accepts a proposed single-day single-slot hours value.
// Values above MaxDailyHours or below zero are rejected outright.
func (c Caps) ValidateHours(slot Slot, hours decimal.Decimal) error {
	if hours.IsNegative() {
		return &ValidationError{Slot: slot, Requested: hours.String(), Rule: ErrNegativeHours}
	}
	if hours.GreaterThan(c.MaxDailyHours) {
		return &ValidationError{Slot: slot, Requested: hours.String(), Rule: ErrHoursExceedDay}
	}
	return nil
}

// =============================================================================
// PER-DIEM CLAMPS
// =============================================================================

// ClampDailyPerDiem caps one day's per-diem at the daily limit.
func (c Caps) ClampDailyPerDiem(amount decimal.Decimal) (decimal.Decimal, []Adjustment) {
	if amount.IsNegative() {
		return decimal.Zero, []Adjustment{{
			Code:    AdjustDailyPerDiemCap,
			Message: "per diem cannot be negative; set to 0",
			From:    amount,
			To:      decimal.Zero,
		}}
	}
	if amount.LessThanOrEqual(c.DailyPerDiemCap) {
		return amount, nil
	}
	return c.DailyPerDiemCap, []Adjustment{{
		Code:    AdjustDailyPerDiemCap,
		Message: fmt.Sprintf("per diem reduced to %s to stay within the $%s daily limit", c.DailyPerDiemCap, c.DailyPerDiemCap),
		From:    amount,
		To:      c.DailyPerDiemCap,
	}}
}

// ClampMonthlyPerDiem accepts a proposed per-diem value for one day
// given every other day's current value. If the monthly sum would
// exceed the cap, the EDITED day absorbs the entire excess (floor 0);
// other days are never touched.
//
// perDiemByDay holds current values keyed by day of month. Any entry
// for the edited day is ignored in favor of the proposed value.
func (c Caps) ClampMonthlyPerDiem(day int, proposed decimal.Decimal, perDiemByDay map[int]decimal.Decimal) (decimal.Decimal, []Adjustment) {
	accepted, adjustments := c.ClampDailyPerDiem(proposed)

	others := decimal.Zero
	for d, v := range perDiemByDay {
		if d == day {
			continue
		}
		others = others.Add(v)
	}

	excess := others.Add(accepted).Sub(c.MonthlyPerDiemCap)
	if excess.IsPositive() {
		reduced := accepted.Sub(excess)
		if reduced.IsNegative() {
			reduced = decimal.Zero
		}
		adjustments = append(adjustments, Adjustment{
			Code:    AdjustMonthlyPerDiemCap,
			Message: fmt.Sprintf("per diem reduced to %s to stay within the $%s monthly limit", reduced, c.MonthlyPerDiemCap),
			From:    accepted,
			To:      reduced,
		})
		accepted = reduced
	}

	return accepted, adjustments
}
