/*
perdiem.go - Per-diem amount derivation

PURPOSE:
  Computes the per-day per-diem amount of the PerDiemLedger. For each
  day, a receipt explicitly tagged "Per Diem" wins when present and
  nonzero; otherwise a rule-based amount is derived from the day's
  worked hours and travel record.

RULE ELIGIBILITY (all must hold):
  - the employee stayed overnight
  - distance from base >= MinDistance (50 miles)
  - at least MinHours worked that day (half-day threshold)

DISTANCE PROXY:
  When a mileage log carries no geocoded DistanceFromBase, miles
  traveled / 2 stands in for it (out-and-back assumption). This is a
  known approximation inherited from the field data, kept deliberately
  rather than "fixed": its intended precision was never specified.
  Isolated in distanceFromBase so a geocoded source can replace it.
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// PER-DIEM RULE
// =============================================================================

// PerDiemRule derives a day's allowance when no receipt sources it.
type PerDiemRule struct {
	DailyRate   decimal.Decimal // flat amount granted when eligible
	MinHours    decimal.Decimal // minimum worked hours for eligibility
	MinDistance decimal.Decimal // minimum distance from base, in miles
}

func DefaultPerDiemRule() PerDiemRule {
	return PerDiemRule{
		DailyRate:   decimal.NewFromInt(35),
		MinHours:    decimal.NewFromInt(4),
		MinDistance: decimal.NewFromInt(50),
	}
}

// Eligible reports whether the rule grants per diem for a day with the
// given worked hours and travel record. No travel record, no per diem.
func (r PerDiemRule) Eligible(hoursWorked decimal.Decimal, travel *MileageLog) bool {
	if travel == nil || !travel.StayedOvernight {
		return false
	}
	if distanceFromBase(travel).LessThan(r.MinDistance) {
		return false
	}
	return hoursWorked.GreaterThanOrEqual(r.MinHours)
}

// DailyAmount resolves one day's per diem, capped at the daily limit
// at the point of computation.
//
// receiptAmount is the summed "Per Diem"-tagged receipt total for the
// day (zero when none); a nonzero receipt amount always wins over the
// rule.
func (r PerDiemRule) DailyAmount(receiptAmount, hoursWorked decimal.Decimal, travel *MileageLog, caps Caps) decimal.Decimal {
	if receiptAmount.IsPositive() {
		amount, _ := caps.ClampDailyPerDiem(receiptAmount)
		return amount
	}
	if !r.Eligible(hoursWorked, travel) {
		return decimal.Zero
	}
	amount, _ := caps.ClampDailyPerDiem(r.DailyRate)
	return amount
}

// distanceFromBase returns the geocoded distance when available and
// falls back to half the miles traveled otherwise.
func distanceFromBase(travel *MileageLog) decimal.Decimal {
	if travel.DistanceFromBase.IsPositive() {
		return travel.DistanceFromBase
	}
	return travel.Miles.Div(decimal.NewFromInt(2))
}
