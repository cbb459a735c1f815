/*
distribute.go - Per-day distribution of hours and per diem

PURPOSE:
  Produces one DailyDistribution per calendar day of the month from the
  deduplicated record set, including days with no records (all buckets
  zero). This is the canonical read-path view the UI renders.

NO DOUBLE COUNTING:
  Totals are computed strictly AFTER every slot for a day has been
  populated, in a separate pass. They are never accumulated in the same
  loop that writes slot values, so a partial or re-entrant read can
  never observe inflated totals.

PER DIEM:
  Receipt-sourced per diem wins when nonzero for the day; otherwise the
  rule in perdiem.go applies. Each day is capped at the daily limit at
  the point of computation; walking days in calendar order, the running
  monthly sum is clamped at the monthly cap (later days draw from
  whatever budget remains).
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// DISTRIBUTOR
// =============================================================================

// Distributor turns deduplicated records into per-day distributions.
// Pure and read-only over its inputs; records are never mutated.
type Distributor struct {
	Rule PerDiemRule
	Caps Caps
}

func NewDistributor() Distributor {
	return Distributor{Rule: DefaultPerDiemRule(), Caps: DefaultCaps()}
}

// Distribute produces one DailyDistribution per calendar day.
// costCenters is the employee's ordered, index-addressable list;
// effective records naming a cost center outside it are skipped
// (they stay in the store, but have no bucket to land in).
func (d Distributor) Distribute(
	month MonthKey,
	costCenters []string,
	dedup DedupResult,
	receipts []Receipt,
	mileage []MileageLog,
	notes []DailyNote,
) []DailyDistribution {

	ccIndex := make(map[string]int, len(costCenters))
	for i, name := range costCenters {
		ccIndex[name] = i
	}

	days := make([]DailyDistribution, month.Days())
	for i := range days {
		date := NewDate(month.Year, month.Month, i+1)
		dist := DailyDistribution{
			Day:             i + 1,
			Date:            date,
			CostCenterHours: make(map[int]decimal.Decimal, len(costCenters)),
			CategoryHours:   make(map[string]decimal.Decimal, len(LeaveCategories)),
		}
		for j := range costCenters {
			dist.CostCenterHours[j] = decimal.Zero
		}
		for _, cat := range LeaveCategories {
			dist.CategoryHours[cat] = decimal.Zero
		}
		days[i] = dist
	}

	// Pass 1: populate slot buckets from effective records.
	for key, entry := range dedup.Effective {
		if !month.MonthOf(key.Date) {
			continue
		}
		dist := &days[key.Date.Day-1]
		if entry.CostCenter != "" {
			idx, ok := ccIndex[entry.CostCenter]
			if !ok {
				continue
			}
			dist.CostCenterHours[idx] = entry.Hours
		} else {
			dist.CategoryHours[entry.Category] = entry.Hours
		}
	}

	// Pass 2: totals, strictly after all slots are in place.
	for i := range days {
		dist := &days[i]
		working := decimal.Zero
		for _, v := range dist.CostCenterHours {
			working = working.Add(v)
		}
		leave := decimal.Zero
		for _, v := range dist.CategoryHours {
			leave = leave.Add(v)
		}
		dist.WorkingHours = working
		dist.TotalHours = working.Add(leave)
	}

	// Pass 3: per diem, walking days in calendar order against the
	// remaining monthly budget.
	receiptByDay := perDiemReceiptTotals(month, receipts)
	travelByDay := effectiveTravel(month, mileage)
	remaining := d.Caps.MonthlyPerDiemCap
	for i := range days {
		dist := &days[i]
		amount := d.Rule.DailyAmount(receiptByDay[dist.Day], dist.WorkingHours, travelByDay[dist.Day], d.Caps)
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		remaining = remaining.Sub(amount)
		dist.PerDiem = amount
	}

	// Daily descriptions.
	for date, note := range EffectiveNotes(notes) {
		if month.MonthOf(date) {
			days[date.Day-1].Note = note.Text
		}
	}

	return days
}

// perDiemReceiptTotals sums "Per Diem"-tagged receipts per day.
func perDiemReceiptTotals(month MonthKey, receipts []Receipt) map[int]decimal.Decimal {
	totals := make(map[int]decimal.Decimal)
	for _, r := range receipts {
		if !r.IsPerDiem() || !month.MonthOf(r.Date) {
			continue
		}
		totals[r.Date.Day] = totals[r.Date.Day].Add(r.Amount)
	}
	return totals
}

// effectiveTravel picks one travel record per day, last writer wins.
func effectiveTravel(month MonthKey, mileage []MileageLog) map[int]*MileageLog {
	byDay := make(map[int]*MileageLog)
	for i := range mileage {
		log := mileage[i]
		if !month.MonthOf(log.Date) {
			continue
		}
		cur := byDay[log.Date.Day]
		if cur == nil || log.UpdatedAt.After(cur.UpdatedAt) ||
			(log.UpdatedAt.Equal(cur.UpdatedAt) && log.ID > cur.ID) {
			byDay[log.Date.Day] = &log
		}
	}
	return byDay
}
