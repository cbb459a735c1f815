package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var march2024 = engine.NewMonthKey(2024, time.March)

var testCostCenters = []string{"CC-Alpha", "CC-Beta"}

func distribute(t *testing.T, entries []engine.TimeEntry, receipts []engine.Receipt, mileage []engine.MileageLog, notes []engine.DailyNote) []engine.DailyDistribution {
	t.Helper()
	dedup, err := engine.Deduplicate(entries)
	require.NoError(t, err)
	d := engine.NewDistributor()
	return d.Distribute(march2024, testCostCenters, dedup, receipts, mileage, notes)
}

func sumMonthPerDiem(days []engine.DailyDistribution) decimal.Decimal {
	total := decimal.Zero
	for _, d := range days {
		total = total.Add(d.PerDiem)
	}
	return total
}

// =============================================================================
// GRID SHAPE & TOTALS
// =============================================================================

func TestDistribute_EmptyMonth_AllDaysZero(t *testing.T) {
	// GIVEN: No records at all
	// WHEN: Distributing March 2024
	// THEN: 31 days, every bucket present and zero

	days := distribute(t, nil, nil, nil, nil)
	require.Len(t, days, 31)

	for _, d := range days {
		assert.Len(t, d.CostCenterHours, len(testCostCenters))
		assert.Len(t, d.CategoryHours, len(engine.LeaveCategories))
		assert.True(t, d.TotalHours.IsZero())
		assert.True(t, d.WorkingHours.IsZero())
		assert.True(t, d.PerDiem.IsZero())
	}
}

func TestDistribute_SplitsSlotsAndComputesTotals(t *testing.T) {
	// GIVEN: 6h on CC-Alpha, 2h on CC-Beta, 2h PTO on March 5
	// WHEN: Distributing
	// THEN: workingHours counts only cost centers; totalHours counts both

	days := distribute(t, []engine.TimeEntry{
		ccEntry("a", march(5), "CC-Alpha", 6, t1),
		ccEntry("b", march(5), "CC-Beta", 2, t1),
		catEntry("c", march(5), "PTO", 2, t1),
	}, nil, nil, nil)

	d := days[4]
	assert.Equal(t, 5, d.Day)
	assert.True(t, d.CostCenterHours[0].Equal(dec(6)))
	assert.True(t, d.CostCenterHours[1].Equal(dec(2)))
	assert.True(t, d.CategoryHours["PTO"].Equal(dec(2)))
	assert.True(t, d.WorkingHours.Equal(dec(8)))
	assert.True(t, d.TotalHours.Equal(dec(10)))

	// Slot-addressed lookup agrees with the raw buckets.
	assert.True(t, d.BucketFor(engine.CostCenterSlot(1, "CC-Beta")).Equal(dec(2)))
	assert.True(t, d.BucketFor(engine.CategorySlot("PTO")).Equal(dec(2)))
}

func TestDistribute_TotalConservation(t *testing.T) {
	// PROPERTY: for every day, totalHours == sum of all buckets.

	days := distribute(t, []engine.TimeEntry{
		ccEntry("a", march(1), "CC-Alpha", 8, t1),
		ccEntry("b", march(2), "CC-Beta", 4.5, t1),
		catEntry("c", march(2), "G&A", 3.5, t1),
		catEntry("d", march(15), "Holiday", 8, t1),
	}, nil, nil, nil)

	for _, d := range days {
		sum := decimal.Zero
		for _, v := range d.CostCenterHours {
			sum = sum.Add(v)
		}
		for _, v := range d.CategoryHours {
			sum = sum.Add(v)
		}
		assert.True(t, d.TotalHours.Equal(sum), "day %d: total %s != bucket sum %s", d.Day, d.TotalHours, sum)
	}
}

func TestDistribute_DuplicatesNotDoubleCounted(t *testing.T) {
	// GIVEN: The scenario from the field data - duplicate records for
	//        (2024-03-05, CostCenter(0)) with 3h (older) and 5h (newer)
	// WHEN: Computing the month
	// THEN: The slot reports 5, never 8

	days := distribute(t, []engine.TimeEntry{
		ccEntry("older", march(5), "CC-Alpha", 3, t1),
		ccEntry("newer", march(5), "CC-Alpha", 5, t2),
	}, nil, nil, nil)

	d := days[4]
	assert.True(t, d.CostCenterHours[0].Equal(dec(5)))
	assert.True(t, d.TotalHours.Equal(dec(5)))
}

func TestDistribute_UnknownCostCenterSkipped(t *testing.T) {
	// A record naming a cost center outside the configured list has no
	// bucket to land in; it must not leak into totals.

	days := distribute(t, []engine.TimeEntry{
		ccEntry("a", march(5), "CC-Retired", 4, t1),
	}, nil, nil, nil)
	assert.True(t, days[4].TotalHours.IsZero())
}

// =============================================================================
// PER DIEM
// =============================================================================

func overnightTrip(day int, miles float64) engine.MileageLog {
	return engine.MileageLog{
		ID:              "trip",
		EmployeeID:      "emp-1",
		Date:            march(day),
		Miles:           dec(miles),
		StayedOvernight: true,
		UpdatedAt:       t1,
	}
}

func TestDistribute_ReceiptSourcedPerDiemWins(t *testing.T) {
	// GIVEN: A $28 "Per Diem" receipt and an eligible overnight trip
	// WHEN: Distributing
	// THEN: The receipt amount wins over the rule's flat rate

	days := distribute(t,
		[]engine.TimeEntry{ccEntry("a", march(5), "CC-Alpha", 8, t1)},
		[]engine.Receipt{{ID: "r1", EmployeeID: "emp-1", Date: march(5), Amount: dec(28), Tag: engine.PerDiemTag}},
		[]engine.MileageLog{overnightTrip(5, 200)},
		nil)
	assert.True(t, days[4].PerDiem.Equal(dec(28)))
}

func TestDistribute_ReceiptPerDiemCappedAt35(t *testing.T) {
	days := distribute(t,
		nil,
		[]engine.Receipt{{ID: "r1", EmployeeID: "emp-1", Date: march(5), Amount: dec(60), Tag: engine.PerDiemTag}},
		nil, nil)
	assert.True(t, days[4].PerDiem.Equal(dec(35)))
}

func TestDistribute_RulePerDiem_RequiresOvernightAndDistance(t *testing.T) {
	// GIVEN: 8h worked on March 5
	// THEN: Per diem only when overnight AND >= 50 miles from base

	entries := []engine.TimeEntry{ccEntry("a", march(5), "CC-Alpha", 8, t1)}

	// Eligible: overnight, 200 miles traveled (100 from base by proxy).
	days := distribute(t, entries, nil, []engine.MileageLog{overnightTrip(5, 200)}, nil)
	assert.True(t, days[4].PerDiem.Equal(dec(35)))

	// Not overnight.
	trip := overnightTrip(5, 200)
	trip.StayedOvernight = false
	days = distribute(t, entries, nil, []engine.MileageLog{trip}, nil)
	assert.True(t, days[4].PerDiem.IsZero())

	// Overnight but too close: 60 miles traveled is 30 from base by proxy.
	days = distribute(t, entries, nil, []engine.MileageLog{overnightTrip(5, 60)}, nil)
	assert.True(t, days[4].PerDiem.IsZero())

	// No travel record at all.
	days = distribute(t, entries, nil, nil, nil)
	assert.True(t, days[4].PerDiem.IsZero())
}

func TestDistribute_RulePerDiem_GeocodedDistancePreferred(t *testing.T) {
	// GIVEN: 40 miles traveled but a geocoded 55 miles from base
	// THEN: Eligible - the proxy only applies when geocoding is absent

	trip := overnightTrip(5, 40)
	trip.DistanceFromBase = dec(55)
	days := distribute(t,
		[]engine.TimeEntry{ccEntry("a", march(5), "CC-Alpha", 8, t1)},
		nil, []engine.MileageLog{trip}, nil)
	assert.True(t, days[4].PerDiem.Equal(dec(35)))
}

func TestDistribute_RulePerDiem_MinHoursPredicate(t *testing.T) {
	// GIVEN: An eligible trip but only 2h worked (< 4h threshold)
	// THEN: No rule-based per diem

	days := distribute(t,
		[]engine.TimeEntry{ccEntry("a", march(5), "CC-Alpha", 2, t1)},
		nil, []engine.MileageLog{overnightTrip(5, 200)}, nil)
	assert.True(t, days[4].PerDiem.IsZero())
}

func TestDistribute_MonthlyPerDiemCappedAt350(t *testing.T) {
	// GIVEN: Per-diem receipts of $35 on 12 days ($420 gross)
	// WHEN: Distributing
	// THEN: Every day <= $35 and the month sums to exactly $350;
	//       later days draw from the remaining budget

	var receipts []engine.Receipt
	for day := 1; day <= 12; day++ {
		receipts = append(receipts, engine.Receipt{
			ID: engine.ReceiptID(string(rune('a' + day))), EmployeeID: "emp-1",
			Date: march(day), Amount: dec(35), Tag: engine.PerDiemTag,
		})
	}
	days := distribute(t, nil, receipts, nil, nil)

	for _, d := range days {
		assert.True(t, d.PerDiem.LessThanOrEqual(dec(35)))
	}
	assert.True(t, sumMonthPerDiem(days).Equal(dec(350)))
	assert.True(t, days[9].PerDiem.Equal(dec(35)), "day 10 fully funded")
	assert.True(t, days[10].PerDiem.IsZero(), "day 11 exhausted the budget")
}

// =============================================================================
// DAILY NOTES
// =============================================================================

func TestDistribute_NotesAttached(t *testing.T) {
	days := distribute(t, nil, nil, nil, []engine.DailyNote{
		{ID: "n1", EmployeeID: "emp-1", Date: march(7), Text: "client site visit", UpdatedAt: t1},
	})
	assert.Equal(t, "client site visit", days[6].Note)
	assert.Empty(t, days[5].Note)
}
