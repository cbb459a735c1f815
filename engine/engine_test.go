package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/engine"
	"github.com/warp/timesheet-engine/engine/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newEngine(mem *store.Memory) *engine.Engine {
	return engine.New(mem, engine.WithClock(func() time.Time { return editStamp }))
}

func editAlpha(t *testing.T, e *engine.Engine, day int, hours float64) (*engine.EditResult, error) {
	t.Helper()
	return e.EditCell(context.Background(), engine.EditRequest{
		EmployeeID:  "emp-1",
		Date:        march(day),
		Slot:        engine.CostCenterSlot(0, ""),
		CostCenters: testCostCenters,
		NewValue:    dec(hours),
	})
}

func computeMarch(t *testing.T, e *engine.Engine) []engine.DailyDistribution {
	t.Helper()
	days, err := e.ComputeMonth(context.Background(), engine.ComputeRequest{
		EmployeeID:  "emp-1",
		Month:       march2024,
		CostCenters: testCostCenters,
	})
	require.NoError(t, err)
	return days
}

// =============================================================================
// END-TO-END - Edit then recompute against the in-memory store
// =============================================================================

func TestEditCell_DuplicateSlot_UpdatesKeeperAndDeletesStale(t *testing.T) {
	// GIVEN: The duplicated (March 5, CostCenter 0) slot: 3h older, 5h newer
	// WHEN: The user edits the cell to 7
	// THEN: One record survives with 7h; the stale record is gone; a
	//       recomputation shows 7, never 10 or 12

	mem := store.NewMemory()
	mem.SeedEntry(ccEntry("older", march(5), "CC-Alpha", 3, t1))
	mem.SeedEntry(ccEntry("newer", march(5), "CC-Alpha", 5, t2))
	e := newEngine(mem)

	result, err := editAlpha(t, e, 5, 7)
	require.NoError(t, err)
	assert.Equal(t, engine.EditApplied, result.Outcome)
	assert.True(t, result.Report.AllApplied())

	assert.Equal(t, 1, mem.Len())
	kept, ok := mem.Entry("newer")
	require.True(t, ok)
	assert.True(t, kept.Hours.Equal(dec(7)))
	assert.Equal(t, editStamp, kept.UpdatedAt)

	days := computeMarch(t, e)
	assert.True(t, days[4].CostCenterHours[0].Equal(dec(7)))
}

func TestEditCell_StaleDuplicatesElsewhereInMonthCleaned(t *testing.T) {
	// GIVEN: An edit to March 12 while March 5 holds unrelated duplicates
	// WHEN: Editing
	// THEN: The March 5 stale record is cleaned up in the same pass

	mem := store.NewMemory()
	mem.SeedEntry(ccEntry("older", march(5), "CC-Alpha", 3, t1))
	mem.SeedEntry(ccEntry("newer", march(5), "CC-Alpha", 5, t2))
	e := newEngine(mem)

	result, err := editAlpha(t, e, 12, 4)
	require.NoError(t, err)
	assert.Equal(t, engine.EditApplied, result.Outcome)

	_, staleAlive := mem.Entry("older")
	assert.False(t, staleAlive)
	_, keeperAlive := mem.Entry("newer")
	assert.True(t, keeperAlive)
	assert.Equal(t, 2, mem.Len(), "keeper plus the new March 12 record")
}

func TestEditCell_Over24Hours_RejectedNothingChanged(t *testing.T) {
	// GIVEN: A 30h PTO proposal
	// WHEN: Editing
	// THEN: Rejected outright; the store is untouched

	mem := store.NewMemory()
	mem.SeedEntry(catEntry("pto", march(5), "PTO", 8, t1))
	e := newEngine(mem)

	result, err := e.EditCell(context.Background(), engine.EditRequest{
		EmployeeID:  "emp-1",
		Date:        march(5),
		Slot:        engine.CategorySlot("PTO"),
		CostCenters: testCostCenters,
		NewValue:    dec(30),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrHoursExceedDay)
	assert.Equal(t, engine.EditRejected, result.Outcome)

	kept, _ := mem.Entry("pto")
	assert.True(t, kept.Hours.Equal(dec(8)), "original value preserved")
}

func TestEditCell_ZeroOnEmptySlot_Idempotent(t *testing.T) {
	// Clearing a cell that is already empty is applied with an empty
	// diff, not an error, and repeating it changes nothing.

	mem := store.NewMemory()
	e := newEngine(mem)

	for i := 0; i < 2; i++ {
		result, err := editAlpha(t, e, 5, 0)
		require.NoError(t, err)
		assert.Equal(t, engine.EditApplied, result.Outcome)
		assert.True(t, result.Diff.IsEmpty())
	}
	assert.Equal(t, 0, mem.Len())
}

func TestEditCell_ZeroClearsExistingRecords(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedEntry(ccEntry("a", march(5), "CC-Alpha", 3, t1))
	mem.SeedEntry(ccEntry("b", march(5), "CC-Alpha", 5, t2))
	e := newEngine(mem)

	result, err := editAlpha(t, e, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, engine.EditApplied, result.Outcome)
	assert.Equal(t, 0, mem.Len())

	days := computeMarch(t, e)
	assert.True(t, days[4].TotalHours.IsZero())
}

func TestEditCell_CreateRoundTripsThroughCompute(t *testing.T) {
	// GIVEN: An empty month
	// WHEN: Editing (March 3, CC-Beta) to 6.5 and (March 3, G&A) to 1.5
	// THEN: ComputeMonth reflects both cells and the totals

	mem := store.NewMemory()
	e := newEngine(mem)

	_, err := e.EditCell(context.Background(), engine.EditRequest{
		EmployeeID: "emp-1", Date: march(3),
		Slot:        engine.CostCenterSlot(1, ""),
		CostCenters: testCostCenters,
		NewValue:    dec(6.5),
	})
	require.NoError(t, err)
	_, err = e.EditCell(context.Background(), engine.EditRequest{
		EmployeeID: "emp-1", Date: march(3),
		Slot:        engine.CategorySlot("G&A"),
		CostCenters: testCostCenters,
		NewValue:    dec(1.5),
	})
	require.NoError(t, err)

	days := computeMarch(t, e)
	d := days[2]
	assert.True(t, d.CostCenterHours[1].Equal(dec(6.5)))
	assert.True(t, d.CategoryHours["G&A"].Equal(dec(1.5)))
	assert.True(t, d.WorkingHours.Equal(dec(6.5)))
	assert.True(t, d.TotalHours.Equal(dec(8)))
}

func TestEditCell_InvalidSlotRejected(t *testing.T) {
	mem := store.NewMemory()
	e := newEngine(mem)

	result, err := e.EditCell(context.Background(), engine.EditRequest{
		EmployeeID: "emp-1", Date: march(5),
		Slot:        engine.CostCenterSlot(9, ""),
		CostCenters: testCostCenters,
		NewValue:    dec(4),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInvalidSlot)
	assert.Equal(t, engine.EditRejected, result.Outcome)
}

func TestEditCell_StoreFailure_OutcomeUnknownWithReport(t *testing.T) {
	// GIVEN: A store whose update fails
	// WHEN: Editing an occupied slot
	// THEN: Outcome is unknown and the report names what happened, so
	//       the caller knows to re-read

	mem := store.NewMemory()
	mem.SeedEntry(ccEntry("older", march(5), "CC-Alpha", 3, t1))
	mem.UpdateErr = engine.ErrStoreWrite
	e := newEngine(mem)

	result, err := editAlpha(t, e, 5, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrStoreWrite)
	assert.Equal(t, engine.EditUnknown, result.Outcome)
	require.NotNil(t, result.Report)
	assert.Equal(t, 1, result.Report.Count(engine.OpRejected))
}

// =============================================================================
// DRY-RUN VALIDATION
// =============================================================================

func TestValidateCell_AcceptedEqualsProposal(t *testing.T) {
	e := newEngine(store.NewMemory())
	accepted, err := e.ValidateCell(engine.CostCenterSlot(0, ""), dec(8), testCostCenters)
	require.NoError(t, err)
	assert.True(t, accepted.Equal(dec(8)))
}

func TestValidateCell_RejectsWithoutTouchingStore(t *testing.T) {
	e := newEngine(store.NewMemory())
	_, err := e.ValidateCell(engine.CategorySlot("PTO"), dec(25), testCostCenters)
	assert.ErrorIs(t, err, engine.ErrHoursExceedDay)
}

func TestValidatePerDiem_ClampsAgainstMonthState(t *testing.T) {
	// GIVEN: $325 of per diem already in the month
	// WHEN: Validating $35 for day 20
	// THEN: $25 accepted with a monthly-cap adjustment

	e := newEngine(store.NewMemory())
	mc := engine.MonthContext{PerDiemByDay: map[int]decimal.Decimal{
		1: dec(175), 2: dec(150),
	}}
	accepted, adjustments := e.ValidatePerDiem(20, dec(35), mc)
	assert.True(t, accepted.Equal(dec(25)))
	require.Len(t, adjustments, 1)
	assert.Equal(t, engine.AdjustMonthlyPerDiemCap, adjustments[0].Code)
}
