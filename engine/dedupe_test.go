package engine_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/engine"
	"pgregory.net/rapid"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func march(day int) engine.Date { return engine.NewDate(2024, time.March, day) }

func ccEntry(id string, date engine.Date, costCenter string, hours float64, updatedAt time.Time) engine.TimeEntry {
	return engine.TimeEntry{
		ID:         engine.EntryID(id),
		EmployeeID: "emp-1",
		Date:       date,
		CostCenter: costCenter,
		Hours:      dec(hours),
		UpdatedAt:  updatedAt,
	}
}

func catEntry(id string, date engine.Date, category string, hours float64, updatedAt time.Time) engine.TimeEntry {
	return engine.TimeEntry{
		ID:         engine.EntryID(id),
		EmployeeID: "emp-1",
		Date:       date,
		Category:   category,
		Hours:      dec(hours),
		UpdatedAt:  updatedAt,
	}
}

var (
	t1 = time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
)

// =============================================================================
// LAST-WRITER-WINS SELECTION
// =============================================================================

func TestDeduplicate_LatestUpdatedAtWins(t *testing.T) {
	// GIVEN: Two records for the same (day, cost center) slot
	// WHEN: Deduplicating
	// THEN: The later-updated record is effective, the other stale

	result, err := engine.Deduplicate([]engine.TimeEntry{
		ccEntry("a", march(5), "CC-Alpha", 3, t1),
		ccEntry("b", march(5), "CC-Alpha", 5, t2),
	})
	require.NoError(t, err)

	key := engine.CellKey{Date: march(5), SlotKey: "cc:CC-Alpha"}
	require.Contains(t, result.Effective, key)
	assert.Equal(t, engine.EntryID("b"), result.Effective[key].ID)
	assert.True(t, result.Effective[key].Hours.Equal(dec(5)))
	assert.Equal(t, []engine.EntryID{"a"}, result.StaleIDs)
	assert.True(t, result.Stale("a"))
	assert.False(t, result.Stale("b"))
}

func TestDeduplicate_ZeroTimestampTreatedOldest(t *testing.T) {
	// GIVEN: One record with no timestamp and one with
	// WHEN: Deduplicating
	// THEN: The timestamped record wins regardless of hours

	result, err := engine.Deduplicate([]engine.TimeEntry{
		ccEntry("a", march(5), "CC-Alpha", 8, time.Time{}),
		ccEntry("b", march(5), "CC-Alpha", 2, t1),
	})
	require.NoError(t, err)
	assert.Equal(t, engine.EntryID("b"), result.Effective[engine.CellKey{Date: march(5), SlotKey: "cc:CC-Alpha"}].ID)
}

func TestDeduplicate_TimestampTie_GreatestIDWins(t *testing.T) {
	// GIVEN: Two records sharing the exact same UpdatedAt
	// WHEN: Deduplicating (in both input orders)
	// THEN: The lexicographically greatest id wins both times

	a := ccEntry("aaa", march(5), "CC-Alpha", 3, t1)
	b := ccEntry("zzz", march(5), "CC-Alpha", 5, t1)
	key := engine.CellKey{Date: march(5), SlotKey: "cc:CC-Alpha"}

	r1, err := engine.Deduplicate([]engine.TimeEntry{a, b})
	require.NoError(t, err)
	r2, err := engine.Deduplicate([]engine.TimeEntry{b, a})
	require.NoError(t, err)

	assert.Equal(t, engine.EntryID("zzz"), r1.Effective[key].ID)
	assert.Equal(t, engine.EntryID("zzz"), r2.Effective[key].ID)
}

func TestDeduplicate_DistinctSlotsDoNotCollide(t *testing.T) {
	// GIVEN: Same-day records in different slots (two cost centers, one category)
	// WHEN: Deduplicating
	// THEN: All three are effective, nothing is stale

	result, err := engine.Deduplicate([]engine.TimeEntry{
		ccEntry("a", march(5), "CC-Alpha", 4, t1),
		ccEntry("b", march(5), "CC-Beta", 2, t1),
		catEntry("c", march(5), "PTO", 2, t1),
	})
	require.NoError(t, err)
	assert.Len(t, result.Effective, 3)
	assert.Empty(t, result.StaleIDs)
}

func TestDeduplicate_UnresolvableTie_Reported(t *testing.T) {
	// GIVEN: Two distinct records sharing both UpdatedAt and id
	// WHEN: Deduplicating
	// THEN: InconsistentSlotError, never a silent pick

	_, err := engine.Deduplicate([]engine.TimeEntry{
		ccEntry("dup", march(5), "CC-Alpha", 3, t1),
		ccEntry("dup", march(5), "CC-Alpha", 5, t1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInconsistentSlot)

	var ise *engine.InconsistentSlotError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, march(5), ise.Date)
}

func TestDeduplicate_UnresolvableTie_DetectedInAnyOrder(t *testing.T) {
	// GIVEN: A corrupt duplicated-id pair plus a third record whose id
	//        sorts above both, all sharing the same timestamp
	// WHEN: Deduplicating with the pair in every position relative to
	//       the third record
	// THEN: The corruption is reported for every input order; the
	//       greater-id record must not mask the pair

	a := ccEntry("dup", march(5), "CC-Alpha", 3, t1)
	b := ccEntry("dup", march(5), "CC-Alpha", 5, t1)
	c := ccEntry("zzz", march(5), "CC-Alpha", 8, t1)

	orders := [][]engine.TimeEntry{
		{a, b, c},
		{a, c, b},
		{c, a, b},
		{b, c, a},
	}
	for i, order := range orders {
		_, err := engine.Deduplicate(order)
		assert.ErrorIs(t, err, engine.ErrInconsistentSlot, "order %d", i)
	}
}

func TestDeduplicate_MalformedEntryRejected(t *testing.T) {
	// GIVEN: A record with both cost center and a real leave category
	// WHEN: Deduplicating
	// THEN: The invariant violation is surfaced

	bad := ccEntry("x", march(5), "CC-Alpha", 3, t1)
	bad.Category = "PTO"
	_, err := engine.Deduplicate([]engine.TimeEntry{bad})
	assert.ErrorIs(t, err, engine.ErrMalformedEntry)
}

func TestDeduplicate_WorkingHoursAliasNormalized(t *testing.T) {
	// GIVEN: A cost-center record carrying the legacy "Working Hours" category
	// WHEN: Deduplicating
	// THEN: It lands in the cost-center slot, not a category slot

	e := ccEntry("x", march(5), "CC-Alpha", 3, t1)
	e.Category = "Working Hours"
	result, err := engine.Deduplicate([]engine.TimeEntry{e})
	require.NoError(t, err)
	assert.Contains(t, result.Effective, engine.CellKey{Date: march(5), SlotKey: "cc:CC-Alpha"})
}

// =============================================================================
// DETERMINISM PROPERTY
// =============================================================================

func TestDeduplicate_DeterministicUnderPermutation(t *testing.T) {
	// PROPERTY: for any duplicate set with distinct ids, every input
	// order selects the same keeper and the same stale set.
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 10).Draw(t, "n")
		base := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

		entries := make([]engine.TimeEntry, n)
		for i := 0; i < n; i++ {
			// Coarse timestamps force frequent ties so the id
			// tie-break is actually exercised.
			offset := rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("offset-%d", i))
			entries[i] = ccEntry(
				fmt.Sprintf("id-%02d", i),
				march(5), "CC-Alpha",
				float64(rapid.IntRange(1, 12).Draw(t, fmt.Sprintf("hours-%d", i))),
				base.Add(time.Duration(offset)*time.Hour),
			)
		}

		shuffled := make([]engine.TimeEntry, n)
		copy(shuffled, entries)
		for i := n - 1; i > 0; i-- {
			j := rapid.IntRange(0, i).Draw(t, fmt.Sprintf("swap-%d", i))
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		}

		r1, err1 := engine.Deduplicate(entries)
		r2, err2 := engine.Deduplicate(shuffled)
		require.NoError(t, err1)
		require.NoError(t, err2)

		key := engine.CellKey{Date: march(5), SlotKey: "cc:CC-Alpha"}
		require.Equal(t, r1.Effective[key].ID, r2.Effective[key].ID)
		require.Equal(t, r1.StaleIDs, r2.StaleIDs)
		require.Len(t, r1.StaleIDs, n-1)
	})
}

// =============================================================================
// DAILY NOTES
// =============================================================================

func TestEffectiveNotes_LastWriterWins(t *testing.T) {
	notes := []engine.DailyNote{
		{ID: "n1", Date: march(5), Text: "old", UpdatedAt: t1},
		{ID: "n2", Date: march(5), Text: "new", UpdatedAt: t2},
		{ID: "n3", Date: march(6), Text: "other day", UpdatedAt: t1},
	}
	effective := engine.EffectiveNotes(notes)
	assert.Equal(t, "new", effective[march(5)].Text)
	assert.Equal(t, "other day", effective[march(6)].Text)
}
