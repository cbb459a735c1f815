/*
dedupe.go - Last-writer-wins collapse of duplicate records

PURPOSE:
  Historical concurrent writes left some slots with more than one
  record. This file establishes the central invariant the rest of the
  engine relies on: at most one EFFECTIVE hours value per slot per day.

SELECTION RULE (total order, independent of input order):
  1. Highest UpdatedAt wins. A zero UpdatedAt is the zero time and so
     naturally loses to any timestamped record.
  2. On an exact UpdatedAt tie, the lexicographically greatest ID wins.
  3. Two DISTINCT records equal on both UpdatedAt and ID are
     unresolvable and reported as InconsistentSlotError - never
     resolved by map iteration order.

  Losers are surfaced as stale-duplicate ids for the reconciler to
  delete opportunistically. Deduplication itself has no side effects.
*/
package engine

import "sort"

// =============================================================================
// CELL KEY - (day, slot) identity within one employee/month
// =============================================================================

// CellKey identifies one slot on one day. Comparable, usable as a map key.
type CellKey struct {
	Date    Date
	SlotKey string
}

// =============================================================================
// DEDUPLICATOR
// =============================================================================

// DedupResult is the deduplicator's output: the single effective record
// per populated cell, plus the ids of every record that lost the
// last-writer-wins selection.
type DedupResult struct {
	Effective map[CellKey]TimeEntry
	StaleIDs  []EntryID
}

// Stale reports whether the id lost a tie-break somewhere in the month.
func (r DedupResult) Stale(id EntryID) bool {
	for _, s := range r.StaleIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Deduplicate collapses raw records to one effective record per cell.
// Pure: no side effects, deterministic for any permutation of entries.
// Malformed records (invariant violations the store boundary should
// have caught) fail the whole pass rather than being silently dropped.
func Deduplicate(entries []TimeEntry) (DedupResult, error) {
	groups := make(map[CellKey][]TimeEntry)
	for _, e := range entries {
		slot, err := e.SlotOf()
		if err != nil {
			return DedupResult{}, err
		}
		k := CellKey{Date: e.Date, SlotKey: slot.Key()}
		groups[k] = append(groups[k], e)
	}

	result := DedupResult{Effective: make(map[CellKey]TimeEntry, len(groups))}
	for k, group := range groups {
		keeper, err := SelectKeeper(group)
		if err != nil {
			if ise, ok := err.(*InconsistentSlotError); ok {
				ise.Date = k.Date
				ise.SlotKey = k.SlotKey
			}
			return DedupResult{}, err
		}
		result.Effective[k] = keeper
		for _, e := range group {
			if e.ID != keeper.ID {
				result.StaleIDs = append(result.StaleIDs, e.ID)
			}
		}
	}

	// Deterministic output for callers that iterate the stale list.
	sort.Slice(result.StaleIDs, func(i, j int) bool { return result.StaleIDs[i] < result.StaleIDs[j] })
	return result, nil
}

// SelectKeeper picks the effective record from a duplicate group using
// the total (UpdatedAt, ID) order. Shared with the reconciler so both
// sides of the system agree on which record survives.
//
// The group is sorted into the total order first, so both the keeper
// and the unresolvable-pair detection below are independent of input
// order: a corrupt pair is adjacent after sorting no matter where its
// members sat in the slice.
func SelectKeeper(group []TimeEntry) (TimeEntry, error) {
	if len(group) == 0 {
		return TimeEntry{}, ErrInconsistentSlot
	}
	sorted := make([]TimeEntry, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].UpdatedAt.Equal(sorted[j].UpdatedAt) {
			return sorted[i].UpdatedAt.Before(sorted[j].UpdatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].UpdatedAt.Equal(sorted[i-1].UpdatedAt) && sorted[i].ID == sorted[i-1].ID {
			// Distinct rows sharing id and timestamp: the tie-break is
			// no longer total. Report, don't pick.
			return TimeEntry{}, &InconsistentSlotError{IDs: []EntryID{sorted[i-1].ID, sorted[i].ID}}
		}
	}
	return sorted[len(sorted)-1], nil
}

// =============================================================================
// DAILY NOTE DEDUPLICATION
// =============================================================================

// EffectiveNotes collapses daily-description duplicates with the same
// last-writer-wins rule. Notes have no slot dimension, so the key is
// just the date; ties resolve by greatest ID without a defensive error
// (a wrong note is cosmetic, a wrong hours record is not).
func EffectiveNotes(notes []DailyNote) map[Date]DailyNote {
	out := make(map[Date]DailyNote, len(notes))
	for _, n := range notes {
		cur, ok := out[n.Date]
		if !ok || n.UpdatedAt.After(cur.UpdatedAt) ||
			(n.UpdatedAt.Equal(cur.UpdatedAt) && n.ID > cur.ID) {
			out[n.Date] = n
		}
	}
	return out
}
