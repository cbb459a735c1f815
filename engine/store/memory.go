// Package store provides an in-memory RecordStore for tests and dev.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/timesheet-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory RecordStore implementation
// =============================================================================

// Memory is a mutex-guarded in-memory record store. Reads return
// copies; the write behavior matches the production contract,
// including delete-of-missing-id being a no-op.
type Memory struct {
	mu      sync.RWMutex
	entries map[engine.EntryID]engine.TimeEntry
	receipts []engine.Receipt
	mileage  []engine.MileageLog
	notes    []engine.DailyNote

	// Error injection for failure-path tests. When set, the matching
	// write returns the error instead of mutating state.
	CreateErr error
	UpdateErr error
	DeleteErr error
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[engine.EntryID]engine.TimeEntry)}
}

func (m *Memory) ListTimeEntries(_ context.Context, employeeID engine.EmployeeID, month engine.MonthKey) ([]engine.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.TimeEntry
	for _, e := range m.entries {
		if e.EmployeeID == employeeID && month.MonthOf(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) CreateTimeEntry(_ context.Context, entry engine.TimeEntry) (engine.EntryID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	normalized, err := entry.Normalize()
	if err != nil {
		return "", err
	}
	if normalized.ID == "" {
		normalized.ID = engine.EntryID(uuid.NewString())
	}
	m.entries[normalized.ID] = normalized
	return normalized.ID, nil
}

func (m *Memory) UpdateTimeEntry(_ context.Context, id engine.EntryID, hours decimal.Decimal, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	e, ok := m.entries[id]
	if !ok {
		return engine.ErrStoreWrite
	}
	e.Hours = hours
	e.UpdatedAt = updatedAt
	m.entries[id] = e
	return nil
}

func (m *Memory) DeleteTimeEntry(_ context.Context, id engine.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.entries, id) // missing id: no-op by contract
	return nil
}

func (m *Memory) ListReceipts(_ context.Context, employeeID engine.EmployeeID, month engine.MonthKey) ([]engine.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.Receipt
	for _, r := range m.receipts {
		if r.EmployeeID == employeeID && month.MonthOf(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) ListMileageLogs(_ context.Context, employeeID engine.EmployeeID, month engine.MonthKey) ([]engine.MileageLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.MileageLog
	for _, l := range m.mileage {
		if l.EmployeeID == employeeID && month.MonthOf(l.Date) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Memory) ListDailyNotes(_ context.Context, employeeID engine.EmployeeID, month engine.MonthKey) ([]engine.DailyNote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.DailyNote
	for _, n := range m.notes {
		if n.EmployeeID == employeeID && month.MonthOf(n.Date) {
			out = append(out, n)
		}
	}
	return out, nil
}

// =============================================================================
// SEEDING HELPERS (tests/dev)
// =============================================================================

// SeedEntry inserts a raw entry verbatim, duplicates and all. Unlike
// CreateTimeEntry it does not normalize, so tests can plant records in
// the shapes the field data actually has.
func (m *Memory) SeedEntry(e engine.TimeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = engine.EntryID(uuid.NewString())
	}
	m.entries[e.ID] = e
}

func (m *Memory) SeedReceipt(r engine.Receipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, r)
}

func (m *Memory) SeedMileage(l engine.MileageLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mileage = append(m.mileage, l)
}

func (m *Memory) SeedNote(n engine.DailyNote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, n)
}

// Entry returns a stored entry by id (tests).
func (m *Memory) Entry(id engine.EntryID) (engine.TimeEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

// Len returns the number of stored time entries (tests).
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
