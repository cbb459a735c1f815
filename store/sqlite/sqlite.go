/*
Package sqlite provides the SQLite-backed record store.

PURPOSE:
  Implements engine.RecordStore plus the employee registry the API
  layer needs. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  employees:     Employee registry with the ordered cost-center list
  time_entries:  Raw hours records (duplicates are a data reality, so
                 there is deliberately NO unique index on the slot key;
                 the engine owns duplicate resolution and cleanup)
  receipts:      Expense receipts; "Per Diem"-tagged rows feed per diem
  mileage_logs:  Travel records feeding rule-based per diem
  daily_notes:   Free-text daily descriptions

TIMESTAMPS:
  UpdatedAt is persisted verbatim (RFC3339Nano). Last-writer-wins
  resolution in the engine depends on the stored value, so the store
  never substitutes its own clock.

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers
  don't block, single writer at a time, better crash recovery.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

SEE ALSO:
  - engine/store.go: Interface contract
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/timesheet-engine/engine"
)

// Store implements engine.RecordStore and the employee registry.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cost_centers_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		cost_center TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		hours TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_time_entries_employee_date
		ON time_entries(employee_id, date);

	CREATE TABLE IF NOT EXISTS receipts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		tag TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_receipts_employee_date
		ON receipts(employee_id, date);

	CREATE TABLE IF NOT EXISTS mileage_logs (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		miles TEXT NOT NULL,
		distance_from_base TEXT NOT NULL DEFAULT '0',
		stayed_overnight INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mileage_employee_date
		ON mileage_logs(employee_id, date);

	CREATE TABLE IF NOT EXISTS daily_notes (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		text TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_employee_date
		ON daily_notes(employee_id, date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// monthRange returns the inclusive [first, last] date strings for a month.
func monthRange(month engine.MonthKey) (string, string) {
	return month.First().String(), month.Last().String()
}

// =============================================================================
// TIME ENTRIES - engine.RecordStore
// =============================================================================

func (s *Store) ListTimeEntries(ctx context.Context, employeeID engine.EmployeeID, month engine.MonthKey) ([]engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first, last := monthRange(month)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, date, cost_center, category, hours, updated_at
		FROM time_entries
		WHERE employee_id = ? AND date >= ? AND date <= ?`,
		string(employeeID), first, last)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []engine.TimeEntry
	for rows.Next() {
		var (
			e                             engine.TimeEntry
			id, empID, date, hours, stamp string
		)
		if err := rows.Scan(&id, &empID, &date, &e.CostCenter, &e.Category, &hours, &stamp); err != nil {
			return nil, err
		}
		e.ID = engine.EntryID(id)
		e.EmployeeID = engine.EmployeeID(empID)
		if e.Date, err = engine.ParseDate(date); err != nil {
			return nil, err
		}
		if e.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, fmt.Errorf("corrupt hours for entry %s: %w", id, err)
		}
		if e.UpdatedAt, err = parseTimestamp(stamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) CreateTimeEntry(ctx context.Context, entry engine.TimeEntry) (engine.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized, err := entry.Normalize()
	if err != nil {
		return "", err
	}
	if normalized.ID == "" {
		normalized.ID = engine.EntryID(uuid.NewString())
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO time_entries (id, employee_id, date, cost_center, category, hours, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(normalized.ID), string(normalized.EmployeeID), normalized.Date.String(),
		normalized.CostCenter, normalized.Category,
		normalized.Hours.String(), formatTimestamp(normalized.UpdatedAt))
	if err != nil {
		return "", err
	}
	return normalized.ID, nil
}

func (s *Store) UpdateTimeEntry(ctx context.Context, id engine.EntryID, hours decimal.Decimal, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE time_entries SET hours = ?, updated_at = ? WHERE id = ?`,
		hours.String(), formatTimestamp(updatedAt), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: entry %s not found for update", engine.ErrStoreWrite, id)
	}
	return nil
}

// DeleteTimeEntry removes an entry. Missing id is a no-op by contract.
func (s *Store) DeleteTimeEntry(ctx context.Context, id engine.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, string(id))
	return err
}

// =============================================================================
// RECEIPTS
// =============================================================================

func (s *Store) ListReceipts(ctx context.Context, employeeID engine.EmployeeID, month engine.MonthKey) ([]engine.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first, last := monthRange(month)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, date, amount, tag, updated_at
		FROM receipts
		WHERE employee_id = ? AND date >= ? AND date <= ?`,
		string(employeeID), first, last)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []engine.Receipt
	for rows.Next() {
		var (
			r                              engine.Receipt
			id, empID, date, amount, stamp string
		)
		if err := rows.Scan(&id, &empID, &date, &amount, &r.Tag, &stamp); err != nil {
			return nil, err
		}
		r.ID = engine.ReceiptID(id)
		r.EmployeeID = engine.EmployeeID(empID)
		if r.Date, err = engine.ParseDate(date); err != nil {
			return nil, err
		}
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("corrupt amount for receipt %s: %w", id, err)
		}
		if r.UpdatedAt, err = parseTimestamp(stamp); err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

func (s *Store) CreateReceipt(ctx context.Context, r engine.Receipt) (engine.ReceiptID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = engine.ReceiptID(uuid.NewString())
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO receipts (id, employee_id, date, amount, tag, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.EmployeeID), r.Date.String(),
		r.Amount.String(), r.Tag, formatTimestamp(r.UpdatedAt))
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// =============================================================================
// MILEAGE LOGS
// =============================================================================

func (s *Store) ListMileageLogs(ctx context.Context, employeeID engine.EmployeeID, month engine.MonthKey) ([]engine.MileageLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first, last := monthRange(month)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, date, miles, distance_from_base, stayed_overnight, updated_at
		FROM mileage_logs
		WHERE employee_id = ? AND date >= ? AND date <= ?`,
		string(employeeID), first, last)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []engine.MileageLog
	for rows.Next() {
		var (
			l                               engine.MileageLog
			empID, date, miles, dist, stamp string
			overnight                       int
		)
		if err := rows.Scan(&l.ID, &empID, &date, &miles, &dist, &overnight, &stamp); err != nil {
			return nil, err
		}
		l.EmployeeID = engine.EmployeeID(empID)
		if l.Date, err = engine.ParseDate(date); err != nil {
			return nil, err
		}
		if l.Miles, err = decimal.NewFromString(miles); err != nil {
			return nil, fmt.Errorf("corrupt miles for log %s: %w", l.ID, err)
		}
		if l.DistanceFromBase, err = decimal.NewFromString(dist); err != nil {
			return nil, fmt.Errorf("corrupt distance for log %s: %w", l.ID, err)
		}
		l.StayedOvernight = overnight != 0
		if l.UpdatedAt, err = parseTimestamp(stamp); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) CreateMileageLog(ctx context.Context, l engine.MileageLog) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	overnight := 0
	if l.StayedOvernight {
		overnight = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mileage_logs (id, employee_id, date, miles, distance_from_base, stayed_overnight, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, string(l.EmployeeID), l.Date.String(),
		l.Miles.String(), l.DistanceFromBase.String(), overnight, formatTimestamp(l.UpdatedAt))
	if err != nil {
		return "", err
	}
	return l.ID, nil
}

// =============================================================================
// DAILY NOTES
// =============================================================================

func (s *Store) ListDailyNotes(ctx context.Context, employeeID engine.EmployeeID, month engine.MonthKey) ([]engine.DailyNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first, last := monthRange(month)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, date, text, updated_at
		FROM daily_notes
		WHERE employee_id = ? AND date >= ? AND date <= ?`,
		string(employeeID), first, last)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []engine.DailyNote
	for rows.Next() {
		var (
			n                  engine.DailyNote
			empID, date, stamp string
		)
		if err := rows.Scan(&n.ID, &empID, &date, &n.Text, &stamp); err != nil {
			return nil, err
		}
		n.EmployeeID = engine.EmployeeID(empID)
		if n.Date, err = engine.ParseDate(date); err != nil {
			return nil, err
		}
		if n.UpdatedAt, err = parseTimestamp(stamp); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *Store) PutDailyNote(ctx context.Context, n engine.DailyNote) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_notes (id, employee_id, date, text, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID, string(n.EmployeeID), n.Date.String(), n.Text, formatTimestamp(n.UpdatedAt))
	if err != nil {
		return "", err
	}
	return n.ID, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// Employee is the registry record carrying the ordered cost-center
// list the distributor indexes into.
type Employee struct {
	ID          engine.EmployeeID
	Name        string
	CostCenters []string
	CreatedAt   time.Time
}

func (s *Store) CreateEmployee(ctx context.Context, e Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ccJSON, err := json.Marshal(e.CostCenters)
	if err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, cost_centers_json, created_at)
		VALUES (?, ?, ?, ?)`,
		string(e.ID), e.Name, string(ccJSON), formatTimestamp(e.CreatedAt))
	return err
}

func (s *Store) GetEmployee(ctx context.Context, id engine.EmployeeID) (Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		e                  Employee
		empID, cc, created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, cost_centers_json, created_at FROM employees WHERE id = ?`,
		string(id)).Scan(&empID, &e.Name, &cc, &created)
	if err == sql.ErrNoRows {
		return Employee{}, engine.ErrEmployeeNotFound
	}
	if err != nil {
		return Employee{}, err
	}
	e.ID = engine.EmployeeID(empID)
	if err := json.Unmarshal([]byte(cc), &e.CostCenters); err != nil {
		return Employee{}, fmt.Errorf("corrupt cost centers for employee %s: %w", id, err)
	}
	if e.CreatedAt, err = parseTimestamp(created); err != nil {
		return Employee{}, err
	}
	return e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, cost_centers_json, created_at FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var (
			e                  Employee
			empID, cc, created string
		)
		if err := rows.Scan(&empID, &e.Name, &cc, &created); err != nil {
			return nil, err
		}
		e.ID = engine.EmployeeID(empID)
		if err := json.Unmarshal([]byte(cc), &e.CostCenters); err != nil {
			return nil, fmt.Errorf("corrupt cost centers for employee %s: %w", empID, err)
		}
		if e.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// =============================================================================
// TIMESTAMP ENCODING
// =============================================================================

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
