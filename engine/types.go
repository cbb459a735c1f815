/*
Package engine implements the daily time & expense reconciliation core.

PURPOSE:
  This package contains the domain types and algorithms that turn a
  scattered, possibly duplicated set of per-entry time-tracking and
  per-diem records for one employee/month into a canonical per-day
  distribution of hours, and that translate a single-cell edit back
  into a minimal set of idempotent writes against the record store.

KEY CONCEPTS IN THIS FILE (types.go):
  - Date/MonthKey: Day-granular calendar keys (records carry no time of day)
  - Slot: Tagged variant distinguishing cost-center hours from leave-category hours
  - TimeEntry: Raw persisted record, validated at the store boundary
  - DailyDistribution: Derived per-day view, recomputed on every load

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for hours and money, never float math
  2. Explicit variants: Slot replaces the "empty string means X" convention
  3. Derived views: DailyDistribution is never persisted, only computed
  4. No process-wide state: everything is passed in and returned

SEE ALSO:
  - dedupe.go: Last-writer-wins collapse of duplicate records
  - distribute.go: Per-day hour distribution and totals
  - reconcile.go: Single-cell edit -> create/update/delete diff
*/
package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type EntryID string
type ReceiptID string

// =============================================================================
// DATE & MONTH - Day-granular calendar keys
// =============================================================================

// Date is a calendar day with no time component. All records in this
// system are keyed by day; intra-day ordering comes from UpdatedAt.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates a time.Time to its calendar day (in UTC).
func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{Year: u.Year(), Month: u.Month(), Day: u.Day()}
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string { return d.Time().Format("2006-01-02") }

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MonthKey identifies one employee-month of records.
type MonthKey struct {
	Year  int
	Month time.Month
}

func NewMonthKey(year int, month time.Month) MonthKey {
	return MonthKey{Year: year, Month: month}
}

func (m MonthKey) MonthOf(d Date) bool { return d.Year == m.Year && d.Month == m.Month }

// Days returns the number of calendar days in the month.
func (m MonthKey) Days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (m MonthKey) First() Date { return NewDate(m.Year, m.Month, 1) }
func (m MonthKey) Last() Date  { return NewDate(m.Year, m.Month, m.Days()) }

func (m MonthKey) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

// =============================================================================
// SLOT - Tagged variant: cost-center bucket vs leave-category bucket
// =============================================================================

// LeaveCategories is the fixed set of non-working hour buckets.
// Category hours never count toward working hours.
var LeaveCategories = []string{"G&A", "Holiday", "PTO", "STD/LTD", "PFL/PFML"}

// workingHourAliases are category strings that some historical records
// carry on cost-center entries. They mean "no category" and are
// normalized to empty at the store boundary.
var workingHourAliases = map[string]bool{
	"Working Hours": true,
	"Regular Hours": true,
}

func IsLeaveCategory(name string) bool {
	for _, c := range LeaveCategories {
		if c == name {
			return true
		}
	}
	return false
}

type SlotKind int

const (
	SlotCostCenter SlotKind = iota
	SlotCategory
)

// Slot is the logical key distinguishing a cost-center hours bucket
// from a leave-category hours bucket for one employee/day.
//
// For SlotCostCenter, Index addresses the employee's ordered cost-center
// list and Name carries the cost-center name as stored on records.
// For SlotCategory, Name is one of LeaveCategories and Index is unused.
type Slot struct {
	Kind  SlotKind
	Index int
	Name  string
}

func CostCenterSlot(index int, name string) Slot {
	return Slot{Kind: SlotCostCenter, Index: index, Name: name}
}

func CategorySlot(name string) Slot {
	return Slot{Kind: SlotCategory, Name: name}
}

// Key returns a stable map key. Cost centers key by name, not index,
// so that records remain addressable even if the configured list is
// reordered between writes.
func (s Slot) Key() string {
	if s.Kind == SlotCostCenter {
		return "cc:" + s.Name
	}
	return "cat:" + s.Name
}

func (s Slot) String() string {
	if s.Kind == SlotCostCenter {
		return "cost-center[" + strconv.Itoa(s.Index) + ":" + s.Name + "]"
	}
	return "category[" + s.Name + "]"
}

// Validate checks the slot is well-formed against the configured
// cost-center list.
func (s Slot) Validate(costCenters []string) error {
	switch s.Kind {
	case SlotCostCenter:
		if s.Index < 0 || s.Index >= len(costCenters) {
			return fmt.Errorf("%w: cost center index %d out of range [0,%d)", ErrInvalidSlot, s.Index, len(costCenters))
		}
		if s.Name != "" && s.Name != costCenters[s.Index] {
			return fmt.Errorf("%w: cost center name %q does not match configured %q", ErrInvalidSlot, s.Name, costCenters[s.Index])
		}
		return nil
	case SlotCategory:
		if !IsLeaveCategory(s.Name) {
			return fmt.Errorf("%w: unknown leave category %q", ErrInvalidSlot, s.Name)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown slot kind %d", ErrInvalidSlot, s.Kind)
	}
}

// Resolve fills in the cost-center name from the configured list.
// Category slots pass through unchanged.
func (s Slot) Resolve(costCenters []string) (Slot, error) {
	if err := s.Validate(costCenters); err != nil {
		return Slot{}, err
	}
	if s.Kind == SlotCostCenter {
		s.Name = costCenters[s.Index]
	}
	return s, nil
}

// =============================================================================
// TIME ENTRY - Raw persisted record
// =============================================================================

// TimeEntry is the raw record as persisted by the record store.
//
// INVARIANT: an entry is either a cost-center entry (CostCenter non-empty,
// Category empty after normalization) or a category entry (CostCenter
// empty, Category in LeaveCategories). Enforced by Normalize at the
// store boundary; SlotOf rejects anything else.
type TimeEntry struct {
	ID         EntryID
	EmployeeID EmployeeID
	Date       Date
	CostCenter string
	Category   string
	Hours      decimal.Decimal
	UpdatedAt  time.Time
}

// Normalize strips working-hour alias categories from cost-center
// entries and validates the cost-center/category exclusivity invariant.
func (e TimeEntry) Normalize() (TimeEntry, error) {
	if e.CostCenter != "" && workingHourAliases[e.Category] {
		e.Category = ""
	}
	switch {
	case e.CostCenter != "" && e.Category != "":
		return e, fmt.Errorf("%w: entry %s has both cost center %q and category %q",
			ErrMalformedEntry, e.ID, e.CostCenter, e.Category)
	case e.CostCenter == "" && e.Category == "":
		return e, fmt.Errorf("%w: entry %s has neither cost center nor category", ErrMalformedEntry, e.ID)
	case e.CostCenter == "" && !IsLeaveCategory(e.Category):
		return e, fmt.Errorf("%w: entry %s has unknown category %q", ErrMalformedEntry, e.ID, e.Category)
	}
	return e, nil
}

// SlotOf derives the record's slot key. The cost-center index is left
// unresolved (-1); resolution against the configured list happens in
// the Distributor, which is the only consumer that needs indexes.
func (e TimeEntry) SlotOf() (Slot, error) {
	n, err := e.Normalize()
	if err != nil {
		return Slot{}, err
	}
	if n.CostCenter != "" {
		return Slot{Kind: SlotCostCenter, Index: -1, Name: n.CostCenter}, nil
	}
	return CategorySlot(n.Category), nil
}

// =============================================================================
// RECEIPTS & MILEAGE - Inputs to per-diem computation
// =============================================================================

// PerDiemTag marks receipts that directly source a day's per-diem amount.
const PerDiemTag = "Per Diem"

type Receipt struct {
	ID         ReceiptID
	EmployeeID EmployeeID
	Date       Date
	Amount     decimal.Decimal
	Tag        string
	UpdatedAt  time.Time
}

func (r Receipt) IsPerDiem() bool { return r.Tag == PerDiemTag }

// MileageLog records one day's travel, the other input to the
// rule-based per-diem calculation.
type MileageLog struct {
	ID               string
	EmployeeID       EmployeeID
	Date             Date
	Miles            decimal.Decimal
	DistanceFromBase decimal.Decimal // zero when no geocoding is available
	StayedOvernight  bool
	UpdatedAt        time.Time
}

// DailyNote is the free-text daily description record. Duplicates are
// resolved last-writer-wins like hours records.
type DailyNote struct {
	ID         string
	EmployeeID EmployeeID
	Date       Date
	Text       string
	UpdatedAt  time.Time
}

// =============================================================================
// DAILY DISTRIBUTION - Derived per-day view
// =============================================================================

// DailyDistribution is the canonical per-day split of hours across
// cost centers and leave categories. It is recomputed from the current
// record set on every load and never persisted.
type DailyDistribution struct {
	Day             int // 1..MonthKey.Days()
	Date            Date
	CostCenterHours map[int]decimal.Decimal    // index into the configured cost-center list
	CategoryHours   map[string]decimal.Decimal // keyed by LeaveCategories name
	TotalHours      decimal.Decimal
	WorkingHours    decimal.Decimal // cost-center buckets only
	PerDiem         decimal.Decimal
	Note            string
}

// BucketFor returns the distribution value for a slot.
func (d DailyDistribution) BucketFor(slot Slot) decimal.Decimal {
	if slot.Kind == SlotCostCenter {
		return d.CostCenterHours[slot.Index]
	}
	return d.CategoryHours[slot.Name]
}
