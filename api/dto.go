/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  engine's domain model from the external contract. Decimal values
  cross the wire as strings to avoid float rounding in clients.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: The domain model these project
*/
package api

import (
	"github.com/warp/timesheet-engine/engine"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	CostCenters []string `json:"cost_centers"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

type CreateEmployeeRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	CostCenters []string `json:"cost_centers"`
}

// =============================================================================
// SLOTS & CELLS
// =============================================================================

// SlotDTO is the wire form of the tagged slot variant.
// kind is "cost_center" (index addresses the employee's list) or
// "category" (name is one of the fixed leave categories).
type SlotDTO struct {
	Kind  string `json:"kind"`
	Index int    `json:"index,omitempty"`
	Name  string `json:"name,omitempty"`
}

func (s SlotDTO) ToSlot() (engine.Slot, error) {
	switch s.Kind {
	case "cost_center":
		return engine.CostCenterSlot(s.Index, s.Name), nil
	case "category":
		return engine.CategorySlot(s.Name), nil
	default:
		return engine.Slot{}, engine.ErrInvalidSlot
	}
}

func slotDTO(s engine.Slot) SlotDTO {
	if s.Kind == engine.SlotCostCenter {
		return SlotDTO{Kind: "cost_center", Index: s.Index, Name: s.Name}
	}
	return SlotDTO{Kind: "category", Name: s.Name}
}

// =============================================================================
// MONTH GRID
// =============================================================================

// DailyDistributionDTO is one row of the month grid. Cost-center hours
// are ordered by the employee's configured list, so clients render
// columns without re-deriving the index mapping.
type DailyDistributionDTO struct {
	Day             int               `json:"day"`
	Date            string            `json:"date"`
	CostCenterHours []string          `json:"cost_center_hours"`
	CategoryHours   map[string]string `json:"category_hours"`
	TotalHours      string            `json:"total_hours"`
	WorkingHours    string            `json:"working_hours"`
	PerDiem         string            `json:"per_diem"`
	Note            string            `json:"note,omitempty"`
}

type MonthResponse struct {
	EmployeeID  string                 `json:"employee_id"`
	Month       string                 `json:"month"`
	CostCenters []string               `json:"cost_centers"`
	Days        []DailyDistributionDTO `json:"days"`
}

func distributionDTO(d engine.DailyDistribution, costCenters []string) DailyDistributionDTO {
	cc := make([]string, len(costCenters))
	for i := range costCenters {
		cc[i] = d.CostCenterHours[i].String()
	}
	cats := make(map[string]string, len(d.CategoryHours))
	for name, v := range d.CategoryHours {
		cats[name] = v.String()
	}
	return DailyDistributionDTO{
		Day:             d.Day,
		Date:            d.Date.String(),
		CostCenterHours: cc,
		CategoryHours:   cats,
		TotalHours:      d.TotalHours.String(),
		WorkingHours:    d.WorkingHours.String(),
		PerDiem:         d.PerDiem.String(),
		Note:            d.Note,
	}
}

// =============================================================================
// CELL EDITS
// =============================================================================

type EditCellRequest struct {
	Day   int     `json:"day"`
	Slot  SlotDTO `json:"slot"`
	Hours string  `json:"hours"`
}

type AdjustmentDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type OpResultDTO struct {
	Kind   string `json:"kind"`
	ID     string `json:"id,omitempty"`
	Hours  string `json:"hours,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// EditCellResponse confirms what was applied, for optimistic-update
// reconciliation. The edited slot is echoed back so clients can match
// the response to a pending cell without correlating requests. outcome
// "unknown" means the client must re-fetch the month rather than trust
// its local state.
type EditCellResponse struct {
	Outcome     string          `json:"outcome"`
	Slot        SlotDTO         `json:"slot"`
	Accepted    string          `json:"accepted"`
	Adjustments []AdjustmentDTO `json:"adjustments,omitempty"`
	Operations  []OpResultDTO   `json:"operations"`
}

type ValidateCellRequest struct {
	// "hours" validates a slot's hours; "per_diem" clamps a day's amount.
	Type  string  `json:"type"`
	Slot  SlotDTO `json:"slot,omitempty"`
	Day   int     `json:"day,omitempty"`
	Value string  `json:"value"`
}

type ValidateCellResponse struct {
	Accepted    string          `json:"accepted"`
	Adjustments []AdjustmentDTO `json:"adjustments,omitempty"`
}

func adjustmentDTOs(adjustments []engine.Adjustment) []AdjustmentDTO {
	if len(adjustments) == 0 {
		return nil
	}
	out := make([]AdjustmentDTO, len(adjustments))
	for i, a := range adjustments {
		out[i] = AdjustmentDTO{Code: a.Code, Message: a.Message, From: a.From.String(), To: a.To.String()}
	}
	return out
}

func opResultDTOs(report *engine.ApplyReport) []OpResultDTO {
	if report == nil {
		return nil
	}
	out := make([]OpResultDTO, len(report.Ops))
	for i, op := range report.Ops {
		dto := OpResultDTO{
			Kind:   string(op.Kind),
			ID:     string(op.ID),
			Status: string(op.Status),
			Error:  op.Error,
		}
		if op.Kind != engine.OpDelete {
			dto.Hours = op.Hours.String()
		}
		out[i] = dto
	}
	return out
}

// =============================================================================
// RECEIPTS, MILEAGE, NOTES
// =============================================================================

type CreateReceiptRequest struct {
	Date   string `json:"date"`
	Amount string `json:"amount"`
	Tag    string `json:"tag"`
}

type CreateMileageRequest struct {
	Date             string `json:"date"`
	Miles            string `json:"miles"`
	DistanceFromBase string `json:"distance_from_base,omitempty"`
	StayedOvernight  bool   `json:"stayed_overnight"`
}

type PutNoteRequest struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

type CreatedResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the uniform error body. refresh=true instructs the
// client to discard optimistic state and re-fetch the month.
type ErrorResponse struct {
	Error      string        `json:"error"`
	Refresh    bool          `json:"refresh,omitempty"`
	Operations []OpResultDTO `json:"operations,omitempty"`
}
