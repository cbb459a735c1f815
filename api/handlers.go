/*
handlers.go - HTTP handlers for the reconciliation engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates everything else to the engine; no
  reconciliation logic lives here.

ENDPOINTS:
  Employees:
    GET    /api/employees                  List employees
    POST   /api/employees                  Create employee
    GET    /api/employees/{id}             Get employee

  Timesheet:
    GET    /api/employees/{id}/timesheet/{year}/{month}                 Month grid
    POST   /api/employees/{id}/timesheet/{year}/{month}/cells           Edit one cell
    POST   /api/employees/{id}/timesheet/{year}/{month}/cells/validate  Dry-run validation

  Expense inputs:
    POST   /api/employees/{id}/receipts    Record a receipt
    POST   /api/employees/{id}/mileage     Record a mileage log
    PUT    /api/employees/{id}/notes       Put a daily description

ERROR HANDLING:
  - 400: validation rejections (>24h, bad slot, malformed input)
  - 404: unknown employee
  - 409: inconsistent slot state (unresolvable duplicates)
  - 502: record store write failure; response carries the per-op
         report and refresh=true so the client re-reads ground truth

SECURITY NOTE:
  No authentication middleware; auth is an upstream concern here.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/timesheet-engine/engine"
	"github.com/warp/timesheet-engine/store/sqlite"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *engine.Engine
	Log    zerolog.Logger
}

// NewHandler creates a handler backed by the given store.
func NewHandler(store *sqlite.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Store:  store,
		Engine: engine.New(store, engine.WithLogger(log)),
		Log:    log,
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		out = append(out, employeeDTO(e))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if req.ID == "" || req.Name == "" {
		h.badRequest(w, "id and name are required")
		return
	}
	emp := sqlite.Employee{
		ID:          engine.EmployeeID(req.ID),
		Name:        req.Name,
		CostCenters: req.CostCenters,
	}
	if err := h.Store.CreateEmployee(r.Context(), emp); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, employeeDTO(emp))
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), engine.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, employeeDTO(emp))
}

func employeeDTO(e sqlite.Employee) EmployeeDTO {
	dto := EmployeeDTO{ID: string(e.ID), Name: e.Name, CostCenters: e.CostCenters}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// TIMESHEET - month grid & cell edits
// =============================================================================

func (h *Handler) GetMonth(w http.ResponseWriter, r *http.Request) {
	emp, month, ok := h.monthParams(w, r)
	if !ok {
		return
	}
	days, err := h.Engine.ComputeMonth(r.Context(), engine.ComputeRequest{
		EmployeeID:  emp.ID,
		Month:       month,
		CostCenters: emp.CostCenters,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := MonthResponse{
		EmployeeID:  string(emp.ID),
		Month:       month.String(),
		CostCenters: emp.CostCenters,
		Days:        make([]DailyDistributionDTO, len(days)),
	}
	for i, d := range days {
		out.Days[i] = distributionDTO(d, emp.CostCenters)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) EditCell(w http.ResponseWriter, r *http.Request) {
	emp, month, ok := h.monthParams(w, r)
	if !ok {
		return
	}
	var req EditCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if req.Day < 1 || req.Day > month.Days() {
		h.badRequest(w, "day out of range for month")
		return
	}
	slot, err := req.Slot.ToSlot()
	if err != nil {
		h.writeError(w, err)
		return
	}
	hours, err := decimal.NewFromString(req.Hours)
	if err != nil {
		h.badRequest(w, "invalid hours value")
		return
	}

	result, err := h.Engine.EditCell(r.Context(), engine.EditRequest{
		EmployeeID:  emp.ID,
		Date:        engine.NewDate(month.Year, month.Month, req.Day),
		Slot:        slot,
		CostCenters: emp.CostCenters,
		NewValue:    hours,
	})
	if err != nil {
		h.writeEditError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, EditCellResponse{
		Outcome:     string(result.Outcome),
		Slot:        slotDTO(slot),
		Accepted:    result.Accepted.String(),
		Adjustments: adjustmentDTOs(result.Adjustments),
		Operations:  opResultDTOs(result.Report),
	})
}

func (h *Handler) ValidateCell(w http.ResponseWriter, r *http.Request) {
	emp, month, ok := h.monthParams(w, r)
	if !ok {
		return
	}
	var req ValidateCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		h.badRequest(w, "invalid value")
		return
	}

	switch req.Type {
	case "hours":
		slot, err := req.Slot.ToSlot()
		if err != nil {
			h.writeError(w, err)
			return
		}
		accepted, err := h.Engine.ValidateCell(slot, value, emp.CostCenters)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, ValidateCellResponse{Accepted: accepted.String()})

	case "per_diem":
		if req.Day < 1 || req.Day > month.Days() {
			h.badRequest(w, "day out of range for month")
			return
		}
		mc, err := h.perDiemContext(r, emp, month)
		if err != nil {
			h.writeError(w, err)
			return
		}
		accepted, adjustments := h.Engine.ValidatePerDiem(req.Day, value, mc)
		h.writeJSON(w, http.StatusOK, ValidateCellResponse{
			Accepted:    accepted.String(),
			Adjustments: adjustmentDTOs(adjustments),
		})

	default:
		h.badRequest(w, "type must be \"hours\" or \"per_diem\"")
	}
}

// perDiemContext builds the month's current per-diem values for the
// monthly-cap clamp.
func (h *Handler) perDiemContext(r *http.Request, emp sqlite.Employee, month engine.MonthKey) (engine.MonthContext, error) {
	days, err := h.Engine.ComputeMonth(r.Context(), engine.ComputeRequest{
		EmployeeID:  emp.ID,
		Month:       month,
		CostCenters: emp.CostCenters,
	})
	if err != nil {
		return engine.MonthContext{}, err
	}
	byDay := make(map[int]decimal.Decimal, len(days))
	for _, d := range days {
		byDay[d.Day] = d.PerDiem
	}
	return engine.MonthContext{PerDiemByDay: byDay}, nil
}

// =============================================================================
// RECEIPTS, MILEAGE, NOTES
// =============================================================================

func (h *Handler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.employeeParam(w, r)
	if !ok {
		return
	}
	var req CreateReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	date, err := engine.ParseDate(req.Date)
	if err != nil {
		h.badRequest(w, "invalid date")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		h.badRequest(w, "invalid amount")
		return
	}
	id, err := h.Store.CreateReceipt(r.Context(), engine.Receipt{
		EmployeeID: emp.ID,
		Date:       date,
		Amount:     amount,
		Tag:        req.Tag,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(id)})
}

func (h *Handler) CreateMileage(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.employeeParam(w, r)
	if !ok {
		return
	}
	var req CreateMileageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	date, err := engine.ParseDate(req.Date)
	if err != nil {
		h.badRequest(w, "invalid date")
		return
	}
	miles, err := decimal.NewFromString(req.Miles)
	if err != nil || miles.IsNegative() {
		h.badRequest(w, "invalid miles")
		return
	}
	dist := decimal.Zero
	if req.DistanceFromBase != "" {
		if dist, err = decimal.NewFromString(req.DistanceFromBase); err != nil || dist.IsNegative() {
			h.badRequest(w, "invalid distance_from_base")
			return
		}
	}
	id, err := h.Store.CreateMileageLog(r.Context(), engine.MileageLog{
		EmployeeID:       emp.ID,
		Date:             date,
		Miles:            miles,
		DistanceFromBase: dist,
		StayedOvernight:  req.StayedOvernight,
		UpdatedAt:        time.Now().UTC(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

func (h *Handler) PutNote(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.employeeParam(w, r)
	if !ok {
		return
	}
	var req PutNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	date, err := engine.ParseDate(req.Date)
	if err != nil {
		h.badRequest(w, "invalid date")
		return
	}
	id, err := h.Store.PutDailyNote(r.Context(), engine.DailyNote{
		EmployeeID: emp.ID,
		Date:       date,
		Text:       req.Text,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CreatedResponse{ID: id})
}

// =============================================================================
// PARAM & RESPONSE HELPERS
// =============================================================================

func (h *Handler) employeeParam(w http.ResponseWriter, r *http.Request) (sqlite.Employee, bool) {
	emp, err := h.Store.GetEmployee(r.Context(), engine.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return sqlite.Employee{}, false
	}
	return emp, true
}

func (h *Handler) monthParams(w http.ResponseWriter, r *http.Request) (sqlite.Employee, engine.MonthKey, bool) {
	emp, ok := h.employeeParam(w, r)
	if !ok {
		return sqlite.Employee{}, engine.MonthKey{}, false
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1970 || year > 9999 {
		h.badRequest(w, "invalid year")
		return sqlite.Employee{}, engine.MonthKey{}, false
	}
	monthNum, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || monthNum < 1 || monthNum > 12 {
		h.badRequest(w, "invalid month")
		return sqlite.Employee{}, engine.MonthKey{}, false
	}
	return emp, engine.NewMonthKey(year, time.Month(monthNum)), true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsValidation(err):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrEmployeeNotFound):
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case engine.IsConsistency(err):
		h.writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Refresh: true})
	case errors.Is(err, engine.ErrStoreWrite):
		h.writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error(), Refresh: true})
	default:
		h.Log.Error().Err(err).Msg("internal error")
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// writeEditError maps EditCell failures, attaching the per-operation
// report on partial writes so the client knows exactly what landed.
func (h *Handler) writeEditError(w http.ResponseWriter, err error) {
	var swe *engine.StoreWriteError
	if errors.As(err, &swe) {
		h.writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:      err.Error(),
			Refresh:    true,
			Operations: opResultDTOs(swe.Report),
		})
		return
	}
	h.writeError(w, err)
}
