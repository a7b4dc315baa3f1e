package sales

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tillworks/backend-pos/internal/common"
)

// ActiveShift resolves the operator's open shift, if any.
type ActiveShift interface {
	ActiveShiftID(operatorID string) (string, bool)
}

// Handler exposes the transaction ledger over HTTP.
type Handler struct {
	Svc    *Service
	Shifts ActiveShift
}

// List handles GET /api/v1/sales.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	all := h.Svc.List(r.Context())
	total := len(all)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": all[start:end],
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: total,
		},
	})
}

// Get handles GET /api/v1/sales/{txnId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	txn, err := h.Svc.Get(r.Context(), chi.URLParam(r, "txnId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": txn})
}

// Void handles POST /api/v1/sales/{txnId}/void. Manager only.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	operatorID, _ := common.OperatorID(r.Context())
	shiftID := h.activeShift(w, operatorID)
	if shiftID == "" {
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	txn, err := h.Svc.Void(r.Context(), chi.URLParam(r, "txnId"), operatorID, shiftID, payload.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": txn})
}

// Return handles POST /api/v1/sales/{txnId}/return. Manager only.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	operatorID, _ := common.OperatorID(r.Context())
	shiftID := h.activeShift(w, operatorID)
	if shiftID == "" {
		return
	}
	var payload struct {
		Reason string       `json:"reason"`
		Lines  []ReturnLine `json:"lines"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	txn, err := h.Svc.Return(r.Context(), chi.URLParam(r, "txnId"), operatorID, shiftID, payload.Reason, payload.Lines)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": txn})
}

func (h *Handler) activeShift(w http.ResponseWriter, operatorID string) string {
	if h.Shifts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shift service not configured", nil)
		return ""
	}
	shiftID, ok := h.Shifts.ActiveShiftID(operatorID)
	if !ok {
		common.JSONError(w, http.StatusConflict, "SHIFT_NOT_ACTIVE", "no active shift", nil)
		return ""
	}
	return shiftID
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "transaction not found", nil)
	case errors.Is(err, ErrNotVoidable):
		common.JSONError(w, http.StatusConflict, "NOT_VOIDABLE", err.Error(), nil)
	case errors.Is(err, ErrInvalidReturn):
		common.JSONError(w, http.StatusBadRequest, "INVALID_RETURN", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
