package shift

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tillworks/backend-pos/internal/common"
	"github.com/tillworks/backend-pos/internal/pricing"
)

// Handler exposes shift operations over HTTP. Every route acts on the
// signed-in operator's own drawer.
type Handler struct {
	Ledger *Ledger
}

// Start handles POST /api/v1/shifts.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.operator(w, r)
	if !ok {
		return
	}
	var payload struct {
		OpeningFloat int64 `json:"openingFloat"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	s, err := h.Ledger.Start(r.Context(), operatorID, pricing.Money(payload.OpeningFloat))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": s})
}

// Current handles GET /api/v1/shifts/current.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.operator(w, r)
	if !ok {
		return
	}
	s, ok := h.Ledger.Active(operatorID)
	if !ok {
		common.JSONError(w, http.StatusNotFound, "SHIFT_NOT_ACTIVE", "no active shift", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s})
}

// Reconcile handles POST /api/v1/shifts/current/reconcile.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.operator(w, r)
	if !ok {
		return
	}
	var payload struct {
		Denominations DenominationCount `json:"denominations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	rec, err := h.Ledger.Reconcile(r.Context(), operatorID, payload.Denominations)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// History handles GET /api/v1/shifts/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shift ledger not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Ledger.History()})
}

func (h *Handler) operator(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shift ledger not configured", nil)
		return "", false
	}
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
		return "", false
	}
	return operatorID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrShiftAlreadyActive):
		common.JSONError(w, http.StatusConflict, "SHIFT_ALREADY_ACTIVE", "a shift is already active", nil)
	case errors.Is(err, ErrShiftNotActive):
		common.JSONError(w, http.StatusConflict, "SHIFT_NOT_ACTIVE", "no active shift", nil)
	case errors.Is(err, ErrNegativeCount):
		common.JSONError(w, http.StatusBadRequest, "NEGATIVE_COUNT", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	}
}
