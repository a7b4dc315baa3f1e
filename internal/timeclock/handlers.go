package timeclock

import (
	"errors"
	"net/http"
	"time"

	"github.com/tillworks/backend-pos/internal/common"
)

// Handler exposes the time clock over HTTP. All routes act on the
// authenticated operator.
type Handler struct {
	Clock *Clock
}

type entryResponse struct {
	Entry
	WorkedMinutes int  `json:"workedMinutes"`
	OnBreak       bool `json:"onBreak"`
}

func (h Handler) respond(w http.ResponseWriter, status int, e Entry) {
	now := time.Now().UTC()
	if h.Clock != nil && h.Clock.Now != nil {
		now = h.Clock.Now().UTC()
	}
	common.JSON(w, status, entryResponse{
		Entry:         e,
		WorkedMinutes: int(e.Worked(now).Minutes()),
		OnBreak:       e.OnBreak(),
	})
}

func (h Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing operator context", nil)
		return
	}
	e, err := h.Clock.ClockIn(r.Context(), operatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, e)
}

func (h Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing operator context", nil)
		return
	}
	e, err := h.Clock.ClockOut(r.Context(), operatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, e)
}

func (h Handler) StartBreak(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing operator context", nil)
		return
	}
	e, err := h.Clock.StartBreak(r.Context(), operatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, e)
}

func (h Handler) EndBreak(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing operator context", nil)
		return
	}
	e, err := h.Clock.EndBreak(r.Context(), operatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, e)
}

func (h Handler) Current(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing operator context", nil)
		return
	}
	e, err := h.Clock.Current(r.Context(), operatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, e)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAlreadyClockedIn):
		common.JSONError(w, http.StatusConflict, "ALREADY_CLOCKED_IN", err.Error(), nil)
	case errors.Is(err, ErrNotClockedIn):
		common.JSONError(w, http.StatusNotFound, "NOT_CLOCKED_IN", err.Error(), nil)
	case errors.Is(err, ErrBreakOpen), errors.Is(err, ErrNoBreakOpen):
		common.JSONError(w, http.StatusConflict, "BREAK_STATE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "something went wrong", nil)
	}
}
