package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tillworks/backend-pos/internal/cart"
	"github.com/tillworks/backend-pos/internal/common"
	"github.com/tillworks/backend-pos/internal/pricing"
	"github.com/tillworks/backend-pos/internal/shift"
)

// Handler exposes the checkout state machine over HTTP.
type Handler struct {
	Svc *Service
}

type tenderCashRequest struct {
	Tendered pricing.Money `json:"tendered"`
}

// Begin starts a checkout for the operator's cart.
func (h Handler) Begin(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing operator context", nil)
		return
	}
	co, err := h.Svc.Begin(r.Context(), operatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, co)
}

// Current returns the operator's in-flight checkout.
func (h Handler) Current(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing operator context", nil)
		return
	}
	co, err := h.Svc.Current(r.Context(), operatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, co)
}

// TenderCash settles the checkout with cash.
func (h Handler) TenderCash(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing operator context", nil)
		return
	}
	var req tenderCashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	res, err := h.Svc.TenderCash(r.Context(), operatorID, req.Tendered)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// AuthorizeCard settles the checkout through the card reader.
func (h Handler) AuthorizeCard(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing operator context", nil)
		return
	}
	res, err := h.Svc.AuthorizeCard(r.Context(), operatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// Cancel abandons the in-flight checkout.
func (h Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := common.OperatorID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing operator context", nil)
		return
	}
	co, err := h.Svc.Cancel(r.Context(), operatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, co)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no checkout in progress", nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusBadRequest, "EMPTY_CART", "cart has no lines", nil)
	case errors.Is(err, ErrInsufficientTender):
		common.JSONError(w, http.StatusBadRequest, "INSUFFICIENT_TENDER", err.Error(), nil)
	case errors.Is(err, ErrAuthorizationFailed):
		common.JSONError(w, http.StatusPaymentRequired, "AUTHORIZATION_FAILED", err.Error(), nil)
	case errors.Is(err, ErrStaleCheckout):
		common.JSONError(w, http.StatusConflict, "STALE_CHECKOUT", "cart changed since checkout began", nil)
	case errors.Is(err, ErrInvalidState):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	case errors.Is(err, shift.ErrShiftNotActive):
		common.JSONError(w, http.StatusConflict, "SHIFT_NOT_ACTIVE", "open a shift before checkout", nil)
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "something went wrong", nil)
	}
}
