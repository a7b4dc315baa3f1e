package customer

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tillworks/backend-pos/internal/common"
	"github.com/tillworks/backend-pos/internal/pricing"
)

// Handler exposes the customer directory over HTTP.
type Handler struct {
	Svc *Service
}

type createCustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type adjustCreditRequest struct {
	Delta pricing.Money `json:"delta"`
}

// List searches customers by ?q= across name, phone and email.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, out)
}

// Detail returns a single customer.
func (h Handler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customer id", nil)
		return
	}
	c, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, c)
}

// Create registers a customer.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	c, err := h.Svc.Create(r.Context(), CreateInput(req))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, c)
}

// AdjustCredit credits or debits the store credit balance.
func (h Handler) AdjustCredit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customer id", nil)
		return
	}
	var req adjustCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	c, err := h.Svc.AdjustCredit(r.Context(), id, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, c)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "customer not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "something went wrong", nil)
}
