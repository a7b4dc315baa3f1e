package reports

import (
	"net/http"
	"time"

	"github.com/tillworks/backend-pos/internal/common"
)

// Handler exposes the reporting endpoints. Routes are manager-only;
// role enforcement happens in the router.
type Handler struct {
	Svc *Service
}

// day resolves ?date=YYYY-MM-DD, defaulting to today.
func (h Handler) day(r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return h.Svc.now(), true
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func (h Handler) Summary(w http.ResponseWriter, r *http.Request) {
	day, ok := h.day(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "date must be YYYY-MM-DD", nil)
		return
	}
	common.JSON(w, http.StatusOK, h.Svc.DailySummary(r.Context(), day))
}

func (h Handler) Hourly(w http.ResponseWriter, r *http.Request) {
	day, ok := h.day(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "date must be YYYY-MM-DD", nil)
		return
	}
	common.JSON(w, http.StatusOK, h.Svc.Hourly(r.Context(), day))
}

func (h Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	day, ok := h.day(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "date must be YYYY-MM-DD", nil)
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 5)
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}
	common.JSON(w, http.StatusOK, h.Svc.TopProducts(r.Context(), day, limit))
}
