package shift_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillworks/backend-pos/internal/common"
	"github.com/tillworks/backend-pos/internal/shift"
)

func authedRequest(method, target, body, operatorID string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return r.WithContext(common.WithOperator(r.Context(), operatorID, "cashier"))
}

func newTestHandler() *shift.Handler {
	return &shift.Handler{Ledger: &shift.Ledger{
		Now: func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) },
	}}
}

func TestReconcileHandlerReadsDenominations(t *testing.T) {
	h := newTestHandler()
	_, err := h.Ledger.Start(context.Background(), "op-1", 20000)
	require.NoError(t, err)
	require.NoError(t, h.Ledger.RecordSale(mustShiftID(t, h.Ledger, "op-1"), "TXN0001", "cash", 1080))

	rr := httptest.NewRecorder()
	h.Reconcile(rr, authedRequest(http.MethodPost, "/api/v1/shifts/current/reconcile",
		`{"denominations":{"hundreds":2,"tens":1,"pennies":80}}`, "op-1"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"countedCash":21080`)
	require.Contains(t, rr.Body.String(), `"variance":0`)
}

func TestReconcileHandlerRejectsNegativeCounts(t *testing.T) {
	h := newTestHandler()
	_, err := h.Ledger.Start(context.Background(), "op-1", 20000)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.Reconcile(rr, authedRequest(http.MethodPost, "/api/v1/shifts/current/reconcile",
		`{"denominations":{"hundreds":-2}}`, "op-1"))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "NEGATIVE_COUNT")

	// Still open after the bad count.
	rr = httptest.NewRecorder()
	h.Current(rr, authedRequest(http.MethodGet, "/api/v1/shifts/current", "", "op-1"))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCurrentIsScopedToOperator(t *testing.T) {
	h := newTestHandler()
	_, err := h.Ledger.Start(context.Background(), "op-1", 20000)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.Current(rr, authedRequest(http.MethodGet, "/api/v1/shifts/current", "", "op-2"))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.Current(rr, authedRequest(http.MethodGet, "/api/v1/shifts/current", "", "op-1"))
	require.Equal(t, http.StatusOK, rr.Code)
}

func mustShiftID(t *testing.T, l *shift.Ledger, operatorID string) string {
	t.Helper()
	id, ok := l.ActiveShiftID(operatorID)
	require.True(t, ok)
	return id
}
