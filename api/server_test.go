package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/api"
	"github.com/xraph/credits/store/memory"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	l := credits.New(memory.New())
	return api.NewServer(l, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h := newServer(t)
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBalanceCreatesAccount(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodGet, "/accounts/u1/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "u1", body["account_id"])
	assert.Equal(t, float64(1000), body["balance"])

	rec = do(t, h, http.MethodGet, "/accounts/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "monthly", decodeBody(t, rec)["plan_tier"])
}

func TestAllocateWithTier(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPost, "/accounts/u1/allocate", `{"tier":"annual"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "annual", body["plan_tier"])
	assert.Equal(t, float64(1250), body["current_balance"])
}

func TestSpend(t *testing.T) {
	h := newServer(t)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/u1/allocate", "").Code)

	rec := do(t, h, http.MethodPost, "/accounts/u1/spend", `{"amount":300}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(700), decodeBody(t, rec)["balance_after"])

	rec = do(t, h, http.MethodPost, "/accounts/u1/spend", `{"amount":701}`)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	errBody, ok := decodeBody(t, rec)["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(701), errBody["requested"])
	assert.Equal(t, float64(700), errBody["available"])
}

func TestSpendErrors(t *testing.T) {
	h := newServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/accounts/nobody/spend", `{"amount":1}`).Code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/u1/allocate", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/accounts/u1/spend", `{"amount":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/accounts/u1/spend", `{"amount":"ten"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/accounts/u1/spend", `{"credits":5}`).Code)
}

func TestPurchaseDuplicate(t *testing.T) {
	h := newServer(t)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/u1/allocate", "").Code)

	rec := do(t, h, http.MethodPost, "/accounts/u1/purchases", `{"amount":500,"external_ref":"pi_1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1500), body["current_balance"])
	assert.Equal(t, float64(500), body["purchased_credits"])

	rec = do(t, h, http.MethodPost, "/accounts/u1/purchases", `{"amount":500,"external_ref":"pi_1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestChangePlanAndHistory(t *testing.T) {
	h := newServer(t)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/u1/allocate", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/u1/spend", `{"amount":200}`).Code)

	rec := do(t, h, http.MethodPut, "/accounts/u1/plan", `{"tier":"annual"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2050), decodeBody(t, rec)["current_balance"])

	rec = do(t, h, http.MethodGet, "/accounts/u1/transactions?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	txs, ok := decodeBody(t, rec)["transactions"].([]any)
	require.True(t, ok)
	require.Len(t, txs, 2)
	first, ok := txs[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "allocation", first["kind"])

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/accounts/u1/transactions?limit=x", "").Code)
}

func TestAuditAndCheck(t *testing.T) {
	h := newServer(t)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/u1/allocate", "").Code)

	rec := do(t, h, http.MethodGet, "/accounts/u1/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["consistent"])

	rec = do(t, h, http.MethodGet, "/accounts/u1/check?amount=5000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, float64(4000), body["shortfall"])
}

func TestCorrection(t *testing.T) {
	h := newServer(t)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/accounts/u1/allocate", "").Code)

	rec := do(t, h, http.MethodPost, "/accounts/u1/corrections", `{"delta":-100,"reason":"refund abuse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(900), decodeBody(t, rec)["current_balance"])

	rec = do(t, h, http.MethodPost, "/accounts/u1/corrections", `{"delta":-5000,"reason":"too much"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/accounts/u1/corrections", `{"delta":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
