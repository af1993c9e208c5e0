package http_api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paywallio/paywalld/internal/blockchain"
	"github.com/paywallio/paywalld/internal/config"
	"github.com/paywallio/paywalld/internal/metrics"
	"github.com/paywallio/paywalld/internal/models"
	"github.com/paywallio/paywalld/internal/paywall"
	"github.com/paywallio/paywalld/internal/repository"
	"github.com/paywallio/paywalld/pkg/logger"
)

var (
	payout = "0x" + strings.Repeat("a", 40)
	buyer  = "0x52908400098527886E0F7030069857D2E4169EE7"
	txHash = "0x" + strings.Repeat("de", 32)
)

type stubOracle struct {
	lookup *models.Lookup
	err    error
}

func (o *stubOracle) Network() models.Network { return models.NetworkBNB }

func (o *stubOracle) LookupTransaction(context.Context, string, string) (*models.Lookup, error) {
	if o.err != nil {
		return nil, o.err
	}
	cp := *o.lookup
	return &cp, nil
}

type testAPI struct {
	handler http.Handler
	oracle  *stubOracle
	repo    *repository.MemoryDB
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		BaseDomain: "https://paywall.example",
		ListLimit:  100,
		Networks:   map[models.Network]config.NetworkConfig{models.NetworkBNB: {RPCURL: "http://bnb"}},
	}
	oracle := &stubOracle{lookup: &models.Lookup{State: models.TxStateNotFound}}
	repo := repository.NewMemoryDB()
	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	svc := paywall.NewService(repo, blockchain.NewStaticOracles(oracle), recorder, logger.NewNop(), cfg)
	server := NewHTTPServer(svc, recorder, reg, 0, logger.NewNop())
	return &testAPI{handler: server.Handler(), oracle: oracle, repo: repo}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func (a *testAPI) createArt1(t *testing.T) {
	t.Helper()
	w, _ := a.do(t, http.MethodPost, "/paywalls", map[string]interface{}{
		"id": "art1", "url": "https://content.example/art1", "price": "0.01", "network": "bnb", "payoutAddress": payout,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func confirmedLookup(amount string) *models.Lookup {
	d := decimal.RequireFromString(amount)
	return &models.Lookup{State: models.TxStateConfirmed, Counterparty: strings.ToUpper(payout[:2]) + payout[2:], ObservedAmount: &d}
}

func TestCreatePaywall(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(t, http.MethodPost, "/paywalls", `{"id":"Art1","url":"https://content.example/art1","price":0.01,"network":"BNB Chain","payoutAddress":"`+payout+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "art1", body["id"])
	assert.Equal(t, "https://paywall.example/paywall/art1", body["link"])
	assert.Equal(t, "0.01", body["price"])
	assert.Equal(t, "BNB", body["currency"])
	assert.Equal(t, "bnb", body["network"])
	assert.Equal(t, payout, body["payoutAddress"])
	assert.Equal(t, "active", body["status"])

	w, body = api.do(t, http.MethodPost, "/paywalls", map[string]interface{}{
		"id": "art1", "url": "https://content.example/other", "price": "1", "network": "bnb", "payoutAddress": payout,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DuplicatePaywallId", body["code"])
	assert.Equal(t, false, body["retryable"])
}

func TestCreatePaywall_Invalid(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body interface{}
		code string
	}{
		{"malformed json", `{"url":`, "invalid_request"},
		{"missing price", map[string]interface{}{"url": "https://a.example", "network": "bnb"}, "invalid_request"},
		{"bad price", `{"url":"https://a.example","network":"bnb","price":"abc"}`, "invalid_request"},
		{"bad payout", map[string]interface{}{"url": "https://a.example", "network": "bnb", "price": "1", "payoutAddress": "0x12"}, "InvalidAddress"},
		{"bad id", map[string]interface{}{"id": "a b", "url": "https://a.example", "network": "bnb", "price": "0"}, "invalid_request"},
		{"unknown network", map[string]interface{}{"url": "https://a.example", "network": "doge", "price": "0"}, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := api.do(t, http.MethodPost, "/paywalls", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetAndListPaywalls(t *testing.T) {
	api := newTestAPI(t)
	api.createArt1(t)

	w, body := api.do(t, http.MethodGet, "/paywalls/art1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "art1", body["id"])
	assert.Equal(t, "https://content.example/art1", body["url"])
	assert.Equal(t, "BNB", body["currency"])
	assert.NotEmpty(t, body["createdAt"])

	w, body = api.do(t, http.MethodGet, "/paywalls/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", body["code"])

	w, body = api.do(t, http.MethodGet, "/paywalls?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])
	assert.Len(t, body["items"], 1)

	w, _ = api.do(t, http.MethodGet, "/paywalls?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyPayment(t *testing.T) {
	api := newTestAPI(t)
	api.createArt1(t)

	api.oracle.lookup = confirmedLookup("0.01")
	w, body := api.do(t, http.MethodPost, "/payments/verify", map[string]interface{}{
		"paywallId": "art1", "buyerAddress": buyer, "txRef": txHash, "network": "bnb",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["confirmed"])
	assert.Equal(t, "confirmed", body["state"])
	assert.Equal(t, "0.01", body["amount"])

	api.oracle.lookup = &models.Lookup{State: models.TxStatePending}
	w, body = api.do(t, http.MethodPost, "/payments/verify", map[string]interface{}{"paywallId": "art1", "txHash": txHash})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["confirmed"])

	api.oracle.lookup = &models.Lookup{State: models.TxStateNotFound}
	w, body = api.do(t, http.MethodPost, "/payments/verify", map[string]interface{}{"paywallId": "art1", "txRef": txHash})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PaymentNotFound", body["code"])

	assert.Zero(t, api.repo.PurchaseCount())
}

func TestRecordPurchase(t *testing.T) {
	api := newTestAPI(t)
	api.createArt1(t)
	api.oracle.lookup = confirmedLookup("0.02")

	req := map[string]interface{}{
		"paywallId": "art1", "buyerAddress": buyer, "txRef": txHash, "claimedAmount": "0.01", "claimedCurrency": "BNB", "network": "bnb",
	}
	w, first := api.do(t, http.MethodPost, "/purchases", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, first["granted"])
	assert.Equal(t, false, first["alreadySettled"])
	assert.Equal(t, "https://content.example/art1", first["url"])
	assert.NotEmpty(t, first["purchaseId"])

	w, second := api.do(t, http.MethodPost, "/purchases", map[string]interface{}{
		"paywallId": "art1", "buyerWalletAddress": strings.ToLower(buyer), "transactionHash": txHash,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, second["alreadySettled"])
	assert.Equal(t, first["purchaseId"], second["purchaseId"])
	assert.Equal(t, 1, api.repo.PurchaseCount())

	w, list := api.do(t, http.MethodGet, "/purchases?buyerAddress="+buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), list["count"])
	items := list["items"].([]interface{})
	item := items[0].(map[string]interface{})
	assert.Equal(t, "0.02", item["amountPaid"])
	assert.Equal(t, "art1", item["paywall"].(map[string]interface{})["id"])
}

func TestRecordPurchase_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		lookup    *models.Lookup
		oracleErr error
		body      map[string]interface{}
		status    int
		code      string
		retryable bool
	}{
		{
			name:   "not found",
			lookup: &models.Lookup{State: models.TxStateNotFound},
			status: http.StatusNotFound, code: "PaymentNotFound",
		},
		{
			name:   "pending",
			lookup: &models.Lookup{State: models.TxStatePending},
			status: http.StatusConflict, code: "PaymentPending", retryable: true,
		},
		{
			name:   "underpaid",
			lookup: confirmedLookup("0.001"),
			status: http.StatusPaymentRequired, code: "PaymentMismatch",
		},
		{
			name:      "oracle down",
			oracleErr: models.NewError(models.CodeOracleUnavailable, "chain RPC request timed out"),
			status:    http.StatusServiceUnavailable, code: "VerificationUnavailable", retryable: true,
		},
		{
			name:   "bad buyer",
			lookup: confirmedLookup("1"),
			body:   map[string]interface{}{"paywallId": "art1", "buyerAddress": "nope", "txRef": txHash},
			status: http.StatusBadRequest, code: "InvalidAddress",
		},
		{
			name:   "bad tx",
			lookup: confirmedLookup("1"),
			body:   map[string]interface{}{"paywallId": "art1", "buyerAddress": buyer, "txRef": "0xdead"},
			status: http.StatusBadRequest, code: "InvalidReference",
		},
		{
			name:   "missing paywall id",
			lookup: confirmedLookup("1"),
			body:   map[string]interface{}{"buyerAddress": buyer, "txRef": txHash},
			status: http.StatusBadRequest, code: "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.createArt1(t)
			api.oracle.lookup = tt.lookup
			api.oracle.err = tt.oracleErr

			body := tt.body
			if body == nil {
				body = map[string]interface{}{"paywallId": "art1", "buyerAddress": buyer, "txRef": txHash}
			}
			w, out := api.do(t, http.MethodPost, "/purchases", body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, out["code"])
			assert.Equal(t, tt.retryable, out["retryable"])
			assert.NotContains(t, out, "url")
			assert.Zero(t, api.repo.PurchaseCount())
		})
	}
}

func TestListPurchases_RequiresBuyer(t *testing.T) {
	api := newTestAPI(t)
	w, body := api.do(t, http.MethodGet, "/purchases", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", body["code"])

	w, body = api.do(t, http.MethodGet, "/purchases?walletAddress="+buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []interface{}{}, body["items"])
}

func TestStatusOf(t *testing.T) {
	for code, status := range map[models.ErrorCode]int{
		models.CodeInvalidRequest:          http.StatusBadRequest,
		models.CodeInvalidAddress:          http.StatusBadRequest,
		models.CodeInvalidReference:        http.StatusBadRequest,
		models.CodeDuplicatePaywallID:      http.StatusConflict,
		models.CodeNotFound:                http.StatusNotFound,
		models.CodePaymentNotFound:         http.StatusNotFound,
		models.CodePaymentPending:          http.StatusConflict,
		models.CodePaymentMismatch:         http.StatusPaymentRequired,
		models.CodeOracleUnavailable:       http.StatusServiceUnavailable,
		models.CodeVerificationUnavailable: http.StatusServiceUnavailable,
		models.CodeInternal:                http.StatusInternalServerError,
	} {
		assert.Equal(t, status, statusOf(code), code)
	}
}

type failingService struct {
	models.PaywallI
}

func (failingService) GetPaywall(context.Context, string) (*models.Paywall, error) {
	return nil, errors.New("pq: connection reset with secret dsn")
}

func (failingService) Health(context.Context) error {
	return errors.New("database is down")
}

func TestUntypedErrorsAreHidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := NewHTTPServer(failingService{}, nil, nil, 0, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/paywalls/art1", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.Contains(t, w.Body.String(), `"code":"internal"`)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "metrics are disabled without a gatherer")
}

func TestHealthCORSAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w, _ = api.do(t, http.MethodOptions, "/purchases", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	api.createArt1(t)
	_, _ = api.do(t, http.MethodPost, "/purchases", map[string]interface{}{"paywallId": "art1", "buyerAddress": buyer, "txRef": txHash})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `paywall_settlements_total{network="bnb",outcome="PaymentNotFound"} 1`)
	assert.Contains(t, out, `paywall_http_requests_total{method="POST",route="/paywalls",status="201"} 1`)
	assert.Contains(t, out, `paywall_oracle_lookups_total{network="bnb",state="not_found"} 1`)
}
