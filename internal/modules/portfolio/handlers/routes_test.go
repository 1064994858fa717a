package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aristath/exposure/internal/modules/options"
	"github.com/aristath/exposure/internal/modules/portfolio"
	"github.com/aristath/exposure/internal/modules/simulator"
)

var testNow = time.Date(2025, 3, 17, 14, 30, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*Handler, chi.Router) {
	t.Helper()
	now := func() time.Time { return testNow }
	calc, err := options.NewCalculator(options.Config{RiskFreeRate: options.DefaultRiskFreeRate, Now: now})
	require.NoError(t, err)

	svc := portfolio.NewService(calc, nil, nil, nil, nil, portfolio.Config{
		RiskFreeRate: options.DefaultRiskFreeRate,
		Now:          now,
	}, zerolog.Nop())
	store := portfolio.NewStore(svc, zerolog.Nop())
	sim := simulator.NewSimulator(svc, simulator.NewWorkerPool(2), nil, zerolog.Nop())

	handler := NewHandler(store, sim, zerolog.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return handler, router
}

func brokerRow(symbol, description, quantity, price, value string) map[string]string {
	return map[string]string{
		"Symbol":             symbol,
		"Description":        description,
		"Quantity":           quantity,
		"Last Price":         price,
		"Current Value":      value,
		"Type":               "Margin",
		"Percent Of Account": "1.00%",
	}
}

func loadBody(t *testing.T, rows ...map[string]string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(LoadRequest{Rows: rows})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func load(t *testing.T, router chi.Router) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/portfolio/", loadBody(t,
		brokerRow("AAPL", "APPLE INC", "100", "$150.00", "$15,000.00"),
		brokerRow(" -AAPL250417C160", "AAPL APR 17 2025 $160 CALL", "1", "$5.00", "$500.00"),
	))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRegisterRoutes(t *testing.T) {
	_, router := newTestHandler(t)

	testCases := []struct {
		method string
		path   string
		name   string
	}{
		{"POST", "/portfolio/", "Load"},
		{"GET", "/portfolio/summary", "GetSummary"},
		{"GET", "/portfolio/groups", "GetGroups"},
		{"POST", "/portfolio/refresh", "Refresh"},
		{"POST", "/portfolio/simulate", "Simulate"},
		{"GET", "/portfolio/stream", "Stream"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}"))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code == http.StatusNotFound {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "route %s %s not registered", tc.method, tc.path)
				assert.Contains(t, body["error"], "no portfolio loaded")
			}
			assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestHandleLoad(t *testing.T) {
	_, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/portfolio/", loadBody(t,
		brokerRow("AAPL", "APPLE INC", "100", "$150.00", "$15,000.00"),
		brokerRow(" -AAPL250417C160", "AAPL APR 17 2025 $160 CALL", "1", "$5.00", "$500.00"),
		brokerRow("SPAXX**", "HELD IN MONEY MARKET", "250", "$1.00", "$250.00"),
	))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, 250.0, summary["cash_like_value"])
	assert.InDelta(t, 15750.0, summary["portfolio_estimate_value"].(float64), 1e-9)
	assert.Len(t, body["groups"], 1)
}

func TestHandleLoad_Errors(t *testing.T) {
	_, router := newTestHandler(t)

	t.Run("bad json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/portfolio/", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing columns", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/portfolio/", loadBody(t, map[string]string{"Symbol": "AAPL"}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "Description")
	})
}

func TestHandleGetSummaryAndGroups(t *testing.T) {
	_, router := newTestHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portfolio/summary", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	load(t, router)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portfolio/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.NotContains(t, summary, "reconcile_error")
	assert.Contains(t, summary, "long_exposure")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portfolio/groups", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var groups map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	assert.Len(t, groups["groups"], 1)
	assert.Equal(t, "2025-03-17T14:30:00Z", groups["loaded_at"])
}

func TestHandleRefresh(t *testing.T) {
	_, router := newTestHandler(t)
	load(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/portfolio/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	prices := body["prices"].([]interface{})
	require.Len(t, prices, 1)
	assert.Equal(t, "defaulted", prices[0].(map[string]interface{})["state"])
}

func TestHandleSimulate(t *testing.T) {
	_, router := newTestHandler(t)
	load(t, router)

	req := httptest.NewRequest(http.MethodPost, "/portfolio/simulate", strings.NewReader(`{"changes":[-0.1,0,0.1]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result simulator.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []float64{-0.1, 0, 0.1}, result.Changes)
	require.Len(t, result.PortfolioValues, 3)
	assert.InDelta(t, result.Baseline.PortfolioValue, result.PortfolioValues[1], 1e-6)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/portfolio/simulate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Changes, len(simulator.DefaultChanges()))
}

func TestHandleStream(t *testing.T) {
	_, router := newTestHandler(t)
	load(t, router)

	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/portfolio/stream", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.InDelta(t, 15500.0, summary["portfolio_estimate_value"].(float64), 1e-9)

	resp, err := http.Post(srv.URL+"/portfolio/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Contains(t, summary, "net_market_exposure")
}
