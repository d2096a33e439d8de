package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfin/papertrade/params"
	"github.com/quantfin/papertrade/pkg/auth"
	"github.com/quantfin/papertrade/pkg/broadcast"
	"github.com/quantfin/papertrade/pkg/executor"
	"github.com/quantfin/papertrade/pkg/feed"
	"github.com/quantfin/papertrade/pkg/ledger"
	"github.com/quantfin/papertrade/pkg/util"
)

const testSecret = "api-test-secret"

type testEnv struct {
	srv *httptest.Server
	bc  *broadcast.Broadcaster
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop().Sugar()

	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"), ledger.Policy{
		OpeningBalance: decimal.NewFromInt(10000),
		AllowNegative:  true,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	_, err = l.CreateAccount("demo")
	require.NoError(t, err)

	pf := feed.New(params.Feed{
		Symbols:      map[string]decimal.Decimal{"BTC/USDT": decimal.NewFromInt(50000)},
		TickInterval: 2 * time.Second,
		DriftBps:     50,
	}, logger)

	bc := broadcast.New(logger)
	t.Cleanup(bc.Close)

	exec := executor.New(l, pf, util.RealClock{}, logger)

	s := NewServer(params.Server{CORSOrigins: []string{"*"}}, pf, exec, bc, auth.NewJWTVerifier(testSecret), logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, bc: bc}
}

func mintToken(t *testing.T, accountID string) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, accountID, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestGetPrices(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/prices", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var prices []feed.SymbolPrice
	decodeBody(t, resp, &prices)
	require.Len(t, prices, 1)
	require.Equal(t, "BTC/USDT", prices[0].Symbol)
	require.True(t, prices[0].Price.Equal(decimal.NewFromInt(50000)))
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	for _, token := range []string{"", "garbage"} {
		resp := env.do(t, http.MethodGet, "/api/v1/account", token, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "token %q", token)
	}
}

func TestPlaceOrderAndDashboard(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, "demo")

	resp := env.do(t, http.MethodPost, "/api/v1/orders", token, PlaceOrderRequest{
		Symbol:   "BTC/USDT",
		Side:     "buy",
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var placed PlaceOrderResponse
	decodeBody(t, resp, &placed)
	require.Equal(t, "BTC/USDT", placed.Order.Symbol)
	require.Equal(t, ledger.SideBuy, placed.Order.Side)

	resp = env.do(t, http.MethodGet, "/api/v1/account", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dash DashboardResponse
	decodeBody(t, resp, &dash)
	require.True(t, dash.Balance.Equal(decimal.NewFromInt(9900)), "balance = %s", dash.Balance)
	require.Len(t, dash.Orders, 1)
	require.Equal(t, "BTC/USDT", dash.Orders[0].Symbol)
	require.True(t, dash.Orders[0].Price.Equal(decimal.NewFromInt(100)))
}

func TestPlaceOrderUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, "ghost")

	resp := env.do(t, http.MethodPost, "/api/v1/orders", token, PlaceOrderRequest{
		Symbol:   "BTC/USDT",
		Side:     "buy",
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	})
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/account", token, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlaceOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, "demo")

	resp := env.do(t, http.MethodPost, "/api/v1/orders", token, PlaceOrderRequest{
		Symbol:   "BTC/USDT",
		Side:     "hold",
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	decodeBody(t, resp, &errResp)
	require.Equal(t, "invalid order", errResp.Error)

	// A rejected order leaves the account untouched.
	resp = env.do(t, http.MethodGet, "/api/v1/account", token, nil)
	var dash DashboardResponse
	decodeBody(t, resp, &dash)
	require.True(t, dash.Balance.Equal(decimal.NewFromInt(10000)))
	require.Empty(t, dash.Orders)
}

func TestPlaceOrderMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, "demo")

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/v1/orders", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]string
	decodeBody(t, resp, &health)
	require.Equal(t, "ok", health["status"])
}

func TestWebSocketReceivesPriceEvents(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The handler registers the subscription just after the upgrade response,
	// so wait for it before publishing.
	require.Eventually(t, func() bool { return env.bc.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	env.bc.Publish()
	env.bc.Publish()

	for i := 0; i < 2; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var event PriceEvent
		require.NoError(t, conn.ReadJSON(&event), "message %d", i)
		require.Equal(t, "prices", event.Event)
	}
}
