package executor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfin/papertrade/params"
	"github.com/quantfin/papertrade/pkg/auth"
	"github.com/quantfin/papertrade/pkg/feed"
	"github.com/quantfin/papertrade/pkg/ledger"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
func (c fixedClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.t.Add(d)
	return ch
}

var testTime = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func newTestExecutor(t *testing.T) (*OrderExecutor, *ledger.Ledger) {
	t.Helper()
	logger := zap.NewNop().Sugar()

	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"), ledger.Policy{
		OpeningBalance: decimal.NewFromInt(10000),
		AllowNegative:  true,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	pf := feed.New(params.Feed{
		Symbols:      map[string]decimal.Decimal{"BTC/USDT": decimal.NewFromInt(50000)},
		TickInterval: 2 * time.Second,
		DriftBps:     50,
	}, logger)

	return New(l, pf, fixedClock{t: testTime}, logger), l
}

func buyRequest() OrderRequest {
	return OrderRequest{
		Symbol:   "BTC/USDT",
		Side:     "buy",
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	}
}

func TestPlaceOrderRoundTrip(t *testing.T) {
	exec, l := newTestExecutor(t)
	l.CreateAccount("alice")
	principal := auth.Principal{ID: "alice"}

	order, err := exec.PlaceOrder(principal, buyRequest())
	require.NoError(t, err)
	require.Equal(t, "BTC/USDT", order.Symbol)
	require.Equal(t, ledger.SideBuy, order.Side)
	require.True(t, order.Quantity.Equal(decimal.NewFromInt(1)))
	require.True(t, order.Price.Equal(decimal.NewFromInt(100)))
	require.Equal(t, testTime, order.Timestamp)

	dash, err := exec.Dashboard(principal)
	require.NoError(t, err)
	require.True(t, dash.Balance.Equal(decimal.NewFromInt(9900)), "balance = %s", dash.Balance)
	require.Len(t, dash.Orders, 1)
	require.Equal(t, order, dash.Orders[0])
}

func TestPlaceOrderPreservesPlacementOrder(t *testing.T) {
	exec, l := newTestExecutor(t)
	l.CreateAccount("alice")
	principal := auth.Principal{ID: "alice"}

	first := buyRequest()
	second := buyRequest()
	second.Side = "sell"
	second.Quantity = decimal.NewFromInt(2)

	_, err := exec.PlaceOrder(principal, first)
	require.NoError(t, err)
	_, err = exec.PlaceOrder(principal, second)
	require.NoError(t, err)

	dash, err := exec.Dashboard(principal)
	require.NoError(t, err)
	require.Len(t, dash.Orders, 2)
	require.Equal(t, ledger.SideBuy, dash.Orders[0].Side)
	require.Equal(t, ledger.SideSell, dash.Orders[1].Side)
}

func TestPlaceOrderValidation(t *testing.T) {
	exec, l := newTestExecutor(t)
	l.CreateAccount("alice")
	principal := auth.Principal{ID: "alice"}

	cases := []struct {
		name   string
		mutate func(*OrderRequest)
		field  string
	}{
		{"bad side", func(r *OrderRequest) { r.Side = "hold" }, "side"},
		{"empty symbol", func(r *OrderRequest) { r.Symbol = "" }, "symbol"},
		{"unknown symbol", func(r *OrderRequest) { r.Symbol = "DOGE/USDT" }, "symbol"},
		{"zero quantity", func(r *OrderRequest) { r.Quantity = decimal.Zero }, "quantity"},
		{"negative quantity", func(r *OrderRequest) { r.Quantity = decimal.NewFromInt(-1) }, "quantity"},
		{"zero price", func(r *OrderRequest) { r.Price = decimal.Zero }, "price"},
		{"negative price", func(r *OrderRequest) { r.Price = decimal.NewFromInt(-5) }, "price"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := buyRequest()
			tc.mutate(&req)

			_, err := exec.PlaceOrder(principal, req)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, tc.field, vErr.Field)
		})
	}

	// Rejected requests never touch the ledger.
	dash, err := exec.Dashboard(principal)
	require.NoError(t, err)
	require.True(t, dash.Balance.Equal(decimal.NewFromInt(10000)))
	require.Empty(t, dash.Orders)
}

func TestPlaceOrderUnknownAccount(t *testing.T) {
	exec, l := newTestExecutor(t)
	principal := auth.Principal{ID: "ghost"}

	_, err := exec.PlaceOrder(principal, buyRequest())
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
	require.Equal(t, 0, l.Count())

	_, err = exec.Dashboard(principal)
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
