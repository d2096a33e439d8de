package executor

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfin/papertrade/pkg/auth"
	"github.com/quantfin/papertrade/pkg/feed"
	"github.com/quantfin/papertrade/pkg/ledger"
	"github.com/quantfin/papertrade/pkg/util"
)

// OrderRequest is an incoming order command, pre-verification of fields.
type OrderRequest struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// ValidationError marks a malformed order field. Requests failing validation
// are rejected before the ledger is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OrderExecutor bridges an authenticated request into a ledger mutation.
type OrderExecutor struct {
	ledger *ledger.Ledger
	feed   *feed.PriceFeed
	clock  util.Clock
	logger *zap.SugaredLogger
}

func New(l *ledger.Ledger, pf *feed.PriceFeed, clock util.Clock, logger *zap.SugaredLogger) *OrderExecutor {
	return &OrderExecutor{
		ledger: l,
		feed:   pf,
		clock:  clock,
		logger: logger,
	}
}

// PlaceOrder validates the request, resolves the principal's account, and
// applies the fill. The created order is returned as persisted. An unknown
// account surfaces ledger.ErrAccountNotFound without mutating any state.
func (e *OrderExecutor) PlaceOrder(p auth.Principal, req OrderRequest) (ledger.Order, error) {
	side, err := e.validate(req)
	if err != nil {
		return ledger.Order{}, err
	}

	// Existence check up front keeps the failure path mutation-free.
	if _, err := e.ledger.GetAccount(p.ID); err != nil {
		return ledger.Order{}, err
	}

	order := ledger.Order{
		Symbol:    req.Symbol,
		Side:      side,
		Quantity:  req.Quantity,
		Price:     req.Price,
		Timestamp: e.clock.Now().UTC(),
	}

	placed, err := e.ledger.AppendOrder(p.ID, order)
	if err != nil {
		return ledger.Order{}, err
	}

	e.logger.Infow("order_placed",
		"account", p.ID,
		"symbol", placed.Symbol,
		"side", placed.Side,
		"quantity", placed.Quantity,
		"price", placed.Price)

	return placed, nil
}

// Dashboard returns the principal's balance and complete order history.
func (e *OrderExecutor) Dashboard(p auth.Principal) (*ledger.Account, error) {
	return e.ledger.GetAccount(p.ID)
}

func (e *OrderExecutor) validate(req OrderRequest) (ledger.Side, error) {
	side, err := ledger.ParseSide(req.Side)
	if err != nil {
		return "", &ValidationError{Field: "side", Reason: `must be "buy" or "sell"`}
	}
	if req.Symbol == "" {
		return "", &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if !e.feed.Has(req.Symbol) {
		return "", &ValidationError{Field: "symbol", Reason: fmt.Sprintf("unknown symbol %q", req.Symbol)}
	}
	if !req.Quantity.IsPositive() {
		return "", &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if !req.Price.IsPositive() {
		return "", &ValidationError{Field: "price", Reason: "must be positive"}
	}
	return side, nil
}
