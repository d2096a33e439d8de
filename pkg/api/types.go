package api

import (
	"github.com/shopspring/decimal"

	"github.com/quantfin/papertrade/pkg/executor"
	"github.com/quantfin/papertrade/pkg/ledger"
)

// API request/response types for REST endpoints and WebSocket messages

// PlaceOrderRequest is the payload for POST /api/v1/orders.
// Wire shape matches executor.OrderRequest.
type PlaceOrderRequest = executor.OrderRequest

// PlaceOrderResponse confirms an applied order.
type PlaceOrderResponse struct {
	Message string       `json:"message"`
	Order   ledger.Order `json:"order"`
}

// DashboardResponse is the authenticated account view: current balance plus
// the full order history in placement order.
type DashboardResponse struct {
	Balance decimal.Decimal `json:"balance"`
	Orders  []ledger.Order  `json:"orders"`
}

// PriceEvent is the payload-free realtime push sent once per feed tick.
// Clients re-query GET /api/v1/prices on receipt.
type PriceEvent struct {
	Event string `json:"event"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
