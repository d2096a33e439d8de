package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide parses a wire-level side string.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBuy, SideSell:
		return Side(s), nil
	default:
		return "", fmt.Errorf("invalid side %q", s)
	}
}

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Order is one executed fill. Orders are immutable once created: they are
// appended to an account's history and never edited or removed.
type Order struct {
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Notional returns the balance effect of the fill: quantity * price.
func (o Order) Notional() decimal.Decimal {
	return o.Quantity.Mul(o.Price)
}

// Account holds one identity's balance and complete order history, in
// placement order. Accounts are mutated only through Ledger.AppendOrder.
type Account struct {
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
	Orders  []Order         `json:"orders"`
}

// NewAccount creates an account with the given opening balance and an empty
// order history.
func NewAccount(id string, opening decimal.Decimal) *Account {
	return &Account{
		ID:      id,
		Balance: opening,
		Orders:  []Order{},
	}
}

// Clone returns a deep copy. The ledger hands out clones so callers can never
// observe or cause a partial mutation.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Orders = make([]Order, len(a.Orders))
	copy(cp.Orders, a.Orders)
	return &cp
}
