package ledger

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Policy is the explicit fill policy applied by AppendOrder.
type Policy struct {
	// OpeningBalance is credited to every account at creation.
	OpeningBalance decimal.Decimal

	// SellCreditsProceeds makes sell fills add quantity*price to the balance.
	// Off by default: the original backend subtracts regardless of side.
	SellCreditsProceeds bool

	// AllowNegative skips the balance-sufficiency check. On by default.
	AllowNegative bool
}

// Ledger is the single source of truth for balances and order history.
//
// Mutation is serialized per account: concurrent AppendOrder calls against
// the same id take that account's mutex, so the read-modify-write of the
// balance can never lose an update. Calls against different ids proceed in
// parallel. The registry mutex is held only for map lookups, never across a
// store write.
type Ledger struct {
	policy Policy
	store  *Store
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	accounts map[string]*Account
	locks    map[string]*sync.Mutex
}

// Open opens the backing store at dbPath and warms the cache with every
// persisted account.
func Open(dbPath string, policy Policy, logger *zap.SugaredLogger) (*Ledger, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %w", err)
	}

	l := &Ledger{
		policy:   policy,
		store:    store,
		logger:   logger,
		accounts: make(map[string]*Account),
		locks:    make(map[string]*sync.Mutex),
	}

	persisted, err := store.LoadAllAccounts()
	if err != nil {
		store.Close()
		return nil, err
	}
	for _, acc := range persisted {
		l.accounts[acc.ID] = acc
	}
	logger.Infow("ledger_opened", "accounts", len(persisted))

	return l, nil
}

// Close closes the backing store.
func (l *Ledger) Close() error {
	return l.store.Close()
}

// CreateAccount registers a new account with the opening balance.
func (l *Ledger) CreateAccount(id string) (*Account, error) {
	if id == "" {
		return nil, fmt.Errorf("account id must not be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, id)
	}

	acc := NewAccount(id, l.policy.OpeningBalance)
	if err := l.store.SaveAccount(acc); err != nil {
		return nil, err
	}
	l.accounts[id] = acc

	l.logger.Infow("account_created", "id", id, "balance", acc.Balance)
	return acc.Clone(), nil
}

// GetAccount returns a deep copy of the account, or ErrAccountNotFound.
func (l *Ledger) GetAccount(id string) (*Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return acc.Clone(), nil
}

// AppendOrder applies a fill to the account: adjusts the balance by the
// order's notional (sign decided by the policy's side rule), appends the
// order to the history, and persists the updated record as one atomic unit.
// Returns the stored order.
//
// The account's mutex is held for the whole read-modify-write, so the final
// balance always equals the starting balance plus the sum of every applied
// fill, regardless of interleaving. Once started, an append runs to
// completion; shutdown never interrupts it.
func (l *Ledger) AppendOrder(id string, order Order) (Order, error) {
	lock, err := l.lockFor(id)
	if err != nil {
		return Order{}, err
	}

	lock.Lock()
	defer lock.Unlock()

	l.mu.RLock()
	acc, ok := l.accounts[id]
	l.mu.RUnlock()
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}

	delta := order.Notional().Neg()
	if order.Side == SideSell && l.policy.SellCreditsProceeds {
		delta = order.Notional()
	}

	newBalance := acc.Balance.Add(delta)
	if !l.policy.AllowNegative && newBalance.IsNegative() {
		return Order{}, fmt.Errorf("%w: balance %s, fill %s", ErrInsufficientBalance, acc.Balance, order.Notional())
	}

	// Copy-on-write: readers holding clones of the old record are unaffected,
	// and a failed persist leaves the cache untouched.
	updated := acc.Clone()
	updated.Balance = newBalance
	updated.Orders = append(updated.Orders, order)

	if err := l.store.SaveAccount(updated); err != nil {
		return Order{}, err
	}

	l.mu.Lock()
	l.accounts[id] = updated
	l.mu.Unlock()

	l.logger.Infow("order_applied",
		"account", id,
		"symbol", order.Symbol,
		"side", order.Side,
		"notional", order.Notional(),
		"balance", newBalance)

	return order, nil
}

// ListAccounts returns deep copies of every account.
func (l *Ledger) ListAccounts() []*Account {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Account, 0, len(l.accounts))
	for _, acc := range l.accounts {
		out = append(out, acc.Clone())
	}
	return out
}

// Count returns the number of registered accounts.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.accounts)
}

// lockFor returns the account's mutex, creating it lazily. Fails fast when
// the account does not exist so callers never lock a phantom id.
func (l *Ledger) lockFor(id string) (*sync.Mutex, error) {
	l.mu.RLock()
	_, exists := l.accounts[id]
	lock, ok := l.locks[id]
	l.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if ok {
		return lock, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lock, ok = l.locks[id]; ok {
		return lock, nil
	}
	lock = &sync.Mutex{}
	l.locks[id] = lock
	return lock, nil
}
