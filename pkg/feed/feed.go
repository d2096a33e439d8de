package feed

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfin/papertrade/params"
)

// SymbolPrice is one entry of a price snapshot.
type SymbolPrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// PriceFeed owns the current price of every tradable symbol and advances all
// prices on a fixed timer. The symbol set is established at construction and
// never changes.
//
// Readers take snapshots from an atomically swapped table, so Snapshot never
// blocks Tick and Tick never blocks readers beyond the pointer swap.
type PriceFeed struct {
	order []string // fixed snapshot order
	drift float64  // max per-tick move, e.g. 0.005 for 50 bps

	table  atomic.Pointer[map[string]decimal.Decimal]
	logger *zap.SugaredLogger
}

// New builds a feed from the configured symbol set and drift bound.
func New(cfg params.Feed, logger *zap.SugaredLogger) *PriceFeed {
	pf := &PriceFeed{
		order:  cfg.SymbolOrder(),
		drift:  float64(cfg.DriftBps) / 10000,
		logger: logger,
	}

	initial := make(map[string]decimal.Decimal, len(cfg.Symbols))
	for sym, price := range cfg.Symbols {
		initial[sym] = price.Round(2)
	}
	pf.table.Store(&initial)

	return pf
}

// Snapshot returns an immutable copy of the current price table in the
// feed's stable symbol order. Safe for any number of concurrent callers.
func (pf *PriceFeed) Snapshot() []SymbolPrice {
	table := *pf.table.Load()

	out := make([]SymbolPrice, 0, len(pf.order))
	for _, sym := range pf.order {
		out = append(out, SymbolPrice{Symbol: sym, Price: table[sym]})
	}
	return out
}

// Has reports whether the feed quotes the given symbol.
func (pf *PriceFeed) Has(symbol string) bool {
	_, ok := (*pf.table.Load())[symbol]
	return ok
}

// Price returns the current price for a symbol. The second return is false
// for unknown symbols.
func (pf *PriceFeed) Price(symbol string) (decimal.Decimal, bool) {
	p, ok := (*pf.table.Load())[symbol]
	return p, ok
}

// Tick advances every symbol by a factor drawn uniformly from
// [1-drift, 1+drift], rounded to 2 decimal places, then commits the new table
// atomically. Callers must not invoke Tick concurrently; the Run loop is the
// single driver in production.
func (pf *PriceFeed) Tick() {
	old := *pf.table.Load()

	next := make(map[string]decimal.Decimal, len(old))
	for sym, price := range old {
		factor := 1 + pf.drift*(2*rand.Float64()-1)
		next[sym] = price.Mul(decimal.NewFromFloat(factor)).Round(2)
	}

	pf.table.Store(&next)
}

// Run drives Tick on a fixed interval until ctx is cancelled, invoking onTick
// after each applied tick. Ticks missed under load are dropped by the ticker,
// never queued.
func (pf *PriceFeed) Run(ctx context.Context, interval time.Duration, onTick func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pf.logger.Infow("feed_started", "symbols", len(pf.order), "interval_ms", interval.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			pf.logger.Info("feed_stopped")
			return
		case <-ticker.C:
			pf.Tick()
			if onTick != nil {
				onTick()
			}
		}
	}
}
