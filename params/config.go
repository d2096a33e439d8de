package params

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Server holds the HTTP/WebSocket surface settings.
type Server struct {
	ListenAddr  string
	CORSOrigins []string
}

// Feed configures the simulated price feed.
type Feed struct {
	// Symbols maps symbol -> initial price. The symbol set is fixed for the
	// lifetime of the process.
	Symbols map[string]decimal.Decimal

	// TickInterval is the period of the price advance loop.
	// A tick that falls behind wall clock is dropped, never queued.
	TickInterval time.Duration

	// DriftBps bounds the per-tick move: each tick multiplies a price by a
	// factor drawn uniformly from [1 - DriftBps/10000, 1 + DriftBps/10000].
	DriftBps int64
}

// Ledger configures account state and fill policy.
type Ledger struct {
	DBPath         string
	OpeningBalance decimal.Decimal

	// SellCreditsProceeds controls the sign-by-side rule: when true, sell
	// fills add quantity*price to the balance; when false (default) every
	// fill subtracts, matching the original backend behavior.
	SellCreditsProceeds bool

	// AllowNegative skips the balance-sufficiency check on fills.
	// Default true: balances may go negative.
	AllowNegative bool

	// SeedAccounts are created (with the opening balance) at startup if they
	// do not already exist. Account creation is otherwise external.
	SeedAccounts []string
}

// Auth configures bearer-token verification.
type Auth struct {
	// Secret is the HMAC key for HS256 token verification.
	Secret string
}

type Config struct {
	Server Server
	Feed   Feed
	Ledger Ledger
	Auth   Auth
}

func Default() Config {
	return Config{
		Server: Server{
			ListenAddr:  ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Feed: Feed{
			Symbols: map[string]decimal.Decimal{
				"BTC/USDT": decimal.NewFromInt(50000),
				"ETH/USDT": decimal.NewFromInt(2600),
				"SOL/USDT": decimal.NewFromInt(140),
			},
			TickInterval: 2 * time.Second,
			DriftBps:     50,
		},
		Ledger: Ledger{
			DBPath:              "data/ledger.db",
			OpeningBalance:      decimal.NewFromInt(10000),
			SellCreditsProceeds: false,
			AllowNegative:       true,
			SeedAccounts:        []string{"demo"},
		},
		Auth: Auth{
			Secret: "dev-secret-change-me",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = splitList(origins)
	}

	// Example: FEED_SYMBOLS="BTC/USDT=50000,ETH/USDT=2600"
	if syms := os.Getenv("FEED_SYMBOLS"); syms != "" {
		parsed := make(map[string]decimal.Decimal)
		for _, entry := range splitList(syms) {
			sym, price, ok := strings.Cut(entry, "=")
			if !ok {
				continue
			}
			p, err := decimal.NewFromString(strings.TrimSpace(price))
			if err != nil {
				continue
			}
			parsed[strings.TrimSpace(sym)] = p
		}
		if len(parsed) > 0 {
			cfg.Feed.Symbols = parsed
		}
	}
	if tick := os.Getenv("FEED_TICK_MS"); tick != "" {
		if ms, err := strconv.Atoi(tick); err == nil && ms > 0 {
			cfg.Feed.TickInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if drift := os.Getenv("FEED_DRIFT_BPS"); drift != "" {
		if bps, err := strconv.ParseInt(drift, 10, 64); err == nil && bps > 0 {
			cfg.Feed.DriftBps = bps
		}
	}

	if db := os.Getenv("DB_PATH"); db != "" {
		cfg.Ledger.DBPath = db
	}
	if bal := os.Getenv("LEDGER_OPENING_BALANCE"); bal != "" {
		if d, err := decimal.NewFromString(bal); err == nil {
			cfg.Ledger.OpeningBalance = d
		}
	}
	if v := os.Getenv("LEDGER_SELL_CREDITS_PROCEEDS"); v != "" {
		cfg.Ledger.SellCreditsProceeds = v == "true"
	}
	if v := os.Getenv("LEDGER_ALLOW_NEGATIVE"); v != "" {
		cfg.Ledger.AllowNegative = v == "true"
	}
	if seeds := os.Getenv("SEED_ACCOUNTS"); seeds != "" {
		cfg.Ledger.SeedAccounts = splitList(seeds)
	}

	if secret := os.Getenv("AUTH_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}

	return cfg
}

// SymbolOrder returns the configured symbols sorted lexicographically.
// This is the stable order used by feed snapshots and the prices endpoint.
func (f Feed) SymbolOrder() []string {
	order := make([]string, 0, len(f.Symbols))
	for sym := range f.Symbols {
		order = append(order, sym)
	}
	sort.Strings(order)
	return order
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
