package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quantfin/papertrade/params"
	"github.com/quantfin/papertrade/pkg/api"
	"github.com/quantfin/papertrade/pkg/auth"
	"github.com/quantfin/papertrade/pkg/broadcast"
	"github.com/quantfin/papertrade/pkg/executor"
	"github.com/quantfin/papertrade/pkg/feed"
	"github.com/quantfin/papertrade/pkg/ledger"
	"github.com/quantfin/papertrade/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	// Setup logging (optionally tee to a file via LOG_FILE)
	zlog, err := buildLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()
	sugar := zlog.Sugar()

	// ---- Account ledger (pebble-backed) ----
	ldg, err := ledger.Open(cfg.Ledger.DBPath, ledger.Policy{
		OpeningBalance:      cfg.Ledger.OpeningBalance,
		SellCreditsProceeds: cfg.Ledger.SellCreditsProceeds,
		AllowNegative:       cfg.Ledger.AllowNegative,
	}, sugar)
	if err != nil {
		sugar.Fatalw("ledger_open_failed", "err", err)
	}
	defer ldg.Close()

	for _, id := range cfg.Ledger.SeedAccounts {
		if _, err := ldg.CreateAccount(id); err != nil && !errors.Is(err, ledger.ErrAccountExists) {
			sugar.Fatalw("seed_account_failed", "id", id, "err", err)
		}
	}
	sugar.Infow("accounts_ready", "count", ldg.Count())

	// ---- Core components ----
	if len(cfg.Feed.Symbols) == 0 {
		sugar.Fatal("no feed symbols configured")
	}
	pf := feed.New(cfg.Feed, sugar)
	bc := broadcast.New(sugar)
	exec := executor.New(ldg, pf, util.RealClock{}, sugar)
	verifier := auth.NewJWTVerifier(cfg.Auth.Secret)

	// ---- API Server ----
	apiServer := api.NewServer(cfg.Server, pf, exec, bc, verifier, sugar)
	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Price feed loop: every tick fans out a payload-free notification.
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		pf.Run(ctx, cfg.Feed.TickInterval, bc.Publish)
	}()

	go func() {
		sugar.Infow("server_starting", "addr", cfg.Server.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server_failed", "err", err)
		}
	}()

	<-ctx.Done()

	// Shutdown order: tick loop first, then subscribers, then HTTP drain.
	// In-flight order applications run to completion inside the handlers.
	<-feedDone
	bc.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("shutdown_timeout", "err", err)
	}

	sugar.Info("server_stopped")
}

func buildLogger() (*zap.Logger, error) {
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		return util.NewLoggerWithFile(logFile)
	}
	return util.NewLogger()
}
