package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Fantasim/tokenidx/internal/api"
	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/events"
	"github.com/Fantasim/tokenidx/internal/health"
	"github.com/Fantasim/tokenidx/internal/indexer"
	"github.com/Fantasim/tokenidx/internal/logging"
	"github.com/Fantasim/tokenidx/internal/metrics"
	"github.com/Fantasim/tokenidx/internal/portfolio"
	"github.com/Fantasim/tokenidx/internal/resolver"
	"github.com/Fantasim/tokenidx/internal/session"
	"github.com/Fantasim/tokenidx/internal/tui"
	"github.com/Fantasim/tokenidx/internal/wallet"
	"github.com/Fantasim/tokenidx/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe()
	case "tui":
		err = runTUI()
	case "lookup":
		err = runLookup(os.Args[2:])
	case "version":
		fmt.Printf("tokenidx %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		slog.Error(os.Args[1]+" error", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: tokenidx <command>

Commands:
  serve              Start the HTTP server with the web UI
  tui                Start the terminal UI
  lookup <address>   Look up ERC-20 balances for an address or ENS name and print JSON
  version            Print version information
`)
}

// app is the shared core every front-end drives.
type app struct {
	cfg       *config.Config
	metrics   *metrics.Metrics
	indexer   *indexer.Client
	ens       *ethclient.Client
	portfolio *portfolio.Service
	session   *session.Session
	wallet    *wallet.Connector
	logCloser io.Closer
}

func setup(console bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:   cfg.LogLevel,
		Dir:     cfg.LogDir,
		Console: console,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	slog.Info("starting tokenidx",
		"version", version,
		"network", cfg.Network,
		"logLevel", cfg.LogLevel,
		"metadataConcurrency", cfg.MetadataConcurrency,
		"rateLimitRPS", cfg.RateLimitRPS,
		"walletConfigured", cfg.WalletRPCURL != "",
	)

	m := metrics.New()
	idx := indexer.New(indexer.OptionsFromConfig(cfg, m))

	ens, err := ethclient.Dial(cfg.NameServiceEndpoint())
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("failed to dial name service: %w", err)
	}

	// ENS calls on the Alchemy endpoint share the indexer's request budget.
	var caller resolver.ContractCaller = ens
	if cfg.EthRPCURL == "" {
		caller = idx.GuardCaller(ens)
	}

	svc, err := portfolio.New(resolver.New(caller, m), idx, idx, cfg.MetadataConcurrency, m)
	if err != nil {
		ens.Close()
		logCloser.Close()
		return nil, fmt.Errorf("failed to create portfolio service: %w", err)
	}

	return &app{
		cfg:       cfg,
		metrics:   m,
		indexer:   idx,
		ens:       ens,
		portfolio: svc,
		session:   session.New(svc),
		wallet:    wallet.New(cfg.WalletRPCURL, m),
		logCloser: logCloser,
	}, nil
}

func (a *app) Close() {
	a.wallet.Close()
	a.portfolio.Close()
	a.ens.Close()
	a.logCloser.Close()
}

func (a *app) startupChecks() []health.Check {
	checks := []health.Check{
		health.IndexerCheck(a.indexer),
		health.NameServiceCheck(a.ens),
	}
	if a.wallet.Configured() {
		checks = append(checks, health.WalletCheck(a.wallet))
	}
	return checks
}

func runServe() error {
	a, err := setup(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub()
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	unpublish := api.PublishSession(a.session, hub)
	defer unpublish()

	// Non-blocking; failing providers only log warnings.
	go health.RunStartupChecks(hubCtx, a.startupChecks())

	if a.wallet.Configured() {
		go api.FollowWallet(hubCtx, a.wallet, a.session, hub)
	}

	staticFS, err := fs.Sub(web.StaticFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to access embedded static files: %w", err)
	}

	router := api.NewRouter(api.Deps{
		Config:   a.cfg,
		Version:  version,
		Session:  a.session,
		Hub:      hub,
		Wallet:   a.wallet,
		Metrics:  a.metrics,
		Breaker:  a.indexer.Breaker,
		StaticFS: staticFS,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    config.ServerReadTimeout,
		WriteTimeout:   config.ServerWriteTimeout,
		IdleTimeout:    config.ServerIdleTimeout,
		MaxHeaderBytes: config.ServerMaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("initiating graceful shutdown", "timeout", config.ShutdownTimeout)

	// Closes SSE and websocket clients so Shutdown does not wait on them.
	hubCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func runTUI() error {
	// The terminal belongs to bubbletea; logs go to the file only.
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	return tui.Start(ctx, a.session, a.wallet, a.wallet, version)
}

func runLookup(args []string) error {
	fset := flag.NewFlagSet("lookup", flag.ExitOnError)
	compact := fset.Bool("compact", false, "Print JSON on a single line")
	fset.Parse(args)

	if fset.NArg() != 1 {
		return fmt.Errorf("lookup takes exactly one address or ENS name")
	}

	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, config.QueryTimeout)
	defer cancel()

	result, err := a.portfolio.Lookup(ctx, fset.Arg(0))
	if err != nil {
		return errors.New(session.Message(err))
	}

	enc := json.NewEncoder(os.Stdout)
	if !*compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}
