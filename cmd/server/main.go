package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/nanas/internal/api"
	"github.com/Fantasim/nanas/internal/api/middleware"
	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/db"
	"github.com/Fantasim/nanas/internal/logging"
	"github.com/Fantasim/nanas/internal/metadata"
	"github.com/Fantasim/nanas/internal/metrics"
	"github.com/Fantasim/nanas/internal/quality"
	"github.com/Fantasim/nanas/internal/rewards"
	"github.com/Fantasim/nanas/internal/scoring"
	"github.com/Fantasim/nanas/internal/upstream"
	"github.com/Fantasim/nanas/internal/wallet"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case "policy":
		if err := runPolicy(); err != nil {
			slog.Error("policy error", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("nanas %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: nanas <command>

Commands:
  serve     Start the HTTP server
  policy    Validate a reward policy file (creates the default when missing)
  version   Print version information
`)
}

// stores bundles the wallet and ledger-entry persistence picked at startup.
type stores struct {
	wallets   wallet.Store
	entries   rewards.EntryStore
	analytics wallet.AnalyticsSource
	close     func() error
}

func openStores(cfg *config.Config) (*stores, error) {
	if cfg.MemoryStore {
		slog.Warn("using in-memory store, balances are lost on restart")
		entries := rewards.NewMemoryEntryStore()
		return &stores{
			wallets:   wallet.NewMemoryStore(),
			entries:   entries,
			analytics: entries,
			close:     func() error { return nil },
		}, nil
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	slog.Info("database opened", "path", cfg.DBPath)

	if err := database.RunMigrations(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	return &stores{
		wallets:   database,
		entries:   database,
		analytics: database,
		close:     database.Close,
	}, nil
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting nanas",
		"version", version,
		"port", cfg.Port,
		"dbPath", cfg.DBPath,
		"memoryStore", cfg.MemoryStore,
		"demoMode", cfg.DemoMode,
		"logLevel", cfg.LogLevel,
	)

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	policy, err := scoring.LoadOrCreatePolicy(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	slog.Info("reward policy loaded", "file", cfg.PolicyFile)

	fetcher := metadata.NewHTTPFetcher(nil, cfg.OEmbedURL, cfg.StatsURL)
	breakers := map[string]*upstream.CircuitBreaker{"metadata": fetcher.Breaker()}

	// Without a grading service every analysis fails; there is no default score.
	var classifier scoring.QualityClassifier
	if cfg.QualityURL != "" {
		qc := quality.NewHTTPClassifier(nil, cfg.QualityURL)
		classifier = qc
		breakers["quality"] = qc.Breaker()
	} else {
		slog.Warn("NANAS_QUALITY_URL not set, analyses will fail")
	}

	var (
		variation scoring.VariationPolicy
		latency   wallet.Latency
	)
	if cfg.DemoMode {
		seed := uint64(time.Now().UnixNano())
		variation = scoring.NewBoundedVariation(config.DemoVariationSpread, seed)
		latency = wallet.NewJitterLatency(config.DemoLatencyMin, config.DemoLatencyMax, seed)
		slog.Info("demo mode enabled",
			"variationSpread", config.DemoVariationSpread,
			"latencyMin", config.DemoLatencyMin,
			"latencyMax", config.DemoLatencyMax,
		)
	}

	engine := scoring.NewEngine(policy, classifier, variation)

	wallets := wallet.NewManager(st.wallets, wallet.Options{
		Settings: wallet.Settings{
			KYCThreshold:   decimal.NewFromFloat(cfg.KYCThreshold),
			MinCashOut:     decimal.NewFromFloat(cfg.MinCashOut),
			KYCReviewDelay: cfg.KYCReviewDelay,
		},
		Latency:   latency,
		Analytics: st.analytics,
	})
	defer wallets.Stop()

	m := metrics.New()
	svc := rewards.NewService(fetcher, engine, st.entries, wallets, m)

	sessions, err := middleware.NewSessionStore(cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	api.Version = version
	router := api.NewRouter(&api.Dependencies{
		Rewards:  svc,
		Wallets:  wallets,
		Sessions: sessions,
		Metrics:  m,
		Config:   cfg,
		Breakers: breakers,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func runPolicy() error {
	fs := flag.NewFlagSet("policy", flag.ExitOnError)
	path := fs.String("file", "./policy.json", "Path to the reward policy JSON file")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	p, err := scoring.LoadOrCreatePolicy(*path)
	if err != nil {
		return err
	}

	fmt.Printf("policy %s is valid\n", *path)
	fmt.Printf("  tiers:      small=%.2f mid=%.2f large=%.2f\n",
		p.TierMultipliers["small"], p.TierMultipliers["mid"], p.TierMultipliers["large"])
	fmt.Printf("  categories: %d\n", len(p.CategoryMultipliers))
	fmt.Printf("  payout:     rate=%g per %g views, floor=%g\n", p.NanasRate, p.NanasViewDivisor, p.NanasFloor)
	return nil
}
