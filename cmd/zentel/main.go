// Command zentel runs the memo analysis service: content fetchers, the
// language-model pipeline, the job scheduler, and the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/analysis"
	"github.com/onebitebitcoin/zentel/internal/api"
	"github.com/onebitebitcoin/zentel/internal/config"
	"github.com/onebitebitcoin/zentel/internal/fetch"
	"github.com/onebitebitcoin/zentel/internal/fetch/browser"
	"github.com/onebitebitcoin/zentel/internal/fetch/bypass"
	"github.com/onebitebitcoin/zentel/internal/fetch/generic"
	"github.com/onebitebitcoin/zentel/internal/fetch/rawfile"
	"github.com/onebitebitcoin/zentel/internal/fetch/social"
	"github.com/onebitebitcoin/zentel/internal/fetch/video"
	"github.com/onebitebitcoin/zentel/internal/llm"
	"github.com/onebitebitcoin/zentel/internal/logging"
	"github.com/onebitebitcoin/zentel/internal/memo"
	"github.com/onebitebitcoin/zentel/internal/metrics"
	"github.com/onebitebitcoin/zentel/internal/progress"
	"github.com/onebitebitcoin/zentel/internal/storage/memory"
	"github.com/onebitebitcoin/zentel/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	store, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	hub := progress.NewHub(progress.Config{
		SubscriberBuffer: cfg.Progress.SubscriberBuffer,
		Logger:           logger,
	})
	defer hub.Close()

	router, browserMgr, err := buildFetchers(cfg, logger)
	if err != nil {
		return err
	}
	if browserMgr != nil {
		defer browserMgr.Close()
	}

	model := llm.NewOrchestrator(llm.NewClient(llm.ClientConfig{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		MaxRetries: cfg.LLM.MaxRetries,
		Metrics:    m,
		Logger:     logger,
	}), logger)

	svc := analysis.NewService(analysis.Config{
		Store:          store,
		Router:         router,
		Model:          model,
		Hub:            hub,
		Clock:          memo.SystemClock{},
		Metrics:        m,
		NativeLanguage: cfg.Fetch.NativeLanguage,
		MaxAttempts:    cfg.Analysis.MaxAttempts,
		Logger:         logger,
	})
	scheduler := analysis.NewScheduler(svc, analysis.SchedulerConfig{
		Workers:    cfg.Analysis.Workers,
		QueueDepth: cfg.Analysis.QueueDepth,
		Metrics:    m,
		Logger:     logger,
	})
	defer scheduler.Stop()

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewServer(api.Config{
			Scheduler:      scheduler,
			Hub:            hub,
			Metrics:        m,
			Registry:       registry,
			RequestTimeout: cfg.Server.RequestTimeout,
			Logger:         logger,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// buildStore connects Postgres when a URL is configured and falls back to
// the in-memory store otherwise.
func buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (memo.Store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("no database configured, using in-memory store")
		return memory.NewMemoStore(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return postgres.NewMemoStore(pool), pool.Close, nil
}

// buildFetchers wires the fetcher router and, when enabled, the shared
// browser with its bypass.
func buildFetchers(cfg *config.Config, logger *zap.Logger) (fetch.Router, *browser.Manager, error) {
	var (
		mgr *browser.Manager
		byp *bypass.Bypass
		err error
	)
	if cfg.Fetch.BrowserEnabled {
		mgr, err = browser.NewManager(browser.Config{
			MaxParallel:       cfg.Fetch.BrowserMaxParallel,
			UserAgent:         cfg.Fetch.UserAgent,
			Locale:            cfg.Fetch.Locale,
			Timezone:          cfg.Fetch.Timezone,
			CookieFile:        cfg.Fetch.CookieFile,
			NavigationTimeout: cfg.Fetch.NavigationTimeout,
			Logger:            logger,
		})
		if err != nil {
			return fetch.Router{}, nil, fmt.Errorf("build browser manager: %w", err)
		}
		byp = bypass.New(mgr, logger)
	}

	router := fetch.Router{
		Social: social.New(social.Config{
			Browser:  mgr,
			Username: cfg.Fetch.SocialUsername,
			Password: cfg.Fetch.SocialPassword,
			Logger:   logger,
		}),
		Video: video.New(video.Config{
			NativeLanguage: cfg.Fetch.NativeLanguage,
			Logger:         logger,
		}),
		RawFile: rawfile.New(rawfile.Config{Logger: logger}),
		Generic: generic.New(generic.Config{
			UserAgent: cfg.Fetch.UserAgent,
			Browser:   mgr,
			Bypass:    byp,
			Logger:    logger,
		}),
	}
	return router, mgr, nil
}
