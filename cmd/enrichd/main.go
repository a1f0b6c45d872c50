// Package main wires together the enrichment service binary.
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
	"time"

	"go.uber.org/zap"

	"github.com/beesyst/zen-crm-bot/internal/api"
	"github.com/beesyst/zen-crm-bot/internal/archive"
	"github.com/beesyst/zen-crm-bot/internal/browser"
	"github.com/beesyst/zen-crm-bot/internal/config"
	"github.com/beesyst/zen-crm-bot/internal/engine"
	"github.com/beesyst/zen-crm-bot/internal/extract"
	"github.com/beesyst/zen-crm-bot/internal/fetcher/static"
	"github.com/beesyst/zen-crm-bot/internal/logging"
	"github.com/beesyst/zen-crm-bot/internal/metrics"
	"github.com/beesyst/zen-crm-bot/internal/policy/ratelimit"
	"github.com/beesyst/zen-crm-bot/internal/policy/retry"
	"github.com/beesyst/zen-crm-bot/internal/publish"
	"github.com/beesyst/zen-crm-bot/internal/resolver"
	"github.com/beesyst/zen-crm-bot/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions, err := browser.New(browser.Config{
		MaxParallel:       cfg.Browser.MaxParallel,
		NavigationTimeout: time.Duration(cfg.Browser.NavTimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("browser factory init failed", zap.Error(err))
	}
	defer sessions.Close()

	policy := retry.Policy{
		MaxAttempts: cfg.Fetch.Retries + 1,
		BaseDelay:   time.Duration(cfg.Fetch.BackoffInitialMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Fetch.BackoffMaxMs) * time.Millisecond,
	}

	staticFetcher := static.New(static.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})

	// Shared link pipeline: short links resolve through a plain HTTP
	// redirect chase, bounded so a dead shortener cannot stall a fetch.
	links := &extract.Extractor{
		Expand: func(raw string) (string, bool) {
			expandCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return staticFetcher.FinalURL(expandCtx, raw)
		},
	}

	eng := engine.New(engine.Options{
		Sessions:  sessions,
		Extractor: links,
		Retry:     policy,
		Logger:    logger.Named("engine"),
	})

	mirrors := resolver.NewPool(resolver.PoolConfig{
		Instances:     cfg.Mirrors.Instances,
		Strategy:      resolver.Strategy(cfg.Mirrors.Strategy),
		Cooldown:      cfg.MirrorCooldown(),
		MaxPerRequest: cfg.Mirrors.MaxPerRequest,
	})

	profiles := resolver.New(resolver.Config{
		Pages:   eng,
		Static:  staticFetcher,
		Mirrors: mirrors,
		Cleaner: links,
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Mirrors.RPS,
			DefaultBurst: cfg.Mirrors.Burst,
		}),
		Retry:   policy,
		Logger:  logger.Named("resolver"),
		Timeout: cfg.ResolverTimeout(),
	})

	deps := api.Deps{
		Enricher: eng,
		Resolver: profiles,
	}

	if cfg.DB.DSN != "" {
		store, err := postgres.NewStore(ctx, postgres.StoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
			MinConns: int32(cfg.DB.MaxIdleConns),
		})
		if err != nil {
			logger.Fatal("postgres store init failed", zap.Error(err))
		}
		defer store.Close()
		deps.Store = store
	}

	if cfg.Storage.GCSBucket != "" {
		blobStore, err := archive.NewGCSStore(ctx, cfg.Storage.GCSBucket)
		if err != nil {
			logger.Fatal("gcs store init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := blobStore.Close(); closeErr != nil {
				logger.Warn("gcs store close failed", zap.Error(closeErr))
			}
		}()
		snapshots, err := archive.New(blobStore, archive.Config{
			Prefix:      cfg.Storage.Prefix,
			ContentType: cfg.Storage.ContentType,
		}, logger.Named("archive"))
		if err != nil {
			logger.Fatal("archiver init failed", zap.Error(err))
		}
		deps.Archiver = snapshots
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		publisher, err := publish.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			logger.Fatal("pubsub publisher init failed", zap.Error(err))
		}
		deps.Publisher = publisher
	}

	apiServer := api.NewServer(deps, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
