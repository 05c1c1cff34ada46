// Package main wires together the business enrichment service binary.
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

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/Michaelfleck/paradane-business-bot/internal/analysis"
	"github.com/Michaelfleck/paradane-business-bot/internal/api"
	gcsblob "github.com/Michaelfleck/paradane-business-bot/internal/blob/gcs"
	memoryblob "github.com/Michaelfleck/paradane-business-bot/internal/blob/memory"
	"github.com/Michaelfleck/paradane-business-bot/internal/clock/system"
	"github.com/Michaelfleck/paradane-business-bot/internal/config"
	"github.com/Michaelfleck/paradane-business-bot/internal/dispatcher"
	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
	"github.com/Michaelfleck/paradane-business-bot/internal/hash/sha256"
	"github.com/Michaelfleck/paradane-business-bot/internal/id/uuid"
	"github.com/Michaelfleck/paradane-business-bot/internal/logging"
	"github.com/Michaelfleck/paradane-business-bot/internal/pipeline"
	memorypublisher "github.com/Michaelfleck/paradane-business-bot/internal/publisher/memory"
	pubsubpublisher "github.com/Michaelfleck/paradane-business-bot/internal/publisher/pubsub"
	queuememory "github.com/Michaelfleck/paradane-business-bot/internal/queue/memory"
	"github.com/Michaelfleck/paradane-business-bot/internal/render"
	"github.com/Michaelfleck/paradane-business-bot/internal/services/openrouter"
	"github.com/Michaelfleck/paradane-business-bot/internal/services/pagespeed"
	memorystore "github.com/Michaelfleck/paradane-business-bot/internal/store/memory"
	postgresstore "github.com/Michaelfleck/paradane-business-bot/internal/store/postgres"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.NewUUIDGenerator()
	hasher := sha256.New()

	store, closeStore, err := buildStore(ctx, cfg, clock)
	if err != nil {
		logger.Fatal("page store init failed", zap.Error(err))
	}
	defer closeStore()

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	publisher, stopPublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer stopPublisher()

	renderer, err := buildRenderer(cfg, logger)
	if err != nil {
		logger.Fatal("renderer init failed", zap.Error(err))
	}

	llm := openrouter.New(openrouter.Config{
		APIKey:      cfg.OpenRouter.APIKey,
		BaseURL:     cfg.OpenRouter.BaseURL,
		Model:       cfg.OpenRouter.Model,
		MaxAttempts: cfg.OpenRouter.MaxAttempts,
		Timeout:     cfg.OpenRouter.Timeout,
	}, nil, logger.Named("openrouter"))
	if cfg.OpenRouter.APIKey == "" {
		logger.Warn("no openrouter api key configured, summaries and classification disabled")
	}

	var auditor enrich.PerformanceAuditor
	if cfg.PageSpeed.APIKey != "" {
		auditor, err = pagespeed.New(pagespeed.Config{
			APIKey:   cfg.PageSpeed.APIKey,
			BaseURL:  cfg.PageSpeed.BaseURL,
			Strategy: cfg.PageSpeed.Strategy,
			Timeout:  cfg.PageSpeed.Timeout,
		}, nil, logger.Named("pagespeed"))
		if err != nil {
			logger.Fatal("pagespeed client init failed", zap.Error(err))
		}
	} else {
		logger.Warn("no pagespeed api key configured, performance audits disabled")
		auditor = pagespeed.NewNoop()
	}

	orchestrator, err := pipeline.New(pipeline.Deps{
		Renderer:   renderer,
		Summarizer: llm,
		Classifier: llm,
		SEO:        analysis.NewSEOAuditor(),
		Auditor:    auditor,
		Store:      store,
		Blobs:      blobs,
		Publisher:  publisher,
		Hasher:     hasher,
		Clock:      clock,
		IDs:        idGen,
	}, pipeline.Config{
		PageCap:          cfg.Enrich.PageCap,
		BusinessWindow:   cfg.Enrich.BusinessWindow,
		PageAIWindow:     cfg.Enrich.PageAIWindow,
		AuditConcurrency: cfg.Enrich.AuditConcurrency,
		SnapshotPrefix:   cfg.Storage.Prefix,
		Topic:            cfg.PubSub.TopicName,
	}, logger.Named("pipeline"))
	if err != nil {
		logger.Fatal("pipeline init failed", zap.Error(err))
	}

	queue := queuememory.NewQueue(cfg.Server.QueueDepth)
	dispatch := dispatcher.New(queue, orchestrator, cfg.Server.Workers, logger.Named("dispatcher"))

	apiServer := api.NewServer(dispatch, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Server.Workers))
		dispatch.Run(ctx)
	}()

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
	queue.Close()
	logger.Info("shutdown complete")
}

func buildStore(ctx context.Context, cfg config.Config, clock enrich.Clock) (enrich.PageStore, func(), error) {
	if cfg.DB.DSN == "" {
		return memorystore.New(clock), func() {}, nil
	}
	store, err := postgresstore.New(ctx, postgresstore.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (enrich.BlobStore, error) {
	if cfg.Storage.GCSBucket == "" {
		return memoryblob.NewBlobStore(), nil
	}
	client, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return gcsblob.New(client, gcsblob.Config{Bucket: cfg.Storage.GCSBucket})
}

func buildPublisher(ctx context.Context, cfg config.Config) (enrich.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return memorypublisher.New(), func() {}, nil
	}
	client, err := gcpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	pub, err := pubsubpublisher.New(client)
	if err != nil {
		return nil, nil, err
	}
	return pub, pub.Stop, nil
}

func buildRenderer(cfg config.Config, logger *zap.Logger) (enrich.Renderer, error) {
	var (
		backend render.Backend
		err     error
	)
	if cfg.Render.Headless {
		backend, err = render.NewChromedpBackend(render.ChromedpConfig{
			UserAgent:  cfg.Render.UserAgent,
			NavTimeout: cfg.Render.AttemptTimeout,
			PerHostQPS: cfg.Render.DomainQPS,
		}, logger.Named("chromedp"))
	} else {
		backend, err = render.NewCollyBackend(render.CollyConfig{
			UserAgent:      cfg.Render.UserAgent,
			RequestTimeout: cfg.Render.AttemptTimeout,
			Parallelism:    cfg.Render.Concurrency,
		}, logger.Named("colly"))
	}
	if err != nil {
		return nil, err
	}
	return render.NewPool(backend, render.PoolConfig{
		Concurrency:    cfg.Render.Concurrency,
		Attempts:       cfg.Render.MaxAttempts,
		AttemptTimeout: cfg.Render.AttemptTimeout,
	}, logger.Named("render"))
}
