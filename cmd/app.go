package cmd

import (
	"context"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/regwatch-id/bpk-crawler/internal/clock/system"
	"github.com/regwatch-id/bpk-crawler/internal/config"
	collyfetcher "github.com/regwatch-id/bpk-crawler/internal/fetcher/colly"
	sha256hash "github.com/regwatch-id/bpk-crawler/internal/hash/sha256"
	uuidgen "github.com/regwatch-id/bpk-crawler/internal/id/uuid"
	"github.com/regwatch-id/bpk-crawler/internal/logging"
	"github.com/regwatch-id/bpk-crawler/internal/orchestrator"
	"github.com/regwatch-id/bpk-crawler/internal/pdftext"
	"github.com/regwatch-id/bpk-crawler/internal/processor"
	pubsubpublisher "github.com/regwatch-id/bpk-crawler/internal/publisher/pubsub"
	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
	gcsstore "github.com/regwatch-id/bpk-crawler/internal/storage/gcs"
	"github.com/regwatch-id/bpk-crawler/internal/storage/memory"
	"github.com/regwatch-id/bpk-crawler/internal/storage/postgres"
)

// app bundles the wired service dependencies for the CLI commands.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	jobs    regwatch.JobStore
	regs    regwatch.RegulationStore
	orch    *orchestrator.Orchestrator
	idGen   regwatch.IDGenerator
	clock   regwatch.Clock
	closers []func()
}

// buildApp wires the full dependency graph from configuration. Backends
// degrade to in-memory implementations when Postgres, GCS, or Pub/Sub are
// not configured, which keeps local runs dependency-free.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		idGen:  uuidgen.NewGenerator(),
		clock:  system.New(),
	}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	var (
		jobs  regwatch.JobStore
		regs  regwatch.RegulationStore
		blobs regwatch.BlobStore
		pub   regwatch.Publisher
	)

	if cfg.DB.DSN != "" {
		poolCfg := postgres.PoolConfig{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetimeMin) * time.Minute,
		}
		pgJobs, err := postgres.NewJobStore(ctx, poolCfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init job store: %w", err)
		}
		a.closers = append(a.closers, pgJobs.Close)
		pgRegs, err := postgres.NewRegulationStore(ctx, poolCfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init regulation store: %w", err)
		}
		a.closers = append(a.closers, pgRegs.Close)
		jobs, regs = pgJobs, pgRegs
	} else {
		logger.Warn("db.dsn not set; using in-memory stores")
		jobs = memory.NewJobStore()
		regs = memory.NewRegulationStore()
	}

	if cfg.Storage.Backend == "gcs" {
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		blobs, err = gcsstore.New(client, gcsstore.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		blobs = memory.NewBlobStore()
	}

	if cfg.PubSub.Enabled {
		client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		p := pubsubpublisher.New(client)
		a.closers = append(a.closers, p.Stop)
		pub = p
	}

	retry := regwatch.NewRetryPolicy(
		cfg.HTTP.MaxRetries,
		time.Duration(cfg.HTTP.BackoffInitialMs)*time.Millisecond,
		time.Duration(cfg.HTTP.BackoffMaxMs)*time.Millisecond,
	)

	fetcher := collyfetcher.New(collyfetcher.Config{
		BaseURL:       cfg.Crawler.BaseURL,
		UserAgent:     cfg.Crawler.UserAgent,
		Timeout:       time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		PDFTimeout:    time.Duration(cfg.HTTP.PDFTimeoutSeconds) * time.Second,
		Delay:         time.Duration(cfg.Crawler.DelayMs) * time.Millisecond,
		RespectRobots: cfg.Crawler.RespectRobots,
	}, logger.Named("fetcher"))

	proc := processor.New(
		fetcher,
		pdftext.New(),
		regs,
		blobs,
		sha256hash.New(),
		retry,
		processor.Config{BlobPrefix: cfg.Storage.Prefix},
		logger.Named("processor"),
	)

	a.jobs = jobs
	a.regs = regs
	a.orch = orchestrator.New(
		ctx,
		fetcher,
		proc,
		regs,
		jobs,
		regs,
		pub,
		a.clock,
		retry,
		orchestrator.Config{
			Concurrency: cfg.Crawler.Concurrency,
			Topic:       cfg.PubSub.TopicName,
		},
		logger.Named("orchestrator"),
	)
	return a, nil
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
