package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/conversation"
	appevents "outreach_backend/internal/events"
	"outreach_backend/internal/gateway/archive"
	"outreach_backend/internal/gateway/completion"
	"outreach_backend/internal/gateway/marketplace"
	"outreach_backend/internal/gateway/messaging"
	"outreach_backend/internal/outreach/engine"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/outreach/service"
	"outreach_backend/internal/replysync"
	"outreach_backend/internal/scheduler"
	"outreach_backend/internal/sourcing"
	"outreach_backend/migrations"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	repo := repository.New(pool)
	appevents.NewDiagnosticRecorder(repo, log).Register(eventBus)

	// ========================================================================
	// Gateways
	// ========================================================================

	var completer completion.Completer
	if client, err := completion.New(ctx, cfg, log); err == nil {
		completer = client
	} else if errors.Is(err, completion.ErrDisabled) {
		log.Warn("completion gateway disabled; chain planning uses deterministic fallbacks")
	} else {
		log.Error("failed to initialize completion client", "error", err)
		panic("failed to initialize completion client: " + err.Error())
	}

	var traceStore archive.Store = archive.NoopStore{}
	if cfg.IsArchiveEnabled() {
		store, err := archive.NewMinIOStore(ctx, cfg)
		if err != nil {
			log.Error("failed to initialize trace archive", "error", err)
			panic("failed to initialize trace archive: " + err.Error())
		}
		traceStore = store
		log.Info("sourcing trace archive enabled", "bucket", cfg.GetMinioBucketSourcingTraces())
	}

	market := marketplace.New(cfg, log)
	sender := messaging.NewSender(cfg, log)

	// ========================================================================
	// Engines
	// ========================================================================

	sourcer := sourcing.NewEngine(repo, market, completer, traceStore, cfg, log)
	composer := conversation.NewComposer(completer, log)
	classifier := conversation.NewClassifier(completer, log)
	flow := conversation.NewFlow(repo, composer, classifier, eventBus, log)

	svc := service.New(repo, flow, eventBus, log, cfg.GetMarketplaceToken())

	var syncer engine.ReplySyncer
	if s, err := replysync.New(cfg, svc, log); err == nil {
		syncer = s
		log.Info("imap reply sync enabled", "host", cfg.GetIMAPHost())
	} else {
		log.Warn("imap reply sync disabled", "reason", err.Error())
	}

	eng := engine.New(engine.Config{
		Repo:             repo,
		Sourcer:          sourcer,
		Flow:             flow,
		Sender:           sender,
		ReplySync:        syncer,
		Bus:              eventBus,
		Log:              log,
		MarketplaceToken: cfg.GetMarketplaceToken(),
	})

	// ========================================================================
	// Asynq plumbing
	// ========================================================================

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	worker, err := scheduler.NewWorker(cfg, repo, eng, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	dispatcher := scheduler.NewJobDispatcher(cfg, client, repo, log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	log.Info("scheduler running")
	wg.Wait()
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%s: %w", name, lastErr)
}
