package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"AdvisoryDispatch/internal/channel"
	"AdvisoryDispatch/internal/compliance"
	"AdvisoryDispatch/internal/config"
	"AdvisoryDispatch/internal/delivery"
	"AdvisoryDispatch/internal/infrastructure/scheduler"
	"AdvisoryDispatch/internal/infrastructure/semantic"
	"AdvisoryDispatch/internal/infrastructure/storage"
	"AdvisoryDispatch/internal/infrastructure/telegram"
	"AdvisoryDispatch/internal/infrastructure/whatsapp"
	"AdvisoryDispatch/internal/ledger"
	"AdvisoryDispatch/internal/logging"
	"AdvisoryDispatch/internal/ports"
	"AdvisoryDispatch/internal/rules"
	"AdvisoryDispatch/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	ledger    *ledger.Ledger
	store     ports.DeliveryStore
	scheduler *delivery.Scheduler
	trigger   *usecase.BatchTrigger
	catalog   *usecase.CatalogManager
	db        *sql.DB
}

// Catalog exposes the live rule catalog manager so operator tooling can apply
// append-only updates.
func (a *Application) Catalog() *usecase.CatalogManager {
	return a.catalog
}

// New builds a runnable application instance. source is the upstream approval
// workflow adapter; it is injected because authoring lives outside the core.
func New(cfg config.Config, source ports.ContentSource, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	var (
		db    *sql.DB
		store ports.DeliveryStore
	)
	if cfg.Database.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		store = storage.NewPostgresRepository(db)
	}

	var evaluator ports.SemanticEvaluator
	if cfg.Semantic.APIKey != "" {
		ev, err := semantic.NewEvaluator(cfg.Semantic, logging.Component(baseLogger, "semantic"))
		if err != nil {
			return nil, fmt.Errorf("build semantic evaluator: %w", err)
		}
		evaluator = ev
	} else {
		baseLogger.Warn("no semantic API key configured, stage two will run degraded")
	}

	led := ledger.New(logging.Component(baseLogger, "ledger"))
	catalog := rules.DefaultCatalog()
	validator := compliance.NewValidator(
		catalog,
		evaluator,
		led,
		cfg.Compliance,
		logging.Component(baseLogger, "validator"),
	)
	catalogManager := usecase.NewCatalogManager(catalog, validator, store, logging.Component(baseLogger, "catalog"))

	registry := channel.NewRegistry()
	registry.Register(whatsapp.NewClient(cfg.Channels.WhatsApp))

	tg := telegram.NewNotifier(cfg.Channels.Telegram)
	registry.Register(tg)

	var alerts ports.AlertNotifier
	if cfg.Channels.Telegram.BotToken != "" && cfg.Channels.Telegram.OperatorChatID != "" {
		alerts = tg
	}

	router := channel.NewRouter(registry, cfg.Delivery.DefaultChannel, logging.Component(baseLogger, "router"))
	sched := delivery.NewScheduler(
		delivery.NewQueue(),
		router,
		store,
		alerts,
		cfg.Delivery,
		logging.Component(baseLogger, "scheduler"),
	)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Validator:  validator,
		Scheduler:  sched,
		MaxRetries: cfg.Delivery.MaxRetries,
		Logger:     logging.Component(baseLogger, "pipeline"),
	})

	trigger := usecase.NewBatchTrigger(
		scheduler.NewDailyTrigger(cfg.Scheduler.DailyRunTime, cfg.Scheduler.Location()),
		pipeline,
	)

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		ledger:    led,
		store:     store,
		scheduler: sched,
		trigger:   trigger,
		catalog:   catalogManager,
		db:        db,
	}, nil
}

// Run starts the drain loop, ledger flusher, and daily trigger, then blocks
// until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.ledger.StartFlusher(ctx, a.store, time.Duration(a.cfg.Compliance.LedgerFlushSeconds)*time.Second)

	if err := a.trigger.Start(ctx); err != nil {
		return fmt.Errorf("start daily trigger: %w", err)
	}
	defer func() { _ = a.trigger.Stop(context.Background()) }()

	err := a.scheduler.Run(ctx)

	if a.db != nil {
		if closeErr := a.db.Close(); closeErr != nil {
			a.logger.Warn("database close failed", "error", closeErr)
		}
	}
	return err
}
