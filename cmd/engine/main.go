// Package main is the entry point for the discipline lifecycle engine.
//
// The engine wires the full incident lifecycle together: PostgreSQL
// persistence, the Redis-backed escalation rule cache, the in-memory
// event bus and the guardian notification handlers. It runs as a
// long-lived service and shuts down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/schoolhub/discipline-core/config"
	"github.com/schoolhub/discipline-core/internal/application/command"
	"github.com/schoolhub/discipline-core/internal/application/eventhandler"
	"github.com/schoolhub/discipline-core/internal/application/query"
	"github.com/schoolhub/discipline-core/internal/domain/escalation"
	"github.com/schoolhub/discipline-core/internal/domain/notification"
	"github.com/schoolhub/discipline-core/internal/domain/shared"
	"github.com/schoolhub/discipline-core/internal/infrastructure/messaging"
	"github.com/schoolhub/discipline-core/internal/infrastructure/notify"
	"github.com/schoolhub/discipline-core/internal/infrastructure/persistence/postgres"
	"github.com/schoolhub/discipline-core/internal/infrastructure/persistence/redis"
	"github.com/schoolhub/discipline-core/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("engine terminated", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────

	// .env is optional; real deployments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Level:   logger.ParseLevel(cfg.Observability.LogLevel),
		Format:  cfg.Observability.LogFormat,
		Service: cfg.App.Name,
	})
	slog.SetDefault(log)

	log.Info("starting discipline lifecycle engine",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx := context.Background()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to PostgreSQL...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.RunMigrations {
		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional rule cache)
	// ─────────────────────────────────────────────────────────────────────────
	var ruleStore escalation.RuleStore = postgres.NewRuleStore(dbConn)

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, rule caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			ruleStore = redis.NewCachedRuleStore(ruleStore, redisCache, log)
			log.Info("Redis connection established, escalation rules cached")
		}
	} else {
		log.Info("Redis disabled, escalation rules read directly from database")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES AND DOMAIN SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	incidentRepo := postgres.NewIncidentRepository(dbConn)
	statusLogRepo := postgres.NewStatusLogRepository(dbConn)
	actorDir := postgres.NewActorDirectory(dbConn)
	uowFactory := postgres.NewUnitOfWorkFactory(dbConn)

	resolver := escalation.NewResolver(ruleStore, actorDir, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.AsyncMode = cfg.EventBus.Async
	busCfg.WorkerPoolSize = cfg.EventBus.WorkerPoolSize
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GUARDIAN NOTIFICATIONS
	// ─────────────────────────────────────────────────────────────────────────
	var dispatcher notification.Dispatcher
	if cfg.Portal.BaseURL != "" {
		dispatcher = notify.NewPortalDispatcher(notify.PortalConfig{
			BaseURL:        cfg.Portal.BaseURL,
			APIKey:         cfg.Portal.APIKey,
			RequestTimeout: cfg.Portal.RequestTimeout,
		}, log)
		log.Info("guardian notices delivered via parent portal", "base_url", cfg.Portal.BaseURL)
	} else {
		dispatcher = notify.NewLogDispatcher(log)
		log.Warn("PORTAL_BASE_URL not set, guardian notices are log-only")
	}

	onReported := eventhandler.NewOnIncidentReportedHandler(
		actorDir, dispatcher, log, cfg.Portal.DispatchTimeout)
	onStatusChanged := eventhandler.NewOnStatusChangedHandler(
		actorDir, dispatcher, log, cfg.Portal.DispatchTimeout)

	if err := eventBus.Subscribe(shared.EventIncidentReported, onReported.Handle); err != nil {
		return fmt.Errorf("failed to subscribe incident reported handler: %w", err)
	}
	if err := eventBus.Subscribe(shared.EventIncidentStatusChanged, onStatusChanged.Handle); err != nil {
		return fmt.Errorf("failed to subscribe status changed handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. COMMAND AND QUERY HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing handlers...")
	reportHandler := command.NewReportIncidentHandler(uowFactory, resolver, eventBus, log)
	updateHandler := command.NewUpdateStatusHandler(uowFactory, actorDir, resolver, eventBus, log)
	getHandler := query.NewGetIncidentHandler(incidentRepo, statusLogRepo)
	listHandler := query.NewListIncidentsHandler(incidentRepo)

	// The transport layer is out of scope for this service; embedding
	// applications import the handlers directly. The engine binary keeps
	// them alive here so a future gRPC/HTTP facade only has to register
	// routes.
	engine := &Engine{
		ReportIncident: reportHandler,
		UpdateStatus:   updateHandler,
		GetIncident:    getHandler,
		ListIncidents:  listHandler,
	}
	_ = engine

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("discipline lifecycle engine is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	if busMetrics := eventBus.Metrics(); busMetrics != nil {
		snap := busMetrics.Snapshot()
		log.Info("event bus totals",
			"published", snap.TotalPublished,
			"handler_execs", snap.TotalHandlerExecs,
			"success_rate", snap.HandlerSuccessRate,
		)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// Engine bundles the application entry points for embedding callers.
type Engine struct {
	ReportIncident *command.ReportIncidentHandler
	UpdateStatus   *command.UpdateStatusHandler
	GetIncident    *query.GetIncidentHandler
	ListIncidents  *query.ListIncidentsHandler
}
