package app

import (
	"context"
	"database/sql"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/mailcannon/mailcannon/config"
	"github.com/mailcannon/mailcannon/internal/database"
	"github.com/mailcannon/mailcannon/internal/domain"
	apphttp "github.com/mailcannon/mailcannon/internal/http"
	"github.com/mailcannon/mailcannon/internal/repository"
	"github.com/mailcannon/mailcannon/internal/service"
	"github.com/mailcannon/mailcannon/internal/service/campaign"
	"github.com/mailcannon/mailcannon/pkg/logger"
	"github.com/mailcannon/mailcannon/pkg/ratelimiter"
)

// App wires the whole dispatcher together: database, repositories, services,
// and the HTTP surface for webhook ingestion.
type App struct {
	config *config.Config
	logger logger.Logger
	db     *sql.DB
	mux    *nethttp.ServeMux
	server *nethttp.Server

	// Repositories
	deliveryRepo    *repository.DeliveryRepository
	eventRepo       *repository.EventRepository
	suppressionRepo *repository.SuppressionRepository
	quotaRepo       *repository.QuotaRepository

	// Services
	provider       domain.ProviderClient
	renderer       domain.TemplateRenderer
	limiter        *ratelimiter.TokenBucket
	scheduler      *campaign.Scheduler
	preflight      *service.PreflightService
	webhookService *service.WebhookService
}

// AppOption configures the App before initialization.
type AppOption func(*App)

// WithLogger replaces the default logger.
func WithLogger(log logger.Logger) AppOption {
	return func(a *App) {
		a.logger = log
	}
}

// NewApp creates an app from configuration. Call Initialize before use.
func NewApp(cfg *config.Config, opts ...AppOption) *App {
	app := &App{
		config: cfg,
		logger: logger.NewLoggerWithLevel(cfg.LogLevel),
		mux:    nethttp.NewServeMux(),
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Logger exposes the app logger for the CLI layer.
func (a *App) Logger() logger.Logger {
	return a.logger
}

// Initialize brings up every component in dependency order.
func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitDB(); err != nil {
		return err
	}
	if err := a.InitRepositories(ctx); err != nil {
		return err
	}
	if err := a.InitServices(); err != nil {
		return err
	}
	a.InitHandlers()
	return nil
}

// InitDB connects to Postgres and runs the idempotent schema setup.
func (a *App) InitDB() error {
	a.logger.WithFields(map[string]interface{}{
		"host":   a.config.Database.Host,
		"port":   a.config.Database.Port,
		"dbname": a.config.Database.DBName,
	}).Info("Connecting to database")

	db, err := database.Connect(a.config.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.InitializeDatabase(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	a.db = db
	return nil
}

// InitRepositories creates the persistence layer and warms the suppression
// cache.
func (a *App) InitRepositories(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("database must be initialized before repositories")
	}

	a.deliveryRepo = repository.NewDeliveryRepository(a.db)
	a.eventRepo = repository.NewEventRepository(a.db)
	a.quotaRepo = repository.NewQuotaRepository(a.db, a.config.Limits.Daily)

	a.suppressionRepo = repository.NewSuppressionRepository(a.db)
	if err := a.suppressionRepo.Warm(ctx); err != nil {
		return fmt.Errorf("failed to warm suppression cache: %w", err)
	}

	return nil
}

// InitServices creates the sending pipeline.
func (a *App) InitServices() error {
	limiter, err := ratelimiter.NewTokenBucket(a.config.Limits.PerMinute)
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}
	a.limiter = limiter

	a.provider = service.NewResendClient(
		a.config.Provider.APIKey,
		a.config.Provider.Endpoint,
		a.config.Provider.Timeout,
		a.logger,
	)
	a.renderer = service.NewFileTemplateRenderer(a.config.Templates.Dir)

	campaignCfg := campaign.DefaultConfig()
	campaignCfg.Concurrency = a.config.Scheduler.DefaultConcurrency
	campaignCfg.MaxAttempts = a.config.Retry.MaxAttempts
	campaignCfg.BaseDelay = a.config.Retry.BaseDelay
	campaignCfg.MaxDelay = a.config.Retry.MaxDelay

	a.scheduler = campaign.NewScheduler(
		a.deliveryRepo,
		a.quotaRepo,
		a.suppressionRepo,
		a.limiter,
		a.renderer,
		a.provider,
		campaign.NewRealClock(),
		a.logger,
		campaignCfg,
	)

	a.preflight = service.NewPreflightService(a.config, a.renderer, a.quotaRepo, a.logger)

	if a.config.Webhook.Secret != "" {
		webhookService, err := service.NewWebhookService(
			a.config.Webhook.Secret,
			a.config.Webhook.ReplayWindow,
			a.eventRepo,
			a.deliveryRepo,
			a.suppressionRepo,
			a.logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create webhook service: %w", err)
		}
		a.webhookService = webhookService
	}

	return nil
}

// InitHandlers mounts the HTTP surface. Without a webhook secret only the
// introspection endpoints come up; there is nothing to verify against.
func (a *App) InitHandlers() {
	if a.webhookService == nil {
		a.logger.Warn("WEBHOOK_SECRET is not set; webhook endpoint disabled")
		return
	}
	handler := apphttp.NewWebhookHandler(
		a.webhookService,
		a.eventRepo,
		a.deliveryRepo,
		a.logger,
		a.config.Version,
	)
	handler.RegisterRoutes(a.mux)
}

// RunPreflight validates campaign inputs without sending anything.
func (a *App) RunPreflight(ctx context.Context, input service.PreflightInput) (*service.PreflightResult, error) {
	return a.preflight.Run(ctx, input)
}

// RunCampaign executes one campaign from a CSV recipients file.
func (a *App) RunCampaign(ctx context.Context, campaignID, recipientsPath, templateID string, dryRun bool, concurrency int) (*campaign.Summary, error) {
	source, err := service.NewCSVSource(recipientsPath, a.logger)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	progress := make(chan campaign.ProgressEvent, 64)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range progress {
			a.logger.WithFields(map[string]interface{}{
				"processed":  ev.Processed,
				"sent":       ev.Sent,
				"failed":     ev.Failed,
				"suppressed": ev.Suppressed,
			}).Debug("Recipient completed")
		}
	}()

	summary, err := a.scheduler.Run(ctx, campaign.Input{
		CampaignID:  campaignID,
		TemplateID:  templateID,
		Source:      source,
		From:        a.config.Provider.FromHeader(),
		ReplyTo:     a.config.Provider.ReplyTo,
		DryRun:      dryRun,
		Concurrency: concurrency,
		Progress:    progress,
	})
	<-drained

	if invalid := source.InvalidCount(); invalid > 0 {
		a.logger.WithField("count", invalid).Warn("Some recipient rows were skipped as invalid")
	}

	return summary, err
}

// Start serves the webhook HTTP endpoint until the server stops.
func (a *App) Start() error {
	addr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
	a.server = &nethttp.Server{
		Addr:         addr,
		Handler:      a.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	a.logger.WithField("addr", addr).Info("Starting webhook server")
	err := a.server.ListenAndServe()
	if err == nethttp.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and closes the database.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
