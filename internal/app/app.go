package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/alerts"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/bus"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/config"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/metrics"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/notify"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/server"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/sqlite"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/logger"
)

// App represents the core application context, holding dependencies and configuration.
type App struct {
	Config    *config.Config
	SQLite    *sqlite.DB
	Bus       *bus.Publisher
	Notifier  *notify.FanOut
	Alerts    *alerts.Manager
	Logger    *slog.Logger
	server    *server.Server
	BuildInfo string
	Version   string
}

// Options contains configuration needed when creating a new App instance.
type Options struct {
	ConfigPath string
	// Logger overrides the logger built from the logging config section.
	Logger    *slog.Logger
	BuildInfo string
	Version   string
}

// New loads configuration and builds the logger. Nothing is connected yet.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.New(logger.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			File:   cfg.Logging.File,
		})
	}

	return &App{
		Config:    cfg,
		Logger:    log,
		BuildInfo: opts.BuildInfo,
		Version:   opts.Version,
	}, nil
}

// Initialize opens the database, connects the live-push bus and wires the
// alert engine and the HTTP server. Background loops are not started.
func (a *App) Initialize(ctx context.Context) error {
	var err error

	a.SQLite, err = sqlite.New(sqlite.Options{
		Config: a.Config.SQLite,
		Logger: a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sqlite: %w", err)
	}

	// Seed system settings from the static config on first boot.
	if err := a.seedSystemSettings(ctx); err != nil {
		a.Logger.Warn("failed to seed system settings from config", "error", err)
	}

	// Database settings override the file for the runtime-tunable alerts.* keys.
	a.Config = config.LoadRuntimeConfig(ctx, a.Config, a.SQLite, a.Logger)

	a.Bus, err = bus.NewPublisher(a.Config.Notifications.NATSURL, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notification bus: %w", err)
	}

	a.Notifier = notify.New(notify.Options{
		Store:         a.SQLite,
		Publisher:     a.Bus,
		SubjectPrefix: a.Config.Notifications.SubjectPrefix,
		Logger:        a.Logger,
	})

	webhook := alerts.NewDynamicWebhookSender(a.SQLite, alerts.WebhookSenderOptions{
		URLs:          a.Config.Alerts.WebhookURLs,
		Timeout:       a.Config.Alerts.NotificationTimeout,
		SkipTLSVerify: a.Config.Alerts.WebhookSkipTLS,
	}, a.Logger)

	dispatcher := alerts.NewDispatcher(alerts.DispatcherOptions{
		Viewers: a.Notifier,
		Webhook: webhook,
		Timeout: a.Config.Alerts.NotificationTimeout,
		Logger:  a.Logger,
	})

	a.Alerts = alerts.NewManager(alerts.Options{
		Config:         a.Config.Alerts,
		Settings:       a.SQLite,
		Store:          a.SQLite,
		Notifier:       dispatcher,
		StatusNotifier: a.Notifier,
		Logger:         a.Logger,
	})

	metrics.RegisterOpenAlertsGauge(func() float64 {
		n, err := a.SQLite.CountOpenAlerts(context.Background())
		if err != nil {
			a.Logger.Warn("failed to count open alerts", "error", err)
			return 0
		}
		return float64(n)
	})

	a.server = server.New(server.Options{
		Config:    a.Config.Server,
		Store:     a.SQLite,
		Evaluator: a.Alerts,
		Logger:    a.Logger,
		Version:   a.Version,
	})
	return nil
}

// Start launches the evaluation loops and blocks serving HTTP.
func (a *App) Start(ctx context.Context) error {
	if a.server == nil || a.Alerts == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Alerts.Start(ctx)
	return a.server.Start()
}

// Shutdown gracefully stops all application components.
//
//nolint:contextcheck // Shutdown receives its own context from caller (e.g., signal handler)
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
	}

	if a.Alerts != nil {
		a.Logger.Info("stopping alert manager")
		a.Alerts.Stop()
	}

	if a.server != nil {
		serverCtx, serverCancel := context.WithTimeout(ctx, 5*time.Second)
		defer serverCancel()
		if err := a.server.Shutdown(serverCtx); err != nil {
			a.Logger.Error("error shutting down server", "error", err)
		} else {
			a.Logger.Info("HTTP server shut down successfully")
		}
	}

	if a.Bus != nil {
		a.Bus.Close()
	}

	if a.SQLite != nil {
		a.Logger.Info("closing SQLite connection")
		if err := a.SQLite.Close(); err != nil {
			a.Logger.Error("error closing SQLite", "error", err)
		}
	}

	a.Logger.Info("application shutdown complete")
	return nil
}

// seedSystemSettings populates system_settings from the static config when
// the table is empty. After that the database is the source of truth for
// these keys.
func (a *App) seedSystemSettings(ctx context.Context) error {
	settings, err := a.SQLite.ListSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing settings: %w", err)
	}
	if len(settings) > 0 {
		a.Logger.Debug("system settings already exist, skipping seeding")
		return nil
	}

	a.Logger.Info("seeding system settings from config (first boot)")
	for _, s := range defaultSettings(a.Config.Alerts) {
		if err := a.SQLite.UpsertSetting(ctx, s.key, s.value, s.valueType, "alerts", s.description, s.sensitive); err != nil {
			a.Logger.Warn("failed to seed alert setting", "key", s.key, "error", err)
			continue
		}
		a.Logger.Debug("seeded alert setting", "key", s.key, "value", s.value)
	}
	return nil
}

type seedSetting struct {
	key         string
	value       string
	valueType   string
	description string
	sensitive   bool
}

func defaultSettings(cfg config.AlertsConfig) []seedSetting {
	return []seedSetting{
		{"alerts.enabled", strconv.FormatBool(cfg.Enabled), "boolean", "Enable or disable alert evaluation", false},
		{"alerts.evaluation_interval", cfg.EvaluationInterval.String(), "duration", "How often every computer is evaluated against the active rules", false},
		{"alerts.status_interval", cfg.StatusInterval.String(), "duration", "How often online/offline transitions are checked", false},
		{"alerts.offline_after", cfg.OfflineAfter.String(), "duration", "Silence after which a computer counts as offline", false},
		{"alerts.workers", strconv.Itoa(cfg.Workers), "number", "Computers evaluated in parallel", false},
		{"alerts.never_seen_offline", strconv.FormatBool(cfg.NeverSeenOffline), "boolean", "Status rules trigger for computers that never reported", false},
		{"alerts.notify_on_resolve", strconv.FormatBool(cfg.NotifyOnResolve), "boolean", "Notify viewers when an alert resolves", false},
		{"alerts.notification_timeout", cfg.NotificationTimeout.String(), "duration", "Timeout for a single channel delivery", false},
		{"alerts.webhook_urls", strings.Join(cfg.WebhookURLs, ","), "string", "Comma-separated webhook endpoints", true},
		{"alerts.webhook_skip_tls_verify", strconv.FormatBool(cfg.WebhookSkipTLS), "boolean", "Skip TLS certificate verification for webhooks", false},
	}
}
