// Package server exposes the alert engine over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/alerts"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/config"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// Store is the subset of persistence the handlers use.
type Store interface {
	GetAlert(ctx context.Context, id models.AlertID) (*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id models.AlertID) (*models.Alert, error)
	ListSettings(ctx context.Context) ([]models.SystemSetting, error)
	GetSetting(ctx context.Context, key string) (string, error)
	UpsertSetting(ctx context.Context, key, value, valueType, category, description string, isSensitive bool) error
	DeleteSetting(ctx context.Context, key string) error
}

// Evaluator triggers evaluation passes on demand.
type Evaluator interface {
	EvaluateComputer(ctx context.Context, id models.ComputerID) (alerts.ComputerResult, error)
	EvaluateAllComputers(ctx context.Context) (alerts.PassSummary, error)
	CheckStatus(ctx context.Context) (alerts.StatusSummary, error)
}

// Options holds the dependencies of a Server.
type Options struct {
	Config    config.ServerConfig
	Store     Store
	Evaluator Evaluator
	Logger    *slog.Logger
	Version   string
}

// Server wraps the fiber app and its handlers.
type Server struct {
	app       *fiber.App
	config    config.ServerConfig
	store     Store
	evaluator Evaluator
	log       *slog.Logger
	version   string
}

// New builds a Server with every route registered.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		config:    opts.Config,
		store:     opts.Store,
		evaluator: opts.Evaluator,
		log:       log.With("component", "server"),
		version:   opts.Version,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "iflab-alerts",
		DisableStartupMessage: true,
		ReadTimeout:           opts.Config.ReadTimeout,
		WriteTimeout:          opts.Config.WriteTimeout,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Use(recover.New())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", s.handleMetrics)

	api := s.app.Group("/api/v1")
	api.Get("/meta", s.handleGetMeta)

	api.Get("/alerts/:id", s.handleGetAlert)
	api.Post("/alerts/:id/acknowledge", s.handleAcknowledgeAlert)

	api.Post("/computers/:id/evaluate", s.handleEvaluateComputer)
	api.Post("/evaluate", s.handleEvaluateAll)
	api.Post("/status/check", s.handleCheckStatus)

	settings := api.Group("/settings")
	settings.Get("/", s.handleListSettings)
	settings.Get("/:key", s.handleGetSetting)
	settings.Put("/:key", s.handleUpdateSetting)
	settings.Delete("/:key", s.handleDeleteSetting)
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks serving HTTP on the configured address.
func (s *Server) Start() error {
	s.log.Info("starting http server", "address", s.config.Address)
	return s.app.Listen(s.config.Address)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error("unhandled request error", "path", c.Path(), "error", err)
		return SendErrorWithType(c, code, "Internal server error", models.GeneralErrorType)
	}
	return SendErrorWithType(c, code, err.Error(), models.GeneralErrorType)
}

// SendSuccess writes data in the success envelope.
func SendSuccess(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(models.APIResponse{Status: "success", Data: data})
}

// SendError writes a general error envelope.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendErrorWithType(c, status, message, models.GeneralErrorType)
}

// SendErrorWithType writes an error envelope carrying an explicit error type.
func SendErrorWithType(c *fiber.Ctx, status int, message string, errorType models.ErrorType) error {
	return c.Status(status).JSON(models.APIResponse{
		Status:    "error",
		Message:   message,
		ErrorType: errorType,
	})
}
