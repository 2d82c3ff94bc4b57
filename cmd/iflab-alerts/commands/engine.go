package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/alerts"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/app"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/cli/client"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/logger"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// engine is what the one-shot commands drive, either in-process or over HTTP.
type engine interface {
	EvaluateComputer(ctx context.Context, id models.ComputerID) (alerts.ComputerResult, error)
	EvaluateAllComputers(ctx context.Context) (alerts.PassSummary, error)
	CheckStatus(ctx context.Context) (alerts.StatusSummary, error)
	GetAlert(ctx context.Context, id models.AlertID) (*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id models.AlertID) (*models.Alert, error)
}

// localEngine runs commands against the configured database.
type localEngine struct {
	*app.App
}

func (l localEngine) EvaluateComputer(ctx context.Context, id models.ComputerID) (alerts.ComputerResult, error) {
	return l.Alerts.EvaluateComputer(ctx, id)
}

func (l localEngine) EvaluateAllComputers(ctx context.Context) (alerts.PassSummary, error) {
	return l.Alerts.EvaluateAllComputers(ctx)
}

func (l localEngine) CheckStatus(ctx context.Context) (alerts.StatusSummary, error) {
	return l.Alerts.CheckStatus(ctx)
}

func (l localEngine) GetAlert(ctx context.Context, id models.AlertID) (*models.Alert, error) {
	return l.SQLite.GetAlert(ctx, id)
}

func (l localEngine) AcknowledgeAlert(ctx context.Context, id models.AlertID) (*models.Alert, error) {
	return l.SQLite.AcknowledgeAlert(ctx, id)
}

// openApp loads config and wires the engine without starting loops.
func (a *App) openApp(ctx context.Context) (*app.App, error) {
	application, err := app.New(app.Options{
		ConfigPath: a.ConfigPath,
		Version:    a.Version,
		BuildInfo:  a.Commit,
	})
	if err != nil {
		return nil, err
	}
	if a.Debug {
		application.Logger = logger.New(logger.Options{
			Level:  "debug",
			Format: application.Config.Logging.Format,
			File:   application.Config.Logging.File,
		})
	}
	if err := application.Initialize(ctx); err != nil {
		_ = application.Shutdown(context.Background())
		return nil, err
	}
	return application, nil
}

// withEngine runs fn against a remote server when --server is set, otherwise
// against a local engine that is shut down afterwards.
func (a *App) withEngine(ctx context.Context, fn func(engine) error) error {
	if a.ServerURL != "" {
		c, err := client.New(a.ServerURL, 30*time.Second)
		if err != nil {
			return err
		}
		log.Debug("using remote server", "url", a.ServerURL)
		return fn(c)
	}

	application, err := a.openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = application.Shutdown(context.Background())
	}()
	return fn(localEngine{application})
}

func parseIDArg(cmd *cli.Command, what string) (int64, error) {
	raw := cmd.Args().First()
	if raw == "" {
		return 0, fmt.Errorf("%s id is required", what)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return id, nil
}

// evaluateCommand runs one rule pass for a computer or for the whole fleet.
func (a *App) evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:      "evaluate",
		Usage:     "run a rule evaluation pass",
		ArgsUsage: "[computer-id]",
		Description: `Evaluate the active rules for one computer, or for every computer when no
id is given. A computer whose previous pass is still running is skipped.

Examples:
   iflab-alerts evaluate
   iflab-alerts evaluate 42 -o json`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			r, err := a.renderer()
			if err != nil {
				return err
			}
			return a.withEngine(ctx, func(e engine) error {
				if cmd.Args().Len() == 0 {
					summary, err := e.EvaluateAllComputers(ctx)
					if err != nil {
						return fmt.Errorf("evaluation pass failed: %w", err)
					}
					return r.Render(summary)
				}
				id, err := parseIDArg(cmd, "computer")
				if err != nil {
					return err
				}
				result, err := e.EvaluateComputer(ctx, models.ComputerID(id))
				if err != nil {
					return fmt.Errorf("evaluating computer %d: %w", id, err)
				}
				if result.Skipped {
					log.Warn("a pass for this computer is already running, skipped", "computer_id", id)
				}
				return r.Render(result)
			})
		},
	}
}

// checkStatusCommand runs one online/offline sweep.
func (a *App) checkStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "check-status",
		Usage: "detect computers that went online or offline",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			r, err := a.renderer()
			if err != nil {
				return err
			}
			return a.withEngine(ctx, func(e engine) error {
				summary, err := e.CheckStatus(ctx)
				if err != nil {
					return fmt.Errorf("status sweep failed: %w", err)
				}
				return r.Render(summary)
			})
		},
	}
}

func (a *App) alertCommand() *cli.Command {
	return &cli.Command{
		Name:      "alert",
		Usage:     "show one alert",
		ArgsUsage: "<alert-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := parseIDArg(cmd, "alert")
			if err != nil {
				return err
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}
			return a.withEngine(ctx, func(e engine) error {
				alert, err := e.GetAlert(ctx, models.AlertID(id))
				if err != nil {
					return fmt.Errorf("loading alert %d: %w", id, err)
				}
				return r.Render(alert)
			})
		},
	}
}

// ackCommand acknowledges an open alert. The evaluator still resolves it
// once its rule clears.
func (a *App) ackCommand() *cli.Command {
	return &cli.Command{
		Name:      "ack",
		Usage:     "acknowledge an open alert",
		ArgsUsage: "<alert-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := parseIDArg(cmd, "alert")
			if err != nil {
				return err
			}
			return a.withEngine(ctx, func(e engine) error {
				alert, err := e.AcknowledgeAlert(ctx, models.AlertID(id))
				if err != nil {
					return fmt.Errorf("acknowledging alert %d: %w", id, err)
				}
				fmt.Println(successStyle.Render(fmt.Sprintf("alert %d acknowledged", alert.ID)))
				return nil
			})
		},
	}
}
