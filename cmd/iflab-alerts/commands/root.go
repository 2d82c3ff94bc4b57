// Package commands provides the CLI command definitions for iflab-alerts.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/cli/render"
)

// Styles for CLI output
var (
	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7C3AED")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// App holds the shared CLI state
type App struct {
	ConfigPath string
	ServerURL  string
	Debug      bool
	Color      bool
	Output     string
	Version    string
	Commit     string
	Date       string
}

// New creates the root CLI command with all subcommands
func New(version, commit, date string) *cli.Command {
	app := &App{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	return &cli.Command{
		Name:    "iflab-alerts",
		Usage:   "alert evaluation and notification engine for lab computers",
		Version: version,
		Description: `iflab-alerts evaluates alert rules against the activity reported by lab
   computers, keeps alert state and notifies the users allowed to see them.

   Use 'iflab-alerts serve' to run the engine with its HTTP API. One-shot
   commands work on the local database, or on a running server with --server.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Value:   "config.toml",
				Sources: cli.EnvVars("IFLAB_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "talk to a running server at this URL instead of the local database",
				Sources: cli.EnvVars("IFLAB_SERVER_URL"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output format: text, table, json",
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable colored output",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			app.ConfigPath = cmd.String("config")
			app.ServerURL = cmd.String("server")
			app.Output = cmd.String("output")
			app.Debug = cmd.Bool("debug")
			app.Color = !cmd.Bool("no-color") && isTerminal()

			if app.Debug {
				log.SetLevel(log.DebugLevel)
			}
			if !app.Color {
				log.SetStyles(log.DefaultStyles())
				lipgloss.SetHasDarkBackground(false)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			app.serveCommand(),
			app.evaluateCommand(),
			app.checkStatusCommand(),
			app.alertCommand(),
			app.ackCommand(),
			app.watchCommand(),
			app.versionCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
	}
}

func (a *App) renderer() (*render.Renderer, error) {
	return render.New(os.Stdout, render.Options{
		Format:     a.Output,
		Color:      a.Color,
		TimeFormat: "short",
	})
}

// isTerminal returns true if stdout is a terminal
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// versionCommand shows version information
func (a *App) versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "show version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("%s version %s\n", logoStyle.Render("iflab-alerts"), a.Version)
			fmt.Printf("  commit: %s\n", mutedStyle.Render(a.Commit))
			fmt.Printf("  built:  %s\n", mutedStyle.Render(a.Date))
			return nil
		},
	}
}
