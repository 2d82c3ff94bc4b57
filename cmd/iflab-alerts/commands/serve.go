package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// serveCommand runs the evaluation loops and the HTTP API until interrupted.
func (a *App) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the alert engine and its HTTP API",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, err := a.openApp(ctx)
			if err != nil {
				return fmt.Errorf("initializing: %w", err)
			}

			fmt.Printf("%s %s listening on %s\n",
				logoStyle.Render("iflab-alerts"),
				mutedStyle.Render(a.Version),
				application.Config.Server.Address)

			errCh := make(chan error, 1)
			go func() {
				errCh <- application.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				log.Info("shutdown signal received")
			case err = <-errCh:
				if err != nil {
					log.Error("server stopped", "error", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), application.Config.Server.ShutdownTimeout)
			defer cancel()
			if serr := application.Shutdown(shutdownCtx); serr != nil {
				return serr
			}
			return err
		},
	}
}
