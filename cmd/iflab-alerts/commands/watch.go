package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/bus"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/config"
)

// watchCommand prints the notifications pushed on the bus as they arrive.
func (a *App) watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "stream live notifications from NATS",
		Description: `Subscribe to the notification subjects and print every message.

Examples:
   iflab-alerts watch
   iflab-alerts watch --user 3
   iflab-alerts watch --nats nats://localhost:4222 -o json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL (defaults to notifications.nats_url)",
				Sources: cli.EnvVars("IFLAB_NOTIFICATIONS_NATS_URL"),
			},
			&cli.IntFlag{
				Name:  "user",
				Usage: "only show notifications for this user id",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(a.ConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			url := cmd.String("nats")
			if url == "" {
				url = cfg.Notifications.NATSURL
			}
			if url == "" {
				return fmt.Errorf("no NATS url configured; pass --nats or set notifications.nats_url")
			}

			subject := cfg.Notifications.SubjectPrefix + ".broadcast"
			if user := cmd.Int("user"); user > 0 {
				subject = fmt.Sprintf("%s.user.%d", cfg.Notifications.SubjectPrefix, user)
			}

			r, err := a.renderer()
			if err != nil {
				return err
			}

			sub, err := bus.NewSubscriber(url)
			if err != nil {
				return err
			}
			defer sub.Close()

			envelopes := make(chan bus.Envelope, 64)
			if _, err := sub.Subscribe(subject, func(_ string, env bus.Envelope) {
				select {
				case envelopes <- env:
				default:
					log.Warn("output is falling behind, dropping notification", "id", env.ID)
				}
			}); err != nil {
				return fmt.Errorf("subscribing to %s: %w", subject, err)
			}
			log.Info("watching notifications", "subject", subject)

			for {
				select {
				case <-ctx.Done():
					return nil
				case env := <-envelopes:
					if err := r.Render(env); err != nil {
						return err
					}
				}
			}
		},
	}
}
