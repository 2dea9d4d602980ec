package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ytget/yt-downloader-bot/internal/config"
	"github.com/ytget/yt-downloader-bot/internal/telegram"
)

func newPollCmd(settings *config.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run the bot with long polling (no public URL needed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLoggerFromConfig(loggerConfigFromSettings(settings))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newBotApp(ctx, settings, logger)
			if err != nil {
				return err
			}
			defer app.close(settings.GetShutdownTimeout())

			if err := telegram.DeleteWebhook(app.api); err != nil {
				return err
			}

			err = telegram.Poll(ctx, app.api, app.dispatcher, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
