package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/yt-downloader-bot/internal/config"
	"github.com/ytget/yt-downloader-bot/internal/download"
	"github.com/ytget/yt-downloader-bot/internal/telegram"
)

const readHeaderTimeout = 10 * time.Second

func newServeCmd(settings *config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot behind a webhook HTTP server",
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
			timeout := settings.GetShutdownTimeout()
			defer app.close(timeout)

			token := settings.GetTelegramToken()
			webhookURL := settings.GetWebhookURL()
			secret := settings.GetWebhookSecret()

			handler := telegram.NewWebhookHandler(app.dispatcher, telegram.WebhookPath(webhookURL, token), secret, logger)
			if apiToken := settings.GetAPIToken(); apiToken != "" {
				handler.Handle(download.APIPath, download.NewAPIHandler(app.fetcher, app.fetchOptions, settings.GetAPIDir(), apiToken, logger))
				logger.Info("download_api_enabled", "path", download.APIPath)
			}
			srv := &http.Server{
				Addr:              settings.GetListenAddr(),
				Handler:           handler.Handler(),
				ReadHeaderTimeout: readHeaderTimeout,
			}

			if webhookURL != "" {
				if err := telegram.SetWebhook(app.api, telegram.WebhookURL(webhookURL, token), secret); err != nil {
					return err
				}
				logger.Info("webhook_registered")
			} else {
				logger.Warn("webhook_url_not_set", "hint", "register the webhook manually or set telegram.webhook_url")
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("server_started", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("server_stopping")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}

	cmd.Flags().String("listen", "", "Listen address (default :$PORT or :5000).")
	cmd.Flags().String("webhook-url", "", "Public webhook URL to register with Telegram.")
	_ = settings.Viper().BindPFlag(config.KeyListenAddr, cmd.Flags().Lookup("listen"))
	_ = settings.Viper().BindPFlag(config.KeyWebhookURL, cmd.Flags().Lookup("webhook-url"))

	return cmd
}
