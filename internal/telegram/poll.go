package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultPollTimeout is the long-poll timeout in seconds
const DefaultPollTimeout = 60

// UpdateSource delivers updates by long polling
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poll feeds long-polled updates to dispatcher until ctx is done
func Poll(ctx context.Context, source UpdateSource, dispatcher *Dispatcher, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = DefaultPollTimeout
	updates := source.GetUpdatesChan(u)
	defer source.StopReceivingUpdates()

	logger.Info("polling_started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("polling_stopped")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			_ = dispatcher.HandleUpdate(ctx, update)
		}
	}
}
