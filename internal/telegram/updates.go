package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytget/yt-downloader-bot/internal/model"
)

// Handler receives the two kinds of inbound chat events
type Handler interface {
	HandleText(ctx context.Context, chatID, userID int64, text string) error
	HandleButton(ctx context.Context, callbackID string, ref model.MessageRef, userID int64, data string) error
}

// Dispatcher routes Bot API updates to a Handler
type Dispatcher struct {
	handler Handler
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher for handler
func NewDispatcher(handler Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handler: handler, logger: logger}
}

// HandleUpdate handles one update synchronously. Updates other than text
// messages and button presses are ignored. Handler panics are recovered.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("update_panic", "update_id", update.UpdateID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = fmt.Errorf("panic handling update %d: %v", update.UpdateID, r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return nil
		}
		ref := model.MessageRef{ChatID: cb.Message.Chat.ID, MessageID: cb.Message.MessageID}
		err = d.handler.HandleButton(ctx, cb.ID, ref, cb.From.ID, cb.Data)
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat == nil || msg.Text == "" {
			return nil
		}
		err = d.handler.HandleText(ctx, msg.Chat.ID, msg.From.ID, msg.Text)
	default:
		return nil
	}

	if err != nil {
		d.logger.Info("update_rejected", "update_id", update.UpdateID, "error", err.Error())
	}
	return err
}
