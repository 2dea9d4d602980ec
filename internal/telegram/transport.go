package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytget/yt-downloader-bot/internal/model"
)

// errNotModified is the API description of an edit that changes nothing
const errNotModified = "message is not modified"

// Sender is the minimal Telegram API used by the transport
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Transport sends and edits chat messages through the Bot API
type Transport struct {
	api    Sender
	logger *slog.Logger
}

// NewTransport creates a transport over api
func NewTransport(api Sender, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{api: api, logger: logger}
}

// SendMessage sends text to chatID with optional inline buttons on one row
func (t *Transport) SendMessage(ctx context.Context, chatID int64, text string, buttons []model.Button) (model.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return model.MessageRef{}, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = keyboard(buttons)
	}

	sent, err := t.api.Send(msg)
	if err != nil {
		return model.MessageRef{}, fmt.Errorf("sendMessage: %w", err)
	}
	return model.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// EditMessage replaces the text and buttons of ref. Without buttons the
// inline keyboard is removed. Edits that change nothing are not errors.
func (t *Transport) EditMessage(ctx context.Context, ref model.MessageRef, text string, buttons []model.Button) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var edit tgbotapi.EditMessageTextConfig
	if len(buttons) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(ref.ChatID, ref.MessageID, text, keyboard(buttons))
	} else {
		edit = tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	}

	if _, err := t.api.Request(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		return fmt.Errorf("editMessageText %s: %w", ref, err)
	}
	return nil
}

// SendFile uploads path to chatID as a document
func (t *Transport) SendFile(ctx context.Context, chatID int64, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	if _, err := t.api.Send(doc); err != nil {
		return fmt.Errorf("sendDocument: %w", err)
	}
	t.logger.Debug("file_sent", "chat_id", chatID, "file", path)
	return nil
}

// AnswerCallback acknowledges a button press, showing text as a toast when set
func (t *Transport) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answerCallbackQuery: %w", err)
	}
	return nil
}

func keyboard(buttons []model.Button) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, errNotModified)
	}
	return strings.Contains(err.Error(), errNotModified)
}
