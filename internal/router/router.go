package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ytget/yt-downloader-bot/internal/bot"
	"github.com/ytget/yt-downloader-bot/internal/model"
	"github.com/ytget/yt-downloader-bot/internal/pending"
	"github.com/ytget/yt-downloader-bot/internal/platform"
)

// Bot commands
const (
	CommandStart    = "/start"
	CommandHelp     = "/help"
	CommandDownload = "/download"
)

// DefaultReplyTimeout bounds a single transport call made while handling an event
const DefaultReplyTimeout = 15 * time.Second

// Transport is the part of the chat transport the router needs
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, buttons []model.Button) (model.MessageRef, error)
	EditMessage(ctx context.Context, ref model.MessageRef, text string, buttons []model.Button) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Dispatcher starts a confirmed job without blocking the caller
type Dispatcher interface {
	Dispatch(job *model.DownloadJob)
}

// Options configures a Router
type Options struct {
	AllowedUsers []int64 // empty allows everyone
	Texts        *bot.Texts
	ReplyTimeout time.Duration
	Logger       *slog.Logger

	// NewToken generates request tokens, UUIDv7 strings by default
	NewToken func() (string, error)
}

// Router handles text messages and button presses
type Router struct {
	store      *pending.Store
	transport  Transport
	dispatcher Dispatcher
	texts      *bot.Texts
	allowed    map[int64]struct{}
	timeout    time.Duration
	newToken   func() (string, error)
	logger     *slog.Logger
}

// NewRouter creates a router over store
func NewRouter(store *pending.Store, transport Transport, dispatcher Dispatcher, opts Options) *Router {
	r := &Router{
		store:      store,
		transport:  transport,
		dispatcher: dispatcher,
		texts:      opts.Texts,
		timeout:    opts.ReplyTimeout,
		newToken:   opts.NewToken,
		logger:     opts.Logger,
	}
	if r.texts == nil {
		r.texts = bot.NewTexts(bot.DefaultLanguage)
	}
	if r.timeout <= 0 {
		r.timeout = DefaultReplyTimeout
	}
	if r.newToken == nil {
		r.newToken = newToken
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if len(opts.AllowedUsers) > 0 {
		r.allowed = make(map[int64]struct{}, len(opts.AllowedUsers))
		for _, id := range opts.AllowedUsers {
			r.allowed[id] = struct{}{}
		}
	}
	return r
}

// HandleText handles a text message. A message carrying a link becomes a
// confirmation prompt; anything else gets the help text.
func (r *Router) HandleText(ctx context.Context, chatID, userID int64, text string) error {
	if !r.isAllowed(userID) {
		r.logger.Info("user_not_allowed", "chat_id", chatID, "user_id", userID)
		return r.reply(ctx, chatID, r.texts.Unauthorized())
	}

	switch command(text) {
	case CommandStart, CommandHelp:
		return r.reply(ctx, chatID, r.texts.Help())
	}

	url := platform.ExtractURL(text)
	if url == "" {
		return r.reply(ctx, chatID, r.texts.Help())
	}

	_, err := r.Propose(ctx, url, chatID, userID)
	return err
}

// Propose stores a pending request for url and sends the confirmation
// prompt. Nothing is stored when the prompt cannot be sent.
func (r *Router) Propose(ctx context.Context, url string, chatID, requesterID int64) (string, error) {
	token, err := r.newToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	buttons := []model.Button{
		{Text: r.texts.ConfirmButton(), Data: model.CallbackData(model.ActionConfirm, token)},
		{Text: r.texts.CancelButton(), Data: model.CallbackData(model.ActionCancel, token)},
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ref, err := r.transport.SendMessage(sendCtx, chatID, r.texts.ConfirmPrompt(url), buttons)
	if err != nil {
		return "", fmt.Errorf("failed to send confirmation prompt: %w", err)
	}

	req := model.PendingRequest{
		URL:             url,
		ChatID:          chatID,
		RequesterID:     requesterID,
		ConfirmationRef: ref,
		CreatedAt:       time.Now(),
	}
	if err := r.store.Put(token, req); err != nil {
		return "", err
	}

	r.logger.Info("request_proposed", "token", token, "chat_id", chatID, "user_id", requesterID, "url", url)
	return token, nil
}

// Resolve applies a button action to the pending request behind token.
// A confirm from anyone but the requester returns model.ErrPermissionDenied
// and leaves the request in place. An unknown or already resolved token
// returns model.ErrInvalidToken without touching any state.
func (r *Router) Resolve(ctx context.Context, token string, actingUserID int64, action model.Action) error {
	switch action {
	case model.ActionCancel:
		return r.cancel(ctx, token)
	case model.ActionConfirm:
		return r.confirm(ctx, token, actingUserID)
	}
	return fmt.Errorf("unknown action %q", action)
}

func (r *Router) cancel(ctx context.Context, token string) error {
	req, err := r.store.Remove(token)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	r.logger.Info("request_cancelled", "token", token, "chat_id", req.ChatID)
	r.edit(ctx, req.ConfirmationRef, r.texts.Cancelled())
	return nil
}

func (r *Router) confirm(ctx context.Context, token string, actingUserID int64) error {
	req, err := r.store.Get(token)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}
	if req.RequesterID != actingUserID {
		r.logger.Info("confirm_denied", "token", token, "user_id", actingUserID, "requester_id", req.RequesterID)
		return model.ErrPermissionDenied
	}

	// A concurrent confirm may have removed the entry since Get.
	req, err = r.store.Remove(token)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	r.edit(ctx, req.ConfirmationRef, r.texts.Confirmed(req.URL))

	sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
	ref, err := r.transport.SendMessage(sendCtx, req.ChatID, r.texts.Preparing(), nil)
	cancel()
	if err != nil {
		r.logger.Warn("progress_message_failed", "token", token, "error", err.Error())
		ref = req.ConfirmationRef
	}
	req.ProgressRef = ref

	r.logger.Info("request_confirmed", "token", token, "chat_id", req.ChatID, "progress_ref", ref.String())
	r.dispatcher.Dispatch(model.NewDownloadJob(token, req))
	return nil
}

// HandleButton handles an inline button press on message ref and answers
// the callback query with a short notice
func (r *Router) HandleButton(ctx context.Context, callbackID string, ref model.MessageRef, userID int64, data string) error {
	action, token, err := model.ParseCallbackData(data)
	if err != nil {
		r.answer(ctx, callbackID, r.texts.MalformedButton())
		return err
	}

	err = r.Resolve(ctx, token, userID, action)
	switch {
	case err == nil:
		r.answer(ctx, callbackID, "")
	case errors.Is(err, model.ErrPermissionDenied):
		// Toast only: editing the prompt would remove the requester's buttons.
		r.answer(ctx, callbackID, r.texts.PermissionDenied())
	case errors.Is(err, model.ErrInvalidToken) && action == model.ActionCancel:
		r.edit(ctx, ref, r.texts.CancelExpired())
		r.answer(ctx, callbackID, r.texts.CancelExpired())
	case errors.Is(err, model.ErrInvalidToken):
		// The pressed message may already show the winning confirm or be
		// that job's progress message, so it is left as is.
		r.answer(ctx, callbackID, r.texts.InvalidToken())
	default:
		r.answer(ctx, callbackID, r.texts.RequestUnavailable())
	}
	return err
}

func (r *Router) isAllowed(userID int64) bool {
	if r.allowed == nil {
		return true
	}
	_, ok := r.allowed[userID]
	return ok
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if _, err := r.transport.SendMessage(ctx, chatID, text, nil); err != nil {
		return fmt.Errorf("failed to reply: %w", err)
	}
	return nil
}

func (r *Router) edit(ctx context.Context, ref model.MessageRef, text string) {
	if ref.IsZero() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.transport.EditMessage(ctx, ref, text, nil); err != nil {
		r.logger.Warn("edit_failed", "ref", ref.String(), "error", err.Error())
	}
}

func (r *Router) answer(ctx context.Context, callbackID, text string) {
	if callbackID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.transport.AnswerCallback(ctx, callbackID, text); err != nil {
		r.logger.Warn("answer_callback_failed", "error", err.Error())
	}
}

// command returns the bot command at the start of text without any
// @botname suffix, or "" when text is not a command
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name)
}

func newToken() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
