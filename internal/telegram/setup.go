package telegram

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot commands shown in the Telegram client menu
var Commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start the bot"},
	{Command: "help", Description: "How to use the bot"},
	{Command: "download", Description: "Download a video: /download <link>"},
}

// Requester makes raw Bot API calls
type Requester interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// NewBot connects to the Bot API with token
func NewBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// WebhookPath returns the local path the webhook is served on, the path of
// webhookURL, or "/<token>" when the URL carries none
func WebhookPath(webhookURL, token string) string {
	if u, err := url.Parse(webhookURL); err == nil && strings.Trim(u.Path, "/") != "" {
		return u.Path
	}
	return "/" + token
}

// WebhookURL returns the full webhook URL for base, appending "/<token>"
// when base has no path of its own
func WebhookURL(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || strings.Trim(u.Path, "/") != "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + token
}

// SetWebhook registers webhookURL, with an optional secret token
func SetWebhook(api Requester, webhookURL, secret string) error {
	params := tgbotapi.Params{"url": webhookURL}
	if secret != "" {
		params["secret_token"] = secret
	}
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the webhook so long polling can receive updates
func DeleteWebhook(api Requester) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	return nil
}

// RegisterCommands publishes the bot command menu. Failure is only logged.
func RegisterCommands(api Requester, logger *slog.Logger) {
	if _, err := api.Request(tgbotapi.NewSetMyCommands(Commands...)); err != nil {
		logger.Warn("set_commands_failed", "error", err.Error())
	}
}
