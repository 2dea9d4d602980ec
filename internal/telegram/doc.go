package telegram

// Package telegram connects the bot to the Telegram Bot API: it sends and
// edits messages, uploads files and feeds webhook or long-poll updates to
// the router.
