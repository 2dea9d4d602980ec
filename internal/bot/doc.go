package bot

// Package bot holds the user-facing texts of the chat bot
