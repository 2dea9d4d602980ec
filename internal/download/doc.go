package download

// Package download implements the job pipeline built on top of yt-dlp
// (via github.com/lrstanley/go-ytdlp). It runs each confirmed job on its own
// goroutine, relays progress to the chat, splits oversized output and removes
// the job's work directory on every exit path.
