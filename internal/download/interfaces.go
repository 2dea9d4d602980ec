package download

import (
	"context"

	"github.com/ytget/yt-downloader-bot/internal/model"
)

// Transport is the part of the chat transport the orchestrator needs
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, buttons []model.Button) (model.MessageRef, error)
	EditMessage(ctx context.Context, ref model.MessageRef, text string, buttons []model.Button) error
	SendFile(ctx context.Context, chatID int64, path string) error
}

// Fetcher downloads a URL into the directory named by the request's output
// template and reports progress samples through onProgress
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest, onProgress func(ProgressEvent)) ([]string, error)
}

// Splitter cuts a file into parts no larger than maxBytes
type Splitter interface {
	Split(ctx context.Context, path string, maxBytes int64) ([]string, error)
}

// ProgressSink receives progress samples for a job's progress message
type ProgressSink interface {
	Sample(ref model.MessageRef, downloaded, total int64, phase model.Phase) bool
	Forget(ref model.MessageRef)
}

// Messages renders the job status texts shown in the chat
type Messages interface {
	Queued() string
	FetchFailed(diagnostic string) string
	NothingDelivered() string
	Completed(delivered int) string
	NoSpace() string
	InternalError() string
}

// FetchOptions tunes the fetch engine
type FetchOptions struct {
	MaxHeight   int    // highest video height to select, 0 for no ceiling
	MergeFormat string // container used when merging video and audio
	Retries     int    // retries and fragment retries
	CookiesFile string // Netscape cookies file, empty for none
}

// FetchRequest describes one fetch
type FetchRequest struct {
	URL            string
	OutputTemplate string
	Options        FetchOptions
}

// ProgressEvent is a progress sample from the fetch engine. Total is zero
// when the engine does not know the size.
type ProgressEvent struct {
	Phase      model.Phase
	Downloaded int64
	Total      int64
	Filename   string
}
