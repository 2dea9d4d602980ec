package download

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/ytget/yt-downloader-bot/internal/model"
)

// yt-dlp defaults
const (
	DefaultMaxHeight           = 720
	DefaultMergeFormat         = "mp4"
	DefaultRetries             = 10
	DefaultConcurrentFragments = 2
	DefaultProgressInterval    = 500 * time.Millisecond
)

// YTDLPFetcher fetches media with the yt-dlp executable
type YTDLPFetcher struct {
	progressInterval time.Duration
	logger           *slog.Logger
}

// NewYTDLPFetcher creates a fetcher that samples progress every interval
func NewYTDLPFetcher(interval time.Duration, logger *slog.Logger) *YTDLPFetcher {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLPFetcher{progressInterval: interval, logger: logger}
}

// Install makes sure a yt-dlp executable is available, downloading it into
// the user cache when it is missing from PATH
func Install(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("failed to install yt-dlp: %w", err)
	}
	return nil
}

// Fetch runs yt-dlp for req and returns the files it reported
func (f *YTDLPFetcher) Fetch(ctx context.Context, req FetchRequest, onProgress func(ProgressEvent)) ([]string, error) {
	dl := f.command(req)

	if onProgress != nil {
		dl.ProgressFunc(f.progressInterval, func(update ytdlp.ProgressUpdate) {
			ev, ok := toProgressEvent(update)
			if ok {
				onProgress(ev)
			}
		})
	}

	result, err := dl.Run(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	var files []string
	if result != nil {
		info, err := result.GetExtractedInfo()
		if err != nil {
			f.logger.Debug("ytdlp_info_unavailable", "url", req.URL, "error", err.Error())
			return nil, nil
		}
		for _, item := range info {
			if item.Filename != nil && *item.Filename != "" {
				files = append(files, *item.Filename)
			}
		}
	}
	return files, nil
}

// command configures yt-dlp for req
func (f *YTDLPFetcher) command(req FetchRequest) *ytdlp.Command {
	opts := req.Options
	mergeFormat := opts.MergeFormat
	if mergeFormat == "" {
		mergeFormat = DefaultMergeFormat
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}

	dl := ytdlp.New().
		Output(req.OutputTemplate).
		Format(BuildFormat(opts.MaxHeight)).
		MergeOutputFormat(mergeFormat).
		Retries(strconv.Itoa(retries)).
		FragmentRetries(strconv.Itoa(retries)).
		ConcurrentFragments(DefaultConcurrentFragments).
		ForceIPv4().
		RestrictFilenames().
		NoPlaylist()

	if opts.CookiesFile != "" {
		dl = dl.Cookies(opts.CookiesFile)
	}
	return dl
}

// BuildFormat returns the yt-dlp format selector capped at maxHeight
func BuildFormat(maxHeight int) string {
	if maxHeight <= 0 {
		return "bestvideo+bestaudio/best"
	}
	return fmt.Sprintf("best[height<=%d]+bestaudio/best", maxHeight)
}

// toProgressEvent maps a yt-dlp update to a progress sample. Updates that
// are neither downloading nor finished carry no progress.
func toProgressEvent(update ytdlp.ProgressUpdate) (ProgressEvent, bool) {
	var phase model.Phase
	switch update.Status {
	case ytdlp.ProgressStatusDownloading:
		phase = model.PhaseDownloading
	case ytdlp.ProgressStatusFinished:
		phase = model.PhaseFinished
	default:
		return ProgressEvent{}, false
	}

	return ProgressEvent{
		Phase:      phase,
		Downloaded: int64(update.DownloadedBytes),
		Total:      int64(update.TotalBytes),
		Filename:   update.Filename,
	}, true
}
