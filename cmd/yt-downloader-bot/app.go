package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytget/yt-downloader-bot/internal/bot"
	"github.com/ytget/yt-downloader-bot/internal/config"
	"github.com/ytget/yt-downloader-bot/internal/download"
	"github.com/ytget/yt-downloader-bot/internal/pending"
	"github.com/ytget/yt-downloader-bot/internal/platform"
	"github.com/ytget/yt-downloader-bot/internal/progress"
	"github.com/ytget/yt-downloader-bot/internal/router"
	"github.com/ytget/yt-downloader-bot/internal/split"
	"github.com/ytget/yt-downloader-bot/internal/telegram"
)

var errMissingToken = errors.New("telegram token is not set (telegram.token, YTBOT_TELEGRAM_TOKEN or TELEGRAM_BOT_TOKEN)")

// botApp holds the wired components shared by the serve and poll commands
type botApp struct {
	settings     *config.Settings
	logger       *slog.Logger
	api          *tgbotapi.BotAPI
	reporter     *progress.Reporter
	orchestrator *download.Orchestrator
	dispatcher   *telegram.Dispatcher
	fetcher      download.Fetcher
	fetchOptions download.FetchOptions
	tempCookies  string
}

func newBotApp(ctx context.Context, settings *config.Settings, logger *slog.Logger) (*botApp, error) {
	token := settings.GetTelegramToken()
	if token == "" {
		return nil, errMissingToken
	}
	allowed, err := settings.GetAllowedUsers()
	if err != nil {
		return nil, err
	}

	if settings.GetInstallYTDLP() {
		if err := download.Install(ctx); err != nil {
			return nil, err
		}
	}

	cookiesFile, tempCookies, err := resolveCookies(settings, logger)
	if err != nil {
		return nil, err
	}

	api, err := telegram.NewBot(token, settings.GetTelegramDebug())
	if err != nil {
		removeCookies(tempCookies, logger)
		return nil, err
	}
	logger.Info("telegram_connected", "bot", api.Self.UserName)

	texts := bot.NewTexts(settings.GetLanguage())
	transport := telegram.NewTransport(api, logger)
	reporter := progress.NewReporter(transport, progress.Options{
		EditInterval: settings.GetEditInterval(),
		Render:       texts.Progress,
		Logger:       logger,
	})
	splitter := split.NewService(split.Options{
		FFmpeg:  settings.GetFFmpeg(),
		FFprobe: settings.GetFFprobe(),
		Logger:  logger,
	})
	fetcher := download.NewYTDLPFetcher(0, logger)
	fetchOptions := download.FetchOptions{
		MaxHeight:   settings.GetMaxHeight(),
		MergeFormat: settings.GetMergeFormat(),
		Retries:     settings.GetRetries(),
		CookiesFile: cookiesFile,
	}
	orchestrator := download.NewOrchestrator(transport, fetcher, splitter, reporter, download.Options{
		WorkRoot:     settings.GetWorkRoot(),
		MaxParallel:  settings.GetMaxParallel(),
		MinFreeBytes: settings.GetMinFreeBytes(),
		Fetch:        fetchOptions,
		Messages:     texts,
		Logger:       logger,
	})
	r := router.NewRouter(pending.NewStore(), transport, orchestrator, router.Options{
		AllowedUsers: allowed,
		Texts:        texts,
		Logger:       logger,
	})
	telegram.RegisterCommands(api, logger)

	return &botApp{
		settings:     settings,
		logger:       logger,
		api:          api,
		reporter:     reporter,
		orchestrator: orchestrator,
		dispatcher:   telegram.NewDispatcher(r, logger),
		fetcher:      fetcher,
		fetchOptions: fetchOptions,
		tempCookies:  tempCookies,
	}, nil
}

// close waits up to timeout for running jobs, then releases resources
func (a *botApp) close(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		a.orchestrator.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		a.logger.Warn("shutdown_jobs_abandoned", "active", a.orchestrator.ActiveJobs())
		for _, job := range a.orchestrator.Jobs() {
			a.logger.Warn("job_abandoned", "job_id", job.ID, "url", job.SourceURL, "status", string(job.Status), "elapsed", job.GetElapsedString())
		}
	}

	a.reporter.Close()
	removeCookies(a.tempCookies, a.logger)
}

// resolveCookies returns the cookies file for the fetch engine and, when it
// was materialised from base64, the temporary path to remove on shutdown
func resolveCookies(settings *config.Settings, logger *slog.Logger) (string, string, error) {
	if file := settings.GetCookiesFile(); file != "" {
		return file, "", nil
	}
	encoded := settings.GetCookiesB64()
	if encoded == "" {
		logger.Warn("cookies_not_configured")
		return "", "", nil
	}
	path, err := platform.WriteCookiesFile(encoded)
	if err != nil {
		return "", "", fmt.Errorf("failed to prepare cookies: %w", err)
	}
	logger.Info("cookies_written", "path", path)
	return path, path, nil
}

func removeCookies(path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("cookies_cleanup_failed", "path", path, "error", err.Error())
	}
}
