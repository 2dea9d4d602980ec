package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ytget/yt-downloader-bot/internal/config"
	"github.com/ytget/yt-downloader-bot/internal/download"
	"github.com/ytget/yt-downloader-bot/internal/model"
	"github.com/ytget/yt-downloader-bot/internal/platform"
	"github.com/ytget/yt-downloader-bot/internal/progress"
	"github.com/ytget/yt-downloader-bot/internal/split"
)

func newFetchCmd(settings *config.Settings) *cobra.Command {
	var (
		outDir  string
		doSplit bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a link into a directory without Telegram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLoggerFromConfig(loggerConfigFromSettings(settings))
			if err != nil {
				return err
			}
			if !platform.IsValidURL(args[0]) {
				return fmt.Errorf("not an http(s) link: %s", args[0])
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if settings.GetInstallYTDLP() {
				if err := download.Install(ctx); err != nil {
					return err
				}
			}
			if err := platform.CreateDirectoryIfNotExists(outDir); err != nil {
				return err
			}

			cookiesFile, tempCookies, err := resolveCookies(settings, logger)
			if err != nil {
				return err
			}
			defer removeCookies(tempCookies, logger)

			stderr := cmd.ErrOrStderr()
			last := -1
			onProgress := func(ev download.ProgressEvent) {
				percent, ok := progress.Percent(ev.Downloaded, ev.Total)
				if ev.Phase.IsFinal() {
					percent, ok = 100, true
				}
				if !ok || percent <= last {
					return
				}
				last = percent
				fmt.Fprintf(stderr, "\r%s", progress.RenderBar(percent))
				if ev.Phase.IsFinal() {
					fmt.Fprintln(stderr)
				}
			}

			before, err := platform.ListProducedFiles(outDir)
			if err != nil {
				return err
			}

			fetcher := download.NewYTDLPFetcher(0, logger)
			req := download.FetchRequest{
				URL:            args[0],
				OutputTemplate: filepath.Join(outDir, download.OutputTemplateName),
				Options: download.FetchOptions{
					MaxHeight:   settings.GetMaxHeight(),
					MergeFormat: settings.GetMergeFormat(),
					Retries:     settings.GetRetries(),
					CookiesFile: cookiesFile,
				},
			}
			if _, err := fetcher.Fetch(ctx, req, onProgress); err != nil {
				return fmt.Errorf("%w: %v", model.ErrFetchFailure, err)
			}

			after, err := platform.ListProducedFiles(outDir)
			if err != nil {
				return err
			}
			files := newFiles(before, after)
			if len(files) == 0 {
				return model.ErrNoOutputProduced
			}

			splitter := split.NewService(split.Options{
				FFmpeg:  settings.GetFFmpeg(),
				FFprobe: settings.GetFFprobe(),
				Logger:  logger,
			})
			out := cmd.OutOrStdout()
			for _, file := range files {
				if !doSplit {
					fmt.Fprintln(out, file)
					continue
				}
				parts, err := splitter.Split(ctx, file, download.DefaultDeliveryCeiling)
				if err != nil {
					return err
				}
				for _, part := range parts {
					fmt.Fprintln(out, part)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory.")
	cmd.Flags().BoolVar(&doSplit, "split", false, "Split files larger than the Telegram upload limit.")
	cmd.Flags().Int("max-height", config.DefaultMaxHeight, "Highest video height to download (0 for no limit).")
	_ = settings.Viper().BindPFlag(config.KeyMaxHeight, cmd.Flags().Lookup("max-height"))

	return cmd
}

// newFiles returns the entries of after that are not in before, keeping order
func newFiles(before, after []string) []string {
	seen := make(map[string]struct{}, len(before))
	for _, path := range before {
		seen[path] = struct{}{}
	}
	var files []string
	for _, path := range after {
		if _, ok := seen[path]; !ok {
			files = append(files, path)
		}
	}
	return files
}
