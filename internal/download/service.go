package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"

	"github.com/ytget/yt-downloader-bot/internal/bot"
	"github.com/ytget/yt-downloader-bot/internal/model"
	"github.com/ytget/yt-downloader-bot/internal/platform"
	"github.com/ytget/yt-downloader-bot/internal/progress"
)

// Delivery limits
const (
	// DefaultDeliveryCeiling is the largest file the chat accepts
	DefaultDeliveryCeiling int64 = 50 * 1024 * 1024
	// DiagnosticMaxRunes bounds the error text shown to the user
	DiagnosticMaxRunes = 200
	// OutputTemplateName is the fetch engine's file name template inside a work dir
	OutputTemplateName = "%(title)s.%(ext)s"
	// DefaultMessageTimeout bounds a single status edit or file upload
	DefaultMessageTimeout = 2 * time.Minute
)

// ErrInsufficientSpace is returned when the work root is below the free space floor
var ErrInsufficientSpace = errors.New("insufficient disk space")

// Options configures the orchestrator
type Options struct {
	WorkRoot        string
	MaxParallel     int    // 0 runs every job at once
	MinFreeBytes    uint64 // 0 disables the free space check
	DeliveryCeiling int64
	MessageTimeout  time.Duration
	Fetch           FetchOptions
	Messages        Messages
	Logger          *slog.Logger

	// OnFinish is called with the result of every job
	OnFinish func(JobResult)
	// FreeSpace reports free bytes at a path, platform.FreeBytes by default
	FreeSpace func(path string) (uint64, error)
}

// JobResult summarizes a finished job
type JobResult struct {
	JobID     string
	Status    model.JobStatus
	Delivered int
	WorkDir   string
	Err       error
}

// Orchestrator runs download jobs
type Orchestrator struct {
	transport Transport
	fetcher   Fetcher
	splitter  Splitter
	progress  ProgressSink
	opts      Options
	logger    *slog.Logger
	slots     *semaphore.Weighted
	jobs      map[string]*model.DownloadJob
	jobsMutex sync.RWMutex
	wg        sync.WaitGroup
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(transport Transport, fetcher Fetcher, splitter Splitter, sink ProgressSink, opts Options) *Orchestrator {
	if opts.DeliveryCeiling <= 0 {
		opts.DeliveryCeiling = DefaultDeliveryCeiling
	}
	if opts.MessageTimeout <= 0 {
		opts.MessageTimeout = DefaultMessageTimeout
	}
	if opts.Messages == nil {
		opts.Messages = bot.NewTexts(bot.DefaultLanguage)
	}
	if opts.FreeSpace == nil {
		opts.FreeSpace = platform.FreeBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		transport: transport,
		fetcher:   fetcher,
		splitter:  splitter,
		progress:  sink,
		opts:      opts,
		logger:    logger,
		jobs:      make(map[string]*model.DownloadJob),
	}
	if opts.MaxParallel > 0 {
		o.slots = semaphore.NewWeighted(int64(opts.MaxParallel))
	} else {
		logger.Warn("download_pool_unbounded", "reason", "max_parallel is 0, every confirmed job starts at once")
	}
	return o
}

// Dispatch starts job on a new goroutine and returns immediately. With a
// bounded pool the job first waits for a free slot and its progress message
// shows that it is queued.
func (o *Orchestrator) Dispatch(job *model.DownloadJob) {
	o.track(job)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx := context.Background()

		if o.slots != nil {
			if !o.slots.TryAcquire(1) {
				o.updateJob(job, func(j *model.DownloadJob) { j.SetStatus(model.JobStatusQueued) })
				o.editStatus(ctx, job, o.opts.Messages.Queued())
				if err := o.slots.Acquire(ctx, 1); err != nil {
					return
				}
			}
			defer o.slots.Release(1)
		}

		o.Run(ctx, job)
	}()
}

// Wait blocks until every dispatched job has finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Jobs returns snapshots of the jobs that have not finished yet
func (o *Orchestrator) Jobs() []model.DownloadJob {
	o.jobsMutex.RLock()
	defer o.jobsMutex.RUnlock()
	jobs := make([]model.DownloadJob, 0, len(o.jobs))
	for _, job := range o.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// ActiveJobs returns the number of jobs that have not finished yet
func (o *Orchestrator) ActiveJobs() int {
	o.jobsMutex.RLock()
	defer o.jobsMutex.RUnlock()
	return len(o.jobs)
}

// Run executes job to completion on the calling goroutine: fetch, split,
// deliver, remove the work dir and post the final status. Panics are
// recovered and reported as a failed job.
func (o *Orchestrator) Run(ctx context.Context, job *model.DownloadJob) (result JobResult) {
	o.track(job)
	logger := o.logger.With("job_id", job.ID, "chat_id", job.ChatID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job_panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err := fmt.Errorf("panic: %v", r)
			o.updateJob(job, func(j *model.DownloadJob) {
				j.SetStatus(model.JobStatusFailed)
				j.LastError = err.Error()
			})
			o.finalEdit(ctx, job, o.opts.Messages.InternalError())
			result = o.resultOf(job, err)
		}
		o.untrack(job)
		logger.Info("job_finished",
			"status", result.Status.String(),
			"delivered", result.Delivered,
			"elapsed", job.GetElapsedString(),
		)
		if o.opts.OnFinish != nil {
			o.opts.OnFinish(result)
		}
	}()

	logger.Info("job_started", "url", job.SourceURL)
	err := o.execute(ctx, job, logger)

	if err != nil {
		o.updateJob(job, func(j *model.DownloadJob) {
			j.SetStatus(model.JobStatusFailed)
			j.LastError = Truncate(err.Error(), DiagnosticMaxRunes)
		})
		logger.Warn("job_failed", "error", err.Error())
	} else {
		o.updateJob(job, func(j *model.DownloadJob) { j.SetStatus(model.JobStatusCompleted) })
	}

	o.finalEdit(ctx, job, o.finalText(job, err))
	return o.resultOf(job, err)
}

// execute runs the job steps. The work dir is removed before it returns.
func (o *Orchestrator) execute(ctx context.Context, job *model.DownloadJob, logger *slog.Logger) error {
	if err := o.checkFreeSpace(logger); err != nil {
		return err
	}

	workDir, err := platform.AllocateWorkDir(o.opts.WorkRoot)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrFetchFailure, err)
	}
	o.updateJob(job, func(j *model.DownloadJob) { j.WorkDir = workDir })
	defer func() {
		if err := platform.RemoveWorkDir(workDir); err != nil {
			logger.Error("cleanup_failed", "work_dir", workDir, "error", err.Error())
		}
	}()

	o.updateJob(job, func(j *model.DownloadJob) { j.SetStatus(model.JobStatusFetching) })
	req := FetchRequest{
		URL:            job.SourceURL,
		OutputTemplate: filepath.Join(workDir, OutputTemplateName),
		Options:        o.opts.Fetch,
	}
	reported, err := o.fetcher.Fetch(ctx, req, func(ev ProgressEvent) {
		o.onProgress(job, ev)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrFetchFailure, err)
	}

	files, err := platform.ListProducedFiles(workDir)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrFetchFailure, err)
	}
	if len(files) == 0 {
		return model.ErrNoOutputProduced
	}
	logger.Info("fetch_done", "files", len(files), "reported", len(reported))
	o.updateJob(job, func(j *model.DownloadJob) {
		j.ProducedFiles = files
		j.SetStatus(model.JobStatusDelivering)
	})

	if delivered := o.deliver(ctx, job, files, logger); delivered == 0 {
		return fmt.Errorf("%w: nothing delivered", model.ErrDeliveryFailure)
	}
	return nil
}

// deliver sends every produced file, split into parts when it is over the
// ceiling. Failures skip the file or part and the batch continues.
func (o *Orchestrator) deliver(ctx context.Context, job *model.DownloadJob, files []string, logger *slog.Logger) int {
	delivered := 0
	for _, file := range files {
		parts, err := o.partsOf(ctx, file)
		if err != nil {
			logger.Error("split_failed", "file", filepath.Base(file), "error", err.Error())
			continue
		}

		for _, part := range parts {
			sendCtx, cancel := context.WithTimeout(ctx, o.opts.MessageTimeout)
			err := o.transport.SendFile(sendCtx, job.ChatID, part)
			cancel()
			if err != nil {
				err = fmt.Errorf("%w: %v", model.ErrDeliveryFailure, err)
				logger.Error("delivery_failed", "file", filepath.Base(part), "error", err.Error())
				continue
			}
			delivered++
			o.updateJob(job, func(j *model.DownloadJob) { j.Delivered = delivered })
		}
	}
	return delivered
}

// partsOf returns file itself when it fits the ceiling, its parts otherwise
func (o *Orchestrator) partsOf(ctx context.Context, file string) ([]string, error) {
	size, err := platform.FileSize(file)
	if err != nil {
		return nil, err
	}
	if size <= o.opts.DeliveryCeiling {
		return []string{file}, nil
	}
	if o.splitter == nil {
		return nil, fmt.Errorf("%w: no splitter for %d byte file", model.ErrSplitFailure, size)
	}
	return o.splitter.Split(ctx, file, o.opts.DeliveryCeiling)
}

func (o *Orchestrator) checkFreeSpace(logger *slog.Logger) error {
	if o.opts.MinFreeBytes == 0 {
		return nil
	}
	root := o.opts.WorkRoot
	if root == "" {
		root = platform.GetDefaultWorkRoot()
	}
	free, err := o.opts.FreeSpace(root)
	if err != nil {
		logger.Warn("free_space_unknown", "work_root", root, "error", err.Error())
		return nil
	}
	if free < o.opts.MinFreeBytes {
		return fmt.Errorf("%w: %d bytes free under %s", ErrInsufficientSpace, free, root)
	}
	return nil
}

func (o *Orchestrator) onProgress(job *model.DownloadJob, ev ProgressEvent) {
	if o.progress == nil {
		return
	}
	if !o.progress.Sample(job.ProgressRef, ev.Downloaded, ev.Total, ev.Phase) {
		return
	}
	percent, ok := progress.Percent(ev.Downloaded, ev.Total)
	if !ok {
		percent = 100
	}
	o.updateJob(job, func(j *model.DownloadJob) {
		if percent > j.LastReportedPercent {
			j.LastReportedPercent = percent
		}
		j.LastReportedAt = time.Now()
	})
}

func (o *Orchestrator) finalText(job *model.DownloadJob, err error) string {
	switch {
	case err == nil:
		return o.opts.Messages.Completed(job.Delivered)
	case errors.Is(err, ErrInsufficientSpace):
		return o.opts.Messages.NoSpace()
	case errors.Is(err, model.ErrFetchFailure), errors.Is(err, model.ErrNoOutputProduced):
		return o.opts.Messages.FetchFailed(Truncate(err.Error(), DiagnosticMaxRunes))
	default:
		return o.opts.Messages.NothingDelivered()
	}
}

// finalEdit flushes queued progress edits and then posts text, so the final
// status is the last edit of the progress message
func (o *Orchestrator) finalEdit(ctx context.Context, job *model.DownloadJob, text string) {
	if o.progress != nil && !job.ProgressRef.IsZero() {
		o.progress.Forget(job.ProgressRef)
	}
	o.editStatus(ctx, job, text)
}

// editStatus edits the progress message, or sends a new message when the job has none
func (o *Orchestrator) editStatus(ctx context.Context, job *model.DownloadJob, text string) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.MessageTimeout)
	defer cancel()

	if job.ProgressRef.IsZero() {
		if _, err := o.transport.SendMessage(ctx, job.ChatID, text, nil); err != nil {
			o.logger.Warn("status_send_failed", "job_id", job.ID, "error", err.Error())
		}
		return
	}
	if err := o.transport.EditMessage(ctx, job.ProgressRef, text, nil); err != nil {
		o.logger.Warn("status_edit_failed", "job_id", job.ID, "ref", job.ProgressRef.String(), "error", err.Error())
	}
}

func (o *Orchestrator) resultOf(job *model.DownloadJob, err error) JobResult {
	o.jobsMutex.RLock()
	defer o.jobsMutex.RUnlock()
	return JobResult{
		JobID:     job.ID,
		Status:    job.Status,
		Delivered: job.Delivered,
		WorkDir:   job.WorkDir,
		Err:       err,
	}
}

func (o *Orchestrator) track(job *model.DownloadJob) {
	o.jobsMutex.Lock()
	defer o.jobsMutex.Unlock()
	o.jobs[job.ID] = job
}

func (o *Orchestrator) untrack(job *model.DownloadJob) {
	o.jobsMutex.Lock()
	defer o.jobsMutex.Unlock()
	delete(o.jobs, job.ID)
}

// updateJob mutates job under the jobs lock so Jobs snapshots are consistent
func (o *Orchestrator) updateJob(job *model.DownloadJob, fn func(*model.DownloadJob)) {
	o.jobsMutex.Lock()
	defer o.jobsMutex.Unlock()
	fn(job)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
