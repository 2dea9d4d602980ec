package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ytget/yt-downloader-bot/internal/bot"
	"github.com/ytget/yt-downloader-bot/internal/model"
	"github.com/ytget/yt-downloader-bot/internal/progress"
)

const mib = 1024 * 1024

type fakeTransport struct {
	mu        sync.Mutex
	messages  []string
	edits     []string
	files     []string
	failFiles map[string]bool
}

func (f *fakeTransport) SendMessage(ctx context.Context, chatID int64, text string, buttons []model.Button) (model.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return model.MessageRef{ChatID: chatID, MessageID: 1000 + len(f.messages)}, nil
}

func (f *fakeTransport) EditMessage(ctx context.Context, ref model.MessageRef, text string, buttons []model.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) SendFile(ctx context.Context, chatID int64, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFiles[filepath.Base(path)] {
		return errors.New("Request Entity Too Large")
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	f.files = append(f.files, filepath.Base(path))
	return nil
}

func (f *fakeTransport) snapshot() (edits, files []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.edits...), append([]string(nil), f.files...)
}

// fakeFetcher writes files of the given sizes into the work dir
type fakeFetcher struct {
	files  map[string]int64
	events []ProgressEvent
	err    error
	panics bool

	mu       sync.Mutex
	requests []FetchRequest
}

func (f *fakeFetcher) Fetch(ctx context.Context, req FetchRequest, onProgress func(ProgressEvent)) ([]string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.panics {
		panic("engine exploded")
	}
	for _, ev := range f.events {
		onProgress(ev)
	}
	if f.err != nil {
		return nil, f.err
	}

	dir := filepath.Dir(req.OutputTemplate)
	var paths []string
	for name, size := range f.files {
		path := filepath.Join(dir, name)
		if err := sparseFile(path, size); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// fakeSplitter cuts files into maxBytes*9/10 parts next to the input
type fakeSplitter struct {
	err   error
	calls []string
}

func (f *fakeSplitter) Split(ctx context.Context, path string, maxBytes int64) ([]string, error) {
	f.calls = append(f.calls, filepath.Base(path))
	if f.err != nil {
		return nil, f.err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	limit := maxBytes * 9 / 10
	var parts []string
	for offset, i := int64(0), 0; offset < info.Size(); offset, i = offset+limit, i+1 {
		size := min(limit, info.Size()-offset)
		part := filepath.Join(filepath.Dir(path), fmt.Sprintf("part%03d.mp4", i))
		if err := sparseFile(part, size); err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

func sparseFile(path string, size int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(size)
}

type harness struct {
	transport *fakeTransport
	fetcher   *fakeFetcher
	splitter  *fakeSplitter
	reporter  *progress.Reporter
	orch      *Orchestrator
	root      string
}

func newHarness(t *testing.T, fetcher *fakeFetcher, opts Options) *harness {
	t.Helper()
	h := &harness{
		transport: &fakeTransport{failFiles: map[string]bool{}},
		fetcher:   fetcher,
		splitter:  &fakeSplitter{},
		root:      t.TempDir(),
	}
	texts := bot.NewTexts(bot.LanguageEnglish)
	h.reporter = progress.NewReporter(h.transport, progress.Options{Render: texts.Progress})
	t.Cleanup(h.reporter.Close)

	opts.WorkRoot = h.root
	opts.Messages = texts
	h.orch = NewOrchestrator(h.transport, fetcher, h.splitter, h.reporter, opts)
	return h
}

func newJob(id string) *model.DownloadJob {
	return model.NewDownloadJob(id, model.PendingRequest{
		URL:         "https://example.com/v/123",
		ChatID:      42,
		RequesterID: 7,
		ProgressRef: model.MessageRef{ChatID: 42, MessageID: 100},
	})
}

func assertWorkDirRemoved(t *testing.T, result JobResult) {
	t.Helper()
	if result.WorkDir == "" {
		return
	}
	if _, err := os.Stat(result.WorkDir); !os.IsNotExist(err) {
		t.Errorf("Expected work dir %s to be removed, stat error: %v", result.WorkDir, err)
	}
}

func TestRun_OversizedFileDeliveredAsOrderedParts(t *testing.T) {
	fetcher := &fakeFetcher{
		files: map[string]int64{"video.mp4": 80 * mib},
		events: []ProgressEvent{
			{Phase: model.PhaseDownloading, Downloaded: 40 * mib, Total: 80 * mib},
			{Phase: model.PhaseFinished, Downloaded: 80 * mib, Total: 80 * mib},
		},
	}
	h := newHarness(t, fetcher, Options{})

	result := h.orch.Run(context.Background(), newJob("job-c"))

	if result.Err != nil {
		t.Fatalf("Expected no error, got %v", result.Err)
	}
	if result.Status != model.JobStatusCompleted {
		t.Errorf("Expected status Completed, got %s", result.Status)
	}
	if result.Delivered != 2 {
		t.Errorf("Expected 2 deliveries, got %d", result.Delivered)
	}

	edits, files := h.transport.snapshot()
	if strings.Join(files, ",") != "part000.mp4,part001.mp4" {
		t.Errorf("Expected ordered parts, got %v", files)
	}
	if len(h.splitter.calls) != 1 || h.splitter.calls[0] != "video.mp4" {
		t.Errorf("Expected one split of video.mp4, got %v", h.splitter.calls)
	}
	if len(edits) == 0 || edits[len(edits)-1] != "✅ All 2 parts sent successfully!" {
		t.Errorf("Expected success as last edit, got %v", edits)
	}
	assertWorkDirRemoved(t, result)
}

func TestRun_SmallFileDeliveredWhole(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]int64{"clip.mp4": 10 * mib}}
	h := newHarness(t, fetcher, Options{})

	result := h.orch.Run(context.Background(), newJob("job-small"))

	_, files := h.transport.snapshot()
	if len(files) != 1 || files[0] != "clip.mp4" {
		t.Errorf("Expected clip.mp4 delivered whole, got %v", files)
	}
	if len(h.splitter.calls) != 0 {
		t.Errorf("Expected no split, got %v", h.splitter.calls)
	}
	if result.Status != model.JobStatusCompleted {
		t.Errorf("Expected Completed, got %s", result.Status)
	}
	assertWorkDirRemoved(t, result)
}

func TestRun_FetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("ERROR: unable to download webpage: connection reset")}
	h := newHarness(t, fetcher, Options{})

	result := h.orch.Run(context.Background(), newJob("job-d"))

	if !errors.Is(result.Err, model.ErrFetchFailure) {
		t.Fatalf("Expected ErrFetchFailure, got %v", result.Err)
	}
	if result.Status != model.JobStatusFailed {
		t.Errorf("Expected Failed, got %s", result.Status)
	}

	edits, files := h.transport.snapshot()
	if len(files) != 0 {
		t.Errorf("Expected no delivery attempt, got %v", files)
	}
	last := edits[len(edits)-1]
	if !strings.HasPrefix(last, "⚠️ Download error:") || !strings.Contains(last, "connection reset") {
		t.Errorf("Expected failure edit, got %q", last)
	}
	assertWorkDirRemoved(t, result)
	if h.orch.ActiveJobs() != 0 {
		t.Errorf("Expected no tracked jobs, got %d", h.orch.ActiveJobs())
	}
}

func TestRun_NoOutputProduced(t *testing.T) {
	h := newHarness(t, &fakeFetcher{}, Options{})

	result := h.orch.Run(context.Background(), newJob("job-empty"))

	if !errors.Is(result.Err, model.ErrNoOutputProduced) {
		t.Fatalf("Expected ErrNoOutputProduced, got %v", result.Err)
	}
	assertWorkDirRemoved(t, result)
}

func TestRun_SplitFailureSkipsFileOnly(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]int64{"big.mp4": 80 * mib, "small.mp4": mib}}
	h := newHarness(t, fetcher, Options{})
	h.splitter.err = fmt.Errorf("%w: ffmpeg exited 1", model.ErrSplitFailure)

	result := h.orch.Run(context.Background(), newJob("job-split"))

	_, files := h.transport.snapshot()
	if len(files) != 1 || files[0] != "small.mp4" {
		t.Errorf("Expected only small.mp4 delivered, got %v", files)
	}
	if result.Status != model.JobStatusCompleted || result.Delivered != 1 {
		t.Errorf("Expected Completed with 1 delivery, got %s/%d", result.Status, result.Delivered)
	}
	assertWorkDirRemoved(t, result)
}

func TestRun_AllDeliveriesFail(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]int64{"a.mp4": mib, "b.mp4": mib}}
	h := newHarness(t, fetcher, Options{})
	h.transport.failFiles["a.mp4"] = true
	h.transport.failFiles["b.mp4"] = true

	result := h.orch.Run(context.Background(), newJob("job-deliver"))

	if !errors.Is(result.Err, model.ErrDeliveryFailure) {
		t.Fatalf("Expected ErrDeliveryFailure, got %v", result.Err)
	}
	edits, _ := h.transport.snapshot()
	if edits[len(edits)-1] != "⚠️ Failed: nothing was delivered." {
		t.Errorf("Unexpected final edit %q", edits[len(edits)-1])
	}
	assertWorkDirRemoved(t, result)
}

func TestRun_DeliveryFailureContinuesBatch(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]int64{"a.mp4": mib, "b.mp4": mib}}
	h := newHarness(t, fetcher, Options{})
	h.transport.failFiles["a.mp4"] = true

	result := h.orch.Run(context.Background(), newJob("job-partial"))

	if result.Err != nil || result.Delivered != 1 {
		t.Errorf("Expected success with 1 delivery, got %v/%d", result.Err, result.Delivered)
	}
}

func TestRun_PanicRecovered(t *testing.T) {
	h := newHarness(t, &fakeFetcher{panics: true}, Options{})

	result := h.orch.Run(context.Background(), newJob("job-panic"))

	if result.Err == nil || result.Status != model.JobStatusFailed {
		t.Fatalf("Expected failed result, got %+v", result)
	}
	edits, _ := h.transport.snapshot()
	if edits[len(edits)-1] != "❌ An internal error occurred while processing the video." {
		t.Errorf("Unexpected final edit %q", edits[len(edits)-1])
	}
	assertWorkDirRemoved(t, result)

	entries, err := os.ReadDir(h.root)
	if err != nil {
		t.Fatalf("Failed to read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty work root, got %d entries", len(entries))
	}
}

func TestRun_InsufficientSpace(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]int64{"a.mp4": mib}}
	h := newHarness(t, fetcher, Options{
		MinFreeBytes: 1 << 30,
		FreeSpace:    func(string) (uint64, error) { return 1 << 20, nil },
	})

	result := h.orch.Run(context.Background(), newJob("job-space"))

	if !errors.Is(result.Err, ErrInsufficientSpace) {
		t.Fatalf("Expected ErrInsufficientSpace, got %v", result.Err)
	}
	if len(fetcher.requests) != 0 {
		t.Error("Expected no fetch when disk is full")
	}
	edits, _ := h.transport.snapshot()
	if edits[len(edits)-1] != "⚠️ The server is out of disk space. Try again later." {
		t.Errorf("Unexpected final edit %q", edits[len(edits)-1])
	}
}

func TestRun_FetchRequest(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]int64{"a.mp4": mib}}
	h := newHarness(t, fetcher, Options{Fetch: FetchOptions{MaxHeight: 720, CookiesFile: "/tmp/c.txt"}})

	result := h.orch.Run(context.Background(), newJob("job-req"))

	if len(fetcher.requests) != 1 {
		t.Fatalf("Expected one fetch, got %d", len(fetcher.requests))
	}
	req := fetcher.requests[0]
	if req.URL != "https://example.com/v/123" {
		t.Errorf("Unexpected URL %s", req.URL)
	}
	if req.OutputTemplate != filepath.Join(result.WorkDir, OutputTemplateName) {
		t.Errorf("Unexpected output template %s", req.OutputTemplate)
	}
	if !strings.HasPrefix(result.WorkDir, h.root) {
		t.Errorf("Expected work dir under %s, got %s", h.root, result.WorkDir)
	}
	if req.Options.MaxHeight != 720 || req.Options.CookiesFile != "/tmp/c.txt" {
		t.Errorf("Unexpected options %+v", req.Options)
	}
}

func TestRun_ProgressEditsBeforeFinal(t *testing.T) {
	fetcher := &fakeFetcher{
		files: map[string]int64{"a.mp4": mib},
		events: []ProgressEvent{
			{Phase: model.PhaseDownloading, Downloaded: 13, Total: 100},
			{Phase: model.PhaseDownloading, Downloaded: 13, Total: 100},
			{Phase: model.PhaseDownloading, Downloaded: 27, Total: 100},
			{Phase: model.PhaseFinished, Downloaded: 100, Total: 100},
		},
	}
	h := newHarness(t, fetcher, Options{})
	job := newJob("job-progress")

	h.orch.Run(context.Background(), job)

	edits, _ := h.transport.snapshot()
	if len(edits) != 4 {
		t.Fatalf("Expected 3 progress edits and a final edit, got %d: %v", len(edits), edits)
	}
	if !strings.Contains(edits[0], "13%") || !strings.Contains(edits[1], "27%") || !strings.Contains(edits[2], "100%") {
		t.Errorf("Unexpected progress edits %v", edits[:3])
	}
	if edits[3] != "✅ Video sent successfully!" {
		t.Errorf("Unexpected final edit %q", edits[3])
	}
	if job.LastReportedPercent != 100 {
		t.Errorf("Expected last reported percent 100, got %d", job.LastReportedPercent)
	}
}

func TestDispatch_DoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	fetcher := &blockingFetcher{release: release}
	h := newHarness(t, nil, Options{})
	h.orch.fetcher = fetcher

	start := time.Now()
	for i := 0; i < 5; i++ {
		h.orch.Dispatch(newJob(fmt.Sprintf("job-%d", i)))
	}
	if time.Since(start) > time.Second {
		t.Error("Dispatch blocked the caller")
	}

	close(release)
	h.orch.Wait()
	if h.orch.ActiveJobs() != 0 {
		t.Errorf("Expected all jobs finished, got %d active", h.orch.ActiveJobs())
	}
}

func TestDispatch_BoundedPoolQueuesJobs(t *testing.T) {
	release := make(chan struct{})
	fetcher := &blockingFetcher{release: release}
	var (
		mu      sync.Mutex
		results []JobResult
	)
	h := newHarness(t, nil, Options{
		MaxParallel: 1,
		OnFinish: func(r JobResult) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		},
	})
	h.orch.fetcher = fetcher

	h.orch.Dispatch(newJob("first"))
	fetcher.waitStarted(t, 1)
	h.orch.Dispatch(newJob("second"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		status := model.JobStatus("")
		for _, job := range h.orch.Jobs() {
			if job.ID == "second" {
				status = job.Status
			}
		}
		if status == model.JobStatusQueued {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected second job to be queued, got %q", status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if fetcher.startedCount() != 1 {
		t.Errorf("Expected one running fetch, got %d", fetcher.startedCount())
	}

	close(release)
	h.orch.Wait()

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	edits, _ := h.transport.snapshot()
	found := false
	for _, edit := range edits {
		if strings.HasPrefix(edit, "⏳ Queued") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a queued edit, got %v", edits)
	}
}

type blockingFetcher struct {
	release chan struct{}
	mu      sync.Mutex
	started int
}

func (f *blockingFetcher) Fetch(ctx context.Context, req FetchRequest, onProgress func(ProgressEvent)) ([]string, error) {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()

	<-f.release
	path := filepath.Join(filepath.Dir(req.OutputTemplate), "out.mp4")
	return []string{path}, sparseFile(path, 1024)
}

func (f *blockingFetcher) startedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *blockingFetcher) waitStarted(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.startedCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d fetches to start", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		n        int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 8, "this is…"},
		{"ação inválida", 4, "açã…"},
		{"anything", 0, ""},
	}

	for _, test := range tests {
		if got := Truncate(test.input, test.n); got != test.expected {
			t.Errorf("Truncate(%q, %d) = %q, expected %q", test.input, test.n, got, test.expected)
		}
	}
}
