package progress

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ytget/yt-downloader-bot/internal/model"
)

// Progress bar rendering
const (
	BarCells       = 20
	PercentPerCell = 100 / BarCells
	FilledCell     = "█"
	EmptyCell      = "░"
)

// DefaultEditTimeout bounds a single transport edit
const DefaultEditTimeout = 15 * time.Second

// Editor is the part of the chat transport the reporter needs
type Editor interface {
	EditMessage(ctx context.Context, ref model.MessageRef, text string, buttons []model.Button) error
}

// RenderFunc turns a percent and phase into the message text
type RenderFunc func(percent int, phase model.Phase) string

// Options configures a Reporter
type Options struct {
	// EditInterval paces edits to the same message. Zero disables pacing.
	// Paced edits wait; they are never dropped.
	EditInterval time.Duration
	EditTimeout  time.Duration
	Render       RenderFunc
	Logger       *slog.Logger
}

// Reporter relays progress samples to a fixed chat message per job. Samples
// are throttled to one edit per distinct percent; edits for the same message
// are applied by a single writer goroutine in submission order.
type Reporter struct {
	editor  Editor
	opts    Options
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	writers map[model.MessageRef]*writer
	closed  bool
}

type edit struct {
	text string
	done chan struct{} // flush marker when non-nil
}

type writer struct {
	ref     model.MessageRef
	last    int
	mu      sync.Mutex
	queue   []edit
	signal  chan struct{}
	stopped chan struct{}
	limiter *rate.Limiter
}

// NewReporter creates a reporter that edits messages through editor
func NewReporter(editor Editor, opts Options) *Reporter {
	if opts.EditTimeout <= 0 {
		opts.EditTimeout = DefaultEditTimeout
	}
	if opts.Render == nil {
		opts.Render = func(percent int, _ model.Phase) string { return RenderBar(percent) }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reporter{
		editor:  editor,
		opts:    opts,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		writers: make(map[model.MessageRef]*writer),
	}
}

// Report submits a sample for ref. It never blocks on the transport and
// returns true if the sample produced an edit.
func (r *Reporter) Report(ref model.MessageRef, percent int, phase model.Phase) bool {
	percent = clampPercent(percent)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || ref.IsZero() {
		return false
	}

	w := r.writerLocked(ref)
	if phase.IsFinal() {
		if percent < w.last {
			percent = w.last
		}
		w.last = percent
		w.push(edit{text: r.opts.Render(percent, phase)})
		return true
	}

	// Percent only moves forward on screen: a fetch that restarts its
	// counter for a second stream keeps showing the highest value so far.
	if percent <= w.last {
		return false
	}
	w.last = percent
	w.push(edit{text: r.opts.Render(percent, phase)})
	return true
}

// Sample converts a byte-level observation into a percent and reports it.
// Samples with an unknown total only produce an edit when final.
func (r *Reporter) Sample(ref model.MessageRef, downloaded, total int64, phase model.Phase) bool {
	percent, ok := Percent(downloaded, total)
	if !ok && !phase.IsFinal() {
		return false
	}
	if !ok {
		percent = 100
	}
	return r.Report(ref, percent, phase)
}

// Flush waits until every edit submitted for ref so far has been applied
func (r *Reporter) Flush(ref model.MessageRef) {
	r.mu.Lock()
	w, exists := r.writers[ref]
	if !exists {
		r.mu.Unlock()
		return
	}
	done := make(chan struct{})
	w.push(edit{done: done})
	r.mu.Unlock()

	select {
	case <-done:
	case <-w.stopped:
	}
}

// Forget flushes ref and releases its writer
func (r *Reporter) Forget(ref model.MessageRef) {
	r.Flush(ref)

	r.mu.Lock()
	w, exists := r.writers[ref]
	if exists {
		delete(r.writers, ref)
	}
	r.mu.Unlock()

	if exists {
		w.stop()
	}
}

// Close flushes all writers and stops accepting samples
func (r *Reporter) Close() {
	r.mu.Lock()
	r.closed = true
	refs := make([]model.MessageRef, 0, len(r.writers))
	for ref := range r.writers {
		refs = append(refs, ref)
	}
	r.mu.Unlock()

	for _, ref := range refs {
		r.Forget(ref)
	}
	r.cancel()
}

// writerLocked returns the writer for ref, starting it if needed. r.mu must be held.
func (r *Reporter) writerLocked(ref model.MessageRef) *writer {
	if w, exists := r.writers[ref]; exists {
		return w
	}
	w := &writer{
		ref:     ref,
		last:    -1,
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	if r.opts.EditInterval > 0 {
		w.limiter = rate.NewLimiter(rate.Every(r.opts.EditInterval), 1)
	}
	r.writers[ref] = w
	go r.run(w)
	return w
}

// run is the single writer for one message
func (r *Reporter) run(w *writer) {
	defer close(w.stopped)

	for {
		select {
		case <-r.ctx.Done():
			return
		case _, ok := <-w.signal:
			if !ok {
				w.drain(func(e edit) { r.apply(w, e) })
				return
			}
			w.drain(func(e edit) { r.apply(w, e) })
		}
	}
}

func (r *Reporter) apply(w *writer, e edit) {
	if e.done != nil {
		close(e.done)
		return
	}
	if w.limiter != nil {
		if err := w.limiter.Wait(r.ctx); err != nil {
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.opts.EditTimeout)
	defer cancel()
	if err := r.editor.EditMessage(ctx, w.ref, e.text, nil); err != nil {
		r.logger.Warn("progress_edit_failed", "ref", w.ref.String(), "error", err.Error())
	}
}

func (w *writer) push(e edit) {
	w.mu.Lock()
	w.queue = append(w.queue, e)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *writer) drain(fn func(edit)) {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		e := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		fn(e)
	}
}

func (w *writer) stop() {
	close(w.signal)
	<-w.stopped
}

// Percent converts downloaded/total bytes into 0..100. ok is false when the
// total is unknown.
func Percent(downloaded, total int64) (int, bool) {
	if total <= 0 {
		return 0, false
	}
	return clampPercent(int(downloaded * 100 / total)), true
}

// RenderBar renders "{percent}% [{filled}{empty}]" over BarCells cells
func RenderBar(percent int) string {
	percent = clampPercent(percent)
	filled := percent / PercentPerCell

	var b strings.Builder
	b.WriteString(strconv.Itoa(percent))
	b.WriteString("% [")
	b.WriteString(strings.Repeat(FilledCell, filled))
	b.WriteString(strings.Repeat(EmptyCell, BarCells-filled))
	b.WriteString("]")
	return b.String()
}

func clampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
