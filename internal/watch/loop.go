package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/mcdonaldj/zipwatch/internal/extract"
	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// Handler processes one archive. extract.Pipeline is the production handler.
type Handler interface {
	Handle(ctx context.Context, ev extract.ArchiveEvent) extract.Outcome
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev extract.ArchiveEvent) extract.Outcome

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev extract.ArchiveEvent) extract.Outcome {
	return f(ctx, ev)
}

// Options tunes a Loop.
type Options struct {
	// Settle is the quiet period after the last create or write before an
	// archive is dispatched. Zero dispatches on the create notification.
	Settle time.Duration
	// QueueSize bounds the hand-off between the watcher and the dispatcher.
	QueueSize int
	// ScanExisting dispatches matching files already present at Start.
	ScanExisting bool
	// OnOutcome, when set, receives every outcome.
	OnOutcome func(extract.Outcome)
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Settle:    time.Second,
		QueueSize: 64,
	}
}

// pending is an archive waiting for its settle timer.
type pending struct {
	timer    *time.Timer
	detected time.Time
}

// Loop owns the subscription to one directory. Detection, dispatch and
// handling run on separate goroutines so a slow extraction never delays
// the next notification.
type Loop struct {
	dir     *WatchedDirectory
	src     ports.NotificationSource
	handler Handler
	opts    Options
	log     *zap.SugaredLogger
	stat    func(string) (os.FileInfo, error)

	mu        sync.Mutex
	started   bool
	accepting bool
	pending   map[string]*pending

	queue    chan extract.ArchiveEvent
	stopping chan struct{}
	senders  sync.WaitGroup
	recvDone chan struct{}
	dispDone chan struct{}
	tasks    conc.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// New creates a loop over src for dir. Nothing is delivered until Start.
func New(dir *WatchedDirectory, src ports.NotificationSource, handler Handler, opts Options, log *zap.SugaredLogger) *Loop {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions().QueueSize
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}
	return &Loop{
		dir:      dir,
		src:      src,
		handler:  handler,
		opts:     opts,
		log:      log.With("dir", dir.Path),
		stat:     os.Stat,
		pending:  make(map[string]*pending),
		queue:    make(chan extract.ArchiveEvent, opts.QueueSize),
		stopping: make(chan struct{}),
		recvDone: make(chan struct{}),
		dispDone: make(chan struct{}),
	}
}

// Start begins delivery. Handlers receive a context derived from ctx that
// is never cancelled by the loop itself.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return errors.New("watch loop already started")
	}
	l.started = true
	l.accepting = true
	l.mu.Unlock()

	taskCtx := context.WithoutCancel(ctx)
	l.dir.setLive(true)

	go l.dispatch(taskCtx)
	go l.receive()

	l.log.Infow("watcher started",
		"patterns", l.dir.Patterns,
		"settle", l.opts.Settle)

	if l.opts.ScanExisting {
		l.scanExisting()
	}
	return nil
}

// Stop disables delivery, releases the watch and waits for in-flight
// handlers until ctx is done. Events already queued are still handled.
func (l *Loop) Stop(ctx context.Context) error {
	l.stopOnce.Do(func() {
		l.stopErr = l.stop(ctx)
	})
	return l.stopErr
}

func (l *Loop) stop(ctx context.Context) error {
	l.mu.Lock()
	wasStarted := l.started
	l.started = true
	l.accepting = false
	l.dir.setLive(false)
	for path, p := range l.pending {
		p.timer.Stop()
		delete(l.pending, path)
	}
	l.mu.Unlock()
	close(l.stopping)

	var errs error
	if err := l.src.Close(); err != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "closing notification source"))
	}

	if !wasStarted {
		close(l.queue)
		return errs
	}

	<-l.recvDone
	l.senders.Wait()
	close(l.queue)
	<-l.dispDone

	done := make(chan struct{})
	go func() {
		l.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		l.log.Infow("watcher stopped")
	case <-ctx.Done():
		l.log.Warnw("watcher stopped with extractions still running", "error", ctx.Err())
		errs = errors.CombineErrors(errs, errors.Wrap(ctx.Err(), "waiting for in-flight extractions"))
	}
	return errs
}

// receive consumes the source until it is closed.
func (l *Loop) receive() {
	defer close(l.recvDone)
	events, errs := l.src.Events(), l.src.Errors()
	for events != nil {
		select {
		case n, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			l.notify(n)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			l.log.Warnw("watcher error", "error", err)
		}
	}
}

// notify applies one notification to the settle state.
func (l *Loop) notify(n ports.Notification) {
	if !l.dir.Live() || !l.dir.Matches(n.Path) {
		return
	}

	if n.Op.Has(ports.OpRemove) {
		l.mu.Lock()
		if p, ok := l.pending[n.Path]; ok {
			p.timer.Stop()
			delete(l.pending, n.Path)
		}
		l.mu.Unlock()
		return
	}

	if l.opts.Settle == 0 {
		if n.Op.Has(ports.OpCreate) {
			l.settled(n.Path, n.Time)
		}
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.accepting {
		return
	}
	p, ok := l.pending[n.Path]
	switch {
	case ok:
		// Still being written: restart the quiet period.
		p.timer.Stop()
	case n.Op.Has(ports.OpCreate):
		p = &pending{detected: n.Time}
	default:
		return
	}
	l.pending[n.Path] = p
	path := n.Path
	p.timer = time.AfterFunc(l.opts.Settle, func() {
		l.mu.Lock()
		if l.pending[path] != p {
			l.mu.Unlock()
			return
		}
		delete(l.pending, path)
		l.mu.Unlock()
		l.settled(path, p.detected)
	})
}

// settled queues path once it has stopped changing, if it is still a
// regular file.
func (l *Loop) settled(path string, detected time.Time) {
	info, err := l.stat(path)
	if err != nil || !info.Mode().IsRegular() {
		l.log.Debugw("ignoring vanished or non-regular file", "path", path)
		return
	}
	l.enqueue(extract.ArchiveEvent{Path: path, DetectedAt: detected})
}

func (l *Loop) enqueue(ev extract.ArchiveEvent) {
	l.mu.Lock()
	if !l.accepting {
		l.mu.Unlock()
		return
	}
	l.senders.Add(1)
	l.mu.Unlock()
	defer l.senders.Done()

	select {
	case l.queue <- ev:
		l.log.Infow("archive detected", "archive", ev.Path)
	case <-l.stopping:
	}
}

// dispatch starts one task per queued event.
func (l *Loop) dispatch(ctx context.Context) {
	defer close(l.dispDone)
	for ev := range l.queue {
		l.tasks.Go(func() { l.run(ctx, ev) })
	}
}

// run handles ev. A panic in the handler or the outcome hook is logged as
// a failure of this archive only.
func (l *Loop) run(ctx context.Context, ev extract.ArchiveEvent) {
	started := time.Now()
	var out extract.Outcome

	var pc panics.Catcher
	pc.Try(func() { out = l.handler.Handle(ctx, ev) })
	if r := pc.Recovered(); r != nil {
		l.log.Errorw("extraction panicked",
			"archive", ev.Path,
			"panic", r.Value,
			"stack", string(r.Stack))
		out = extract.Outcome{
			Event:    ev,
			Err:      errors.Wrapf(r.AsError(), "handling %s", ev.Path),
			Started:  started,
			Finished: time.Now(),
		}
	}

	if l.opts.OnOutcome == nil {
		return
	}
	var hook panics.Catcher
	hook.Try(func() { l.opts.OnOutcome(out) })
	if r := hook.Recovered(); r != nil {
		l.log.Errorw("outcome hook panicked", "archive", ev.Path, "panic", r.Value)
	}
}

// scanExisting queues matching regular files already in the directory.
func (l *Loop) scanExisting() {
	entries, err := os.ReadDir(l.dir.Path)
	if err != nil {
		l.log.Warnw("scanning existing archives", "error", err)
		return
	}
	now := time.Now()
	for _, e := range entries {
		path := filepath.Join(l.dir.Path, e.Name())
		if !e.Type().IsRegular() || !l.dir.Matches(path) {
			continue
		}
		l.enqueue(extract.ArchiveEvent{Path: path, DetectedAt: now})
	}
}
