// Package fsnotifier adapts fsnotify to ports.NotificationSource.
package fsnotifier

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// eventBuffer absorbs bursts (a browser finishing several downloads at once)
// while the consumer is busy.
const eventBuffer = 256

// Watcher watches one directory, non-recursively.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	events  chan ports.Notification
	errs    chan error
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	now     func() time.Time
}

// Open starts watching dir. The directory must exist.
func Open(dir string) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}
	if err := fw.Add(abs); err != nil {
		_ = fw.Close()
		return nil, errors.Wrapf(err, "watching %s", abs)
	}

	w := &Watcher{
		dir:     abs,
		watcher: fw,
		events:  make(chan ports.Notification, eventBuffer),
		errs:    make(chan error, 8),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Events returns the notification channel.
func (w *Watcher) Events() <-chan ports.Notification { return w.events }

// Errors returns the watcher error channel.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
		close(w.events)
		close(w.errs)
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			op, keep := translate(ev.Op)
			if !keep || filepath.Dir(ev.Name) != w.dir {
				continue
			}
			select {
			case w.events <- ports.Notification{Path: ev.Name, Op: op, Time: w.now()}:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				err = errors.Wrapf(err, "watching %s", w.dir)
			}
			select {
			case w.errs <- err:
			case <-w.done:
				return
			}
		}
	}
}

// translate maps fsnotify operations onto ports.Op. Chmod is dropped: it
// carries no information about content.
func translate(op fsnotify.Op) (ports.Op, bool) {
	var out ports.Op
	if op.Has(fsnotify.Create) {
		out |= ports.OpCreate
	}
	if op.Has(fsnotify.Write) {
		out |= ports.OpWrite
	}
	if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
		out |= ports.OpRemove
	}
	return out, out != 0
}

// Compile-time check that Watcher implements ports.NotificationSource.
var _ ports.NotificationSource = (*Watcher)(nil)
