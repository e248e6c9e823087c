package history

import (
	"sync"

	"go.uber.org/zap"

	"github.com/mcdonaldj/zipwatch/internal/extract"
)

// Recorder appends outcomes to the journal at path. Record is safe for
// concurrent use; concurrent extractions finish in any order.
type Recorder struct {
	path     string
	keepLast int
	log      *zap.SugaredLogger

	mu sync.Mutex
}

// NewRecorder creates a Recorder keeping the newest keepLast entries (0 keeps all).
func NewRecorder(path string, keepLast int, log *zap.SugaredLogger) *Recorder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Recorder{path: path, keepLast: keepLast, log: log}
}

// Record appends out to the journal and applies retention.
func (r *Recorder) Record(out extract.Outcome) error {
	entry := FromOutcome(out)

	r.mu.Lock()
	defer r.mu.Unlock()

	return Update(r.path, func(h *History) error {
		h.Add(entry)
		if n := h.Prune(r.keepLast); n > 0 {
			r.log.Debugw("pruned history", "dropped", n)
		}
		return nil
	})
}

// Hook adapts Record to watch.Options.OnOutcome, logging failures.
func (r *Recorder) Hook(out extract.Outcome) {
	if err := r.Record(out); err != nil {
		r.log.Warnw("recording history", "archive", out.Event.Path, "error", err)
	}
}
