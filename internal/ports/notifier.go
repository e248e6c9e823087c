package ports

import "time"

// Op describes what happened to a watched path.
type Op uint8

const (
	// OpCreate: a file appeared in the directory (created or moved in).
	OpCreate Op = 1 << iota
	// OpWrite: an existing file was written to.
	OpWrite
	// OpRemove: a file was removed or moved out.
	OpRemove
)

// Has reports whether o includes every bit of other.
func (o Op) Has(other Op) bool { return o&other == other }

func (o Op) String() string {
	switch {
	case o.Has(OpCreate):
		return "create"
	case o.Has(OpWrite):
		return "write"
	case o.Has(OpRemove):
		return "remove"
	default:
		return "other"
	}
}

// Notification is one raw filesystem event for a direct child of the
// watched directory.
type Notification struct {
	Path string
	Op   Op
	Time time.Time
}

// NotificationSource delivers filesystem events for a single directory.
// Production code uses the fsnotifier adapter; tests use MockSource.
type NotificationSource interface {
	// Events is closed after Close.
	Events() <-chan Notification

	// Errors carries watcher failures (overflow, removed directory). It is
	// closed after Close.
	Errors() <-chan error

	// Close stops delivery and releases the OS watch.
	Close() error
}
