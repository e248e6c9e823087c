// Package extract turns a detected archive into an extracted directory and
// sends the archive to the trash.
package extract

import (
	"time"
)

// ArchiveEvent is one detected archive, handled exactly once.
type ArchiveEvent struct {
	Path       string
	DetectedAt time.Time
}

// Disposal records what happened to the source archive after extraction.
type Disposal struct {
	// Attempted is false when extraction failed and disposal was skipped.
	Attempted bool
	OK        bool
	// Dest is the archive's location in the trash, when known.
	Dest string
}

// Status summarizes an Outcome.
type Status string

const (
	// StatusExtracted: extracted and the archive was recycled.
	StatusExtracted Status = "extracted"
	// StatusKept: extracted, but the archive could not be recycled.
	StatusKept Status = "kept"
	// StatusFailed: extraction failed; the archive was left in place.
	StatusFailed Status = "failed"
)

// Outcome is the result of handling one ArchiveEvent.
type Outcome struct {
	Event    ArchiveEvent
	Target   string
	Entries  int
	Err      error
	Disposal Disposal
	Started  time.Time
	Finished time.Time
}

// Failed reports whether extraction failed. A failed disposal is not a failure.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Status classifies the outcome.
func (o Outcome) Status() Status {
	switch {
	case o.Err != nil:
		return StatusFailed
	case !o.Disposal.OK:
		return StatusKept
	default:
		return StatusExtracted
	}
}

// Duration is the wall time spent handling the event.
func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}
