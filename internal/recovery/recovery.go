// Package recovery moves recycled archives back to where they were found.
package recovery

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/mcdonaldj/zipwatch/internal/adapters/osfs"
	"github.com/mcdonaldj/zipwatch/internal/adapters/trash"
	"github.com/mcdonaldj/zipwatch/internal/history"
	"github.com/mcdonaldj/zipwatch/internal/ports"
)

var (
	// ErrNotFound: no restorable journal entry matches the name.
	ErrNotFound = errors.New("no restorable archive")
	// ErrChecksumMismatch: the trashed file is not the one that was recycled.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrOriginalExists: something already occupies the original path.
	ErrOriginalExists = errors.New("original path is occupied")
)

// Service provides recovery operations with injected dependencies.
type Service struct {
	fs  ports.FileSystem
	now func() time.Time
}

// NewService creates a new recovery service with the given dependencies.
func NewService(fs ports.FileSystem) *Service {
	return &Service{
		fs:  fs,
		now: time.Now,
	}
}

// NewDefaultService creates a recovery service with real production dependencies.
func NewDefaultService() *Service {
	return NewService(osfs.New())
}

// Verify checks that the trashed file still matches the recorded checksum.
// Entries recorded without a checksum are accepted.
func (s *Service) Verify(entry *history.Entry) error {
	if entry.SHA256 == "" {
		return nil
	}
	actual, err := history.ComputeSHA256(entry.TrashPath)
	if err != nil {
		return errors.Wrap(err, "computing checksum")
	}
	if actual != entry.SHA256 {
		return errors.Mark(
			errors.Newf("checksum mismatch: expected %s, got %s", entry.SHA256, actual),
			ErrChecksumMismatch)
	}
	return nil
}

// Restore moves the newest recycled copy of name back to its original
// path and marks the journal entry restored. It never overwrites. The
// journal stays locked throughout, so a running watcher cannot record an
// outcome in between and have it overwritten.
func (s *Service) Restore(historyPath, name string) (*history.Entry, error) {
	var restored *history.Entry
	err := history.Update(historyPath, func(h *history.History) error {
		entry := h.FindRestorable(name)
		if entry == nil {
			return errors.Mark(errors.Newf("no restorable archive named %s", name), ErrNotFound)
		}

		if _, err := s.fs.Stat(entry.TrashPath); err != nil {
			return errors.Wrapf(err, "archive is no longer in the trash at %s", entry.TrashPath)
		}
		if err := s.Verify(entry); err != nil {
			return errors.Wrap(err, "verification failed")
		}

		if _, err := s.fs.Stat(entry.Archive); err == nil {
			return errors.Mark(errors.Newf("%s already exists", entry.Archive), ErrOriginalExists)
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "checking %s", entry.Archive)
		}

		if err := s.fs.Rename(entry.TrashPath, entry.Archive); err != nil {
			return errors.Wrap(err, "moving archive out of the trash")
		}
		if info := trash.InfoPath(entry.TrashPath); info != "" {
			// A stale record only shows up in file managers.
			_ = s.fs.Remove(info)
		}

		restoredAt := s.now()
		entry.RestoredAt = &restoredAt
		cp := *entry
		restored = &cp
		return nil
	})
	if err != nil && restored != nil {
		return restored, errors.Wrap(err, "archive restored but history not updated")
	}
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// ListRestorable returns restorable entries, newest first.
func (s *Service) ListRestorable(historyPath string) ([]history.Entry, error) {
	h, err := history.Load(historyPath)
	if err != nil {
		return nil, err
	}
	var out []history.Entry
	for _, e := range h.Recent(0) {
		if e.Restorable() {
			out = append(out, e)
		}
	}
	return out, nil
}
