// Package history keeps a JSON journal of handled archives so a recycled
// archive can be found and restored later.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"

	"github.com/mcdonaldj/zipwatch/internal/extract"
)

// Entry is the journal record of one handled archive.
type Entry struct {
	Archive    string     `json:"archive"`
	Target     string     `json:"target,omitempty"`
	Entries    int        `json:"entries"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	TrashPath  string     `json:"trash_path,omitempty"`
	SHA256     string     `json:"sha256,omitempty"`
	SizeBytes  int64      `json:"size_bytes,omitempty"`
	DetectedAt time.Time  `json:"detected_at"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	RestoredAt *time.Time `json:"restored_at,omitempty"`
}

// Name returns the archive's file name.
func (e *Entry) Name() string { return filepath.Base(e.Archive) }

// Restorable reports whether the archive sits in a known trash location
// and has not been restored yet.
func (e *Entry) Restorable() bool {
	return e.TrashPath != "" && e.RestoredAt == nil
}

// History is the whole journal, oldest entry first.
type History struct {
	Entries []Entry `json:"entries"`
}

// Load reads the journal at path. A missing file is an empty journal.
func Load(path string) (*History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &History{Entries: []Entry{}}, nil
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if h.Entries == nil {
		h.Entries = []Entry{}
	}
	return &h, nil
}

// Save writes the journal through a temp file so a crash never leaves a
// truncated journal behind.
func (h *History) Save(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating history directory")
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding history")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".history-*.json")
	if err != nil {
		return errors.Wrap(err, "creating temp history file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing history")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "writing history")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "replacing %s", path)
}

// Add appends e as the newest entry.
func (h *History) Add(e Entry) {
	h.Entries = append(h.Entries, e)
}

// Latest returns the newest entry, or nil for an empty journal.
func (h *History) Latest() *Entry {
	if len(h.Entries) == 0 {
		return nil
	}
	return &h.Entries[len(h.Entries)-1]
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (h *History) Recent(n int) []Entry {
	if n <= 0 || n > len(h.Entries) {
		n = len(h.Entries)
	}
	out := make([]Entry, 0, n)
	for i := len(h.Entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.Entries[i])
	}
	return out
}

// FindRestorable returns the newest restorable entry whose archive base
// name or full path equals name.
func (h *History) FindRestorable(name string) *Entry {
	for i := len(h.Entries) - 1; i >= 0; i-- {
		e := &h.Entries[i]
		if !e.Restorable() {
			continue
		}
		if e.Archive == name || e.Name() == name {
			return e
		}
	}
	return nil
}

// Prune drops the oldest entries beyond keepLast and returns how many were
// dropped. Trashed files are left alone; the trash owns them.
func (h *History) Prune(keepLast int) int {
	if keepLast <= 0 || len(h.Entries) <= keepLast {
		return 0
	}

	// Entries are ordered oldest to newest
	toRemove := len(h.Entries) - keepLast
	h.Entries = append([]Entry(nil), h.Entries[toRemove:]...)
	return toRemove
}

// Update loads the journal at path, applies fn and saves the result while
// holding an exclusive lock on path+".lock". The lock is a file lock, so the
// watcher and a concurrent restore never lose each other's writes. Nothing
// is saved when fn fails.
func Update(path string, fn func(*History) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating history directory")
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return errors.Wrapf(err, "locking %s", path)
	}
	defer func() { _ = lock.Unlock() }()

	h, err := Load(path)
	if err != nil {
		return err
	}
	if err := fn(h); err != nil {
		return err
	}
	return h.Save(path)
}

// FromOutcome builds a journal entry. When the archive was recycled to a
// known location its checksum and size are taken from there.
func FromOutcome(out extract.Outcome) Entry {
	e := Entry{
		Archive:    out.Event.Path,
		Target:     out.Target,
		Entries:    out.Entries,
		Status:     string(out.Status()),
		DetectedAt: out.Event.DetectedAt,
		StartedAt:  out.Started,
		FinishedAt: out.Finished,
	}
	if out.Err != nil {
		e.Error = out.Err.Error()
		e.ErrorKind = extract.Kind(out.Err)
	}
	if out.Disposal.OK && out.Disposal.Dest != "" {
		e.TrashPath = out.Disposal.Dest
		if sum, err := ComputeSHA256(out.Disposal.Dest); err == nil {
			e.SHA256 = sum
		}
		if info, err := os.Stat(out.Disposal.Dest); err == nil {
			e.SizeBytes = info.Size()
		}
	}
	return e
}

// ComputeSHA256 calculates SHA256 hash of a file
func ComputeSHA256(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
