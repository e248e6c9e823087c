package recovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdonaldj/zipwatch/internal/adapters/osfs"
	"github.com/mcdonaldj/zipwatch/internal/history"
	"github.com/mcdonaldj/zipwatch/internal/mocks"
)

type trashFixture struct {
	downloads string
	trashed   string
	info      string
	journal   string
}

// newTrashFixture recycles Report.zip into a freedesktop bin and journals it.
func newTrashFixture(t *testing.T) trashFixture {
	t.Helper()
	root := t.TempDir()
	f := trashFixture{
		downloads: filepath.Join(root, "Downloads"),
		trashed:   filepath.Join(root, "Trash", "files", "Report.zip"),
		info:      filepath.Join(root, "Trash", "info", "Report.zip.trashinfo"),
		journal:   filepath.Join(root, "history.json"),
	}
	require.NoError(t, os.MkdirAll(f.downloads, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(f.trashed), 0o700))
	require.NoError(t, os.MkdirAll(filepath.Dir(f.info), 0o700))
	require.NoError(t, os.WriteFile(f.trashed, []byte("PK archive bytes"), 0o644))
	require.NoError(t, os.WriteFile(f.info, []byte("[Trash Info]\n"), 0o600))

	sum, err := history.ComputeSHA256(f.trashed)
	require.NoError(t, err)

	h := &history.History{}
	h.Add(history.Entry{
		Archive:   filepath.Join(f.downloads, "Report.zip"),
		Status:    "extracted",
		TrashPath: f.trashed,
		SHA256:    sum,
	})
	require.NoError(t, h.Save(f.journal))
	return f
}

func TestRestore(t *testing.T) {
	f := newTrashFixture(t)
	svc := NewDefaultService()
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	entry, err := svc.Restore(f.journal, "Report.zip")
	require.NoError(t, err)

	original := filepath.Join(f.downloads, "Report.zip")
	assert.Equal(t, original, entry.Archive)
	assert.FileExists(t, original)
	assert.NoFileExists(t, f.trashed)
	assert.NoFileExists(t, f.info, "trashinfo record is removed")

	h, err := history.Load(f.journal)
	require.NoError(t, err)
	require.NotNil(t, h.Entries[0].RestoredAt)
	assert.True(t, h.Entries[0].RestoredAt.Equal(fixed))

	_, err = svc.Restore(f.journal, "Report.zip")
	assert.True(t, errors.Is(err, ErrNotFound), "a restored archive cannot be restored twice")
}

func TestRestoreRefusesOverwrite(t *testing.T) {
	f := newTrashFixture(t)
	original := filepath.Join(f.downloads, "Report.zip")
	require.NoError(t, os.WriteFile(original, []byte("newer download"), 0o644))

	_, err := NewDefaultService().Restore(f.journal, "Report.zip")
	assert.True(t, errors.Is(err, ErrOriginalExists))

	data, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.Equal(t, "newer download", string(data))
	assert.FileExists(t, f.trashed)
}

func TestRestoreChecksumMismatch(t *testing.T) {
	f := newTrashFixture(t)
	require.NoError(t, os.WriteFile(f.trashed, []byte("tampered"), 0o644))

	_, err := NewDefaultService().Restore(f.journal, "Report.zip")
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
	assert.FileExists(t, f.trashed)
}

func TestRestoreMissingFromTrash(t *testing.T) {
	f := newTrashFixture(t)
	require.NoError(t, os.Remove(f.trashed))

	_, err := NewDefaultService().Restore(f.journal, "Report.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer in the trash")
}

func TestRestoreUnknownName(t *testing.T) {
	f := newTrashFixture(t)

	_, err := NewDefaultService().Restore(f.journal, "Other.zip")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRestoreBadJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := NewDefaultService().Restore(path, "Report.zip")
	assert.Error(t, err)
}

func TestRestoreRenameFailure(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "history.json")
	h := &history.History{}
	h.Add(history.Entry{Archive: "/d/Report.zip", TrashPath: "/trash/files/Report.zip"})
	require.NoError(t, h.Save(journal))

	fs := mocks.NewMockFileSystem()
	fs.Files["/trash/files/Report.zip"] = []byte("PK")
	svc := NewService(&renameFailFS{MockFileSystem: fs})

	_, err := svc.Restore(journal, "Report.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moving archive out of the trash")

	loaded, err := history.Load(journal)
	require.NoError(t, err)
	assert.Nil(t, loaded.Entries[0].RestoredAt, "journal is untouched on failure")
}

func TestRestoreWithMockFileSystem(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "history.json")
	h := &history.History{}
	h.Add(history.Entry{Archive: "/d/Report.zip", TrashPath: "/trash/files/Report.zip"})
	require.NoError(t, h.Save(journal))

	fs := mocks.NewMockFileSystem()
	fs.Files["/trash/files/Report.zip"] = []byte("PK")
	fs.Files["/trash/info/Report.zip.trashinfo"] = []byte("[Trash Info]\n")

	_, err := NewService(fs).Restore(journal, "/d/Report.zip")
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"/trash/files/Report.zip", "/d/Report.zip"}}, fs.Renames)
	assert.NotContains(t, fs.Files, "/trash/info/Report.zip.trashinfo")
}

func TestVerifyWithoutChecksum(t *testing.T) {
	svc := NewService(osfs.New())
	assert.NoError(t, svc.Verify(&history.Entry{TrashPath: "/nowhere"}))
}

func TestListRestorable(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "history.json")
	restored := time.Now()
	h := &history.History{}
	h.Add(history.Entry{Archive: "/d/a.zip", TrashPath: "/t/a.zip"})
	h.Add(history.Entry{Archive: "/d/b.zip", Status: "failed"})
	h.Add(history.Entry{Archive: "/d/c.zip", TrashPath: "/t/c.zip", RestoredAt: &restored})
	h.Add(history.Entry{Archive: "/d/d.zip", TrashPath: "/t/d.zip"})
	require.NoError(t, h.Save(journal))

	list, err := NewDefaultService().ListRestorable(journal)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "d.zip", list[0].Name())
	assert.Equal(t, "a.zip", list[1].Name())
}

// renameFailFS fails every Rename.
type renameFailFS struct {
	*mocks.MockFileSystem
}

func (r *renameFailFS) Rename(oldpath, newpath string) error {
	return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrPermission}
}

// recordDuringRenameFS journals another outcome, as the watcher would, while
// the restore is moving the archive.
type recordDuringRenameFS struct {
	*osfs.OSFileSystem
	journal  string
	recorded chan error
}

func (r *recordDuringRenameFS) Rename(oldpath, newpath string) error {
	go func() {
		r.recorded <- history.Update(r.journal, func(h *history.History) error {
			h.Add(history.Entry{Archive: "/dl/Other.zip", Status: "extracted"})
			return nil
		})
	}()
	select {
	case err := <-r.recorded:
		// Only possible without a journal lock; hand the result back.
		r.recorded <- err
	case <-time.After(100 * time.Millisecond):
	}
	return r.OSFileSystem.Rename(oldpath, newpath)
}

func TestRestoreKeepsConcurrentJournalWrites(t *testing.T) {
	f := newTrashFixture(t)
	fs := &recordDuringRenameFS{OSFileSystem: osfs.New(), journal: f.journal, recorded: make(chan error, 1)}

	_, err := NewService(fs).Restore(f.journal, "Report.zip")
	require.NoError(t, err)
	select {
	case err := <-fs.recorded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent journal write never completed")
	}

	h, err := history.Load(f.journal)
	require.NoError(t, err)
	require.Len(t, h.Entries, 2, "neither write may be lost")
	assert.NotNil(t, h.Entries[0].RestoredAt)
	assert.Equal(t, "Other.zip", h.Entries[1].Name())
}
