package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	crdb "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdonaldj/zipwatch/internal/adapters/osfs"
	"github.com/mcdonaldj/zipwatch/internal/mocks"
	"github.com/mcdonaldj/zipwatch/internal/ports"
)

func TestTargetName(t *testing.T) {
	tests := []struct {
		archive  string
		expected string
	}{
		{"/downloads/Report.zip", "/downloads/Report"},
		{"/downloads/photos.2024.zip", "/downloads/photos.2024"},
		{"/downloads/noext", "/downloads/noext"},
		{"/downloads/.zip", "/downloads/.zip"},
		{"/Report.zip", "/Report"},
		{"Report.zip", "Report"},
	}

	for _, tt := range tests {
		t.Run(tt.archive, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.expected), TargetName(filepath.FromSlash(tt.archive)))
		})
	}
}

func TestResolveSequence(t *testing.T) {
	fs := mocks.NewMockFileSystem()
	namer := NewNamer(fs)
	desired := "/downloads/Report"

	got, err := namer.Resolve(desired)
	require.NoError(t, err)
	assert.Equal(t, desired, got)

	fs.AddDir(desired)
	got, err = namer.Resolve(desired)
	require.NoError(t, err)
	assert.Equal(t, "/downloads/Report (2)", got)

	fs.AddDir("/downloads/Report (2)")
	got, err = namer.Resolve(desired)
	require.NoError(t, err)
	assert.Equal(t, "/downloads/Report (3)", got)
}

func TestResolveTreatsFilesAsTaken(t *testing.T) {
	fs := mocks.NewMockFileSystem()
	fs.Files["/downloads/Report"] = []byte("a plain file")

	got, err := NewNamer(fs).Resolve("/downloads/Report")
	require.NoError(t, err)
	assert.Equal(t, "/downloads/Report (2)", got)
}

func TestResolveWithoutParent(t *testing.T) {
	fs := mocks.NewMockFileSystem()
	fs.AddDir("Report")

	got, err := NewNamer(fs).Resolve("Report")
	require.NoError(t, err)
	assert.Equal(t, "Report (2)", got)
}

func TestResolveAtRoot(t *testing.T) {
	fs := mocks.NewMockFileSystem()
	fs.AddDir("/Report")

	got, err := NewNamer(fs).Resolve("/Report")
	require.NoError(t, err)
	assert.Equal(t, "/Report (2)", got)
}

func TestResolveStatError(t *testing.T) {
	fs := mocks.NewMockFileSystem()
	fs.Errors["/downloads/Report"] = errors.New("permission denied")

	_, err := NewNamer(fs).Resolve("/downloads/Report")
	require.Error(t, err)
	assert.True(t, crdb.Is(err, ports.ErrDirectoryCreation))
}

func TestResolveOnDisk(t *testing.T) {
	dir := t.TempDir()
	desired := filepath.Join(dir, "Report")
	require.NoError(t, os.Mkdir(desired, 0o755))
	require.NoError(t, os.Mkdir(desired+" (2)", 0o755))

	got, err := NewNamer(osfs.New()).Resolve(desired)
	require.NoError(t, err)
	assert.Equal(t, desired+" (3)", got)
}
