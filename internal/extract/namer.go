package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// firstSuffix is the first index tried when the desired name is taken.
const firstSuffix = 2

// TargetName returns the desired output directory for an archive: the
// archive's file name without its extension, beside the archive. A name
// that is only an extension (".zip") is kept whole.
func TargetName(archivePath string) string {
	base := filepath.Base(archivePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		name = base
	}
	return filepath.Join(filepath.Dir(archivePath), name)
}

// Namer picks output directory names that do not exist yet.
type Namer struct {
	fs ports.FileSystem
}

// NewNamer creates a Namer checking existence through fs.
func NewNamer(fs ports.FileSystem) *Namer {
	return &Namer{fs: fs}
}

// Resolve returns desired if nothing exists there, otherwise the first free
// "desired (N)" for N = 2, 3, ... The result is only free at the moment of
// the check; a concurrent creator can still take it.
func (n *Namer) Resolve(desired string) (string, error) {
	free, err := n.free(desired)
	if err != nil || free {
		return desired, err
	}

	parent, name := filepath.Dir(desired), filepath.Base(desired)
	for index := firstSuffix; ; index++ {
		candidate := filepath.Join(parent, fmt.Sprintf("%s (%d)", name, index))
		free, err := n.free(candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
	}
}

func (n *Namer) free(path string) (bool, error) {
	_, err := n.fs.Stat(path)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, os.ErrNotExist):
		return true, nil
	default:
		return false, errors.Mark(errors.Wrapf(err, "checking %s", path), ports.ErrDirectoryCreation)
	}
}
