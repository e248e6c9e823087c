package ports

import "github.com/cockroachdb/errors"

// Failure classes for handling a single archive. Adapters mark concrete
// errors with these via errors.Mark; callers test them with errors.Is.
var (
	// ErrArchiveOpen: the archive is missing, locked or not a valid container.
	ErrArchiveOpen = errors.New("archive cannot be opened")

	// ErrEntryExtraction: an entry could not be written (disk full, permissions, ...).
	ErrEntryExtraction = errors.New("entry extraction failed")

	// ErrPathEscape: an entry name resolves outside the destination directory.
	ErrPathEscape = errors.New("entry escapes destination")

	// ErrDirectoryCreation: the target or an intermediate directory cannot be created.
	ErrDirectoryCreation = errors.New("directory cannot be created")
)
