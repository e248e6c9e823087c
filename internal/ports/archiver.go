package ports

import "context"

// Archiver abstracts archive access for testability.
// Production code uses ZipArchiver adapter; tests use MockArchiver.
type Archiver interface {
	// Open opens the archive at path for read-only, sequential access.
	// Failures are marked with ErrArchiveOpen.
	Open(path string) (Archive, error)
}

// Archive is an opened archive.
type Archive interface {
	// Extract materializes every entry under destDir in archive order and
	// returns the number of entries written. The first failing entry aborts
	// extraction; entries already written stay on disk.
	Extract(ctx context.Context, destDir string) (entries int, err error)

	// Close releases the underlying file handle.
	Close() error
}
