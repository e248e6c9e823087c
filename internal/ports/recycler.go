package ports

// RecycleDeleter moves files to a reversible-deletion facility.
// Production code uses the trash adapter; tests use MockRecycler.
type RecycleDeleter interface {
	// Delete moves path to the trash. ok is false when the file does not
	// exist, is open in another process, or the platform call fails.
	// dest is where the file now lives, or empty when the platform does not
	// expose it. Delete never panics and performs no retries.
	Delete(path string) (dest string, ok bool)
}

// InUseChecker reports whether some process holds a file open.
type InUseChecker interface {
	InUse(path string) (bool, error)
}
