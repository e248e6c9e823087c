package mocks

import (
	"context"
	"sync"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// MockArchiver implements ports.Archiver for testing.
type MockArchiver struct {
	mu sync.Mutex

	// OpenCalls records paths passed to Open
	OpenCalls []string
	// ExtractCalls records calls to Archive.Extract
	ExtractCalls []ExtractCall
	// CloseCalls counts calls to Archive.Close
	CloseCalls int
	// Errors maps "Open", "Extract" and "Close" to errors
	Errors map[string]error
	// Entries is the count returned by a successful Extract
	Entries int
	// ExtractFunc, when set, replaces the default Extract behaviour
	ExtractFunc func(ctx context.Context, archivePath, destDir string) (int, error)
}

// ExtractCall records parameters of an Extract call.
type ExtractCall struct {
	ArchivePath string
	DestDir     string
}

// NewMockArchiver creates a new mock archiver.
func NewMockArchiver() *MockArchiver {
	return &MockArchiver{
		Errors:  make(map[string]error),
		Entries: 1,
	}
}

// Open returns a mock archive for path.
func (m *MockArchiver) Open(path string) (ports.Archive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenCalls = append(m.OpenCalls, path)
	if err, ok := m.Errors["Open"]; ok {
		return nil, err
	}
	return &mockArchive{parent: m, path: path}, nil
}

// Extracts returns a copy of the recorded Extract calls.
func (m *MockArchiver) Extracts() []ExtractCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExtractCall(nil), m.ExtractCalls...)
}

type mockArchive struct {
	parent *MockArchiver
	path   string
}

func (a *mockArchive) Extract(ctx context.Context, destDir string) (int, error) {
	m := a.parent
	m.mu.Lock()
	m.ExtractCalls = append(m.ExtractCalls, ExtractCall{ArchivePath: a.path, DestDir: destDir})
	fn := m.ExtractFunc
	err, failed := m.Errors["Extract"]
	entries := m.Entries
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, a.path, destDir)
	}
	if failed {
		return 0, err
	}
	return entries, nil
}

func (a *mockArchive) Close() error {
	m := a.parent
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	if err, ok := m.Errors["Close"]; ok {
		return err
	}
	return nil
}

// Compile-time check that MockArchiver implements ports.Archiver.
var _ ports.Archiver = (*MockArchiver)(nil)
