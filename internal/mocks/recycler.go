package mocks

import (
	"path/filepath"
	"sync"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// MockRecycler implements ports.RecycleDeleter for testing.
type MockRecycler struct {
	mu sync.Mutex

	// DeleteCalls records paths passed to Delete
	DeleteCalls []string
	// Results maps paths to the ok value to return
	Results map[string]bool
	// Default is returned for paths missing from Results
	Default bool
	// TrashDir, when set, is joined with the base name to form dest
	TrashDir string
}

// NewMockRecycler creates a recycler that succeeds by default.
func NewMockRecycler() *MockRecycler {
	return &MockRecycler{
		Results: make(map[string]bool),
		Default: true,
	}
}

// Delete records the call and returns the configured result.
func (m *MockRecycler) Delete(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, path)
	ok := m.Default
	if r, found := m.Results[path]; found {
		ok = r
	}
	if !ok || m.TrashDir == "" {
		return "", ok
	}
	return filepath.Join(m.TrashDir, filepath.Base(path)), true
}

// Calls returns a copy of the recorded Delete calls.
func (m *MockRecycler) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.DeleteCalls...)
}

// MockInUseChecker implements ports.InUseChecker for testing.
type MockInUseChecker struct {
	// Busy lists paths reported as open
	Busy map[string]bool
	// Err is returned from every call when set
	Err error
	// Calls records checked paths
	Calls []string
}

// NewMockInUseChecker creates a checker that reports nothing in use.
func NewMockInUseChecker() *MockInUseChecker {
	return &MockInUseChecker{Busy: make(map[string]bool)}
}

// InUse reports whether path was marked busy.
func (m *MockInUseChecker) InUse(path string) (bool, error) {
	m.Calls = append(m.Calls, path)
	if m.Err != nil {
		return false, m.Err
	}
	return m.Busy[path], nil
}

// Compile-time checks.
var (
	_ ports.RecycleDeleter = (*MockRecycler)(nil)
	_ ports.InUseChecker   = (*MockInUseChecker)(nil)
)
