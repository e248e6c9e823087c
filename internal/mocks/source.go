package mocks

import (
	"sync"
	"time"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// MockSource implements ports.NotificationSource for testing. Tests push
// notifications with Emit and watcher failures with Fail.
type MockSource struct {
	mu         sync.Mutex
	events     chan ports.Notification
	errs       chan error
	closed     bool
	CloseCalls int
}

// NewMockSource creates a source with room for buffer pending notifications.
func NewMockSource(buffer int) *MockSource {
	return &MockSource{
		events: make(chan ports.Notification, buffer),
		errs:   make(chan error, buffer),
	}
}

// Emit queues a notification for path. It reports false once the source is closed.
func (m *MockSource) Emit(path string, op ports.Op) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.events <- ports.Notification{Path: path, Op: op, Time: time.Now()}
	return true
}

// Fail queues a watcher error.
func (m *MockSource) Fail(err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.errs <- err
	return true
}

// Events returns the notification channel.
func (m *MockSource) Events() <-chan ports.Notification { return m.events }

// Errors returns the error channel.
func (m *MockSource) Errors() <-chan error { return m.errs }

// Close closes both channels once and counts calls.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	if !m.closed {
		m.closed = true
		close(m.events)
		close(m.errs)
	}
	return nil
}

// Closed reports whether Close has been called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Compile-time check that MockSource implements ports.NotificationSource.
var _ ports.NotificationSource = (*MockSource)(nil)
