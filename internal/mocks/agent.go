package mocks

import (
	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// MockAgentService implements ports.AgentService for testing.
type MockAgentService struct {
	// Installed tracks whether the service is "installed"
	Installed bool
	// StatusResult is the status to return
	StatusResult string
	// UnitPathResult is the unit path to return
	UnitPathResult string
	// LogPathResult is the log path to return
	LogPathResult string
	// InstallCalls records calls to Install
	InstallCalls []InstallCall
	// Errors maps method names to errors
	Errors map[string]error
}

// InstallCall records parameters of an Install call.
type InstallCall struct {
	ExecPath   string
	ConfigPath string
}

// NewMockAgentService creates a new mock agent service.
func NewMockAgentService() *MockAgentService {
	return &MockAgentService{
		StatusResult:   "not installed",
		UnitPathResult: "/tmp/mock.plist",
		LogPathResult:  "/tmp/mock.log",
		Errors:         make(map[string]error),
	}
}

// UnitPath returns the configured unit path.
func (m *MockAgentService) UnitPath() string {
	return m.UnitPathResult
}

// LogPath returns the configured log path.
func (m *MockAgentService) LogPath() string {
	return m.LogPathResult
}

// Install records the call and marks the service installed.
func (m *MockAgentService) Install(execPath, configPath string) error {
	m.InstallCalls = append(m.InstallCalls, InstallCall{
		ExecPath:   execPath,
		ConfigPath: configPath,
	})
	if err, ok := m.Errors["Install"]; ok {
		return err
	}
	m.Installed = true
	m.StatusResult = "loaded"
	return nil
}

// Uninstall marks the service uninstalled.
func (m *MockAgentService) Uninstall() error {
	if err, ok := m.Errors["Uninstall"]; ok {
		return err
	}
	m.Installed = false
	m.StatusResult = "not installed"
	return nil
}

// IsInstalled reports the Installed flag.
func (m *MockAgentService) IsInstalled() bool {
	return m.Installed
}

// Status returns StatusResult.
func (m *MockAgentService) Status() string {
	return m.StatusResult
}

// Compile-time check that MockAgentService implements ports.AgentService.
var _ ports.AgentService = (*MockAgentService)(nil)
