// Package maclaunchd provides a launchd login agent adapter for macOS.
package maclaunchd

import (
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/cockroachdb/errors"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// KeepAlive restarts the watcher if it exits; RunAtLoad starts it at login.
const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.BinaryPath}}</string>
{{- if .ConfigPath}}
        <string>--config</string>
        <string>{{.ConfigPath}}</string>
{{- end}}
        <string>watch</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>ProcessType</key>
    <string>Background</string>
    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>
</dict>
</plist>
`

const serviceLabel = "com.user.zipwatch"

type plistConfig struct {
	Label      string
	BinaryPath string
	ConfigPath string
	LogPath    string
}

// Runner executes an external command. Tests replace it.
type Runner func(name string, args ...string) error

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// MacLaunchdService implements ports.AgentService for macOS.
type MacLaunchdService struct {
	homeDir string
	run     Runner
}

// New creates a new MacLaunchdService adapter.
func New() *MacLaunchdService {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return NewWithHome(home, runCommand)
}

// NewWithHome creates an adapter rooted at homeDir that runs launchctl via run.
func NewWithHome(homeDir string, run Runner) *MacLaunchdService {
	return &MacLaunchdService{homeDir: homeDir, run: run}
}

// UnitPath returns the path where the plist file is stored.
func (s *MacLaunchdService) UnitPath() string {
	return filepath.Join(s.homeDir, "Library", "LaunchAgents", serviceLabel+".plist")
}

// LogPath returns the path where the agent's stdout and stderr go.
func (s *MacLaunchdService) LogPath() string {
	return filepath.Join(s.homeDir, ".zipwatch", "agent.log")
}

// Install creates the plist file and loads the agent.
func (s *MacLaunchdService) Install(execPath, configPath string) error {
	// Find zipwatch binary if not provided
	binaryPath := execPath
	if binaryPath == "" {
		var err error
		binaryPath, err = exec.LookPath("zipwatch")
		if err != nil {
			return errors.Wrap(err, "zipwatch not found in PATH")
		}
	}

	// Ensure log directory exists
	logPath := s.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return errors.Wrap(err, "creating log directory")
	}

	tmpl, err := template.New("plist").Parse(plistTemplate)
	if err != nil {
		return errors.Wrap(err, "parsing template")
	}

	// Ensure LaunchAgents directory exists
	plistPath := s.UnitPath()
	if err := os.MkdirAll(filepath.Dir(plistPath), 0o755); err != nil {
		return errors.Wrap(err, "creating LaunchAgents directory")
	}

	f, err := os.Create(plistPath)
	if err != nil {
		return errors.Wrap(err, "creating plist")
	}

	if err := tmpl.Execute(f, plistConfig{
		Label:      serviceLabel,
		BinaryPath: binaryPath,
		ConfigPath: configPath,
		LogPath:    logPath,
	}); err != nil {
		_ = f.Close() // Best effort cleanup on error
		return errors.Wrap(err, "writing plist")
	}

	// Close file BEFORE loading to ensure data is flushed
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing plist file")
	}

	if err := s.run("launchctl", "load", "-w", plistPath); err != nil {
		return errors.Wrap(err, "loading plist")
	}
	return nil
}

// Uninstall unloads the agent and removes the plist file.
func (s *MacLaunchdService) Uninstall() error {
	plistPath := s.UnitPath()

	if _, err := os.Stat(plistPath); os.IsNotExist(err) {
		return errors.Newf("plist not found: %s", plistPath)
	}

	_ = s.run("launchctl", "unload", "-w", plistPath) // Ignore error if not loaded

	if err := os.Remove(plistPath); err != nil {
		return errors.Wrap(err, "removing plist")
	}
	return nil
}

// IsInstalled checks if the plist exists.
func (s *MacLaunchdService) IsInstalled() bool {
	_, err := os.Stat(s.UnitPath())
	return err == nil
}

// Status returns "loaded", "not loaded" or "not installed".
func (s *MacLaunchdService) Status() string {
	if !s.IsInstalled() {
		return "not installed"
	}
	if err := s.run("launchctl", "list", serviceLabel); err == nil {
		return "loaded"
	}
	return "not loaded"
}

// Compile-time check that MacLaunchdService implements ports.AgentService.
var _ ports.AgentService = (*MacLaunchdService)(nil)
