// Package systemdunit installs zipwatch as a systemd user service.
package systemdunit

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

const unitName = "zipwatch.service"

const unitTemplate = `[Unit]
Description=zipwatch: extract archives arriving in the downloads folder
After=default.target

[Service]
Type=simple
ExecStart={{.ExecStart}}
Restart=on-failure
RestartSec=5
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.LogPath}}

[Install]
WantedBy=default.target
`

type unitConfig struct {
	ExecStart string
	LogPath   string
}

// Runner executes an external command. Tests replace it.
type Runner func(name string, args ...string) error

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// Service implements ports.AgentService with systemctl --user.
type Service struct {
	unitDir string
	logPath string
	run     Runner
}

// New creates a Service using $XDG_CONFIG_HOME/systemd/user.
func New() *Service {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return NewWithDirs(
		filepath.Join(xdg.ConfigHome, "systemd", "user"),
		filepath.Join(home, ".zipwatch", "agent.log"),
		runCommand,
	)
}

// NewWithDirs creates a Service writing its unit to unitDir.
func NewWithDirs(unitDir, logPath string, run Runner) *Service {
	return &Service{unitDir: unitDir, logPath: logPath, run: run}
}

// UnitPath returns the path of the unit file.
func (s *Service) UnitPath() string {
	return filepath.Join(s.unitDir, unitName)
}

// LogPath returns where the service's output is appended.
func (s *Service) LogPath() string {
	return s.logPath
}

// Install writes the unit, then enables and starts it.
func (s *Service) Install(execPath, configPath string) error {
	binaryPath := execPath
	if binaryPath == "" {
		var err error
		binaryPath, err = exec.LookPath("zipwatch")
		if err != nil {
			return errors.Wrap(err, "zipwatch not found in PATH")
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.logPath), 0o755); err != nil {
		return errors.Wrap(err, "creating log directory")
	}
	if err := os.MkdirAll(s.unitDir, 0o755); err != nil {
		return errors.Wrap(err, "creating unit directory")
	}

	args := []string{quote(binaryPath)}
	if configPath != "" {
		args = append(args, "--config", quote(configPath))
	}
	args = append(args, "watch")

	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return errors.Wrap(err, "parsing template")
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, unitConfig{ExecStart: strings.Join(args, " "), LogPath: s.logPath}); err != nil {
		return errors.Wrap(err, "rendering unit")
	}
	if err := os.WriteFile(s.UnitPath(), []byte(b.String()), 0o644); err != nil {
		return errors.Wrap(err, "writing unit")
	}

	if err := s.run("systemctl", "--user", "daemon-reload"); err != nil {
		return errors.Wrap(err, "reloading systemd")
	}
	if err := s.run("systemctl", "--user", "enable", "--now", unitName); err != nil {
		return errors.Wrap(err, "enabling unit")
	}
	return nil
}

// Uninstall stops and disables the unit and removes its file.
func (s *Service) Uninstall() error {
	if !s.IsInstalled() {
		return errors.Newf("unit not found: %s", s.UnitPath())
	}

	_ = s.run("systemctl", "--user", "disable", "--now", unitName) // Ignore error if not loaded

	if err := os.Remove(s.UnitPath()); err != nil {
		return errors.Wrap(err, "removing unit")
	}
	_ = s.run("systemctl", "--user", "daemon-reload")
	return nil
}

// IsInstalled checks if the unit file exists.
func (s *Service) IsInstalled() bool {
	_, err := os.Stat(s.UnitPath())
	return err == nil
}

// Status returns "running", "loaded", "not loaded" or "not installed".
func (s *Service) Status() string {
	if !s.IsInstalled() {
		return "not installed"
	}
	if s.run("systemctl", "--user", "is-active", "--quiet", unitName) == nil {
		return "running"
	}
	if s.run("systemctl", "--user", "is-enabled", "--quiet", unitName) == nil {
		return "loaded"
	}
	return "not loaded"
}

// quote wraps a path containing spaces for ExecStart.
func quote(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Compile-time check that Service implements ports.AgentService.
var _ ports.AgentService = (*Service)(nil)
