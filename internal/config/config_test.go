package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

// withHome points HOME at a fresh temp dir for the duration of the test.
func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, home, content string) string {
	t.Helper()
	dir := filepath.Join(home, ".zipwatch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	home := withHome(t)

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}

	if cfg.WatchDir == "" || !filepath.IsAbs(cfg.WatchDir) {
		t.Errorf("WatchDir = %q, expected an absolute path", cfg.WatchDir)
	}
	if len(cfg.Patterns) != 1 || cfg.Patterns[0] != "*.zip" {
		t.Errorf("Patterns = %v, expected [*.zip]", cfg.Patterns)
	}
	if cfg.Settle != time.Second {
		t.Errorf("Settle = %v, expected 1s", cfg.Settle)
	}
	if cfg.QueueSize != 64 {
		t.Errorf("QueueSize = %d, expected 64", cfg.QueueSize)
	}
	if cfg.ScanExisting {
		t.Error("ScanExisting should default to false")
	}
	if !cfg.Trash.CheckOpenHandles {
		t.Error("Trash.CheckOpenHandles should default to true")
	}
	if cfg.Trash.Dir != "" {
		t.Errorf("Trash.Dir = %q, expected platform default", cfg.Trash.Dir)
	}
	if cfg.History.KeepLast != 500 {
		t.Errorf("History.KeepLast = %d, expected 500", cfg.History.KeepLast)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, expected info", cfg.Log.Level)
	}
	if want := filepath.Join(home, ".zipwatch", "zipwatch.log"); cfg.Log.File != want {
		t.Errorf("Log.File = %q, expected %q", cfg.Log.File, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDefaultPatternsNotShared(t *testing.T) {
	withHome(t)

	a, _ := DefaultConfig()
	a.Patterns[0] = "*.rar"
	b, _ := DefaultConfig()
	if b.Patterns[0] != "*.zip" {
		t.Errorf("mutating one default leaked into another: %v", b.Patterns)
	}
}

func TestLoadMissingConfig(t *testing.T) {
	withHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed for missing config: %v", err)
	}
	if cfg.QueueSize != 64 {
		t.Errorf("Expected default queue size, got %d", cfg.QueueSize)
	}
}

func TestLoadValidConfig(t *testing.T) {
	home := withHome(t)
	writeConfig(t, home, `watch_dir: ~/Incoming
patterns: ["*.zip", "*.ZIPX"]
settle: 250ms
queue_size: 8
scan_existing: true
trash:
  dir: ~/.local/share/Trash
  check_open_handles: false
history:
  keep_last: 10
log:
  level: debug
  json: true
  file: /var/log/zipwatch.log
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if want := filepath.Join(home, "Incoming"); cfg.WatchDir != want {
		t.Errorf("WatchDir = %q, expected %q", cfg.WatchDir, want)
	}
	if len(cfg.Patterns) != 2 {
		t.Errorf("Patterns = %v, expected 2 entries", cfg.Patterns)
	}
	if cfg.Settle != 250*time.Millisecond {
		t.Errorf("Settle = %v, expected 250ms", cfg.Settle)
	}
	if cfg.QueueSize != 8 || !cfg.ScanExisting {
		t.Errorf("QueueSize = %d, ScanExisting = %v", cfg.QueueSize, cfg.ScanExisting)
	}
	if want := filepath.Join(home, ".local", "share", "Trash"); cfg.Trash.Dir != want {
		t.Errorf("Trash.Dir = %q, expected %q", cfg.Trash.Dir, want)
	}
	if cfg.Trash.CheckOpenHandles {
		t.Error("Trash.CheckOpenHandles should be false")
	}
	if cfg.History.KeepLast != 10 {
		t.Errorf("History.KeepLast = %d, expected 10", cfg.History.KeepLast)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.JSON || cfg.Log.File != "/var/log/zipwatch.log" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	home := withHome(t)
	writeConfig(t, home, "watch_dir: /data/inbox\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WatchDir != "/data/inbox" {
		t.Errorf("WatchDir = %q, expected /data/inbox", cfg.WatchDir)
	}
	// Everything else keeps its default
	if cfg.Settle != time.Second || cfg.QueueSize != 64 || cfg.History.KeepLast != 500 {
		t.Errorf("defaults not kept: %+v", cfg)
	}
}

func TestLoadMalformedConfig(t *testing.T) {
	home := withHome(t)
	writeConfig(t, home, "this: is: not: valid: yaml: [[[")

	if _, err := Load(); err == nil {
		t.Error("Load should fail for malformed YAML")
	}
}

func TestLoadBadDuration(t *testing.T) {
	home := withHome(t)
	writeConfig(t, home, "settle: soon\n")

	if _, err := Load(); err == nil {
		t.Error("Load should fail for an unparseable duration")
	}
}

func TestLoadReadFileError(t *testing.T) {
	home := withHome(t)
	// A directory where the file should be
	if err := os.MkdirAll(filepath.Join(home, ".zipwatch", "config.yaml"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Error("Load should fail when config path is a directory")
	}
}

func TestLoadFrom(t *testing.T) {
	withHome(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("queue_size: 3\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.QueueSize != 3 {
		t.Errorf("QueueSize = %d, expected 3", cfg.QueueSize)
	}
}

func TestSaveConfig(t *testing.T) {
	home := withHome(t)

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	cfg.WatchDir = "/custom/inbox"
	cfg.Settle = 3 * time.Second

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(home, ".zipwatch", "config.yaml"))
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}
	if !strings.Contains(string(data), "settle: 3s") {
		t.Errorf("saved config should store settle as a duration string:\n%s", data)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load after Save failed: %v", err)
	}
	if loaded.WatchDir != "/custom/inbox" || loaded.Settle != 3*time.Second {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestValidate(t *testing.T) {
	withHome(t)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty watch dir", func(c *Config) { c.WatchDir = " " }, "watch_dir"},
		{"no patterns", func(c *Config) { c.Patterns = nil }, "patterns"},
		{"bad glob", func(c *Config) { c.Patterns = []string{"[zip"} }, "invalid pattern"},
		{"glob with dir", func(c *Config) { c.Patterns = []string{"a/*.zip"} }, "base-name"},
		{"negative settle", func(c *Config) { c.Settle = -time.Second }, "settle"},
		{"zero settle ok", func(c *Config) { c.Settle = 0 }, ""},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }, "queue_size"},
		{"negative keep", func(c *Config) { c.History.KeepLast = -1 }, "keep_last"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"upper level ok", func(c *Config) { c.Log.Level = "WARN" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := DefaultConfig()
			if err != nil {
				t.Fatalf("DefaultConfig failed: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, expected nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, expected error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWatchOptions(t *testing.T) {
	cfg := &Config{Settle: 2 * time.Second, QueueSize: 5, ScanExisting: true}
	opts := cfg.WatchOptions()
	if opts.Settle != 2*time.Second || opts.QueueSize != 5 || !opts.ScanExisting {
		t.Errorf("WatchOptions() = %+v", opts)
	}
	if opts.OnOutcome != nil {
		t.Error("OnOutcome is wired by the caller")
	}
}

func TestExpandPath(t *testing.T) {
	home := withHome(t)

	tests := []struct {
		input    string
		expected string
	}{
		{"~/Downloads", filepath.Join(home, "Downloads")},
		{"~", home},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~other/path", "~other/path"},
		{"", ""},
	}

	for _, tt := range tests {
		result, err := ExpandPath(tt.input)
		if err != nil {
			t.Errorf("ExpandPath(%q) failed: %v", tt.input, err)
			continue
		}
		if result != tt.expected {
			t.Errorf("ExpandPath(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestConfigPath(t *testing.T) {
	home := withHome(t)

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath failed: %v", err)
	}
	if want := filepath.Join(home, ".zipwatch", "config.yaml"); path != want {
		t.Errorf("ConfigPath() = %q, expected %q", path, want)
	}

	hist, err := HistoryPath()
	if err != nil {
		t.Fatalf("HistoryPath failed: %v", err)
	}
	if want := filepath.Join(home, ".zipwatch", "history.json"); hist != want {
		t.Errorf("HistoryPath() = %q, expected %q", hist, want)
	}
}

// ============================================================================
// Tests for error paths when HOME is unavailable
// ============================================================================

func TestExpandPathNoHome(t *testing.T) {
	t.Setenv("HOME", "")

	_, err := ExpandPath("~/Downloads")
	if !errors.Is(err, ErrNoHomeDir) {
		t.Errorf("Expected ErrNoHomeDir, got: %v", err)
	}

	// Non-tilde paths should still work
	result, err := ExpandPath("/absolute/path")
	if err != nil || result != "/absolute/path" {
		t.Errorf("ExpandPath(/absolute/path) = %q, %v", result, err)
	}
}

func TestConfigPathNoHome(t *testing.T) {
	t.Setenv("HOME", "")

	if _, err := ConfigPath(); !errors.Is(err, ErrNoHomeDir) {
		t.Errorf("Expected ErrNoHomeDir, got: %v", err)
	}
	if _, err := HistoryPath(); !errors.Is(err, ErrNoHomeDir) {
		t.Errorf("Expected ErrNoHomeDir, got: %v", err)
	}
}

func TestDefaultConfigNoHome(t *testing.T) {
	t.Setenv("HOME", "")

	if _, err := DefaultConfig(); !errors.Is(err, ErrNoHomeDir) {
		t.Errorf("Expected ErrNoHomeDir, got: %v", err)
	}
}

func TestLoadNoHome(t *testing.T) {
	t.Setenv("HOME", "")

	if _, err := Load(); err == nil {
		t.Error("Load should fail when HOME is not set")
	}
}

func TestSaveNoHome(t *testing.T) {
	t.Setenv("HOME", "")

	cfg := &Config{WatchDir: "/tmp"}
	if err := cfg.Save(); err == nil {
		t.Error("Save should fail when HOME is not set")
	}
}
