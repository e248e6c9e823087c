// Package config loads ~/.zipwatch/config.yaml.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/mcdonaldj/zipwatch/internal/watch"
)

// ErrNoHomeDir is returned when the user's home directory cannot be determined.
var ErrNoHomeDir = errors.New("cannot determine home directory")

// TrashConfig controls where processed archives go.
type TrashConfig struct {
	// Dir overrides the platform trash. Empty means the platform default.
	Dir string `yaml:"dir"`
	// CheckOpenHandles refuses to recycle archives another process has open.
	CheckOpenHandles bool `yaml:"check_open_handles"`
}

// HistoryConfig controls the outcome journal.
type HistoryConfig struct {
	KeepLast int `yaml:"keep_last"` // 0 = unlimited
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

type Config struct {
	WatchDir     string        `yaml:"watch_dir"`
	Patterns     []string      `yaml:"patterns"`
	Settle       time.Duration `yaml:"settle"`
	QueueSize    int           `yaml:"queue_size"`
	ScanExisting bool          `yaml:"scan_existing"`
	Trash        TrashConfig   `yaml:"trash"`
	History      HistoryConfig `yaml:"history"`
	Log          LogConfig     `yaml:"log"`
}

// Dir returns ~/.zipwatch, which holds the config, history and log.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "locating config directory"), ErrNoHomeDir)
	}
	return filepath.Join(home, ".zipwatch"), nil
}

// DefaultWatchDir returns the user's downloads folder.
func DefaultWatchDir() (string, error) {
	if dir := xdg.UserDirs.Download; dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "locating downloads directory"), ErrNoHomeDir)
	}
	return filepath.Join(home, "Downloads"), nil
}

func DefaultConfig() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	watchDir, err := DefaultWatchDir()
	if err != nil {
		return nil, err
	}
	return &Config{
		WatchDir:     watchDir,
		Patterns:     append([]string(nil), watch.DefaultPatterns...),
		Settle:       watch.DefaultOptions().Settle,
		QueueSize:    watch.DefaultOptions().QueueSize,
		ScanExisting: false,
		Trash: TrashConfig{
			CheckOpenHandles: true,
		},
		History: HistoryConfig{KeepLast: 500},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "zipwatch.log"),
		},
	}, nil
}

// ConfigPath returns the path of the config file.
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// HistoryPath returns the path of the outcome journal.
func HistoryPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.json"), nil
}

// Load reads the config file, falling back to defaults when it is missing.
// Paths in the result are expanded.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Keys absent from the file keep their
// default values.
func LoadFrom(path string) (*Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.expand() // Use defaults
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if err := cfg.expand(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to ConfigPath.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path.
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}

	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing %s", path)
}

// Validate reports the first setting the watcher cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WatchDir) == "" {
		return errors.New("watch_dir must not be empty")
	}
	if len(c.Patterns) == 0 {
		return errors.New("patterns must list at least one glob")
	}
	for _, p := range c.Patterns {
		if err := watch.ValidatePattern(p); err != nil {
			return err
		}
	}
	if c.Settle < 0 {
		return errors.Newf("settle must not be negative, got %s", c.Settle)
	}
	if c.QueueSize < 1 {
		return errors.Newf("queue_size must be at least 1, got %d", c.QueueSize)
	}
	if c.History.KeepLast < 0 {
		return errors.Newf("history.keep_last must not be negative, got %d", c.History.KeepLast)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Newf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// WatchOptions converts the watcher settings.
func (c *Config) WatchOptions() watch.Options {
	return watch.Options{
		Settle:       c.Settle,
		QueueSize:    c.QueueSize,
		ScanExisting: c.ScanExisting,
	}
}

func (c *Config) expand() error {
	for _, p := range []*string{&c.WatchDir, &c.Trash.Dir, &c.Log.File} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "expanding %s", path), ErrNoHomeDir)
	}
	return filepath.Join(home, path[1:]), nil
}
