// Package cli provides the command-line interface with injectable io.Writer for testing.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcdonaldj/zipwatch/internal/adapters/fsnotifier"
	"github.com/mcdonaldj/zipwatch/internal/adapters/maclaunchd"
	"github.com/mcdonaldj/zipwatch/internal/adapters/systemdunit"
	"github.com/mcdonaldj/zipwatch/internal/config"
	"github.com/mcdonaldj/zipwatch/internal/extract"
	"github.com/mcdonaldj/zipwatch/internal/history"
	"github.com/mcdonaldj/zipwatch/internal/logging"
	"github.com/mcdonaldj/zipwatch/internal/ports"
	"github.com/mcdonaldj/zipwatch/internal/recovery"
	"github.com/mcdonaldj/zipwatch/internal/watch"
)

// ConfigService provides configuration operations for the CLI.
type ConfigService interface {
	// Load reads the config at path, or the default location when path is empty.
	Load(path string) (*config.Config, error)
	Save(cfg *config.Config, path string) error
	ConfigPath() (string, error)
	HistoryPath() (string, error)
	DefaultConfig() (*config.Config, error)
}

// RecoveryService provides restore operations for the CLI.
type RecoveryService interface {
	Restore(historyPath, name string) (*history.Entry, error)
	ListRestorable(historyPath string) ([]history.Entry, error)
}

// PipelineFactory builds the handler for one archive from the config.
type PipelineFactory func(cfg *config.Config, log *zap.SugaredLogger) watch.Handler

// SourceFactory opens the notification source for a directory.
type SourceFactory func(dir string) (ports.NotificationSource, error)

// CLI represents the command-line interface with injectable dependencies.
type CLI struct {
	Out     io.Writer // Standard output
	Err     io.Writer // Standard error
	Version string    // Application version
	Args    []string  // Command arguments (like os.Args)

	// Exit function for testability (defaults to os.Exit)
	Exit func(code int)

	// Injectable dependencies (nil means use defaults)
	ConfigSvc   ConfigService
	RecoverySvc RecoveryService
	AgentSvc    ports.AgentService
	NewPipeline PipelineFactory
	NewSource   SourceFactory
	// Context returns the context the watch command runs under; it is
	// cancelled on SIGINT/SIGTERM by default.
	Context func() (context.Context, context.CancelFunc)

	configPath string // --config

	// Color functions (can be disabled for testing)
	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	gray   func(a ...interface{}) string
	red    func(a ...interface{}) string
}

// New creates a new CLI with default settings.
func New(version string) *CLI {
	return &CLI{
		Out:     os.Stdout,
		Err:     os.Stderr,
		Version: version,
		Args:    os.Args,
		Exit:    os.Exit,
		green:   color.New(color.FgGreen, color.Bold).SprintFunc(),
		yellow:  color.New(color.FgYellow).SprintFunc(),
		cyan:    color.New(color.FgCyan).SprintFunc(),
		gray:    color.New(color.FgHiBlack).SprintFunc(),
		red:     color.New(color.FgRed).SprintFunc(),
	}
}

// NewForTesting creates a CLI configured for testing (no colors, captured output).
func NewForTesting(out, errOut io.Writer, args []string) *CLI {
	noColor := func(a ...interface{}) string { return fmt.Sprint(a...) }
	return &CLI{
		Out:     out,
		Err:     errOut,
		Version: "test",
		Args:    args,
		Exit:    func(code int) {},
		green:   noColor,
		yellow:  noColor,
		cyan:    noColor,
		gray:    noColor,
		red:     noColor,
	}
}

// defaultConfigService wraps the config package functions.
type defaultConfigService struct{}

func (d *defaultConfigService) Load(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func (d *defaultConfigService) Save(cfg *config.Config, path string) error {
	if path == "" {
		return cfg.Save()
	}
	return cfg.SaveTo(path)
}

func (d *defaultConfigService) ConfigPath() (string, error)            { return config.ConfigPath() }
func (d *defaultConfigService) HistoryPath() (string, error)           { return config.HistoryPath() }
func (d *defaultConfigService) DefaultConfig() (*config.Config, error) { return config.DefaultConfig() }

// Helper methods to get the service or default
func (c *CLI) configSvc() ConfigService {
	if c.ConfigSvc != nil {
		return c.ConfigSvc
	}
	return &defaultConfigService{}
}

func (c *CLI) recoverySvc() RecoveryService {
	if c.RecoverySvc != nil {
		return c.RecoverySvc
	}
	return recovery.NewDefaultService()
}

func (c *CLI) agentSvc() ports.AgentService {
	if c.AgentSvc != nil {
		return c.AgentSvc
	}
	if runtime.GOOS == "darwin" {
		return maclaunchd.New()
	}
	return systemdunit.New()
}

func (c *CLI) pipeline(cfg *config.Config, log *zap.SugaredLogger) watch.Handler {
	if c.NewPipeline != nil {
		return c.NewPipeline(cfg, log)
	}
	return extract.NewDefaultPipeline(cfg.Trash.Dir, cfg.Trash.CheckOpenHandles, log)
}

func (c *CLI) source(dir string) (ports.NotificationSource, error) {
	if c.NewSource != nil {
		return c.NewSource(dir)
	}
	return fsnotifier.Open(dir)
}

func (c *CLI) runContext() (context.Context, context.CancelFunc) {
	if c.Context != nil {
		return c.Context()
	}
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Run executes the CLI with the configured arguments.
func (c *CLI) Run() {
	root := c.rootCmd()
	if len(c.Args) > 1 {
		root.SetArgs(c.Args[1:])
	} else {
		root.SetArgs([]string{})
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintf(c.Err, "%s %v\n", c.red("Error:"), err)
		c.Exit(1)
	}
}

func (c *CLI) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zipwatch",
		Short: "Extract archives as they land in a folder",
		Long: `zipwatch watches a directory (your downloads folder by default) and
extracts every new .zip into a sibling folder named after it, then moves the
archive to the trash.

Config: ~/.zipwatch/config.yaml`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		Version:           c.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(c.Out)
	root.SetErr(c.Err)
	root.SetVersionTemplate("zipwatch v{{.Version}}\n")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.zipwatch/config.yaml)")

	root.AddCommand(
		c.watchCmd(),
		c.extractCmd(),
		c.historyCmd(),
		c.restoreCmd(),
		c.initCmd(),
		c.statusCmd(),
		c.installCmd(),
		c.uninstallCmd(),
		c.versionCmd(),
	)
	return root
}

// loadConfig loads and validates the config named by --config.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := c.configSvc().Load(c.configPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// logger builds the logger for long-running commands.
func (c *CLI) logger(cfg *config.Config) (*zap.SugaredLogger, func() error, error) {
	return logging.New(cfg.Log, c.Err)
}

func (c *CLI) recorder(cfg *config.Config, log *zap.SugaredLogger) (*history.Recorder, error) {
	path, err := c.configSvc().HistoryPath()
	if err != nil {
		return nil, err
	}
	return history.NewRecorder(path, cfg.History.KeepLast, log), nil
}

func (c *CLI) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.Out, "zipwatch v%s\n", c.Version)
		},
	}
}

// configFilePath is --config or the default location.
func (c *CLI) configFilePath() (string, error) {
	if c.configPath != "" {
		return filepath.Abs(c.configPath)
	}
	return c.configSvc().ConfigPath()
}
