package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/mcdonaldj/zipwatch/internal/config"
	"github.com/mcdonaldj/zipwatch/internal/extract"
	"github.com/mcdonaldj/zipwatch/internal/history"
	"github.com/mcdonaldj/zipwatch/internal/watch"
)

func (c *CLI) watchCmd() *cobra.Command {
	var shutdownTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory and extract archives as they arrive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.WatchDir = args[0]
			}
			return c.RunWatch(cfg, shutdownTimeout)
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 0,
		"how long to wait for running extractions on exit (0 waits until they finish)")
	return cmd
}

// RunWatch runs the watch loop until the run context is cancelled.
func (c *CLI) RunWatch(cfg *config.Config, shutdownTimeout time.Duration) error {
	log, closeLog, err := c.logger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	dir, err := watch.NewWatchedDirectory(cfg.WatchDir, cfg.Patterns)
	if err != nil {
		return err
	}
	src, err := c.source(dir.Path)
	if err != nil {
		return err
	}
	rec, err := c.recorder(cfg, log)
	if err != nil {
		_ = src.Close()
		return err
	}

	opts := cfg.WatchOptions()
	opts.OnOutcome = rec.Hook
	loop := watch.New(dir, src, c.pipeline(cfg, log), opts, log)

	ctx, cancel := c.runContext()
	defer cancel()
	if err := loop.Start(ctx); err != nil {
		_ = src.Close()
		return err
	}
	fmt.Fprintf(c.Out, "%s Watching %s %s\n", c.cyan("=>"), dir.Path, c.gray("(Ctrl-C to stop)"))

	<-ctx.Done()

	stopCtx := context.Background()
	if shutdownTimeout > 0 {
		var stopCancel context.CancelFunc
		stopCtx, stopCancel = context.WithTimeout(stopCtx, shutdownTimeout)
		defer stopCancel()
	}
	return loop.Stop(stopCtx)
}

func (c *CLI) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <archive>...",
		Short: "Extract archives now, as if they had just arrived",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return c.RunExtract(cmd.Context(), cfg, args)
		},
	}
}

// RunExtract handles each archive in turn and records the outcomes.
func (c *CLI) RunExtract(ctx context.Context, cfg *config.Config, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, closeLog, err := c.logger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	handler := c.pipeline(cfg, log)
	rec, err := c.recorder(cfg, log)
	if err != nil {
		return err
	}

	failed := 0
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		out := handler.Handle(ctx, extract.ArchiveEvent{Path: abs, DetectedAt: time.Now()})
		rec.Hook(out)
		c.printOutcome(out)
		if out.Failed() {
			failed++
		}
	}

	if failed > 0 {
		return errors.Newf("%d of %d archives failed", failed, len(paths))
	}
	return nil
}

func (c *CLI) printOutcome(out extract.Outcome) {
	name := filepath.Base(out.Event.Path)
	took := out.Duration().Round(time.Millisecond)
	switch out.Status() {
	case extract.StatusFailed:
		fmt.Fprintf(c.Out, "  %s %s: %v\n", c.red("x"), name, out.Err)
	case extract.StatusKept:
		fmt.Fprintf(c.Out, "  %s %s -> %s %s\n", c.yellow("!"), name, out.Target,
			c.gray(fmt.Sprintf("(%d entries in %s, archive left in place)", out.Entries, took)))
	default:
		fmt.Fprintf(c.Out, "  %s %s -> %s %s\n", c.green("*"), name, out.Target,
			c.gray(fmt.Sprintf("(%d entries in %s)", out.Entries, took)))
	}
}

func (c *CLI) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently handled archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ShowHistory(limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "number", "n", 20, "number of entries to show (0 for all)")
	return cmd
}

// ShowHistory prints the newest journal entries.
func (c *CLI) ShowHistory(limit int) error {
	path, err := c.configSvc().HistoryPath()
	if err != nil {
		return err
	}
	h, err := history.Load(path)
	if err != nil {
		return err
	}

	entries := h.Recent(limit)
	if len(entries) == 0 {
		fmt.Fprintln(c.Out, "No archives handled yet.")
		return nil
	}

	fmt.Fprintf(c.Out, "  %-19s %-9s %7s %9s  %s\n", "TIME", "STATUS", "ENTRIES", "SIZE", "ARCHIVE")
	fmt.Fprintf(c.Out, "  %-19s %-9s %7s %9s  %s\n", "----", "------", "-------", "----", "-------")
	for _, e := range entries {
		size := c.gray("-")
		if e.SizeBytes > 0 {
			size = FormatSize(e.SizeBytes)
		}
		detail := e.Target
		if e.Error != "" {
			detail = c.red(e.ErrorKind)
		}
		if e.RestoredAt != nil {
			detail += " " + c.gray("(restored)")
		}
		fmt.Fprintf(c.Out, "  %-19s %-9s %7d %9s  %s -> %s\n",
			e.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			c.statusColor(e.Status),
			e.Entries,
			size,
			e.Name(),
			detail)
	}
	return nil
}

func (c *CLI) statusColor(status string) string {
	padded := fmt.Sprintf("%-9s", status)
	switch extract.Status(status) {
	case extract.StatusExtracted:
		return c.green(padded)
	case extract.StatusKept:
		return c.yellow(padded)
	default:
		return c.red(padded)
	}
}

func (c *CLI) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [name]",
		Short: "Move a recycled archive back out of the trash (lists candidates without a name)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return c.ListRestorable()
			}
			return c.RunRestore(args[0])
		},
	}
}

// RunRestore restores the newest recycled archive called name.
func (c *CLI) RunRestore(name string) error {
	path, err := c.configSvc().HistoryPath()
	if err != nil {
		return err
	}
	entry, err := c.recoverySvc().Restore(path, name)
	if err != nil {
		return errors.Wrap(err, "restore failed")
	}
	fmt.Fprintf(c.Out, "%s Restored %s to %s\n", c.green("*"), entry.Name(), entry.Archive)
	return nil
}

// ListRestorable prints archives that can be restored.
func (c *CLI) ListRestorable() error {
	path, err := c.configSvc().HistoryPath()
	if err != nil {
		return err
	}
	entries, err := c.recoverySvc().ListRestorable(path)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.Out, "Nothing to restore.")
		return nil
	}
	fmt.Fprintln(c.Out, "Restorable archives:")
	for _, e := range entries {
		fmt.Fprintf(c.Out, "  %s %s %s\n", c.cyan(e.Name()), c.gray(e.FinishedAt.Local().Format("2006-01-02 15:04")), e.TrashPath)
	}
	return nil
}

func (c *CLI) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.InitConfig(force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

// InitConfig creates the default config file.
func (c *CLI) InitConfig(force bool) error {
	svc := c.configSvc()
	path, err := c.configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return errors.Newf("config already exists at %s (use --force to overwrite)", path)
	}

	cfg, err := svc.DefaultConfig()
	if err != nil {
		return err
	}
	if err := svc.Save(cfg, c.configPath); err != nil {
		return errors.Wrap(err, "saving config")
	}
	fmt.Fprintf(c.Out, "Created config at %s\n", path)
	return nil
}

func (c *CLI) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and agent status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ShowStatus()
		},
	}
}

// ShowStatus shows the current status.
func (c *CLI) ShowStatus() error {
	cfg, err := c.configSvc().Load(c.configPath)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	configPath, err := c.configFilePath()
	if err != nil {
		return err
	}
	historyPath, err := c.configSvc().HistoryPath()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.Out, "zipwatch status:")
	fmt.Fprintf(c.Out, "  Watch:   %s %s\n", cfg.WatchDir, c.gray("("+strings.Join(cfg.Patterns, ", ")+")"))
	trashDir := cfg.Trash.Dir
	if trashDir == "" {
		trashDir = "platform default"
	}
	fmt.Fprintf(c.Out, "  Trash:   %s\n", trashDir)
	fmt.Fprintf(c.Out, "  Config:  %s\n", configPath)

	if h, err := history.Load(historyPath); err == nil {
		fmt.Fprintf(c.Out, "  History: %s %s\n", historyPath, c.gray(fmt.Sprintf("(%d entries)", len(h.Entries))))
		if last := h.Latest(); last != nil {
			fmt.Fprintf(c.Out, "  Last:    %s %s %s\n", last.Name(), c.statusColor(last.Status),
				c.gray(last.FinishedAt.Local().Format("2006-01-02 15:04:05")))
		}
	} else {
		fmt.Fprintf(c.Out, "  History: %s %s\n", historyPath, c.red("unreadable"))
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(c.Out, "  Problem: %s\n", c.red(err.Error()))
	}

	switch status := c.agentSvc().Status(); status {
	case "running", "loaded":
		fmt.Fprintf(c.Out, "  Agent:   %s\n", c.green(status))
	default:
		fmt.Fprintf(c.Out, "  Agent:   %s\n", c.gray(status))
	}
	return nil
}

func (c *CLI) installCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Run zipwatch at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.InstallAgent()
		},
	}
}

// InstallAgent installs the login agent running "zipwatch watch".
func (c *CLI) InstallAgent() error {
	svc := c.agentSvc()
	if svc.IsInstalled() {
		return errors.New("agent already installed, uninstall first to reinstall")
	}

	exe, err := os.Executable()
	if err != nil {
		exe = ""
	}
	configPath := ""
	if c.configPath != "" {
		if configPath, err = filepath.Abs(c.configPath); err != nil {
			return err
		}
	}

	if err := svc.Install(exe, configPath); err != nil {
		return errors.Wrap(err, "installing agent")
	}

	fmt.Fprintf(c.Out, "%s Installed login agent\n", c.green("*"))
	fmt.Fprintf(c.Out, "  Unit: %s\n", svc.UnitPath())
	fmt.Fprintf(c.Out, "  Log:  %s\n", svc.LogPath())
	return nil
}

func (c *CLI) uninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Stop running zipwatch at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.UninstallAgent()
		},
	}
}

// UninstallAgent removes the login agent.
func (c *CLI) UninstallAgent() error {
	svc := c.agentSvc()
	if !svc.IsInstalled() {
		return errors.New("agent not installed")
	}
	if err := svc.Uninstall(); err != nil {
		return errors.Wrap(err, "uninstalling agent")
	}
	fmt.Fprintf(c.Out, "%s Uninstalled login agent\n", c.yellow("-"))
	return nil
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
