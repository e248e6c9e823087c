// Package logging builds the zap logger shared by every component.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mcdonaldj/zipwatch/internal/config"
)

// ParseLevel maps a config level name to a zap level. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zap.InfoLevel, nil
	case "debug":
		return zap.DebugLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, errors.Newf("unknown log level %q", name)
	}
}

// New builds a logger writing to console (human-readable, or JSON when
// cfg.JSON is set) and, when cfg.File is set, also appending JSON lines to
// that file. The returned close func flushes and closes the file.
func New(cfg config.LogConfig, console io.Writer) (*zap.SugaredLogger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if console == nil {
		console = os.Stderr
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(cfg.JSON), zapcore.AddSync(console), level),
	}

	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, errors.Wrap(err, "creating log directory")
		}
		file, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "opening log file %s", cfg.File)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderConfig()),
			zapcore.AddSync(file),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() error {
		// Sync on a terminal returns EINVAL on some platforms; ignore it.
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger.Sugar(), closeFn, nil
}

func consoleEncoder(json bool) zapcore.Encoder {
	if json {
		return zapcore.NewJSONEncoder(fileEncoderConfig())
	}
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.CallerKey = zapcore.OmitKey
	return zapcore.NewConsoleEncoder(ec)
}

func fileEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.CallerKey = zapcore.OmitKey
	return ec
}
