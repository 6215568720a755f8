// Package cmd implements the mbox-index command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mbox-index/config"
	"github.com/dhcgn/mbox-index/runner"
)

var rootCmd = &cobra.Command{
	Use:           "mbox-index",
	Short:         "Maintain a crash-safe index of an mbox mailbox",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	config.RegisterFlags(rootCmd)
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

// withRunner loads the configuration of cmd, opens the index and hands it to
// fn. The index is closed, and metrics are written, when fn returns.
func withRunner(cmd *cobra.Command, fn func(*runner.Runner) error) (err error) {
	cfg, err := config.LoadConfig(cmd)
	if err != nil {
		return err
	}

	logger, cleanup, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = cleanup()
	}()
	slog.SetDefault(logger)

	r, err := runner.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(r)
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("mbox-index-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler), cleanup, nil
}
