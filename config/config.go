package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mbox-index/header"
	"github.com/dhcgn/mbox-index/model"
	pebblestore "github.com/dhcgn/mbox-index/storage/pebble"
)

// IndexDirEnv names the environment variable consulted when --index-dir is
// not given.
const IndexDirEnv = "MBOX_INDEX_DIR"

// Config captures the command-line options shared by all subcommands.
type Config struct {
	MboxPath      string
	IndexDir      string
	LogLevel      string
	LogDir        string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	CacheHeaders  []model.FieldKind
	MetricsFile   string
}

// RegisterFlags attaches the global flags to the root command. They are
// inherited by every subcommand.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("index-dir", "", "Directory of the mailbox index (falls back to "+IndexDirEnv+", then <mbox>.index)")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Also write logs to a timestamped file in this directory")
	flags.String("fsync", "interval", "Index WAL sync policy: always, interval, never")
	flags.Duration("fsync-interval", 100*time.Millisecond, "Group-commit window when --fsync=interval")
	flags.StringArray("cache-header", nil, "Header field to cache per message (subject, from, message-id, date); repeatable")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after the command finishes")
}

// RegisterMboxFlag adds the --mbox flag to cmd. When required is set the
// command refuses to run without it.
func RegisterMboxFlag(cmd *cobra.Command, required bool) error {
	cmd.Flags().String("mbox", "", "Path to the mbox file")
	if required {
		return cmd.MarkFlagRequired("mbox")
	}
	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	var mboxPath string
	if flags.Lookup("mbox") != nil {
		var err error
		mboxPath, err = flags.GetString("mbox")
		if err != nil {
			return Config{}, err
		}
	}
	indexDir, err := flags.GetString("index-dir")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}
	fsync, err := flags.GetString("fsync")
	if err != nil {
		return Config{}, err
	}
	fsyncInterval, err := flags.GetDuration("fsync-interval")
	if err != nil {
		return Config{}, err
	}
	cacheHeaders, err := flags.GetStringArray("cache-header")
	if err != nil {
		return Config{}, err
	}
	metricsFile, err := flags.GetString("metrics-file")
	if err != nil {
		return Config{}, err
	}

	if indexDir == "" {
		indexDir = os.Getenv(IndexDirEnv)
	}
	if indexDir == "" && mboxPath != "" {
		indexDir = mboxPath + ".index"
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	fsyncMode, err := pebblestore.ParseFsyncMode(fsync)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --fsync: %w", err)
	}

	cache := header.DefaultCache
	if len(cacheHeaders) > 0 {
		cache = make([]model.FieldKind, 0, len(cacheHeaders))
		for _, name := range cacheHeaders {
			kind, ok := model.ParseFieldKind(name)
			if !ok {
				return Config{}, fmt.Errorf("invalid --cache-header: %s", name)
			}
			cache = append(cache, kind)
		}
	}

	cfg := Config{
		MboxPath:      mboxPath,
		IndexDir:      indexDir,
		LogLevel:      logLevel,
		LogDir:        logDir,
		Fsync:         fsyncMode,
		FsyncInterval: fsyncInterval,
		CacheHeaders:  cache,
		MetricsFile:   metricsFile,
	}
	if cfg.IndexDir != "" {
		cfg.IndexDir = filepath.Clean(cfg.IndexDir)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.IndexDir == "" {
		return fmt.Errorf("--index-dir, %s or --mbox is required", IndexDirEnv)
	}
	if cfg.Fsync == pebblestore.FsyncModeInterval && cfg.FsyncInterval <= 0 {
		return fmt.Errorf("--fsync-interval must be positive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}
