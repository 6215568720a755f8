package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mbox-index/header"
	"github.com/dhcgn/mbox-index/model"
	pebblestore "github.com/dhcgn/mbox-index/storage/pebble"
)

func parse(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	RegisterFlags(cmd)
	if err := RegisterMboxFlag(cmd, false); err != nil {
		t.Fatalf("RegisterMboxFlag: %v", err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	return LoadConfig(cmd)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(IndexDirEnv, "")

	cfg, err := parse(t, "--mbox", "/var/mail/alice")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IndexDir != filepath.Clean("/var/mail/alice.index") {
		t.Errorf("IndexDir = %q", cfg.IndexDir)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Fsync != pebblestore.FsyncModeInterval || cfg.FsyncInterval != 100*time.Millisecond {
		t.Errorf("fsync = %v/%v", cfg.Fsync, cfg.FsyncInterval)
	}
	if len(cfg.CacheHeaders) != len(header.DefaultCache) {
		t.Errorf("CacheHeaders = %v", cfg.CacheHeaders)
	}
}

func TestLoadConfigIndexDirFromEnv(t *testing.T) {
	t.Setenv(IndexDirEnv, "/srv/index")

	cfg, err := parse(t, "--mbox", "/var/mail/alice")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IndexDir != filepath.Clean("/srv/index") {
		t.Errorf("IndexDir = %q", cfg.IndexDir)
	}

	cfg, err = parse(t, "--index-dir", "/tmp/explicit/")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IndexDir != filepath.Clean("/tmp/explicit") {
		t.Errorf("IndexDir = %q", cfg.IndexDir)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := parse(t,
		"--index-dir", "/tmp/idx",
		"--log-level", "WARNING",
		"--fsync", "always",
		"--cache-header", "Subject",
		"--cache-header", "message-id",
		"--metrics-file", "/tmp/metrics.prom",
	)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Fsync != pebblestore.FsyncModeAlways {
		t.Errorf("Fsync = %v", cfg.Fsync)
	}
	want := []model.FieldKind{model.FieldSubject, model.FieldMessageID}
	if len(cfg.CacheHeaders) != len(want) || cfg.CacheHeaders[0] != want[0] || cfg.CacheHeaders[1] != want[1] {
		t.Errorf("CacheHeaders = %v, want %v", cfg.CacheHeaders, want)
	}
	if cfg.MetricsFile != "/tmp/metrics.prom" {
		t.Errorf("MetricsFile = %q", cfg.MetricsFile)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Setenv(IndexDirEnv, "")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no index location", args: nil, want: "--index-dir"},
		{name: "bad log level", args: []string{"--index-dir", "x", "--log-level", "loud"}, want: "--log-level"},
		{name: "bad fsync", args: []string{"--index-dir", "x", "--fsync", "sometimes"}, want: "--fsync"},
		{name: "bad interval", args: []string{"--index-dir", "x", "--fsync-interval", "0s"}, want: "--fsync-interval"},
		{name: "bad header", args: []string{"--index-dir", "x", "--cache-header", "x-spam"}, want: "--cache-header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}
