package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dhcgn/mbox-index/config"
	"github.com/dhcgn/mbox-index/index"
	"github.com/dhcgn/mbox-index/mbox"
	"github.com/dhcgn/mbox-index/stats"
	"github.com/dhcgn/mbox-index/stream"
)

// Runner owns the index of one mailbox for the lifetime of a command.
type Runner struct {
	cfg     config.Config
	logger  *slog.Logger
	idx     *index.Index
	metrics *stats.Metrics
}

func New(cfg config.Config, logger *slog.Logger) (*Runner, error) {
	metrics := stats.NewMetrics()

	idx, err := index.Open(index.Options{
		Dir:           cfg.IndexDir,
		MailboxPath:   cfg.MboxPath,
		Fsync:         cfg.Fsync,
		FsyncInterval: cfg.FsyncInterval,
		Metrics:       metrics,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:     cfg,
		logger:  logger,
		idx:     idx,
		metrics: metrics,
	}, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Index() *index.Index {
	return r.idx
}

func (r *Runner) Metrics() *stats.Metrics {
	return r.metrics
}

// Sync indexes the messages appended to the mailbox since the last sync.
func (r *Runner) Sync() (stats.Summary, error) {
	since := time.Now()
	collector := stats.NewCollector(r.metrics)

	err := r.sync(collector)
	summary := collector.Snapshot()
	attrs := append(summary.LogAttrs(), "mbox", r.cfg.MboxPath, "duration", time.Since(since))
	if err != nil {
		r.logger.Error("sync failed", append(attrs, "err", err)...)
		return summary, err
	}

	r.logger.Info("sync completed", attrs...)
	return summary, nil
}

func (r *Runner) sync(collector *stats.Collector) error {
	file, err := os.Open(r.cfg.MboxPath)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat mbox: %w", err)
	}

	if r.idx.NeedsCheck() {
		r.logger.Warn("index is flagged for a consistency check", "mbox", r.cfg.MboxPath)
	}

	appender := mbox.NewAppender(r.idx, mbox.AppendOptions{
		Cache:  r.cfg.CacheHeaders,
		Logger: r.logger,
		Emit:   collector.Observe,
	})

	tail, err := appender.CheckTail(info.Size())
	if err != nil {
		return err
	}

	r.logger.Debug("resuming mailbox scan", "mbox", r.cfg.MboxPath, "offset", tail, "size", info.Size())
	return appender.Append(stream.New(file, tail, info.Size()-tail))
}

// Close writes the metrics file, if configured, and closes the index.
func (r *Runner) Close() error {
	var errs []error
	if r.cfg.MetricsFile != "" {
		if err := r.metrics.WriteTextfile(r.cfg.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := r.idx.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close index: %w", err))
	}
	return errors.Join(errs...)
}
