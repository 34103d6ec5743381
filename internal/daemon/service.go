// Package daemon keeps the downloader running as a long-lived service:
// cron-triggered runs, config hot-reload, systemd readiness.
package daemon

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"fbdownloader/internal/config"
	"fbdownloader/internal/downloader"
	logx "fbdownloader/pkg/logx"
)

type Service struct {
	mgr    *config.Manager
	dl     *downloader.Downloader
	logSvc *logx.Service
	log    logx.Logger

	// runMu serializes runs: a schedule tick that fires while the previous
	// run is still downloading is skipped, not queued.
	runMu sync.Mutex

	mu      sync.Mutex
	c       *cron.Cron
	entry   cron.EntryID
	current *config.DaemonConfig
}

func New(mgr *config.Manager, dl *downloader.Downloader, logSvc *logx.Service, log logx.Logger) *Service {
	return &Service{mgr: mgr, dl: dl, logSvc: logSvc, log: log}
}

// Run blocks until ctx is cancelled. The schedule triggers download runs;
// config file changes re-apply logging, downloader settings and the
// schedule without a restart.
func (s *Service) Run(ctx context.Context) error {
	cfg := s.mgr.Get()
	if cfg == nil || cfg.Daemon == nil {
		return fmt.Errorf("daemon mode requires a daemon config section")
	}

	if err := s.startCron(ctx, cfg.Daemon); err != nil {
		return err
	}

	updates := s.mgr.Subscribe(1)
	defer s.mgr.Unsubscribe(updates)

	watchDone := make(chan error, 1)
	go func() { watchDone <- s.mgr.Watch(ctx) }()

	// Readiness is best-effort: outside systemd SdNotify is a no-op.
	_, _ = sd.SdNotify(false, sd.SdNotifyReady)
	s.log.Info("daemon started", logx.String("schedule", cfg.Daemon.Schedule))

	for {
		select {
		case <-ctx.Done():
			_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
			s.stopCron()
			// An in-flight run observes the cancelled ctx; wait for it to
			// return before reporting stopped.
			s.runMu.Lock()
			s.runMu.Unlock()
			<-watchDone
			return nil
		case next := <-updates:
			if next == nil {
				continue
			}
			s.apply(ctx, next)
		}
	}
}

// apply installs a reloaded config: logging first so subsequent messages use
// the new sinks, then the downloader, then the schedule.
func (s *Service) apply(ctx context.Context, cfg *config.Config) {
	if s.logSvc != nil {
		s.logSvc.Apply(logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File: logx.FileConfig{
				Enabled: cfg.Logging.File.Enabled,
				Path:    cfg.Logging.File.Path,
			},
		})
	}
	s.dl.Apply(cfg)

	if cfg.Daemon == nil {
		s.log.Warn("config reload removed the daemon section; keeping previous schedule")
		return
	}

	s.mu.Lock()
	changed := s.current == nil ||
		s.current.Schedule != cfg.Daemon.Schedule ||
		!strings.EqualFold(s.current.Timezone, cfg.Daemon.Timezone)
	s.mu.Unlock()
	if !changed {
		return
	}

	s.stopCron()
	if err := s.startCron(ctx, cfg.Daemon); err != nil {
		s.log.Error("schedule rejected; daemon keeps running without one", logx.Err(err))
	}
}

func (s *Service) startCron(ctx context.Context, dc *config.DaemonConfig) error {
	loc := time.UTC
	if tz := strings.TrimSpace(dc.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("daemon.timezone: %w", err)
		}
		loc = l
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(loc))
	id, err := c.AddFunc(dc.Schedule, func() { s.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("daemon.schedule %q: %w", dc.Schedule, err)
	}
	c.Start()

	s.mu.Lock()
	s.c = c
	s.entry = id
	s.current = dc
	s.mu.Unlock()

	s.log.Info("schedule installed",
		logx.String("spec", dc.Schedule),
		logx.String("tz", loc.String()),
		logx.Time("next", c.Entry(id).Next))
	return nil
}

func (s *Service) stopCron() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.current = nil
	s.mu.Unlock()
	if c != nil {
		// Stop only prevents new ticks; a tick in runOnce finishes on its own.
		c.Stop()
	}
}

func (s *Service) runOnce(ctx context.Context) {
	if !s.runMu.TryLock() {
		s.log.Warn("previous run still in progress; skipping this tick")
		return
	}
	defer s.runMu.Unlock()

	start := time.Now()
	if err := s.dl.RunOnce(ctx); err != nil {
		s.log.Error("scheduled run failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	s.log.Info("scheduled run finished", logx.Duration("took", time.Since(start)))
}
