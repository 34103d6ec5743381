// Package downloader wires discovery, planning, the scheduler core and
// persistence into one run: list the token's ad accounts, export their
// structure, then download every pending (account, day) performance report
// concurrently.
package downloader

import (
	"context"
	"sync"
	"time"

	"fbdownloader/internal/config"
	"fbdownloader/internal/fbads"
	"fbdownloader/internal/notify"
	"fbdownloader/internal/report"
	"fbdownloader/internal/scheduler"
	logx "fbdownloader/pkg/logx"
)

type Downloader struct {
	notifier notify.Notifier
	log      logx.Logger

	// mu guards cfg and client: a daemon config reload may land while a
	// scheduled run is in flight. Runs work from a snapshot taken at start.
	mu     sync.Mutex
	cfg    *config.Config
	client *fbads.Client
}

// New builds a Downloader from a validated config. notifier may be nil.
func New(cfg *config.Config, notifier notify.Notifier, log logx.Logger) *Downloader {
	d := &Downloader{notifier: notifier, log: log}
	d.Apply(cfg)
	return d
}

// Apply installs cfg for subsequent runs (daemon reload). The API client is
// rebuilt so credential, endpoint and rate changes take effect too. A run
// that is already in flight keeps the snapshot it started with.
func (d *Downloader) Apply(cfg *config.Config) {
	timeout, _ := config.ParseDurationField("api.request_timeout", cfg.API.RequestTimeout)
	client := fbads.NewClient(fbads.Config{
		AppID:       cfg.API.AppID,
		AppSecret:   cfg.API.AppSecret,
		AccessToken: cfg.API.AccessToken,
		BaseURL:     cfg.API.BaseURL,
		RatePerSec:  cfg.API.RatePerSec,
		Timeout:     timeout,
	}, d.log)

	d.mu.Lock()
	d.cfg = cfg
	d.client = client
	d.mu.Unlock()
}

func (d *Downloader) snapshot() (*config.Config, *fbads.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg, d.client
}

// RunOnce performs one complete download run and blocks until it finished or
// failed. Safe to call repeatedly (daemon mode), but not concurrently.
func (d *Downloader) RunOnce(ctx context.Context) error {
	cfg, client := d.snapshot()
	start := time.Now()

	accounts, jobs, err := d.run(ctx, cfg, client)
	if d.notifier != nil {
		d.notifier.RunFinished(notify.RunSummary{
			Accounts: accounts,
			Jobs:     jobs,
			Took:     time.Since(start),
			Err:      err,
		})
	}
	return err
}

func (d *Downloader) run(ctx context.Context, cfg *config.Config, client *fbads.Client) (accounts, jobs int, err error) {
	accs, err := d.accounts(ctx, cfg, client)
	if err != nil {
		return 0, 0, err
	}

	if err := d.exportStructure(ctx, cfg, client, accs); err != nil {
		return len(accs), 0, err
	}

	firstDay, err := cfg.FirstDay()
	if err != nil {
		return len(accs), 0, err
	}
	now := time.Now()
	var pending []*scheduler.Job
	for _, acc := range accs {
		pending = append(pending, planAccount(acc, cfg.Data.Dir, firstDay, cfg.Data.RedownloadWindow, now)...)
	}
	d.log.Info("planned performance downloads",
		logx.Int("accounts", len(accs)),
		logx.Int("jobs", len(pending)))

	retryBase, _ := config.ParseDurationField("downloader.retry_base", cfg.Downloader.RetryBase)
	sched := scheduler.New(scheduler.Config{
		Workers:   cfg.Downloader.Workers,
		RetryMax:  cfg.Downloader.RetryMax,
		RetryBase: retryBase,
	}, scheduler.ExecutorFunc(func(ctx context.Context, job *scheduler.Job) error {
		return d.fetchAndPersist(ctx, client, job)
	}), d.log)

	return len(accs), len(pending), sched.Run(ctx, pending)
}

// accounts discovers the token's ad accounts, restricted to
// data.target_accounts when configured.
func (d *Downloader) accounts(ctx context.Context, cfg *config.Config, client *fbads.Client) ([]fbads.AdAccount, error) {
	var accs []fbads.AdAccount
	err := d.withRetry(ctx, cfg, "discover accounts", func() error {
		var err error
		accs, err = client.AdAccounts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(cfg.Data.TargetAccounts) == 0 {
		return accs, nil
	}
	want := make(map[string]bool, len(cfg.Data.TargetAccounts))
	for _, id := range cfg.Data.TargetAccounts {
		want[id] = true
	}
	filtered := accs[:0]
	for _, a := range accs {
		if want[a.AccountID] {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

// exportStructure downloads campaigns, ad sets and ads of every account and
// writes the joined rows as one csv.gz. Runs before the performance
// downloads, like the original exporter.
func (d *Downloader) exportStructure(ctx context.Context, cfg *config.Config, client *fbads.Client, accs []fbads.AdAccount) error {
	var rows []report.StructureRow
	for _, acc := range accs {
		var (
			campaigns map[string]fbads.Campaign
			adSets    map[string]fbads.AdSet
			ads       map[string]fbads.Ad
		)
		err := d.withRetry(ctx, cfg, "download structure", func() error {
			var err error
			if campaigns, err = client.Campaigns(ctx, acc.AccountID); err != nil {
				return err
			}
			if adSets, err = client.AdSets(ctx, acc.AccountID); err != nil {
				return err
			}
			ads, err = client.Ads(ctx, acc.AccountID)
			return err
		})
		if err != nil {
			return err
		}
		rows = append(rows, report.FlattenStructure(acc, campaigns, adSets, ads)...)
	}

	if err := report.WriteStructure(cfg.Data.Dir, rows); err != nil {
		return err
	}
	d.log.Info("account structure exported",
		logx.Int("accounts", len(accs)),
		logx.Int("ads", len(rows)))
	return nil
}

// fetchAndPersist is the scheduler's executor: download one (account, day)
// and upsert it into its sqlite destination. API failures are classified for
// the retry policy; storage failures are always fatal.
func (d *Downloader) fetchAndPersist(ctx context.Context, client *fbads.Client, job *scheduler.Job) error {
	rows, err := client.Insights(ctx, job.AccountID, job.Date)
	if err != nil {
		return classify(err)
	}
	return report.UpsertPerformance(job.Destination, rows)
}

// withRetry applies the scheduler's backoff policy to a sequential call
// outside the worker pool (discovery, structure). The sleep honors ctx.
func (d *Downloader) withRetry(ctx context.Context, cfg *config.Config, what string, fn func() error) error {
	retryMax := cfg.Downloader.RetryMax
	if retryMax <= 0 {
		retryMax = 7
	}
	retryBase, _ := config.ParseDurationOrDefault("downloader.retry_base", cfg.Downloader.RetryBase, time.Minute)

	for attempt := 1; ; attempt++ {
		err := classify(fn())
		if err == nil {
			return nil
		}
		if !scheduler.IsRetryable(err) || attempt > retryMax {
			return err
		}

		delay := retryBase << (attempt - 1)
		d.log.Warn("retrying",
			logx.String("op", what),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err))

		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return ctx.Err()
		case <-tmr.C:
		}
	}
}
