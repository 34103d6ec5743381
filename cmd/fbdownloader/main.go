// Command fbdownloader downloads Facebook Ads performance data to local
// files: account structure as csv.gz, ad performance as one sqlite file per
// account and day.
//
// By default it runs once and exits; with -daemon (or daemon.enabled in the
// config) it stays up and runs on a cron schedule. Flags override the
// corresponding config file fields.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fbdownloader/internal/config"
	"fbdownloader/internal/daemon"
	"fbdownloader/internal/downloader"
	"fbdownloader/internal/notify"
	logx "fbdownloader/pkg/logx"
)

func main() {
	var (
		cfgPath     = flag.String("config", "./fbdownloader.yaml", "path to config file (yaml or json; may be absent)")
		daemonMode  = flag.Bool("daemon", false, "run on a schedule instead of once")
		dataDir     = flag.String("data-dir", "", "directory where result data is written")
		firstDate   = flag.String("first-date", "", "first day for which data is downloaded (YYYY-MM-DD)")
		window      = flag.Int("redownload-window", 0, "number of trailing days to redownload")
		workers     = flag.Int("workers", 0, "number of concurrent download workers")
		accessToken = flag.String("access-token", "", "access token of the system user")
		appID       = flag.String("app-id", "", "facebook app id")
		appSecret   = flag.String("app-secret", "", "facebook app secret")
		accounts    = flag.String("target-accounts", "", "comma-separated account ids to restrict the run to")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := config.NewManager(*cfgPath)
	mgr.SetOverrides(func(cfg *config.Config) {
		if *dataDir != "" {
			cfg.Data.Dir = *dataDir
		}
		if *firstDate != "" {
			cfg.Data.FirstDate = *firstDate
		}
		if *window > 0 {
			cfg.Data.RedownloadWindow = *window
		}
		if *workers > 0 {
			cfg.Downloader.Workers = *workers
		}
		if *accessToken != "" {
			cfg.API.AccessToken = *accessToken
		}
		if *appID != "" {
			cfg.API.AppID = *appID
		}
		if *appSecret != "" {
			cfg.API.AppSecret = *appSecret
		}
		if *accounts != "" {
			cfg.Data.TargetAccounts = splitList(*accounts)
		}
		if *daemonMode {
			if cfg.Daemon == nil {
				cfg.Daemon = &config.DaemonConfig{}
			}
			cfg.Daemon.Enabled = true
		}
	})

	cfg, err := mgr.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer logSvc.Close()
	mgr.SetLogger(log)

	var notifier notify.Notifier
	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
		if err != nil {
			log.Error("telegram notifier disabled", logx.Err(err))
		} else {
			notifier = tg
		}
	}

	dl := downloader.New(cfg, notifier, log)

	if cfg.Daemon != nil && cfg.Daemon.Enabled {
		err = daemon.New(mgr, dl, logSvc, log).Run(ctx)
	} else {
		err = dl.RunOnce(ctx)
	}
	if err != nil {
		log.Error("download failed", logx.Err(err))
		os.Exit(1)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
