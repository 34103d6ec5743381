package downloader

import (
	"os"
	"time"

	"fbdownloader/internal/fbads"
	"fbdownloader/internal/report"
	"fbdownloader/internal/scheduler"
)

// day normalizes t to a calendar day (midnight UTC) so job dates compare
// cleanly regardless of the account timezone they were derived in.
func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// lastDownloadDay is yesterday in the account's reporting timezone: today's
// numbers are still moving while the day is open.
func lastDownloadDay(acc fbads.AdAccount, now time.Time) time.Time {
	y, m, d := now.In(acc.Location()).AddDate(0, 0, -1).Date()
	return day(y, m, d)
}

// firstDownloadDay is the later of the configured first date and the
// account's creation date; there is no data before an account exists.
func firstDownloadDay(acc fbads.AdAccount, configured time.Time) time.Time {
	y, m, d := configured.Date()
	first := day(y, m, d)
	if !acc.Created.IsZero() {
		cy, cm, cd := acc.Created.Date()
		if created := day(cy, cm, cd); created.After(first) {
			first = created
		}
	}
	return first
}

// planAccount walks the account's day range newest-first and emits a job for
// every day whose destination is missing or that falls inside the
// redownload window. Resulting order is irrelevant: the scheduler orders by
// priority, not insertion.
func planAccount(acc fbads.AdAccount, dataDir string, configuredFirst time.Time, window int, now time.Time) []*scheduler.Job {
	last := lastDownloadDay(acc, now)
	first := firstDownloadDay(acc, configuredFirst)

	var jobs []*scheduler.Job
	for cur := last; !cur.Before(first); cur = cur.AddDate(0, 0, -1) {
		dest := report.PerformancePath(dataDir, acc.AccountID, cur)
		ageDays := int(last.Sub(cur).Hours() / 24)
		if !fileExists(dest) || ageDays <= window {
			jobs = append(jobs, &scheduler.Job{
				AccountID:   acc.AccountID,
				Date:        cur,
				Destination: dest,
			})
		}
	}
	return jobs
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}
