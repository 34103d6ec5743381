package downloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fbdownloader/internal/fbads"
	"fbdownloader/internal/report"
)

func account(offsetHours float64, created time.Time) fbads.AdAccount {
	return fbads.AdAccount{
		AccountID:           "12345",
		Name:                "Acme",
		Created:             created,
		TimezoneOffsetHours: offsetHours,
	}
}

func TestLastDownloadDayUsesAccountTimezone(t *testing.T) {
	// 01:00 UTC on March 11 is still the evening of March 10 at UTC-5, so the
	// last closed day there is March 9.
	now := time.Date(2024, 3, 11, 1, 0, 0, 0, time.UTC)

	tests := []struct {
		offset float64
		want   time.Time
	}{
		{0, day(2024, 3, 10)},
		{-5, day(2024, 3, 9)},
		{+3, day(2024, 3, 10)},
	}
	for _, tc := range tests {
		got := lastDownloadDay(account(tc.offset, time.Time{}), now)
		if !got.Equal(tc.want) {
			t.Errorf("offset %+.0fh: lastDownloadDay = %s, want %s",
				tc.offset, got.Format("2006-01-02"), tc.want.Format("2006-01-02"))
		}
	}
}

func TestFirstDownloadDay(t *testing.T) {
	configured := day(2024, 3, 1)

	tests := []struct {
		name    string
		created time.Time
		want    time.Time
	}{
		{"created before configured", time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC), day(2024, 3, 1)},
		{"created after configured", time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), day(2024, 3, 5)},
		{"no creation date", time.Time{}, day(2024, 3, 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := firstDownloadDay(account(0, tc.created), configured)
			if !got.Equal(tc.want) {
				t.Errorf("firstDownloadDay = %s, want %s",
					got.Format("2006-01-02"), tc.want.Format("2006-01-02"))
			}
		})
	}
}

func TestPlanAccountEmptyDataDir(t *testing.T) {
	now := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	jobs := planAccount(account(0, time.Time{}), t.TempDir(), day(2024, 3, 1), 28, now)

	// March 1 .. March 10 inclusive, everything missing.
	if len(jobs) != 10 {
		t.Fatalf("planned %d jobs, want 10", len(jobs))
	}
	for _, j := range jobs {
		if j.AccountID != "12345" {
			t.Errorf("job carries account %q", j.AccountID)
		}
		if j.Destination == "" {
			t.Errorf("job %s has no destination", j)
		}
		if j.Tries != 0 {
			t.Errorf("job %s starts with Tries = %d", j, j.Tries)
		}
	}
}

func TestPlanAccountSkipsDownloadedOutsideWindow(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	acc := account(0, time.Time{})

	// March 2 (age 8 days) and March 9 (age 1 day) already exist.
	for _, d := range []time.Time{day(2024, 3, 2), day(2024, 3, 9)} {
		p := report.PerformancePath(dir, acc.AccountID, d)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	jobs := planAccount(acc, dir, day(2024, 3, 1), 2, now)

	planned := map[string]bool{}
	for _, j := range jobs {
		planned[j.Date.Format("2006-01-02")] = true
	}
	if planned["2024-03-02"] {
		t.Error("March 2 exists outside the window and must not be re-planned")
	}
	if !planned["2024-03-09"] {
		t.Error("March 9 exists inside the window and must be re-downloaded")
	}
	if !planned["2024-03-05"] {
		t.Error("missing days outside the window must still be planned")
	}
	// 10 candidate days, one skipped.
	if len(jobs) != 9 {
		t.Fatalf("planned %d jobs, want 9", len(jobs))
	}
}

func TestPlanAccountRespectsCreationDate(t *testing.T) {
	now := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	created := time.Date(2024, 3, 8, 14, 30, 0, 0, time.UTC)
	jobs := planAccount(account(0, created), t.TempDir(), day(2024, 3, 1), 28, now)

	// March 8, 9, 10 only.
	if len(jobs) != 3 {
		t.Fatalf("planned %d jobs, want 3", len(jobs))
	}
	for _, j := range jobs {
		if j.Date.Before(day(2024, 3, 8)) {
			t.Errorf("job %s predates the account", j)
		}
	}
}
