// Package report persists downloaded data locally: per-day per-account
// ad performance into small sqlite files, and the flattened account
// structure into a gzip'd csv at the data dir root.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// outputFileVersion is bumped when the file formats change incompatibly so
// downstream consumers can tell versions apart by name.
const outputFileVersion = "v1"

// PerformancePath returns where the performance of one account on one day is
// stored, relative to dataDir: YYYY/MM/DD/facebook/ad-performance-act_<id>.sqlite3.
func PerformancePath(dataDir, accountID string, day time.Time) string {
	return filepath.Join(dataDir,
		day.Format("2006/01/02"),
		"facebook",
		fmt.Sprintf("ad-performance-act_%s.sqlite3", accountID))
}

// StructurePath returns where the account-structure export is stored.
func StructurePath(dataDir string) string {
	return filepath.Join(dataDir, fmt.Sprintf("facebook-account-structure_%s.csv.gz", outputFileVersion))
}

// ensureParent creates the parent directory of path when missing.
func ensureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
