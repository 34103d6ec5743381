package report

import (
	"database/sql"
	"encoding/json"
	"strconv"

	_ "modernc.org/sqlite"

	"fbdownloader/internal/fbads"
)

// One sqlite file holds one (account, day); the primary key makes repeated
// downloads idempotent.
const performanceSchema = `
CREATE TABLE IF NOT EXISTS ad_performance (
  date          DATE   NOT NULL,
  ad_id         BIGINT NOT NULL,
  device        TEXT   NOT NULL,
  performance   TEXT   NOT NULL,
  PRIMARY KEY (ad_id, device)
);`

// UpsertPerformance writes the insight rows of one (account, day) into the
// sqlite file at path, creating parents and schema on first contact. All
// rows go in one transaction: a failed download never leaves a half-written
// day behind.
func UpsertPerformance(path string, rows []fbads.Insight) error {
	if err := ensureParent(path); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(performanceSchema); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO ad_performance VALUES (?,?,?,?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		perf, err := performanceJSON(row)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(row.DateStart, row.AdID, row.ImpressionDevice, perf); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// performanceJSON flattens one insight row into the performance column.
func performanceJSON(row fbads.Insight) (string, error) {
	impressions, err := strconv.Atoi(row.Impressions)
	if err != nil {
		return "", err
	}
	spend, err := strconv.ParseFloat(row.Spend, 64)
	if err != nil {
		return "", err
	}

	perf := map[string]any{
		"impressions":   impressions,
		"spend":         spend,
		"actions":       floatifyAll(row.Actions),
		"action_values": floatifyAll(row.ActionValues),
	}
	b, err := json.Marshal(perf)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// floatifyAll coerces numeric-looking string values to float64, keeping the
// rest (e.g. action_type names) as strings.
func floatifyAll(in []map[string]string) []map[string]any {
	out := make([]map[string]any, 0, len(in))
	for _, m := range in {
		fm := make(map[string]any, len(m))
		for k, v := range m {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				fm[k] = f
			} else {
				fm[k] = v
			}
		}
		out = append(out, fm)
	}
	return out
}
