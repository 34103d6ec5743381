package report

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"fbdownloader/internal/fbads"
)

var structureHeader = []string{
	"Ad Id",
	"Ad",
	"Ad Set Id",
	"Ad Set",
	"Campaign Id",
	"Campaign",
	"Account Id",
	"Account",
	"Attributes",
}

// StructureRow is one flattened ad with its ad set, campaign and account.
type StructureRow struct {
	AdID       string
	Ad         string
	AdSetID    string
	AdSet      string
	CampaignID string
	Campaign   string
	AccountID  string
	Account    string

	// Attributes are the merged {key=value} labels of campaign, ad set and
	// ad; ad-level values win on key collisions.
	Attributes map[string]string
}

// FlattenStructure joins one account's ads with their parents. Ads whose ad
// set or campaign is missing from the listings are skipped: the structure
// endpoints are not transactional with each other.
func FlattenStructure(account fbads.AdAccount, campaigns map[string]fbads.Campaign, adSets map[string]fbads.AdSet, ads map[string]fbads.Ad) []StructureRow {
	rows := make([]StructureRow, 0, len(ads))
	for adID, ad := range ads {
		adSet, ok := adSets[ad.AdSetID]
		if !ok {
			continue
		}
		campaign, ok := campaigns[adSet.CampaignID]
		if !ok {
			continue
		}

		attributes := map[string]string{}
		for _, labels := range [][]fbads.Label{campaign.Labels, adSet.Labels, ad.Labels} {
			for k, v := range ParseLabels(labels) {
				attributes[k] = v
			}
		}

		rows = append(rows, StructureRow{
			AdID:       adID,
			Ad:         ad.Name,
			AdSetID:    ad.AdSetID,
			AdSet:      adSet.Name,
			CampaignID: adSet.CampaignID,
			Campaign:   campaign.Name,
			AccountID:  account.AccountID,
			Account:    account.Name,
			Attributes: attributes,
		})
	}
	return rows
}

// WriteStructure writes all rows as a gzip'd tab-separated csv. The file is
// assembled in a temp file next to the target and renamed into place, so
// readers never observe a partial export.
func WriteStructure(dataDir string, rows []StructureRow) error {
	target := StructurePath(dataDir)
	if err := ensureParent(target); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".structure-*.csv.gz")
	if err != nil {
		return err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	gz := gzip.NewWriter(tmp)
	w := csv.NewWriter(gz)
	w.Comma = '\t'

	if err := w.Write(structureHeader); err != nil {
		return err
	}
	for _, row := range rows {
		attrs, err := json.Marshal(row.Attributes)
		if err != nil {
			return err
		}
		rec := []string{
			row.AdID, row.Ad,
			row.AdSetID, row.AdSet,
			row.CampaignID, row.Campaign,
			row.AccountID, row.Account,
			string(attrs),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// labelPattern extracts "{key=value}" annotations from label names.
var labelPattern = regexp.MustCompile(`\{([a-zA-Z|_]+)=([a-zA-Z|_]+)\}`)

// ParseLabels turns labels named like "{channel=display}" into a
// {"Channel": "display"} map. Labels without the annotation are ignored.
func ParseLabels(labels []fbads.Label) map[string]string {
	out := map[string]string{}
	for _, l := range labels {
		m := labelPattern.FindStringSubmatch(l.Name)
		if m == nil {
			continue
		}
		out[titleCase(strings.ToLower(strings.TrimSpace(m[1])))] = strings.TrimSpace(m[2])
	}
	return out
}

// titleCase uppercases the first letter of every _-or-space separated word,
// e.g. "landing_page" -> "Landing_Page".
func titleCase(s string) string {
	b := []byte(s)
	up := true
	for i, c := range b {
		if up && 'a' <= c && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		up = c == '_' || c == ' ' || c == '|'
	}
	return string(b)
}
