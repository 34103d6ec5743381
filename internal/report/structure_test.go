package report

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"fbdownloader/internal/fbads"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name   string
		labels []fbads.Label
		want   map[string]string
	}{
		{
			name:   "simple annotation",
			labels: []fbads.Label{{Name: "{channel=display}"}},
			want:   map[string]string{"Channel": "display"},
		},
		{
			name:   "key is title-cased per word",
			labels: []fbads.Label{{Name: "{landing_page=homepage}"}},
			want:   map[string]string{"Landing_Page": "homepage"},
		},
		{
			name:   "upper-case key is normalized",
			labels: []fbads.Label{{Name: "{CHANNEL=social}"}},
			want:   map[string]string{"Channel": "social"},
		},
		{
			name:   "plain labels are ignored",
			labels: []fbads.Label{{Name: "Q1 push"}, {Name: "{target=b|c}"}},
			want:   map[string]string{"Target": "b|c"},
		},
		{
			name:   "no labels",
			labels: nil,
			want:   map[string]string{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseLabels(tc.labels); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParseLabels = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"channel", "Channel"},
		{"landing_page", "Landing_Page"},
		{"a b", "A B"},
		{"a|b", "A|B"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := titleCase(tc.in); got != tc.want {
			t.Errorf("titleCase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func testAccount() fbads.AdAccount {
	return fbads.AdAccount{AccountID: "100", Name: "Acme"}
}

func TestFlattenStructure(t *testing.T) {
	campaigns := map[string]fbads.Campaign{
		"c1": {ID: "c1", Name: "Spring", Labels: []fbads.Label{{Name: "{channel=search}"}}},
	}
	adSets := map[string]fbads.AdSet{
		"s1": {ID: "s1", Name: "Broad", CampaignID: "c1", Labels: []fbads.Label{{Name: "{target=broad}"}}},
		"s2": {ID: "s2", Name: "Orphan", CampaignID: "missing"},
	}
	ads := map[string]fbads.Ad{
		"a1": {ID: "a1", Name: "Banner", AdSetID: "s1", Labels: []fbads.Label{{Name: "{channel=display}"}}},
		"a2": {ID: "a2", Name: "NoParent", AdSetID: "missing"},
		"a3": {ID: "a3", Name: "OrphanCampaign", AdSetID: "s2"},
	}

	rows := FlattenStructure(testAccount(), campaigns, adSets, ads)
	if len(rows) != 1 {
		t.Fatalf("FlattenStructure produced %d rows, want 1 (orphans skipped)", len(rows))
	}

	row := rows[0]
	if row.AdID != "a1" || row.AdSet != "Broad" || row.Campaign != "Spring" || row.Account != "Acme" {
		t.Fatalf("unexpected row join: %+v", row)
	}
	// The ad-level channel overrides the campaign-level one.
	want := map[string]string{"Channel": "display", "Target": "broad"}
	if !reflect.DeepEqual(row.Attributes, want) {
		t.Fatalf("Attributes = %v, want %v", row.Attributes, want)
	}
}

func TestWriteStructure(t *testing.T) {
	dir := t.TempDir()
	rows := []StructureRow{{
		AdID: "a1", Ad: "Banner",
		AdSetID: "s1", AdSet: "Broad",
		CampaignID: "c1", Campaign: "Spring",
		AccountID: "100", Account: "Acme",
		Attributes: map[string]string{"Channel": "display"},
	}}

	if err := WriteStructure(dir, rows); err != nil {
		t.Fatalf("WriteStructure: %v", err)
	}

	f, err := os.Open(StructurePath(dir))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	r := csv.NewReader(gz)
	r.Comma = '\t'
	recs, err := r.ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}

	if len(recs) != 2 {
		t.Fatalf("export has %d records, want header + 1 row", len(recs))
	}
	if !reflect.DeepEqual(recs[0], structureHeader) {
		t.Fatalf("header = %v, want %v", recs[0], structureHeader)
	}
	if recs[1][0] != "a1" || recs[1][7] != "Acme" {
		t.Fatalf("row = %v", recs[1])
	}
	var attrs map[string]string
	if err := json.Unmarshal([]byte(recs[1][8]), &attrs); err != nil {
		t.Fatalf("attributes column is not json: %v", err)
	}
	if attrs["Channel"] != "display" {
		t.Fatalf("attributes = %v", attrs)
	}

	// No temp leftovers next to the export.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".structure-") {
			t.Fatalf("temp file %s left behind", e.Name())
		}
	}
}

func TestStructurePath(t *testing.T) {
	got := StructurePath("/data")
	want := filepath.Join("/data", "facebook-account-structure_v1.csv.gz")
	if got != want {
		t.Fatalf("StructurePath = %q, want %q", got, want)
	}
}
