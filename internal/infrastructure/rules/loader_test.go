package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/parsing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	r, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if r.Boundary.MinCategories != parsing.DefaultRules().Boundary.MinCategories {
		t.Fatalf("expected default rules, got %+v", r.Boundary)
	}
}

func TestParseMergesPartialFile(t *testing.T) {
	r, err := Parse([]byte(`
boundary:
  min_categories: 3
vendors:
  - vendor: caltec
    all_of: ["cal-tec labs"]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if r.Boundary.MinCategories != 3 {
		t.Fatalf("expected min_categories 3, got %d", r.Boundary.MinCategories)
	}
	if len(r.Boundary.Categories) == 0 || len(r.Classifier.ReportPhrases) == 0 {
		t.Fatalf("expected missing sections filled from defaults")
	}
	if len(r.Vendors) != 1 || r.Vendors[0].Vendor != domain.VendorCalTec || r.Vendors[0].AllOf[0] != "cal-tec labs" {
		t.Fatalf("unexpected vendors %+v", r.Vendors)
	}
}

func TestParseRejectsInvalidRules(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "boundry:\n  min_categories: 2\n",
		"bad vendor":     "vendors:\n  - vendor: acme\n    all_of: [acme]\n",
		"zero threshold": "boundary:\n  min_categories: 0\n",
		"empty phrase":   "classifier:\n  report_phrases: [\"\"]\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil || !strings.Contains(err.Error(), "invalid rules") {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("classifier:\n  filename_bonus: 5\n"), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if r.Classifier.FilenameBonus != 5 {
		t.Fatalf("expected filename bonus 5, got %d", r.Classifier.FilenameBonus)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
