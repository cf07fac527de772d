// Package parsing turns raw certificate text into structured data: page
// boundaries, vendor and document type, and normalized certificate fields.
// Everything here is pure and reads only immutable configuration.
package parsing

import "github.com/kirillkom/calibration-tracker/internal/core/domain"

// Rules is the keyword configuration for boundary detection and classification.
type Rules struct {
	Boundary   BoundaryRules   `yaml:"boundary" json:"boundary"`
	Classifier ClassifierRules `yaml:"classifier" json:"classifier"`
	Vendors    []VendorRule    `yaml:"vendors" json:"vendors"`
}

type BoundaryRules struct {
	MinCategories int                 `yaml:"min_categories" json:"min_categories"`
	Categories    map[string][]string `yaml:"categories" json:"categories"`
}

type ClassifierRules struct {
	ReportPhrases             []string `yaml:"report_phrases" json:"report_phrases"`
	CertificatePhrases        []string `yaml:"certificate_phrases" json:"certificate_phrases"`
	PhraseWeight              int      `yaml:"phrase_weight" json:"phrase_weight"`
	FilenameBonus             int      `yaml:"filename_bonus" json:"filename_bonus"`
	ReportFilenameTokens      []string `yaml:"report_filename_tokens" json:"report_filename_tokens"`
	CertificateFilenameTokens []string `yaml:"certificate_filename_tokens" json:"certificate_filename_tokens"`
}

// VendorRule selects a vendor when every phrase in AllOf occurs in the text.
type VendorRule struct {
	Vendor domain.Vendor `yaml:"vendor" json:"vendor"`
	AllOf  []string      `yaml:"all_of" json:"all_of"`
}

func DefaultRules() Rules {
	return Rules{
		Boundary: BoundaryRules{
			MinCategories: 2,
			Categories: map[string][]string{
				"title":     {"certificate of calibration"},
				"number":    {"cert #", "cert#", "cert no"},
				"serviced":  {"serviced by", "serviced for"},
				"equipment": {"equipment information"},
			},
		},
		Classifier: ClassifierRules{
			ReportPhrases: []string{
				"comprehensive test report",
				"test report",
				"report id",
				"instrument type",
				"test results",
			},
			CertificatePhrases: []string{
				"certificate of calibration",
				"calibration certificate",
				"cert #",
				"cert no",
				"calibration result",
				"cal due date",
			},
			PhraseWeight:              1,
			FilenameBonus:             2,
			ReportFilenameTokens:      []string{"ctr", "report"},
			CertificateFilenameTokens: []string{"cert", "certificate", "calibration"},
		},
		Vendors: []VendorRule{
			{Vendor: domain.VendorMettler, AllOf: []string{"mettler", "comprehensive test report"}},
			{Vendor: domain.VendorCalTec, AllOf: []string{"cal tec"}},
		},
	}
}

// Merge fills zero-valued sections of r from the defaults.
func (r Rules) Merge(defaults Rules) Rules {
	if r.Boundary.MinCategories <= 0 {
		r.Boundary.MinCategories = defaults.Boundary.MinCategories
	}
	if len(r.Boundary.Categories) == 0 {
		r.Boundary.Categories = defaults.Boundary.Categories
	}
	c, d := &r.Classifier, defaults.Classifier
	if len(c.ReportPhrases) == 0 {
		c.ReportPhrases = d.ReportPhrases
	}
	if len(c.CertificatePhrases) == 0 {
		c.CertificatePhrases = d.CertificatePhrases
	}
	if c.PhraseWeight <= 0 {
		c.PhraseWeight = d.PhraseWeight
	}
	if c.FilenameBonus <= 0 {
		c.FilenameBonus = d.FilenameBonus
	}
	if len(c.ReportFilenameTokens) == 0 {
		c.ReportFilenameTokens = d.ReportFilenameTokens
	}
	if len(c.CertificateFilenameTokens) == 0 {
		c.CertificateFilenameTokens = d.CertificateFilenameTokens
	}
	if len(r.Vendors) == 0 {
		r.Vendors = defaults.Vendors
	}
	return r
}
