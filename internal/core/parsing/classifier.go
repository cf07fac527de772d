package parsing

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

type Classification struct {
	DocumentType domain.DocumentType `json:"document_type"`
	Vendor       domain.Vendor       `json:"vendor"`
	ReportScore  int                 `json:"report_score"`
	CertScore    int                 `json:"cert_score"`
}

// VendorClassifier picks the document type by weighted keyword vote and the
// vendor strategy by phrase presence.
type VendorClassifier struct {
	rules   ClassifierRules
	vendors []VendorRule
}

func NewVendorClassifier(rules Rules) *VendorClassifier {
	rules = rules.Merge(DefaultRules())
	c := rules.Classifier
	c.ReportPhrases = lowerAll(c.ReportPhrases)
	c.CertificatePhrases = lowerAll(c.CertificatePhrases)
	c.ReportFilenameTokens = lowerAll(c.ReportFilenameTokens)
	c.CertificateFilenameTokens = lowerAll(c.CertificateFilenameTokens)

	vendors := make([]VendorRule, 0, len(rules.Vendors))
	for _, v := range rules.Vendors {
		vendors = append(vendors, VendorRule{Vendor: v.Vendor, AllOf: lowerAll(v.AllOf)})
	}
	return &VendorClassifier{rules: c, vendors: vendors}
}

func (c *VendorClassifier) Classify(text, filename string) Classification {
	lower := strings.ToLower(text)
	report := c.rules.PhraseWeight * countPresent(lower, c.rules.ReportPhrases)
	cert := c.rules.PhraseWeight * countPresent(lower, c.rules.CertificatePhrases)

	tokens := filenameTokens(filename)
	if hasAnyToken(tokens, c.rules.ReportFilenameTokens) {
		report += c.rules.FilenameBonus
	}
	if hasAnyToken(tokens, c.rules.CertificateFilenameTokens) {
		cert += c.rules.FilenameBonus
	}

	docType := domain.DocumentCertificate
	if report > cert {
		docType = domain.DocumentTestReport
	}
	return Classification{
		DocumentType: docType,
		Vendor:       c.vendor(lower),
		ReportScore:  report,
		CertScore:    cert,
	}
}

func (c *VendorClassifier) vendor(lower string) domain.Vendor {
	for _, v := range c.vendors {
		if len(v.AllOf) == 0 {
			continue
		}
		all := true
		for _, p := range v.AllOf {
			if !strings.Contains(lower, p) {
				all = false
				break
			}
		}
		if all {
			return v.Vendor
		}
	}
	return domain.VendorGeneric
}

func countPresent(lower string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, p) {
			n++
		}
	}
	return n
}

// filenameTokens splits the base name into lowercase alphanumeric runs.
func filenameTokens(filename string) map[string]struct{} {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	fields := strings.FieldsFunc(strings.ToLower(base), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}
	return tokens
}

func hasAnyToken(tokens map[string]struct{}, want []string) bool {
	for _, w := range want {
		if _, ok := tokens[w]; ok {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
