package parsing

import (
	"strings"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

// Pipeline bundles the text stages of certificate ingestion.
type Pipeline struct {
	Detector   *BoundaryDetector
	Classifier *VendorClassifier
	Extractor  *FieldExtractor
}

func NewPipeline(rules Rules, strategies ...Strategy) *Pipeline {
	return &Pipeline{
		Detector:   NewBoundaryDetector(rules.Boundary),
		Classifier: NewVendorClassifier(rules),
		Extractor:  NewFieldExtractor(strategies...),
	}
}

// RangeText joins the page texts of r, one page per line block.
func RangeText(doc ports.PageDocument, r domain.PageRange) string {
	var b strings.Builder
	for p := r.Start; p <= r.End; p++ {
		b.WriteString(doc.PageText(p))
		b.WriteString("\n")
	}
	return b.String()
}

// Parse classifies and extracts one certificate's text.
func (p *Pipeline) Parse(text, filename string) (domain.NormalizedCertificate, Strategy) {
	cls := p.Classifier.Classify(text, filename)
	cert := p.Extractor.Extract(text, cls)
	return cert, p.Extractor.Strategy(cert.Vendor)
}
