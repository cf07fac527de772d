package plaintext

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

// PageBreak separates pages in pre-extracted text documents.
const PageBreak = "\f"

// Extractor opens UTF-8 text where pages are separated by form feeds.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Open(data []byte) (ports.PageDocument, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("open text document: unsupported binary format")
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("open text document: empty")
	}
	return &Document{pages: strings.Split(text, PageBreak)}, nil
}

type Document struct {
	pages []string
}

func (d *Document) NumPages() int {
	return len(d.pages)
}

func (d *Document) PageText(page int) string {
	if page < 0 || page >= len(d.pages) {
		return ""
	}
	return strings.TrimSpace(d.pages[page])
}

func (d *Document) ExtractRange(start, end int) ([]byte, error) {
	if start < 0 || end < start || end >= len(d.pages) {
		return nil, fmt.Errorf("extract pages %d-%d of %d: invalid range", start+1, end+1, len(d.pages))
	}
	return []byte(strings.Join(d.pages[start:end+1], PageBreak)), nil
}
