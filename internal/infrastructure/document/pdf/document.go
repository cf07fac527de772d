package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

var errNoPages = errors.New("document has no pages")

// Extractor opens PDF files for page text and page-range extraction.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Open(data []byte) (ports.PageDocument, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF")) {
		return nil, fmt.Errorf("open pdf: missing header")
	}
	reader, err := openReader(data)
	if err != nil {
		return nil, err
	}
	n := reader.NumPage()
	if n <= 0 {
		return nil, fmt.Errorf("open pdf: %w", errNoPages)
	}
	return &Document{data: data, reader: reader, pages: n}, nil
}

// openReader turns parser panics on malformed files into errors.
func openReader(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader, err = nil, fmt.Errorf("open pdf: %v", r)
		}
	}()
	reader, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return reader, nil
}

// Document is an opened PDF. Pages are zero-based.
type Document struct {
	data   []byte
	reader *pdf.Reader
	pages  int
}

func (d *Document) NumPages() int {
	return d.pages
}

func (d *Document) PageText(page int) (text string) {
	if page < 0 || page >= d.pages {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()
	p := d.reader.Page(page + 1)
	if p.V.IsNull() {
		return ""
	}
	raw, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(raw)
}

// ExtractRange writes pages start..end into a new PDF.
func (d *Document) ExtractRange(start, end int) ([]byte, error) {
	if start < 0 || end < start || end >= d.pages {
		return nil, fmt.Errorf("extract pages %d-%d of %d: invalid range", start+1, end+1, d.pages)
	}
	selection := fmt.Sprintf("%d-%d", start+1, end+1)
	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(d.data), &out, []string{selection}, nil); err != nil {
		return nil, fmt.Errorf("extract pages %s: %w", selection, err)
	}
	return out.Bytes(), nil
}
