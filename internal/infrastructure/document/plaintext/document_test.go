package plaintext

import (
	"strings"
	"testing"
)

func TestExtractorSplitsPages(t *testing.T) {
	doc, err := NewExtractor().Open([]byte("CERTIFICATE OF CALIBRATION\r\nCert # 1\f page two \fthird"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if doc.NumPages() != 3 {
		t.Fatalf("expected 3 pages, got %d", doc.NumPages())
	}
	if got := doc.PageText(1); got != "page two" {
		t.Fatalf("PageText(1) = %q", got)
	}
	if got := doc.PageText(3); got != "" {
		t.Fatalf("PageText(3) = %q, want empty", got)
	}

	sub, err := doc.ExtractRange(1, 2)
	if err != nil {
		t.Fatalf("ExtractRange() error = %v", err)
	}
	if string(sub) != " page two \fthird" {
		t.Fatalf("unexpected extracted range %q", sub)
	}
	if _, err := doc.ExtractRange(2, 1); err == nil {
		t.Fatalf("expected error for reversed range")
	}
}

func TestExtractorRejectsBinaryAndEmpty(t *testing.T) {
	for _, data := range [][]byte{{0xff, 0xfe, 0x00}, []byte("  \n ")} {
		if _, err := NewExtractor().Open(data); err == nil {
			t.Errorf("Open(%q) expected error", data)
		}
	}
}

func TestExtractRangeRoundTripsPageText(t *testing.T) {
	pages := []string{"CERTIFICATE OF CALIBRATION\nCert # A1", "page two", "CERTIFICATE OF CALIBRATION\nCert # B2", "", "last page"}
	doc, err := NewExtractor().Open([]byte(strings.Join(pages, PageBreak)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, r := range [][2]int{{0, 1}, {2, 4}} {
		part, err := doc.ExtractRange(r[0], r[1])
		if err != nil {
			t.Fatalf("ExtractRange(%d, %d): %v", r[0], r[1], err)
		}
		sub, err := NewExtractor().Open(part)
		if err != nil {
			t.Fatalf("reopen range %v: %v", r, err)
		}
		if sub.NumPages() != r[1]-r[0]+1 {
			t.Fatalf("range %v: expected %d pages, got %d", r, r[1]-r[0]+1, sub.NumPages())
		}
		for i := 0; i < sub.NumPages(); i++ {
			if got, want := sub.PageText(i), doc.PageText(r[0]+i); got != want {
				t.Fatalf("range %v page %d: got %q, want %q", r, i, got, want)
			}
		}
	}
}
