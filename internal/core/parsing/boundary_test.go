package parsing

import (
	"reflect"
	"testing"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

type pagesFake []string

func (p pagesFake) NumPages() int { return len(p) }

func (p pagesFake) PageText(i int) string {
	if i < 0 || i >= len(p) {
		return ""
	}
	return p[i]
}

func (p pagesFake) ExtractRange(start, end int) ([]byte, error) {
	return nil, nil
}

const startPage = "CERTIFICATE OF CALIBRATION\nCert # 10023\nServiced For: All Clad"

func TestPartitionBoundaries(t *testing.T) {
	got := Partition(12, []int{2, 5, 9})
	want := []domain.PageRange{{Start: 0, End: 1}, {Start: 2, End: 4}, {Start: 5, End: 8}, {Start: 9, End: 11}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Partition() = %v, want %v", got, want)
	}
}

func TestPartitionWithoutBoundariesSpansDocument(t *testing.T) {
	for _, n := range []int{1, 2, 7} {
		got := Partition(n, nil)
		want := []domain.PageRange{{Start: 0, End: n - 1}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Partition(%d, nil) = %v, want %v", n, got, want)
		}
	}
}

func TestPartitionEmptyDocument(t *testing.T) {
	if got := Partition(0, []int{0}); len(got) != 0 {
		t.Fatalf("expected no ranges for zero pages, got %v", got)
	}
}

func TestDetectRequiresTwoCategories(t *testing.T) {
	d := NewBoundaryDetector(BoundaryRules{})
	doc := pagesFake{
		startPage,
		"continued results\nCertificate of Calibration running header",
		"serviced by cal tec\nserviced for all clad",
		"Certificate of Calibration\nEquipment Information\n",
	}
	got := d.Detect(doc)
	want := []domain.PageRange{{Start: 0, End: 2}, {Start: 3, End: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Detect() = %v, want %v", got, want)
	}
}

func TestDetectFailsOpen(t *testing.T) {
	d := NewBoundaryDetector(BoundaryRules{})
	got := d.Detect(pagesFake{"page one", "page two", "page three"})
	want := []domain.PageRange{{Start: 0, End: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Detect() = %v, want %v", got, want)
	}
}

func TestDetectKeepsLeadingPages(t *testing.T) {
	d := NewBoundaryDetector(BoundaryRules{})
	got := d.Detect(pagesFake{"cover letter", startPage, "page 2"})
	want := []domain.PageRange{{Start: 0, End: 0}, {Start: 1, End: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Detect() = %v, want %v", got, want)
	}
}

func TestCustomBoundaryRules(t *testing.T) {
	d := NewBoundaryDetector(BoundaryRules{
		MinCategories: 1,
		Categories:    map[string][]string{"report": {"Comprehensive Test Report"}},
	})
	if !d.IsBoundary("METTLER TOLEDO comprehensive test report") {
		t.Fatalf("expected single-category boundary")
	}
	if d.IsBoundary(startPage) {
		t.Fatalf("expected default categories to be replaced")
	}
}
