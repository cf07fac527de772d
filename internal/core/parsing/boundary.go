package parsing

import (
	"sort"
	"strings"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

type boundaryCategory struct {
	name    string
	phrases []string
}

// BoundaryDetector partitions a document into one page range per certificate.
type BoundaryDetector struct {
	categories    []boundaryCategory
	minCategories int
}

func NewBoundaryDetector(rules BoundaryRules) *BoundaryDetector {
	rules = Rules{Boundary: rules}.Merge(DefaultRules()).Boundary
	names := make([]string, 0, len(rules.Categories))
	for name := range rules.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	categories := make([]boundaryCategory, 0, len(names))
	for _, name := range names {
		phrases := make([]string, 0, len(rules.Categories[name]))
		for _, p := range rules.Categories[name] {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				phrases = append(phrases, p)
			}
		}
		categories = append(categories, boundaryCategory{name: name, phrases: phrases})
	}
	return &BoundaryDetector{categories: categories, minCategories: rules.MinCategories}
}

// Score counts the distinct keyword categories present in a page.
func (d *BoundaryDetector) Score(pageText string) int {
	lower := strings.ToLower(pageText)
	score := 0
	for _, c := range d.categories {
		for _, p := range c.phrases {
			if strings.Contains(lower, p) {
				score++
				break
			}
		}
	}
	return score
}

func (d *BoundaryDetector) IsBoundary(pageText string) bool {
	return d.Score(pageText) >= d.minCategories
}

// Detect scores every page of doc and returns the certificate ranges.
func (d *BoundaryDetector) Detect(doc ports.PageDocument) []domain.PageRange {
	n := doc.NumPages()
	var boundaries []int
	for i := 0; i < n; i++ {
		if d.IsBoundary(doc.PageText(i)) {
			boundaries = append(boundaries, i)
		}
	}
	return Partition(n, boundaries)
}

// Partition builds contiguous ranges from ascending boundary pages. Pages
// before the first boundary form their own range so nothing is dropped.
func Partition(numPages int, boundaries []int) []domain.PageRange {
	if numPages <= 0 {
		return nil
	}
	starts := make([]int, 0, len(boundaries)+1)
	for _, b := range boundaries {
		if b < 0 || b >= numPages || (len(starts) > 0 && b <= starts[len(starts)-1]) {
			continue
		}
		starts = append(starts, b)
	}
	if len(starts) == 0 || starts[0] != 0 {
		starts = append([]int{0}, starts...)
	}

	ranges := make([]domain.PageRange, 0, len(starts))
	for i, start := range starts {
		end := numPages - 1
		if i+1 < len(starts) {
			end = starts[i+1] - 1
		}
		ranges = append(ranges, domain.PageRange{Start: start, End: end})
	}
	return ranges
}
