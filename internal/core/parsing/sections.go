package parsing

import (
	"regexp"
	"strings"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

// minTestPointTokens is the smallest row accepted as structured test-point data.
const minTestPointTokens = 6

var (
	testPointsSection = regexp.MustCompile(
		`(?is)Test\s*Points\s*\n(.*?)(?:Standards?\s*Used|Procedures?\s*Used|This\s*report|Page\s*\d|$)`)
	standardsSection = regexp.MustCompile(
		`(?is)Standards?\s*Used\s*\n(.*?)(?:Procedures?\s*Used|This\s*report|Page\s*\d|$)`)

	rowStart        = regexp.MustCompile(`^(?:Seq|#|\d)`)
	leadingSeq      = regexp.MustCompile(`^(\d+)`)
	testPointDesc   = regexp.MustCompile(`^\d+\s+([A-Za-z\s]+?)\s+([\d.]+)`)
	multiSpace      = regexp.MustCompile(`\s{2,}`)
	twoOrMoreDigits = regexp.MustCompile(`\d{2,}`)
)

func parseTestPoints(text string) []domain.TestPoint {
	m := testPointsSection.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var points []domain.TestPoint
	headerFound := false
	for _, line := range strings.Split(strings.TrimSpace(m[1]), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "description") && strings.Contains(lower, "standard") {
			headerFound = true
			continue
		}
		if rowStart.MatchString(line) {
			headerFound = true
		}
		if !headerFound {
			continue
		}

		tokens := strings.Fields(line)
		if len(tokens) < minTestPointTokens {
			continue
		}
		seq := leadingSeq.FindStringSubmatch(tokens[0])
		if seq == nil {
			continue
		}
		point := domain.TestPoint{Seq: seq[1], Tokens: tokens, Raw: line}
		if d := testPointDesc.FindStringSubmatch(line); d != nil {
			point.Description = strings.TrimSpace(d[1])
		}
		points = append(points, point)
	}
	return points
}

func parseStandardsUsed(text string) []domain.StandardUsed {
	m := standardsSection.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var standards []domain.StandardUsed
	for _, line := range strings.Split(strings.TrimSpace(m[1]), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(strings.ToLower(line), "company") {
			continue
		}
		upper := strings.ToUpper(line)
		if !strings.Contains(upper, "CAL TEC") && !strings.Contains(upper, "INC") && !twoOrMoreDigits.MatchString(line) {
			continue
		}
		parts := multiSpace.Split(line, 2)
		if len(parts) >= 2 {
			standards = append(standards, domain.StandardUsed{
				Organization: strings.TrimSpace(parts[0]),
				Detail:       strings.TrimSpace(parts[1]),
				Raw:          line,
			})
			continue
		}
		standards = append(standards, domain.StandardUsed{Raw: line})
	}
	return standards
}
