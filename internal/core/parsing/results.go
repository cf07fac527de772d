package parsing

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

// NormalizeResult maps a vendor result string to the internal result enum.
// Unknown and empty strings become pass; recognized reports false for those
// that were not empty.
func NormalizeResult(raw string) (domain.CalibrationResult, bool) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case upper == "":
		return domain.ResultPass, true
	case upper == "PASS" || upper == "PASSED":
		return domain.ResultPass, true
	case upper == "FAIL" || upper == "FAILED":
		return domain.ResultFail, true
	case strings.HasPrefix(upper, "LTD") || strings.HasPrefix(upper, "LIMITED"):
		return domain.ResultLimited, true
	case strings.Contains(upper, "ADJUST"):
		return domain.ResultAdjusted, true
	}
	return domain.ResultPass, false
}

var intervalQuantity = regexp.MustCompile(`(?i)(\d+)\s*(months?|mos?\.?|years?|yrs?\.?|weeks?|wks?|days?)\b`)

// InferSchedule maps an interval string such as "6 MONTHS" to a schedule
// bucket. Intervals it cannot read fall back to the given default with ok=false.
func InferSchedule(interval string, fallback domain.Schedule) (schedule domain.Schedule, customDays int, ok bool) {
	lower := strings.ToLower(strings.TrimSpace(interval))
	if lower == "" {
		return fallback, 0, false
	}

	if m := intervalQuantity.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			switch unit := m[2]; {
			case strings.HasPrefix(unit, "mo"):
				return monthsBucket(n)
			case strings.HasPrefix(unit, "y"):
				switch {
				case n <= 1:
					return domain.ScheduleAnnual, 0, true
				case n <= 2:
					return domain.ScheduleBiennial, 0, true
				default:
					return domain.ScheduleCustom, n * 365, true
				}
			case strings.HasPrefix(unit, "w"):
				return domain.ScheduleCustom, n * 7, true
			case strings.HasPrefix(unit, "d"):
				return domain.ScheduleCustom, n, true
			}
		}
	}

	switch {
	case strings.Contains(lower, "semi"):
		return domain.ScheduleSemiannual, 0, true
	case strings.Contains(lower, "biennial"):
		return domain.ScheduleBiennial, 0, true
	case strings.Contains(lower, "quarter"):
		return domain.ScheduleQuarterly, 0, true
	case strings.Contains(lower, "monthly"):
		return domain.ScheduleMonthly, 0, true
	case strings.Contains(lower, "annual") || strings.Contains(lower, "yearly"):
		return domain.ScheduleAnnual, 0, true
	}
	return fallback, 0, false
}

func monthsBucket(months int) (domain.Schedule, int, bool) {
	switch {
	case months <= 1:
		return domain.ScheduleMonthly, 0, true
	case months <= 3:
		return domain.ScheduleQuarterly, 0, true
	case months <= 6:
		return domain.ScheduleSemiannual, 0, true
	case months <= 12:
		return domain.ScheduleAnnual, 0, true
	case months <= 24:
		return domain.ScheduleBiennial, 0, true
	}
	return domain.ScheduleCustom, int(math.Round(float64(months) * 365 / 12)), true
}

// legacySchedules is checked in order by substring against spreadsheet
// interval text.
var legacySchedules = []struct {
	needle   string
	schedule domain.Schedule
}{
	{"monthly", domain.ScheduleMonthly},
	{"quarterly", domain.ScheduleQuarterly},
	{"6 months", domain.ScheduleSemiannual},
	{"6 month", domain.ScheduleSemiannual},
	{"semiannual", domain.ScheduleSemiannual},
	{"semi-annual", domain.ScheduleSemiannual},
	{"yearly", domain.ScheduleAnnual},
	{"annual", domain.ScheduleAnnual},
	{"12 months", domain.ScheduleAnnual},
	{"biennial", domain.ScheduleBiennial},
	{"24 months", domain.ScheduleBiennial},
}

var legacyYears = regexp.MustCompile(`^(\d+)\s*/?\s*years?`)

// LegacySchedule maps a spreadsheet interval column to a schedule. Anything
// unreadable is annual.
func LegacySchedule(raw string) (domain.Schedule, int) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return domain.ScheduleAnnual, 0
	}
	for _, entry := range legacySchedules {
		if strings.Contains(lower, entry.needle) {
			return entry.schedule, 0
		}
	}
	if m := legacyYears.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch {
		case n <= 1:
			return domain.ScheduleAnnual, 0
		case n == 2:
			return domain.ScheduleBiennial, 0
		default:
			return domain.ScheduleCustom, n * 365
		}
	}
	return domain.ScheduleAnnual, 0
}
