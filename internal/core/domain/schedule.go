package domain

import "time"

type Schedule string

const (
	ScheduleMonthly    Schedule = "monthly"
	ScheduleQuarterly  Schedule = "quarterly"
	ScheduleSemiannual Schedule = "semiannual"
	ScheduleAnnual     Schedule = "annual"
	ScheduleBiennial   Schedule = "biennial"
	ScheduleCustom     Schedule = "custom"
)

// scheduleMonths is the month delta of each fixed schedule.
var scheduleMonths = map[Schedule]int{
	ScheduleMonthly:    1,
	ScheduleQuarterly:  3,
	ScheduleSemiannual: 6,
	ScheduleAnnual:     12,
	ScheduleBiennial:   24,
}

func ParseSchedule(raw string) (Schedule, bool) {
	s := Schedule(raw)
	if _, ok := scheduleMonths[s]; ok || s == ScheduleCustom {
		return s, true
	}
	return "", false
}

// NextCalibrationDate adds one schedule period to last. A custom schedule
// without a positive day count falls back to annual.
func NextCalibrationDate(last time.Time, schedule Schedule, customDays int) time.Time {
	last = DateOf(last)
	if schedule == ScheduleCustom && customDays > 0 {
		return last.AddDate(0, 0, customDays)
	}
	months, ok := scheduleMonths[schedule]
	if !ok {
		months = 12
	}
	return AddMonths(last, months)
}

// AddMonths adds calendar months, clamping the day to the end of the target month.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to a UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func DatePtr(t time.Time) *time.Time {
	d := DateOf(t)
	return &d
}
