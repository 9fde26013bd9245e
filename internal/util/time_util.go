package util

import (
	"fmt"
	"strings"
	"time"
)

const layout = "2006-01-02"

func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func DateLte(t1, t2 time.Time) bool {
	return t1.Before(t2) || t1.Format(layout) == t2.Format(layout)
}

func SameDay(t1, t2 time.Time) bool {
	return t1.Format(layout) == t2.Format(layout)
}

func ParseWeekday(s string) (time.Weekday, error) {
	days := map[string]time.Weekday{
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
	}
	day, ok := days[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("invalid rebalance day %q: must be a weekday name", s)
	}
	return day, nil
}

// WeekdaysBetween lists every occurrence of day in [start, end],
// inclusive on both ends.
func WeekdaysBetween(start, end time.Time, day time.Weekday) []time.Time {
	current := start
	for current.Weekday() != day {
		current = current.AddDate(0, 0, 1)
	}
	dates := []time.Time{}
	for DateLte(current, end) {
		dates = append(dates, current)
		current = current.AddDate(0, 0, 7)
	}
	return dates
}

// MonthEndsBetween lists the last calendar day of each month that falls
// inside [start, end].
func MonthEndsBetween(start, end time.Time) []time.Time {
	dates := []time.Time{}
	current := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for current.Before(end) {
		nextMonth := current.AddDate(0, 1, 0)
		monthEnd := nextMonth.AddDate(0, 0, -1)
		if !monthEnd.Before(start) && DateLte(monthEnd, end) {
			dates = append(dates, monthEnd)
		}
		current = nextMonth
	}
	return dates
}
