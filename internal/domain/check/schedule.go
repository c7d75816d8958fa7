package check

import (
	"fmt"
	"strings"
	"time"
)

type Unit string

const (
	UnitMinute Unit = "minute"
	UnitHour   Unit = "hour"
	UnitDay    Unit = "day"
	UnitWeek   Unit = "week"
	UnitMonth  Unit = "month"
	UnitYear   Unit = "year"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitMinute, UnitHour, UnitDay, UnitWeek, UnitMonth, UnitYear:
		return true
	}
	return false
}

func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown unit %q", s)}
	}
	return u, nil
}

// DueAt returns the moment the next signal is expected. Without a previous
// signal the check is due immediately. Month and year steps follow the
// calendar and clamp to the last day of the target month.
func DueAt(last *time.Time, unit Unit, count int, now time.Time) time.Time {
	if last == nil {
		return now
	}
	t := *last
	switch unit {
	case UnitMinute:
		return t.Add(time.Duration(count) * time.Minute)
	case UnitHour:
		return t.Add(time.Duration(count) * time.Hour)
	case UnitDay:
		return t.AddDate(0, 0, count)
	case UnitWeek:
		return t.AddDate(0, 0, 7*count)
	case UnitMonth:
		return addMonths(t, count)
	case UnitYear:
		return addMonths(t, 12*count)
	}
	return t
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
