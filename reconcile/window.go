package reconcile

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	allDayStartHour = 9
	eventDuration   = time.Hour
)

// EventWindow derives the calendar slot for a task's due date and optional
// due time. The date string is split into its components and assembled in the
// local zone; round-tripping the whole string through a timezone-sensitive
// parse can shift the day. Without a due time the slot is 09:00-10:00 local
// and the event is all-day.
func EventWindow(dueDate, dueTime string) (start, end time.Time, allDay bool, err error) {
	year, month, day, err := splitDate(dueDate)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}

	hour, minute := allDayStartHour, 0
	allDay = true
	if dueTime != "" {
		hour, minute, err = splitClock(dueTime)
		if err != nil {
			return time.Time{}, time.Time{}, false, err
		}
		allDay = false
	}

	start = time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local)
	return start, start.Add(eventDuration), allDay, nil
}

// DayWindow returns the whole local day [00:00:00, 23:59:59] of the due date,
// the range scanned by discovery cleanup.
func DayWindow(dueDate string) (time.Time, time.Time, error) {
	year, month, day, err := splitDate(dueDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	min := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	max := time.Date(year, time.Month(month), day, 23, 59, 59, 0, time.Local)
	return min, max, nil
}

func splitDate(s string) (year, month, day int, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid due date %q", s)
	}
	year, err = strconv.Atoi(parts[0])
	if err == nil {
		month, err = strconv.Atoi(parts[1])
	}
	if err == nil {
		day, err = strconv.Atoi(parts[2])
	}
	if err != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, 0, fmt.Errorf("invalid due date %q", s)
	}
	return year, month, day, nil
}

func splitClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("invalid due time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err == nil {
		minute, err = strconv.Atoi(parts[1])
	}
	if err != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid due time %q", s)
	}
	return hour, minute, nil
}
