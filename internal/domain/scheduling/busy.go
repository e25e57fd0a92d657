package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// Layouts without an explicit offset. They are read in the organization's
// location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp reads an ISO-8601 timestamp. Offsets and a trailing "Z" are
// honored; bare wall-clock values are placed in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseBusyRanges converts platform busy ranges into intervals. Ranges that
// cannot be parsed or whose end is not after the start are dropped and
// counted in skipped.
func ParseBusyRanges(ranges []BusyRange, loc *time.Location) (intervals []Interval, skipped int) {
	intervals = make([]Interval, 0, len(ranges))
	for _, r := range ranges {
		start, err := ParseTimestamp(r.Start, loc)
		if err != nil {
			skipped++
			continue
		}
		end, err := ParseTimestamp(r.End, loc)
		if err != nil || !end.After(start) {
			skipped++
			continue
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}
	return intervals, skipped
}

// IsSlotBusy reports whether [slotStart, slotStart+duration) overlaps any
// busy interval. Intervals are half-open, so a range ending exactly at the
// slot start does not block it.
func IsSlotBusy(slotStart time.Time, durationMinutes int, busy []Interval) bool {
	if durationMinutes <= 0 {
		durationMinutes = DefaultStepMinutes
	}
	slotEnd := slotStart.Add(time.Duration(durationMinutes) * time.Minute)
	for _, b := range busy {
		if b.Overlaps(slotStart, slotEnd) {
			return true
		}
	}
	return false
}
