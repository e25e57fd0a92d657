package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts shared by the booking flow and the medical platform wire format.
const (
	DateLayout     = "2006-01-02"
	DayKeyLayout   = "02-01-2006"
	ClockLayout    = "15:04"
	WallTimeLayout = "2006-01-02T15:04:05"
)

// Canonical day names used as WeeklySchedule keys.
const (
	Sunday    = "sunday"
	Monday    = "monday"
	Tuesday   = "tuesday"
	Wednesday = "wednesday"
	Thursday  = "thursday"
	Friday    = "friday"
	Saturday  = "saturday"
)

var dayNames = [7]string{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// DayName returns the canonical schedule key for a weekday.
func DayName(d time.Weekday) string {
	return dayNames[d]
}

// TimeWindow is a working-hours window on a weekday, in "HH:MM" wall-clock
// form. A window whose end is not after its start is ignored.
type TimeWindow struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// WeeklySchedule maps a canonical day name to the doctor's working windows
// for that day. Days without windows are non-working days.
type WeeklySchedule map[string][]TimeWindow

// Windows returns the windows configured for a day name. Lookups are
// case-insensitive so schedules stored as "Monday" still resolve.
func (s WeeklySchedule) Windows(day string) []TimeWindow {
	if w, ok := s[day]; ok {
		return w
	}
	want := strings.ToLower(day)
	for k, w := range s {
		if strings.ToLower(k) == want {
			return w
		}
	}
	return nil
}

// Normalize returns a copy keyed by lowercase day names. Windows for keys
// that differ only in case are concatenated.
func (s WeeklySchedule) Normalize() WeeklySchedule {
	out := make(WeeklySchedule, len(s))
	for k, w := range s {
		key := strings.ToLower(strings.TrimSpace(k))
		out[key] = append(out[key], w...)
	}
	return out
}

// WorksOn reports whether the schedule has at least one window on day.
func (s WeeklySchedule) WorksOn(day string) bool {
	return len(s.Windows(day)) > 0
}

// BusyRange is an already-booked interval as reported by the medical
// platform. Timestamps are ISO-8601; values without an offset are read in
// the organization's timezone.
type BusyRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Interval is a parsed, half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(start, end time.Time) bool {
	return start.Before(iv.End) && iv.Start.Before(end)
}

// BookableDate is a calendar date on which the doctor has working hours.
type BookableDate struct {
	Date      string `json:"date"`
	DayOfWeek string `json:"day_of_week"`
}

// RawSlot is a candidate start time produced from a working window before
// busy ranges are applied.
type RawSlot struct {
	Time                 string
	HasFullStepRemaining bool
}

// TimeSlot is a start time offered to the patient.
type TimeSlot struct {
	Time        string `json:"time"`
	IsAvailable bool   `json:"is_available"`
	IsBusy      bool   `json:"is_busy"`
}

// AppointmentType is a bookable service kind.
type AppointmentType struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Description        string  `json:"description,omitempty"`
	DurationMinutes    int     `json:"duration_minutes"`
	Price              float64 `json:"price"`
	ExternalVisibility bool    `json:"external_visibility"`
}

// VisibleTypes keeps only the types patients may book on their own.
func VisibleTypes(types []AppointmentType) []AppointmentType {
	out := make([]AppointmentType, 0, len(types))
	for _, t := range types {
		if t.ExternalVisibility {
			out = append(out, t)
		}
	}
	return out
}

// FindType looks up a type by id.
func FindType(types []AppointmentType, id string) (AppointmentType, bool) {
	for _, t := range types {
		if t.ID == id {
			return t, true
		}
	}
	return AppointmentType{}, false
}

// ParseDate parses a "YYYY-MM-DD" date at midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// DayKey converts "YYYY-MM-DD" into the platform's "DD-MM-YYYY" key.
func DayKey(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t.Format(DayKeyLayout), nil
}

// SlotStart builds the absolute instant for a wall-clock time on a date.
// The value is assembled from components in loc, so it never depends on the
// host timezone.
func SlotStart(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	mins, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, mins/60, mins%60, 0, 0, d.Location()), nil
}

// parseClock converts "HH:MM" into minutes since midnight. "24:00" is
// accepted so a window can run to the end of the day.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock time out of range %q", s)
	}
	return h*60 + m, nil
}

func formatClock(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}
