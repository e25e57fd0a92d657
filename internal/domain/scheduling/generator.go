package scheduling

import "time"

const (
	DefaultHorizonDays = 14
	DefaultStepMinutes = 30
)

// GenerateBookableDates lists the working days in the window that starts
// the day after reference and spans horizonDays days. Today is never
// bookable. Dates are computed on the calendar of reference's location, so
// DST changes do not skip or repeat a day.
func GenerateBookableDates(schedule WeeklySchedule, horizonDays int, reference time.Time) []BookableDate {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	y, m, d := reference.Date()
	loc := reference.Location()

	dates := make([]BookableDate, 0, horizonDays)
	for offset := 1; offset <= horizonDays; offset++ {
		day := time.Date(y, m, d+offset, 0, 0, 0, 0, loc)
		name := DayName(day.Weekday())
		if !schedule.WorksOn(name) {
			continue
		}
		dates = append(dates, BookableDate{Date: day.Format(DateLayout), DayOfWeek: name})
	}
	return dates
}

// IsBookableDate reports whether date is one of the dates
// GenerateBookableDates would offer.
func IsBookableDate(schedule WeeklySchedule, horizonDays int, reference time.Time, date string) bool {
	for _, d := range GenerateBookableDates(schedule, horizonDays, reference) {
		if d.Date == date {
			return true
		}
	}
	return false
}

// GenerateTimeSlots walks each window from its start in stepMinutes
// increments while the cursor is before the window end. A slot whose step
// would run past the end is still emitted, flagged as not having a full
// step remaining. Windows are handled independently and malformed ones are
// skipped.
func GenerateTimeSlots(windows []TimeWindow, stepMinutes int) []RawSlot {
	if stepMinutes <= 0 {
		stepMinutes = DefaultStepMinutes
	}
	var slots []RawSlot
	for _, w := range windows {
		start, err := parseClock(w.StartTime)
		if err != nil {
			continue
		}
		end, err := parseClock(w.EndTime)
		if err != nil || end <= start {
			continue
		}
		for cur := start; cur < end; cur += stepMinutes {
			slots = append(slots, RawSlot{
				Time:                 formatClock(cur),
				HasFullStepRemaining: cur+stepMinutes <= end,
			})
		}
	}
	return slots
}
