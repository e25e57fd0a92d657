package scheduling

import (
	"sort"
	"time"
)

// Calculator turns a weekly schedule plus busy ranges into the slots shown
// for a date. The zero value uses UTC and 30-minute steps.
type Calculator struct {
	Location    *time.Location
	StepMinutes int
}

func (c Calculator) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Calculator) step() int {
	if c.StepMinutes <= 0 {
		return DefaultStepMinutes
	}
	return c.StepMinutes
}

// Slots computes the availability of every candidate start time on date.
// A slot is busy when the step starting at it overlaps a busy
// range, and available when it is not busy and a full step remains in its
// window. Start times produced by more than one window are reported once,
// available if any window makes them available. The result is sorted by
// time.
func (c Calculator) Slots(schedule WeeklySchedule, date string, busy []BusyRange) ([]TimeSlot, error) {
	day, err := ParseDate(date, c.loc())
	if err != nil {
		return nil, err
	}
	windows := schedule.Windows(DayName(day.Weekday()))
	if len(windows) == 0 {
		return []TimeSlot{}, nil
	}

	intervals, _ := ParseBusyRanges(busy, c.loc())
	raw := GenerateTimeSlots(windows, c.step())

	index := make(map[string]int, len(raw))
	slots := make([]TimeSlot, 0, len(raw))
	for _, r := range raw {
		start, err := SlotStart(date, r.Time, c.loc())
		if err != nil {
			continue
		}
		isBusy := IsSlotBusy(start, c.step(), intervals)
		slot := TimeSlot{
			Time:        r.Time,
			IsBusy:      isBusy,
			IsAvailable: !isBusy && r.HasFullStepRemaining,
		}
		if i, ok := index[r.Time]; ok {
			if slot.IsAvailable {
				slots[i] = slot
			}
			continue
		}
		index[r.Time] = len(slots)
		slots = append(slots, slot)
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })
	return slots, nil
}

// ComputeAvailableSlots is Calculator.Slots with explicit settings.
func ComputeAvailableSlots(schedule WeeklySchedule, date string, busy []BusyRange, loc *time.Location, stepMinutes int) ([]TimeSlot, error) {
	return Calculator{Location: loc, StepMinutes: stepMinutes}.Slots(schedule, date, busy)
}

// IsAvailable reports whether t is an available slot in slots.
func IsAvailable(slots []TimeSlot, t string) bool {
	for _, s := range slots {
		if s.Time == t {
			return s.IsAvailable
		}
	}
	return false
}

// CountAvailable returns how many slots can be booked.
func CountAvailable(slots []TimeSlot) int {
	n := 0
	for _, s := range slots {
		if s.IsAvailable {
			n++
		}
	}
	return n
}
