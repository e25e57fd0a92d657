package scheduling

import (
	"testing"
	"time"
)

func mondayOnly() WeeklySchedule {
	return WeeklySchedule{Monday: {{StartTime: "08:00", EndTime: "12:00"}}}
}

func everyDay() WeeklySchedule {
	s := WeeklySchedule{}
	for _, d := range dayNames {
		s[d] = []TimeWindow{{StartTime: "09:00", EndTime: "17:00"}}
	}
	return s
}

func TestGenerateBookableDates_OnlyWorkingDays(t *testing.T) {
	// 2024-01-01 is a Monday.
	ref := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	dates := GenerateBookableDates(mondayOnly(), 14, ref)

	want := []string{"2024-01-08", "2024-01-15"}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %d: %+v", len(want), len(dates), dates)
	}
	for i, d := range dates {
		if d.Date != want[i] {
			t.Errorf("dates[%d] = %q, want %q", i, d.Date, want[i])
		}
		if d.DayOfWeek != Monday {
			t.Errorf("dates[%d].DayOfWeek = %q, want monday", i, d.DayOfWeek)
		}
	}
}

func TestGenerateBookableDates_ExcludesToday(t *testing.T) {
	ref := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)
	for _, d := range GenerateBookableDates(everyDay(), 14, ref) {
		if d.Date == "2024-01-01" {
			t.Fatal("today must not be bookable")
		}
	}
}

func TestGenerateBookableDates_HorizonAndOrder(t *testing.T) {
	ref := time.Date(2024, 1, 30, 12, 0, 0, 0, time.UTC)
	dates := GenerateBookableDates(everyDay(), 14, ref)
	if len(dates) != 14 {
		t.Fatalf("expected 14 dates, got %d", len(dates))
	}
	if dates[0].Date != "2024-01-31" || dates[13].Date != "2024-02-13" {
		t.Errorf("unexpected range %s..%s", dates[0].Date, dates[13].Date)
	}
	for i := 1; i < len(dates); i++ {
		if dates[i].Date <= dates[i-1].Date {
			t.Fatalf("dates not strictly ascending at %d: %s <= %s", i, dates[i].Date, dates[i-1].Date)
		}
	}
}

func TestGenerateBookableDates_AcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks spring forward on 2024-03-10.
	ref := time.Date(2024, 3, 9, 23, 30, 0, 0, loc)
	dates := GenerateBookableDates(everyDay(), 3, ref)
	want := []string{"2024-03-10", "2024-03-11", "2024-03-12"}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(dates))
	}
	for i, d := range dates {
		if d.Date != want[i] {
			t.Errorf("dates[%d] = %q, want %q", i, d.Date, want[i])
		}
	}
}

func TestGenerateBookableDates_DefaultHorizon(t *testing.T) {
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := len(GenerateBookableDates(everyDay(), 0, ref)); got != DefaultHorizonDays {
		t.Errorf("expected default horizon %d, got %d", DefaultHorizonDays, got)
	}
}

func TestGenerateBookableDates_EmptySchedule(t *testing.T) {
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := GenerateBookableDates(WeeklySchedule{}, 14, ref); len(got) != 0 {
		t.Errorf("expected no dates, got %d", len(got))
	}
}

func TestIsBookableDate(t *testing.T) {
	ref := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	if !IsBookableDate(mondayOnly(), 14, ref, "2024-01-08") {
		t.Error("expected 2024-01-08 to be bookable")
	}
	if IsBookableDate(mondayOnly(), 14, ref, "2024-01-09") {
		t.Error("tuesday should not be bookable")
	}
	if IsBookableDate(mondayOnly(), 14, ref, "2024-01-22") {
		t.Error("date beyond horizon should not be bookable")
	}
}

func TestGenerateTimeSlots_PartialTail(t *testing.T) {
	slots := GenerateTimeSlots([]TimeWindow{{StartTime: "08:00", EndTime: "08:45"}}, 30)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d: %+v", len(slots), slots)
	}
	if slots[0].Time != "08:00" || !slots[0].HasFullStepRemaining {
		t.Errorf("unexpected first slot %+v", slots[0])
	}
	if slots[1].Time != "08:30" || slots[1].HasFullStepRemaining {
		t.Errorf("unexpected second slot %+v", slots[1])
	}
}

func TestGenerateTimeSlots_ExactFit(t *testing.T) {
	slots := GenerateTimeSlots([]TimeWindow{{StartTime: "08:00", EndTime: "12:00"}}, 30)
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if !s.HasFullStepRemaining {
			t.Errorf("slot %s should have a full step", s.Time)
		}
	}
	if slots[7].Time != "11:30" {
		t.Errorf("last slot = %s, want 11:30", slots[7].Time)
	}
}

func TestGenerateTimeSlots_SkipsMalformedWindows(t *testing.T) {
	windows := []TimeWindow{
		{StartTime: "12:00", EndTime: "12:00"},
		{StartTime: "14:00", EndTime: "13:00"},
		{StartTime: "bad", EndTime: "13:00"},
		{StartTime: "15:00", EndTime: "16:00"},
	}
	slots := GenerateTimeSlots(windows, 30)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots from the valid window, got %d", len(slots))
	}
	if slots[0].Time != "15:00" || slots[1].Time != "15:30" {
		t.Errorf("unexpected slots %+v", slots)
	}
}

func TestGenerateTimeSlots_MultipleWindows(t *testing.T) {
	windows := []TimeWindow{
		{StartTime: "08:00", EndTime: "09:00"},
		{StartTime: "14:00", EndTime: "15:00"},
	}
	slots := GenerateTimeSlots(windows, 30)
	want := []string{"08:00", "08:30", "14:00", "14:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i, s := range slots {
		if s.Time != want[i] {
			t.Errorf("slots[%d] = %s, want %s", i, s.Time, want[i])
		}
	}
}
