package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/doctoc/doctoc/internal/domain/scheduling"
)

func completeSelection() Selection {
	return Selection{Date: "2024-01-08", Time: "10:00", TypeID: "general", Motive: "  headache  "}
}

var generalType = scheduling.AppointmentType{ID: "general", Name: "General consultation", DurationMinutes: 30, ExternalVisibility: true}

func TestBuildPayload(t *testing.T) {
	p, err := BuildPayload(completeSelection(), "doc-1", generalType, "patient-1", "loc-1", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DayKey != "08-01-2024" {
		t.Errorf("DayKey = %q", p.DayKey)
	}
	if p.ScheduledStart != "2024-01-08T10:00:00" {
		t.Errorf("ScheduledStart = %q", p.ScheduledStart)
	}
	if p.ScheduledEnd != "2024-01-08T10:30:00" {
		t.Errorf("ScheduledEnd = %q", p.ScheduledEnd)
	}
	if p.Status != StatusPending {
		t.Errorf("Status = %q, want %q", p.Status, StatusPending)
	}
	if p.Motive != "headache" {
		t.Errorf("Motive = %q, want trimmed", p.Motive)
	}
	if p.PatientID != "patient-1" || p.LocationID != "loc-1" {
		t.Errorf("unexpected identifiers: %+v", p)
	}
	// The platform files appointments under the doctor's user account.
	if p.UserID != "doc-1" {
		t.Errorf("UserID = %q, want the doctor id", p.UserID)
	}
	if p.TypeID != "general" || p.TypeName != "General consultation" {
		t.Errorf("unexpected type fields: %+v", p)
	}
}

func TestBuildPayload_CrossesMidnight(t *testing.T) {
	sel := Selection{Date: "2024-01-08", Time: "23:30", TypeID: "long", Motive: "night shift"}
	long := scheduling.AppointmentType{ID: "long", Name: "Extended", DurationMinutes: 60}
	p, err := BuildPayload(sel, "doc-1", long, "patient-1", "", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ScheduledEnd != "2024-01-09T00:30:00" {
		t.Errorf("ScheduledEnd = %q, want next day", p.ScheduledEnd)
	}
	if p.DayKey != "08-01-2024" {
		t.Errorf("DayKey should follow the start date, got %q", p.DayKey)
	}
}

func TestBuildPayload_Validation(t *testing.T) {
	tests := []struct {
		name    string
		sel     Selection
		typ     scheduling.AppointmentType
		patient string
	}{
		{"missing motive", Selection{Date: "2024-01-08", Time: "10:00", TypeID: "general", Motive: " "}, generalType, "p"},
		{"type mismatch", completeSelection(), scheduling.AppointmentType{ID: "other", DurationMinutes: 30}, "p"},
		{"zero duration", completeSelection(), scheduling.AppointmentType{ID: "general"}, "p"},
		{"no patient", completeSelection(), generalType, ""},
		{"bad time", Selection{Date: "2024-01-08", Time: "ten", TypeID: "general", Motive: "x"}, generalType, "p"},
	}
	for _, tt := range tests {
		_, err := BuildPayload(tt.sel, "doc-1", tt.typ, tt.patient, "", time.UTC)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", tt.name, err)
		}
	}
}

func TestCoordinator_Submit(t *testing.T) {
	m := newMockPlatform()
	c := NewCoordinator(CoordinatorConfig{OrganizationID: "org-1", LocationID: "loc-1"}, m, m)

	id, err := c.Submit(context.Background(), completeSelection(), "doc-1", generalType, ana)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "appt-1" {
		t.Errorf("id = %q, want appt-1", id)
	}
	if m.createdCount() != 1 {
		t.Fatalf("expected 1 create call, got %d", m.createdCount())
	}
	if m.created[0].PatientID != "patient-1" {
		t.Errorf("payload patient = %q", m.created[0].PatientID)
	}
}

func TestCoordinator_PatientNotFound(t *testing.T) {
	m := newMockPlatform()
	c := NewCoordinator(CoordinatorConfig{OrganizationID: "org-1"}, m, m)

	stranger := User{ID: "user-9", Email: "nobody@example.com"}
	_, err := c.Submit(context.Background(), completeSelection(), "doc-1", generalType, stranger)
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	if m.createdCount() != 0 {
		t.Error("no appointment should be created without a patient")
	}
}

func TestCoordinator_ResolverTransportError(t *testing.T) {
	m := newMockPlatform()
	m.resolveErr = errors.New("connection reset")
	c := NewCoordinator(CoordinatorConfig{OrganizationID: "org-1"}, m, m)

	_, err := c.Submit(context.Background(), completeSelection(), "doc-1", generalType, ana)
	if !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}
	var se *SubmissionError
	if !errors.As(err, &se) || se.Rejected {
		t.Errorf("expected a non-rejected SubmissionError, got %#v", err)
	}
}

func TestCoordinator_CreateFailures(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		m := newMockPlatform()
		m.createErr = errors.New("timeout")
		c := NewCoordinator(CoordinatorConfig{OrganizationID: "org-1"}, m, m)

		_, err := c.Submit(context.Background(), completeSelection(), "doc-1", generalType, ana)
		var se *SubmissionError
		if !errors.As(err, &se) {
			t.Fatalf("expected SubmissionError, got %v", err)
		}
		if se.Rejected || !errors.Is(err, ErrSubmissionFailed) {
			t.Errorf("unexpected error classification: %+v", se)
		}
		if se.Cause == nil {
			t.Error("expected cause to be kept")
		}
	})

	t.Run("rejected", func(t *testing.T) {
		m := newMockPlatform()
		m.reject = "slot already taken"
		c := NewCoordinator(CoordinatorConfig{OrganizationID: "org-1"}, m, m)

		_, err := c.Submit(context.Background(), completeSelection(), "doc-1", generalType, ana)
		var se *SubmissionError
		if !errors.As(err, &se) || !se.Rejected {
			t.Fatalf("expected rejected SubmissionError, got %v", err)
		}
		if err.Error() != "slot already taken" {
			t.Errorf("reason = %q", err.Error())
		}
	})
}

func TestCoordinator_LocationLookup(t *testing.T) {
	m := newMockPlatform()
	c := NewCoordinator(CoordinatorConfig{OrganizationID: "org-1"}, m, m,
		WithLocationLookup(func(context.Context, string) (string, error) { return "loc-main", nil }))

	p, err := c.Prepare(context.Background(), completeSelection(), "doc-1", generalType, ana)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LocationID != "loc-main" {
		t.Errorf("LocationID = %q, want loc-main", p.LocationID)
	}
	if m.createdCount() != 0 {
		t.Error("Prepare must not create anything")
	}
}

func TestCoordinator_UsesOrganizationTimezone(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*3600)
	m := newMockPlatform()
	c := NewCoordinator(CoordinatorConfig{OrganizationID: "org-1", Location: loc}, m, m)

	p, err := c.Prepare(context.Background(), completeSelection(), "doc-1", generalType, ana)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ScheduledStart != "2024-01-08T10:00:00" {
		t.Errorf("wall-clock start should not shift, got %q", p.ScheduledStart)
	}
}
