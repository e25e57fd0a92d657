package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doctoc/doctoc/internal/domain/scheduling"
)

// -- Mock platform --

type mockPlatform struct {
	mu sync.Mutex

	schedule    scheduling.WeeklySchedule
	scheduleErr error

	busy     map[string][]scheduling.BusyRange
	busyErr  error
	busyHook func(dayKey string)
	busyHits map[string]int

	types    []scheduling.AppointmentType
	typesErr error

	patients   map[string]string
	resolveErr error

	created   []AppointmentPayload
	createErr error
	reject    string
	nextID    int
}

func newMockPlatform() *mockPlatform {
	return &mockPlatform{
		schedule: scheduling.WeeklySchedule{
			scheduling.Monday:    {{StartTime: "08:00", EndTime: "12:00"}},
			scheduling.Wednesday: {{StartTime: "14:00", EndTime: "16:00"}},
		},
		busy: map[string][]scheduling.BusyRange{
			"08-01-2024": {{Start: "2024-01-08T10:00:00", End: "2024-01-08T10:30:00"}},
		},
		busyHits: map[string]int{},
		types: []scheduling.AppointmentType{
			{ID: "general", Name: "General consultation", DurationMinutes: 30, Price: 25000, ExternalVisibility: true},
			{ID: "long", Name: "Extended consultation", DurationMinutes: 60, ExternalVisibility: true},
			{ID: "internal", Name: "Internal follow-up", DurationMinutes: 15},
		},
		patients: map[string]string{"ana@example.com": "patient-1"},
	}
}

func (m *mockPlatform) WeeklySchedule(_ context.Context, _, _ string) (scheduling.WeeklySchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduleErr != nil {
		return nil, m.scheduleErr
	}
	return m.schedule, nil
}

func (m *mockPlatform) BusyRanges(_ context.Context, _, dayKey string) ([]scheduling.BusyRange, error) {
	m.mu.Lock()
	hook := m.busyHook
	m.busyHits[dayKey]++
	err := m.busyErr
	ranges := m.busy[dayKey]
	m.mu.Unlock()

	if hook != nil {
		hook(dayKey)
	}
	if err != nil {
		return nil, err
	}
	return ranges, nil
}

func (m *mockPlatform) AppointmentTypes(_ context.Context, _, _ string) ([]scheduling.AppointmentType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.typesErr != nil {
		return nil, m.typesErr
	}
	return m.types, nil
}

func (m *mockPlatform) ResolvePatientID(_ context.Context, _ string, user User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolveErr != nil {
		return "", m.resolveErr
	}
	id, ok := m.patients[user.Email]
	if !ok {
		return "", ErrPatientNotFound
	}
	return id, nil
}

func (m *mockPlatform) CreateAppointment(_ context.Context, _ string, p AppointmentPayload) (CreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, p)
	if m.createErr != nil {
		return CreateResult{}, m.createErr
	}
	if m.reject != "" {
		return CreateResult{Success: false, Message: m.reject}, nil
	}
	m.nextID++
	return CreateResult{Success: true, AppointmentID: fmt.Sprintf("appt-%d", m.nextID)}, nil
}

func (m *mockPlatform) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

// 2024-01-01 is a Monday.
func fixedClock() time.Time {
	return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
}

var ana = User{ID: "user-1", Email: "ana@example.com", Name: "Ana Rojas"}

func newTestService(m *mockPlatform) *Service {
	coord := NewCoordinator(CoordinatorConfig{OrganizationID: "org-1", LocationID: "loc-1"}, m, m)
	return NewService(
		Config{OrganizationID: "org-1"},
		m, m, m,
		coord,
		NewSessionStore(30*time.Minute, fixedClock),
		WithClock(fixedClock),
	)
}
