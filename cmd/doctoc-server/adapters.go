package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/doctoc/doctoc/internal/domain/booking"
	"github.com/doctoc/doctoc/internal/domain/directory"
	"github.com/doctoc/doctoc/internal/domain/scheduling"
	"github.com/doctoc/doctoc/internal/platform/cache"
	"github.com/doctoc/doctoc/internal/platform/medplatform"
)

// The booking and directory packages define the narrow interfaces they
// consume; the adapters below satisfy them with the platform client so the
// domain packages never import the transport.

// doctorSchedules implements booking.ScheduleProvider. A doctor the
// platform does not know becomes booking.ErrDoctorNotFound.
type doctorSchedules struct {
	next cache.ScheduleSource
}

func (a doctorSchedules) WeeklySchedule(ctx context.Context, orgID, doctorID string) (scheduling.WeeklySchedule, error) {
	sched, err := a.next.WeeklySchedule(ctx, orgID, doctorID)
	if errors.Is(err, medplatform.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", booking.ErrDoctorNotFound, doctorID)
	}
	return sched, err
}

// patientResolver implements booking.PatientResolver.
type patientResolver struct {
	client *medplatform.Client
}

func (a patientResolver) ResolvePatientID(ctx context.Context, orgID string, user booking.User) (string, error) {
	id, err := a.client.ResolvePatientID(ctx, orgID, medplatform.PatientQuery{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	})
	if errors.Is(err, medplatform.ErrNotFound) {
		return "", fmt.Errorf("%w: %v", booking.ErrPatientNotFound, err)
	}
	return id, err
}

// appointmentCreator implements booking.AppointmentCreator. Platform
// refusals become an unsuccessful result; everything else stays an error.
type appointmentCreator struct {
	client *medplatform.Client
}

func (a appointmentCreator) CreateAppointment(ctx context.Context, orgID string, p booking.AppointmentPayload) (booking.CreateResult, error) {
	id, err := a.client.CreateAppointment(ctx, orgID, medplatform.AppointmentRequest{
		DayKey:         p.DayKey,
		ScheduledStart: p.ScheduledStart,
		ScheduledEnd:   p.ScheduledEnd,
		PatientID:      p.PatientID,
		UserID:         p.UserID,
		TypeID:         p.TypeID,
		TypeName:       p.TypeName,
		Motive:         p.Motive,
		LocationID:     p.LocationID,
		Status:         p.Status,
	})
	var rejected *medplatform.RejectedError
	if errors.As(err, &rejected) {
		return booking.CreateResult{Success: false, Message: rejected.Message}, nil
	}
	if err != nil {
		return booking.CreateResult{}, err
	}
	return booking.CreateResult{Success: true, AppointmentID: id}, nil
}

// doctorSource implements directory.DoctorSource, hiding inactive doctors.
type doctorSource struct {
	client *medplatform.Client
}

func (a doctorSource) Doctors(ctx context.Context, orgID string) ([]directory.Doctor, error) {
	all, err := a.client.Doctors(ctx, orgID)
	if err != nil {
		return nil, err
	}
	out := make([]directory.Doctor, 0, len(all))
	for _, d := range all {
		if !d.IsActive() || d.ID == "" {
			continue
		}
		out = append(out, directory.Doctor{
			ID:        d.ID,
			Name:      d.FullName(),
			Specialty: d.Specialty,
			PhotoURL:  d.PhotoURL,
		})
	}
	return out, nil
}

func locationLookup(client *medplatform.Client) booking.LocationLookup {
	return client.DefaultLocationID
}
