package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/doctoc/doctoc/internal/domain/scheduling"
)

var tracer = otel.Tracer("github.com/doctoc/doctoc/internal/domain/booking")

// PatientResolver maps an account to the organization's patient record.
// Implementations return ErrPatientNotFound when no record matches.
type PatientResolver interface {
	ResolvePatientID(ctx context.Context, orgID string, user User) (string, error)
}

// AppointmentCreator creates an appointment on the platform. A non-nil
// error means the platform could not be reached or answered unexpectedly; a
// refusal is reported through CreateResult.Success.
type AppointmentCreator interface {
	CreateAppointment(ctx context.Context, orgID string, payload AppointmentPayload) (CreateResult, error)
}

// LocationLookup returns the location appointments are booked at when none
// is configured.
type LocationLookup func(ctx context.Context, orgID string) (string, error)

// CoordinatorConfig holds the organization-level settings for submissions.
type CoordinatorConfig struct {
	OrganizationID string
	LocationID     string
	Location       *time.Location
}

// Coordinator turns a completed selection into an appointment: it resolves
// the patient, builds the payload and sends it.
type Coordinator struct {
	cfg          CoordinatorConfig
	patients     PatientResolver
	appointments AppointmentCreator
	lookup       LocationLookup
	logger       zerolog.Logger
}

// CoordinatorOption configures optional Coordinator behavior.
type CoordinatorOption func(*Coordinator)

// WithLocationLookup sets the fallback used when no location is configured.
func WithLocationLookup(fn LocationLookup) CoordinatorOption {
	return func(c *Coordinator) { c.lookup = fn }
}

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(l zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

func NewCoordinator(cfg CoordinatorConfig, patients PatientResolver, appointments AppointmentCreator, opts ...CoordinatorOption) *Coordinator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	c := &Coordinator{
		cfg:          cfg,
		patients:     patients,
		appointments: appointments,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildPayload assembles the creation request. The start is the selected
// wall-clock time on the selected date; the end adds the type's duration,
// rolling into the next day when needed.
func BuildPayload(sel Selection, doctorID string, apptType scheduling.AppointmentType, patientID, locationID string, loc *time.Location) (AppointmentPayload, error) {
	if !sel.Complete() {
		return AppointmentPayload{}, invalid(StepSummary, "selection is incomplete")
	}
	if doctorID == "" {
		return AppointmentPayload{}, invalid(StepSummary, "doctor is required")
	}
	if apptType.ID != sel.TypeID {
		return AppointmentPayload{}, invalid(StepSummary, "appointment type does not match the selection")
	}
	if apptType.DurationMinutes <= 0 {
		return AppointmentPayload{}, invalid(StepSummary, "appointment type has no duration")
	}
	if patientID == "" {
		return AppointmentPayload{}, invalid(StepSummary, "patient is required")
	}

	start, err := scheduling.SlotStart(sel.Date, sel.Time, loc)
	if err != nil {
		return AppointmentPayload{}, invalid(StepSummary, err.Error())
	}
	end := start.Add(time.Duration(apptType.DurationMinutes) * time.Minute)
	dayKey, err := scheduling.DayKey(sel.Date)
	if err != nil {
		return AppointmentPayload{}, invalid(StepSummary, err.Error())
	}

	return AppointmentPayload{
		DayKey:         dayKey,
		ScheduledStart: start.Format(scheduling.WallTimeLayout),
		ScheduledEnd:   end.Format(scheduling.WallTimeLayout),
		PatientID:      patientID,
		UserID:         doctorID,
		TypeID:         apptType.ID,
		TypeName:       apptType.Name,
		Motive:         strings.TrimSpace(sel.Motive),
		LocationID:     locationID,
		Status:         StatusPending,
	}, nil
}

// Prepare validates the selection, resolves the patient and builds the
// payload. Nothing is sent.
func (c *Coordinator) Prepare(ctx context.Context, sel Selection, doctorID string, apptType scheduling.AppointmentType, user User) (AppointmentPayload, error) {
	if !sel.Complete() {
		return AppointmentPayload{}, invalid(StepSummary, "selection is incomplete")
	}
	if user.ID == "" {
		return AppointmentPayload{}, ErrNotAuthenticated
	}

	patientID, err := c.patients.ResolvePatientID(ctx, c.cfg.OrganizationID, user)
	switch {
	case errors.Is(err, ErrPatientNotFound), err == nil && patientID == "":
		return AppointmentPayload{}, &SubmissionError{
			Kind:   ErrPatientNotFound,
			Reason: "no patient record is linked to this account",
			Cause:  err,
		}
	case err != nil:
		return AppointmentPayload{}, &SubmissionError{
			Kind:   ErrSubmissionFailed,
			Reason: "could not look up the patient record, please try again",
			Cause:  err,
		}
	}

	locationID := c.cfg.LocationID
	if locationID == "" && c.lookup != nil {
		locationID, err = c.lookup(ctx, c.cfg.OrganizationID)
		if err != nil {
			c.logger.Warn().Err(err).Msg("location lookup failed, booking without location")
			locationID = ""
		}
	}

	return BuildPayload(sel, doctorID, apptType, patientID, locationID, c.cfg.Location)
}

// Send creates the appointment described by payload and returns its id.
func (c *Coordinator) Send(ctx context.Context, payload AppointmentPayload) (string, error) {
	ctx, span := tracer.Start(ctx, "booking.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.day_key", payload.DayKey),
		attribute.String("booking.doctor_id", payload.UserID),
		attribute.String("booking.type_id", payload.TypeID),
	)

	res, err := c.appointments.CreateAppointment(ctx, c.cfg.OrganizationID, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create appointment")
		c.logger.Error().Err(err).
			Str("doctor_id", payload.UserID).
			Str("day_key", payload.DayKey).
			Msg("appointment creation failed")
		return "", &SubmissionError{
			Kind:   ErrSubmissionFailed,
			Reason: "could not reach the appointment service, please try again",
			Cause:  err,
		}
	}
	if !res.Success {
		reason := res.Message
		if reason == "" {
			reason = "the appointment could not be booked"
		}
		span.SetStatus(codes.Error, "rejected")
		c.logger.Warn().
			Str("doctor_id", payload.UserID).
			Str("day_key", payload.DayKey).
			Str("reason", reason).
			Msg("appointment rejected")
		return "", &SubmissionError{Kind: ErrSubmissionFailed, Reason: reason, Rejected: true}
	}

	span.SetAttributes(attribute.String("booking.appointment_id", res.AppointmentID))
	c.logger.Info().
		Str("appointment_id", res.AppointmentID).
		Str("doctor_id", payload.UserID).
		Str("scheduled_start", payload.ScheduledStart).
		Msg("appointment created")
	return res.AppointmentID, nil
}

// Submit is Prepare followed by Send.
func (c *Coordinator) Submit(ctx context.Context, sel Selection, doctorID string, apptType scheduling.AppointmentType, user User) (string, error) {
	payload, err := c.Prepare(ctx, sel, doctorID, apptType, user)
	if err != nil {
		return "", err
	}
	return c.Send(ctx, payload)
}
