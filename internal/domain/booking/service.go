package booking

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/doctoc/doctoc/internal/domain/scheduling"
)

// ScheduleProvider returns a doctor's weekly working hours.
type ScheduleProvider interface {
	WeeklySchedule(ctx context.Context, orgID, doctorID string) (scheduling.WeeklySchedule, error)
}

// BusyRangeProvider returns the organization's booked ranges for a day,
// keyed "DD-MM-YYYY".
type BusyRangeProvider interface {
	BusyRanges(ctx context.Context, orgID, dayKey string) ([]scheduling.BusyRange, error)
}

// TypeProvider returns the appointment types a doctor offers.
type TypeProvider interface {
	AppointmentTypes(ctx context.Context, orgID, doctorID string) ([]scheduling.AppointmentType, error)
}

// Config holds booking settings for one organization.
type Config struct {
	OrganizationID  string
	Location        *time.Location
	HorizonDays     int
	StepMinutes     int
	MaxMotiveLength int
}

// SessionView is the client-facing state of a session.
type SessionView struct {
	ID            string    `json:"id"`
	DoctorID      string    `json:"doctor_id"`
	Step          Step      `json:"step"`
	Selection     Selection `json:"selection"`
	CanContinue   bool      `json:"can_continue"`
	Authenticated bool      `json:"authenticated"`
	Submitting    bool      `json:"submitting,omitempty"`
	AppointmentID string    `json:"appointment_id,omitempty"`
}

// DateOption is a bookable date as offered to the patient.
type DateOption struct {
	scheduling.BookableDate
	Selected bool `json:"selected"`
}

// SlotsView lists the slots for the selected date. BusyLoaded is false when
// the busy ranges for that date have not been fetched yet, in which case
// availability is provisional.
type SlotsView struct {
	Date        string                `json:"date"`
	Slots       []scheduling.TimeSlot `json:"slots"`
	Available   int                   `json:"available"`
	BusyLoaded  bool                  `json:"busy_loaded"`
	TimeCleared bool                  `json:"time_cleared,omitempty"`
	Session     SessionView           `json:"session"`
}

// Summary is the read-only review shown before submitting.
type Summary struct {
	DoctorID  string                     `json:"doctor_id"`
	Date      string                     `json:"date"`
	DayOfWeek string                     `json:"day_of_week"`
	StartTime string                     `json:"start_time"`
	EndTime   string                     `json:"end_time"`
	Type      scheduling.AppointmentType `json:"type"`
	Motive    string                     `json:"motive"`
}

// Service drives booking sessions. It owns the session store and talks to
// the platform through the provider interfaces.
type Service struct {
	cfg         Config
	calc        scheduling.Calculator
	schedules   ScheduleProvider
	busy        BusyRangeProvider
	types       TypeProvider
	coordinator *Coordinator
	sessions    *SessionStore
	now         func() time.Time
	logger      zerolog.Logger
	events      EventRecorder
}

// EventRecorder counts booking outcomes for metrics.
type EventRecorder interface {
	RecordBookingEvent(event, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordBookingEvent(string, string) {}

// ServiceOption configures optional Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the clock used to compute bookable dates.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithEventRecorder(r EventRecorder) ServiceOption {
	return func(s *Service) { s.events = r }
}

func NewService(cfg Config, schedules ScheduleProvider, busy BusyRangeProvider, types TypeProvider, coordinator *Coordinator, sessions *SessionStore, opts ...ServiceOption) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = scheduling.DefaultHorizonDays
	}
	if cfg.StepMinutes <= 0 {
		cfg.StepMinutes = scheduling.DefaultStepMinutes
	}
	if cfg.MaxMotiveLength <= 0 {
		cfg.MaxMotiveLength = 1000
	}
	s := &Service{
		cfg:         cfg,
		calc:        scheduling.Calculator{Location: cfg.Location, StepMinutes: cfg.StepMinutes},
		schedules:   schedules,
		busy:        busy,
		types:       types,
		coordinator: coordinator,
		sessions:    sessions,
		now:         time.Now,
		logger:      zerolog.Nop(),
		events:      nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}

// -- Session lifecycle --

// StartSession opens a wizard for doctorID. A nil user starts at
// auth-check. A ScheduleProvider reports an unknown doctor with
// ErrDoctorNotFound, which is returned unwrapped.
func (s *Service) StartSession(ctx context.Context, doctorID string, user *User) (*SessionView, error) {
	if doctorID == "" {
		return nil, invalid("", "doctor_id is required")
	}
	schedule, err := s.schedules.WeeklySchedule(ctx, s.cfg.OrganizationID, doctorID)
	if errors.Is(err, ErrDoctorNotFound) {
		s.events.RecordBookingEvent("session_started", "doctor_not_found")
		return nil, err
	}
	if err != nil {
		s.events.RecordBookingEvent("session_started", "upstream_error")
		return nil, upstream("load schedule", err)
	}

	if n := s.sessions.Sweep(); n > 0 {
		s.logger.Debug().Int("expired", n).Msg("swept booking sessions")
	}
	sess := newSession(doctorID, user, schedule.Normalize(), s.now())
	s.sessions.Add(sess)
	s.events.RecordBookingEvent("session_started", "ok")

	s.logger.Info().
		Str("session_id", sess.ID).
		Str("doctor_id", doctorID).
		Bool("authenticated", user != nil).
		Msg("booking session started")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	v := s.viewLocked(sess)
	return &v, nil
}

// Authenticate binds a signed-in user to a session still at auth-check.
// Repeating the call with the same user is a no-op.
func (s *Service) Authenticate(_ context.Context, id string, user User) (*SessionView, error) {
	if user.ID == "" {
		return nil, ErrNotAuthenticated
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.owner != nil {
		if sess.owner.ID != user.ID {
			return nil, ErrWrongUser
		}
		v := s.viewLocked(sess)
		return &v, nil
	}
	if err := sess.wizard.Authenticate(); err != nil {
		return nil, err
	}
	u := user
	sess.owner = &u
	v := s.viewLocked(sess)
	return &v, nil
}

// Session returns the current state. Anonymous callers may read a session
// that has no owner yet.
func (s *Service) Session(_ context.Context, id string, user *User) (*SessionView, error) {
	sess, err := s.lock(id, user, false)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	v := s.viewLocked(sess)
	return &v, nil
}

// EndSession discards a session.
func (s *Service) EndSession(_ context.Context, id string, user *User) error {
	sess, err := s.lock(id, user, false)
	if err != nil {
		return err
	}
	sess.mu.Unlock()
	s.sessions.Delete(id)
	return nil
}

// Reset clears the selection and returns to the date step, for example to
// book another appointment after a success.
func (s *Service) Reset(_ context.Context, id string, user *User) (*SessionView, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	sess.wizard.Reset()
	sess.payload = nil
	sess.appointmentID = ""
	v := s.viewLocked(sess)
	return &v, nil
}

// -- Navigation --

// Next advances the wizard when the current step's requirement is met.
func (s *Service) Next(_ context.Context, id string, user *User) (*SessionView, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	if sess.wizard.Step() == StepTime {
		if err := s.checkTimeLocked(sess); err != nil {
			return nil, err
		}
	}
	if err := sess.wizard.Next(); err != nil {
		return nil, err
	}
	v := s.viewLocked(sess)
	return &v, nil
}

// Back returns to the previous step, keeping the selection.
func (s *Service) Back(_ context.Context, id string, user *User) (*SessionView, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	if err := sess.wizard.Back(); err != nil {
		return nil, err
	}
	v := s.viewLocked(sess)
	return &v, nil
}

// -- Date and time --

// Dates lists the bookable dates for the session's doctor.
func (s *Service) Dates(_ context.Context, id string, user *User) ([]DateOption, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	selected := sess.wizard.Selection().Date
	dates := scheduling.GenerateBookableDates(sess.schedule, s.cfg.HorizonDays, s.now().In(s.cfg.Location))
	out := make([]DateOption, len(dates))
	for i, d := range dates {
		out[i] = DateOption{BookableDate: d, Selected: d.Date == selected}
	}
	return out, nil
}

// SelectDate records the date, fetches its busy ranges and returns the
// resulting slots. A previously chosen time that is not available on the
// new date is cleared. Until the fetch succeeds the time cannot be
// confirmed, so the time step does not continue.
func (s *Service) SelectDate(ctx context.Context, id string, user *User, date string) (*SlotsView, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	ref := s.now().In(s.cfg.Location)
	if !scheduling.IsBookableDate(sess.schedule, s.cfg.HorizonDays, ref, date) {
		step := sess.wizard.Step()
		sess.mu.Unlock()
		return nil, invalid(step, fmt.Sprintf("%s is not a bookable date", date))
	}
	if err := sess.wizard.SelectDate(date); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sess.mu.Unlock()

	return s.loadSlots(ctx, sess, date)
}

// Slots returns the slots for the selected date, fetching busy ranges if
// they are not loaded yet.
func (s *Service) Slots(ctx context.Context, id string, user *User) (*SlotsView, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	date := sess.wizard.Selection().Date
	if date == "" {
		step := sess.wizard.Step()
		sess.mu.Unlock()
		return nil, invalid(step, "select a date first")
	}
	if sess.busyDate == date {
		defer sess.mu.Unlock()
		return s.slotsViewLocked(sess, false)
	}
	sess.mu.Unlock()

	return s.loadSlots(ctx, sess, date)
}

// loadSlots fetches busy ranges for date and applies them if date is still
// the selected one, clearing a selected time that is not available against
// them. Results for a superseded date are dropped.
func (s *Service) loadSlots(ctx context.Context, sess *Session, date string) (*SlotsView, error) {
	dayKey, err := scheduling.DayKey(date)
	if err != nil {
		return nil, invalid(StepDate, err.Error())
	}

	ctx, span := tracer.Start(ctx, "booking.BusyRanges")
	span.SetAttributes(attribute.String("booking.day_key", dayKey))
	busy, err := s.busy.BusyRanges(ctx, s.cfg.OrganizationID, dayKey)
	if err != nil {
		span.RecordError(err)
	}
	span.End()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Str("day_key", dayKey).Msg("busy range fetch failed")
		return nil, upstream("load busy ranges", err)
	}
	if sess.wizard.Selection().Date != date {
		s.logger.Debug().
			Str("session_id", sess.ID).
			Str("requested", date).
			Str("current", sess.wizard.Selection().Date).
			Msg("discarding busy ranges for superseded date")
		return s.slotsViewLocked(sess, false)
	}

	sess.busyDate = date
	sess.busy = busy
	return s.slotsViewLocked(sess, true)
}

// slotsViewLocked computes slots for the selected date. When reconcile is
// set, a selected time that is not available is cleared.
func (s *Service) slotsViewLocked(sess *Session, reconcile bool) (*SlotsView, error) {
	date := sess.wizard.Selection().Date
	loaded := sess.busyDate == date
	var busy []scheduling.BusyRange
	if loaded {
		busy = sess.busy
	}
	slots, err := s.calc.Slots(sess.schedule, date, busy)
	if err != nil {
		return nil, invalid(sess.wizard.Step(), err.Error())
	}

	cleared := false
	if reconcile && loaded {
		cleared = sess.wizard.ReconcileTime(func(t string) bool {
			return scheduling.IsAvailable(slots, t)
		})
	}
	return &SlotsView{
		Date:        date,
		Slots:       slots,
		Available:   scheduling.CountAvailable(slots),
		BusyLoaded:  loaded,
		TimeCleared: cleared,
		Session:     s.viewLocked(sess),
	}, nil
}

// SelectTime records a start time. The time must be available on the
// selected date once busy ranges are loaded.
func (s *Service) SelectTime(_ context.Context, id string, user *User, t string) (*SessionView, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	date := sess.wizard.Selection().Date
	if date == "" || sess.busyDate != date {
		return nil, invalid(sess.wizard.Step(), "availability for the selected date is not loaded")
	}
	slots, err := s.calc.Slots(sess.schedule, date, sess.busy)
	if err != nil {
		return nil, invalid(sess.wizard.Step(), err.Error())
	}
	if !scheduling.IsAvailable(slots, t) {
		return nil, invalid(sess.wizard.Step(), fmt.Sprintf("%s is not available", t))
	}
	if err := sess.wizard.SelectTime(t); err != nil {
		return nil, err
	}
	v := s.viewLocked(sess)
	return &v, nil
}

// -- Type and motive --

// Types returns the appointment types patients may book with the doctor.
func (s *Service) Types(ctx context.Context, id string, user *User) ([]scheduling.AppointmentType, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	sess.mu.Unlock()

	types, err := s.loadTypes(ctx, sess)
	if err != nil {
		return nil, err
	}
	return scheduling.VisibleTypes(types), nil
}

func (s *Service) loadTypes(ctx context.Context, sess *Session) ([]scheduling.AppointmentType, error) {
	sess.mu.Lock()
	cached := sess.types
	sess.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	types, err := s.types.AppointmentTypes(ctx, s.cfg.OrganizationID, sess.DoctorID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("appointment type fetch failed")
		return nil, upstream("load appointment types", err)
	}
	if types == nil {
		types = []scheduling.AppointmentType{}
	}

	sess.mu.Lock()
	sess.types = types
	sess.mu.Unlock()
	return types, nil
}

// SelectType records one of the visible appointment types.
func (s *Service) SelectType(ctx context.Context, id string, user *User, typeID string) (*SessionView, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	sess.mu.Unlock()

	types, err := s.loadTypes(ctx, sess)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, ok := scheduling.FindType(scheduling.VisibleTypes(types), typeID); !ok {
		return nil, invalid(sess.wizard.Step(), ErrUnknownType.Error())
	}
	if err := sess.wizard.SelectType(typeID); err != nil {
		return nil, err
	}
	v := s.viewLocked(sess)
	return &v, nil
}

// SetMotive records the reason for the visit.
func (s *Service) SetMotive(_ context.Context, id string, user *User, motive string) (*SessionView, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	if utf8.RuneCountInString(motive) > s.cfg.MaxMotiveLength {
		return nil, invalid(sess.wizard.Step(), fmt.Sprintf("motive must be at most %d characters", s.cfg.MaxMotiveLength))
	}
	if err := sess.wizard.SetMotive(motive); err != nil {
		return nil, err
	}
	v := s.viewLocked(sess)
	return &v, nil
}

// -- Summary and submission --

// Summary projects the complete selection for review.
func (s *Service) Summary(_ context.Context, id string, user *User) (*Summary, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return s.summaryLocked(sess)
}

func (s *Service) summaryLocked(sess *Session) (*Summary, error) {
	sel := sess.wizard.Selection()
	if !sel.Complete() {
		return nil, invalid(sess.wizard.Step(), "selection is incomplete")
	}
	apptType, ok := scheduling.FindType(sess.types, sel.TypeID)
	if !ok {
		return nil, invalid(sess.wizard.Step(), ErrUnknownType.Error())
	}
	start, err := scheduling.SlotStart(sel.Date, sel.Time, s.cfg.Location)
	if err != nil {
		return nil, invalid(sess.wizard.Step(), err.Error())
	}
	end := start.Add(time.Duration(apptType.DurationMinutes) * time.Minute)
	return &Summary{
		DoctorID:  sess.DoctorID,
		Date:      sel.Date,
		DayOfWeek: scheduling.DayName(start.Weekday()),
		StartTime: sel.Time,
		EndTime:   end.Format(scheduling.ClockLayout),
		Type:      apptType,
		Motive:    sel.Motive,
	}, nil
}

// Submit creates the appointment from the summary step. On failure the
// session stays on the summary with the selection intact, and a retry
// reuses the payload built for the first attempt.
func (s *Service) Submit(ctx context.Context, id string, user *User) (*SessionView, error) {
	sess, err := s.lockMutable(id, user)
	if err != nil {
		return nil, err
	}
	if sess.wizard.Step() != StepSummary {
		step := sess.wizard.Step()
		sess.mu.Unlock()
		return nil, invalid(step, "review the summary before submitting")
	}
	if err := s.checkTimeLocked(sess); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sel := sess.wizard.Selection()
	apptType, ok := scheduling.FindType(sess.types, sel.TypeID)
	if !ok {
		sess.mu.Unlock()
		return nil, invalid(StepSummary, ErrUnknownType.Error())
	}
	var payload *AppointmentPayload
	if sess.payload != nil && sess.payloadSel == sel {
		payload = sess.payload
	}
	owner := *sess.owner
	doctorID := sess.DoctorID
	sess.submitting = true
	sess.mu.Unlock()

	if payload == nil {
		p, err := s.coordinator.Prepare(ctx, sel, doctorID, apptType, owner)
		if err != nil {
			sess.mu.Lock()
			sess.submitting = false
			sess.mu.Unlock()
			s.events.RecordBookingEvent("submit", submitOutcome(err))
			return nil, err
		}
		payload = &p
	}

	appointmentID, err := s.coordinator.Send(ctx, *payload)
	s.events.RecordBookingEvent("submit", submitOutcome(err))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.submitting = false
	if err != nil {
		sess.payload = payload
		sess.payloadSel = sel
		return nil, err
	}
	if err := sess.wizard.Complete(); err != nil {
		return nil, err
	}
	sess.appointmentID = appointmentID
	sess.payload = nil
	sess.busyDate = ""
	sess.busy = nil
	v := s.viewLocked(sess)
	return &v, nil
}

// -- helpers --

func submitOutcome(err error) string {
	var se *SubmissionError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPatientNotFound):
		return "patient_not_found"
	case errors.As(err, &se) && se.Rejected:
		return "rejected"
	default:
		return "failed"
	}
}

// checkTimeLocked verifies the selected time against the busy ranges loaded
// for the selected date. A time carried over from another date, or one whose
// date has not been loaded yet, does not pass.
func (s *Service) checkTimeLocked(sess *Session) error {
	sel := sess.wizard.Selection()
	step := sess.wizard.Step()
	if sel.Time == "" {
		return invalid(step, "select a time")
	}
	if sess.busyDate != sel.Date {
		return invalid(step, "availability for the selected date is not loaded")
	}
	slots, err := s.calc.Slots(sess.schedule, sel.Date, sess.busy)
	if err != nil {
		return invalid(step, err.Error())
	}
	if !scheduling.IsAvailable(slots, sel.Time) {
		return invalid(step, fmt.Sprintf("%s is not available on %s", sel.Time, sel.Date))
	}
	return nil
}

// lock fetches the session, checks the caller may use it and returns it
// locked. When needOwner is set the session must be bound to a user.
func (s *Service) lock(id string, user *User, needOwner bool) (*Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	switch {
	case sess.owner == nil && needOwner:
		err = ErrNotAuthenticated
	case sess.owner != nil && user == nil:
		err = ErrNotAuthenticated
	case sess.owner != nil && user.ID != sess.owner.ID:
		err = ErrWrongUser
	}
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	return sess, nil
}

// lockMutable is lock for operations that change or depend on the
// selection. They are refused while a submission is in flight.
func (s *Service) lockMutable(id string, user *User) (*Session, error) {
	sess, err := s.lock(id, user, true)
	if err != nil {
		return nil, err
	}
	if sess.submitting {
		sess.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	return sess, nil
}

func (s *Service) viewLocked(sess *Session) SessionView {
	canContinue := sess.wizard.CanContinue()
	if canContinue && sess.wizard.Step() == StepTime {
		canContinue = s.checkTimeLocked(sess) == nil
	}
	return SessionView{
		ID:            sess.ID,
		DoctorID:      sess.DoctorID,
		Step:          sess.wizard.Step(),
		Selection:     sess.wizard.Selection(),
		CanContinue:   canContinue,
		Authenticated: sess.owner != nil,
		Submitting:    sess.submitting,
		AppointmentID: sess.appointmentID,
	}
}
