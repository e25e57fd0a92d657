package booking

import (
	"errors"
	"fmt"
)

// Common errors returned by the booking flow.
var (
	ErrValidation       = errors.New("validation failed")
	ErrPatientNotFound  = errors.New("patient not found")
	ErrSubmissionFailed = errors.New("appointment submission failed")
	ErrUpstream         = errors.New("medical platform unavailable")
	ErrSessionNotFound  = errors.New("booking session not found")
	ErrWrongUser        = errors.New("booking session belongs to another user")
	ErrNotAuthenticated = errors.New("authentication required")
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrUnknownType      = errors.New("unknown appointment type")
	ErrDoctorNotFound   = errors.New("doctor not found")
)

// ValidationError reports a step gate or field check that did not pass.
type ValidationError struct {
	Step   Step
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Step == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Step, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(step Step, reason string) error {
	return &ValidationError{Step: step, Reason: reason}
}

// SubmissionError is returned when an appointment could not be created.
// Kind is ErrPatientNotFound or ErrSubmissionFailed. Rejected is set when the
// platform answered but refused the appointment, as opposed to a transport
// failure. Reason is safe to show to the patient; Cause is for logs.
type SubmissionError struct {
	Kind     error
	Reason   string
	Rejected bool
	Cause    error
}

func (e *SubmissionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Kind.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Kind }
