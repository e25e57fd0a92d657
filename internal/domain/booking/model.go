package booking

import "strings"

// Step is a position in the booking wizard.
type Step string

const (
	StepAuthCheck Step = "auth-check"
	StepDate      Step = "date"
	StepTime      Step = "time"
	StepType      Step = "type"
	StepMotive    Step = "motive"
	StepSummary   Step = "summary"
	StepSuccess   Step = "success"
)

// StatusPending is the status every self-booked appointment is created with.
const StatusPending = "pendiente"

// User is the authenticated patient account driving a booking.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Selection holds the patient's choices so far.
type Selection struct {
	Date   string `json:"date,omitempty"`
	Time   string `json:"time,omitempty"`
	TypeID string `json:"type_id,omitempty"`
	Motive string `json:"motive,omitempty"`
}

// Complete reports whether every field needed to submit is present.
func (s Selection) Complete() bool {
	return s.Date != "" && s.Time != "" && s.TypeID != "" && strings.TrimSpace(s.Motive) != ""
}

// AppointmentPayload is the request sent to the platform to create an
// appointment. ScheduledStart and ScheduledEnd are wall-clock times in the
// organization's timezone. UserID is the doctor's account on the platform,
// which is how appointments are attributed to a practitioner.
type AppointmentPayload struct {
	DayKey         string `json:"dayKey"`
	ScheduledStart string `json:"scheduledStart"`
	ScheduledEnd   string `json:"scheduledEnd"`
	PatientID      string `json:"patientId"`
	UserID         string `json:"userId"`
	TypeID         string `json:"typeId"`
	TypeName       string `json:"typeName"`
	Motive         string `json:"motive"`
	LocationID     string `json:"locationId,omitempty"`
	Status         string `json:"status"`
}

// CreateResult is the platform's answer to an appointment creation.
type CreateResult struct {
	Success       bool
	AppointmentID string
	Message       string
}
