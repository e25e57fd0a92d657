package medplatform

import (
	"context"
	"errors"
	"net/url"

	"github.com/doctoc/doctoc/internal/domain/scheduling"
)

// AppointmentRequest is the body of a creation request.
type AppointmentRequest struct {
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

type createdAppointment struct {
	ID string `json:"id"`
}

// CreateAppointment books an appointment and returns its id. A refusal by
// the platform is returned as *RejectedError.
func (c *Client) CreateAppointment(ctx context.Context, orgID string, req AppointmentRequest) (string, error) {
	var out createdAppointment
	if err := c.do(ctx, "POST", orgPath(orgID, "quotes"), nil, req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &RejectedError{Message: "platform returned no appointment id"}
	}
	return out.ID, nil
}

// wireAppointmentType is the platform's representation of a type.
type wireAppointmentType struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Duration           int     `json:"duration"`
	Price              float64 `json:"price"`
	ExternalVisibility bool    `json:"externalVisibility"`
}

// AppointmentTypes lists the appointment types configured for a doctor.
func (c *Client) AppointmentTypes(ctx context.Context, orgID, doctorID string) ([]scheduling.AppointmentType, error) {
	var wire []wireAppointmentType
	q := url.Values{}
	if doctorID != "" {
		q.Set("userId", doctorID)
	}
	err := c.do(ctx, "GET", orgPath(orgID, "appointment-types"), q, nil, &wire)
	if errors.Is(err, ErrNotFound) {
		return []scheduling.AppointmentType{}, nil
	}
	if err != nil {
		return nil, err
	}
	types := make([]scheduling.AppointmentType, 0, len(wire))
	for _, w := range wire {
		types = append(types, scheduling.AppointmentType{
			ID:                 w.ID,
			Name:               w.Name,
			Description:        w.Description,
			DurationMinutes:    w.Duration,
			Price:              w.Price,
			ExternalVisibility: w.ExternalVisibility,
		})
	}
	return types, nil
}
