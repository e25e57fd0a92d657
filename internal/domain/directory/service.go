// Package directory lets patients browse the organization's doctors and
// the appointment types each one offers before starting a booking.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/doctoc/doctoc/internal/domain/scheduling"
)

var (
	ErrNotFound = errors.New("doctor not found")
	ErrUpstream = errors.New("doctor directory is unavailable")
)

// Doctor is the public profile of a bookable practitioner.
type Doctor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// DoctorSource lists the organization's active doctors.
type DoctorSource interface {
	Doctors(ctx context.Context, orgID string) ([]Doctor, error)
}

// TypeSource lists a doctor's appointment types.
type TypeSource interface {
	AppointmentTypes(ctx context.Context, orgID, doctorID string) ([]scheduling.AppointmentType, error)
}

// Filter narrows a doctor listing. Matching is case-insensitive substring.
type Filter struct {
	Query     string
	Specialty string
}

func (f Filter) matches(d Doctor) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(d.Name), q) && !strings.Contains(strings.ToLower(d.Specialty), q) {
			return false
		}
	}
	if s := strings.ToLower(strings.TrimSpace(f.Specialty)); s != "" {
		if !strings.Contains(strings.ToLower(d.Specialty), s) {
			return false
		}
	}
	return true
}

type Service struct {
	orgID   string
	doctors DoctorSource
	types   TypeSource
	logger  zerolog.Logger
}

func NewService(orgID string, doctors DoctorSource, types TypeSource, logger zerolog.Logger) *Service {
	return &Service{orgID: orgID, doctors: doctors, types: types, logger: logger}
}

// Search returns the doctors matching f sorted by name.
func (s *Service) Search(ctx context.Context, f Filter) ([]Doctor, error) {
	all, err := s.doctors.Doctors(ctx, s.orgID)
	if err != nil {
		s.logger.Error().Err(err).Msg("list doctors failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	out := make([]Doctor, 0, len(all))
	for _, d := range all {
		if f.matches(d) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Doctor, error) {
	all, err := s.doctors.Doctors(ctx, s.orgID)
	if err != nil {
		s.logger.Error().Err(err).Str("doctor_id", id).Msg("list doctors failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, ErrNotFound
}

// Types returns the types patients may book with the doctor.
func (s *Service) Types(ctx context.Context, doctorID string) ([]scheduling.AppointmentType, error) {
	if _, err := s.Get(ctx, doctorID); err != nil {
		return nil, err
	}
	types, err := s.types.AppointmentTypes(ctx, s.orgID, doctorID)
	if err != nil {
		s.logger.Error().Err(err).Str("doctor_id", doctorID).Msg("list appointment types failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return scheduling.VisibleTypes(types), nil
}
