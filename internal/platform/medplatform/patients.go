package medplatform

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Patient is a patient record in the organization.
type Patient struct {
	ID        string `json:"id"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

// FullName joins first and last name.
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// PatientQuery identifies the account a patient record is looked up for.
type PatientQuery struct {
	UserID string
	Email  string
	Name   string
}

// Patients lists patients, optionally filtered by the given query values.
func (c *Client) Patients(ctx context.Context, orgID string, filter url.Values) ([]Patient, error) {
	var patients []Patient
	if err := c.do(ctx, "GET", orgPath(orgID, "patients"), filter, nil, &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

// ResolvePatientID finds the patient record for an account. It tries an
// email search, then a name search, then scans the full list, and returns
// ErrNotFound when nothing matches.
func (c *Client) ResolvePatientID(ctx context.Context, orgID string, q PatientQuery) (string, error) {
	match := func(list []Patient) (string, bool) {
		for _, p := range list {
			if p.ID == "" {
				continue
			}
			if q.UserID != "" && p.UserID == q.UserID {
				return p.ID, true
			}
			if q.Email != "" && strings.EqualFold(strings.TrimSpace(p.Email), strings.TrimSpace(q.Email)) {
				return p.ID, true
			}
			if q.Name != "" && strings.EqualFold(p.FullName(), strings.TrimSpace(q.Name)) {
				return p.ID, true
			}
		}
		return "", false
	}

	searches := []url.Values{}
	if q.Email != "" {
		searches = append(searches, url.Values{"email": {q.Email}})
	}
	if q.Name != "" {
		searches = append(searches, url.Values{"name": {q.Name}})
	}
	searches = append(searches, nil)

	for _, filter := range searches {
		list, err := c.Patients(ctx, orgID, filter)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if id, ok := match(list); ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: patient for user %q", ErrNotFound, q.UserID)
}
