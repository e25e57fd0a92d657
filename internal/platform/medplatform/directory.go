package medplatform

import (
	"context"
	"strings"
)

// Doctor is a practitioner patients can book with.
type Doctor struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Specialty string `json:"specialty"`
	Email     string `json:"email,omitempty"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	Active    *bool  `json:"active,omitempty"`
}

func (d Doctor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// IsActive treats a missing flag as active.
func (d Doctor) IsActive() bool {
	return d.Active == nil || *d.Active
}

// Location is a site where appointments take place.
type Location struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Active  *bool  `json:"active,omitempty"`
}

func (c *Client) Doctors(ctx context.Context, orgID string) ([]Doctor, error) {
	var doctors []Doctor
	if err := c.do(ctx, "GET", orgPath(orgID, "doctors"), nil, nil, &doctors); err != nil {
		return nil, err
	}
	return doctors, nil
}

func (c *Client) Locations(ctx context.Context, orgID string) ([]Location, error) {
	var locations []Location
	if err := c.do(ctx, "GET", orgPath(orgID, "locations"), nil, nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// DefaultLocationID returns the first active location, or "" when the
// organization has none.
func (c *Client) DefaultLocationID(ctx context.Context, orgID string) (string, error) {
	locations, err := c.Locations(ctx, orgID)
	if err != nil {
		return "", err
	}
	for _, l := range locations {
		if l.Active == nil || *l.Active {
			return l.ID, nil
		}
	}
	return "", nil
}
