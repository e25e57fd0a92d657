package medplatform

import (
	"context"
	"net/url"

	"github.com/doctoc/doctoc/internal/domain/scheduling"
)

// ScheduleOverride is a date-specific change to a doctor's hours. Overrides
// are decoded but not applied to slot generation.
type ScheduleOverride struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Available bool   `json:"available"`
}

// Calendar is a doctor's calendar as stored on the platform.
type Calendar struct {
	Fixed   scheduling.WeeklySchedule `json:"fixedSchedule"`
	Dynamic []ScheduleOverride        `json:"dynamicSchedule"`
}

// Calendar fetches the doctor's calendar.
func (c *Client) Calendar(ctx context.Context, orgID, doctorID string) (*Calendar, error) {
	var cal Calendar
	if err := c.do(ctx, "GET", orgPath(orgID, "calendars", doctorID), nil, nil, &cal); err != nil {
		return nil, err
	}
	if cal.Fixed == nil {
		cal.Fixed = scheduling.WeeklySchedule{}
	}
	return &cal, nil
}

// WeeklySchedule returns the doctor's recurring weekly hours.
func (c *Client) WeeklySchedule(ctx context.Context, orgID, doctorID string) (scheduling.WeeklySchedule, error) {
	cal, err := c.Calendar(ctx, orgID, doctorID)
	if err != nil {
		return nil, err
	}
	if len(cal.Dynamic) > 0 {
		c.logger.Debug().
			Str("doctor_id", doctorID).
			Int("overrides", len(cal.Dynamic)).
			Msg("calendar has date overrides, using fixed schedule only")
	}
	return cal.Fixed.Normalize(), nil
}

// BusyRanges returns every booked range in the organization for dayKey
// ("DD-MM-YYYY").
func (c *Client) BusyRanges(ctx context.Context, orgID, dayKey string) ([]scheduling.BusyRange, error) {
	var ranges []scheduling.BusyRange
	q := url.Values{"dayKey": {dayKey}}
	if err := c.do(ctx, "GET", orgPath(orgID, "calendars", "busy"), q, nil, &ranges); err != nil {
		return nil, err
	}
	if ranges == nil {
		ranges = []scheduling.BusyRange{}
	}
	return ranges, nil
}
