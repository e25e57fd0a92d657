package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/doctoc/doctoc/internal/domain/scheduling"
)

const DefaultScheduleTTL = 5 * time.Minute

// ScheduleSource loads a doctor's weekly schedule from the system of record.
type ScheduleSource interface {
	WeeklySchedule(ctx context.Context, orgID, doctorID string) (scheduling.WeeklySchedule, error)
}

// ScheduleCache is a read-through cache in front of a ScheduleSource.
// Backend failures are logged and the source is called directly, so a
// cache outage never blocks booking. Busy ranges are never cached.
type ScheduleCache struct {
	store  Store
	next   ScheduleSource
	ttl    time.Duration
	logger zerolog.Logger
}

func NewScheduleCache(store Store, next ScheduleSource, ttl time.Duration, logger zerolog.Logger) *ScheduleCache {
	if ttl <= 0 {
		ttl = DefaultScheduleTTL
	}
	return &ScheduleCache{store: store, next: next, ttl: ttl, logger: logger}
}

func scheduleKey(orgID, doctorID string) string {
	return "doctoc:schedule:" + orgID + ":" + doctorID
}

func (c *ScheduleCache) WeeklySchedule(ctx context.Context, orgID, doctorID string) (scheduling.WeeklySchedule, error) {
	key := scheduleKey(orgID, doctorID)

	raw, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache read failed")
	case ok:
		var sched scheduling.WeeklySchedule
		if err := json.Unmarshal(raw, &sched); err == nil {
			return sched, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable cached schedule")
	}

	sched, err := c.next.WeeklySchedule(ctx, orgID, doctorID)
	if err != nil {
		return nil, err
	}

	if buf, err := json.Marshal(sched); err == nil {
		if err := c.store.Set(ctx, key, buf, c.ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache write failed")
		}
	}
	return sched, nil
}

// Invalidate forgets the cached schedule for a doctor.
func (c *ScheduleCache) Invalidate(ctx context.Context, orgID, doctorID string) error {
	return c.store.Delete(ctx, scheduleKey(orgID, doctorID))
}
