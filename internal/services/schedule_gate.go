package services

import (
	"context"
	"time"

	"erp-sync-service/internal/models"
	"github.com/google/uuid"
)

// SchedulingGate decides whether a periodic job is due and advances the
// last-run watermark in the same step. A job with no prior run is always due.
// The watermark moves only when the gate answers yes, so a crashed run makes
// the next evaluation fire again after the interval rather than skipping.
type SchedulingGate struct {
	schedules ScheduleStore
	now       func() time.Time
}

// NewSchedulingGate creates a gate. now is injectable for tests; nil means
// time.Now.
func NewSchedulingGate(schedules ScheduleStore, now func() time.Time) *SchedulingGate {
	if now == nil {
		now = time.Now
	}
	return &SchedulingGate{schedules: schedules, now: now}
}

// ShouldRun reports whether the job is due. When it is, the last-run
// watermark is advanced to the current time before returning, so concurrent
// evaluations within the same interval answer no.
func (g *SchedulingGate) ShouldRun(ctx context.Context, integrationID uuid.UUID, jobKey string, interval time.Duration) (bool, error) {
	if interval <= 0 {
		return false, nil
	}

	schedule, err := g.schedules.GetOrCreate(ctx, integrationID, jobKey)
	if err != nil {
		return false, err
	}

	now := g.now()
	if schedule.LastRunAt != nil && now.Sub(*schedule.LastRunAt) < interval {
		return false, nil
	}

	if err := g.schedules.Advance(ctx, schedule.ID, now); err != nil {
		return false, err
	}
	return true, nil
}

// IntervalFor returns the configured interval for a job key on an
// integration.
func IntervalFor(integration *models.IntegrationConnection, jobKey string) time.Duration {
	switch jobKey {
	case models.JobSyncNewOrders:
		return time.Duration(integration.OrderSyncIntervalMinutes) * time.Minute
	case models.JobUpdateInventory:
		return time.Duration(integration.InventorySyncIntervalMinutes) * time.Minute
	case models.JobUpdateOrderStatus:
		return time.Duration(integration.StatusSyncIntervalMinutes) * time.Minute
	default:
		return 0
	}
}
