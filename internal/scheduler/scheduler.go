package scheduler

import (
	"context"
	"errors"
	"time"

	"erp-sync-service/internal/models"
	"erp-sync-service/internal/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scheduler is the low-frequency driver loop: every tick it walks the
// enabled integrations and runs whichever jobs the gate says are due. Jobs
// run sequentially within a tick; cross-process concurrency is handled by
// the gate's watermark and the storage-level constraints, not here.
type Scheduler struct {
	integrations services.IntegrationStore
	gate         *services.SchedulingGate
	sync         *services.SyncService
	logger       *zap.Logger
	tick         time.Duration
	stop         chan struct{}
	done         chan struct{}
}

// New creates a scheduler.
func New(integrations services.IntegrationStore, gate *services.SchedulingGate, sync *services.SyncService, logger *zap.Logger, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Scheduler{
		integrations: integrations,
		gate:         gate,
		sync:         sync,
		logger:       logger,
		tick:         tick,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start runs the loop until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.runDueJobs(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) runDueJobs(ctx context.Context) {
	integrations, err := s.integrations.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("failed to list integrations", zap.Error(err))
		return
	}

	jobs := []string{models.JobSyncNewOrders, models.JobUpdateInventory, models.JobUpdateOrderStatus}

	for i := range integrations {
		integration := &integrations[i]
		for _, jobKey := range jobs {
			due, err := s.gate.ShouldRun(ctx, integration.ID, jobKey, services.IntervalFor(integration, jobKey))
			if err != nil {
				s.logger.Error("gate evaluation failed",
					zap.String("integration", integration.ID.String()),
					zap.String("job", jobKey),
					zap.Error(err))
				continue
			}
			if !due {
				continue
			}
			s.dispatch(ctx, integration.ID, jobKey)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, integrationID uuid.UUID, jobKey string) {
	var err error
	switch jobKey {
	case models.JobSyncNewOrders:
		_, err = s.sync.SyncNewOrders(ctx, integrationID, models.TriggerScheduled)
	case models.JobUpdateInventory:
		_, err = s.sync.UpdateInventory(ctx, integrationID, models.TriggerScheduled)
	case models.JobUpdateOrderStatus:
		_, err = s.sync.UpdateOrderStatus(ctx, integrationID, models.TriggerScheduled)
	}

	if err != nil {
		// A tripped breaker is expected here; the integration stays off
		// until an operator re-enables it.
		if errors.Is(err, services.ErrSyncDisabled) {
			s.logger.Warn("sync disabled",
				zap.String("integration", integrationID.String()),
				zap.String("job", jobKey))
			return
		}
		s.logger.Error("scheduled job failed",
			zap.String("integration", integrationID.String()),
			zap.String("job", jobKey),
			zap.Error(err))
		return
	}

	s.logger.Info("scheduled job finished",
		zap.String("integration", integrationID.String()),
		zap.String("job", jobKey))
}
