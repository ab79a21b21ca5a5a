// Package scheduler runs periodic lean reconciliation on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nackswinget/calsync/internal/application/sync"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/pkg/errors"
)

// Updater is the run trigger, satisfied by the sync runner.
type Updater interface {
	Run(ctx context.Context, orgID string, lean bool) (*sync.Report, error)
}

// runTimeout bounds one scheduled run; a wedged portal must not stall the
// next cycle forever.
const runTimeout = 15 * time.Minute

// Scheduler fires lean runs on a cron expression.
type Scheduler struct {
	cron    *cron.Cron
	updater Updater
	orgID   string
	logger  logging.Logger
}

// New builds a Scheduler firing lean runs for orgID per spec, a standard
// five-field cron expression.
func New(spec, orgID string, updater Updater, log logging.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		updater: updater,
		orgID:   orgID,
		logger:  log.Named("scheduler"),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid sync schedule").WithDetail(spec)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	report, err := s.updater.Run(ctx, s.orgID, true)
	if err != nil {
		// A dead session is routine after portal restarts; the operator (or
		// an external cron) resolves it with a full update.
		s.logger.Error("scheduled run failed", logging.Err(err))
		return
	}
	failed := report.Failed()
	s.logger.Info("scheduled run finished",
		logging.Int("calendars", len(report.Calendars)),
		logging.Int("failed", len(failed)))
}

// Start begins firing scheduled runs.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.cron.Start()
}

// Stop waits for a running job to finish and stops the schedule.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
