// Package jobs runs periodic maintenance for the API process.
package jobs

import (
	"context"
	"time"

	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const DefaultSweepSchedule = "@every 15m"

// TokenSweeper deletes expired password reset tokens.
type TokenSweeper interface {
	SweepExpiredTokens(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron    *cron.Cron
	log     logrus.FieldLogger
	timeout time.Duration
}

func NewScheduler(log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		log:     log,
		timeout: time.Minute,
	}
}

// AddTokenSweep registers sweeper on schedule, a standard five-field cron
// expression or an @every/@hourly descriptor.
func (s *Scheduler) AddTokenSweep(schedule string, sweeper TokenSweeper) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	_, err := s.cron.AddFunc(schedule, func() { s.runSweep(sweeper) })
	return err
}

func (s *Scheduler) runSweep(sweeper TokenSweeper) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := sweeper.SweepExpiredTokens(ctx)
	if err != nil {
		s.log.WithError(err).Error("scheduled reset token sweep failed")
		return
	}
	s.log.WithField("deleted", n).Debug("scheduled reset token sweep finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
