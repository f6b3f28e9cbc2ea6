package services

import (
	"context"

	"github.com/robfig/cron/v3"

	"opal-bid-monitor/pkg/logger"
)

// CronSweepScheduler runs the expiry sweep on a cron schedule. Overlapping
// runs are skipped.
type CronSweepScheduler struct {
	cron      *cron.Cron
	schedule  string
	lifecycle *AuctionLifecycle
	log       logger.Logger
}

func NewCronSweepScheduler(schedule string, lifecycle *AuctionLifecycle, log logger.Logger) *CronSweepScheduler {
	return &CronSweepScheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		schedule:  schedule,
		lifecycle: lifecycle,
		log:       log,
	}
}

func (s *CronSweepScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting expiry sweep scheduler", "schedule", s.schedule)

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *CronSweepScheduler) Stop() error {
	s.log.Info("Stopping expiry sweep scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *CronSweepScheduler) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ended, err := s.lifecycle.SweepExpired(ctx)
	if err != nil {
		s.log.Error("Expiry sweep failed", "error", err)
		return
	}
	if len(ended) > 0 {
		s.log.Info("Expiry sweep ended auctions", "count", len(ended))
	}
}
