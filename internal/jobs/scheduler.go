package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"sellhub/storage/internal/service"
)

// Scheduler owns the cron trigger for the lifecycle pass. The pass itself is
// a single idempotent entry point, so the trigger carries no policy.
type Scheduler struct {
	cron      *cron.Cron
	lifecycle *service.Lifecycle
	schedule  string
	log       zerolog.Logger
}

func NewScheduler(lifecycle *service.Lifecycle, schedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		lifecycle: lifecycle,
		schedule:  schedule,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runPass); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for a running trigger to finish, up to a short grace period.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) runPass() {
	stats, err := s.lifecycle.RunPass(context.Background())
	if err != nil {
		if errors.Is(err, service.ErrPassInProgress) {
			s.log.Warn().Msg("scheduled pass skipped, previous run still active")
			return
		}
		s.log.Error().Err(err).Msg("scheduled lifecycle pass failed")
		return
	}
	if stats.Failures > 0 {
		s.log.Warn().Int("failures", stats.Failures).Msg("lifecycle pass completed with failures")
	}
}
