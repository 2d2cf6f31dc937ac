package services

import (
	"github.com/robfig/cron/v3"

	"github.com/opsweep/opsweep/internal/pkg/logger"
)

// Scheduler runs decommission sweeps on a cron schedule, used by the
// long-running schedule command.
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: log,
	}
}

// Add registers a job under a cron expression.
func (s *Scheduler) Add(spec string, job func()) error {
	_, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return err
	}
	s.logger.Infof("scheduled sweep with cron expression %q", spec)
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
