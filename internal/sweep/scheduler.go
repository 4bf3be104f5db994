package sweep

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"keycards/lib/sl"
)

// Runnable is a named job the scheduler can drive. Tests trigger Run
// directly instead of waiting for a tick.
type Runnable interface {
	Name() string
	Run() error
}

// Scheduler wraps cron and adds timing and error logging around every
// registered job.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  logger.With(sl.Module("scheduler")),
	}
}

func (s *Scheduler) Register(spec string, job Runnable) error {
	log := s.log.With(slog.String("job", job.Name()), slog.String("schedule", spec))
	_, err := s.cron.AddFunc(spec, func() {
		t1 := time.Now()
		log.Debug("job started")
		if err := job.Run(); err != nil {
			log.Error("job failed", sl.Err(err))
		}
		log.Debug("job finished", slog.Float64("duration", time.Since(t1).Seconds()))
	})
	if err != nil {
		return err
	}
	log.Info("job registered")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}
