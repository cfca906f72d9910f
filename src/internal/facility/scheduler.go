package facility

import (
	"fmt"
	"time"

	"logsmith/src/internal/config"

	"github.com/go-co-op/gocron/v2"
	"github.com/lixenwraith/log"
)

// schedulerLogger routes gocron's own logging into the diagnostic logger
type schedulerLogger struct {
	logger *log.Logger
}

func (l schedulerLogger) args(msg string, args []any) []any {
	return append([]any{"msg", msg, "component", "scheduler"}, args...)
}

func (l schedulerLogger) Debug(msg string, args ...any) { l.logger.Debug(l.args(msg, args)...) }
func (l schedulerLogger) Info(msg string, args ...any)  { l.logger.Info(l.args(msg, args)...) }
func (l schedulerLogger) Warn(msg string, args ...any)  { l.logger.Warn(l.args(msg, args)...) }
func (l schedulerLogger) Error(msg string, args ...any) { l.logger.Error(l.args(msg, args)...) }

func (f *Facility) startScheduler(cfg *config.Config) error {
	s, err := gocron.NewScheduler(gocron.WithLogger(schedulerLogger{logger: f.logger}))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	f.scheduler = s
	if err := f.reschedule(nil, cfg); err != nil {
		s.Shutdown()
		return err
	}
	s.Start()
	return nil
}

// reschedule replaces the periodic flush job when the interval changed
// from prev. An interval of zero removes it.
func (f *Facility) reschedule(prev, cfg *config.Config) error {
	interval := time.Duration(cfg.Logging.FlushIntervalMS) * time.Millisecond

	if f.flushJob != nil {
		if prev != nil && prev.Logging.FlushIntervalMS == cfg.Logging.FlushIntervalMS {
			return nil
		}
		if err := f.scheduler.RemoveJob(f.flushJob.ID()); err != nil {
			return fmt.Errorf("failed to remove flush job: %w", err)
		}
		f.flushJob = nil
	}
	if interval <= 0 {
		return nil
	}

	job, err := f.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(f.scheduledFlush),
		gocron.WithName("flush"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule flush every %v: %w", interval, err)
	}
	f.flushJob = job
	f.logger.Debug("msg", "Flush scheduled",
		"component", "facility",
		"interval", interval)
	return nil
}

func (f *Facility) scheduledFlush() {
	if err := f.Flush(); err != nil {
		f.diag.Report("facility", fmt.Errorf("scheduled flush: %w", err))
	}
}
