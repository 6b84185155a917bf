package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// TriggerConfig holds configuration for the archive trigger
type TriggerConfig struct {
	// Cron is a five field expression evaluated in Location
	Cron     string
	Location *time.Location
	Reports  []string
	Format   string
}

// ArchiveTrigger submits archive jobs for the previous month each time the
// cron schedule fires
type ArchiveTrigger struct {
	config    TriggerConfig
	scheduler *Scheduler
	cron      gocron.Scheduler
	job       gocron.Job
	now       func() time.Time
	logger    *zap.Logger

	mu         sync.Mutex
	lastPeriod string
}

// NewArchiveTrigger creates a new archive trigger. The schedule is parsed
// here so a bad expression fails at startup.
func NewArchiveTrigger(config TriggerConfig, scheduler *Scheduler, logger *zap.Logger) (*ArchiveTrigger, error) {
	if config.Location == nil {
		config.Location = time.Local
	}
	t := &ArchiveTrigger{
		config:    config,
		scheduler: scheduler,
		now:       time.Now,
		logger:    logger,
	}

	cron, err := gocron.NewScheduler(gocron.WithLocation(config.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to create cron scheduler: %w", err)
	}
	job, err := cron.NewJob(
		gocron.CronJob(config.Cron, false),
		gocron.NewTask(t.fire),
		gocron.WithName("report-archive"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = cron.Shutdown()
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSchedule, config.Cron, err)
	}
	t.cron = cron
	t.job = job
	return t, nil
}

// Start starts the cron loop
func (t *ArchiveTrigger) Start() {
	t.cron.Start()
	next, _ := t.job.NextRun()
	t.logger.Info("Archive trigger started",
		zap.String("cron", t.config.Cron),
		zap.String("location", t.config.Location.String()),
		zap.Time("next_run", next),
	)
}

// Stop stops the cron loop
func (t *ArchiveTrigger) Stop() error {
	return t.cron.Shutdown()
}

// NextRun returns when the schedule fires next
func (t *ArchiveTrigger) NextRun() (time.Time, error) {
	return t.job.NextRun()
}

// TriggerMonth queues archive jobs for one month regardless of the schedule
func (t *ArchiveTrigger) TriggerMonth(year, month int) error {
	return t.scheduler.ScheduleMonth(t.config.Reports, year, month, t.config.Format)
}

// fire archives the month before now. A period is queued at most once per
// trigger unless scheduling it failed.
func (t *ArchiveTrigger) fire() {
	year, month := PreviousMonth(t.now().In(t.config.Location))
	period := fmt.Sprintf("%04d-%02d", year, month)

	t.mu.Lock()
	if t.lastPeriod == period {
		t.mu.Unlock()
		return
	}
	t.lastPeriod = period
	t.mu.Unlock()

	t.logger.Info("Triggering monthly report archive", zap.String("period", period))
	if err := t.TriggerMonth(year, month); err != nil {
		t.logger.Error("Failed to schedule monthly report archive", zap.String("period", period), zap.Error(err))
		t.mu.Lock()
		t.lastPeriod = ""
		t.mu.Unlock()
	}
}

// PreviousMonth returns the calendar month before t
func PreviousMonth(t time.Time) (year, month int) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, -1, 0)
	return first.Year(), int(first.Month())
}
