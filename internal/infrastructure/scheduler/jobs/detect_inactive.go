// Package jobs contains the scheduled jobs of the learner hub.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/logger"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DETECT INACTIVE JOB
// ══════════════════════════════════════════════════════════════════════════════

// DetectInactiveJob finds trial learners who have not completed a lesson for
// a while and publishes a LearnerInactiveEvent for each of them. Reminder
// delivery is left to subscribers of that event.
type DetectInactiveJob struct {
	learners   learner.Repository
	attendance progress.AttendanceRepository
	publisher  shared.EventPublisher
	calendar   timeutil.Calendar
	clock      timeutil.Clock
	log        *logger.Logger

	config DetectInactiveConfig

	lastRunStats atomic.Pointer[DetectInactiveStats]
}

// DetectInactiveConfig contains configuration for the detect inactive job.
type DetectInactiveConfig struct {
	// InactiveAfterDays is the number of days without a completed lesson
	// after which a learner counts as inactive.
	InactiveAfterDays int

	// PageSize is how many learners are loaded per query.
	PageSize int
}

// DefaultDetectInactiveConfig returns sensible defaults.
func DefaultDetectInactiveConfig() DetectInactiveConfig {
	return DetectInactiveConfig{
		InactiveAfterDays: 3,
		PageSize:          200,
	}
}

// DetectInactiveStats contains statistics from a detection run.
type DetectInactiveStats struct {
	StartedAt       time.Time
	CompletedAt     time.Time
	Duration        time.Duration
	LearnersChecked int
	InactiveFound   int
	TrialsEnded     int
	Errors          int
}

// NewDetectInactiveJob creates a new detect inactive job.
func NewDetectInactiveJob(
	learners learner.Repository,
	attendance progress.AttendanceRepository,
	publisher shared.EventPublisher,
	calendar timeutil.Calendar,
	clock timeutil.Clock,
	log *logger.Logger,
	config DetectInactiveConfig,
) *DetectInactiveJob {
	if log == nil {
		log = logger.Nop()
	}
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if config.InactiveAfterDays <= 0 {
		config.InactiveAfterDays = DefaultDetectInactiveConfig().InactiveAfterDays
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultDetectInactiveConfig().PageSize
	}

	return &DetectInactiveJob{
		learners:   learners,
		attendance: attendance,
		publisher:  publisher,
		calendar:   calendar,
		clock:      clock,
		log:        log.With(logger.Component("detect_inactive")),
		config:     config,
	}
}

// Name returns the job name.
func (j *DetectInactiveJob) Name() string {
	return "detect_inactive_learners"
}

// Description returns a human-readable description.
func (j *DetectInactiveJob) Description() string {
	return "Publishes learner.inactive for trial learners without recent lessons"
}

// Run executes the detection job.
func (j *DetectInactiveJob) Run(ctx context.Context) error {
	stats := &DetectInactiveStats{StartedAt: time.Now()}
	today := j.calendar.Today(j.clock)

	opts := learner.ListOptions{Limit: j.config.PageSize}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := j.learners.ListInTrial(ctx, opts)
		if err != nil {
			return fmt.Errorf("failed to list trial learners: %w", err)
		}

		for _, p := range page {
			stats.LearnersChecked++
			if err := j.check(ctx, p, today, stats); err != nil {
				stats.Errors++
				j.log.Warn("inactivity check failed", logger.LearnerID(p.ID), logger.Err(err))
			}
		}

		if len(page) < opts.Limit {
			break
		}
		opts.Offset += opts.Limit
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastRunStats.Store(stats)

	j.log.Info("inactivity scan finished",
		logger.Int("checked", stats.LearnersChecked),
		logger.Int("inactive", stats.InactiveFound),
		logger.Int("trials_ended", stats.TrialsEnded),
		logger.Int("errors", stats.Errors),
	)

	if stats.Errors > 0 && stats.Errors == stats.LearnersChecked {
		return errors.New("every inactivity check failed")
	}
	return nil
}

func (j *DetectInactiveJob) check(ctx context.Context, p *learner.Profile, today time.Time, stats *DetectInactiveStats) error {
	// Learners whose 90 days are over wait for an enrollment decision,
	// not for a reminder.
	if timeutil.DaysBetween(p.TrialStartDate, today) >= progress.TrialLengthDays {
		stats.TrialsEnded++
		return nil
	}

	last, err := j.attendance.LastCompletedDate(ctx, p.ID)
	if err != nil {
		return err
	}

	days := InactiveDays(p.TrialStartDate, last, today)
	if days < j.config.InactiveAfterDays {
		return nil
	}

	stats.InactiveFound++
	return j.publisher.Publish(shared.NewLearnerInactiveEvent(p.ID, last, days))
}

// LastRunStats returns statistics of the latest completed run, or nil.
func (j *DetectInactiveJob) LastRunStats() *DetectInactiveStats {
	return j.lastRunStats.Load()
}

// InactiveDays counts the days since the last completed lesson. A learner who
// never completed one is counted from the day before the trial started, so a
// fresh sign-up is one day inactive on its first day.
func InactiveDays(trialStart time.Time, lastCompleted *time.Time, today time.Time) int {
	if lastCompleted == nil {
		return timeutil.DaysBetween(timeutil.AddDays(trialStart, -1), today)
	}
	return max(timeutil.DaysBetween(*lastCompleted, today), 0)
}
