package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/logger"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ATTENDANCE RECORDED HANDLER
// Compares achievements with and without the newly attended day and
// announces the ones that just became earned.
// ═══════════════════════════════════════════════════════════════════════════

// OnAttendanceRecordedHandler publishes milestone events.
type OnAttendanceRecordedHandler struct {
	learners   learner.Repository
	attendance progress.AttendanceRepository
	publisher  shared.EventPublisher
	log        *logger.Logger

	features FeatureGate
	flag     string
	timeout  time.Duration
}

// OnAttendanceRecordedConfig configures OnAttendanceRecordedHandler.
type OnAttendanceRecordedConfig struct {
	// Features and Flag gate milestone events per learner. A nil gate
	// leaves them always on.
	Features FeatureGate
	Flag     string
	Timeout  time.Duration
}

// NewOnAttendanceRecordedHandler creates a new OnAttendanceRecordedHandler.
func NewOnAttendanceRecordedHandler(
	learners learner.Repository,
	attendance progress.AttendanceRepository,
	publisher shared.EventPublisher,
	log *logger.Logger,
	cfg OnAttendanceRecordedConfig,
) *OnAttendanceRecordedHandler {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &OnAttendanceRecordedHandler{
		learners:   learners,
		attendance: attendance,
		publisher:  publisher,
		log:        log.With(logger.Component("on_attendance_recorded")),
		features:   cfg.Features,
		flag:       cfg.Flag,
		timeout:    cfg.Timeout,
	}
}

// EventTypes implements Handler.
func (h *OnAttendanceRecordedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventAttendanceRecorded}
}

// Handle implements shared.EventHandler.
func (h *OnAttendanceRecordedHandler) Handle(event shared.Event) error {
	recorded, ok := event.(shared.AttendanceRecordedEvent)
	if !ok {
		h.log.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}
	learnerID := recorded.AggregateID()

	if h.features != nil && !h.features.IsEnabledFor(h.flag, learnerID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	profile, err := h.learners.GetByID(ctx, learnerID)
	if err != nil {
		return fmt.Errorf("get learner: %w", err)
	}

	day := timeutil.Truncate(recorded.Date)
	if day.Before(profile.TrialStartDate) {
		return nil
	}

	records, err := h.attendance.ListBetween(ctx, learnerID, profile.TrialStartDate, day)
	if err != nil {
		return fmt.Errorf("load attendance: %w", err)
	}

	dates := progress.CompletedDates(records)
	earlier := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if !timeutil.SameDay(d, day) {
			earlier = append(earlier, d)
		}
	}

	before, err := progress.ComputeSnapshot(profile.TrialStartDate, day, earlier)
	if err != nil {
		return err
	}
	after, err := progress.ComputeSnapshot(profile.TrialStartDate, day, dates)
	if err != nil {
		return err
	}

	fresh := progress.NewlyEarned(
		progress.EvaluateAchievements(profile, before),
		progress.EvaluateAchievements(profile, after),
	)
	for _, a := range fresh {
		if err := h.publisher.Publish(shared.NewMilestoneReachedEvent(learnerID, string(a.ID), a.Title)); err != nil {
			h.log.Warn("failed to publish milestone", logger.LearnerID(learnerID), logger.Err(err))
			continue
		}
		h.log.Info("milestone reached",
			logger.LearnerID(learnerID),
			logger.String("achievement", string(a.ID)),
		)
	}
	return nil
}
