package command

import (
	"context"
	"fmt"
	"time"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/lesson"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/logger"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT QUIZ COMMAND
// Grades a lesson quiz, stores the result and marks the day as attended.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitQuizCommand contains a learner's answers for one lesson.
type SubmitQuizCommand struct {
	LearnerID string `validate:"required"`
	LessonID  string `validate:"required"`

	// Answers[i] is the chosen option index for the i-th question.
	Answers []int `validate:"required,min=1"`

	// VideoProgress is the reported share of the lesson video watched, 0-100.
	VideoProgress int `validate:"gte=0,lte=100"`

	// SubmittedAt defaults to the handler's clock.
	SubmittedAt time.Time
}

// Validate validates the command.
func (c SubmitQuizCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return validationError("SubmitQuiz", err)
	}
	return nil
}

// SubmitQuizResult is returned to the learner after grading.
type SubmitQuizResult struct {
	ResultID      string      `json:"result_id"`
	LessonID      string      `json:"lesson_id"`
	DayNumber     int         `json:"day_number"`
	Score         int         `json:"score"`
	Band          lesson.Band `json:"band"`
	Correct       int         `json:"correct"`
	Total         int         `json:"total"`
	NewAttendance bool        `json:"new_attendance"`
	AttendedOn    string      `json:"attended_on"`
}

// FeatureGate reports whether a feature is enabled for a learner.
// *config.FeatureFlags satisfies it.
type FeatureGate interface {
	IsEnabledFor(feature, learnerID string) bool
}

// QuizRecorder receives learning metrics. *metrics.Metrics satisfies it.
type QuizRecorder interface {
	ObserveQuiz(score int, band string)
	AttendanceRecorded()
}

// SubmitQuizHandler handles SubmitQuizCommand.
type SubmitQuizHandler struct {
	learners   learner.Repository
	lessons    lesson.Repository
	store      progress.QuizStore
	publisher  shared.EventPublisher
	calendar   timeutil.Calendar
	clock      timeutil.Clock
	log        *logger.Logger

	features      FeatureGate
	videoGateFlag string
	recorder      QuizRecorder
	dashboards    DashboardInvalidator
}

// SubmitQuizDeps groups the collaborators of SubmitQuizHandler.
type SubmitQuizDeps struct {
	Learners  learner.Repository
	Lessons   lesson.Repository
	Store     progress.QuizStore
	Publisher shared.EventPublisher
	Calendar  timeutil.Calendar
	Clock     timeutil.Clock
	Logger    *logger.Logger

	// Features and VideoGateFlag enable the video gate. A nil gate means
	// the gate is always on.
	Features      FeatureGate
	VideoGateFlag string

	// Recorder and Dashboards are optional.
	Recorder   QuizRecorder
	Dashboards DashboardInvalidator
}

// NewSubmitQuizHandler creates a new SubmitQuizHandler.
func NewSubmitQuizHandler(deps SubmitQuizDeps) *SubmitQuizHandler {
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &SubmitQuizHandler{
		learners:      deps.Learners,
		lessons:       deps.Lessons,
		store:         deps.Store,
		publisher:     deps.Publisher,
		calendar:      deps.Calendar,
		clock:         deps.Clock,
		log:           deps.Logger,
		features:      deps.Features,
		videoGateFlag: deps.VideoGateFlag,
		recorder:      deps.Recorder,
		dashboards:    deps.Dashboards,
	}
}

// Handle executes the submit quiz command.
func (h *SubmitQuizHandler) Handle(ctx context.Context, cmd SubmitQuizCommand) (*SubmitQuizResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if cmd.SubmittedAt.IsZero() {
		cmd.SubmittedAt = h.clock.Now()
	}

	profile, err := h.learners.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return nil, err
	}

	l, err := h.lessons.GetLesson(ctx, cmd.LessonID)
	if err != nil {
		return nil, err
	}

	if h.videoGateOn(profile.ID) && !lesson.IsVideoWatched(cmd.VideoProgress) {
		return nil, shared.ErrVideoNotWatched
	}

	outcome, err := l.Score(cmd.Answers)
	if err != nil {
		return nil, err
	}

	// Step 1: store the result and mark the calendar day as attended
	result := &progress.LessonResult{
		LearnerID:   profile.ID,
		CourseID:    l.CourseID,
		LessonID:    l.ID,
		Score:       outcome.Score,
		CompletedAt: cmd.SubmittedAt,
	}
	day := h.calendar.DateOf(cmd.SubmittedAt)
	created, err := h.store.RecordQuiz(ctx, result, progress.AttendanceRecord{
		LearnerID:       profile.ID,
		Date:            day,
		LoggedIn:        true,
		LessonCompleted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("submit_quiz: %w", err)
	}
	invalidateDashboard(ctx, h.dashboards, h.log, profile.ID)

	if h.recorder != nil {
		h.recorder.ObserveQuiz(outcome.Score, string(outcome.Band))
		if created {
			h.recorder.AttendanceRecorded()
		}
	}

	// Step 2: events
	h.publish(shared.NewQuizSubmittedEvent(profile.ID, l.ID, l.DayNumber, outcome.Score))
	if created {
		h.publish(shared.NewAttendanceRecordedEvent(profile.ID, day))
	}

	h.log.Info("quiz submitted",
		logger.LearnerID(profile.ID),
		logger.LessonID(l.ID),
		logger.Score(outcome.Score),
		logger.Bool("new_attendance", created),
	)

	return &SubmitQuizResult{
		ResultID:      result.ID,
		LessonID:      l.ID,
		DayNumber:     l.DayNumber,
		Score:         outcome.Score,
		Band:          outcome.Band,
		Correct:       outcome.Correct,
		Total:         outcome.Total,
		NewAttendance: created,
		AttendedOn:    timeutil.FormatDate(day),
	}, nil
}

func (h *SubmitQuizHandler) videoGateOn(learnerID string) bool {
	if h.features == nil {
		return true
	}
	return h.features.IsEnabledFor(h.videoGateFlag, learnerID)
}

func (h *SubmitQuizHandler) publish(event shared.Event) {
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}
