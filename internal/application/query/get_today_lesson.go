package query

import (
	"context"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/lesson"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TODAY LESSON QUERY
// The trial lesson for the learner's next day, without the answer key.
// ══════════════════════════════════════════════════════════════════════════════

// GetTodayLessonQuery identifies the learner.
type GetTodayLessonQuery struct {
	LearnerID string `validate:"required"`
}

// Validate validates the query.
func (q GetTodayLessonQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return validationError("GetTodayLesson", err)
	}
	return nil
}

// TodayLessonView is the lesson payload.
type TodayLessonView struct {
	Day            int                 `json:"day"`
	VideoThreshold int                 `json:"video_threshold"`
	Lesson         lesson.PublicLesson `json:"lesson"`
}

// GetTodayLessonHandler handles GetTodayLessonQuery.
type GetTodayLessonHandler struct {
	learners   learner.Repository
	attendance progress.AttendanceRepository
	lessons    lesson.Repository
	calendar   timeutil.Calendar
	clock      timeutil.Clock
}

// NewGetTodayLessonHandler creates a new GetTodayLessonHandler.
func NewGetTodayLessonHandler(
	learners learner.Repository,
	attendance progress.AttendanceRepository,
	lessons lesson.Repository,
	calendar timeutil.Calendar,
	clock timeutil.Clock,
) *GetTodayLessonHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	return &GetTodayLessonHandler{
		learners:   learners,
		attendance: attendance,
		lessons:    lessons,
		calendar:   calendar,
		clock:      clock,
	}
}

// Handle executes the query.
func (h *GetTodayLessonHandler) Handle(ctx context.Context, q GetTodayLessonQuery) (*TodayLessonView, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	profile, err := h.learners.GetByID(ctx, q.LearnerID)
	if err != nil {
		return nil, err
	}

	snap, err := loadSnapshot(ctx, h.attendance, profile, h.calendar.Today(h.clock))
	if err != nil {
		return nil, err
	}
	day := progress.NextLessonDay(snap)

	course, err := h.lessons.GetTrialCourse(ctx)
	if err != nil {
		return nil, err
	}

	l, err := h.lessons.GetLessonByDay(ctx, course.ID, day)
	if err != nil {
		return nil, err
	}

	return &TodayLessonView{
		Day:            day,
		VideoThreshold: lesson.VideoWatchedThreshold,
		Lesson:         l.Public(),
	}, nil
}
