package progress

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository reads daily attendance.
type AttendanceRepository interface {
	// ListBetween returns records for the learner with from <= date <= to, ordered by date.
	ListBetween(ctx context.Context, learnerID string, from, to time.Time) ([]AttendanceRecord, error)

	// LastCompletedDate returns the most recent date with a completed lesson,
	// or nil when the learner has none.
	LastCompletedDate(ctx context.Context, learnerID string) (*time.Time, error)
}

// ResultRepository reads quiz results.
type ResultRepository interface {
	// ListByLearner returns all results of the learner, oldest first.
	ListByLearner(ctx context.Context, learnerID string) ([]LessonResult, error)
}

// QuizStore writes a graded quiz. The result and the attendance day commit
// together or not at all, so a retried submission never leaves a second
// result behind a failed first attempt.
type QuizStore interface {
	// RecordQuiz appends result, filling in its ID, and records day for
	// (learner, date). Recording an existing day only upgrades LoggedIn and
	// LessonCompleted to true. created is true only when this call turned the
	// day into a completed lesson day, and concurrent calls for the same day
	// report it at most once.
	RecordQuiz(ctx context.Context, result *LessonResult, day AttendanceRecord) (created bool, err error)
}
