package progress

import (
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRecord is one learner's attendance on one calendar date.
// At most one record exists per (learner, date).
type AttendanceRecord struct {
	LearnerID       string
	Date            time.Time // calendar date
	LoggedIn        bool
	LessonCompleted bool
}

// CompletedDates extracts the dates on which a lesson was completed.
func CompletedDates(records []AttendanceRecord) []time.Time {
	dates := make([]time.Time, 0, len(records))
	for _, r := range records {
		if r.LessonCompleted {
			dates = append(dates, r.Date)
		}
	}
	return dates
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// LessonResult is a stored quiz outcome. Results are append-only.
type LessonResult struct {
	ID          string
	LearnerID   string
	CourseID    string
	LessonID    string
	Score       int // 0-100
	CompletedAt time.Time
}

// AverageScore returns the rounded mean score and false when there are no results.
func AverageScore(results []LessonResult) (int, bool) {
	if len(results) == 0 {
		return 0, false
	}
	sum := 0
	for _, r := range results {
		sum += r.Score
	}
	return int(math.Round(float64(sum) / float64(len(results)))), true
}
