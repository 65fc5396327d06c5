package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hobby-university/learner-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository implements progress.AttendanceRepository on user_attendance.
type AttendanceRepository struct {
	conn *Connection
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(conn *Connection) *AttendanceRepository {
	return &AttendanceRepository{conn: conn}
}

var _ progress.AttendanceRepository = (*AttendanceRepository)(nil)

// ListBetween returns the learner's records with from <= date <= to.
func (r *AttendanceRepository) ListBetween(ctx context.Context, learnerID string, from, to time.Time) ([]progress.AttendanceRecord, error) {
	query := `
		SELECT user_id::text, date, logged_in, lesson_completed
		FROM user_attendance
		WHERE user_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`

	rows, err := r.conn.Query(ctx, query, learnerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	var records []progress.AttendanceRecord
	for rows.Next() {
		var row attendanceRow
		if err := rows.Scan(&row.UserID, &row.Date, &row.LoggedIn, &row.LessonCompleted); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// LastCompletedDate returns the latest date with a completed lesson, or nil.
func (r *AttendanceRepository) LastCompletedDate(ctx context.Context, learnerID string) (*time.Time, error) {
	query := `SELECT MAX(date) FROM user_attendance WHERE user_id = $1 AND lesson_completed`

	var last *time.Time
	if err := r.conn.QueryRow(ctx, query, learnerID).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to get last attendance: %w", err)
	}
	if last != nil {
		utc := last.UTC()
		last = &utc
	}

	return last, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// ResultRepository implements progress.ResultRepository on user_progress.
type ResultRepository struct {
	conn *Connection
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(conn *Connection) *ResultRepository {
	return &ResultRepository{conn: conn}
}

var _ progress.ResultRepository = (*ResultRepository)(nil)

// ListByLearner returns all results of the learner, oldest first.
func (r *ResultRepository) ListByLearner(ctx context.Context, learnerID string) ([]progress.LessonResult, error) {
	query := `
		SELECT id::text, user_id::text, course_id::text, lesson_id::text, quiz_score, completed_at
		FROM user_progress
		WHERE user_id = $1
		ORDER BY completed_at
	`

	rows, err := r.conn.Query(ctx, query, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson results: %w", err)
	}
	defer rows.Close()

	var results []progress.LessonResult
	for rows.Next() {
		var row resultRow
		if err := rows.Scan(&row.ID, &row.UserID, &row.CourseID, &row.LessonID, &row.Score, &row.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lesson result: %w", err)
		}
		res, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ STORE
// ══════════════════════════════════════════════════════════════════════════════

// QuizStore implements progress.QuizStore. Both writes share one transaction.
type QuizStore struct {
	conn *Connection
}

// NewQuizStore creates a new QuizStore.
func NewQuizStore(conn *Connection) *QuizStore {
	return &QuizStore{conn: conn}
}

var _ progress.QuizStore = (*QuizStore)(nil)

// RecordQuiz appends the result and records the attendance day in one
// transaction.
func (s *QuizStore) RecordQuiz(ctx context.Context, res *progress.LessonResult, day progress.AttendanceRecord) (bool, error) {
	var created bool
	err := s.conn.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		if created, err = recordDay(ctx, tx, day); err != nil {
			return err
		}
		return appendResult(ctx, tx, res)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// recordDay inserts the (learner, date) row or upgrades an existing one.
//
// The insert and the upgrade are separate statements: after ON CONFLICT DO
// NOTHING waits out a concurrent insert of the same day, a second statement
// gets a fresh snapshot and sees that row. The upgrade only matches while
// lesson_completed is still false, so of two racing submissions exactly one
// reports the day as created.
func recordDay(ctx context.Context, tx pgx.Tx, rec progress.AttendanceRecord) (bool, error) {
	insert := `
		INSERT INTO user_attendance (user_id, date, logged_in, lesson_completed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, date) DO NOTHING
		RETURNING lesson_completed
	`

	var completed bool
	err := tx.QueryRow(ctx, insert, rec.LearnerID, rec.Date, rec.LoggedIn, rec.LessonCompleted).Scan(&completed)
	switch {
	case err == nil:
		return completed, nil
	case !IsNoRows(err):
		return false, fmt.Errorf("failed to record attendance: %w", err)
	}

	if rec.LessonCompleted {
		upgrade := `
			UPDATE user_attendance
			SET lesson_completed = TRUE, logged_in = logged_in OR $3
			WHERE user_id = $1 AND date = $2 AND NOT lesson_completed
		`
		tag, err := tx.Exec(ctx, upgrade, rec.LearnerID, rec.Date, rec.LoggedIn)
		if err != nil {
			return false, fmt.Errorf("failed to record attendance: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return true, nil
		}
	}

	if rec.LoggedIn {
		login := `UPDATE user_attendance SET logged_in = TRUE WHERE user_id = $1 AND date = $2 AND NOT logged_in`
		if _, err := tx.Exec(ctx, login, rec.LearnerID, rec.Date); err != nil {
			return false, fmt.Errorf("failed to record attendance: %w", err)
		}
	}
	return false, nil
}

// appendResult stores a quiz result and fills in its generated ID.
func appendResult(ctx context.Context, tx pgx.Tx, res *progress.LessonResult) error {
	query := `
		INSERT INTO user_progress (user_id, course_id, lesson_id, quiz_score, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text
	`

	err := tx.QueryRow(ctx, query, res.LearnerID, res.CourseID, res.LessonID, res.Score, res.CompletedAt).Scan(&res.ID)
	if err != nil {
		return fmt.Errorf("failed to append lesson result: %w", err)
	}
	return nil
}
