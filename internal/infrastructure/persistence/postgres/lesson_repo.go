package postgres

import (
	"context"
	"fmt"

	"github.com/hobby-university/learner-hub/internal/domain/lesson"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
)

// LessonRepository implements lesson.Repository on courses, lessons and questions.
type LessonRepository struct {
	conn *Connection
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{conn: conn}
}

var _ lesson.Repository = (*LessonRepository)(nil)

// GetTrialCourse returns the course flagged as the trial.
func (r *LessonRepository) GetTrialCourse(ctx context.Context) (*lesson.Course, error) {
	query := `
		SELECT id::text, title, description, duration_days, price_cents, is_trial
		FROM courses
		WHERE is_trial
		LIMIT 1
	`

	var row courseRow
	err := r.conn.QueryRow(ctx, query).Scan(&row.ID, &row.Title, &row.Description, &row.DurationDays, &row.PriceCents, &row.IsTrial)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get trial course: %w", err)
	}

	return row.toDomain()
}

// GetLesson returns a lesson with its questions.
func (r *LessonRepository) GetLesson(ctx context.Context, lessonID string) (*lesson.Lesson, error) {
	return r.getLesson(ctx, `WHERE id = $1`, lessonID)
}

// GetLessonByDay returns the lesson of a course for the given day.
func (r *LessonRepository) GetLessonByDay(ctx context.Context, courseID string, day int) (*lesson.Lesson, error) {
	return r.getLesson(ctx, `WHERE course_id = $1 AND day_number = $2`, courseID, day)
}

func (r *LessonRepository) getLesson(ctx context.Context, where string, args ...any) (*lesson.Lesson, error) {
	query := `SELECT id::text, course_id::text, day_number, title, video_url FROM lessons ` + where

	var row lessonRow
	err := r.conn.QueryRow(ctx, query, args...).Scan(&row.ID, &row.CourseID, &row.DayNumber, &row.Title, &row.VideoURL)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	questions, err := r.listQuestions(ctx, row.ID)
	if err != nil {
		return nil, err
	}

	return row.toDomain(questions)
}

func (r *LessonRepository) listQuestions(ctx context.Context, lessonID string) ([]lesson.Question, error) {
	query := `
		SELECT id::text, lesson_id::text, question_text, options, correct_answer
		FROM questions
		WHERE lesson_id = $1
		ORDER BY position, id
	`

	rows, err := r.conn.Query(ctx, query, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []lesson.Question
	for rows.Next() {
		var row questionRow
		if err := rows.Scan(&row.ID, &row.LessonID, &row.Text, &row.Options, &row.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		q, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}

	return questions, rows.Err()
}
