package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/lesson"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
)

// Every row is validated before it becomes a domain value. Failures surface
// as shared.ErrDecoding.
var validate = validator.New(validator.WithRequiredStructEnabled())

func decodeError(table string, err error) error {
	return shared.WrapError("postgres", "Decode", shared.ErrDecoding, fmt.Sprintf("malformed %s row", table), err)
}

// ─────────────────────────────────────────────────────────────────────────────
// users
// ─────────────────────────────────────────────────────────────────────────────

type userRow struct {
	ID                string    `validate:"required,uuid"`
	Email             string    `validate:"required,email"`
	FullName          string    `validate:"required,max=200"`
	Age               int       `validate:"gte=13,lte=100"`
	Location          string    `validate:"required"`
	Hobby             string    `validate:"required,oneof=Photography Cooking Gardening Writing Painting Music Fitness Technology Crafts Travel Other"`
	Motivation        string    `validate:"required"`
	TrialStartDate    time.Time `validate:"required"`
	TrialCompleted    bool
	CertificateEarned bool
	CurrentCourseID   *string `validate:"omitempty,uuid"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (r *userRow) scanTargets() []any {
	return []any{
		&r.ID, &r.Email, &r.FullName, &r.Age, &r.Location, &r.Hobby, &r.Motivation,
		&r.TrialStartDate, &r.TrialCompleted, &r.CertificateEarned, &r.CurrentCourseID,
		&r.CreatedAt, &r.UpdatedAt,
	}
}

func (r *userRow) toDomain() (*learner.Profile, error) {
	// A blank course id means no course, same as NULL.
	if r.CurrentCourseID != nil && strings.TrimSpace(*r.CurrentCourseID) == "" {
		r.CurrentCourseID = nil
	}
	if err := validate.Struct(r); err != nil {
		return nil, decodeError("users", err)
	}
	if r.CertificateEarned && !r.TrialCompleted {
		return nil, decodeError("users", fmt.Errorf("certificate_earned without trial_completed"))
	}

	return &learner.Profile{
		ID:                r.ID,
		Email:             r.Email,
		FullName:          r.FullName,
		Age:               r.Age,
		Location:          r.Location,
		Hobby:             learner.Hobby(r.Hobby),
		Motivation:        r.Motivation,
		TrialStartDate:    r.TrialStartDate.UTC(),
		TrialCompleted:    r.TrialCompleted,
		CertificateEarned: r.CertificateEarned,
		CurrentCourseID:   r.CurrentCourseID,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

const userColumns = `id::text, email, full_name, age, location, chosen_hobby, motivation,
	trial_start_date, trial_completed, certificate_earned, current_course_id::text,
	created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// user_attendance
// ─────────────────────────────────────────────────────────────────────────────

type attendanceRow struct {
	UserID          string    `validate:"required,uuid"`
	Date            time.Time `validate:"required"`
	LoggedIn        bool
	LessonCompleted bool
}

func (r *attendanceRow) toDomain() (progress.AttendanceRecord, error) {
	if err := validate.Struct(r); err != nil {
		return progress.AttendanceRecord{}, decodeError("user_attendance", err)
	}
	return progress.AttendanceRecord{
		LearnerID:       r.UserID,
		Date:            r.Date.UTC(),
		LoggedIn:        r.LoggedIn,
		LessonCompleted: r.LessonCompleted,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// user_progress
// ─────────────────────────────────────────────────────────────────────────────

type resultRow struct {
	ID          string    `validate:"required,uuid"`
	UserID      string    `validate:"required,uuid"`
	CourseID    string    `validate:"required,uuid"`
	LessonID    string    `validate:"required,uuid"`
	Score       int       `validate:"gte=0,lte=100"`
	CompletedAt time.Time `validate:"required"`
}

func (r *resultRow) toDomain() (progress.LessonResult, error) {
	if err := validate.Struct(r); err != nil {
		return progress.LessonResult{}, decodeError("user_progress", err)
	}
	return progress.LessonResult{
		ID:          r.ID,
		LearnerID:   r.UserID,
		CourseID:    r.CourseID,
		LessonID:    r.LessonID,
		Score:       r.Score,
		CompletedAt: r.CompletedAt,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// courses, lessons, questions
// ─────────────────────────────────────────────────────────────────────────────

type courseRow struct {
	ID           string `validate:"required,uuid"`
	Title        string `validate:"required"`
	Description  string
	DurationDays int `validate:"gt=0"`
	PriceCents   int `validate:"gte=0"`
	IsTrial      bool
}

func (r *courseRow) toDomain() (*lesson.Course, error) {
	if err := validate.Struct(r); err != nil {
		return nil, decodeError("courses", err)
	}
	return &lesson.Course{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		DurationDays: r.DurationDays,
		PriceCents:   r.PriceCents,
		IsTrial:      r.IsTrial,
	}, nil
}

type lessonRow struct {
	ID        string `validate:"required,uuid"`
	CourseID  string `validate:"required,uuid"`
	DayNumber int    `validate:"gte=1,lte=90"`
	Title     string `validate:"required"`
	VideoURL  string `validate:"omitempty,url"`
}

type questionRow struct {
	ID            string   `validate:"required,uuid"`
	LessonID      string   `validate:"required,uuid"`
	Text          string   `validate:"required"`
	Options       []string `validate:"min=2,dive,required"`
	CorrectAnswer int      `validate:"gte=0"`
}

func (r *questionRow) toDomain() (lesson.Question, error) {
	if err := validate.Struct(r); err != nil {
		return lesson.Question{}, decodeError("questions", err)
	}
	if r.CorrectAnswer >= len(r.Options) {
		return lesson.Question{}, decodeError("questions", fmt.Errorf("correct_answer %d outside %d options", r.CorrectAnswer, len(r.Options)))
	}
	return lesson.Question{
		ID:            r.ID,
		LessonID:      r.LessonID,
		Text:          r.Text,
		Options:       r.Options,
		CorrectAnswer: r.CorrectAnswer,
	}, nil
}

func (r *lessonRow) toDomain(questions []lesson.Question) (*lesson.Lesson, error) {
	if err := validate.Struct(r); err != nil {
		return nil, decodeError("lessons", err)
	}
	return &lesson.Lesson{
		ID:        r.ID,
		CourseID:  r.CourseID,
		DayNumber: r.DayNumber,
		Title:     r.Title,
		VideoURL:  r.VideoURL,
		Questions: questions,
	}, nil
}
