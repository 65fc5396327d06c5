package lesson

import "context"

// Repository reads course content. Content is managed outside the service.
type Repository interface {
	// GetTrialCourse returns the course flagged as the trial.
	// Returns ErrCourseNotFound if none is configured.
	GetTrialCourse(ctx context.Context) (*Course, error)

	// GetLesson returns a lesson with its questions.
	// Returns ErrLessonNotFound if the lesson does not exist.
	GetLesson(ctx context.Context, lessonID string) (*Lesson, error)

	// GetLessonByDay returns the lesson of a course for the given day.
	// Returns ErrLessonNotFound if the course has no lesson for that day.
	GetLessonByDay(ctx context.Context, courseID string, day int) (*Lesson, error)
}
