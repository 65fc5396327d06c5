package command

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/lesson"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

const (
	learnerID = "5f0c2b1e-8a4d-4c1e-9d3a-2b7f6e8c1a90"
	courseID  = "00000000-0000-4000-8000-000000000090"
)

// ─────────────────────────────────────────────────────────────────────────────
// learners
// ─────────────────────────────────────────────────────────────────────────────

type memLearners struct {
	mu       sync.Mutex
	profiles map[string]*learner.Profile
}

func newMemLearners(profiles ...*learner.Profile) *memLearners {
	m := &memLearners{profiles: make(map[string]*learner.Profile)}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *memLearners) Create(_ context.Context, p *learner.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; ok {
		return shared.ErrLearnerAlreadyExists
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memLearners) GetByID(_ context.Context, id string) (*learner.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memLearners) UpdateEnrollment(_ context.Context, p *learner.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		return shared.ErrLearnerNotFound
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memLearners) ListInTrial(context.Context, learner.ListOptions) ([]*learner.Profile, error) {
	return nil, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// lessons, results, attendance
// ─────────────────────────────────────────────────────────────────────────────

type memLessons struct {
	lessons map[string]*lesson.Lesson
}

func (m *memLessons) GetTrialCourse(context.Context) (*lesson.Course, error) {
	return &lesson.Course{ID: courseID, Title: "Trial", DurationDays: 90, IsTrial: true}, nil
}

func (m *memLessons) GetLesson(_ context.Context, id string) (*lesson.Lesson, error) {
	l, ok := m.lessons[id]
	if !ok {
		return nil, shared.ErrLessonNotFound
	}
	return l, nil
}

func (m *memLessons) GetLessonByDay(_ context.Context, course string, day int) (*lesson.Lesson, error) {
	for _, l := range m.lessons {
		if l.CourseID == course && l.DayNumber == day {
			return l, nil
		}
	}
	return nil, shared.ErrLessonNotFound
}

type memResults struct {
	results []progress.LessonResult
}

func (m *memResults) Append(_ context.Context, r *progress.LessonResult) error {
	r.ID = fmt.Sprintf("result-%d", len(m.results)+1)
	m.results = append(m.results, *r)
	return nil
}

func (m *memResults) ListByLearner(_ context.Context, id string) ([]progress.LessonResult, error) {
	var out []progress.LessonResult
	for _, r := range m.results {
		if r.LearnerID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

type memAttendance struct {
	days map[string]progress.AttendanceRecord
	err  error
}

func newMemAttendance() *memAttendance {
	return &memAttendance{days: make(map[string]progress.AttendanceRecord)}
}

func (m *memAttendance) RecordDay(_ context.Context, rec progress.AttendanceRecord) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	key := rec.LearnerID + "|" + timeutil.FormatDate(rec.Date)
	prev, exists := m.days[key]
	merged := rec
	merged.LessonCompleted = prev.LessonCompleted || rec.LessonCompleted
	merged.LoggedIn = prev.LoggedIn || rec.LoggedIn
	m.days[key] = merged
	return merged.LessonCompleted && !(exists && prev.LessonCompleted), nil
}

func (m *memAttendance) ListBetween(_ context.Context, id string, from, to time.Time) ([]progress.AttendanceRecord, error) {
	var out []progress.AttendanceRecord
	for _, r := range m.days {
		if r.LearnerID == id && !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memAttendance) LastCompletedDate(context.Context, string) (*time.Time, error) {
	return nil, nil
}

// memQuizStore writes the result first, then the day, and undoes both when
// either fails.
type memQuizStore struct {
	results    *memResults
	attendance *memAttendance
}

func (s *memQuizStore) RecordQuiz(ctx context.Context, res *progress.LessonResult, day progress.AttendanceRecord) (bool, error) {
	savedResults := len(s.results.results)
	savedDays := maps.Clone(s.attendance.days)

	if err := s.results.Append(ctx, res); err != nil {
		return false, err
	}
	created, err := s.attendance.RecordDay(ctx, day)
	if err != nil {
		s.results.results = s.results.results[:savedResults]
		s.attendance.days = savedDays
		return false, err
	}
	return created, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// events, flags, metrics
// ─────────────────────────────────────────────────────────────────────────────

type capturePublisher struct {
	events []shared.Event
}

func (c *capturePublisher) Publish(e shared.Event) error {
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) types() []shared.EventType {
	out := make([]shared.EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType())
	}
	return out
}

type staticGate bool

func (g staticGate) IsEnabledFor(string, string) bool { return bool(g) }

type invalidations struct {
	learners []string
	err      error
}

func (i *invalidations) Invalidate(_ context.Context, id string) error {
	i.learners = append(i.learners, id)
	return i.err
}

type quizRecorder struct {
	scores     []int
	attendance int
}

func (r *quizRecorder) ObserveQuiz(score int, _ string) { r.scores = append(r.scores, score) }
func (r *quizRecorder) AttendanceRecorded()             { r.attendance++ }

// ─────────────────────────────────────────────────────────────────────────────
// fixtures
// ─────────────────────────────────────────────────────────────────────────────

func clockAt(t time.Time) timeutil.Clock {
	return timeutil.ClockFunc(func() time.Time { return t })
}

func trialProfile(start time.Time) *learner.Profile {
	return &learner.Profile{
		ID:             learnerID,
		Email:          "sarah@example.com",
		FullName:       "Sarah Johnson",
		Age:            28,
		Location:       "Portland, OR",
		Hobby:          learner.HobbyPhotography,
		Motivation:     "Better garden photos",
		TrialStartDate: start,
	}
}

func threeQuestionLesson() *lesson.Lesson {
	return &lesson.Lesson{
		ID:        "lesson-1",
		CourseID:  courseID,
		DayNumber: 1,
		Title:     "Light and exposure",
		Questions: []lesson.Question{
			{ID: "q1", Text: "Q1", Options: []string{"a", "b", "c"}, CorrectAnswer: 0},
			{ID: "q2", Text: "Q2", Options: []string{"a", "b"}, CorrectAnswer: 1},
			{ID: "q3", Text: "Q3", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 3},
		},
	}
}
