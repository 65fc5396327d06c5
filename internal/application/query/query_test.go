package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hobby-university/learner-hub/internal/domain/certificate"
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
// fakes
// ─────────────────────────────────────────────────────────────────────────────

type memLearners map[string]*learner.Profile

func (m memLearners) Create(context.Context, *learner.Profile) error { return nil }

func (m memLearners) GetByID(_ context.Context, id string) (*learner.Profile, error) {
	p, ok := m[id]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	cp := *p
	return &cp, nil
}

func (m memLearners) UpdateEnrollment(context.Context, *learner.Profile) error { return nil }

func (m memLearners) ListInTrial(context.Context, learner.ListOptions) ([]*learner.Profile, error) {
	return nil, nil
}

type memAttendance struct {
	records []progress.AttendanceRecord
	calls   int

	// onList runs before ListBetween reads, once per call.
	onList func(m *memAttendance)
}

func (m *memAttendance) ListBetween(_ context.Context, id string, from, to time.Time) ([]progress.AttendanceRecord, error) {
	m.calls++
	if m.onList != nil {
		m.onList(m)
	}
	var out []progress.AttendanceRecord
	for _, r := range m.records {
		if r.LearnerID == id && !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memAttendance) LastCompletedDate(context.Context, string) (*time.Time, error) {
	return nil, nil
}

type memResults []progress.LessonResult

func (m memResults) ListByLearner(context.Context, string) ([]progress.LessonResult, error) {
	return m, nil
}

type memLessons struct {
	byDay map[int]*lesson.Lesson
}

func (m memLessons) GetTrialCourse(context.Context) (*lesson.Course, error) {
	return &lesson.Course{ID: courseID, DurationDays: 90, IsTrial: true}, nil
}

func (m memLessons) GetLesson(context.Context, string) (*lesson.Lesson, error) {
	return nil, shared.ErrLessonNotFound
}

func (m memLessons) GetLessonByDay(_ context.Context, course string, day int) (*lesson.Lesson, error) {
	l, ok := m.byDay[day]
	if !ok || course != courseID {
		return nil, shared.ErrLessonNotFound
	}
	return l, nil
}

type memDashboardCache struct {
	views map[string]DashboardView
	gen   map[string]int64
	gets  int
	sets  int
}

func newDashboardCache() *memDashboardCache {
	return &memDashboardCache{views: map[string]DashboardView{}, gen: map[string]int64{}}
}

func (c *memDashboardCache) key(id string, gen int64, day time.Time) string {
	return fmt.Sprintf("%s:%d:%s", id, gen, timeutil.FormatDate(day))
}

func (c *memDashboardCache) Generation(_ context.Context, id string) (int64, error) {
	return c.gen[id], nil
}

func (c *memDashboardCache) Invalidate(_ context.Context, id string) error {
	c.gen[id]++
	return nil
}

func (c *memDashboardCache) Get(_ context.Context, id string, gen int64, day time.Time, dest any) (bool, error) {
	c.gets++
	v, ok := c.views[c.key(id, gen, day)]
	if !ok {
		return false, nil
	}
	*dest.(*DashboardView) = v
	return true, nil
}

func (c *memDashboardCache) Set(_ context.Context, id string, gen int64, day time.Time, view any) error {
	c.sets++
	c.views[c.key(id, gen, day)] = *view.(*DashboardView)
	return nil
}

type memArchive struct {
	stored map[string]*certificate.Certificate
	err    error
	getErr error
}

func (a *memArchive) Put(_ context.Context, cert *certificate.Certificate) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.stored[cert.CertificateID] = cert
	return "certificates/" + cert.CertificateID + ".json", nil
}

func (a *memArchive) Get(_ context.Context, id string) (*certificate.Certificate, error) {
	if a.getErr != nil {
		return nil, a.getErr
	}
	c, ok := a.stored[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

type lookups struct {
	hits, misses int
}

func (l *lookups) CacheLookup(_ string, hit bool) {
	if hit {
		l.hits++
	} else {
		l.misses++
	}
}

type staticGate bool

func (g staticGate) IsEnabledFor(string, string) bool { return bool(g) }

// ─────────────────────────────────────────────────────────────────────────────
// fixtures
// ─────────────────────────────────────────────────────────────────────────────

var trialStart = timeutil.Date(2024, 1, 1)

func clockAt(t time.Time) timeutil.Clock {
	return timeutil.ClockFunc(func() time.Time { return t })
}

func noon(day time.Time) time.Time {
	return day.Add(12 * time.Hour)
}

func profile() *learner.Profile {
	return &learner.Profile{
		ID:             learnerID,
		Email:          "sarah@example.com",
		FullName:       "Sarah Johnson",
		Age:            28,
		Location:       "Portland, OR",
		Hobby:          learner.HobbyPhotography,
		Motivation:     "Better garden photos",
		TrialStartDate: trialStart,
	}
}

func attended(offsets ...int) *memAttendance {
	m := &memAttendance{}
	for _, off := range offsets {
		m.records = append(m.records, progress.AttendanceRecord{
			LearnerID:       learnerID,
			Date:            timeutil.AddDays(trialStart, off),
			LoggedIn:        true,
			LessonCompleted: true,
		})
	}
	return m
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD
// ══════════════════════════════════════════════════════════════════════════════

func TestGetDashboard_WeekWithOneMissedDay(t *testing.T) {
	today := timeutil.AddDays(trialStart, 6)
	h := NewGetDashboardHandler(GetDashboardDeps{
		Learners:   memLearners{learnerID: profile()},
		Attendance: attended(0, 1, 2, 4, 5, 6),
		Calendar:   timeutil.NewCalendar(time.UTC),
		Clock:      clockAt(noon(today)),
	})

	view, err := h.Handle(context.Background(), GetDashboardQuery{LearnerID: learnerID})
	require.NoError(t, err)

	assert.Equal(t, progress.Snapshot{TotalDays: 7, CompletedDays: 6, CurrentStreak: 3, AttendanceRate: 86}, view.Progress)
	assert.Equal(t, progress.PhaseTrial, view.Phase)
	assert.Equal(t, "Trial Course", view.PhaseLabel)
	assert.Equal(t, 7, view.NextLessonDay)
	assert.Equal(t, "Day 7 of 7", view.DayLabel)
	assert.Equal(t, 7, view.CourseProgress)
	assert.False(t, view.CertificateAvailable)
	assert.Equal(t, "Sarah", view.FirstName)
	assert.Equal(t, "2024-01-07", view.AsOf)
	require.Len(t, view.Achievements, 3)
	for _, a := range view.Achievements {
		assert.False(t, a.Earned, a.ID)
	}
}

func TestGetDashboard_CertifiedLearner(t *testing.T) {
	p := profile()
	p.TrialCompleted = true
	p.CertificateEarned = true

	h := NewGetDashboardHandler(GetDashboardDeps{
		Learners:   memLearners{learnerID: p},
		Attendance: attended(),
		Calendar:   timeutil.NewCalendar(nil),
		Clock:      clockAt(noon(timeutil.AddDays(trialStart, 120))),
	})

	view, err := h.Handle(context.Background(), GetDashboardQuery{LearnerID: learnerID})
	require.NoError(t, err)

	assert.Equal(t, progress.PhaseCertified, view.Phase)
	assert.Equal(t, "Certified Graduate", view.PhaseLabel)
	assert.True(t, view.CertificateAvailable)
	assert.Equal(t, 90, view.Progress.TotalDays)
	assert.Equal(t, 0, view.Progress.AttendanceRate)
}

func TestGetDashboard_TrialNotStarted(t *testing.T) {
	h := NewGetDashboardHandler(GetDashboardDeps{
		Learners:   memLearners{learnerID: profile()},
		Attendance: attended(),
		Calendar:   timeutil.NewCalendar(nil),
		Clock:      clockAt(noon(timeutil.AddDays(trialStart, -1))),
	})

	_, err := h.Handle(context.Background(), GetDashboardQuery{LearnerID: learnerID})
	assert.ErrorIs(t, err, shared.ErrInvalidRange)
}

func TestGetDashboard_UnknownLearner(t *testing.T) {
	h := NewGetDashboardHandler(GetDashboardDeps{
		Learners:   memLearners{},
		Attendance: attended(),
		Calendar:   timeutil.NewCalendar(nil),
	})

	_, err := h.Handle(context.Background(), GetDashboardQuery{LearnerID: learnerID})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.Handle(context.Background(), GetDashboardQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestGetDashboard_Cache(t *testing.T) {
	today := timeutil.AddDays(trialStart, 2)
	att := attended(0, 1, 2)
	cache := newDashboardCache()
	rec := &lookups{}

	h := NewGetDashboardHandler(GetDashboardDeps{
		Learners:   memLearners{learnerID: profile()},
		Attendance: att,
		Calendar:   timeutil.NewCalendar(nil),
		Clock:      clockAt(noon(today)),
		Cache:      cache,
		Recorder:   rec,
	})

	first, err := h.Handle(context.Background(), GetDashboardQuery{LearnerID: learnerID})
	require.NoError(t, err)
	second, err := h.Handle(context.Background(), GetDashboardQuery{LearnerID: learnerID})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, att.calls)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, lookups{hits: 1, misses: 1}, *rec)
}

func TestGetDashboard_InvalidationDuringReadIsNotOverwritten(t *testing.T) {
	today := timeutil.AddDays(trialStart, 2)
	cache := newDashboardCache()
	att := attended(0, 1)

	// A quiz for today commits while the first request is reading attendance.
	att.onList = func(m *memAttendance) {
		m.onList = nil
		m.records = append(m.records, progress.AttendanceRecord{
			LearnerID: learnerID, Date: today, LoggedIn: true, LessonCompleted: true,
		})
		require.NoError(t, cache.Invalidate(context.Background(), learnerID))
	}

	h := NewGetDashboardHandler(GetDashboardDeps{
		Learners:   memLearners{learnerID: profile()},
		Attendance: att,
		Calendar:   timeutil.NewCalendar(nil),
		Clock:      clockAt(noon(today)),
		Cache:      cache,
	})

	_, err := h.Handle(context.Background(), GetDashboardQuery{LearnerID: learnerID})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	view, err := h.Handle(context.Background(), GetDashboardQuery{LearnerID: learnerID})
	require.NoError(t, err)
	assert.Equal(t, 3, view.Progress.CompletedDays)
	assert.Equal(t, 3, view.Progress.CurrentStreak)
	assert.Equal(t, 2, att.calls)
}

func TestGetDashboard_CacheFlagOff(t *testing.T) {
	att := attended(0)
	cache := newDashboardCache()

	h := NewGetDashboardHandler(GetDashboardDeps{
		Learners:   memLearners{learnerID: profile()},
		Attendance: att,
		Calendar:   timeutil.NewCalendar(nil),
		Clock:      clockAt(noon(trialStart)),
		Cache:      cache,
		Features:   staticGate(false),
		CacheFlag:  "dashboard_cache",
	})

	for range 2 {
		_, err := h.Handle(context.Background(), GetDashboardQuery{LearnerID: learnerID})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, att.calls)
	assert.Zero(t, cache.gets)
}

// ══════════════════════════════════════════════════════════════════════════════
// TODAY LESSON
// ══════════════════════════════════════════════════════════════════════════════

func TestGetTodayLesson(t *testing.T) {
	day4 := &lesson.Lesson{
		ID:        "lesson-4",
		CourseID:  courseID,
		DayNumber: 4,
		Title:     "Composition",
		Questions: []lesson.Question{{ID: "q1", Text: "Rule of thirds?", Options: []string{"yes", "no"}, CorrectAnswer: 0}},
	}
	h := NewGetTodayLessonHandler(
		memLearners{learnerID: profile()},
		attended(0, 1, 2),
		memLessons{byDay: map[int]*lesson.Lesson{4: day4}},
		timeutil.NewCalendar(nil),
		clockAt(noon(timeutil.AddDays(trialStart, 5))),
	)

	view, err := h.Handle(context.Background(), GetTodayLessonQuery{LearnerID: learnerID})
	require.NoError(t, err)

	assert.Equal(t, 4, view.Day)
	assert.Equal(t, lesson.VideoWatchedThreshold, view.VideoThreshold)
	assert.Equal(t, "lesson-4", view.Lesson.ID)
	require.Len(t, view.Lesson.Questions, 1)
	assert.Equal(t, []string{"yes", "no"}, view.Lesson.Questions[0].Options)
}

func TestGetTodayLesson_Missing(t *testing.T) {
	h := NewGetTodayLessonHandler(
		memLearners{learnerID: profile()},
		attended(),
		memLessons{},
		timeutil.NewCalendar(nil),
		clockAt(noon(trialStart)),
	)

	_, err := h.Handle(context.Background(), GetTodayLessonQuery{LearnerID: learnerID})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE
// ══════════════════════════════════════════════════════════════════════════════

type issuedCounter int

func (c *issuedCounter) CertificateIssued() { *c++ }

func certifiedHandler(results memResults, archive certificate.Archive, gate FeatureGate) (*GetCertificateHandler, *issuedCounter) {
	p := profile()
	p.TrialCompleted = true
	counter := new(issuedCounter)

	return NewGetCertificateHandler(GetCertificateDeps{
		Learners:    memLearners{learnerID: p},
		Attendance:  attended(),
		Results:     results,
		Calendar:    timeutil.NewCalendar(nil),
		Clock:       clockAt(noon(timeutil.AddDays(trialStart, 100))),
		Archive:     archive,
		Features:    gate,
		ArchiveFlag: "certificate_archive",
		Recorder:    counter,
	}), counter
}

func TestGetCertificate(t *testing.T) {
	results := memResults{
		{LearnerID: learnerID, Score: 100, CompletedAt: time.Date(2024, 3, 28, 18, 0, 0, 0, time.UTC)},
		{LearnerID: learnerID, Score: 90, CompletedAt: time.Date(2024, 3, 30, 9, 0, 0, 0, time.UTC)},
	}
	archive := &memArchive{stored: map[string]*certificate.Certificate{}}
	h, issued := certifiedHandler(results, archive, nil)

	view, err := h.Handle(context.Background(), GetCertificateQuery{LearnerID: learnerID})
	require.NoError(t, err)

	cert := view.Certificate
	assert.Equal(t, "Sarah Johnson", cert.StudentName)
	assert.Equal(t, "Photography Professional Development", cert.CourseName)
	assert.Equal(t, "March 30, 2024", cert.CompletionDate)
	assert.Equal(t, "Portland, OR", cert.Location)
	assert.Equal(t, "A", cert.Grade)
	assert.Regexp(t, `^CERT-[0-9A-F]{8}$`, cert.CertificateID)
	assert.Equal(t, "I just completed the Photography Professional Development course at Hobby University!", cert.ShareText)

	assert.Equal(t, "certificates/"+cert.CertificateID+".json", view.ObjectKey)
	assert.Contains(t, archive.stored, cert.CertificateID)
	assert.Equal(t, issuedCounter(1), *issued)
}

func TestGetCertificate_NoResults(t *testing.T) {
	h, _ := certifiedHandler(nil, nil, nil)

	view, err := h.Handle(context.Background(), GetCertificateQuery{LearnerID: learnerID})
	require.NoError(t, err)

	assert.Equal(t, "A+", view.Certificate.Grade)
	assert.Equal(t, "March 30, 2024", view.Certificate.CompletionDate)
	assert.Empty(t, view.ObjectKey)
}

func TestGetCertificate_ArchiveFailureStillIssues(t *testing.T) {
	archive := &memArchive{err: errors.New("bucket unavailable")}
	h, _ := certifiedHandler(nil, archive, nil)

	view, err := h.Handle(context.Background(), GetCertificateQuery{LearnerID: learnerID})
	require.NoError(t, err)
	assert.NotNil(t, view.Certificate)
	assert.Empty(t, view.ObjectKey)
}

func TestGetCertificate_ArchiveFlagOff(t *testing.T) {
	archive := &memArchive{stored: map[string]*certificate.Certificate{}}
	h, _ := certifiedHandler(nil, archive, staticGate(false))

	view, err := h.Handle(context.Background(), GetCertificateQuery{LearnerID: learnerID})
	require.NoError(t, err)
	assert.Empty(t, view.ObjectKey)
	assert.Empty(t, archive.stored)
}

func TestGetCertificate_TrialStartAfterToday(t *testing.T) {
	p := profile()
	p.TrialCompleted = true

	h := NewGetCertificateHandler(GetCertificateDeps{
		Learners:   memLearners{learnerID: p},
		Attendance: attended(),
		Results:    memResults{},
		Calendar:   timeutil.NewCalendar(nil),
		Clock:      clockAt(noon(timeutil.AddDays(trialStart, -1))),
	})

	view, err := h.Handle(context.Background(), GetCertificateQuery{LearnerID: learnerID})
	require.NoError(t, err)
	assert.Equal(t, "A+", view.Certificate.Grade)
	assert.Equal(t, "December 31, 2023", view.Certificate.CompletionDate)
}

func TestGetCertificate_NotEligible(t *testing.T) {
	counter := new(issuedCounter)
	h := NewGetCertificateHandler(GetCertificateDeps{
		Learners:   memLearners{learnerID: profile()},
		Attendance: attended(0, 1, 2),
		Results:    memResults{},
		Calendar:   timeutil.NewCalendar(nil),
		Clock:      clockAt(noon(timeutil.AddDays(trialStart, 3))),
		Recorder:   counter,
	})

	_, err := h.Handle(context.Background(), GetCertificateQuery{LearnerID: learnerID})
	assert.ErrorIs(t, err, shared.ErrCertificateNotAvailable)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Zero(t, *counter)
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE VERIFICATION
// ══════════════════════════════════════════════════════════════════════════════

func TestVerifyCertificate(t *testing.T) {
	archive := &memArchive{stored: map[string]*certificate.Certificate{}}
	issuer, _ := certifiedHandler(nil, archive, nil)
	issued, err := issuer.Handle(context.Background(), GetCertificateQuery{LearnerID: learnerID})
	require.NoError(t, err)

	h := NewVerifyCertificateHandler(archive, nil)

	view, err := h.Handle(context.Background(), VerifyCertificateQuery{CertificateID: issued.Certificate.CertificateID})
	require.NoError(t, err)
	assert.True(t, view.Valid)
	assert.Equal(t, issued.Certificate, view.Certificate)

	_, err = h.Handle(context.Background(), VerifyCertificateQuery{CertificateID: "CERT-00000000"})
	assert.ErrorIs(t, err, shared.ErrCertificateNotFound)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.Handle(context.Background(), VerifyCertificateQuery{CertificateID: "not-a-cert"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestVerifyCertificate_ArchiveFailures(t *testing.T) {
	_, err := NewVerifyCertificateHandler(nil, nil).Handle(context.Background(), VerifyCertificateQuery{CertificateID: "CERT-1A2B3C4D"})
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)

	down := &memArchive{getErr: shared.WrapError("storage", "Execute", shared.ErrServiceUnavailable, "certificate archive unavailable", errors.New("circuit open"))}
	_, err = NewVerifyCertificateHandler(down, nil).Handle(context.Background(), VerifyCertificateQuery{CertificateID: "CERT-1A2B3C4D"})
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
}
