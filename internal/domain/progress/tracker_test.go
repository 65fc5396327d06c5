package progress

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

var day0 = timeutil.Date(2025, time.March, 1)

func days(offsets ...int) []time.Time {
	out := make([]time.Time, 0, len(offsets))
	for _, off := range offsets {
		out = append(out, timeutil.AddDays(day0, off))
	}
	return out
}

func TestComputeSnapshot_WeekWithOneMissedDay(t *testing.T) {
	snap, err := ComputeSnapshot(day0, timeutil.AddDays(day0, 6), days(0, 1, 2, 4, 5, 6))
	require.NoError(t, err)

	assert.Equal(t, 7, snap.TotalDays)
	assert.Equal(t, 6, snap.CompletedDays)
	assert.Equal(t, 3, snap.CurrentStreak)
	assert.Equal(t, 86, snap.AttendanceRate)
}

func TestComputeSnapshot_StartIsToday(t *testing.T) {
	snap, err := ComputeSnapshot(day0, day0, days(0))
	require.NoError(t, err)

	assert.Equal(t, 1, snap.TotalDays)
	assert.Equal(t, 1, snap.CompletedDays)
	assert.Equal(t, 1, snap.CurrentStreak)
	assert.Equal(t, 100, snap.AttendanceRate)
}

func TestComputeSnapshot_StartAfterToday(t *testing.T) {
	_, err := ComputeSnapshot(timeutil.AddDays(day0, 1), day0, nil)
	require.Error(t, err)

	var rangeErr *InvalidRangeError
	assert.True(t, errors.As(err, &rangeErr))
	assert.True(t, errors.Is(err, shared.ErrInvalidRange))
}

func TestComputeSnapshot_NoAttendance(t *testing.T) {
	snap, err := ComputeSnapshot(day0, timeutil.AddDays(day0, 9), nil)
	require.NoError(t, err)

	assert.Equal(t, Snapshot{TotalDays: 10}, snap)
}

func TestComputeSnapshot_CapsAtTrialLength(t *testing.T) {
	var all []int
	for i := 0; i < 120; i++ {
		all = append(all, i)
	}

	snap, err := ComputeSnapshot(day0, timeutil.AddDays(day0, 119), days(all...))
	require.NoError(t, err)

	assert.Equal(t, TrialLengthDays, snap.TotalDays)
	assert.Equal(t, TrialLengthDays, snap.CompletedDays)
	assert.Equal(t, TrialLengthDays, snap.CurrentStreak)
	assert.Equal(t, 100, snap.AttendanceRate)
}

func TestComputeSnapshot_IgnoresDuplicatesAndOutOfWindowDates(t *testing.T) {
	attendance := append(days(0, 0, 1, 1, 2), timeutil.AddDays(day0, -3), timeutil.AddDays(day0, 10))

	snap, err := ComputeSnapshot(day0, timeutil.AddDays(day0, 4), attendance)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.TotalDays)
	assert.Equal(t, 3, snap.CompletedDays)
	assert.Equal(t, 3, snap.CurrentStreak)
	assert.Equal(t, 60, snap.AttendanceRate)
}

func TestComputeSnapshot_TimeOfDayDoesNotMatter(t *testing.T) {
	start := day0.Add(22 * time.Hour)
	today := timeutil.AddDays(day0, 1).Add(1 * time.Hour)

	snap, err := ComputeSnapshot(start, today, []time.Time{day0.Add(23 * time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, 2, snap.TotalDays)
	assert.Equal(t, 1, snap.CompletedDays)
}

func TestComputeSnapshot_Invariants(t *testing.T) {
	patterns := [][]int{
		{},
		{0},
		{3, 4, 5, 9},
		{0, 2, 4, 6, 8, 10},
		{1, 2, 3, 4, 5, 6, 7, 8, 20, 21},
	}

	for elapsed := 0; elapsed < 100; elapsed += 7 {
		for _, p := range patterns {
			today := timeutil.AddDays(day0, elapsed)
			snap, err := ComputeSnapshot(day0, today, days(p...))
			require.NoError(t, err)

			assert.GreaterOrEqual(t, snap.CompletedDays, 0)
			assert.LessOrEqual(t, snap.CompletedDays, snap.TotalDays)
			assert.LessOrEqual(t, snap.TotalDays, TrialLengthDays)
			assert.LessOrEqual(t, snap.CurrentStreak, snap.CompletedDays)
			assert.GreaterOrEqual(t, snap.AttendanceRate, 0)
			assert.LessOrEqual(t, snap.AttendanceRate, 100)
			assert.Equal(t, AttendanceRate(snap.CompletedDays, snap.TotalDays), snap.AttendanceRate)
		}
	}
}

func TestAttendanceRate(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{0, 5, 0},
		{1, 3, 33},
		{2, 3, 67},
		{6, 7, 86},
		{1, 8, 13},
		{9, 7, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AttendanceRate(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
	}
}

func TestDeterminePhase(t *testing.T) {
	course := "course-1"

	tests := []struct {
		name    string
		profile learner.Profile
		want    Phase
	}{
		{"fresh learner", learner.Profile{}, PhaseTrial},
		{"trial flag unset but course present", learner.Profile{CurrentCourseID: &course}, PhaseTrial},
		{"trial done, no certificate", learner.Profile{TrialCompleted: true}, PhaseAdvanced},
		{"certified", learner.Profile{TrialCompleted: true, CertificateEarned: true}, PhaseCertified},
		{"certified with course", learner.Profile{TrialCompleted: true, CertificateEarned: true, CurrentCourseID: &course}, PhaseAdvanced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.profile
			assert.Equal(t, tt.want, DeterminePhase(&p))
		})
	}
}

func TestCertifiedLearnerIsEligible(t *testing.T) {
	p := &learner.Profile{TrialCompleted: true, CertificateEarned: true}

	assert.Equal(t, PhaseCertified, DeterminePhase(p))
	assert.True(t, EvaluateCertificateEligibility(p, Snapshot{}))
	assert.False(t, EvaluateCertificateEligibility(&learner.Profile{}, Snapshot{TotalDays: 90, CompletedDays: 90}))
}

func TestPhaseLabel(t *testing.T) {
	assert.Equal(t, "Trial Course", PhaseTrial.Label())
	assert.Equal(t, "Certified Graduate", PhaseCertified.Label())
	assert.Equal(t, "Advanced Course", PhaseAdvanced.Label())
}

func TestNextLessonDayAndCourseProgress(t *testing.T) {
	assert.Equal(t, 1, NextLessonDay(Snapshot{}))
	assert.Equal(t, 7, NextLessonDay(Snapshot{CompletedDays: 6}))
	assert.Equal(t, 90, NextLessonDay(Snapshot{CompletedDays: 90}))

	assert.Equal(t, 7, CourseProgress(Snapshot{CompletedDays: 6}))
	assert.Equal(t, 100, CourseProgress(Snapshot{CompletedDays: 90}))
}
