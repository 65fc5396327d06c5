// Package progress derives a learner's progress from their trial start date
// and attendance history. Everything here is pure: no I/O, no shared state.
package progress

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// TrialLengthDays is the fixed length of the trial course.
const TrialLengthDays = 90

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is the display-ready view of a learner's trial progress.
// It is derived on demand and never persisted.
type Snapshot struct {
	// TotalDays is the number of elapsed trial days, today included, capped at 90.
	TotalDays int `json:"total_days"`

	// CompletedDays is the number of distinct days with a completed lesson.
	CompletedDays int `json:"completed_days"`

	// CurrentStreak is the longest run of consecutive completed days
	// ending at or before today.
	CurrentStreak int `json:"current_streak"`

	// AttendanceRate is CompletedDays/TotalDays as a rounded percentage.
	AttendanceRate int `json:"attendance_rate"`
}

// InvalidRangeError is returned when the trial starts after today.
// Progress for such a learner is unavailable.
type InvalidRangeError struct {
	TrialStart time.Time
	Today      time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("trial start %s is after %s",
		timeutil.FormatDate(e.TrialStart), timeutil.FormatDate(e.Today))
}

// Is makes errors.Is(err, shared.ErrInvalidRange) match.
func (e *InvalidRangeError) Is(target error) bool {
	return target == shared.ErrInvalidRange
}

// ComputeSnapshot derives the progress snapshot for the trial that started on
// trialStart, as seen on today. attendance holds the calendar dates on which a
// lesson was completed; duplicates and dates outside [trialStart, today] are ignored.
func ComputeSnapshot(trialStart, today time.Time, attendance []time.Time) (Snapshot, error) {
	start := timeutil.Truncate(trialStart)
	end := timeutil.Truncate(today)

	if start.After(end) {
		return Snapshot{}, &InvalidRangeError{TrialStart: start, Today: end}
	}

	total := min(timeutil.DaysBetween(start, end)+1, TrialLengthDays)

	offsets := completedOffsets(start, end, attendance)

	completed := min(len(offsets), total)
	streak := min(longestRun(offsets), total, completed)

	return Snapshot{
		TotalDays:      total,
		CompletedDays:  completed,
		CurrentStreak:  streak,
		AttendanceRate: AttendanceRate(completed, total),
	}, nil
}

// AttendanceRate returns round(completed/total*100) clamped to [0,100].
// Zero when total is zero.
func AttendanceRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	rate := int(math.Round(float64(completed) / float64(total) * 100))
	return max(0, min(rate, 100))
}

// completedOffsets returns the sorted, distinct day offsets from start of every
// attendance date within [start, end].
func completedOffsets(start, end time.Time, attendance []time.Time) []int {
	seen := make(map[int]struct{}, len(attendance))
	for _, d := range attendance {
		day := timeutil.Truncate(d)
		if day.Before(start) || day.After(end) {
			continue
		}
		seen[timeutil.DaysBetween(start, day)] = struct{}{}
	}

	offsets := make([]int, 0, len(seen))
	for off := range seen {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	return offsets
}

// longestRun returns the length of the longest run of consecutive values
// in a sorted slice of distinct ints.
func longestRun(sorted []int) int {
	best, run := 0, 0
	for i, v := range sorted {
		if i > 0 && v == sorted[i-1]+1 {
			run++
		} else {
			run = 1
		}
		best = max(best, run)
	}
	return best
}

// ══════════════════════════════════════════════════════════════════════════════
// PHASE
// ══════════════════════════════════════════════════════════════════════════════

// Phase is where a learner is in the Trial -> Certified -> Advanced progression.
type Phase string

const (
	PhaseTrial     Phase = "trial"
	PhaseCertified Phase = "certified"
	PhaseAdvanced  Phase = "advanced"
)

// Label returns the display name of the phase.
func (p Phase) Label() string {
	switch p {
	case PhaseTrial:
		return "Trial Course"
	case PhaseCertified:
		return "Certified Graduate"
	case PhaseAdvanced:
		return "Advanced Course"
	default:
		return string(p)
	}
}

// DeterminePhase maps a profile's enrollment flags to a phase.
// It is total: every flag combination yields exactly one phase.
func DeterminePhase(p *learner.Profile) Phase {
	switch {
	case !p.TrialCompleted:
		return PhaseTrial
	case p.CertificateEarned && !p.HasCurrentCourse():
		return PhaseCertified
	default:
		return PhaseAdvanced
	}
}

// EvaluateCertificateEligibility reports whether a certificate may be issued.
// The persisted trial flag is authoritative; the snapshot is not consulted.
func EvaluateCertificateEligibility(p *learner.Profile, _ Snapshot) bool {
	return p.TrialCompleted
}

// NextLessonDay is the trial day the learner should study next.
func NextLessonDay(s Snapshot) int {
	return min(s.CompletedDays+1, TrialLengthDays)
}

// CourseProgress is the share of the whole trial already completed, in percent.
func CourseProgress(s Snapshot) int {
	return AttendanceRate(s.CompletedDays, TrialLengthDays)
}
