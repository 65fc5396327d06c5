package progress

import (
	"github.com/hobby-university/learner-hub/internal/domain/learner"
)

// AchievementID identifies a milestone shown on the dashboard.
type AchievementID string

const (
	AchievementFirstWeek     AchievementID = "first_week"
	AchievementOneMonth      AchievementID = "one_month"
	AchievementTrialComplete AchievementID = "trial_complete"
)

// Thresholds for the day-based milestones.
const (
	FirstWeekStreakDays   = 7
	OneMonthCompletedDays = 30
)

// Achievement is a milestone and whether the learner has reached it.
type Achievement struct {
	ID          AchievementID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Earned      bool          `json:"earned"`
}

// EvaluateAchievements lists every milestone with its earned state.
func EvaluateAchievements(p *learner.Profile, s Snapshot) []Achievement {
	return []Achievement{
		{
			ID:          AchievementFirstWeek,
			Title:       "First Week Complete",
			Description: "Completed 7 consecutive days",
			Earned:      s.CurrentStreak >= FirstWeekStreakDays,
		},
		{
			ID:          AchievementOneMonth,
			Title:       "One Month Milestone",
			Description: "30 days of consistent learning",
			Earned:      s.CompletedDays >= OneMonthCompletedDays,
		},
		{
			ID:          AchievementTrialComplete,
			Title:       "Trial Course Complete",
			Description: "Finished the 90-day trial course",
			Earned:      p.TrialCompleted,
		},
	}
}

// NewlyEarned returns achievements earned in after but not in before.
func NewlyEarned(before, after []Achievement) []Achievement {
	had := make(map[AchievementID]bool, len(before))
	for _, a := range before {
		had[a.ID] = a.Earned
	}

	var fresh []Achievement
	for _, a := range after {
		if a.Earned && !had[a.ID] {
			fresh = append(fresh, a)
		}
	}
	return fresh
}
