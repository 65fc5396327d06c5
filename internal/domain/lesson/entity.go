// Package lesson models courses, their daily lessons and lesson quizzes.
package lesson

import (
	"math"

	"github.com/hobby-university/learner-hub/internal/domain/shared"
)

// VideoWatchedThreshold is the playback percentage at which a lesson video
// counts as watched and its quiz unlocks.
const VideoWatchedThreshold = 90

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Course is a sequence of daily lessons. The trial course is flagged IsTrial.
type Course struct {
	ID           string
	Title        string
	Description  string
	DurationDays int
	PriceCents   int
	IsTrial      bool
}

// Lesson is the material for one day of a course.
type Lesson struct {
	ID        string
	CourseID  string
	DayNumber int
	Title     string
	VideoURL  string
	Questions []Question
}

// Question is a multiple-choice quiz question. CorrectAnswer indexes Options.
type Question struct {
	ID            string
	LessonID      string
	Text          string
	Options       []string
	CorrectAnswer int
}

// IsVideoWatched reports whether the reported playback progress unlocks the quiz.
func IsVideoWatched(progressPercent int) bool {
	return progressPercent >= VideoWatchedThreshold
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ SCORING
// ══════════════════════════════════════════════════════════════════════════════

// Band groups scores for display.
type Band string

const (
	BandExcellent Band = "excellent"
	BandPassing   Band = "passing"
	BandNeedsWork Band = "needs_work"
)

// BandFor returns the band of a 0-100 score.
func BandFor(score int) Band {
	switch {
	case score >= 80:
		return BandExcellent
	case score >= 60:
		return BandPassing
	default:
		return BandNeedsWork
	}
}

// QuizOutcome is the result of grading a set of answers.
type QuizOutcome struct {
	Correct int
	Total   int
	Score   int
	Band    Band
}

// Score grades answers against the lesson's questions. answers[i] is the
// chosen option index for Questions[i]; every question must be answered.
func (l *Lesson) Score(answers []int) (QuizOutcome, error) {
	total := len(l.Questions)
	if total == 0 {
		return QuizOutcome{}, shared.ErrNoQuestions
	}
	if len(answers) != total {
		return QuizOutcome{}, shared.ErrIncompleteAnswers
	}

	correct := 0
	for i, q := range l.Questions {
		a := answers[i]
		if a < 0 || a >= len(q.Options) {
			return QuizOutcome{}, shared.ErrInvalidAnswer
		}
		if a == q.CorrectAnswer {
			correct++
		}
	}

	score := ScorePercent(correct, total)
	return QuizOutcome{
		Correct: correct,
		Total:   total,
		Score:   score,
		Band:    BandFor(score),
	}, nil
}

// ScorePercent returns round(correct/total*100).
func ScorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// ══════════════════════════════════════════════════════════════════════════════
// PUBLIC VIEW
// ══════════════════════════════════════════════════════════════════════════════

// PublicQuestion is a question without its answer key.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// PublicLesson is what a learner sees before submitting a quiz.
type PublicLesson struct {
	ID        string           `json:"id"`
	CourseID  string           `json:"course_id"`
	DayNumber int              `json:"day_number"`
	Title     string           `json:"title"`
	VideoURL  string           `json:"video_url"`
	Questions []PublicQuestion `json:"questions"`
}

// Public strips answer keys from the lesson.
func (l *Lesson) Public() PublicLesson {
	qs := make([]PublicQuestion, 0, len(l.Questions))
	for _, q := range l.Questions {
		qs = append(qs, PublicQuestion{
			ID:      q.ID,
			Text:    q.Text,
			Options: append([]string(nil), q.Options...),
		})
	}
	return PublicLesson{
		ID:        l.ID,
		CourseID:  l.CourseID,
		DayNumber: l.DayNumber,
		Title:     l.Title,
		VideoURL:  l.VideoURL,
		Questions: qs,
	}
}
