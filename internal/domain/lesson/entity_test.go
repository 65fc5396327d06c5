package lesson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hobby-university/learner-hub/internal/domain/shared"
)

func sampleLesson() *Lesson {
	return &Lesson{
		ID:        "lesson-1",
		CourseID:  "trial",
		DayNumber: 1,
		Title:     "Light and exposure",
		VideoURL:  "https://videos.example.com/1.mp4",
		Questions: []Question{
			{ID: "q1", Text: "What controls depth of field?", Options: []string{"Aperture", "ISO", "White balance"}, CorrectAnswer: 0},
			{ID: "q2", Text: "Which ISO is noisiest?", Options: []string{"100", "400", "6400"}, CorrectAnswer: 2},
			{ID: "q3", Text: "Golden hour is near?", Options: []string{"Noon", "Sunset"}, CorrectAnswer: 1},
		},
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		answers []int
		correct int
		score   int
		band    Band
	}{
		{"all correct", []int{0, 2, 1}, 3, 100, BandExcellent},
		{"two of three", []int{0, 2, 0}, 2, 67, BandPassing},
		{"one of three", []int{1, 2, 0}, 1, 33, BandNeedsWork},
		{"none", []int{2, 0, 0}, 0, 0, BandNeedsWork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := sampleLesson().Score(tt.answers)
			require.NoError(t, err)
			assert.Equal(t, tt.correct, out.Correct)
			assert.Equal(t, 3, out.Total)
			assert.Equal(t, tt.score, out.Score)
			assert.Equal(t, tt.band, out.Band)
		})
	}
}

func TestScore_Errors(t *testing.T) {
	_, err := sampleLesson().Score([]int{0, 2})
	assert.ErrorIs(t, err, shared.ErrIncompleteAnswers)

	_, err = sampleLesson().Score([]int{0, 5, 1})
	assert.ErrorIs(t, err, shared.ErrInvalidAnswer)

	_, err = sampleLesson().Score([]int{0, -1, 1})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = (&Lesson{ID: "empty"}).Score(nil)
	assert.ErrorIs(t, err, shared.ErrNoQuestions)
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, BandExcellent, BandFor(80))
	assert.Equal(t, BandPassing, BandFor(79))
	assert.Equal(t, BandPassing, BandFor(60))
	assert.Equal(t, BandNeedsWork, BandFor(59))
}

func TestIsVideoWatched(t *testing.T) {
	assert.False(t, IsVideoWatched(89))
	assert.True(t, IsVideoWatched(90))
	assert.True(t, IsVideoWatched(100))
}

func TestPublic_HidesAnswers(t *testing.T) {
	l := sampleLesson()
	pub := l.Public()

	assert.Equal(t, l.ID, pub.ID)
	require.Len(t, pub.Questions, 3)
	assert.Equal(t, []string{"100", "400", "6400"}, pub.Questions[1].Options)

	pub.Questions[0].Options[0] = "changed"
	assert.Equal(t, "Aperture", l.Questions[0].Options[0])
}
