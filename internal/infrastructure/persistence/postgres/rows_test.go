package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
)

func validUserRow() userRow {
	return userRow{
		ID:             "5f0c2b1e-8a4d-4c1e-9d3a-2b7f6e8c1a90",
		Email:          "sarah@example.com",
		FullName:       "Sarah Johnson",
		Age:            28,
		Location:       "Portland, OR",
		Hobby:          "Photography",
		Motivation:     "I want to take better pictures of my garden.",
		TrialStartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:      time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestUserRow_ToDomain(t *testing.T) {
	row := validUserRow()

	p, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, row.ID, p.ID)
	assert.Equal(t, learner.HobbyPhotography, p.Hobby)
	assert.Equal(t, row.TrialStartDate, p.TrialStartDate)
	assert.False(t, p.TrialCompleted)
	assert.Nil(t, p.CurrentCourseID)
}

func TestUserRow_ToDomain_BlankCourseIsNoCourse(t *testing.T) {
	for _, blank := range []string{"", "   "} {
		row := validUserRow()
		row.TrialCompleted = true
		row.CertificateEarned = true
		row.CurrentCourseID = &blank

		p, err := row.toDomain()
		require.NoError(t, err, "course id %q", blank)
		assert.Nil(t, p.CurrentCourseID)
		assert.False(t, p.HasCurrentCourse())
		require.NoError(t, p.StartCourse("5f0c2b1e-8a4d-4c1e-9d3a-2b7f6e8c1a91", time.Now()))
	}
}

func TestUserRow_ToDomain_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *userRow)
	}{
		{"bad id", func(r *userRow) { r.ID = "42" }},
		{"bad email", func(r *userRow) { r.Email = "not-an-email" }},
		{"age too low", func(r *userRow) { r.Age = 9 }},
		{"unknown hobby", func(r *userRow) { r.Hobby = "Skydiving" }},
		{"missing trial date", func(r *userRow) { r.TrialStartDate = time.Time{} }},
		{"certificate without trial", func(r *userRow) { r.CertificateEarned = true }},
		{"bad course id", func(r *userRow) {
			id := "course-1"
			r.CurrentCourseID = &id
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validUserRow()
			tt.mutate(&row)

			_, err := row.toDomain()
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrDecoding))
		})
	}
}

func TestResultRow_ScoreOutOfRange(t *testing.T) {
	row := resultRow{
		ID:          "0b8f3c6a-1d2e-4f5a-8b9c-0d1e2f3a4b5c",
		UserID:      "5f0c2b1e-8a4d-4c1e-9d3a-2b7f6e8c1a90",
		CourseID:    "00000000-0000-4000-8000-000000000090",
		LessonID:    "7a6b5c4d-3e2f-4a1b-9c8d-7e6f5a4b3c2d",
		Score:       101,
		CompletedAt: time.Now(),
	}

	_, err := row.toDomain()
	assert.True(t, errors.Is(err, shared.ErrDecoding))

	row.Score = 100
	res, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
}

func TestQuestionRow_CorrectAnswerOutsideOptions(t *testing.T) {
	row := questionRow{
		ID:            "0b8f3c6a-1d2e-4f5a-8b9c-0d1e2f3a4b5c",
		LessonID:      "7a6b5c4d-3e2f-4a1b-9c8d-7e6f5a4b3c2d",
		Text:          "Which setting controls depth of field?",
		Options:       []string{"ISO", "Aperture"},
		CorrectAnswer: 2,
	}

	_, err := row.toDomain()
	assert.True(t, errors.Is(err, shared.ErrDecoding))

	row.CorrectAnswer = 1
	q, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, 1, q.CorrectAnswer)
}

func TestLessonRow_DayOutsideTrial(t *testing.T) {
	row := lessonRow{
		ID:        "7a6b5c4d-3e2f-4a1b-9c8d-7e6f5a4b3c2d",
		CourseID:  "00000000-0000-4000-8000-000000000090",
		DayNumber: 91,
		Title:     "Bonus",
	}

	_, err := row.toDomain(nil)
	assert.True(t, errors.Is(err, shared.ErrDecoding))
}
