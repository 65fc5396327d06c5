package command

import (
	"context"
	"fmt"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/logger"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER LEARNER COMMAND
// Creates the learner profile after sign-up. The trial starts on the day of
// registration.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterLearnerCommand contains the sign-up form.
type RegisterLearnerCommand struct {
	// LearnerID comes from the verified access token.
	LearnerID  string `validate:"required,uuid"`
	Email      string `validate:"required,email"`
	FullName   string `validate:"required,max=200"`
	Age        int    `validate:"required"`
	Location   string `validate:"required,max=200"`
	Hobby      string `validate:"required"`
	Motivation string `validate:"required,max=2000"`
}

// Validate checks the form fields. Age bounds and the hobby list are
// enforced by the learner domain.
func (c RegisterLearnerCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return validationError("RegisterLearner", err)
	}
	return nil
}

// RegisterLearnerResult contains the created profile.
type RegisterLearnerResult struct {
	Profile *learner.Profile
}

// RegisterLearnerHandler handles RegisterLearnerCommand.
type RegisterLearnerHandler struct {
	learners  learner.Repository
	publisher shared.EventPublisher
	calendar  timeutil.Calendar
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewRegisterLearnerHandler creates a new RegisterLearnerHandler.
func NewRegisterLearnerHandler(
	learners learner.Repository,
	publisher shared.EventPublisher,
	calendar timeutil.Calendar,
	clock timeutil.Clock,
	log *logger.Logger,
) *RegisterLearnerHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RegisterLearnerHandler{
		learners:  learners,
		publisher: publisher,
		calendar:  calendar,
		clock:     clock,
		log:       log,
	}
}

// Handle executes the register learner command.
func (h *RegisterLearnerHandler) Handle(ctx context.Context, cmd RegisterLearnerCommand) (*RegisterLearnerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	hobby, err := learner.ParseHobby(cmd.Hobby)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	profile, err := learner.NewProfile(learner.NewProfileParams{
		ID:         cmd.LearnerID,
		Email:      cmd.Email,
		FullName:   cmd.FullName,
		Age:        cmd.Age,
		Location:   cmd.Location,
		Hobby:      hobby,
		Motivation: cmd.Motivation,
		SignedUpOn: h.calendar.DateOf(now),
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	if err := h.learners.Create(ctx, profile); err != nil {
		if shared.IsAlreadyExists(err) {
			return nil, err
		}
		return nil, fmt.Errorf("register_learner: %w", err)
	}

	h.log.Info("learner registered",
		logger.LearnerID(profile.ID),
		logger.String("hobby", string(profile.Hobby)),
	)

	event := shared.NewLearnerRegisteredEvent(profile.ID, profile.Email, profile.FullName, string(profile.Hobby), profile.TrialStartDate)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish learner.registered", logger.LearnerID(profile.ID), logger.Err(err))
	}

	return &RegisterLearnerResult{Profile: profile}, nil
}
