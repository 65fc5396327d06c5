package command

import (
	"context"
	"fmt"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/logger"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE ENROLLMENT COMMAND
// Moves a learner forward through Trial -> Certified -> Advanced. Called by
// the grading service through the admin API.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentAction names a forward transition.
type EnrollmentAction string

const (
	ActionCompleteTrial    EnrollmentAction = "complete_trial"
	ActionAwardCertificate EnrollmentAction = "award_certificate"
	ActionStartCourse      EnrollmentAction = "start_course"
)

// UpdateEnrollmentCommand contains the requested transition.
type UpdateEnrollmentCommand struct {
	LearnerID string           `validate:"required"`
	Action    EnrollmentAction `validate:"required,oneof=complete_trial award_certificate start_course"`
	CourseID  string           `validate:"required_if=Action start_course,omitempty,uuid"`
}

// Validate validates the command.
func (c UpdateEnrollmentCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return validationError("UpdateEnrollment", err)
	}
	return nil
}

// UpdateEnrollmentResult contains the updated profile and its phase.
type UpdateEnrollmentResult struct {
	Profile *learner.Profile
	Phase   progress.Phase
}

// UpdateEnrollmentHandler handles UpdateEnrollmentCommand.
type UpdateEnrollmentHandler struct {
	learners   learner.Repository
	publisher  shared.EventPublisher
	clock      timeutil.Clock
	log        *logger.Logger
	dashboards DashboardInvalidator
}

// NewUpdateEnrollmentHandler creates a new UpdateEnrollmentHandler.
func NewUpdateEnrollmentHandler(
	learners learner.Repository,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
	dashboards DashboardInvalidator,
) *UpdateEnrollmentHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UpdateEnrollmentHandler{
		learners:   learners,
		publisher:  publisher,
		clock:      clock,
		log:        log,
		dashboards: dashboards,
	}
}

// Handle executes the update enrollment command.
func (h *UpdateEnrollmentHandler) Handle(ctx context.Context, cmd UpdateEnrollmentCommand) (*UpdateEnrollmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	profile, err := h.learners.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	var eventType shared.EventType

	switch cmd.Action {
	case ActionCompleteTrial:
		err = profile.CompleteTrial(now)
		eventType = shared.EventTrialCompleted
	case ActionAwardCertificate:
		err = profile.AwardCertificate(now)
		eventType = shared.EventCertificateAwarded
	case ActionStartCourse:
		err = profile.StartCourse(cmd.CourseID, now)
		eventType = shared.EventAdvancedCourseBegun
	}
	if err != nil {
		return nil, err
	}

	if err := h.learners.UpdateEnrollment(ctx, profile); err != nil {
		if shared.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update_enrollment: %w", err)
	}
	invalidateDashboard(ctx, h.dashboards, h.log, profile.ID)

	phase := progress.DeterminePhase(profile)
	h.log.Info("enrollment updated",
		logger.LearnerID(profile.ID),
		logger.String("action", string(cmd.Action)),
		logger.String("phase", string(phase)),
	)

	if err := h.publisher.Publish(shared.NewEnrollmentChangedEvent(eventType, profile.ID, cmd.CourseID)); err != nil {
		h.log.Warn("failed to publish enrollment event", logger.LearnerID(profile.ID), logger.Err(err))
	}

	return &UpdateEnrollmentResult{Profile: profile, Phase: phase}, nil
}
