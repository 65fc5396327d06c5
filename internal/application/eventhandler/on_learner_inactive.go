package eventhandler

import (
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/logger"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// OnLearnerInactiveHandler records inactive learners in the log.
type OnLearnerInactiveHandler struct {
	log *logger.Logger
}

// NewOnLearnerInactiveHandler creates a new OnLearnerInactiveHandler.
func NewOnLearnerInactiveHandler(log *logger.Logger) *OnLearnerInactiveHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnLearnerInactiveHandler{log: log.With(logger.Component("on_learner_inactive"))}
}

// EventTypes implements Handler.
func (h *OnLearnerInactiveHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventLearnerInactive}
}

// Handle implements shared.EventHandler.
func (h *OnLearnerInactiveHandler) Handle(event shared.Event) error {
	inactive, ok := event.(shared.LearnerInactiveEvent)
	if !ok {
		return nil
	}

	lastActive := "never"
	if inactive.LastActiveDate != nil {
		lastActive = timeutil.FormatDate(*inactive.LastActiveDate)
	}

	h.log.Info("learner inactive",
		logger.LearnerID(inactive.AggregateID()),
		logger.Int("inactive_days", inactive.InactiveDays),
		logger.String("last_active", lastActive),
	)
	return nil
}
