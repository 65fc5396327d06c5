package learner

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the storage contract for learner profiles.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines the operations on learner profiles.
type Repository interface {
	// Create stores a new learner.
	// Returns ErrLearnerAlreadyExists if the learner is already registered.
	Create(ctx context.Context, profile *Profile) error

	// GetByID returns the learner with the given ID.
	// Returns ErrLearnerNotFound if the learner does not exist.
	GetByID(ctx context.Context, id string) (*Profile, error)

	// UpdateEnrollment persists the enrollment flags and current course.
	// Returns ErrLearnerNotFound if the learner does not exist.
	UpdateEnrollment(ctx context.Context, profile *Profile) error

	// ListInTrial returns learners that have not completed the trial yet.
	ListInTrial(ctx context.Context, opts ListOptions) ([]*Profile, error)
}

// ListOptions contains pagination parameters.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}
