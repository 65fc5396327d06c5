package postgres

import (
	"context"
	"fmt"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
)

// LearnerRepository implements learner.Repository on the users table.
type LearnerRepository struct {
	conn *Connection
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(conn *Connection) *LearnerRepository {
	return &LearnerRepository{conn: conn}
}

var _ learner.Repository = (*LearnerRepository)(nil)

// Create stores a new learner.
func (r *LearnerRepository) Create(ctx context.Context, p *learner.Profile) error {
	query := `
		INSERT INTO users (
			id, email, full_name, age, location, chosen_hobby, motivation,
			trial_start_date, trial_completed, certificate_earned, current_course_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.conn.Exec(ctx, query,
		p.ID, p.Email, p.FullName, p.Age, p.Location, string(p.Hobby), p.Motivation,
		p.TrialStartDate, p.TrialCompleted, p.CertificateEarned, p.CurrentCourseID,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrLearnerAlreadyExists
		}
		return fmt.Errorf("failed to create learner: %w", err)
	}

	return nil
}

// GetByID returns the learner with the given ID.
func (r *LearnerRepository) GetByID(ctx context.Context, id string) (*learner.Profile, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var row userRow
	if err := r.conn.QueryRow(ctx, query, id).Scan(row.scanTargets()...); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("failed to get learner: %w", err)
	}

	return row.toDomain()
}

// UpdateEnrollment persists the enrollment flags and current course.
func (r *LearnerRepository) UpdateEnrollment(ctx context.Context, p *learner.Profile) error {
	query := `
		UPDATE users
		SET trial_completed = $2,
			certificate_earned = $3,
			current_course_id = $4,
			updated_at = $5
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query, p.ID, p.TrialCompleted, p.CertificateEarned, p.CurrentCourseID, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrLearnerNotFound
	}

	return nil
}

// ListInTrial returns learners that have not completed the trial yet,
// oldest trial first.
func (r *LearnerRepository) ListInTrial(ctx context.Context, opts learner.ListOptions) ([]*learner.Profile, error) {
	if opts.Limit <= 0 {
		opts = learner.DefaultListOptions()
	}

	query := `SELECT ` + userColumns + `
		FROM users
		WHERE NOT trial_completed
		ORDER BY trial_start_date, id
		LIMIT $1 OFFSET $2`

	rows, err := r.conn.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list trial learners: %w", err)
	}
	defer rows.Close()

	var profiles []*learner.Profile
	for rows.Next() {
		var row userRow
		if err := rows.Scan(row.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan learner: %w", err)
		}
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}
