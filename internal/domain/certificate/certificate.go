// Package certificate builds the completion certificate shown to a learner
// after the trial. Rendering to PDF or images happens in the client; this
// package only produces the payload.
package certificate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// IDPrefix starts every certificate identifier.
const IDPrefix = "CERT-"

// namespace seeds deterministic certificate IDs.
var namespace = uuid.MustParse("6f1c2b8e-3a5d-4f0e-9c7b-2d4a8e6b1f30")

// Certificate is the display payload of a completion certificate.
type Certificate struct {
	CertificateID  string    `json:"certificate_id" validate:"required,startswith=CERT-,len=13"`
	StudentName    string    `json:"student_name" validate:"required"`
	CourseName     string    `json:"course_name" validate:"required"`
	CompletionDate string    `json:"completion_date" validate:"required"`
	Location       string    `json:"location"`
	Grade          string    `json:"grade" validate:"required"`
	ShareText      string    `json:"share_text"`
	IssuedAt       time.Time `json:"issued_at"`
}

// Archive stores issued certificates so they can be re-downloaded and verified.
type Archive interface {
	// Put stores the certificate and returns its object key.
	Put(ctx context.Context, cert *Certificate) (string, error)

	// Get loads a stored certificate by ID.
	// Returns shared.ErrNotFound if it was never archived.
	Get(ctx context.Context, certificateID string) (*Certificate, error)
}

// CourseName is the title printed for a hobby's trial course.
func CourseName(h learner.Hobby) string {
	return fmt.Sprintf("%s Professional Development", h)
}

// NewID derives a stable certificate ID for a learner and course.
func NewID(learnerID, courseName string) string {
	id := uuid.NewSHA1(namespace, []byte(learnerID+"|"+courseName))
	hex := strings.ReplaceAll(id.String(), "-", "")
	return IDPrefix + strings.ToUpper(hex[:8])
}

// Grade maps a mean quiz score to a letter grade.
// A learner without recorded quizzes gets the top grade.
func Grade(results []progress.LessonResult) string {
	avg, ok := progress.AverageScore(results)
	if !ok {
		return "A+"
	}

	switch {
	case avg >= 97:
		return "A+"
	case avg >= 93:
		return "A"
	case avg >= 90:
		return "A-"
	case avg >= 87:
		return "B+"
	case avg >= 83:
		return "B"
	case avg >= 80:
		return "B-"
	case avg >= 77:
		return "C+"
	case avg >= 70:
		return "C"
	case avg >= 60:
		return "D"
	default:
		return "F"
	}
}

// Issue builds the certificate for an eligible learner.
// completedOn is the calendar date printed on the certificate.
func Issue(p *learner.Profile, snap progress.Snapshot, results []progress.LessonResult, completedOn, now time.Time) (*Certificate, error) {
	if !progress.EvaluateCertificateEligibility(p, snap) {
		return nil, shared.ErrCertificateNotAvailable
	}

	course := CourseName(p.Hobby)
	return &Certificate{
		CertificateID:  NewID(p.ID, course),
		StudentName:    p.FullName,
		CourseName:     course,
		CompletionDate: timeutil.FormatLong(completedOn),
		Location:       p.Location,
		Grade:          Grade(results),
		ShareText:      fmt.Sprintf("I just completed the %s course at Hobby University!", course),
		IssuedAt:       now,
	}, nil
}
