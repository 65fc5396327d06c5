// Package learner contains the domain model of a Hobby University learner.
// This is the core of the business logic - there are no external dependencies here.
package learner

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Hobby is the subject a learner chose at sign-up.
type Hobby string

const (
	HobbyPhotography Hobby = "Photography"
	HobbyCooking     Hobby = "Cooking"
	HobbyGardening   Hobby = "Gardening"
	HobbyWriting     Hobby = "Writing"
	HobbyPainting    Hobby = "Painting"
	HobbyMusic       Hobby = "Music"
	HobbyFitness     Hobby = "Fitness"
	HobbyTechnology  Hobby = "Technology"
	HobbyCrafts      Hobby = "Crafts"
	HobbyTravel      Hobby = "Travel"
	HobbyOther       Hobby = "Other"
)

// Hobbies lists every hobby in the order shown on the sign-up form.
var Hobbies = []Hobby{
	HobbyPhotography, HobbyCooking, HobbyGardening, HobbyWriting,
	HobbyPainting, HobbyMusic, HobbyFitness, HobbyTechnology,
	HobbyCrafts, HobbyTravel, HobbyOther,
}

// IsValid checks that the hobby is one of the known values.
func (h Hobby) IsValid() bool {
	for _, known := range Hobbies {
		if h == known {
			return true
		}
	}
	return false
}

// String returns the hobby name.
func (h Hobby) String() string {
	return string(h)
}

// ParseHobby matches a hobby name case-insensitively.
func ParseHobby(s string) (Hobby, error) {
	for _, known := range Hobbies {
		if strings.EqualFold(strings.TrimSpace(s), string(known)) {
			return known, nil
		}
	}
	return "", shared.ErrInvalidHobby
}

// Age bounds accepted at sign-up.
const (
	MinAge = 13
	MaxAge = 100
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Profile is a learner's persisted record. The enrollment flags only move
// forward: Trial -> Certified -> Advanced.
type Profile struct {
	ID         string
	Email      string
	FullName   string
	Age        int
	Location   string
	Hobby      Hobby
	Motivation string

	// TrialStartDate is a calendar date (see timeutil).
	TrialStartDate time.Time

	TrialCompleted    bool
	CertificateEarned bool
	CurrentCourseID   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfileParams holds sign-up data.
type NewProfileParams struct {
	ID         string
	Email      string
	FullName   string
	Age        int
	Location   string
	Hobby      Hobby
	Motivation string
	SignedUpOn time.Time // calendar date of sign-up, becomes the trial start
	Now        time.Time
}

// NewProfile creates a learner at the beginning of the trial.
func NewProfile(p NewProfileParams) (*Profile, error) {
	profile := &Profile{
		ID:             strings.TrimSpace(p.ID),
		Email:          strings.TrimSpace(p.Email),
		FullName:       strings.TrimSpace(p.FullName),
		Age:            p.Age,
		Location:       strings.TrimSpace(p.Location),
		Hobby:          p.Hobby,
		Motivation:     strings.TrimSpace(p.Motivation),
		TrialStartDate: timeutil.Truncate(p.SignedUpOn),
		CreatedAt:      p.Now,
		UpdatedAt:      p.Now,
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

// Validate checks the profile's invariants.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return shared.ErrInvalidLearnerID
	}
	if p.FullName == "" {
		return requiredField("full name")
	}
	if p.Email == "" {
		return requiredField("email")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return shared.WrapError("learner", "Validate", shared.ErrInvalidInput, "invalid email", err)
	}
	if p.Location == "" {
		return requiredField("location")
	}
	if p.Motivation == "" {
		return requiredField("motivation")
	}
	if p.Age < MinAge || p.Age > MaxAge {
		return shared.ErrInvalidAge
	}
	if !p.Hobby.IsValid() {
		return shared.ErrInvalidHobby
	}
	if p.TrialStartDate.IsZero() {
		return requiredField("trial start date")
	}
	if p.CertificateEarned && !p.TrialCompleted {
		return shared.NewDomainError("learner", "Validate", shared.ErrInvalidState, "certificate earned before trial completion")
	}
	if p.HasCurrentCourse() && !p.CertificateEarned {
		return shared.NewDomainError("learner", "Validate", shared.ErrInvalidState, "advanced course without certificate")
	}
	return nil
}

func requiredField(name string) error {
	return shared.NewDomainError("learner", "Validate", shared.ErrEmptyValue, fmt.Sprintf("%s is required", name))
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollment transitions
// ─────────────────────────────────────────────────────────────────────────────

// CompleteTrial marks the 90-day trial as finished.
func (p *Profile) CompleteTrial(now time.Time) error {
	if p.TrialCompleted {
		return shared.ErrTrialAlreadyComplete
	}
	p.TrialCompleted = true
	p.UpdatedAt = now
	return nil
}

// AwardCertificate records that the trial certificate was earned.
func (p *Profile) AwardCertificate(now time.Time) error {
	if !p.TrialCompleted {
		return shared.ErrTrialNotComplete
	}
	if p.CertificateEarned {
		return shared.ErrCertificateAwarded
	}
	p.CertificateEarned = true
	p.UpdatedAt = now
	return nil
}

// StartCourse enrolls a certified learner into an advanced course.
func (p *Profile) StartCourse(courseID string, now time.Time) error {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return shared.NewDomainError("learner", "StartCourse", shared.ErrEmptyValue, "course id is required")
	}
	if !p.CertificateEarned {
		return shared.ErrNotCertified
	}
	if p.HasCurrentCourse() {
		return shared.ErrCourseAlreadyStarted
	}
	p.CurrentCourseID = &courseID
	p.UpdatedAt = now
	return nil
}

// HasCurrentCourse reports whether the learner is enrolled in an advanced course.
func (p *Profile) HasCurrentCourse() bool {
	return p.CurrentCourseID != nil && strings.TrimSpace(*p.CurrentCourseID) != ""
}

// FirstName returns the first word of the full name, used in greetings.
func (p *Profile) FirstName() string {
	if fields := strings.Fields(p.FullName); len(fields) > 0 {
		return fields[0]
	}
	return p.FullName
}
