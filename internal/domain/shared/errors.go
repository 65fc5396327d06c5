// Package shared holds the error kinds and domain events used by every
// domain package. It imports nothing outside the standard library.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is; the HTTP layer maps each
// kind to a status code.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Rejected input.
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// Progress cannot be computed: the trial start lies in the future, or a
	// stored record does not parse.
	ErrInvalidRange = errors.New("invalid date range")
	ErrDecoding     = errors.New("malformed record")

	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// A backing service failed or is shedding load.
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError carries the kind of a failure together with where it happened.
// Message is safe to show to learners; Err is not.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the cause, or the kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches both the kind and anything in the cause chain.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

// NewDomainError creates an error without a cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError attaches domain context to err.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Learner domain errors
var (
	ErrLearnerNotFound      = NewDomainError("learner", "Find", ErrNotFound, "learner not found")
	ErrLearnerAlreadyExists = NewDomainError("learner", "Register", ErrAlreadyExists, "learner already registered")
	ErrInvalidLearnerID     = NewDomainError("learner", "Validate", ErrInvalidID, "invalid learner ID")
	ErrInvalidHobby         = NewDomainError("learner", "Validate", ErrInvalidInput, "unknown hobby")
	ErrInvalidAge           = NewDomainError("learner", "Validate", ErrValueOutOfRange, "age must be between 13 and 100")
	ErrTrialAlreadyComplete = NewDomainError("learner", "CompleteTrial", ErrStateTransition, "trial already completed")
	ErrTrialNotComplete     = NewDomainError("learner", "AwardCertificate", ErrStateTransition, "trial not completed")
	ErrCertificateAwarded   = NewDomainError("learner", "AwardCertificate", ErrStateTransition, "certificate already awarded")
	ErrNotCertified         = NewDomainError("learner", "StartCourse", ErrStateTransition, "certificate not earned")
	ErrCourseAlreadyStarted = NewDomainError("learner", "StartCourse", ErrStateTransition, "advanced course already started")
)

// Lesson domain errors
var (
	ErrLessonNotFound    = NewDomainError("lesson", "Find", ErrNotFound, "lesson not found")
	ErrCourseNotFound    = NewDomainError("lesson", "FindCourse", ErrNotFound, "course not found")
	ErrNoQuestions       = NewDomainError("lesson", "Score", ErrInvalidState, "lesson has no questions")
	ErrIncompleteAnswers = NewDomainError("lesson", "Score", ErrInvalidInput, "please answer all questions")
	ErrInvalidAnswer     = NewDomainError("lesson", "Score", ErrValueOutOfRange, "answer does not match any option")
	ErrVideoNotWatched   = NewDomainError("lesson", "Submit", ErrInvalidState, "video must be watched before the quiz")
)

// Certificate domain errors
var (
	ErrCertificateNotAvailable = NewDomainError("certificate", "Issue", ErrForbidden, "certificate not yet available")
	ErrCertificateNotFound     = NewDomainError("certificate", "Verify", ErrNotFound, "no certificate with this ID was issued")
	ErrArchiveDisabled         = NewDomainError("certificate", "Verify", ErrServiceUnavailable, "certificate verification is not available")
)

// IsNotFound reports ErrNotFound anywhere in the chain.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports ErrAlreadyExists anywhere in the chain.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
