// Package shared contains common domain types, errors and events
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened to a learner.
const (
	// Learner events
	EventLearnerRegistered EventType = "learner.registered"
	EventLearnerInactive   EventType = "learner.inactive"

	// Lesson events
	EventQuizSubmitted EventType = "lesson.quiz_submitted"

	// Progress events
	EventAttendanceRecorded EventType = "progress.attendance_recorded"
	EventMilestoneReached   EventType = "progress.milestone_reached"

	// Enrollment events
	EventTrialCompleted      EventType = "enrollment.trial_completed"
	EventCertificateAwarded  EventType = "enrollment.certificate_awarded"
	EventAdvancedCourseBegun EventType = "enrollment.course_started"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Learner Events
// ═══════════════════════════════════════════════════════════════════════════

// LearnerRegisteredEvent is emitted when a learner finishes sign-up.
type LearnerRegisteredEvent struct {
	BaseEvent
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Hobby     string    `json:"hobby"`
	TrialFrom time.Time `json:"trial_from"`
}

// NewLearnerRegisteredEvent creates a new LearnerRegisteredEvent.
func NewLearnerRegisteredEvent(learnerID, email, fullName, hobby string, trialFrom time.Time) LearnerRegisteredEvent {
	return LearnerRegisteredEvent{
		BaseEvent: NewBaseEvent(EventLearnerRegistered, learnerID),
		Email:     email,
		FullName:  fullName,
		Hobby:     hobby,
		TrialFrom: trialFrom,
	}
}

// Payload implements Event interface.
func (e LearnerRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":      e.Email,
		"full_name":  e.FullName,
		"hobby":      e.Hobby,
		"trial_from": e.TrialFrom,
	}
}

// LearnerInactiveEvent is emitted by the worker for trial learners who
// have not completed a lesson for a while.
type LearnerInactiveEvent struct {
	BaseEvent
	LastActiveDate *time.Time `json:"last_active_date,omitempty"`
	InactiveDays   int        `json:"inactive_days"`
}

// NewLearnerInactiveEvent creates a new LearnerInactiveEvent.
func NewLearnerInactiveEvent(learnerID string, lastActive *time.Time, inactiveDays int) LearnerInactiveEvent {
	return LearnerInactiveEvent{
		BaseEvent:      NewBaseEvent(EventLearnerInactive, learnerID),
		LastActiveDate: lastActive,
		InactiveDays:   inactiveDays,
	}
}

// Payload implements Event interface.
func (e LearnerInactiveEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"last_active_date": e.LastActiveDate,
		"inactive_days":    e.InactiveDays,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Lesson & Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// QuizSubmittedEvent is emitted after a quiz result has been stored.
type QuizSubmittedEvent struct {
	BaseEvent
	LessonID  string `json:"lesson_id"`
	DayNumber int    `json:"day_number"`
	Score     int    `json:"score"`
}

// NewQuizSubmittedEvent creates a new QuizSubmittedEvent.
func NewQuizSubmittedEvent(learnerID, lessonID string, dayNumber, score int) QuizSubmittedEvent {
	return QuizSubmittedEvent{
		BaseEvent: NewBaseEvent(EventQuizSubmitted, learnerID),
		LessonID:  lessonID,
		DayNumber: dayNumber,
		Score:     score,
	}
}

// Payload implements Event interface.
func (e QuizSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"lesson_id":  e.LessonID,
		"day_number": e.DayNumber,
		"score":      e.Score,
	}
}

// AttendanceRecordedEvent is emitted when a new calendar day of attendance
// is stored for a learner.
type AttendanceRecordedEvent struct {
	BaseEvent
	Date time.Time `json:"date"`
}

// NewAttendanceRecordedEvent creates a new AttendanceRecordedEvent.
func NewAttendanceRecordedEvent(learnerID string, date time.Time) AttendanceRecordedEvent {
	return AttendanceRecordedEvent{
		BaseEvent: NewBaseEvent(EventAttendanceRecorded, learnerID),
		Date:      date,
	}
}

// Payload implements Event interface.
func (e AttendanceRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"date": e.Date.Format("2006-01-02"),
	}
}

// MilestoneReachedEvent is emitted when an achievement becomes earned.
type MilestoneReachedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
	Title         string `json:"title"`
}

// NewMilestoneReachedEvent creates a new MilestoneReachedEvent.
func NewMilestoneReachedEvent(learnerID, achievementID, title string) MilestoneReachedEvent {
	return MilestoneReachedEvent{
		BaseEvent:     NewBaseEvent(EventMilestoneReached, learnerID),
		AchievementID: achievementID,
		Title:         title,
	}
}

// Payload implements Event interface.
func (e MilestoneReachedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id": e.AchievementID,
		"title":          e.Title,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Enrollment Events
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentChangedEvent is emitted for every forward phase transition.
// The concrete transition is carried by the event type.
type EnrollmentChangedEvent struct {
	BaseEvent
	CourseID string `json:"course_id,omitempty"`
}

// NewEnrollmentChangedEvent creates a new EnrollmentChangedEvent.
func NewEnrollmentChangedEvent(eventType EventType, learnerID, courseID string) EnrollmentChangedEvent {
	return EnrollmentChangedEvent{
		BaseEvent: NewBaseEvent(eventType, learnerID),
		CourseID:  courseID,
	}
}

// Payload implements Event interface.
func (e EnrollmentChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
