package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Student events
	EventStudentAdded EventType = "student.added"

	// Course events
	EventStudentEnrolled      EventType = "course.student_enrolled"
	EventRegistrationRejected EventType = "course.registration_rejected"
	EventCourseCompleted      EventType = "course.completed"
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
		Timestamp:   time.Now().UTC(),
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
// Student Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentAddedEvent is emitted when the operator adds a student to the catalog.
type StudentAddedEvent struct {
	BaseEvent
	Name  string `json:"name"`
	IsVIP bool   `json:"is_vip"`
}

// Payload implements Event interface.
func (e StudentAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"name":   e.Name,
		"is_vip": e.IsVIP,
	}
}

// NewStudentAddedEvent creates a new StudentAddedEvent.
func NewStudentAddedEvent(studentID, name string, isVIP bool) StudentAddedEvent {
	return StudentAddedEvent{
		BaseEvent: NewBaseEvent(EventStudentAdded, studentID),
		Name:      name,
		IsVIP:     isVIP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Course Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentEnrolledEvent is emitted when a registration attempt is accepted.
type StudentEnrolledEvent struct {
	BaseEvent
	CourseTitle string `json:"course_title"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	IsVIP       bool   `json:"is_vip"`
	Enrolled    int    `json:"enrolled"`
	Capacity    int    `json:"capacity"`
}

// Payload implements Event interface.
func (e StudentEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_title": e.CourseTitle,
		"student_id":   e.StudentID,
		"student_name": e.StudentName,
		"is_vip":       e.IsVIP,
		"enrolled":     e.Enrolled,
		"capacity":     e.Capacity,
	}
}

// OverCapacity reports whether the enrollment went past the course capacity
// (only possible for VIP students).
func (e StudentEnrolledEvent) OverCapacity() bool {
	return e.Enrolled > e.Capacity
}

// NewStudentEnrolledEvent creates a new StudentEnrolledEvent.
func NewStudentEnrolledEvent(courseID, courseTitle, studentID, studentName string, isVIP bool, enrolled, capacity int) StudentEnrolledEvent {
	return StudentEnrolledEvent{
		BaseEvent:   NewBaseEvent(EventStudentEnrolled, courseID),
		CourseTitle: courseTitle,
		StudentID:   studentID,
		StudentName: studentName,
		IsVIP:       isVIP,
		Enrolled:    enrolled,
		Capacity:    capacity,
	}
}

// RegistrationRejectedEvent is emitted when a non-VIP student hits a full course.
type RegistrationRejectedEvent struct {
	BaseEvent
	CourseTitle string `json:"course_title"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Reason      string `json:"reason"`
}

// Payload implements Event interface.
func (e RegistrationRejectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_title": e.CourseTitle,
		"student_id":   e.StudentID,
		"student_name": e.StudentName,
		"reason":       e.Reason,
	}
}

// NewRegistrationRejectedEvent creates a new RegistrationRejectedEvent.
func NewRegistrationRejectedEvent(courseID, courseTitle, studentID, studentName, reason string) RegistrationRejectedEvent {
	return RegistrationRejectedEvent{
		BaseEvent:   NewBaseEvent(EventRegistrationRejected, courseID),
		CourseTitle: courseTitle,
		StudentID:   studentID,
		StudentName: studentName,
		Reason:      reason,
	}
}

// CourseCompletedEvent is emitted when a course is logically closed.
type CourseCompletedEvent struct {
	BaseEvent
	CourseTitle string `json:"course_title"`
	Enrolled    int    `json:"enrolled"`
}

// Payload implements Event interface.
func (e CourseCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_title": e.CourseTitle,
		"enrolled":     e.Enrolled,
	}
}

// NewCourseCompletedEvent creates a new CourseCompletedEvent.
func NewCourseCompletedEvent(courseID, courseTitle string, enrolled int) CourseCompletedEvent {
	return CourseCompletedEvent{
		BaseEvent:   NewBaseEvent(EventCourseCompleted, courseID),
		CourseTitle: courseTitle,
		Enrolled:    enrolled,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles a domain event.
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
	Close() error
}
