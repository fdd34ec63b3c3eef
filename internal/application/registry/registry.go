// Package registry is the application service that owns the catalog:
// students, teachers and courses. It wires notification subscriptions before
// every registration attempt, runs batch commands with per-item results and
// publishes domain events.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/alem-hub/course-registry/internal/domain/course"
	"github.com/alem-hub/course-registry/internal/domain/shared"
	"github.com/alem-hub/course-registry/internal/domain/student"
	"github.com/alem-hub/course-registry/internal/domain/teacher"
	"github.com/alem-hub/course-registry/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SINKS
// ══════════════════════════════════════════════════════════════════════════════

// SinkFactory builds notification sinks for a student and a teacher.
// The console implements it; sinks with equal ObserverID are treated as the
// same subscriber.
type SinkFactory interface {
	StudentSink(s *student.Student) course.StudentObserver
	TeacherSink(t *teacher.Teacher) course.TeacherObserver
}

// nopSinks drops every notification.
type nopSinks struct{}

func (nopSinks) StudentSink(s *student.Student) course.StudentObserver {
	return course.StudentFunc{ID: s.ID, Fn: func(string) {}}
}

func (nopSinks) TeacherSink(t *teacher.Teacher) course.TeacherObserver {
	return course.TeacherFunc{ID: t.ID, Fn: func(int) {}}
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// CourseSeed describes a course created at startup.
type CourseSeed struct {
	Title    string `validate:"required"`
	Capacity int    `validate:"gte=0"`
}

// Options configures a Registry.
type Options struct {
	// Teachers subscribed to every registration. May be empty.
	Teachers []*teacher.Teacher

	// Courses in catalog order.
	Courses []CourseSeed

	// Policy for repeated subscriptions. Empty means deduplicate.
	Policy course.SubscriptionPolicy

	// Bus receives domain events. Optional.
	Bus shared.EventPublisher

	// Sinks builds notification sinks. Optional.
	Sinks SinkFactory

	Logger *logger.Logger
}

// Registry owns every student, teacher and course of the session.
type Registry struct {
	mu       sync.Mutex
	teachers []*teacher.Teacher
	courses  []*course.Course
	students []*student.Student

	policy   course.SubscriptionPolicy
	bus      shared.EventPublisher
	sinks    SinkFactory
	validate *validator.Validate
	logger   *logger.Logger
}

// New creates a Registry and its seed courses.
func New(opts Options) (*Registry, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Sinks == nil {
		opts.Sinks = nopSinks{}
	}

	r := &Registry{
		teachers: append([]*teacher.Teacher(nil), opts.Teachers...),
		policy:   opts.Policy,
		bus:      opts.Bus,
		sinks:    opts.Sinks,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   opts.Logger.With(logger.Component("registry")),
	}

	for i, seed := range opts.Courses {
		if err := r.validate.Struct(seed); err != nil {
			return nil, fmt.Errorf("course #%d: %w", i+1, shared.ErrInvalidCourse.WithDetail(err))
		}
		c, err := course.NewCourse(course.NewCourseParams{
			ID:       uuid.NewString(),
			Title:    seed.Title,
			Capacity: seed.Capacity,
			Policy:   opts.Policy,
		})
		if err != nil {
			return nil, fmt.Errorf("course #%d: %w", i+1, err)
		}
		r.courses = append(r.courses, c)
	}

	r.logger.Debug("registry created",
		logger.Int("courses", len(r.courses)),
		logger.Int("teachers", len(r.teachers)),
		logger.String("policy", string(r.effectivePolicy())),
	)

	return r, nil
}

func (r *Registry) effectivePolicy() course.SubscriptionPolicy {
	if r.policy == "" {
		return course.PolicyDeduplicate
	}
	return r.policy
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// CourseView is a read-only row of the course listing.
type CourseView struct {
	Index     int
	ID        string
	Title     string
	Capacity  int
	Enrolled  int
	Completed bool
}

// StudentView is a read-only row of the student listing.
type StudentView struct {
	Index int
	ID    string
	Name  string
	IsVIP bool
}

// Courses returns the catalog in order with 1-based indexes.
func (r *Registry) Courses() []CourseView {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CourseView, 0, len(r.courses))
	for i, c := range r.courses {
		out = append(out, CourseView{
			Index:     i + 1,
			ID:        c.ID,
			Title:     c.Title,
			Capacity:  c.Capacity(),
			Enrolled:  c.Enrolled(),
			Completed: c.IsCompleted(),
		})
	}
	return out
}

// Students returns added students in order with 1-based indexes.
func (r *Registry) Students() []StudentView {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]StudentView, 0, len(r.students))
	for i, s := range r.students {
		out = append(out, StudentView{Index: i + 1, ID: s.ID, Name: s.Name, IsVIP: s.IsVIP()})
	}
	return out
}

// Teachers returns the teachers notified on every enrollment.
func (r *Registry) Teachers() []*teacher.Teacher {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*teacher.Teacher(nil), r.teachers...)
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// publish sends events after the lock is released so handlers may read the
// registry. Failures are logged; they never undo a registration.
func (r *Registry) publish(ctx context.Context, events ...shared.Event) {
	if r.bus == nil {
		return
	}
	for _, event := range events {
		if err := r.bus.Publish(event); err != nil {
			r.ctxLogger(ctx).Warn("event publish failed",
				logger.String("event_type", string(event.EventType())),
				logger.Err(shared.ErrEventPublishFailed.WithDetail(err)),
			)
		}
	}
}

// ctxLogger prefers a logger carried by ctx over the registry logger.
func (r *Registry) ctxLogger(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, r.logger)
}
