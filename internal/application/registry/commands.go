package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/alem-hub/course-registry/internal/domain/course"
	"github.com/alem-hub/course-registry/internal/domain/shared"
	"github.com/alem-hub/course-registry/internal/domain/student"
	"github.com/alem-hub/course-registry/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// AddStudentCommand contains the data of a new student.
type AddStudentCommand struct {
	// Name is trimmed before validation.
	Name string `validate:"required,max=100"`

	// IsVIP is fixed for the lifetime of the student.
	IsVIP bool
}

// AddStudent validates the command and appends a new student.
func (r *Registry) AddStudent(ctx context.Context, cmd AddStudentCommand) (*student.Student, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	if err := r.validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("add_student: %w", shared.ErrInvalidStudent.WithDetail(describeValidation(err)))
	}

	s, err := student.NewStudent(student.NewStudentParams{
		ID:    uuid.NewString(),
		Name:  cmd.Name,
		IsVIP: cmd.IsVIP,
	})
	if err != nil {
		return nil, fmt.Errorf("add_student: %w", shared.ErrInvalidStudent.WithDetail(err))
	}

	r.mu.Lock()
	r.students = append(r.students, s)
	r.mu.Unlock()

	r.ctxLogger(ctx).Info("student added",
		logger.StudentID(s.ID),
		logger.Bool("vip", s.IsVIP()),
	)
	r.publish(ctx, shared.NewStudentAddedEvent(s.ID, s.Name, s.IsVIP()))

	return s, nil
}

// describeValidation turns validator errors into one readable error.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCH REPORT
// ══════════════════════════════════════════════════════════════════════════════

// ItemResult is the result of one selection token in a batch command.
type ItemResult struct {
	Selection SelectionItem

	// CourseTitle is empty for invalid tokens.
	CourseTitle string

	// Outcome is set by RegisterStudent only.
	Outcome course.Outcome

	// Err is ErrInvalidSelection for bad tokens.
	Err error
}

// BatchReport collects per-item results; one bad item never aborts the batch.
type BatchReport struct {
	Items []ItemResult
}

// Failed returns the number of items rejected with an error.
func (b *BatchReport) Failed() int {
	n := 0
	for _, it := range b.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}

// Count returns the number of items with the given outcome.
func (b *BatchReport) Count(o course.Outcome) int {
	n := 0
	for _, it := range b.Items {
		if it.Err == nil && it.Outcome == o {
			n++
		}
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// RegisterCommand registers one student on several courses.
type RegisterCommand struct {
	// StudentIndex is the 1-based position in Students().
	StudentIndex int

	// CourseSelection is a comma-separated list of 1-based course indexes.
	CourseSelection string

	// OnItem, if set, is called after each token in input order, so callers
	// can interleave their output with the notifications.
	OnItem func(ItemResult)
}

// RegisterStudent subscribes the student's sink and every teacher's sink to
// each selected course, then attempts the registration. An invalid student
// index aborts the whole command; an invalid course token only skips itself.
func (r *Registry) RegisterStudent(ctx context.Context, cmd RegisterCommand) (*BatchReport, error) {
	start := time.Now()
	log := r.ctxLogger(ctx).With(logger.Operation("register_student"))

	r.mu.Lock()

	if cmd.StudentIndex < 1 || cmd.StudentIndex > len(r.students) {
		r.mu.Unlock()
		return nil, shared.ErrInvalidSelection.WithDetail(
			fmt.Errorf("student %d not in 1..%d", cmd.StudentIndex, len(r.students)))
	}
	s := r.students[cmd.StudentIndex-1]

	report := &BatchReport{}
	var events []shared.Event
	batchID := uuid.NewString()

	for _, item := range ParseSelection(cmd.CourseSelection, len(r.courses)) {
		if !item.Valid() {
			result := ItemResult{Selection: item, Err: item.Err}
			report.Items = append(report.Items, result)
			if cmd.OnItem != nil {
				cmd.OnItem(result)
			}
			continue
		}

		c := r.courses[item.Index-1]
		c.SubscribeStudent(r.sinks.StudentSink(s))
		for _, t := range r.teachers {
			c.SubscribeTeacher(r.sinks.TeacherSink(t))
		}

		outcome := c.Register(s)
		result := ItemResult{Selection: item, CourseTitle: c.Title, Outcome: outcome}
		report.Items = append(report.Items, result)
		if cmd.OnItem != nil {
			cmd.OnItem(result)
		}

		switch outcome {
		case course.OutcomeAccepted:
			ev := shared.NewStudentEnrolledEvent(c.ID, c.Title, s.ID, s.Name, s.IsVIP(), c.Enrolled(), c.Capacity())
			ev.BaseEvent = ev.WithCorrelationID(batchID)
			events = append(events, ev)
		case course.OutcomeRejected:
			ev := shared.NewRegistrationRejectedEvent(c.ID, c.Title, s.ID, s.Name, outcome.Err().Error())
			ev.BaseEvent = ev.WithCorrelationID(batchID)
			events = append(events, ev)
		}

		studentSubs, teacherSubs := c.SubscriberCount()
		log.Debug("registration attempt",
			logger.StudentID(s.ID),
			logger.CourseID(c.ID),
			logger.Outcome(outcome.String()),
			logger.Bool("full", c.IsFull()),
			logger.Int("student_subscribers", studentSubs),
			logger.Int("teacher_subscribers", teacherSubs),
		)
	}

	r.mu.Unlock()

	r.publish(ctx, events...)

	log.Info("registration batch processed",
		logger.StudentID(s.ID),
		logger.String("batch_id", batchID),
		logger.Selection(cmd.CourseSelection),
		logger.Int("accepted", report.Count(course.OutcomeAccepted)),
		logger.Int("rejected", report.Count(course.OutcomeRejected)),
		logger.Int("invalid", report.Failed()),
		logger.Latency(time.Since(start)),
	)

	return report, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

// CourseRoster is the enrollment listing of one course.
type CourseRoster struct {
	Title    string
	Capacity int
	Entries  []course.RosterEntry
}

// ListStudents returns the roster of the course at the 1-based index.
func (r *Registry) ListStudents(_ context.Context, courseIndex int) (*CourseRoster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if courseIndex < 1 || courseIndex > len(r.courses) {
		return nil, shared.ErrInvalidSelection.WithDetail(
			fmt.Errorf("course %d not in 1..%d", courseIndex, len(r.courses)))
	}

	c := r.courses[courseIndex-1]
	return &CourseRoster{Title: c.Title, Capacity: c.Capacity(), Entries: c.Roster()}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE COURSES
// ══════════════════════════════════════════════════════════════════════════════

// CompleteCourses logically closes every selected course. Invalid tokens are
// reported per item; completing a course twice is harmless.
func (r *Registry) CompleteCourses(ctx context.Context, selection string) *BatchReport {
	log := r.ctxLogger(ctx).With(logger.Operation("complete_courses"))

	r.mu.Lock()

	report := &BatchReport{}
	var events []shared.Event
	batchID := uuid.NewString()

	for _, item := range ParseSelection(selection, len(r.courses)) {
		if !item.Valid() {
			report.Items = append(report.Items, ItemResult{Selection: item, Err: item.Err})
			continue
		}

		c := r.courses[item.Index-1]
		c.Complete()
		report.Items = append(report.Items, ItemResult{Selection: item, CourseTitle: c.Title})
		ev := shared.NewCourseCompletedEvent(c.ID, c.Title, c.Enrolled())
		ev.BaseEvent = ev.WithCorrelationID(batchID)
		events = append(events, ev)

		log.Info("course completed", logger.CourseID(c.ID), logger.CourseTitle(c.Title))
	}

	r.mu.Unlock()

	r.publish(ctx, events...)

	if failed := report.Failed(); failed > 0 {
		log.Warn("invalid course selection", logger.Selection(selection), logger.Int("invalid", failed))
	}

	return report
}
