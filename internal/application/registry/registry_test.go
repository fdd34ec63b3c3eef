package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-registry/internal/domain/course"
	"github.com/alem-hub/course-registry/internal/domain/shared"
	"github.com/alem-hub/course-registry/internal/domain/student"
	"github.com/alem-hub/course-registry/internal/domain/teacher"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

type recordingSinks struct {
	lines []string
}

func (r *recordingSinks) StudentSink(s *student.Student) course.StudentObserver {
	return course.StudentFunc{ID: s.ID, Fn: func(msg string) {
		r.lines = append(r.lines, s.Name+": "+msg)
	}}
}

func (r *recordingSinks) TeacherSink(t *teacher.Teacher) course.TeacherObserver {
	return course.TeacherFunc{ID: t.ID, Fn: func(n int) {
		r.lines = append(r.lines, fmt.Sprintf("%s: %d", t.Name, n))
	}}
}

type recordingBus struct {
	events []shared.Event
	err    error
}

func (b *recordingBus) Publish(e shared.Event) error {
	b.events = append(b.events, e)
	return b.err
}

func (b *recordingBus) types() []shared.EventType {
	out := make([]shared.EventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventType())
	}
	return out
}

func newTestRegistry(t *testing.T, policy course.SubscriptionPolicy, seeds ...CourseSeed) (*Registry, *recordingSinks, *recordingBus) {
	t.Helper()

	if len(seeds) == 0 {
		seeds = []CourseSeed{
			{Title: "Программирование", Capacity: 2},
			{Title: "Дизайн", Capacity: 3},
			{Title: "Маркетинг", Capacity: 2},
		}
	}

	ivan, err := teacher.NewTeacher("t1", "Иван Иванович")
	require.NoError(t, err)

	sinks := &recordingSinks{}
	bus := &recordingBus{}
	r, err := New(Options{
		Teachers: []*teacher.Teacher{ivan},
		Courses:  seeds,
		Policy:   policy,
		Bus:      bus,
		Sinks:    sinks,
	})
	require.NoError(t, err)

	return r, sinks, bus
}

func addStudent(t *testing.T, r *Registry, name string, vip bool) {
	t.Helper()
	_, err := r.AddStudent(context.Background(), AddStudentCommand{Name: name, IsVIP: vip})
	require.NoError(t, err)
}

func rosterNames(t *testing.T, r *Registry, idx int) []string {
	t.Helper()
	roster, err := r.ListStudents(context.Background(), idx)
	require.NoError(t, err)
	names := make([]string, 0, len(roster.Entries))
	for _, e := range roster.Entries {
		names = append(names, e.Name)
	}
	return names
}

// ══════════════════════════════════════════════════════════════════════════════
// CONSTRUCTION & LISTINGS
// ══════════════════════════════════════════════════════════════════════════════

func TestNew_RejectsInvalidSeeds(t *testing.T) {
	_, err := New(Options{Courses: []CourseSeed{{Title: "", Capacity: 1}}})
	assert.ErrorIs(t, err, shared.ErrInvalidCourse)

	_, err = New(Options{Courses: []CourseSeed{{Title: "X", Capacity: -1}}})
	assert.ErrorIs(t, err, shared.ErrInvalidCourse)

	_, err = New(Options{Policy: "sometimes", Courses: []CourseSeed{{Title: "X", Capacity: 1}}})
	assert.ErrorIs(t, err, shared.ErrInvalidCourse)
}

func TestCourses_IndexedInOrder(t *testing.T) {
	r, _, _ := newTestRegistry(t, "")

	courses := r.Courses()
	require.Len(t, courses, 3)
	assert.Equal(t, 1, courses[0].Index)
	assert.Equal(t, "Программирование", courses[0].Title)
	assert.Equal(t, 3, courses[1].Capacity)
	assert.Equal(t, "Маркетинг", courses[2].Title)
	assert.Len(t, r.Teachers(), 1)
}

func TestAddStudent(t *testing.T) {
	r, _, bus := newTestRegistry(t, "")

	s, err := r.AddStudent(context.Background(), AddStudentCommand{Name: "  Анна ", IsVIP: true})
	require.NoError(t, err)
	assert.Equal(t, "Анна", s.Name)
	assert.True(t, s.IsVIP())
	assert.NotEmpty(t, s.ID)

	students := r.Students()
	require.Len(t, students, 1)
	assert.Equal(t, StudentView{Index: 1, ID: s.ID, Name: "Анна", IsVIP: true}, students[0])
	assert.Equal(t, []shared.EventType{shared.EventStudentAdded}, bus.types())
}

func TestAddStudent_Validation(t *testing.T) {
	r, _, _ := newTestRegistry(t, "")

	_, err := r.AddStudent(context.Background(), AddStudentCommand{Name: "   "})
	assert.ErrorIs(t, err, shared.ErrInvalidStudent)
	assert.True(t, shared.IsValidation(err))

	_, err = r.AddStudent(context.Background(), AddStudentCommand{Name: strings.Repeat("я", 101)})
	assert.ErrorIs(t, err, shared.ErrInvalidStudent)

	_, err = r.AddStudent(context.Background(), AddStudentCommand{Name: strings.Repeat("я", 100)})
	assert.NoError(t, err)
	assert.Len(t, r.Students(), 1)
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

func TestRegisterStudent_VIPExceedsCapacity(t *testing.T) {
	r, _, _ := newTestRegistry(t, "", CourseSeed{Title: "Go", Capacity: 2})
	addStudent(t, r, "A", false)
	addStudent(t, r, "B", false)
	addStudent(t, r, "C", true)

	for i := 1; i <= 3; i++ {
		report, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: i, CourseSelection: "1"})
		require.NoError(t, err)
		assert.Equal(t, course.OutcomeAccepted, report.Items[0].Outcome)
	}

	assert.Equal(t, []string{"A", "B", "C"}, rosterNames(t, r, 1))
	assert.Equal(t, 3, r.Courses()[0].Enrolled)
}

func TestRegisterStudent_FullCourseRejectsRegular(t *testing.T) {
	r, sinks, bus := newTestRegistry(t, "", CourseSeed{Title: "Go", Capacity: 2})
	addStudent(t, r, "A", false)
	addStudent(t, r, "B", false)
	addStudent(t, r, "D", false)

	for i := 1; i <= 2; i++ {
		_, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: i, CourseSelection: "1"})
		require.NoError(t, err)
	}
	sinks.lines = nil
	bus.events = nil

	report, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 3, CourseSelection: "1"})
	require.NoError(t, err)
	assert.Equal(t, course.OutcomeRejected, report.Items[0].Outcome)
	assert.Equal(t, 1, report.Count(course.OutcomeRejected))

	assert.Equal(t, []string{"A", "B"}, rosterNames(t, r, 1))
	// Студенческие подписчики курса получают отказ, преподаватель молчит.
	assert.Equal(t, []string{
		"A: Нет мест на курсе «Go»",
		"B: Нет мест на курсе «Go»",
		"D: Нет мест на курсе «Go»",
	}, sinks.lines)
	assert.Equal(t, []shared.EventType{shared.EventRegistrationRejected}, bus.types())
}

func TestRegisterStudent_NotificationsAndDedupe(t *testing.T) {
	r, sinks, bus := newTestRegistry(t, course.PolicyDeduplicate)
	addStudent(t, r, "Анна", false)
	bus.events = nil

	report, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 1, CourseSelection: "1, 2"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(course.OutcomeAccepted))

	assert.Equal(t, []string{
		"Анна: Вы успешно записаны на курс «Программирование»",
		"Иван Иванович: 1",
		"Анна: Вы успешно записаны на курс «Дизайн»",
		"Иван Иванович: 1",
	}, sinks.lines)
	assert.Equal(t, []shared.EventType{shared.EventStudentEnrolled, shared.EventStudentEnrolled}, bus.types())

	// Повторная запись молчит и событий не порождает.
	sinks.lines = nil
	bus.events = nil
	report, err = r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 1, CourseSelection: "1"})
	require.NoError(t, err)
	assert.Equal(t, course.OutcomeAlreadyEnrolled, report.Items[0].Outcome)
	assert.Empty(t, sinks.lines)
	assert.Empty(t, bus.events)
	assert.Equal(t, []string{"Анна"}, rosterNames(t, r, 1))
}

func TestRegisterStudent_RetryIntoFullCourseIsRejected(t *testing.T) {
	r, sinks, bus := newTestRegistry(t, course.PolicyDeduplicate, CourseSeed{Title: "Go", Capacity: 1})
	addStudent(t, r, "A", false)

	_, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 1, CourseSelection: "1"})
	require.NoError(t, err)
	sinks.lines = nil
	bus.events = nil

	report, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 1, CourseSelection: "1"})
	require.NoError(t, err)

	assert.Equal(t, course.OutcomeRejected, report.Items[0].Outcome)
	assert.Equal(t, []string{"A: Нет мест на курсе «Go»"}, sinks.lines)
	assert.Equal(t, []shared.EventType{shared.EventRegistrationRejected}, bus.types())
	assert.Equal(t, []string{"A"}, rosterNames(t, r, 1))
}

func TestRegisterStudent_BatchEventsShareCorrelationID(t *testing.T) {
	r, _, bus := newTestRegistry(t, "", CourseSeed{Title: "Go", Capacity: 1}, CourseSeed{Title: "Rust", Capacity: 0})
	addStudent(t, r, "A", false)
	addStudent(t, r, "B", false)
	bus.events = nil

	_, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 1, CourseSelection: "1,2"})
	require.NoError(t, err)
	require.Len(t, bus.events, 2)

	enrolled, ok := bus.events[0].(shared.StudentEnrolledEvent)
	require.True(t, ok)
	rejected, ok := bus.events[1].(shared.RegistrationRejectedEvent)
	require.True(t, ok)
	assert.NotEmpty(t, enrolled.CorrelationID)
	assert.Equal(t, enrolled.CorrelationID, rejected.CorrelationID)

	_, err = r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 2, CourseSelection: "1"})
	require.NoError(t, err)
	next, ok := bus.events[2].(shared.RegistrationRejectedEvent)
	require.True(t, ok)
	assert.NotEqual(t, enrolled.CorrelationID, next.CorrelationID)
}

func TestRegisterStudent_AccumulatePolicyRepeatsDelivery(t *testing.T) {
	r, sinks, _ := newTestRegistry(t, course.PolicyAccumulate, CourseSeed{Title: "Go", Capacity: 5})
	addStudent(t, r, "A", false)
	addStudent(t, r, "B", false)

	_, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 1, CourseSelection: "1"})
	require.NoError(t, err)
	sinks.lines = nil

	_, err = r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 2, CourseSelection: "1"})
	require.NoError(t, err)

	// Две подписки преподавателя - два уведомления.
	assert.Equal(t, []string{
		"A: Вы успешно записаны на курс «Go»",
		"B: Вы успешно записаны на курс «Go»",
		"Иван Иванович: 2",
		"Иван Иванович: 2",
	}, sinks.lines)
}

func TestRegisterStudent_InvalidTokensSkipped(t *testing.T) {
	r, _, _ := newTestRegistry(t, "")
	addStudent(t, r, "Анна", false)

	report, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 1, CourseSelection: "2,x,9,,3"})
	require.NoError(t, err)
	require.Len(t, report.Items, 5)

	assert.Equal(t, 3, report.Failed())
	assert.Equal(t, 2, report.Count(course.OutcomeAccepted))
	assert.Equal(t, "x", report.Items[1].Selection.Raw)
	assert.True(t, shared.IsInvalidSelection(report.Items[1].Err))
	assert.True(t, shared.IsInvalidSelection(report.Items[2].Err))
	assert.Equal(t, "", report.Items[3].Selection.Raw)
	assert.Equal(t, "Маркетинг", report.Items[4].CourseTitle)
}

func TestRegisterStudent_InvalidStudentAborts(t *testing.T) {
	r, sinks, _ := newTestRegistry(t, "")
	addStudent(t, r, "Анна", false)

	for _, idx := range []int{0, 2, -1} {
		report, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: idx, CourseSelection: "1"})
		assert.Nil(t, report)
		assert.ErrorIs(t, err, shared.ErrInvalidSelection)
	}
	assert.Empty(t, sinks.lines)
	assert.Equal(t, 0, r.Courses()[0].Enrolled)
}

func TestRegisterStudent_PublishFailureDoesNotUndo(t *testing.T) {
	r, _, bus := newTestRegistry(t, "")
	addStudent(t, r, "Анна", false)
	bus.err = errors.New("broker down")

	report, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 1, CourseSelection: "1"})
	require.NoError(t, err)
	assert.Equal(t, course.OutcomeAccepted, report.Items[0].Outcome)
	assert.Equal(t, 1, r.Courses()[0].Enrolled)
}

// ══════════════════════════════════════════════════════════════════════════════
// LISTING & COMPLETION
// ══════════════════════════════════════════════════════════════════════════════

func TestListStudents(t *testing.T) {
	r, _, _ := newTestRegistry(t, "")
	addStudent(t, r, "Анна", true)
	_, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 1, CourseSelection: "3"})
	require.NoError(t, err)

	roster, err := r.ListStudents(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Маркетинг", roster.Title)
	assert.Equal(t, []course.RosterEntry{{Name: "Анна", IsVIP: true}}, roster.Entries)

	_, err = r.ListStudents(context.Background(), 4)
	assert.ErrorIs(t, err, shared.ErrInvalidSelection)
	_, err = r.ListStudents(context.Background(), 0)
	assert.ErrorIs(t, err, shared.ErrInvalidSelection)
}

func TestCompleteCourses_PartialFailure(t *testing.T) {
	r, sinks, bus := newTestRegistry(t, "")
	addStudent(t, r, "Анна", false)
	addStudent(t, r, "Борис", false)
	_, err := r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 1, CourseSelection: "1,2"})
	require.NoError(t, err)
	bus.events = nil

	report := r.CompleteCourses(context.Background(), "1,9,2")
	require.Len(t, report.Items, 3)
	assert.Equal(t, "Программирование", report.Items[0].CourseTitle)
	assert.True(t, shared.IsInvalidSelection(report.Items[1].Err))
	assert.Equal(t, "Дизайн", report.Items[2].CourseTitle)
	assert.Equal(t, 1, report.Failed())

	courses := r.Courses()
	assert.True(t, courses[0].Completed)
	assert.True(t, courses[1].Completed)
	assert.False(t, courses[2].Completed)
	assert.Equal(t, []shared.EventType{shared.EventCourseCompleted, shared.EventCourseCompleted}, bus.types())

	// Завершение сняло подписки, но запись перед попыткой подписывает заново.
	sinks.lines = nil
	_, err = r.RegisterStudent(context.Background(), RegisterCommand{StudentIndex: 2, CourseSelection: "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Анна", "Борис"}, rosterNames(t, r, 1))
	assert.Equal(t, []string{
		"Борис: Вы успешно записаны на курс «Программирование»",
		"Иван Иванович: 2",
	}, sinks.lines)
}

func TestCompleteCourses_Idempotent(t *testing.T) {
	r, _, _ := newTestRegistry(t, "")

	report := r.CompleteCourses(context.Background(), "1,1")
	assert.Equal(t, 0, report.Failed())
	assert.True(t, r.Courses()[0].Completed)
}
