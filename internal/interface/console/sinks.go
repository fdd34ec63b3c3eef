package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/alem-hub/course-registry/internal/domain/course"
	"github.com/alem-hub/course-registry/internal/domain/student"
	"github.com/alem-hub/course-registry/internal/domain/teacher"
)

// Sinks печатает уведомления курса в консоль.
// Реализует registry.SinkFactory.
type Sinks struct {
	mu  sync.Mutex
	out io.Writer
}

// NewSinks создаёт фабрику консольных получателей уведомлений.
func NewSinks(out io.Writer) *Sinks {
	return &Sinks{out: out}
}

// StudentSink возвращает получателя уведомлений студента.
// ObserverID совпадает с ID студента, поэтому повторные подписки одного
// студента распознаются политикой курса.
func (s *Sinks) StudentSink(st *student.Student) course.StudentObserver {
	return studentSink{sinks: s, id: st.ID, name: st.Name}
}

// TeacherSink возвращает получателя уведомлений преподавателя.
func (s *Sinks) TeacherSink(t *teacher.Teacher) course.TeacherObserver {
	return teacherSink{sinks: s, id: t.ID, name: t.Name}
}

func (s *Sinks) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, line)
}

type studentSink struct {
	sinks *Sinks
	id    string
	name  string
}

func (s studentSink) ObserverID() string { return s.id }

func (s studentSink) NotifyStudent(message string) {
	s.sinks.println(fmt.Sprintf("Студент %s: %s", s.name, message))
}

type teacherSink struct {
	sinks *Sinks
	id    string
	name  string
}

func (t teacherSink) ObserverID() string { return t.id }

func (t teacherSink) NotifyTeacher(enrolled int) {
	t.sinks.println(fmt.Sprintf("Преподаватель %s: зарегистрировано студентов — %d", t.name, enrolled))
}
