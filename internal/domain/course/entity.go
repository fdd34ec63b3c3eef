// Package course содержит агрегат курса и правило записи на него:
// запись проходит, если в курсе есть места или студент VIP;
// повторная запись того же студента в курс со свободными местами
// молча игнорируется.
package course

import (
	"fmt"
	"strings"

	"github.com/alem-hub/course-registry/internal/domain/shared"
	"github.com/alem-hub/course-registry/internal/domain/student"
)

// Шаблоны сообщений студенту.
const (
	MessageNoSeats  = "Нет мест на курсе «%s»"
	MessageEnrolled = "Вы успешно записаны на курс «%s»"
)

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOME
// ══════════════════════════════════════════════════════════════════════════════

// Outcome - результат попытки записи.
type Outcome int

const (
	// OutcomeAccepted - студент добавлен в состав курса.
	OutcomeAccepted Outcome = iota + 1

	// OutcomeRejected - мест нет, студент не VIP.
	OutcomeRejected

	// OutcomeAlreadyEnrolled - студент уже записан; ничего не произошло.
	OutcomeAlreadyEnrolled
)

// String возвращает строковое представление результата.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeAlreadyEnrolled:
		return "already_enrolled"
	default:
		return "unknown"
	}
}

// Err возвращает причину отказа или nil.
func (o Outcome) Err() error {
	if o == OutcomeRejected {
		return shared.ErrCourseFull
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: COURSE
// ══════════════════════════════════════════════════════════════════════════════

// Course - курс с ограниченной вместимостью.
// Курс не владеет студентами: он хранит ссылки, которыми владеет реестр.
type Course struct {
	// ID - внутренний уникальный идентификатор.
	ID string

	// Title - название курса (не обязано быть уникальным).
	Title string

	capacity  int
	enrolled  int
	roster    []*student.Student
	members   map[*student.Student]struct{}
	completed bool

	policy   SubscriptionPolicy
	students []StudentObserver
	teachers []TeacherObserver
}

// RosterEntry - строка списка студентов курса.
type RosterEntry struct {
	Name  string
	IsVIP bool
}

// NewCourseParams содержит параметры для создания курса.
type NewCourseParams struct {
	ID       string
	Title    string
	Capacity int
	Policy   SubscriptionPolicy
}

// NewCourse создаёт курс с валидацией.
func NewCourse(params NewCourseParams) (*Course, error) {
	if params.ID == "" {
		return nil, shared.ErrInvalidCourse.WithDetail(shared.ErrEmptyValue)
	}

	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, shared.ErrInvalidCourse.WithDetail(fmt.Errorf("title: %w", shared.ErrEmptyValue))
	}

	if params.Capacity < 0 {
		return nil, shared.ErrInvalidCourse.WithDetail(fmt.Errorf("capacity %d: %w", params.Capacity, shared.ErrNegativeValue))
	}

	policy := params.Policy
	if policy == "" {
		policy = PolicyDeduplicate
	}
	if !policy.IsValid() {
		return nil, shared.ErrInvalidCourse.WithDetail(fmt.Errorf("policy %q: %w", policy, shared.ErrInvalidInput))
	}

	return &Course{
		ID:       params.ID,
		Title:    title,
		capacity: params.Capacity,
		members:  make(map[*student.Student]struct{}),
		policy:   policy,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register пытается записать студента на курс. Порядок проверок важен:
//
//  1. Курс заполнен и студент не VIP - OutcomeRejected; сообщение получают
//     только студенческие подписчики. Это срабатывает и для уже записанного
//     студента, если курс с тех пор заполнился.
//  2. Студент уже записан - OutcomeAlreadyEnrolled, без уведомлений.
//  3. Иначе студент добавляется; студенческие подписчики получают
//     подтверждение, затем преподавательские - новое число записанных.
//
// Студент не должен быть nil.
func (c *Course) Register(s *student.Student) Outcome {
	if c.enrolled >= c.capacity && !s.IsVIP() {
		c.notifyStudents(fmt.Sprintf(MessageNoSeats, c.Title))
		return OutcomeRejected
	}

	if _, ok := c.members[s]; ok {
		return OutcomeAlreadyEnrolled
	}

	c.roster = append(c.roster, s)
	c.members[s] = struct{}{}
	c.enrolled++

	c.notifyStudents(fmt.Sprintf(MessageEnrolled, c.Title))
	c.notifyTeachers(c.enrolled)

	return OutcomeAccepted
}

// Complete логически закрывает курс: отписывает всех подписчиков.
// Состав курса не меняется, а дальнейшие попытки записи работают как раньше,
// только без уведомлений. Повторный вызов безопасен.
func (c *Course) Complete() {
	c.students = nil
	c.teachers = nil
	c.completed = true
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBSCRIPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Subscribe подписывает пару студент/преподаватель. Любой из них может быть nil.
func (c *Course) Subscribe(s StudentObserver, t TeacherObserver) {
	if s != nil {
		c.SubscribeStudent(s)
	}
	if t != nil {
		c.SubscribeTeacher(t)
	}
}

// SubscribeStudent добавляет студенческого подписчика.
// Возвращает false, если политика отклонила повторную подписку.
func (c *Course) SubscribeStudent(o StudentObserver) bool {
	if c.policy == PolicyDeduplicate {
		for _, existing := range c.students {
			if existing.ObserverID() == o.ObserverID() {
				return false
			}
		}
	}
	c.students = append(c.students, o)
	return true
}

// SubscribeTeacher добавляет преподавательского подписчика.
// Возвращает false, если политика отклонила повторную подписку.
func (c *Course) SubscribeTeacher(o TeacherObserver) bool {
	if c.policy == PolicyDeduplicate {
		for _, existing := range c.teachers {
			if existing.ObserverID() == o.ObserverID() {
				return false
			}
		}
	}
	c.teachers = append(c.teachers, o)
	return true
}

// SubscriberCount возвращает число подключённых подписчиков обоих видов.
func (c *Course) SubscriberCount() (students, teachers int) {
	return len(c.students), len(c.teachers)
}

func (c *Course) notifyStudents(message string) {
	for _, o := range c.students {
		o.NotifyStudent(message)
	}
}

func (c *Course) notifyTeachers(enrolled int) {
	for _, o := range c.teachers {
		o.NotifyTeacher(enrolled)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// Capacity возвращает вместимость курса.
func (c *Course) Capacity() int {
	return c.capacity
}

// Enrolled возвращает число записанных студентов.
func (c *Course) Enrolled() int {
	return c.enrolled
}

// IsFull возвращает true, если обычному студенту уже не хватит места.
func (c *Course) IsFull() bool {
	return c.enrolled >= c.capacity
}

// IsCompleted возвращает true после Complete().
func (c *Course) IsCompleted() bool {
	return c.completed
}

// Policy возвращает политику подписок курса.
func (c *Course) Policy() SubscriptionPolicy {
	return c.policy
}

// Students возвращает копию состава курса в порядке записи.
func (c *Course) Students() []*student.Student {
	out := make([]*student.Student, len(c.roster))
	copy(out, c.roster)
	return out
}

// Roster возвращает имена и VIP-флаги записанных студентов в порядке записи.
func (c *Course) Roster() []RosterEntry {
	out := make([]RosterEntry, 0, len(c.roster))
	for _, s := range c.roster {
		out = append(out, RosterEntry{Name: s.Name, IsVIP: s.IsVIP()})
	}
	return out
}

// String возвращает строковое представление курса для логирования.
func (c *Course) String() string {
	return fmt.Sprintf("Course{ID: %s, Title: %s, Enrolled: %d/%d, Completed: %t}",
		c.ID, c.Title, c.enrolled, c.capacity, c.completed)
}
