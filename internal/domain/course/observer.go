package course

import "fmt"

// ══════════════════════════════════════════════════════════════════════════════
// OBSERVERS
// Подписчики курса. Уведомления доставляются синхронно, в порядке подписки:
// сначала все студенческие, затем все преподавательские.
// ══════════════════════════════════════════════════════════════════════════════

// StudentObserver получает текстовые сообщения о результате записи.
type StudentObserver interface {
	// ObserverID идентифицирует подписчика для дедупликации.
	ObserverID() string

	// NotifyStudent доставляет сообщение студенту.
	NotifyStudent(message string)
}

// TeacherObserver получает число записанных на курс студентов.
type TeacherObserver interface {
	// ObserverID идентифицирует подписчика для дедупликации.
	ObserverID() string

	// NotifyTeacher доставляет текущее число записанных студентов.
	NotifyTeacher(enrolled int)
}

// SubscriptionPolicy определяет, что делать с повторной подпиской.
type SubscriptionPolicy string

const (
	// PolicyDeduplicate - подписчик с уже известным ObserverID не добавляется
	// повторно. Политика по умолчанию.
	PolicyDeduplicate SubscriptionPolicy = "deduplicate"

	// PolicyAccumulate - каждая подписка добавляется, даже повторная.
	// Один и тот же подписчик получит столько уведомлений, сколько раз был
	// подписан с момента последнего Complete().
	PolicyAccumulate SubscriptionPolicy = "accumulate"
)

// IsValid проверяет, что политика известна.
func (p SubscriptionPolicy) IsValid() bool {
	switch p {
	case PolicyDeduplicate, PolicyAccumulate:
		return true
	default:
		return false
	}
}

// ParsePolicy разбирает политику из строки конфигурации.
func ParsePolicy(s string) (SubscriptionPolicy, error) {
	p := SubscriptionPolicy(s)
	if s == "" {
		return PolicyDeduplicate, nil
	}
	if !p.IsValid() {
		return "", fmt.Errorf("unknown subscription policy %q", s)
	}
	return p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FUNC ADAPTERS
// ══════════════════════════════════════════════════════════════════════════════

// StudentFunc адаптирует функцию к StudentObserver.
type StudentFunc struct {
	ID string
	Fn func(message string)
}

// ObserverID реализует StudentObserver.
func (f StudentFunc) ObserverID() string { return f.ID }

// NotifyStudent реализует StudentObserver.
func (f StudentFunc) NotifyStudent(message string) { f.Fn(message) }

// TeacherFunc адаптирует функцию к TeacherObserver.
type TeacherFunc struct {
	ID string
	Fn func(enrolled int)
}

// ObserverID реализует TeacherObserver.
func (f TeacherFunc) ObserverID() string { return f.ID }

// NotifyTeacher реализует TeacherObserver.
func (f TeacherFunc) NotifyTeacher(enrolled int) { f.Fn(enrolled) }
