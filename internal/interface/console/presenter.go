package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/alem-hub/course-registry/internal/application/registry"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRESENTER
// Форматирует ответы реестра в строки меню.
// ══════════════════════════════════════════════════════════════════════════════

// Пункты главного меню.
var menuItems = []string{
	"1. Добавить студента",
	"2. Показать курсы",
	"3. Зарегистрировать студента на несколько курсов",
	"4. Показать студентов на курсе",
	"5. Завершить курсы",
	"6. Завершить программу",
}

// Presenter пишет в консоль, разделяя вывод с получателями уведомлений.
type Presenter struct {
	sinks *Sinks
}

// NewPresenter создаёт презентер поверх общих Sinks.
func NewPresenter(sinks *Sinks) *Presenter {
	return &Presenter{sinks: sinks}
}

func (p *Presenter) line(format string, args ...any) {
	p.sinks.println(fmt.Sprintf(format, args...))
}

// prompt печатает приглашение без перевода строки.
func (p *Presenter) prompt(text string) {
	p.sinks.mu.Lock()
	defer p.sinks.mu.Unlock()
	io.WriteString(p.sinks.out, text)
}

// Menu печатает главное меню.
func (p *Presenter) Menu() {
	var b strings.Builder
	b.WriteString("\nВыберите действие:")
	for _, item := range menuItems {
		b.WriteString("\n")
		b.WriteString(item)
	}
	p.sinks.println(b.String())
}

// Courses печатает каталог курсов.
func (p *Presenter) Courses(courses []registry.CourseView) {
	p.line("\nДоступные курсы:")
	for _, c := range courses {
		p.line("%d. %s (Вместимость: %d)", c.Index, c.Title, c.Capacity)
	}
}

// Students печатает список студентов.
func (p *Presenter) Students(students []registry.StudentView) {
	p.line("\nСписок студентов:")
	for _, s := range students {
		p.line("%d. %s (VIP: %s)", s.Index, s.Name, vipLabel(s.IsVIP))
	}
}

// StudentAdded подтверждает добавление студента.
func (p *Presenter) StudentAdded(name string) {
	p.line("Студент %s добавлен.", name)
}

// InvalidStudentName сообщает о невалидном имени.
func (p *Presenter) InvalidStudentName() {
	p.line("Имя студента должно содержать от 1 до 100 символов.")
}

// InvalidStudent сообщает о неверном номере студента.
func (p *Presenter) InvalidStudent() {
	p.line("Неверный номер студента.")
}

// InvalidCourse сообщает о неверном номере курса при просмотре.
func (p *Presenter) InvalidCourse() {
	p.line("Неверный номер курса.")
}

// InvalidChoice сообщает о неизвестном пункте меню.
func (p *Presenter) InvalidChoice() {
	p.line("Неверный выбор. Попробуйте снова.")
}

// Goodbye печатает сообщение о завершении программы.
func (p *Presenter) Goodbye() {
	p.line("Программа завершена.")
}

// RegistrationItem печатает ошибку выбора курса; об успехе и отказе
// сообщают сами получатели уведомлений.
func (p *Presenter) RegistrationItem(item registry.ItemResult) {
	if item.Err != nil {
		p.line("Неверный номер курса: %s", item.Selection.Raw)
	}
}

// CompletionReport печатает результат завершения курсов в порядке ввода.
func (p *Presenter) CompletionReport(report *registry.BatchReport) {
	for _, item := range report.Items {
		if item.Err != nil {
			p.line("Неверный номер курса: %s", item.Selection.Raw)
			continue
		}
		p.line("Курс «%s» завершен.", item.CourseTitle)
	}
}

// Roster печатает студентов курса.
func (p *Presenter) Roster(roster *registry.CourseRoster) {
	p.line("Студенты, зарегистрированные на курс «%s»:", roster.Title)
	for _, e := range roster.Entries {
		p.line("- %s (VIP: %s)", e.Name, vipLabel(e.IsVIP))
	}
}

func vipLabel(vip bool) string {
	if vip {
		return "да"
	}
	return "нет"
}
