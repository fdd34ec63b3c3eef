// Package console реализует консольный интерфейс реестра: меню из шести
// команд, форматирование ответов и печать уведомлений курса.
package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/alem-hub/course-registry/internal/application/registry"
	"github.com/alem-hub/course-registry/internal/domain/shared"
	"github.com/alem-hub/course-registry/pkg/logger"
)

// errInputClosed - ввод закончился (EOF) или контекст отменён.
var errInputClosed = errors.New("console: input closed")

// Утвердительные ответы на вопрос о VIP-статусе.
var affirmative = map[string]struct{}{
	"да":  {},
	"yes": {},
	"y":   {},
}

// ══════════════════════════════════════════════════════════════════════════════
// MENU
// ══════════════════════════════════════════════════════════════════════════════

// Menu - цикл главного меню.
type Menu struct {
	registry  *registry.Registry
	presenter *Presenter
	in        io.Reader
	lines     <-chan string
	prompts   bool
	logger    *logger.Logger
}

// MenuOptions содержит зависимости меню.
type MenuOptions struct {
	// In - источник команд оператора.
	In io.Reader

	// Sinks - общий вывод меню и уведомлений.
	Sinks *Sinks

	// ShowPrompts печатает приглашения ко вводу.
	// Обычно включается, только если ввод - терминал.
	ShowPrompts bool

	Logger *logger.Logger
}

// NewMenu создаёт меню. Чтение ввода начинается в Run.
func NewMenu(reg *registry.Registry, opts MenuOptions) *Menu {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Menu{
		registry:  reg,
		presenter: NewPresenter(opts.Sinks),
		in:        opts.In,
		prompts:   opts.ShowPrompts,
		logger:    opts.Logger.With(logger.Component("console")),
	}
}

// readLines читает строки в отдельной горутине, чтобы Run мог
// реагировать на отмену контекста во время ожидания ввода.
// После отмены ctx горутина завершается на следующей строке,
// даже если её уже никто не читает.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		for ctx.Err() == nil && scanner.Scan() {
			select {
			case out <- strings.TrimRight(scanner.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Run крутит меню до команды выхода, конца ввода или отмены ctx.
func (m *Menu) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.lines = readLines(ctx, m.in)

	for {
		m.presenter.Menu()
		choice, err := m.ask(ctx, "Введите номер действия: ")
		if err != nil {
			m.presenter.Goodbye()
			m.logger.Debug("menu stopped", logger.String("reason", "input closed"))
			return nil
		}

		m.logger.Debug("menu choice", logger.String("choice", choice))

		switch strings.TrimSpace(choice) {
		case "1":
			err = m.addStudent(ctx)
		case "2":
			m.presenter.Courses(m.registry.Courses())
		case "3":
			err = m.registerStudent(ctx)
		case "4":
			err = m.showStudents(ctx)
		case "5":
			err = m.completeCourses(ctx)
		case "6":
			m.presenter.Goodbye()
			return nil
		default:
			m.presenter.InvalidChoice()
		}

		if errors.Is(err, errInputClosed) {
			m.presenter.Goodbye()
			return nil
		}
	}
}

// ask печатает приглашение и ждёт одну строку.
func (m *Menu) ask(ctx context.Context, prompt string) (string, error) {
	if m.prompts {
		m.presenter.prompt(prompt)
	}
	select {
	case <-ctx.Done():
		return "", errInputClosed
	case line, ok := <-m.lines:
		if !ok {
			return "", errInputClosed
		}
		return line, nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func (m *Menu) addStudent(ctx context.Context) error {
	name, err := m.ask(ctx, "Введите имя студента: ")
	if err != nil {
		return err
	}
	answer, err := m.ask(ctx, "VIP-студент? (да/нет): ")
	if err != nil {
		return err
	}

	_, isVIP := affirmative[strings.ToLower(strings.TrimSpace(answer))]

	s, err := m.registry.AddStudent(ctx, registry.AddStudentCommand{Name: name, IsVIP: isVIP})
	if err != nil {
		if !shared.IsValidation(err) {
			m.logger.Error("failed to add student", logger.Err(err))
			return nil
		}
		m.logger.Warn("student rejected", logger.Err(err))
		m.presenter.InvalidStudentName()
		return nil
	}

	m.presenter.StudentAdded(s.Name)
	return nil
}

func (m *Menu) registerStudent(ctx context.Context) error {
	m.presenter.Courses(m.registry.Courses())

	selection, err := m.ask(ctx, "Выберите номера курсов через запятую: ")
	if err != nil {
		return err
	}

	m.presenter.Students(m.registry.Students())

	rawIndex, err := m.ask(ctx, "Выберите номер студента: ")
	if err != nil {
		return err
	}

	index, err := registry.ParseIndex(rawIndex, len(m.registry.Students()))
	if err != nil {
		m.presenter.InvalidStudent()
		return nil
	}

	_, err = m.registry.RegisterStudent(ctx, registry.RegisterCommand{
		StudentIndex:    index,
		CourseSelection: selection,
		OnItem:          m.presenter.RegistrationItem,
	})
	if shared.IsInvalidSelection(err) {
		m.presenter.InvalidStudent()
	}
	return nil
}

func (m *Menu) showStudents(ctx context.Context) error {
	m.presenter.Courses(m.registry.Courses())

	raw, err := m.ask(ctx, "Выберите номер курса для просмотра студентов: ")
	if err != nil {
		return err
	}

	index, err := registry.ParseIndex(raw, len(m.registry.Courses()))
	if err != nil {
		m.presenter.InvalidCourse()
		return nil
	}

	roster, err := m.registry.ListStudents(ctx, index)
	if err != nil {
		m.presenter.InvalidCourse()
		return nil
	}

	m.presenter.Roster(roster)
	return nil
}

func (m *Menu) completeCourses(ctx context.Context) error {
	m.presenter.Courses(m.registry.Courses())

	selection, err := m.ask(ctx, "Выберите номера курсов для завершения через запятую: ")
	if err != nil {
		return err
	}

	m.presenter.CompletionReport(m.registry.CompleteCourses(ctx, selection))
	return nil
}
