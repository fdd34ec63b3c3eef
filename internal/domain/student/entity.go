// Package student содержит доменную модель студента.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package student

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxNameLength - максимальная длина имени студента в символах.
const MaxNameLength = 100

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - студент, которого оператор записывает на курсы.
// Идентичность студента - это указатель: имена могут совпадать.
type Student struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// Name - отображаемое имя (не обязано быть уникальным).
	Name string

	// isVIP - VIP-студент не ограничен вместимостью курса.
	// Не меняется после создания.
	isVIP bool
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEmptyID - не указан идентификатор.
	ErrEmptyID = errors.New("student id is required")

	// ErrInvalidName - невалидное имя.
	ErrInvalidName = errors.New("invalid student name: must be 1-100 chars")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStudentParams содержит параметры для создания нового студента.
type NewStudentParams struct {
	ID    string
	Name  string
	IsVIP bool
}

// NewStudent создаёт нового студента с валидацией всех полей.
func NewStudent(params NewStudentParams) (*Student, error) {
	if params.ID == "" {
		return nil, ErrEmptyID
	}

	name := strings.TrimSpace(params.Name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return nil, ErrInvalidName
	}

	return &Student{
		ID:    params.ID,
		Name:  name,
		isVIP: params.IsVIP,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// IsVIP возвращает true для студентов, которых не останавливает лимит мест.
func (s *Student) IsVIP() bool {
	return s.isVIP
}

// String возвращает строковое представление студента для логирования.
func (s *Student) String() string {
	return fmt.Sprintf("Student{ID: %s, Name: %s, VIP: %t}", s.ID, s.Name, s.isVIP)
}
