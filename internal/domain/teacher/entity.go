// Package teacher содержит доменную модель преподавателя.
package teacher

import (
	"errors"
	"strings"

	"github.com/alem-hub/course-registry/internal/domain/shared"
)

// Teacher - преподаватель, которому приходит число записавшихся студентов.
// Количество преподавателей у курса не ограничено.
type Teacher struct {
	// ID - внутренний уникальный идентификатор.
	ID string

	// Name - имя преподавателя.
	Name string
}

var (
	// ErrEmptyID - не указан идентификатор.
	ErrEmptyID = errors.New("teacher id is required")

	// ErrEmptyName - пустое имя.
	ErrEmptyName = errors.New("teacher name is required")
)

// NewTeacher создаёт преподавателя с валидацией.
// Ошибки оборачиваются в shared.ErrInvalidTeacher.
func NewTeacher(id, name string) (*Teacher, error) {
	if id == "" {
		return nil, shared.ErrInvalidTeacher.WithDetail(ErrEmptyID)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.ErrInvalidTeacher.WithDetail(ErrEmptyName)
	}

	return &Teacher{ID: id, Name: name}, nil
}
