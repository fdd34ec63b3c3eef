package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Catalog is the seed data of a session: who teaches and what is offered.
type Catalog struct {
	Teachers []TeacherEntry `yaml:"teachers" validate:"dive"`
	Courses  []CourseEntry  `yaml:"courses" validate:"dive"`
}

// TeacherEntry describes one teacher.
type TeacherEntry struct {
	Name string `yaml:"name" validate:"required"`
}

// CourseEntry describes one course.
type CourseEntry struct {
	Title    string `yaml:"title" validate:"required"`
	Capacity int    `yaml:"capacity" validate:"gte=0"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Teachers: []TeacherEntry{
			{Name: "Иван Иванович"},
		},
		Courses: []CourseEntry{
			{Title: "Программирование", Capacity: 2},
			{Title: "Дизайн", Capacity: 3},
			{Title: "Маркетинг", Capacity: 2},
		},
	}
}

// LoadCatalog reads a YAML catalog. An empty path returns DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog. Unknown keys are errors
// so that a typo does not silently drop a course.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if err := validator.New().Struct(c); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	return &c, nil
}
