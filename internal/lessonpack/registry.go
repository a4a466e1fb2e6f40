package lessonpack

import (
	"fmt"
	"sort"
	"sync"

	"github.com/casebooklabs/casebook/internal/domain"
)

// Registry provides access to loaded lessons
type Registry struct {
	loader  *Loader
	mu      sync.RWMutex
	lessons map[string]*domain.Lesson
}

// NewRegistry creates a new lesson registry
func NewRegistry(loader *Loader) *Registry {
	return &Registry{
		loader:  loader,
		lessons: make(map[string]*domain.Lesson),
	}
}

// Load loads all lessons into memory
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lessons, err := r.loader.LoadAll()
	if err != nil {
		return fmt.Errorf("load lessons: %w", err)
	}

	for _, lesson := range lessons {
		r.lessons[lesson.ID] = lesson
	}
	return nil
}

// Reload discards cached lessons and loads from disk again
func (r *Registry) Reload() error {
	r.mu.Lock()
	r.lessons = make(map[string]*domain.Lesson)
	r.mu.Unlock()

	return r.Load()
}

// Get returns a lesson by ID
func (r *Registry) Get(id string) (*domain.Lesson, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lesson, ok := r.lessons[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLessonNotFound, id)
	}
	return lesson, nil
}

// List returns all lessons ordered by id
func (r *Registry) List() []*domain.Lesson {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lessons := make([]*domain.Lesson, 0, len(r.lessons))
	for _, lesson := range r.lessons {
		lessons = append(lessons, lesson)
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].ID < lessons[j].ID })
	return lessons
}

// Count returns the number of loaded lessons
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lessons)
}
