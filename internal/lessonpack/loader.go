// Package lessonpack loads authored lessons from YAML files on disk and
// serves them through an in-memory registry. Lessons are validated on load
// so the engine only ever sees well-formed slide decks.
package lessonpack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/casebooklabs/casebook/internal/domain"
)

// LessonFile represents the YAML structure of an authored lesson
type LessonFile struct {
	ID                       string      `yaml:"id"`
	Title                    string      `yaml:"title"`
	Description              string      `yaml:"description"`
	EstimatedDurationMinutes int         `yaml:"estimated_duration_minutes"`
	Slides                   []SlideFile `yaml:"slides"`
}

// SlideFile represents one slide in a lesson YAML file. Variant fields sit
// next to the type discriminant, mirroring the JSON wire form.
type SlideFile struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`

	// info / video
	Title           string `yaml:"title"`
	Content         string `yaml:"content"`
	CodeSnippet     string `yaml:"code_snippet"`
	ImageURL        string `yaml:"image_url"`
	URL             string `yaml:"url"`
	DurationSeconds int    `yaml:"duration_seconds"`

	// mcq
	Question string `yaml:"question"`
	Options  []struct {
		ID   string `yaml:"id"`
		Text string `yaml:"text"`
	} `yaml:"options"`
	CorrectAnswerID string `yaml:"correct_answer_id"`
	Explanation     string `yaml:"explanation"`

	// drag_drop
	Items []struct {
		ID   string `yaml:"id"`
		Text string `yaml:"text"`
	} `yaml:"items"`
	Categories     []string          `yaml:"categories"`
	CorrectMapping map[string]string `yaml:"correct_mapping"`

	// interactive_investigation
	Description string   `yaml:"description"`
	Context     string   `yaml:"context"`
	Solution    string   `yaml:"solution"`
	Hints       []string `yaml:"hints"`
}

// Loader reads lessons from a directory of YAML files
type Loader struct {
	basePath string
}

// NewLoader creates a lesson loader rooted at basePath
func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

// LoadLesson loads and validates a single lesson by id. The file is
// expected at basePath/<id>.yaml.
func (l *Loader) LoadLesson(id string) (*domain.Lesson, error) {
	path := filepath.Join(l.basePath, id+".yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLessonNotFound, id)
		}
		return nil, fmt.Errorf("read lesson file: %w", err)
	}

	return l.parseLesson(data, id)
}

// LoadAll loads every lesson file in the base directory.
func (l *Loader) LoadAll() ([]*domain.Lesson, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("read lessons directory: %w", err)
	}

	var lessons []*domain.Lesson
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(l.basePath, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read lesson file %s: %w", entry.Name(), err)
		}

		id := strings.TrimSuffix(entry.Name(), ".yaml")
		lesson, err := l.parseLesson(data, id)
		if err != nil {
			return nil, fmt.Errorf("load lesson %s: %w", id, err)
		}
		lessons = append(lessons, lesson)
	}

	return lessons, nil
}

func (l *Loader) parseLesson(data []byte, fallbackID string) (*domain.Lesson, error) {
	var file LessonFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse lesson file: %w", err)
	}

	lesson := &domain.Lesson{
		ID:                       file.ID,
		Title:                    file.Title,
		Description:              file.Description,
		EstimatedDurationMinutes: file.EstimatedDurationMinutes,
		Slides:                   make([]domain.Slide, len(file.Slides)),
		CreatedAt:                time.Now(),
	}
	if lesson.ID == "" {
		lesson.ID = fallbackID
	}

	for i, sf := range file.Slides {
		slide, err := buildSlide(sf)
		if err != nil {
			return nil, fmt.Errorf("slide %d (%s): %w", i, sf.ID, err)
		}
		lesson.Slides[i] = slide
	}

	if err := lesson.Validate(); err != nil {
		return nil, fmt.Errorf("validate lesson: %w", err)
	}

	return lesson, nil
}

func buildSlide(sf SlideFile) (domain.Slide, error) {
	slide := domain.Slide{
		ID:   sf.ID,
		Kind: domain.SlideKind(sf.Type),
	}

	switch slide.Kind {
	case domain.SlideInfo:
		slide.Info = &domain.InfoContent{
			Title:       sf.Title,
			Content:     sf.Content,
			CodeSnippet: sf.CodeSnippet,
			ImageURL:    sf.ImageURL,
		}

	case domain.SlideVideo:
		slide.Video = &domain.VideoContent{
			Title:           sf.Title,
			URL:             sf.URL,
			DurationSeconds: sf.DurationSeconds,
		}

	case domain.SlideMCQ:
		options := make([]domain.MCQOption, len(sf.Options))
		for i, o := range sf.Options {
			options[i] = domain.MCQOption{ID: o.ID, Text: o.Text}
		}
		slide.MCQ = &domain.MCQContent{
			Question:        sf.Question,
			Options:         options,
			CorrectAnswerID: sf.CorrectAnswerID,
			Explanation:     sf.Explanation,
		}

	case domain.SlideDragDrop:
		items := make([]domain.DragDropItem, len(sf.Items))
		for i, it := range sf.Items {
			items[i] = domain.DragDropItem{ID: it.ID, Text: it.Text}
		}
		slide.DragDrop = &domain.DragDropContent{
			Question:       sf.Question,
			Items:          items,
			Categories:     sf.Categories,
			CorrectMapping: sf.CorrectMapping,
			Explanation:    sf.Explanation,
		}

	case domain.SlideInvestigation:
		slide.Investigation = &domain.InvestigationContent{
			Title:       sf.Title,
			Description: sf.Description,
			Context:     sf.Context,
			Solution:    sf.Solution,
			Hints:       sf.Hints,
		}

	default:
		return domain.Slide{}, fmt.Errorf("%w: unknown slide type %q", domain.ErrInvalidSlide, sf.Type)
	}

	return slide, nil
}
