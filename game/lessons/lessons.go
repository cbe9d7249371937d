// Package lessons holds the static catalog of driving lessons.
//
// The catalog is embedded in the binary, validated against its JSON schema
// and decoded once on first use. Lookups return copies, so the catalog is
// never mutated after loading.
package lessons

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed lessons.json
var catalogPayload []byte

//go:embed lessons.schema.json
var schemaPayload string

const schemaURL = "lessons.schema.json"

// ErrLessonNotFound matches any *NotFoundError via errors.Is.
var ErrLessonNotFound = errors.New("lesson not found")

// Lesson is a single instructional record.
type Lesson struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Tips        []string `json:"tips,omitempty"`
}

// Summary identifies a lesson without its content.
type Summary struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// NotFoundError is returned for unknown lesson ids and lists the valid ones.
type NotFoundError struct {
	ID        int       `json:"id"`
	Available []Summary `json:"available_lessons"`
}

func (e *NotFoundError) Error() string {
	ids := make([]string, len(e.Available))
	for i, s := range e.Available {
		ids[i] = fmt.Sprint(s.ID)
	}
	return fmt.Sprintf("lesson %d not found, available lessons: %s", e.ID, strings.Join(ids, ", "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrLessonNotFound
}

// Catalog is an immutable, id-ordered set of lessons.
type Catalog struct {
	lessons []Lesson
	byID    map[int]int
}

type catalogFile struct {
	Lessons []Lesson `json:"lessons"`
}

// Parse validates data against the catalog schema and decodes it.
func Parse(data []byte) (*Catalog, error) {
	schema, err := jsonschema.CompileString(schemaURL, schemaPayload)
	if err != nil {
		return nil, fmt.Errorf("compile lesson schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode lesson catalog: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate lesson catalog: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode lesson catalog: %w", err)
	}

	sort.Slice(file.Lessons, func(i, j int) bool { return file.Lessons[i].ID < file.Lessons[j].ID })

	c := &Catalog{lessons: file.Lessons, byID: make(map[int]int, len(file.Lessons))}
	for i, l := range file.Lessons {
		if _, dup := c.byID[l.ID]; dup {
			return nil, fmt.Errorf("validate lesson catalog: duplicate lesson id %d", l.ID)
		}
		c.byID[l.ID] = i
	}
	return c, nil
}

// Get returns the lesson with the given id or a *NotFoundError.
func (c *Catalog) Get(id int) (Lesson, error) {
	i, ok := c.byID[id]
	if !ok {
		return Lesson{}, &NotFoundError{ID: id, Available: c.List()}
	}
	return clone(c.lessons[i]), nil
}

// List returns the id and title of every lesson in id order.
func (c *Catalog) List() []Summary {
	out := make([]Summary, len(c.lessons))
	for i, l := range c.lessons {
		out[i] = Summary{ID: l.ID, Title: l.Title}
	}
	return out
}

// Len returns the number of lessons.
func (c *Catalog) Len() int {
	return len(c.lessons)
}

func clone(l Lesson) Lesson {
	l.Steps = append([]string(nil), l.Steps...)
	if l.Tips != nil {
		l.Tips = append([]string(nil), l.Tips...)
	}
	return l
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog. It panics if the embedded data is invalid.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(catalogPayload)
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCatalog
}

// Get looks a lesson up in the embedded catalog.
func Get(id int) (Lesson, error) {
	return Default().Get(id)
}

// List summarizes the embedded catalog.
func List() []Summary {
	return Default().List()
}
