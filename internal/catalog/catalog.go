// Package catalog holds the static quiz content: ordered levels, their questions and intro media.
// A Catalog is built once at startup and never mutated afterwards.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Limits imposed by Telegram quiz polls.
const (
	MaxPromptLength = 300
	MaxOptionLength = 100
	MinOptions      = 2
	MaxOptions      = 10
)

var ErrInvalidCatalog = errors.New("invalid catalog")

type Question struct {
	Prompt  string   `yaml:"prompt"`
	Options []string `yaml:"options"`
	Correct int      `yaml:"correct"`
}

type IntroMedia struct {
	VideoURL     string `yaml:"video_url"`
	ThumbnailURL string `yaml:"thumbnail_url"`
	// Caption overrides the intro_caption text template when set.
	Caption string `yaml:"caption"`
}

type Level struct {
	ID        int         `yaml:"id"`
	Intro     *IntroMedia `yaml:"intro"`
	Questions []Question  `yaml:"questions"`
}

type file struct {
	Levels []Level `yaml:"levels"`
}

type Catalog struct {
	levels []Level
	index  map[int]int
}

// Load reads and validates a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return New(f.Levels)
}

// New validates levels and returns an immutable catalog. Levels must already be in ascending id order.
func New(levels []Level) (*Catalog, error) {
	if err := Validate(levels); err != nil {
		return nil, err
	}

	c := &Catalog{
		levels: make([]Level, len(levels)),
		index:  make(map[int]int, len(levels)),
	}
	for i, l := range levels {
		c.levels[i] = cloneLevel(l)
		c.index[l.ID] = i
	}
	return c, nil
}

func Validate(levels []Level) error {
	if len(levels) == 0 {
		return fmt.Errorf("%w: no levels defined", ErrInvalidCatalog)
	}

	prev := 0
	for _, l := range levels {
		if l.ID < 1 {
			return fmt.Errorf("%w: level id %d must be >= 1", ErrInvalidCatalog, l.ID)
		}
		if l.ID <= prev {
			return fmt.Errorf("%w: level %d is out of order or duplicated", ErrInvalidCatalog, l.ID)
		}
		prev = l.ID

		if l.Intro != nil {
			if l.Intro.ThumbnailURL == "" || l.Intro.VideoURL == "" {
				return fmt.Errorf("%w: level %d intro needs video_url and thumbnail_url", ErrInvalidCatalog, l.ID)
			}
		}

		for i, q := range l.Questions {
			if err := validateQuestion(q); err != nil {
				return fmt.Errorf("%w: level %d question %d: %v", ErrInvalidCatalog, l.ID, i+1, err)
			}
		}
	}
	return nil
}

func validateQuestion(q Question) error {
	if q.Prompt == "" {
		return errors.New("empty prompt")
	}
	if utf8.RuneCountInString(q.Prompt) > MaxPromptLength {
		return fmt.Errorf("prompt longer than %d characters", MaxPromptLength)
	}
	if len(q.Options) < MinOptions || len(q.Options) > MaxOptions {
		return fmt.Errorf("needs %d..%d options, got %d", MinOptions, MaxOptions, len(q.Options))
	}
	for i, o := range q.Options {
		if o == "" {
			return fmt.Errorf("option %d is empty", i)
		}
		if utf8.RuneCountInString(o) > MaxOptionLength {
			return fmt.Errorf("option %d longer than %d characters", i, MaxOptionLength)
		}
	}
	if q.Correct < 0 || q.Correct >= len(q.Options) {
		return fmt.Errorf("correct index %d out of range", q.Correct)
	}
	return nil
}

func (c *Catalog) Level(id int) (Level, bool) {
	i, ok := c.index[id]
	if !ok {
		return Level{}, false
	}
	return c.levels[i], true
}

func (c *Catalog) HasLevel(id int) bool {
	_, ok := c.index[id]
	return ok
}

// QuestionCount returns 0 for unknown levels.
func (c *Catalog) QuestionCount(id int) int {
	l, ok := c.Level(id)
	if !ok {
		return 0
	}
	return len(l.Questions)
}

func (c *Catalog) Question(levelID, index int) (Question, bool) {
	l, ok := c.Level(levelID)
	if !ok || index < 0 || index >= len(l.Questions) {
		return Question{}, false
	}
	return l.Questions[index], true
}

func (c *Catalog) Intro(id int) (IntroMedia, bool) {
	l, ok := c.Level(id)
	if !ok || l.Intro == nil {
		return IntroMedia{}, false
	}
	return *l.Intro, true
}

// Next returns the level that follows id in catalog order.
func (c *Catalog) Next(id int) (int, bool) {
	pos := sort.Search(len(c.levels), func(i int) bool { return c.levels[i].ID > id })
	if pos >= len(c.levels) {
		return 0, false
	}
	return c.levels[pos].ID, true
}

func (c *Catalog) First() int {
	return c.levels[0].ID
}

func (c *Catalog) LevelIDs() []int {
	ids := make([]int, len(c.levels))
	for i, l := range c.levels {
		ids[i] = l.ID
	}
	return ids
}

func cloneLevel(l Level) Level {
	out := Level{ID: l.ID}
	if l.Intro != nil {
		intro := *l.Intro
		out.Intro = &intro
	}
	out.Questions = make([]Question, len(l.Questions))
	for i, q := range l.Questions {
		out.Questions[i] = Question{
			Prompt:  q.Prompt,
			Options: append([]string(nil), q.Options...),
			Correct: q.Correct,
		}
	}
	return out
}
