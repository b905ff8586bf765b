package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
levels:
  - id: 1
    intro:
      video_url: https://youtu.be/one
      thumbnail_url: https://img.youtube.com/vi/one/maxresdefault.jpg
    questions:
      - prompt: "Q1"
        options: ["a", "b", "c", "d"]
        correct: 1
      - prompt: "Q2"
        options: ["a", "b"]
        correct: 0
  - id: 2
    questions:
      - prompt: "Q1"
        options: ["x", "y", "z"]
        correct: 2
  - id: 3
`

func TestParse_Sample(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, c.LevelIDs())
	assert.Equal(t, 1, c.First())
	assert.Equal(t, 2, c.QuestionCount(1))
	assert.Equal(t, 0, c.QuestionCount(3))
	assert.Equal(t, 0, c.QuestionCount(99))

	intro, ok := c.Intro(1)
	require.True(t, ok)
	assert.Equal(t, "https://youtu.be/one", intro.VideoURL)

	_, ok = c.Intro(2)
	assert.False(t, ok)

	q, ok := c.Question(2, 0)
	require.True(t, ok)
	assert.Equal(t, 2, q.Correct)

	_, ok = c.Question(2, 1)
	assert.False(t, ok)
}

func TestNext(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	next, ok := c.Next(1)
	require.True(t, ok)
	assert.Equal(t, 2, next)

	next, ok = c.Next(2)
	require.True(t, ok)
	assert.Equal(t, 3, next)

	_, ok = c.Next(3)
	assert.False(t, ok)
}

func TestNext_SparseIDs(t *testing.T) {
	c, err := New([]Level{{ID: 2}, {ID: 5}, {ID: 9}})
	require.NoError(t, err)

	next, ok := c.Next(5)
	require.True(t, ok)
	assert.Equal(t, 9, next)

	assert.False(t, c.HasLevel(3))
}

func TestValidate_Rejects(t *testing.T) {
	long := strings.Repeat("x", MaxPromptLength+1)
	tests := []struct {
		name   string
		levels []Level
	}{
		{"empty", nil},
		{"zero id", []Level{{ID: 0}}},
		{"duplicate", []Level{{ID: 1}, {ID: 1}}},
		{"descending", []Level{{ID: 2}, {ID: 1}}},
		{"intro without thumbnail", []Level{{ID: 1, Intro: &IntroMedia{VideoURL: "v"}}}},
		{"empty prompt", []Level{{ID: 1, Questions: []Question{{Options: []string{"a", "b"}}}}}},
		{"long prompt", []Level{{ID: 1, Questions: []Question{{Prompt: long, Options: []string{"a", "b"}}}}}},
		{"one option", []Level{{ID: 1, Questions: []Question{{Prompt: "q", Options: []string{"a"}}}}}},
		{"empty option", []Level{{ID: 1, Questions: []Question{{Prompt: "q", Options: []string{"a", ""}}}}}},
		{"correct out of range", []Level{{ID: 1, Questions: []Question{{Prompt: "q", Options: []string{"a", "b"}, Correct: 2}}}}},
		{"negative correct", []Level{{ID: 1, Questions: []Question{{Prompt: "q", Options: []string{"a", "b"}, Correct: -1}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.levels)
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	levels := []Level{{ID: 1, Questions: []Question{{Prompt: "q", Options: []string{"a", "b"}, Correct: 1}}}}
	c, err := New(levels)
	require.NoError(t, err)

	levels[0].Questions[0].Options[0] = "mutated"
	levels[0].Questions[0].Correct = 0

	q, ok := c.Question(1, 0)
	require.True(t, ok)
	assert.Equal(t, "a", q.Options[0])
	assert.Equal(t, 1, q.Correct)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("levels: ["))
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestLoad_ShippedCatalog(t *testing.T) {
	path := filepath.Join("..", "..", "catalog.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("catalog.yaml not present")
	}

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, c.LevelIDs())
	assert.Equal(t, 6, c.QuestionCount(1))
	assert.Equal(t, 3, c.QuestionCount(2))
	assert.Equal(t, 4, c.QuestionCount(3))
}
