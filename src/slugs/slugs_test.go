package slugs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		title    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"  Hello   World  ", "hello-world"},
		{"Go 1.24: What's New?", "go-124-whats-new"},
		{"--already-dashed--", "already-dashed"},
		{"Tabs\tand\nnewlines", "tabs-and-newlines"},
		{"Café au lait", "caf-au-lait"},
		{"!!!", ""},
		{"", ""},
	}
	for _, c := range cases {
		t.Run(c.title, func(t *testing.T) {
			slug := Slugify(c.title)
			assert.Equal(t, c.expected, slug)
			if slug != "" {
				assert.True(t, IsValid(slug), slug)
			}
		})
	}
}

func TestBase(t *testing.T) {
	assert.Equal(t, "hello", Base("Hello", FallbackArticle))
	assert.Equal(t, "article", Base("???", FallbackArticle))
	assert.Equal(t, "draft", Base("", FallbackDraft))
}

func TestCandidate(t *testing.T) {
	assert.Equal(t, "hello-world", Candidate("hello-world", 0))
	assert.Equal(t, "hello-world-1", Candidate("hello-world", 1))
	assert.Equal(t, "hello-world-2", Candidate("hello-world", 2))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("a"))
	assert.True(t, IsValid("a-1-b"))
	assert.False(t, IsValid("-a"))
	assert.False(t, IsValid("a--b"))
	assert.False(t, IsValid("A"))
	assert.False(t, IsValid(""))
}
