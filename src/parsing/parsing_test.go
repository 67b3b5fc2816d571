package parsing

import (
	"strings"
	"testing"

	"github.com/arsyadal/fastblog/src/utils"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeContent(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		html := SanitizeContent("# Hello\n\nSome **bold** text.")
		assert.Contains(t, html, "<h1")
		assert.Contains(t, html, "<strong>bold</strong>")
	})
	t.Run("unsafe html is removed", func(t *testing.T) {
		html := SanitizeContent("before\n\n<script>alert(1)</script>\n\nafter <img src=x onerror=alert(1)>")
		t.Log(html)
		assert.NotContains(t, html, "<script")
		assert.NotContains(t, html, "alert")
		assert.NotContains(t, html, "onerror")
		assert.Contains(t, html, "before")
		assert.Contains(t, html, "after")
	})
	t.Run("safe html is kept", func(t *testing.T) {
		src := "<p>Rust ownership explained in depth with <strong>many</strong> examples and notes.</p>"
		html := SanitizeContent(src)
		t.Log(html)
		assert.Contains(t, html, "<strong>many</strong>")
		assert.NotContains(t, html, "raw HTML omitted")

		assert.Equal(t, "Rust ownership explained in depth with many examples and notes.", Excerpt(html))
		assert.Equal(t, "Rust ownership explained in depth with many examples and notes.", ShareDescription(nil, nil, html))
		assert.Contains(t, SearchExcerpt(PlainText(html), "ownership"), "ownership explained")
	})
	t.Run("html attributes", func(t *testing.T) {
		html := SanitizeContent(`<p style="color:red" onclick="x()"><a href="javascript:alert(1)">bad</a> <a href="https://example.com">good</a></p>`)
		t.Log(html)
		assert.NotContains(t, html, "onclick")
		assert.NotContains(t, html, "style=")
		assert.NotContains(t, html, "javascript:")
		assert.Contains(t, html, `href="https://example.com"`)
	})
	t.Run("javascript links", func(t *testing.T) {
		html := SanitizeContent("[click](javascript:alert(1))")
		assert.NotContains(t, html, "javascript:")
	})
	t.Run("fenced code blocks", func(t *testing.T) {
		html := SanitizeContent("```go\nfunc main() {\n\tfmt.Println(\"Hello, world!\")\n}\n```")
		t.Log(html)
		assert.Equal(t, 1, strings.Count(html, "<pre"))
		assert.Contains(t, html, `class="article-code"`)
		assert.Contains(t, html, "Println")
	})
	t.Run("deterministic", func(t *testing.T) {
		src := "Tables | too\n--- | ---\na | b\n"
		assert.Equal(t, SanitizeContent(src), SanitizeContent(src))
	})
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, " Hello  world ", StripHTML("<p>Hello <b>world</b></p>"))
	assert.Equal(t, "no tags", StripHTML("no tags"))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Hello world again", PlainText("<h1>Hello</h1>\n<p>world <em>again</em></p>"))
}

func TestReadingTime(t *testing.T) {
	cases := []struct {
		name     string
		words    int
		expected int
	}{
		{"empty", 0, 1},
		{"short", 50, 1},
		{"just under two", 399, 1},
		{"two minutes", 400, 2},
		{"long", 2000, 10},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			html := "<p>" + strings.Repeat("word ", c.words) + "</p>"
			assert.Equal(t, c.expected, ReadingTime(html))
		})
	}
}

func TestExcerpt(t *testing.T) {
	t.Run("short text is kept", func(t *testing.T) {
		assert.Equal(t, "Hello world", Excerpt("<p>Hello world</p>"))
	})
	t.Run("cut at last space", func(t *testing.T) {
		html := "<p>" + strings.Repeat("abcd ", 60) + "</p>"
		excerpt := Excerpt(html)
		assert.True(t, strings.HasSuffix(excerpt, "abcd..."), excerpt)
		assert.LessOrEqual(t, len(excerpt), ExcerptLength+3)
	})
	t.Run("spacing is collapsed", func(t *testing.T) {
		assert.Equal(t, "Title Body text here", Excerpt("<h2>Title</h2>\n<p>Body <em>text</em>   here</p>\n"))
	})
	t.Run("no spaces", func(t *testing.T) {
		excerpt := Excerpt(strings.Repeat("x", 300))
		assert.Equal(t, strings.Repeat("x", 200)+"...", excerpt)
	})
	t.Run("multibyte", func(t *testing.T) {
		excerpt := Excerpt(strings.Repeat("é", 300))
		assert.Equal(t, strings.Repeat("é", 200)+"...", excerpt)
	})
}

func TestShareDescription(t *testing.T) {
	long := "<p>" + strings.Repeat("a", 200) + "</p>"

	assert.Equal(t, "the excerpt", ShareDescription(utils.P("the excerpt"), utils.P("sub"), long))
	assert.Equal(t, "sub", ShareDescription(nil, utils.P("sub"), long))
	assert.Equal(t, "sub", ShareDescription(utils.P(""), utils.P("sub"), long))

	desc := ShareDescription(nil, nil, long)
	assert.Equal(t, strings.Repeat("a", 157)+"...", desc)
	assert.Len(t, desc, 160)

	assert.Equal(t, "short", ShareDescription(nil, nil, "<p>short</p>"))
}

func TestSearchExcerpt(t *testing.T) {
	t.Run("match in the middle", func(t *testing.T) {
		text := strings.Repeat("x", 100) + "Golang" + strings.Repeat("y", 200)
		excerpt := SearchExcerpt(text, "golang")
		assert.Equal(t, "..."+strings.Repeat("x", 50)+"Golang"+strings.Repeat("y", 100)+"...", excerpt)
	})
	t.Run("match at the start", func(t *testing.T) {
		excerpt := SearchExcerpt("golang is fun", "GOLANG")
		assert.Equal(t, "golang is fun", excerpt)
	})
	t.Run("no match", func(t *testing.T) {
		text := strings.Repeat("z", 200)
		assert.Equal(t, strings.Repeat("z", 150)+"...", SearchExcerpt(text, "golang"))
		assert.Equal(t, "short", SearchExcerpt("short", "golang"))
	})
}

func TestRenderComment(t *testing.T) {
	t.Run("escapes html", func(t *testing.T) {
		assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", RenderComment("<b>hi</b>"))
	})
	t.Run("newlines", func(t *testing.T) {
		assert.Equal(t, "one<br>two<br>three", RenderComment("one\ntwo\r\nthree"))
	})
	t.Run("links", func(t *testing.T) {
		html := RenderComment("see https://example.com/a?b=1&c=2 for more")
		t.Log(html)
		assert.Contains(t, html, `<a href="https://example.com/a?b=1&amp;c=2" rel="nofollow noopener" target="_blank">`)
		assert.True(t, strings.HasPrefix(html, "see "))
		assert.True(t, strings.HasSuffix(html, " for more"))
	})
}
