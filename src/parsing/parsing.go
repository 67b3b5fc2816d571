package parsing

import (
	"bytes"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Used for generating the stored HTML for an article. Raw HTML passes through
// the renderer untouched; ArticlePolicy is what makes the output safe.
var ArticleMarkdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlightExtension,
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

var reChromaClass = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// ArticlePolicy keeps the usual user-generated-content tags and drops
// scripts, event handlers and unsafe URL schemes. Highlighted code keeps its
// chroma classes.
var ArticlePolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(reChromaClass).OnElements("pre", "code", "span")
	return p
}()

// SanitizeContent renders article source, markdown or HTML, to the HTML we
// store and serve. It is deterministic and never fails.
func SanitizeContent(source string) string {
	return ArticlePolicy.Sanitize(ParseMarkdown(source, ArticleMarkdown))
}

func ParseMarkdown(source string, md goldmark.Markdown) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		panic(err)
	}

	return buf.String()
}

var highlightExtension = highlighting.NewHighlighting(
	highlighting.WithFormatOptions(ChromaOptions...),
	highlighting.WithWrapperRenderer(func(w util.BufWriter, context highlighting.CodeBlockContext, entering bool) {
		if entering {
			w.WriteString(`<pre class="article-code">`)
		} else {
			w.WriteString(`</pre>`)
		}
	}),
)
