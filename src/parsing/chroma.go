package parsing

import "github.com/alecthomas/chroma/formatters/html"

// Code blocks get CSS classes instead of inline styles so the frontend can
// theme them. The wrapper <pre> comes from highlightExtension.
var ChromaOptions = []html.Option{
	html.WithClasses(true),
	html.WithPreWrapper(nopPreWrapper{}),
}

type nopPreWrapper struct{}

var _ html.PreWrapper = nopPreWrapper{}

func (w nopPreWrapper) Start(code bool, styleAttr string) string {
	return ""
}

func (w nopPreWrapper) End(code bool) string {
	return ""
}
