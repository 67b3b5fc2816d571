package parsing

import (
	"html"
	"strings"

	"mvdan.cc/xurls/v2"
)

var reStrictURL = xurls.Strict()

// RenderComment turns plain comment text into HTML. Everything is escaped,
// then bare URLs become nofollow links and newlines become <br>.
func RenderComment(source string) string {
	source = strings.ReplaceAll(source, "\r\n", "\n")

	var b strings.Builder
	last := 0
	for _, loc := range reStrictURL.FindAllStringIndex(source, -1) {
		b.WriteString(escapeLines(source[last:loc[0]]))

		url := source[loc[0]:loc[1]]
		b.WriteString(`<a href="`)
		b.WriteString(html.EscapeString(url))
		b.WriteString(`" rel="nofollow noopener" target="_blank">`)
		b.WriteString(html.EscapeString(url))
		b.WriteString(`</a>`)

		last = loc[1]
	}
	b.WriteString(escapeLines(source[last:]))

	return b.String()
}

func escapeLines(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}
