package importer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reSpaces     = regexp.MustCompile(`\s+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// Elements whose contents never make it into an article.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"iframe":   true,
	"noscript": true,
	"form":     true,
}

/*
htmlToMarkdown converts the HTML body of a feed item into the markdown that
articles are written in. Structure that markdown can express survives
(headings, lists, quotes, code, links, images, emphasis) and everything else
is flattened to text.

The result still goes through content sanitization, so nothing here has to be
safe, only readable.
*/
func htmlToMarkdown(source string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return strings.TrimSpace(source)
	}

	var w blockWriter
	w.writeBlocks(doc.Find("body"))
	w.flush()

	out := reBlankLines.ReplaceAllString(w.b.String(), "\n\n")
	return strings.TrimSpace(out)
}

type blockWriter struct {
	b       strings.Builder
	pending strings.Builder // inline content waiting to become a paragraph
}

func (w *blockWriter) block(s string) {
	w.flush()
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	w.b.WriteString(s)
	w.b.WriteString("\n\n")
}

func (w *blockWriter) flush() {
	p := strings.TrimSpace(w.pending.String())
	w.pending.Reset()
	if p != "" {
		w.b.WriteString(p)
		w.b.WriteString("\n\n")
	}
}

func (w *blockWriter) writeBlocks(sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch {
		case skippedElements[name]:
		case name == "p":
			w.block(inline(s))
		case len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6':
			w.block(strings.Repeat("#", int(name[1]-'0')) + " " + strings.TrimSpace(inline(s)))
		case name == "ul" || name == "ol":
			w.block(list(s, name == "ol"))
		case name == "pre":
			w.block("```\n" + strings.Trim(s.Text(), "\n") + "\n```")
		case name == "blockquote":
			var inner blockWriter
			inner.writeBlocks(s)
			inner.flush()
			w.block(quote(inner.b.String()))
		case name == "hr":
			w.block("---")
		case name == "div" || name == "section" || name == "article" || name == "figure" || name == "main":
			w.flush()
			w.writeBlocks(s)
			w.flush()
		case name == "figcaption":
			w.block("*" + strings.TrimSpace(inline(s)) + "*")
		default:
			w.pending.WriteString(inlineNode(s))
		}
	})
}

func inline(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		b.WriteString(inlineNode(s))
	})
	return b.String()
}

func inlineNode(s *goquery.Selection) string {
	name := goquery.NodeName(s)
	switch name {
	case "#text":
		return reSpaces.ReplaceAllString(s.Text(), " ")
	case "a":
		text := strings.TrimSpace(inline(s))
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "javascript:") {
			return text
		}
		if text == "" {
			text = href
		}
		return "[" + text + "](" + href + ")"
	case "img":
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return ""
		}
		alt, _ := s.Attr("alt")
		return "![" + alt + "](" + src + ")"
	case "strong", "b":
		return wrap(inline(s), "**")
	case "em", "i":
		return wrap(inline(s), "*")
	case "code":
		return wrap(s.Text(), "`")
	case "br":
		return "\n"
	case "#comment":
		return ""
	}
	if skippedElements[name] {
		return ""
	}
	return inline(s)
}

// Markers hug the text so markdown recognizes them; surrounding whitespace
// moves outside.
func wrap(text, marker string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}
	lead := text[:strings.Index(text, trimmed)]
	trail := text[len(lead)+len(trimmed):]
	return lead + marker + trimmed + marker + trail
}

func list(sel *goquery.Selection, ordered bool) string {
	var b strings.Builder
	n := 0
	sel.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		n++
		if ordered {
			b.WriteString(strconv.Itoa(n) + ". ")
		} else {
			b.WriteString("- ")
		}
		b.WriteString(strings.TrimSpace(reSpaces.ReplaceAllString(inline(li), " ")))
		b.WriteString("\n")
	})
	return b.String()
}

func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight("> "+line, " ")
	}
	return strings.Join(lines, "\n")
}
