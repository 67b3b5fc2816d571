package parsing

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	WordsPerMinute = 200

	ExcerptLength          = 200
	ShareDescriptionLength = 160
	SearchExcerptBefore    = 50
	SearchExcerptAfter     = 100
	SearchExcerptFallback  = 150
)

var reHTMLTag = regexp.MustCompile(`<[^>]*>`)

// StripHTML replaces every tag with a space. Entities are left alone.
func StripHTML(html string) string {
	return reHTMLTag.ReplaceAllString(html, " ")
}

// PlainText strips tags and collapses the leftover whitespace.
func PlainText(html string) string {
	return strings.Join(strings.Fields(StripHTML(html)), " ")
}

// ReadingTime is the word count of the tag-stripped text at 200 words per
// minute, never less than one minute.
func ReadingTime(html string) int {
	words := len(strings.Fields(StripHTML(html)))
	return max(1, words/WordsPerMinute)
}

// Excerpt derives a summary from HTML: the plain text cut at the last space
// within the first 200 characters, followed by "...".
func Excerpt(html string) string {
	text := []rune(PlainText(html))
	if len(text) <= ExcerptLength {
		return string(text)
	}

	truncated := text[:ExcerptLength]
	for i := len(truncated) - 1; i >= 0; i-- {
		if truncated[i] == ' ' {
			return string(truncated[:i]) + "..."
		}
	}
	return string(truncated) + "..."
}

// ShareDescription picks the text for link previews: the excerpt, else the
// subtitle, else the plain content trimmed to 160 characters.
func ShareDescription(excerpt, subtitle *string, contentHTML string) string {
	if excerpt != nil && *excerpt != "" {
		return *excerpt
	}
	if subtitle != nil && *subtitle != "" {
		return *subtitle
	}

	text := []rune(PlainText(contentHTML))
	if len(text) > ShareDescriptionLength {
		return string(text[:ShareDescriptionLength-3]) + "..."
	}
	return string(text)
}

/*
SearchExcerpt shows where term appears in text, with 50 characters of context
before and 100 after, and "..." wherever the excerpt was cut. If the term
isn't there, it's the first 150 characters instead. Matching ignores case.
*/
func SearchExcerpt(text, term string) string {
	runes := []rune(text)
	pos := indexFold(runes, []rune(term))

	if pos < 0 {
		end := min(SearchExcerptFallback, len(runes))
		excerpt := string(runes[:end])
		if end < len(runes) {
			excerpt += "..."
		}
		return excerpt
	}

	start := max(0, pos-SearchExcerptBefore)
	end := min(len(runes), pos+len([]rune(term))+SearchExcerptAfter)
	excerpt := string(runes[start:end])
	if start > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(runes) {
		excerpt += "..."
	}
	return excerpt
}

// Case-insensitive rune index of needle in haystack, or -1.
func indexFold(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if unicode.ToLower(haystack[i+j]) != unicode.ToLower(r) {
				continue outer
			}
		}
		return i
	}
	return -1
}
