package richtext

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// wordsPerMinute is the reading speed used by ReadingTime.
const wordsPerMinute = 200

var blockTags = map[string]bool{
	"p": true, "li": true, "blockquote": true, "pre": true, "br": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true,
}

// PlainText extracts the visible text of an HTML fragment, with block
// boundaries turned into single spaces and whitespace collapsed.
func PlainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				b.WriteByte(' ')
			}
		}
	}
}

// Excerpt returns at most n runes of the document's plain text, cut at a
// word boundary and suffixed with an ellipsis when shortened.
func Excerpt(doc Node, n int) string {
	text := PlainText(HTML(doc))
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

// ReadingTime estimates minutes needed to read doc, at least 1.
func ReadingTime(doc Node) int {
	words := len(strings.Fields(PlainText(HTML(doc))))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
