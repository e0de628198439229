// Package richtext renders editor documents (a JSON node tree in the
// ProseMirror shape used by the post editor) to HTML as a templ component.
//
// Only a fixed set of nodes and marks is understood. Unknown nodes render
// their children, unknown marks are ignored, and every text value and URL is
// escaped or dropped, so stored documents can never inject markup.
package richtext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

var (
	ErrInvalidDocument = errors.New("richtext: document must be a JSON object of type doc")
	ErrEmptyDocument   = errors.New("richtext: document has no content")
)

// Node is one element of the document tree.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is inline formatting applied to a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Parse decodes a stored document.
func Parse(raw string) (Node, error) {
	var doc Node
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Node{}, ErrInvalidDocument
	}
	if doc.Type != "doc" {
		return Node{}, ErrInvalidDocument
	}
	return doc, nil
}

// Validate checks that raw is a document with at least some text or an image.
func Validate(raw string) error {
	doc, err := Parse(raw)
	if err != nil {
		return err
	}
	if IsEmpty(doc) {
		return ErrEmptyDocument
	}
	return nil
}

// IsEmpty reports whether n carries no visible text and no images.
func IsEmpty(n Node) bool {
	if strings.TrimSpace(n.Text) != "" {
		return false
	}
	if n.Type == "image" && SafeURL(attrString(n.Attrs, "src")) != "" {
		return false
	}
	for _, c := range n.Content {
		if !IsEmpty(c) {
			return false
		}
	}
	return true
}

// Component returns a templ.Component that renders the stored document raw.
func Component(raw string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		doc, err := Parse(raw)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		Render(&buf, doc)
		_, err = w.Write(buf.Bytes())
		return err
	})
}

// HTML returns the rendered HTML of doc.
func HTML(doc Node) string {
	var buf bytes.Buffer
	Render(&buf, doc)
	return buf.String()
}

// Render writes the HTML representation of doc to buf.
func Render(buf *bytes.Buffer, doc Node) {
	r := renderer{buf: buf}
	r.node(doc)
}

type renderer struct {
	buf    *bytes.Buffer
	images int
}

func (r *renderer) children(n Node) {
	for _, c := range n.Content {
		r.node(c)
	}
}

func (r *renderer) wrap(tag string, n Node) {
	r.buf.WriteString("<" + tag + ">")
	r.children(n)
	r.buf.WriteString("</" + tag + ">")
}

func (r *renderer) node(n Node) {
	switch n.Type {
	case "paragraph":
		r.wrap("p", n)
	case "heading":
		level, _ := attrInt(n.Attrs, "level")
		level = min(max(level, 1), 6)
		r.wrap("h"+strconv.Itoa(level), n)
	case "text":
		r.text(n)
	case "bulletList":
		r.wrap("ul", n)
	case "orderedList":
		if start, ok := attrInt(n.Attrs, "start"); ok && start > 1 {
			r.buf.WriteString(`<ol start="` + strconv.Itoa(start) + `">`)
			r.children(n)
			r.buf.WriteString("</ol>")
			return
		}
		r.wrap("ol", n)
	case "listItem":
		r.wrap("li", n)
	case "blockquote":
		r.wrap("blockquote", n)
	case "codeBlock":
		r.codeBlock(n)
	case "horizontalRule":
		r.buf.WriteString("<hr/>")
	case "hardBreak":
		r.buf.WriteString("<br/>")
	case "image":
		r.image(n)
	default:
		r.children(n)
	}
}

func (r *renderer) codeBlock(n Node) {
	lang := cleanLanguage(attrString(n.Attrs, "language"))
	if lang != "" {
		r.buf.WriteString(`<pre><code class="language-` + lang + `">`)
	} else {
		r.buf.WriteString("<pre><code>")
	}
	// Code blocks hold plain text; marks inside them are ignored.
	for _, c := range n.Content {
		r.buf.WriteString(html.EscapeString(c.Text))
	}
	r.buf.WriteString("</code></pre>")
}

func (r *renderer) image(n Node) {
	src := SafeURL(attrString(n.Attrs, "src"))
	if src == "" {
		return
	}
	r.images++
	// The first image is likely above the fold.
	loadAttr := `loading="lazy"`
	if r.images == 1 {
		loadAttr = `fetchpriority="high"`
	}
	r.buf.WriteString(`<img ` + loadAttr + ` src="` + html.EscapeString(src) + `" alt="` + html.EscapeString(attrString(n.Attrs, "alt")) + `"`)
	if title := attrString(n.Attrs, "title"); title != "" {
		r.buf.WriteString(` title="` + html.EscapeString(title) + `"`)
	}
	r.buf.WriteString(` decoding="async"/>`)
}

func (r *renderer) text(n Node) {
	var closers []string
	for _, m := range n.Marks {
		open, close := markTags(m)
		if open == "" {
			continue
		}
		r.buf.WriteString(open)
		closers = append(closers, close)
	}
	r.buf.WriteString(html.EscapeString(n.Text))
	for i := len(closers) - 1; i >= 0; i-- {
		r.buf.WriteString(closers[i])
	}
}

func markTags(m Mark) (open, close string) {
	switch m.Type {
	case "bold":
		return "<strong>", "</strong>"
	case "italic":
		return "<em>", "</em>"
	case "strike":
		return "<s>", "</s>"
	case "underline":
		return "<u>", "</u>"
	case "code":
		return "<code>", "</code>"
	case "link":
		href := SafeURL(attrString(m.Attrs, "href"))
		if href == "" {
			return "", ""
		}
		attrs := `href="` + html.EscapeString(href) + `"`
		if attrString(m.Attrs, "target") == "_blank" {
			attrs += ` target="_blank" rel="noopener noreferrer"`
		}
		return "<a " + attrs + ">", "</a>"
	}
	return "", ""
}

// SafeURL returns raw trimmed if it is a relative reference or uses an
// allowed scheme (http, https, mailto, tel), otherwise "". The result is not
// HTML-escaped.
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "//") {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return val
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return val
	default:
		return ""
	}
}

func cleanLanguage(lang string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(lang) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '+' || r == '#' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func attrString(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

func attrInt(attrs map[string]any, key string) (int, bool) {
	switch v := attrs[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}
