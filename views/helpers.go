package views

import (
	"context"
	"html/template"
	"net/url"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/pubhost/analytics"
	"github.com/eringen/pubhost/richtext"
)

var funcs = template.FuncMap{
	"date":       FormatDate,
	"isodate":    func(t time.Time) string { return t.UTC().Format("2006-01-02") },
	"year":       func() int { return time.Now().Year() },
	"richtext":   RichText,
	"jsonld":     func(s string) template.JS { return template.JS(s) },
	"pathEscape": url.PathEscape,
	"kb":         func(n int) int { return (n + 1023) / 1024 },
	"maxViews":   MaxViews,
	"barHeight":  BarHeight,
}

// FormatDate formats t for display, e.g. "Jan 2, 2006".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// RichText renders a stored rich-text document. Invalid documents render
// nothing.
func RichText(raw string) template.HTML {
	if raw == "" {
		return ""
	}
	// The renderer escapes text and filters URLs.
	h, err := templ.ToGoHTML(context.Background(), richtext.Component(raw))
	if err != nil {
		return ""
	}
	return h
}

// MaxViews returns the largest daily count, at least 1.
func MaxViews(days []analytics.DailyView) int {
	m := 1
	for _, d := range days {
		if d.Views > m {
			m = d.Views
		}
	}
	return m
}

// BarHeight returns v as a percentage of max.
func BarHeight(v, max int) int {
	if max <= 0 {
		return 0
	}
	return v * 100 / max
}
