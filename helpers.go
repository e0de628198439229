package pubhost

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents decomposes characters and drops combining marks, so "Café"
// becomes "Cafe".
var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify converts a title to a URL-safe slug. Accented letters are folded
// to ASCII; any other run of non-alphanumeric characters becomes one dash.
func Slugify(s string) string {
	folded, _, err := transform.String(foldAccents, s)
	if err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// LocalPath returns next if it is a path on this host, otherwise fallback.
// It guards post-sign-in redirects against open redirects.
func LocalPath(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return fallback
	}
	return next
}

// RecentPosts returns up to n posts other than current, preserving order.
func RecentPosts(current Post, posts []Post, n int) []Post {
	var out []Post
	for _, p := range posts {
		if p.ID == current.ID {
			continue
		}
		if len(out) == n {
			break
		}
		out = append(out, p)
	}
	return out
}

// AbsoluteURL resolves a possibly relative asset path against base.
func AbsoluteURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// SiteJsonLD returns a JSON-LD string for a Blog schema.
func SiteJsonLD(site Site, owner string, baseURL string) string {
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "Blog",
		"name":        site.Name,
		"url":         BuildURL(baseURL, "blog", site.Subdirectory),
		"description": site.Description,
	}
	if owner != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  owner,
		}
	}
	if site.ImageURL != "" {
		data["image"] = AbsoluteURL(baseURL, site.ImageURL)
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJsonLD(site Site, post Post, baseURL string) string {
	postURL := BuildURL(baseURL, "blog", site.Subdirectory, post.Slug)
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   post.Description,
		"datePublished": post.CreatedAt.Format("2006-01-02"),
		"dateModified":  post.UpdatedAt.Format("2006-01-02"),
		"url":           postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  site.Name,
		},
	}
	if post.CoverImage != "" {
		data["image"] = AbsoluteURL(baseURL, post.CoverImage)
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
