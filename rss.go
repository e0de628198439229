package pubhost

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubhost/richtext"
)

const feedExcerptLength = 280

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// buildFeed returns the RSS 2.0 document of a site's published posts.
func buildFeed(base string, site Site, posts []Post) rssXML {
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		postURL := BuildURL(base, "blog", site.Subdirectory, p.Slug)
		desc := p.Description
		if desc == "" {
			if doc, err := richtext.Parse(p.Content); err == nil {
				desc = richtext.Excerpt(doc, feedExcerptLength)
			}
		}
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        postURL,
			Description: desc,
			PubDate:     p.CreatedAt.UTC().Format(time.RFC1123Z),
			GUID:        postURL,
		})
	}
	ch := rssChannel{
		Title:       site.Name,
		Link:        BuildURL(base, "blog", site.Subdirectory),
		Description: site.Description,
		Items:       items,
	}
	if len(posts) > 0 {
		ch.LastBuildDate = posts[0].UpdatedAt.UTC().Format(time.RFC1123Z)
	}
	return rssXML{Version: "2.0", Channel: ch}
}

func (a *App) renderRSS(c echo.Context, site Site, posts []Post) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(buildFeed(a.Config.URL, site, posts))
}
