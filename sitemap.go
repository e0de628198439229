package pubhost

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// buildSitemap lists the landing page, every site index and every
// published post.
func buildSitemap(base string, entries []*SiteEntry) sitemapURLSet {
	urls := []sitemapURL{{Loc: BuildURL(base)}}
	for _, e := range entries {
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, "blog", e.Site.Subdirectory),
			LastMod: e.Site.UpdatedAt.UTC().Format("2006-01-02"),
		})
		for _, p := range e.Posts {
			urls = append(urls, sitemapURL{
				Loc:     BuildURL(base, "blog", e.Site.Subdirectory, p.Slug),
				LastMod: p.UpdatedAt.UTC().Format("2006-01-02"),
			})
		}
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (a *App) renderSitemap(c echo.Context, entries []*SiteEntry) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(buildSitemap(a.Config.URL, entries))
}
