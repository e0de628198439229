package pubhost

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/pubhost/analytics"
	"github.com/eringen/pubhost/richtext"
)

const (
	homeSiteCount   = 24
	recentPostCount = 3
)

func (a *App) handleHome(c echo.Context) error {
	sites, err := a.Store.ListAllSites(c.Request().Context(), homeSiteCount)
	if err != nil {
		return err
	}
	ch := a.chrome(c, a.Config.Name)
	ch.Meta.URL = BuildURL(a.Config.URL)
	return Render(c, a.Views.Home(HomePage{Chrome: ch, Sites: sites}))
}

func (a *App) handleBlogIndex(c echo.Context) error {
	entry, err := a.Cache.Get(c.Request().Context(), c.Param("subdirectory"))
	if err != nil {
		return err
	}
	site := entry.Site
	a.trackView(c, site, "")
	return Render(c, a.Views.BlogIndex(BlogIndexPage{
		Meta: PageMeta{
			Title:       site.Name,
			Description: site.Description,
			URL:         BuildURL(a.Config.URL, "blog", site.Subdirectory),
			OGType:      "website",
			Image:       AbsoluteURL(a.Config.URL, site.ImageURL),
		},
		BaseURL: a.Config.URL,
		Site:    site,
		Posts:   entry.Posts,
		JsonLD:  SiteJsonLD(site, entry.Author, a.Config.URL),
	}))
}

func (a *App) handleBlogPost(c echo.Context) error {
	entry, err := a.Cache.Get(c.Request().Context(), c.Param("subdirectory"))
	if err != nil {
		return err
	}
	post, err := entry.Post(c.Param("slug"))
	if err != nil {
		return err
	}
	site := entry.Site
	readingTime := 1
	if doc, err := richtext.Parse(post.Content); err == nil {
		readingTime = richtext.ReadingTime(doc)
	}
	a.trackView(c, site, post.Slug)
	return Render(c, a.Views.BlogPost(BlogPostPage{
		Meta: PageMeta{
			Title:       post.Title + " | " + site.Name,
			Description: post.Description,
			URL:         BuildURL(a.Config.URL, "blog", site.Subdirectory, post.Slug),
			OGType:      "article",
			Image:       AbsoluteURL(a.Config.URL, post.CoverImage),
		},
		BaseURL:     a.Config.URL,
		Site:        site,
		Post:        post,
		Recent:      RecentPosts(post, entry.Posts, recentPostCount),
		ReadingTime: readingTime,
		JsonLD:      BlogPostingJsonLD(site, post, a.Config.URL),
	}))
}

func (a *App) handleFeed(c echo.Context) error {
	entry, err := a.Cache.Get(c.Request().Context(), c.Param("subdirectory"))
	if err != nil {
		return err
	}
	return a.renderRSS(c, entry.Site, entry.Posts)
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	sites, err := a.Store.ListAllSites(ctx, 0)
	if err != nil {
		return err
	}
	// Read straight from the store so one sitemap request does not pull
	// every site into the page cache.
	entries := make([]*SiteEntry, 0, len(sites))
	for _, s := range sites {
		posts, err := a.Store.ListPublishedPosts(ctx, s.ID)
		if err != nil {
			return err
		}
		entries = append(entries, &SiteEntry{Site: s, Posts: posts})
	}
	return a.renderSitemap(c, entries)
}

func (a *App) handleRobots(c echo.Context) error {
	body := fmt.Sprintf("User-agent: *\nAllow: /\nDisallow: /dashboard/\nDisallow: /signin/\nDisallow: /signup/\n\nSitemap: %s/sitemap.xml\n", a.Config.URL)
	return c.String(http.StatusOK, body)
}

// trackView records a public page view. Analytics failures never fail the page.
func (a *App) trackView(c echo.Context, site Site, postSlug string) {
	if a.Analytics == nil {
		return
	}
	req := c.Request()
	_, err := a.Analytics.Track(req.Context(), analytics.Hit{
		SiteID:    site.ID,
		PostSlug:  postSlug,
		Path:      req.URL.Path,
		IP:        c.RealIP(),
		UserAgent: req.UserAgent(),
		Referrer:  req.Referer(),
		DNT:       req.Header.Get("DNT") == "1",
	})
	if err != nil {
		a.Log.Warn("track view failed", zap.String("site_id", site.ID), zap.Error(err))
	}
}

// errorStatus maps an error returned by a handler to an HTTP status and a
// client-facing message.
func errorStatus(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, fmt.Sprint(he.Message)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		// Other tenants' records are indistinguishable from missing ones.
		return http.StatusNotFound, http.StatusText(http.StatusNotFound)
	case errors.Is(err, ErrDraftTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, ErrInvalidDraft):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrSiteLimit):
		return http.StatusPaymentRequired, err.Error()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := errorStatus(err)
	if code >= 500 {
		a.Log.Error("server error",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
	}

	path := c.Request().URL.Path
	if wantsJSON(c) || strings.Contains(path, "/drafts/") || strings.HasPrefix(path, "/api/") {
		_ = c.JSON(code, map[string]string{"error": msg})
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}

	switch {
	case code == http.StatusNotFound:
		_ = RenderStatus(c, code, a.Views.NotFound(a.chrome(c, "Not found")))
	case code >= 500:
		_ = RenderStatus(c, code, a.Views.ServerError(a.chrome(c, "Server error")))
	default:
		_ = c.String(code, msg)
	}
}
