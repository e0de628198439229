package pubhost

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/pubhost/analytics"
)

const statsDays = 30

// planInfo loads the plan state of u.
func (a *App) planInfo(ctx context.Context, u *User) (PlanInfo, error) {
	info := PlanInfo{BillingEnabled: a.Billing != nil, FreeSiteLimit: a.Config.FreeSiteLimit}
	sub, err := a.Store.GetSubscription(ctx, u.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PlanInfo{}, err
	}
	info.Subscription = sub
	if info.SitesUsed, err = a.Store.CountSites(ctx, u.ID); err != nil {
		return PlanInfo{}, err
	}
	if !sub.Active() {
		info.SiteLimit = a.Config.FreeSiteLimit
	}
	return info, nil
}

// ownedSite loads the :siteID route parameter scoped to the current user.
// Malformed IDs are reported as not found without a query.
func (a *App) ownedSite(c echo.Context) (Site, error) {
	id := c.Param("siteID")
	if !validID(id) {
		return Site{}, ErrNotFound
	}
	return a.Store.GetSite(c.Request().Context(), CurrentUser(c).ID, id)
}

func siteDashboardPath(siteID string) string {
	return dashboardPath + "sites/" + siteID + "/"
}

func withMessage(path, msg string) string {
	return path + "?msg=" + url.QueryEscape(msg)
}

func (a *App) handleDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	u := CurrentUser(c)
	sites, err := a.Store.ListSites(ctx, u.ID)
	if err != nil {
		return err
	}
	plan, err := a.planInfo(ctx, u)
	if err != nil {
		return err
	}
	return Render(c, a.Views.Dashboard(DashboardPage{
		Chrome:  a.chrome(c, "Your sites"),
		Sites:   sites,
		Plan:    plan,
		Message: c.QueryParam("msg"),
	}))
}

// checkSiteLimit returns ErrSiteLimit when the user may not create another site.
func (a *App) checkSiteLimit(ctx context.Context, u *User) error {
	plan, err := a.planInfo(ctx, u)
	if err != nil {
		return err
	}
	if !plan.CanCreateSite() {
		return ErrSiteLimit
	}
	return nil
}

func (a *App) handleNewSite(c echo.Context) error {
	err := a.checkSiteLimit(c.Request().Context(), CurrentUser(c))
	if errors.Is(err, ErrSiteLimit) {
		return c.Redirect(http.StatusSeeOther, dashboardPath+"pricing/")
	}
	if err != nil {
		return err
	}
	return Render(c, a.Views.SiteForm(SiteFormPage{Chrome: a.chrome(c, "New site"), IsNew: true}))
}

func (a *App) handleCreateSite(c echo.Context) error {
	ctx := c.Request().Context()
	u := CurrentUser(c)
	err := a.checkSiteLimit(ctx, u)
	if errors.Is(err, ErrSiteLimit) {
		return c.Redirect(http.StatusSeeOther, dashboardPath+"pricing/")
	}
	if err != nil {
		return err
	}

	form := bindSiteForm(c)
	page := SiteFormPage{Chrome: a.chrome(c, "New site"), IsNew: true, Form: form}
	if page.Errors = FieldErrorsFrom(c.Validate(&form)); page.Errors != nil {
		return RenderStatus(c, formStatus(page.Errors), a.Views.SiteForm(page))
	}

	site, err := a.Store.CreateSite(ctx, Site{
		UserID:       u.ID,
		Name:         form.Name,
		Subdirectory: form.Subdirectory,
		Description:  form.Description,
	})
	if errors.Is(err, ErrSubdirectoryTaken) {
		page.Errors = FieldErrors{"subdirectory": "This subdirectory is already taken."}
		return RenderStatus(c, http.StatusConflict, a.Views.SiteForm(page))
	}
	if err != nil {
		return err
	}
	a.Cache.Invalidate(site.Subdirectory)
	a.Log.Info("site created", zap.String("site_id", site.ID), zap.String("subdirectory", site.Subdirectory))
	return c.Redirect(http.StatusSeeOther, siteDashboardPath(site.ID))
}

func (a *App) handleSite(c echo.Context) error {
	ctx := c.Request().Context()
	site, err := a.ownedSite(c)
	if err != nil {
		return err
	}
	posts, err := a.Store.ListPosts(ctx, site.ID)
	if err != nil {
		return err
	}
	var stats *analytics.Stats
	if a.Analytics != nil {
		if stats, err = a.Analytics.Stats(ctx, site.ID, statsDays); err != nil {
			a.Log.Warn("site stats failed", zap.String("site_id", site.ID), zap.Error(err))
		}
	}
	return Render(c, a.Views.Site(SitePage{
		Chrome:  a.chrome(c, site.Name),
		Site:    site,
		Posts:   posts,
		Stats:   stats,
		Message: c.QueryParam("msg"),
	}))
}

func (a *App) handleSiteSettings(c echo.Context) error {
	site, err := a.ownedSite(c)
	if err != nil {
		return err
	}
	return Render(c, a.Views.SiteForm(SiteFormPage{
		Chrome: a.chrome(c, site.Name+" settings"),
		Site:   site,
		Form:   siteFormFrom(site),
	}))
}

func (a *App) handleUpdateSite(c echo.Context) error {
	ctx := c.Request().Context()
	site, err := a.ownedSite(c)
	if err != nil {
		return err
	}
	form := bindSiteForm(c)
	page := SiteFormPage{Chrome: a.chrome(c, site.Name+" settings"), Site: site, Form: form}
	if page.Errors = FieldErrorsFrom(c.Validate(&form)); page.Errors != nil {
		return RenderStatus(c, formStatus(page.Errors), a.Views.SiteForm(page))
	}

	oldSub := site.Subdirectory
	site.Name = form.Name
	site.Subdirectory = form.Subdirectory
	site.Description = form.Description
	updated, err := a.Store.UpdateSite(ctx, site)
	if errors.Is(err, ErrSubdirectoryTaken) {
		page.Errors = FieldErrors{"subdirectory": "This subdirectory is already taken."}
		return RenderStatus(c, http.StatusConflict, a.Views.SiteForm(page))
	}
	if err != nil {
		return err
	}
	a.Cache.Invalidate(oldSub, updated.Subdirectory)
	return c.Redirect(http.StatusSeeOther, withMessage(siteDashboardPath(site.ID), "Settings saved."))
}

func (a *App) handleSiteImage(c echo.Context) error {
	site, err := a.ownedSite(c)
	if err != nil {
		return err
	}
	imageURL := strings.TrimSpace(c.FormValue("image_url"))
	if imageURL != "" && !validImageRef(imageURL) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image URL")
	}
	if err := a.Store.UpdateSiteImage(c.Request().Context(), site.UserID, site.ID, imageURL); err != nil {
		return err
	}
	a.Cache.Invalidate(site.Subdirectory)
	return c.Redirect(http.StatusSeeOther, withMessage(siteDashboardPath(site.ID), "Site image updated."))
}

func (a *App) handleDeleteSite(c echo.Context) error {
	ctx := c.Request().Context()
	site, err := a.ownedSite(c)
	if err != nil {
		return err
	}
	if err := a.Store.DeleteSite(ctx, site.UserID, site.ID); err != nil {
		return err
	}
	a.Cache.Invalidate(site.Subdirectory)
	if a.Analytics != nil {
		if err := a.Analytics.Forget(ctx, site.ID); err != nil {
			a.Log.Warn("forget site views failed", zap.String("site_id", site.ID), zap.Error(err))
		}
	}
	a.Log.Info("site deleted", zap.String("site_id", site.ID))
	return c.Redirect(http.StatusSeeOther, withMessage(dashboardPath, "Site deleted."))
}

// handleSubdirectoryCheck answers the live availability check of the site form.
func (a *App) handleSubdirectoryCheck(c echo.Context) error {
	value := normalizeSubdirectory(c.QueryParam("value"))
	resp := map[string]any{"value": value, "available": false}
	if !slugPattern.MatchString(value) || len(value) > 40 {
		resp["reason"] = "invalid"
		return c.JSON(http.StatusOK, resp)
	}
	except := ""
	if id := c.QueryParam("site"); id != "" {
		// Only the caller's own site may be excluded.
		site, err := a.Store.GetSite(c.Request().Context(), CurrentUser(c).ID, id)
		if err == nil {
			except = site.ID
		}
	}
	ok, err := a.Store.SubdirectoryAvailable(c.Request().Context(), value, except)
	if err != nil {
		return err
	}
	resp["available"] = ok
	if !ok {
		resp["reason"] = "taken"
	}
	return c.JSON(http.StatusOK, resp)
}
