package pubhost

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// newDraftKey is the draft key of a post that has not been saved yet.
const newDraftKey = "new"

func draftURL(siteID, key string) string {
	return siteDashboardPath(siteID) + "drafts/" + key
}

func (a *App) handleNewPost(c echo.Context) error {
	site, err := a.ownedSite(c)
	if err != nil {
		return err
	}
	return Render(c, a.Views.PostForm(PostFormPage{
		Chrome:   a.chrome(c, "New post"),
		IsNew:    true,
		Site:     site,
		DraftURL: draftURL(site.ID, newDraftKey),
	}))
}

func (a *App) handleCreatePost(c echo.Context) error {
	ctx := c.Request().Context()
	site, err := a.ownedSite(c)
	if err != nil {
		return err
	}
	form := bindPostForm(c)
	page := PostFormPage{
		Chrome:   a.chrome(c, "New post"),
		IsNew:    true,
		Site:     site,
		Form:     form,
		DraftURL: draftURL(site.ID, newDraftKey),
	}
	if page.Errors = FieldErrorsFrom(c.Validate(&form)); page.Errors != nil {
		return RenderStatus(c, formStatus(page.Errors), a.Views.PostForm(page))
	}

	post, err := a.Store.CreatePost(ctx, Post{
		SiteID:      site.ID,
		UserID:      site.UserID,
		Title:       form.Title,
		Slug:        form.Slug,
		Description: form.Description,
		CoverImage:  form.CoverImage,
		Content:     form.Content,
		Published:   form.Published,
	})
	if errors.Is(err, ErrSlugTaken) {
		page.Errors = FieldErrors{"slug": "Another post of this site uses this slug."}
		return RenderStatus(c, http.StatusConflict, a.Views.PostForm(page))
	}
	if err != nil {
		return err
	}
	a.Cache.Invalidate(site.Subdirectory)
	a.discardDraft(c, site, newDraftKey)
	a.Log.Info("post created", zap.String("site_id", site.ID), zap.String("post_id", post.ID))
	return c.Redirect(http.StatusSeeOther, withMessage(siteDashboardPath(site.ID), "Post saved."))
}

func (a *App) handleEditPost(c echo.Context) error {
	site, err := a.ownedSite(c)
	if err != nil {
		return err
	}
	post, err := a.Store.GetPost(c.Request().Context(), site.UserID, site.ID, c.Param("postID"))
	if err != nil {
		return err
	}
	return Render(c, a.Views.PostForm(PostFormPage{
		Chrome:   a.chrome(c, "Edit "+post.Title),
		Site:     site,
		Post:     post,
		Form:     postFormFrom(post),
		DraftURL: draftURL(site.ID, post.ID),
	}))
}

func (a *App) handleUpdatePost(c echo.Context) error {
	ctx := c.Request().Context()
	site, err := a.ownedSite(c)
	if err != nil {
		return err
	}
	post, err := a.Store.GetPost(ctx, site.UserID, site.ID, c.Param("postID"))
	if err != nil {
		return err
	}
	form := bindPostForm(c)
	page := PostFormPage{
		Chrome:   a.chrome(c, "Edit "+post.Title),
		Site:     site,
		Post:     post,
		Form:     form,
		DraftURL: draftURL(site.ID, post.ID),
	}
	if page.Errors = FieldErrorsFrom(c.Validate(&form)); page.Errors != nil {
		return RenderStatus(c, formStatus(page.Errors), a.Views.PostForm(page))
	}

	post.Title = form.Title
	post.Slug = form.Slug
	post.Description = form.Description
	post.CoverImage = form.CoverImage
	post.Content = form.Content
	post.Published = form.Published
	if _, err := a.Store.UpdatePost(ctx, post); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			page.Errors = FieldErrors{"slug": "Another post of this site uses this slug."}
			return RenderStatus(c, http.StatusConflict, a.Views.PostForm(page))
		}
		return err
	}
	a.Cache.Invalidate(site.Subdirectory)
	a.discardDraft(c, site, post.ID)
	return c.Redirect(http.StatusSeeOther, withMessage(siteDashboardPath(site.ID), "Post saved."))
}

func (a *App) handleDeletePost(c echo.Context) error {
	ctx := c.Request().Context()
	site, err := a.ownedSite(c)
	if err != nil {
		return err
	}
	postID := c.Param("postID")
	if err := a.Store.DeletePost(ctx, site.UserID, site.ID, postID); err != nil {
		return err
	}
	a.Cache.Invalidate(site.Subdirectory)
	a.discardDraft(c, site, postID)
	return c.Redirect(http.StatusSeeOther, withMessage(siteDashboardPath(site.ID), "Post deleted."))
}

// discardDraft removes a draft after its content was saved. Failure only
// leaves a stale draft behind, so it is logged and not returned.
func (a *App) discardDraft(c echo.Context, site Site, key string) {
	if err := a.Store.DeleteDraft(c.Request().Context(), site.UserID, site.ID, key); err != nil {
		a.Log.Warn("discard draft failed", zap.String("site_id", site.ID), zap.String("key", key), zap.Error(err))
	}
}
