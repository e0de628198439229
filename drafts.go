package pubhost

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

type draftResponse struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt int64           `json:"updated_at"` // unix milliseconds
}

// draftTarget resolves the site and validates the :key parameter, which is
// either "new" or the ID of a post of that site.
func (a *App) draftTarget(c echo.Context) (Site, string, error) {
	site, err := a.ownedSite(c)
	if err != nil {
		return Site{}, "", err
	}
	key := c.Param("key")
	if key == newDraftKey {
		return site, key, nil
	}
	if _, err := a.Store.GetPost(c.Request().Context(), site.UserID, site.ID, key); err != nil {
		return Site{}, "", err
	}
	return site, key, nil
}

func (a *App) handleGetDraft(c echo.Context) error {
	site, key, err := a.draftTarget(c)
	if err != nil {
		return err
	}
	d, err := a.Store.GetDraft(c.Request().Context(), site.UserID, site.ID, key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, draftResponse{
		Key:       d.Key,
		Payload:   json.RawMessage(d.Payload),
		UpdatedAt: d.UpdatedAt.UnixMilli(),
	})
}

func (a *App) handlePutDraft(c echo.Context) error {
	site, key, err := a.draftTarget(c)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxDraftSize+1))
	if err != nil {
		return err
	}
	d, err := a.Store.SaveDraft(c.Request().Context(), Draft{
		UserID:  site.UserID,
		SiteID:  site.ID,
		Key:     key,
		Payload: string(body),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"key": d.Key, "updated_at": d.UpdatedAt.UnixMilli()})
}

func (a *App) handleDeleteDraft(c echo.Context) error {
	site, err := a.ownedSite(c)
	if err != nil {
		return err
	}
	if err := a.Store.DeleteDraft(c.Request().Context(), site.UserID, site.ID, c.Param("key")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
