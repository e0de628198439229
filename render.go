package pubhost

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// chrome collects the layout data for a dashboard or account page.
func (a *App) chrome(c echo.Context, title string) Chrome {
	return Chrome{
		PlatformName: a.Config.Name,
		BaseURL:      a.Config.URL,
		User:         CurrentUser(c),
		CSRF:         CsrfToken(c),
		Meta: PageMeta{
			Title:  title,
			URL:    a.Config.URL + c.Request().URL.Path,
			OGType: "website",
		},
	}
}

// formStatus is the status used when re-rendering a form with errors.
func formStatus(errs FieldErrors) int {
	if len(errs) > 0 {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}
