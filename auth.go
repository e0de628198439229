package pubhost

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const dashboardPath = "/dashboard/"

func (a *App) handleSignUpForm(c echo.Context) error {
	if CurrentUser(c) != nil {
		return c.Redirect(http.StatusSeeOther, dashboardPath)
	}
	return Render(c, a.Views.SignUp(AuthPage{Chrome: a.chrome(c, "Sign up")}))
}

func (a *App) handleSignUp(c echo.Context) error {
	form := SignUpForm{
		Email:    strings.TrimSpace(c.FormValue("email")),
		Name:     strings.TrimSpace(c.FormValue("name")),
		Password: c.FormValue("password"),
	}
	page := AuthPage{Chrome: a.chrome(c, "Sign up"), Email: form.Email, Name: form.Name}

	if errs := FieldErrorsFrom(c.Validate(&form)); errs != nil {
		page.Errors = errs
		return RenderStatus(c, formStatus(errs), a.Views.SignUp(page))
	}

	u, err := a.Store.CreateUser(c.Request().Context(), form.Email, form.Name, form.Password)
	if errors.Is(err, ErrEmailTaken) {
		page.Errors = FieldErrors{"email": "An account with this email already exists."}
		return RenderStatus(c, http.StatusConflict, a.Views.SignUp(page))
	}
	if err != nil {
		return err
	}
	a.Log.Info("user signed up", zap.String("user_id", u.ID))
	if err := setUserSession(c, u.ID); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, dashboardPath)
}

func (a *App) handleSignInForm(c echo.Context) error {
	next := LocalPath(c.QueryParam("next"), dashboardPath)
	if CurrentUser(c) != nil {
		return c.Redirect(http.StatusSeeOther, next)
	}
	return Render(c, a.Views.SignIn(AuthPage{Chrome: a.chrome(c, "Sign in"), Next: next}))
}

func (a *App) handleSignIn(c echo.Context) error {
	ip := c.RealIP()
	form := SignInForm{
		Email:    strings.TrimSpace(c.FormValue("email")),
		Password: c.FormValue("password"),
	}
	page := AuthPage{
		Chrome: a.chrome(c, "Sign in"),
		Email:  form.Email,
		Next:   LocalPath(c.FormValue("next"), dashboardPath),
	}

	if !a.loginLimiter.Check(ip) {
		page.Message = "Too many sign-in attempts. Try again in a minute."
		return RenderStatus(c, http.StatusTooManyRequests, a.Views.SignIn(page))
	}
	if errs := FieldErrorsFrom(c.Validate(&form)); errs != nil {
		page.Errors = errs
		return RenderStatus(c, formStatus(errs), a.Views.SignIn(page))
	}

	u, err := a.Store.Authenticate(c.Request().Context(), form.Email, form.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		a.loginLimiter.Record(ip)
		page.Message = "Invalid email or password."
		return RenderStatus(c, http.StatusUnauthorized, a.Views.SignIn(page))
	}
	if err != nil {
		return err
	}
	a.loginLimiter.Reset(ip)
	if err := setUserSession(c, u.ID); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, page.Next)
}

func (a *App) handleSignOut(c echo.Context) error {
	if err := clearUserSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}
