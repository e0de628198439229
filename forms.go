package pubhost

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/eringen/pubhost/richtext"
)

// FieldErrors maps a form field name to a human-readable message.
type FieldErrors map[string]string

// SiteForm is the input for creating or editing a site.
type SiteForm struct {
	Name         string `form:"name" validate:"required,max=35"`
	Subdirectory string `form:"subdirectory" validate:"required,max=40,subdirectory"`
	Description  string `form:"description" validate:"required,max=150"`
}

// PostForm is the input for creating or editing a post.
type PostForm struct {
	Title       string `form:"title" validate:"required,max=100"`
	Slug        string `form:"slug" validate:"required,max=190,slug"`
	Description string `form:"description" validate:"required,max=200"`
	CoverImage  string `form:"cover_image" validate:"required,max=2048,imageref"`
	Content     string `form:"content" validate:"required,richtext"`
	Published   bool   `form:"published"`
}

type SignUpForm struct {
	Email    string `form:"email" validate:"required,email,max=254"`
	Name     string `form:"name" validate:"required,max=60"`
	Password string `form:"password" validate:"required,min=8,max=72"`
}

type SignInForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// FormValidator adapts validator/v10 to echo.Validator.
type FormValidator struct {
	v *validator.Validate
}

// NewFormValidator registers the custom tags used by the forms.
func NewFormValidator() *FormValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})
	slug := func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	}
	_ = v.RegisterValidation("subdirectory", slug)
	_ = v.RegisterValidation("slug", slug)
	_ = v.RegisterValidation("imageref", func(fl validator.FieldLevel) bool {
		return validImageRef(fl.Field().String())
	})
	_ = v.RegisterValidation("richtext", func(fl validator.FieldLevel) bool {
		return richtext.Validate(fl.Field().String()) == nil
	})
	return &FormValidator{v: v}
}

// Validate implements echo.Validator.
func (fv *FormValidator) Validate(i interface{}) error {
	return fv.v.Struct(i)
}

// FieldErrorsFrom converts validation errors into per-field messages. It
// returns nil for a nil error and a single "form" entry for other errors.
func FieldErrorsFrom(err error) FieldErrors {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"form": err.Error()}
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = messageFor(fe)
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "subdirectory", "slug":
		return "Use lowercase letters, numbers and single dashes."
	case "imageref":
		return "Enter an http(s) URL or upload an image."
	case "richtext":
		return "Write some content before saving."
	}
	return "Invalid value."
}

// validImageRef accepts absolute http(s) URLs and local paths such as
// /public/uploads/<user>/<file>.jpg.
func validImageRef(ref string) bool {
	if strings.HasPrefix(ref, "/") {
		return !strings.HasPrefix(ref, "//")
	}
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// bindSiteForm reads and normalizes a SiteForm from the request.
func bindSiteForm(c echo.Context) SiteForm {
	return SiteForm{
		Name:         strings.TrimSpace(c.FormValue("name")),
		Subdirectory: normalizeSubdirectory(c.FormValue("subdirectory")),
		Description:  strings.TrimSpace(c.FormValue("description")),
	}
}

// bindPostForm reads and normalizes a PostForm. An empty slug is derived
// from the title.
func bindPostForm(c echo.Context) PostForm {
	f := PostForm{
		Title:       strings.TrimSpace(c.FormValue("title")),
		Slug:        strings.ToLower(strings.TrimSpace(c.FormValue("slug"))),
		Description: strings.TrimSpace(c.FormValue("description")),
		CoverImage:  strings.TrimSpace(c.FormValue("cover_image")),
		Content:     c.FormValue("content"),
		Published:   c.FormValue("published") != "",
	}
	if f.Slug == "" {
		f.Slug = Slugify(f.Title)
	}
	return f
}

func siteFormFrom(s Site) SiteForm {
	return SiteForm{Name: s.Name, Subdirectory: s.Subdirectory, Description: s.Description}
}

func postFormFrom(p Post) PostForm {
	return PostForm{
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		CoverImage:  p.CoverImage,
		Content:     p.Content,
		Published:   p.Published,
	}
}
