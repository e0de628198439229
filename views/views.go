// Package views provides the default pubhost templates. Pages are
// html/template files embedded in the binary and exposed as templ
// components, so they plug into pubhost.ViewFuncs like any templ view.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/pubhost"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page template sets. Each set holds the shared layout plus one page that
// defines "content".
var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{
		"home", "signin", "signup", "dashboard", "site_form", "site",
		"post_form", "images", "pricing", "blog_index", "blog_post",
		"not_found", "server_error",
	} {
		pages[name] = template.Must(template.New(name).Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
}

// page renders the named page set through layout.
func page(name, layout string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, ok := pages[name]
		if !ok {
			return fmt.Errorf("views: unknown page %q", name)
		}
		return t.ExecuteTemplate(w, layout, data)
	})
}

// Default returns the built-in view set.
func Default() pubhost.ViewFuncs {
	return pubhost.ViewFuncs{
		Home:      func(p pubhost.HomePage) templ.Component { return page("home", "layout", p) },
		SignIn:    func(p pubhost.AuthPage) templ.Component { return page("signin", "layout", p) },
		SignUp:    func(p pubhost.AuthPage) templ.Component { return page("signup", "layout", p) },
		Dashboard: func(p pubhost.DashboardPage) templ.Component { return page("dashboard", "layout", p) },
		SiteForm:  func(p pubhost.SiteFormPage) templ.Component { return page("site_form", "layout", p) },
		Site:      func(p pubhost.SitePage) templ.Component { return page("site", "layout", p) },
		PostForm:  func(p pubhost.PostFormPage) templ.Component { return page("post_form", "layout", p) },
		Images:    func(p pubhost.ImagesPage) templ.Component { return page("images", "layout", p) },
		Pricing:   func(p pubhost.PricingPage) templ.Component { return page("pricing", "layout", p) },
		BlogIndex: func(p pubhost.BlogIndexPage) templ.Component { return page("blog_index", "public_layout", p) },
		BlogPost:  func(p pubhost.BlogPostPage) templ.Component { return page("blog_post", "public_layout", p) },

		NotFound:    func(c pubhost.Chrome) templ.Component { return page("not_found", "layout", c) },
		ServerError: func(c pubhost.Chrome) templ.Component { return page("server_error", "layout", c) },
	}
}
