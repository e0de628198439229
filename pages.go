package pubhost

import (
	"github.com/a-h/templ"

	"github.com/eringen/pubhost/analytics"
)

// ViewFuncs holds the templ components the handlers render. Callers supply
// them (package views has a default set), which keeps every template
// replaceable without touching handler logic.
type ViewFuncs struct {
	Home      func(p HomePage) templ.Component
	SignIn    func(p AuthPage) templ.Component
	SignUp    func(p AuthPage) templ.Component
	Dashboard func(p DashboardPage) templ.Component
	SiteForm  func(p SiteFormPage) templ.Component
	Site      func(p SitePage) templ.Component
	PostForm  func(p PostFormPage) templ.Component
	Images    func(p ImagesPage) templ.Component
	Pricing   func(p PricingPage) templ.Component
	BlogIndex func(p BlogIndexPage) templ.Component
	BlogPost  func(p BlogPostPage) templ.Component

	NotFound    func(c Chrome) templ.Component
	ServerError func(c Chrome) templ.Component
}

// Chrome is the data every page layout needs.
type Chrome struct {
	PlatformName string
	BaseURL      string
	User         *User
	CSRF         string
	Meta         PageMeta
}

// PlanInfo describes what the signed-in user's plan allows.
type PlanInfo struct {
	BillingEnabled bool
	Subscription   *Subscription
	FreeSiteLimit  int
	SiteLimit      int // 0 means unlimited
	SitesUsed      int
}

// Active reports whether the user is on the paid plan.
func (p PlanInfo) Active() bool {
	return p.Subscription.Active()
}

// CanCreateSite reports whether another site fits the plan.
func (p PlanInfo) CanCreateSite() bool {
	return p.SiteLimit == 0 || p.SitesUsed < p.SiteLimit
}

// HomePage is the platform landing page listing recently updated sites.
type HomePage struct {
	Chrome
	Sites []Site
}

// AuthPage is the sign-in or sign-up form, refilled after a failed submit.
type AuthPage struct {
	Chrome
	Email   string
	Name    string
	Next    string
	Errors  FieldErrors
	Message string
}

// DashboardPage lists the signed-in user's sites and plan usage.
type DashboardPage struct {
	Chrome
	Sites   []Site
	Plan    PlanInfo
	Message string
}

// SiteFormPage is the create or settings form of a site.
type SiteFormPage struct {
	Chrome
	IsNew  bool
	Site   Site
	Form   SiteForm
	Errors FieldErrors
}

// SitePage is the owner view of one site with its posts and view stats.
type SitePage struct {
	Chrome
	Site    Site
	Posts   []Post
	Stats   *analytics.Stats // nil when analytics is disabled
	Message string
}

// PostFormPage is the post editor.
type PostFormPage struct {
	Chrome
	IsNew    bool
	Site     Site
	Post     Post
	Form     PostForm
	Errors   FieldErrors
	DraftURL string // endpoint mirroring editor state
}

// ImagesPage lists the signed-in user's uploaded images.
type ImagesPage struct {
	Chrome
	Images []Image
}

// PricingPage shows the plans and the current subscription.
type PricingPage struct {
	Chrome
	Plan    PlanInfo
	Message string
}

// BlogIndexPage is the public index of a site.
type BlogIndexPage struct {
	Meta    PageMeta
	BaseURL string
	Site    Site
	Posts   []Post
	JsonLD  string
}

// BlogPostPage is a public post with links to recent posts of the same site.
type BlogPostPage struct {
	Meta        PageMeta
	BaseURL     string
	Site        Site
	Post        Post
	Recent      []Post
	ReadingTime int
	JsonLD      string
}
