// Package pubhost is a multi-tenant blog host built with Go, Echo, and templ.
// Users sign up, create sites served under /blog/<subdirectory>/, write posts
// in a rich-text editor, upload images and manage a paid subscription.
//
// Templates are provided through the ViewFuncs struct; pubhost owns the
// handler logic, middleware, storage, analytics and billing integration.
package pubhost

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/pubhost/analytics"
	"github.com/eringen/pubhost/billing"
)

const (
	analyticsRetentionDays = 365
	shutdownTimeout        = 10 * time.Second
)

// App is the central pubhost application. It wires together the store,
// cache, handlers, middleware, billing, analytics and templates.
type App struct {
	Config    Config
	Echo      *echo.Echo
	Store     *Store
	Cache     *SiteCache
	Views     ViewFuncs
	Billing   billing.Provider // nil when billing is disabled
	Log       *zap.Logger
	Analytics *analytics.Tracker // nil when analytics is disabled

	loginLimiter   *LoginLimiter
	analyticsStore *analytics.Store
	stopCleanup    func()
	customRoutes   []func(*App)
	ready          bool
}

// New creates an App with the given configuration and view functions.
// Call Setup (or Run) before serving requests.
func New(cfg Config, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}

	if a.Log == nil {
		log, err := NewLogger(cfg.LogLevel, cfg.Development)
		if err != nil {
			log = zap.NewNop()
		}
		a.Log = log
	}
	if a.Billing == nil && cfg.BillingEnabled() {
		a.Billing = billing.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.PriceID)
	}
	return a
}

// Setup validates the configuration, opens the databases and registers
// middleware and routes. It is idempotent.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return err
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("pubhost: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewSiteCache(a.Store, a.Config.CacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if a.Config.AnalyticsEnabled {
		if err := a.setupAnalytics(); err != nil {
			return err
		}
	}

	a.Echo.Validator = NewFormValidator()
	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

func (a *App) setupAnalytics() error {
	as, err := analytics.NewStore(a.Config.AnalyticsDatabasePath)
	if err != nil {
		return fmt.Errorf("pubhost: init analytics: %w", err)
	}
	a.analyticsStore = as

	host := ""
	if u, err := url.Parse(a.Config.URL); err == nil {
		host = u.Hostname()
	}
	tracker, err := analytics.NewTracker(as, host)
	if err != nil {
		return fmt.Errorf("pubhost: init analytics tracker: %w", err)
	}
	a.Analytics = tracker
	a.stopCleanup = as.StartCleanupScheduler(analyticsRetentionDays, 24*time.Hour, func(err error) {
		a.Log.Error("analytics cleanup failed", zap.Error(err))
	})
	return nil
}

// Run sets the app up and serves HTTP until ctx is cancelled, then shuts the
// server down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("listening", zap.String("addr", a.Config.Addr), zap.String("url", a.Config.URL))
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Log.Info("shutting down")
		return a.Echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Framework assets are embedded; everything else under /public comes
	// from StaticDir, including user uploads.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.StripPrefix("/public/", http.FileServer(http.FS(embeddedFS)))
	e.GET("/public/app.css", echo.WrapHandler(embeddedHandler))
	e.GET("/public/editor.js", echo.WrapHandler(embeddedHandler))
	e.Static("/public", a.Config.StaticDir)
	e.GET("/robots.txt", a.handleRobots)

	// Public
	e.GET("/", a.handleHome)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/blog/:subdirectory/", a.handleBlogIndex)
	e.GET("/blog/:subdirectory/feed.xml", a.handleFeed)
	e.GET("/blog/:subdirectory/:slug/", a.handleBlogPost)

	// Accounts
	e.GET("/signup/", a.handleSignUpForm)
	e.POST("/signup/", a.handleSignUp)
	e.GET("/signin/", a.handleSignInForm)
	e.POST("/signin/", a.handleSignIn)
	e.POST("/signout/", a.handleSignOut)

	// Dashboard
	d := e.Group("/dashboard", a.requireUser)
	d.GET("/", a.handleDashboard)
	d.GET("/subdirectory/", a.handleSubdirectoryCheck)

	d.GET("/sites/new/", a.handleNewSite)
	d.POST("/sites/new/", a.handleCreateSite)
	d.GET("/sites/:siteID/", a.handleSite)
	d.GET("/sites/:siteID/settings/", a.handleSiteSettings)
	d.POST("/sites/:siteID/settings/", a.handleUpdateSite)
	d.POST("/sites/:siteID/image/", a.handleSiteImage)
	d.POST("/sites/:siteID/delete/", a.handleDeleteSite)

	d.GET("/sites/:siteID/posts/new/", a.handleNewPost)
	d.POST("/sites/:siteID/posts/", a.handleCreatePost)
	d.GET("/sites/:siteID/posts/:postID/", a.handleEditPost)
	d.POST("/sites/:siteID/posts/:postID/", a.handleUpdatePost)
	d.POST("/sites/:siteID/posts/:postID/delete/", a.handleDeletePost)

	d.GET("/sites/:siteID/drafts/:key", a.handleGetDraft)
	d.PUT("/sites/:siteID/drafts/:key", a.handlePutDraft)
	d.DELETE("/sites/:siteID/drafts/:key", a.handleDeleteDraft)

	d.GET("/images/", a.handleImageList)
	d.POST("/images/", a.handleImageUpload)
	d.DELETE("/images/:filename", a.handleImageDelete)

	d.GET("/pricing/", a.handlePricing)
	d.POST("/billing/checkout/", a.handleCheckout)
	d.POST("/billing/portal/", a.handlePortal)

	e.POST("/api/webhooks/stripe", a.handleStripeWebhook)
}

// Close releases background goroutines and database handles. Call it when
// the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.stopCleanup != nil {
		a.stopCleanup()
		a.stopCleanup = nil
	}
	if a.Analytics != nil {
		a.Analytics.Stop()
	}
	var errs []error
	if a.analyticsStore != nil {
		errs = append(errs, a.analyticsStore.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	_ = a.Log.Sync()
	return errors.Join(errs...)
}
