package pubhost

import "time"

// User is an account that owns sites, posts and uploaded images.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CustomerID   string // payment provider customer, empty until first checkout
	CreatedAt    time.Time
}

// Site is a tenant-owned blog served under /blog/<Subdirectory>/.
type Site struct {
	ID           string
	UserID       string
	Name         string
	Subdirectory string
	Description  string
	ImageURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Link returns the public path of the site index.
func (s Site) Link() string {
	return "/blog/" + s.Subdirectory + "/"
}

// Post is an article of a Site. Slug is unique within the site.
type Post struct {
	ID          string
	SiteID      string
	UserID      string
	Title       string
	Slug        string
	Description string
	CoverImage  string
	Content     string // rich-text JSON document
	Published   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Link returns the public path of the post under the given site.
func (p Post) Link(site Site) string {
	return "/blog/" + site.Subdirectory + "/" + p.Slug + "/"
}

// Image is metadata for an uploaded, processed image.
type Image struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	Filename     string    `json:"filename"`
	URL          string    `json:"url"`
	OriginalName string    `json:"original_name"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Size         int       `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Draft is unsaved post-editor state. Key is "new" for a post that does not
// exist yet, or the post ID being edited.
type Draft struct {
	UserID    string
	SiteID    string
	Key       string
	Payload   string
	UpdatedAt time.Time
}

// Subscription mirrors the payment provider's subscription for a user.
type Subscription struct {
	ID                 string
	UserID             string
	Status             string
	PlanID             string
	Interval           string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	UpdatedAt          time.Time
}

// Active reports whether the subscription currently grants the paid plan.
func (s *Subscription) Active() bool {
	if s == nil {
		return false
	}
	if s.Status != "active" && s.Status != "trialing" {
		return false
	}
	return s.CurrentPeriodEnd.After(time.Now())
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}
