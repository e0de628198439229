// Package analytics provides privacy-first view counting for hosted sites.
//
// Views are recorded server-side when a public page is served. No cookies are
// set; visitors are identified by a salted hash of IP and User-Agent, and the
// salt never leaves the analytics database.
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// View is a single counted page view.
type View struct {
	SiteID    string
	PostSlug  string // empty for the site index
	Path      string
	VisitorID string
	Device    string
	Referrer  string
	Timestamp time.Time
}

// Stats holds aggregated view data of one site.
type Stats struct {
	Days           int
	TotalViews     int
	UniqueVisitors int
	DailyViews     []DailyView
	TopPosts       []PageStat
	Referrers      []DimensionStat
	Devices        []DimensionStat
}

// PageStat represents view counts of one post.
type PageStat struct {
	Slug  string
	Views int
}

// DimensionStat represents a dimension breakdown (referrer, device).
type DimensionStat struct {
	Name  string
	Count int
}

// DailyView represents views per day.
type DailyView struct {
	Date  string
	Views int
}

func hashWithSalt(salt, value string) string {
	h := sha256.New()
	h.Write([]byte(salt + value))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Device classifies a User-Agent as Desktop, Mobile or Tablet.
func Device(ua string) string {
	ua = strings.ToLower(ua)
	// iPad user agents contain "mobile" too, so tablets are checked first.
	switch {
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		return "Tablet"
	case strings.Contains(ua, "mobile"):
		return "Mobile"
	default:
		return "Desktop"
	}
}

var botMarkers = []string{
	"bot", "crawler", "spider", "crawl", "slurp", "scrape",
	"googlebot", "bingbot", "yandex", "baidu", "duckduckbot",
	"facebookexternalhit", "twitterbot", "linkedinbot",
	"ahrefsbot", "semrushbot", "mj12bot", "dotbot",
	"curl/", "wget/", "python-requests", "go-http-client",
}

// IsBot checks if the User-Agent is likely a bot, crawler or script.
func IsBot(ua string) bool {
	if strings.TrimSpace(ua) == "" {
		return true
	}
	ua = strings.ToLower(ua)
	for _, bot := range botMarkers {
		if strings.Contains(ua, bot) {
			return true
		}
	}
	return false
}

// referrerDomainRegex is pre-compiled for use in CleanReferrer.
var referrerDomainRegex = regexp.MustCompile(`^https?://(?:www\.)?([^/:]+)`)

// CleanReferrer reduces a referrer URL to its domain. Referrers from ownHost
// (navigation inside the platform) and empty referrers become "Direct".
func CleanReferrer(ref, ownHost string) string {
	if ref == "" {
		return "Direct"
	}
	matches := referrerDomainRegex.FindStringSubmatch(ref)
	if len(matches) < 2 {
		return "Other"
	}
	domain := strings.ToLower(matches[1])
	if ownHost != "" && domain == strings.TrimPrefix(strings.ToLower(ownHost), "www.") {
		return "Direct"
	}
	switch {
	case strings.Contains(domain, "google."):
		return "Google"
	case strings.Contains(domain, "bing."):
		return "Bing"
	case strings.Contains(domain, "duckduckgo."):
		return "DuckDuckGo"
	}
	return domain
}
