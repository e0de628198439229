package analytics

import (
	"context"
	"time"
)

// dedupeWindow is how long repeat views of a path by the same visitor count once.
const dedupeWindow = 30 * time.Minute

// Hit describes a served public page.
type Hit struct {
	SiteID    string
	PostSlug  string
	Path      string
	IP        string
	UserAgent string
	Referrer  string
	DNT       bool
}

// Tracker turns page hits into stored views.
type Tracker struct {
	store   *Store
	salt    string
	ownHost string
	dedupe  *rateLimiter
}

// NewTracker creates a Tracker. ownHost is the platform's host name; referrers
// from it count as direct traffic. Call Stop when done.
func NewTracker(store *Store, ownHost string) (*Tracker, error) {
	salt, err := store.salt()
	if err != nil {
		return nil, err
	}
	return &Tracker{
		store:   store,
		salt:    salt,
		ownHost: ownHost,
		dedupe:  newRateLimiter(1, dedupeWindow),
	}, nil
}

// Stop releases the de-duplication goroutine. Calling it again is a no-op.
func (t *Tracker) Stop() {
	t.dedupe.stop()
}

// VisitorID returns the anonymous visitor identifier for ip and user agent.
func (t *Tracker) VisitorID(ip, userAgent string) string {
	return hashWithSalt(t.salt, ip+"|"+userAgent)
}

// Track records h unless the client opted out, is a bot, or already viewed
// the same path within the de-duplication window. It reports whether a view
// was stored.
func (t *Tracker) Track(ctx context.Context, h Hit) (bool, error) {
	if h.DNT || IsBot(h.UserAgent) {
		return false, nil
	}
	visitor := t.VisitorID(h.IP, h.UserAgent)
	key := visitor + "|" + h.Path
	if !t.dedupe.allow(key) {
		return false, nil
	}
	err := t.store.SaveView(ctx, View{
		SiteID:    h.SiteID,
		PostSlug:  h.PostSlug,
		Path:      h.Path,
		VisitorID: visitor,
		Device:    Device(h.UserAgent),
		Referrer:  CleanReferrer(h.Referrer, t.ownHost),
		Timestamp: time.Now(),
	})
	if err != nil {
		// The view was not stored, so a retry must still count.
		t.dedupe.release(key)
		return false, err
	}
	return true, nil
}

// Stats returns aggregated views of a site over the last days days.
func (t *Tracker) Stats(ctx context.Context, siteID string, days int) (*Stats, error) {
	return t.store.SiteStats(ctx, siteID, days)
}

// Forget removes the stored views of a deleted site.
func (t *Tracker) Forget(ctx context.Context, siteID string) error {
	return t.store.DeleteSite(ctx, siteID)
}
