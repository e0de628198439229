package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

func newTestTracker(t *testing.T) (*Tracker, *Store) {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	tracker, err := NewTracker(store, "blogs.example")
	require.NoError(t, err)
	t.Cleanup(func() {
		tracker.Stop()
		store.Close()
	})
	return tracker, store
}

func TestIsBot(t *testing.T) {
	assert.True(t, IsBot("Mozilla/5.0 (compatible; Googlebot/2.1)"))
	assert.True(t, IsBot("curl/8.4.0"))
	assert.True(t, IsBot(""))
	assert.False(t, IsBot(browserUA))
}

func TestDevice(t *testing.T) {
	assert.Equal(t, "Tablet", Device("Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) Mobile/15E148"))
	assert.Equal(t, "Mobile", Device("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0) Mobile/15E148"))
	assert.Equal(t, "Desktop", Device(browserUA))
}

func TestCleanReferrer(t *testing.T) {
	assert.Equal(t, "Direct", CleanReferrer("", "blogs.example"))
	assert.Equal(t, "Direct", CleanReferrer("https://blogs.example/blog/a/", "blogs.example"))
	assert.Equal(t, "Google", CleanReferrer("https://www.google.com/search?q=x", "blogs.example"))
	assert.Equal(t, "news.ycombinator.com", CleanReferrer("https://news.ycombinator.com/item?id=1", "blogs.example"))
	assert.Equal(t, "Other", CleanReferrer("android-app://x", "blogs.example"))
}

func TestTrackSkipsBotsAndDNT(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	stored, err := tracker.Track(ctx, Hit{SiteID: "s1", Path: "/blog/a/", IP: "203.0.113.1", UserAgent: "Googlebot/2.1"})
	require.NoError(t, err)
	assert.False(t, stored)

	stored, err = tracker.Track(ctx, Hit{SiteID: "s1", Path: "/blog/a/", IP: "203.0.113.1", UserAgent: browserUA, DNT: true})
	require.NoError(t, err)
	assert.False(t, stored)
}

func TestTrackDeduplicatesRepeatViews(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()
	hit := Hit{SiteID: "s1", PostSlug: "hello", Path: "/blog/a/hello/", IP: "203.0.113.2", UserAgent: browserUA}

	stored, err := tracker.Track(ctx, hit)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = tracker.Track(ctx, hit)
	require.NoError(t, err)
	assert.False(t, stored, "repeat view inside the window should not count")

	hit.IP = "203.0.113.3"
	stored, err = tracker.Track(ctx, hit)
	require.NoError(t, err)
	assert.True(t, stored, "another visitor should count")
}

func TestTrackCountsRetryAfterFailedSave(t *testing.T) {
	tracker, store := newTestTracker(t)
	hit := Hit{SiteID: "s1", Path: "/blog/a/", IP: "203.0.113.4", UserAgent: browserUA}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	stored, err := tracker.Track(cancelled, hit)
	require.Error(t, err)
	assert.False(t, stored)

	stored, err = tracker.Track(context.Background(), hit)
	require.NoError(t, err)
	assert.True(t, stored, "a view that was never saved must not block the retry")

	stats, err := store.SiteStats(context.Background(), "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalViews)
}

func TestTrackerStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store, err := NewStore(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	defer store.Close()
	tracker, err := NewTracker(store, "")
	require.NoError(t, err)
	tracker.Stop()
	assert.NotPanics(t, tracker.Stop)
}

func TestSiteStats(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	hits := []Hit{
		{SiteID: "s1", Path: "/blog/a/", IP: "198.51.100.1", UserAgent: browserUA},
		{SiteID: "s1", PostSlug: "one", Path: "/blog/a/one/", IP: "198.51.100.1", UserAgent: browserUA, Referrer: "https://www.google.com/"},
		{SiteID: "s1", PostSlug: "one", Path: "/blog/a/one/", IP: "198.51.100.2", UserAgent: browserUA},
		{SiteID: "s1", PostSlug: "two", Path: "/blog/a/two/", IP: "198.51.100.2", UserAgent: browserUA},
		{SiteID: "s2", PostSlug: "other", Path: "/blog/b/other/", IP: "198.51.100.3", UserAgent: browserUA},
	}
	for _, h := range hits {
		_, err := tracker.Track(ctx, h)
		require.NoError(t, err)
	}

	stats, err := tracker.Stats(ctx, "s1", 7)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalViews)
	assert.Equal(t, 2, stats.UniqueVisitors)
	require.Len(t, stats.DailyViews, 7)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), stats.DailyViews[6].Date)
	assert.Equal(t, 4, stats.DailyViews[6].Views)
	require.NotEmpty(t, stats.TopPosts)
	assert.Equal(t, PageStat{Slug: "one", Views: 2}, stats.TopPosts[0])
	assert.Contains(t, stats.Referrers, DimensionStat{Name: "Google", Count: 1})

	require.NoError(t, tracker.Forget(ctx, "s1"))
	stats, err = tracker.Stats(ctx, "s1", 7)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalViews)
}

func TestSaltIsPersistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	first, err := NewTracker(store, "")
	require.NoError(t, err)
	id := first.VisitorID("203.0.113.9", browserUA)
	first.Stop()
	require.NoError(t, store.Close())

	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()
	second, err := NewTracker(store, "")
	require.NoError(t, err)
	defer second.Stop()
	assert.Equal(t, id, second.VisitorID("203.0.113.9", browserUA))
}

func TestCleanupSchedulerStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store, err := NewStore(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	defer store.Close()
	stop := store.StartCleanupScheduler(365, 5*time.Millisecond, func(err error) { t.Errorf("cleanup: %v", err) })
	time.Sleep(20 * time.Millisecond)
	stop()
}
