package pubhost

import (
	"context"
	"sync"
	"time"
)

// SiteEntry is the cached public view of a site: the site, its owner's
// display name and its published posts, newest first.
type SiteEntry struct {
	Site   Site
	Author string
	Posts  []Post
}

// Post returns the published post with slug, or ErrNotFound.
func (e *SiteEntry) Post(slug string) (Post, error) {
	for _, p := range e.Posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Post{}, ErrNotFound
}

type siteCacheItem struct {
	entry   *SiteEntry
	fetched time.Time
}

// SiteCache is an in-memory, per-subdirectory cache of public site data with TTL.
type SiteCache struct {
	mu    sync.RWMutex
	items map[string]siteCacheItem
	ttl   time.Duration
	store *Store
}

// NewSiteCache creates a SiteCache backed by the given Store.
func NewSiteCache(s *Store, ttl time.Duration) *SiteCache {
	return &SiteCache{store: s, ttl: ttl, items: make(map[string]siteCacheItem)}
}

func (c *SiteCache) lookup(subdirectory string) (*SiteEntry, bool) {
	it, ok := c.items[subdirectory]
	if !ok || time.Since(it.fetched) >= c.ttl {
		return nil, false
	}
	return it.entry, true
}

// evictExpired drops entries older than the TTL. Caller holds c.mu.
func (c *SiteCache) evictExpired() {
	for sub, it := range c.items {
		if time.Since(it.fetched) >= c.ttl {
			delete(c.items, sub)
		}
	}
}

// Invalidate drops the cached entries for the given subdirectories so the
// next read loads fresh data.
func (c *SiteCache) Invalidate(subdirectories ...string) {
	c.mu.Lock()
	for _, sub := range subdirectories {
		delete(c.items, normalizeSubdirectory(sub))
	}
	c.mu.Unlock()
}

// Get returns the public data for a site. It tries a read lock first and
// only takes the write lock when a reload is needed.
func (c *SiteCache) Get(ctx context.Context, subdirectory string) (*SiteEntry, error) {
	subdirectory = normalizeSubdirectory(subdirectory)

	c.mu.RLock()
	entry, ok := c.lookup(subdirectory)
	c.mu.RUnlock()
	if ok {
		return entry, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.lookup(subdirectory); ok {
		return entry, nil
	}
	c.evictExpired()
	site, err := c.store.GetSiteBySubdirectory(ctx, subdirectory)
	if err != nil {
		return nil, err
	}
	owner, err := c.store.GetUser(ctx, site.UserID)
	if err != nil {
		return nil, err
	}
	posts, err := c.store.ListPublishedPosts(ctx, site.ID)
	if err != nil {
		return nil, err
	}
	entry = &SiteEntry{Site: site, Author: owner.Name, Posts: posts}
	c.items[subdirectory] = siteCacheItem{entry: entry, fetched: time.Now()}
	return entry, nil
}
