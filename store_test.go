package pubhost

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "pubhost.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUser(t *testing.T, s *Store, email string) User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), email, "Test User", "correct horse")
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", email, err)
	}
	return u
}

func mustSite(t *testing.T, s *Store, userID, sub string) Site {
	t.Helper()
	site, err := s.CreateSite(context.Background(), Site{
		UserID:       userID,
		Name:         "Site " + sub,
		Subdirectory: sub,
		Description:  "About " + sub,
	})
	if err != nil {
		t.Fatalf("CreateSite(%s) failed: %v", sub, err)
	}
	return site
}

const testContent = `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Hello"}]}]}`

func mustPost(t *testing.T, s *Store, site Site, slug string, published bool) Post {
	t.Helper()
	p, err := s.CreatePost(context.Background(), Post{
		SiteID:      site.ID,
		UserID:      site.UserID,
		Title:       "Post " + slug,
		Slug:        slug,
		Description: "Description of " + slug,
		CoverImage:  "/public/uploads/cover.jpg",
		Content:     testContent,
		Published:   published,
	})
	if err != nil {
		t.Fatalf("CreatePost(%s) failed: %v", slug, err)
	}
	return p
}

func TestNewStoreSetsSchemaVersion(t *testing.T) {
	s := setupTestStore(t)
	v, err := s.getSetting("schema_version")
	if err != nil {
		t.Fatalf("getSetting failed: %v", err)
	}
	if v != "1" {
		t.Errorf("schema_version = %q, want %q", v, "1")
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCreateUserAndAuthenticate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "  Ada@Example.com ", "Ada", "correct horse")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.Email != "ada@example.com" {
		t.Errorf("Email = %q, want normalized lowercase", u.Email)
	}
	if u.PasswordHash == "correct horse" || u.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}

	if _, err := s.CreateUser(ctx, "ada@example.com", "Other", "another pass"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email err = %v, want ErrEmailTaken", err)
	}

	got, err := s.Authenticate(ctx, "ADA@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("Authenticate returned %s, want %s", got.ID, u.ID)
	}
	if _, err := s.Authenticate(ctx, "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := s.Authenticate(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}

func TestSetPasswordAndCustomerID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "bob@example.com")

	if err := s.SetPassword(ctx, u.ID, "new password"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if _, err := s.Authenticate(ctx, u.Email, "new password"); err != nil {
		t.Errorf("Authenticate with new password failed: %v", err)
	}
	if err := s.SetCustomerID(ctx, u.ID, "cus_123"); err != nil {
		t.Fatalf("SetCustomerID failed: %v", err)
	}
	got, err := s.GetUserByCustomerID(ctx, "cus_123")
	if err != nil {
		t.Fatalf("GetUserByCustomerID failed: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("GetUserByCustomerID = %s, want %s", got.ID, u.ID)
	}
	if _, err := s.GetUserByCustomerID(ctx, "cus_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing customer err = %v, want ErrNotFound", err)
	}
	if err := s.SetPassword(ctx, "missing", "whatever1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetPassword on missing user err = %v, want ErrNotFound", err)
	}
}

func TestCreateSiteSubdirectoryUnique(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")

	site := mustSite(t, s, alice.ID, "Travel-Notes")
	if site.Subdirectory != "travel-notes" {
		t.Errorf("Subdirectory = %q, want lowercase", site.Subdirectory)
	}

	_, err := s.CreateSite(ctx, Site{UserID: bob.ID, Name: "Copy", Subdirectory: "TRAVEL-NOTES", Description: "x"})
	if !errors.Is(err, ErrSubdirectoryTaken) {
		t.Errorf("duplicate subdirectory err = %v, want ErrSubdirectoryTaken", err)
	}

	ok, err := s.SubdirectoryAvailable(ctx, "travel-notes", site.ID)
	if err != nil || !ok {
		t.Errorf("SubdirectoryAvailable excluding own site = %v, %v; want true", ok, err)
	}
	ok, err = s.SubdirectoryAvailable(ctx, "travel-notes", "")
	if err != nil || ok {
		t.Errorf("SubdirectoryAvailable = %v, %v; want false", ok, err)
	}
}

func TestSitesAreScopedToOwner(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	mallory := mustUser(t, s, "mallory@example.com")
	site := mustSite(t, s, alice.ID, "alice")

	if _, err := s.GetSite(ctx, mallory.ID, site.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSite by other user err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteSite(ctx, mallory.ID, site.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteSite by other user err = %v, want ErrNotFound", err)
	}
	hijack := site
	hijack.UserID = mallory.ID
	hijack.Name = "pwned"
	if _, err := s.UpdateSite(ctx, hijack); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSite by other user err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateSiteImage(ctx, mallory.ID, site.ID, "/x.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSiteImage by other user err = %v, want ErrNotFound", err)
	}

	sites, err := s.ListSites(ctx, mallory.ID)
	if err != nil {
		t.Fatalf("ListSites failed: %v", err)
	}
	if len(sites) != 0 {
		t.Errorf("mallory sees %d sites, want 0", len(sites))
	}
	n, err := s.CountSites(ctx, alice.ID)
	if err != nil || n != 1 {
		t.Errorf("CountSites = %d, %v; want 1", n, err)
	}
}

func TestUpdateSite(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")
	site := mustSite(t, s, u.ID, "old")
	other := mustSite(t, s, u.ID, "taken")

	site.Name = "Renamed"
	site.Subdirectory = "New-Home"
	updated, err := s.UpdateSite(ctx, site)
	if err != nil {
		t.Fatalf("UpdateSite failed: %v", err)
	}
	if updated.Name != "Renamed" || updated.Subdirectory != "new-home" {
		t.Errorf("updated = %+v", updated)
	}
	if _, err := s.GetSiteBySubdirectory(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old subdirectory still resolves: %v", err)
	}

	site.Subdirectory = other.Subdirectory
	if _, err := s.UpdateSite(ctx, site); !errors.Is(err, ErrSubdirectoryTaken) {
		t.Errorf("UpdateSite onto taken subdirectory err = %v, want ErrSubdirectoryTaken", err)
	}

	if err := s.UpdateSiteImage(ctx, u.ID, site.ID, "/public/uploads/logo.jpg"); err != nil {
		t.Fatalf("UpdateSiteImage failed: %v", err)
	}
	got, err := s.GetSiteBySubdirectory(ctx, "NEW-HOME")
	if err != nil {
		t.Fatalf("GetSiteBySubdirectory failed: %v", err)
	}
	if got.ImageURL != "/public/uploads/logo.jpg" {
		t.Errorf("ImageURL = %q", got.ImageURL)
	}
}

func TestPostsSlugUniquePerSite(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")
	a := mustSite(t, s, u.ID, "a")
	b := mustSite(t, s, u.ID, "b")

	first := mustPost(t, s, a, "hello", true)
	mustPost(t, s, b, "hello", true) // same slug on another site is fine

	_, err := s.CreatePost(ctx, Post{SiteID: a.ID, UserID: u.ID, Title: "Dup", Slug: "hello", Content: testContent})
	if !errors.Is(err, ErrSlugTaken) {
		t.Errorf("duplicate slug err = %v, want ErrSlugTaken", err)
	}

	second := mustPost(t, s, a, "second", false)
	second.Slug = first.Slug
	if _, err := s.UpdatePost(ctx, second); !errors.Is(err, ErrSlugTaken) {
		t.Errorf("UpdatePost onto taken slug err = %v, want ErrSlugTaken", err)
	}

	ok, err := s.SlugAvailable(ctx, a.ID, "hello", first.ID)
	if err != nil || !ok {
		t.Errorf("SlugAvailable excluding own post = %v, %v; want true", ok, err)
	}
}

func TestPostListsAndPublishing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")
	site := mustSite(t, s, u.ID, "blog")

	mustPost(t, s, site, "one", true)
	draft := mustPost(t, s, site, "two", false)
	mustPost(t, s, site, "three", true)

	all, err := s.ListPosts(ctx, site.ID)
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListPosts returned %d posts, want 3", len(all))
	}
	if all[0].Slug != "three" || all[2].Slug != "one" {
		t.Errorf("ListPosts order = %s, %s, %s; want newest first", all[0].Slug, all[1].Slug, all[2].Slug)
	}

	published, err := s.ListPublishedPosts(ctx, site.ID)
	if err != nil {
		t.Fatalf("ListPublishedPosts failed: %v", err)
	}
	if len(published) != 2 {
		t.Errorf("ListPublishedPosts returned %d posts, want 2", len(published))
	}
	if _, err := s.GetPublishedPost(ctx, site.ID, "two"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unpublished post visible: %v", err)
	}

	draft.Published = true
	draft.Title = "Two, revised"
	updated, err := s.UpdatePost(ctx, draft)
	if err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}
	if !updated.Published || updated.Title != "Two, revised" {
		t.Errorf("updated = %+v", updated)
	}
	if _, err := s.GetPublishedPost(ctx, site.ID, "two"); err != nil {
		t.Errorf("GetPublishedPost after publishing failed: %v", err)
	}
}

func TestPostsScopedToOwner(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	mallory := mustUser(t, s, "mallory@example.com")
	site := mustSite(t, s, alice.ID, "alice")
	post := mustPost(t, s, site, "secret", false)

	if _, err := s.GetPost(ctx, mallory.ID, site.ID, post.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPost by other user err = %v, want ErrNotFound", err)
	}
	if err := s.DeletePost(ctx, mallory.ID, site.ID, post.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeletePost by other user err = %v, want ErrNotFound", err)
	}
	post.UserID = mallory.ID
	if _, err := s.UpdatePost(ctx, post); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatePost by other user err = %v, want ErrNotFound", err)
	}
}

func TestDeleteSiteCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")
	site := mustSite(t, s, u.ID, "gone")
	post := mustPost(t, s, site, "p", true)
	if _, err := s.SaveDraft(ctx, Draft{UserID: u.ID, SiteID: site.ID, Key: "new", Payload: `{"title":"x"}`}); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}

	if err := s.DeleteSite(ctx, u.ID, site.ID); err != nil {
		t.Fatalf("DeleteSite failed: %v", err)
	}
	if _, err := s.GetPost(ctx, u.ID, site.ID, post.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("post survived site deletion: %v", err)
	}
	if _, err := s.GetDraft(ctx, u.ID, site.ID, "new"); !errors.Is(err, ErrNotFound) {
		t.Errorf("draft survived site deletion: %v", err)
	}
}

func TestDraftsLastWriteWins(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")
	site := mustSite(t, s, u.ID, "drafts")

	if _, err := s.GetDraft(ctx, u.ID, site.ID, "new"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDraft before save err = %v, want ErrNotFound", err)
	}
	for _, payload := range []string{`{"title":"first"}`, `{"title":"second"}`} {
		if _, err := s.SaveDraft(ctx, Draft{UserID: u.ID, SiteID: site.ID, Key: "new", Payload: payload}); err != nil {
			t.Fatalf("SaveDraft failed: %v", err)
		}
	}
	d, err := s.GetDraft(ctx, u.ID, site.ID, "new")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if d.Payload != `{"title":"second"}` {
		t.Errorf("Payload = %s, want the last write", d.Payload)
	}
	if time.Since(d.UpdatedAt) > time.Minute {
		t.Errorf("UpdatedAt = %v, want recent", d.UpdatedAt)
	}

	if err := s.DeleteDraft(ctx, u.ID, site.ID, "new"); err != nil {
		t.Fatalf("DeleteDraft failed: %v", err)
	}
	if err := s.DeleteDraft(ctx, u.ID, site.ID, "new"); err != nil {
		t.Errorf("DeleteDraft on missing draft should not fail: %v", err)
	}
}

func TestSaveDraftRejectsBadPayloads(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")
	site := mustSite(t, s, u.ID, "drafts")

	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", "hello", ErrInvalidDraft},
		{"array", `[1,2]`, ErrInvalidDraft},
		{"null", `null`, ErrInvalidDraft},
		{"too large", `{"x":"` + strings.Repeat("a", maxDraftSize) + `"}`, ErrDraftTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SaveDraft(ctx, Draft{UserID: u.ID, SiteID: site.ID, Key: "new", Payload: tt.payload})
			if !errors.Is(err, tt.want) {
				t.Errorf("SaveDraft err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestImages(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")

	img, err := s.SaveImage(ctx, Image{UserID: alice.ID, Filename: "cat.jpg", URL: "/public/uploads/a/cat.jpg", Width: 1200, Height: 800, Size: 1024})
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if img.ID == "" || img.UploadedAt.IsZero() {
		t.Errorf("SaveImage did not fill ID/UploadedAt: %+v", img)
	}

	_, err = s.SaveImage(ctx, Image{UserID: alice.ID, Filename: "cat.jpg", URL: "/public/uploads/a/cat.jpg"})
	if !isUniqueViolation(err) {
		t.Errorf("duplicate SaveImage err = %v, want unique violation", err)
	}

	list, err := s.ListImages(ctx, alice.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListImages = %d, %v; want 1", len(list), err)
	}
	if err := s.DeleteImage(ctx, bob.ID, "cat.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteImage by other user err = %v, want ErrNotFound", err)
	}

	if _, err := s.SaveImage(ctx, Image{UserID: bob.ID, Filename: "cat.jpg", URL: "/public/uploads/b/cat.jpg"}); err != nil {
		t.Errorf("same filename for another user: %v", err)
	}
	if err := s.DeleteImage(ctx, alice.ID, "cat.jpg"); err != nil {
		t.Errorf("DeleteImage failed: %v", err)
	}
	if list, err := s.ListImages(ctx, bob.ID); err != nil || len(list) != 1 {
		t.Errorf("other user's image affected: %d, %v", len(list), err)
	}
}

func TestSubscriptions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")

	sub, err := s.GetSubscription(ctx, u.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSubscription before upsert err = %v, want ErrNotFound", err)
	}
	if sub.Active() {
		t.Error("nil subscription must not be active")
	}

	end := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	if err := s.UpsertSubscription(ctx, Subscription{ID: "sub_1", UserID: u.ID, Status: "active", PlanID: "price_1", Interval: "month", CurrentPeriodEnd: end}); err != nil {
		t.Fatalf("UpsertSubscription failed: %v", err)
	}
	sub, err = s.GetSubscription(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if !sub.Active() || !sub.CurrentPeriodEnd.Equal(end) {
		t.Errorf("subscription = %+v, want active until %v", sub, end)
	}

	if err := s.UpsertSubscription(ctx, Subscription{ID: "sub_1", UserID: u.ID, Status: "canceled", CurrentPeriodEnd: end}); err != nil {
		t.Fatalf("UpsertSubscription update failed: %v", err)
	}
	sub, _ = s.GetSubscription(ctx, u.ID)
	if sub.Active() {
		t.Error("canceled subscription must not be active")
	}
}

func TestSubscriptionActive(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)
	tests := []struct {
		sub  Subscription
		want bool
	}{
		{Subscription{Status: "active", CurrentPeriodEnd: future}, true},
		{Subscription{Status: "trialing", CurrentPeriodEnd: future}, true},
		{Subscription{Status: "active", CurrentPeriodEnd: past}, false},
		{Subscription{Status: "past_due", CurrentPeriodEnd: future}, false},
	}
	for _, tt := range tests {
		if got := tt.sub.Active(); got != tt.want {
			t.Errorf("Active(%s, end in future=%v) = %v, want %v", tt.sub.Status, tt.sub.CurrentPeriodEnd.After(time.Now()), got, tt.want)
		}
	}
}
