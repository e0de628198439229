package pubhost

import (
	"context"
	"fmt"
	"time"
)

const postColumns = `id, site_id, user_id, title, slug, description, cover_image, content, published, created_at, updated_at`

func scanPost(r rowScanner) (Post, error) {
	var p Post
	var published int
	var created, updated int64
	if err := r.Scan(&p.ID, &p.SiteID, &p.UserID, &p.Title, &p.Slug, &p.Description,
		&p.CoverImage, &p.Content, &published, &created, &updated); err != nil {
		return Post{}, err
	}
	p.Published = published == 1
	p.CreatedAt = fromUnixNano(created)
	p.UpdatedAt = fromUnixNano(updated)
	return p, nil
}

// SlugAvailable reports whether no post of the site other than exceptPostID
// uses slug.
func (s *Store) SlugAvailable(ctx context.Context, siteID, slug, exceptPostID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE site_id = ? AND slug = ? AND id != ?`,
		siteID, slug, exceptPostID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return n == 0, nil
}

// CreatePost inserts a post. p.SiteID must belong to p.UserID; callers check
// ownership with GetSite first.
func (s *Store) CreatePost(ctx context.Context, p Post) (Post, error) {
	now := time.Now().UTC()
	p.ID = newID()
	p.CreatedAt, p.UpdatedAt = now, now
	ok, err := s.SlugAvailable(ctx, p.SiteID, p.Slug, "")
	if err != nil {
		return Post{}, err
	}
	if !ok {
		return Post{}, ErrSlugTaken
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SiteID, p.UserID, p.Title, p.Slug, p.Description, p.CoverImage, p.Content,
		boolInt(p.Published), unixNano(now), unixNano(now))
	if isUniqueViolation(err) {
		return Post{}, ErrSlugTaken
	}
	if err != nil {
		return Post{}, fmt.Errorf("insert post: %w", err)
	}
	return p, nil
}

// UpdatePost replaces the editable fields of a post owned by p.UserID.
func (s *Store) UpdatePost(ctx context.Context, p Post) (Post, error) {
	ok, err := s.SlugAvailable(ctx, p.SiteID, p.Slug, p.ID)
	if err != nil {
		return Post{}, err
	}
	if !ok {
		return Post{}, ErrSlugTaken
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET title = ?, slug = ?, description = ?, cover_image = ?,
		content = ?, published = ?, updated_at = ?
		WHERE id = ? AND site_id = ? AND user_id = ?`,
		p.Title, p.Slug, p.Description, p.CoverImage, p.Content, boolInt(p.Published), unixNano(time.Now()),
		p.ID, p.SiteID, p.UserID)
	if isUniqueViolation(err) {
		return Post{}, ErrSlugTaken
	}
	if err != nil {
		return Post{}, fmt.Errorf("update post: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return Post{}, err
	}
	return s.GetPost(ctx, p.UserID, p.SiteID, p.ID)
}

// DeletePost removes a post owned by userID.
func (s *Store) DeletePost(ctx context.Context, userID, siteID, postID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ? AND site_id = ? AND user_id = ?`, postID, siteID, userID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return requireAffected(res)
}

// GetPost returns a post regardless of published status, scoped to its owner.
func (s *Store) GetPost(ctx context.Context, userID, siteID, postID string) (Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts
		WHERE id = ? AND site_id = ? AND user_id = ?`, postID, siteID, userID))
	if err != nil {
		return Post{}, notFound("get post", err)
	}
	return p, nil
}

// GetPublishedPost returns a published post of a site by slug.
func (s *Store) GetPublishedPost(ctx context.Context, siteID, slug string) (Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts
		WHERE site_id = ? AND slug = ? AND published = 1`, siteID, slug))
	if err != nil {
		return Post{}, notFound("get published post", err)
	}
	return p, nil
}

// ListPosts returns every post of a site (published and unpublished), newest first.
func (s *Store) ListPosts(ctx context.Context, siteID string) ([]Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts WHERE site_id = ? ORDER BY created_at DESC`, siteID)
}

// ListPublishedPosts returns the published posts of a site, newest first.
func (s *Store) ListPublishedPosts(ctx context.Context, siteID string) ([]Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts WHERE site_id = ? AND published = 1 ORDER BY created_at DESC`, siteID)
}

func (s *Store) queryPosts(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
