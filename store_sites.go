package pubhost

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const siteColumns = `id, user_id, name, subdirectory, description, image_url, created_at, updated_at`

func scanSite(r rowScanner) (Site, error) {
	var st Site
	var created, updated int64
	if err := r.Scan(&st.ID, &st.UserID, &st.Name, &st.Subdirectory, &st.Description, &st.ImageURL, &created, &updated); err != nil {
		return Site{}, err
	}
	st.CreatedAt = fromUnixNano(created)
	st.UpdatedAt = fromUnixNano(updated)
	return st, nil
}

func normalizeSubdirectory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SubdirectoryAvailable reports whether no site other than exceptSiteID uses
// the subdirectory.
func (s *Store) SubdirectoryAvailable(ctx context.Context, subdirectory, exceptSiteID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites WHERE subdirectory = ? AND id != ?`,
		normalizeSubdirectory(subdirectory), exceptSiteID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check subdirectory: %w", err)
	}
	return n == 0, nil
}

// CreateSite inserts a new site owned by st.UserID. The ID and timestamps
// are assigned here.
func (s *Store) CreateSite(ctx context.Context, st Site) (Site, error) {
	now := time.Now().UTC()
	st.ID = newID()
	st.Subdirectory = normalizeSubdirectory(st.Subdirectory)
	st.CreatedAt, st.UpdatedAt = now, now
	ok, err := s.SubdirectoryAvailable(ctx, st.Subdirectory, "")
	if err != nil {
		return Site{}, err
	}
	if !ok {
		return Site{}, ErrSubdirectoryTaken
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sites (`+siteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.UserID, st.Name, st.Subdirectory, st.Description, st.ImageURL, unixNano(now), unixNano(now))
	if isUniqueViolation(err) {
		return Site{}, ErrSubdirectoryTaken
	}
	if err != nil {
		return Site{}, fmt.Errorf("insert site: %w", err)
	}
	return st, nil
}

// UpdateSite changes name, subdirectory and description of a site owned by
// st.UserID.
func (s *Store) UpdateSite(ctx context.Context, st Site) (Site, error) {
	st.Subdirectory = normalizeSubdirectory(st.Subdirectory)
	ok, err := s.SubdirectoryAvailable(ctx, st.Subdirectory, st.ID)
	if err != nil {
		return Site{}, err
	}
	if !ok {
		return Site{}, ErrSubdirectoryTaken
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sites SET name = ?, subdirectory = ?, description = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		st.Name, st.Subdirectory, st.Description, unixNano(time.Now()), st.ID, st.UserID)
	if isUniqueViolation(err) {
		return Site{}, ErrSubdirectoryTaken
	}
	if err != nil {
		return Site{}, fmt.Errorf("update site: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return Site{}, err
	}
	return s.GetSite(ctx, st.UserID, st.ID)
}

// UpdateSiteImage sets the image of a site owned by userID.
func (s *Store) UpdateSiteImage(ctx context.Context, userID, siteID, imageURL string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sites SET image_url = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		imageURL, unixNano(time.Now()), siteID, userID)
	if err != nil {
		return fmt.Errorf("update site image: %w", err)
	}
	return requireAffected(res)
}

// DeleteSite removes a site owned by userID together with its posts and drafts.
func (s *Store) DeleteSite(ctx context.Context, userID, siteID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ? AND user_id = ?`, siteID, userID)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	return requireAffected(res)
}

// GetSite returns a site owned by userID. Sites of other users are reported
// as ErrNotFound.
func (s *Store) GetSite(ctx context.Context, userID, siteID string) (Site, error) {
	st, err := scanSite(s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = ? AND user_id = ?`, siteID, userID))
	if err != nil {
		return Site{}, notFound("get site", err)
	}
	return st, nil
}

// GetSiteBySubdirectory returns the site served under subdirectory.
func (s *Store) GetSiteBySubdirectory(ctx context.Context, subdirectory string) (Site, error) {
	st, err := scanSite(s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE subdirectory = ?`,
		normalizeSubdirectory(subdirectory)))
	if err != nil {
		return Site{}, notFound("get site by subdirectory", err)
	}
	return st, nil
}

// ListSites returns the sites owned by userID, newest first.
func (s *Store) ListSites(ctx context.Context, userID string) ([]Site, error) {
	return s.querySites(ctx, `SELECT `+siteColumns+` FROM sites WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// ListAllSites returns every site ordered by most recent update. A limit of
// zero or less returns all of them.
func (s *Store) ListAllSites(ctx context.Context, limit int) ([]Site, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.querySites(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY updated_at DESC LIMIT ?`, limit)
}

// CountSites returns how many sites userID owns.
func (s *Store) CountSites(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sites: %w", err)
	}
	return n, nil
}

func (s *Store) querySites(ctx context.Context, query string, args ...any) ([]Site, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		st, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, st)
	}
	return sites, rows.Err()
}
