package pubhost

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// maxDraftSize bounds the stored editor state per draft.
const maxDraftSize = 256 << 10

// SaveImage records an uploaded image. img.ID and img.UploadedAt are filled
// in when empty.
func (s *Store) SaveImage(ctx context.Context, img Image) (Image, error) {
	if img.ID == "" {
		img.ID = newID()
	}
	if img.UploadedAt.IsZero() {
		img.UploadedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO images
		(id, user_id, filename, url, original_name, width, height, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.UserID, img.Filename, img.URL, img.OriginalName, img.Width, img.Height, img.Size,
		unixNano(img.UploadedAt))
	if err != nil {
		return Image{}, fmt.Errorf("insert image: %w", err)
	}
	return img, nil
}

// ListImages returns the images uploaded by userID, newest first.
func (s *Store) ListImages(ctx context.Context, userID string) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, filename, url, original_name, width, height, size, uploaded_at
		FROM images WHERE user_id = ? ORDER BY uploaded_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		var uploaded int64
		if err := rows.Scan(&img.ID, &img.UserID, &img.Filename, &img.URL, &img.OriginalName,
			&img.Width, &img.Height, &img.Size, &uploaded); err != nil {
			return nil, err
		}
		img.UploadedAt = fromUnixNano(uploaded)
		images = append(images, img)
	}
	return images, rows.Err()
}

// DeleteImage removes the metadata of an image owned by userID.
func (s *Store) DeleteImage(ctx context.Context, userID, filename string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE user_id = ? AND filename = ?`, userID, filename)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return requireAffected(res)
}

// SaveDraft stores editor state for (user, site, key). The latest write wins.
func (s *Store) SaveDraft(ctx context.Context, d Draft) (Draft, error) {
	if len(d.Payload) > maxDraftSize {
		return Draft{}, ErrDraftTooLarge
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(d.Payload), &obj); err != nil || obj == nil {
		return Draft{}, ErrInvalidDraft
	}
	d.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO drafts (user_id, site_id, key, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, site_id, key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		d.UserID, d.SiteID, d.Key, d.Payload, unixNano(d.UpdatedAt))
	if err != nil {
		return Draft{}, fmt.Errorf("save draft: %w", err)
	}
	return d, nil
}

// GetDraft returns stored editor state, or ErrNotFound.
func (s *Store) GetDraft(ctx context.Context, userID, siteID, key string) (Draft, error) {
	d := Draft{UserID: userID, SiteID: siteID, Key: key}
	var updated int64
	err := s.db.QueryRowContext(ctx, `SELECT payload, updated_at FROM drafts WHERE user_id = ? AND site_id = ? AND key = ?`,
		userID, siteID, key).Scan(&d.Payload, &updated)
	if err != nil {
		return Draft{}, notFound("get draft", err)
	}
	d.UpdatedAt = fromUnixNano(updated)
	return d, nil
}

// DeleteDraft removes stored editor state. Deleting a missing draft is not an error.
func (s *Store) DeleteDraft(ctx context.Context, userID, siteID, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE user_id = ? AND site_id = ? AND key = ?`, userID, siteID, key)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
