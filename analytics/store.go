package analytics

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides database operations for analytics.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the analytics database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create analytics dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS views (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site_id TEXT NOT NULL,
			post_slug TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL,
			visitor_id TEXT NOT NULL,
			device TEXT NOT NULL,
			referrer TEXT NOT NULL,
			ts INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_views_site_ts ON views(site_id, ts);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 1

// migrate applies incremental schema migrations based on a version stored in the settings table.
func (s *Store) migrate() error {
	verStr, err := s.GetSetting("schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	version := 0
	if verStr != "" {
		version, err = strconv.Atoi(verStr)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}

	if version < 1 {
		version = 1
	}

	return s.SetSetting("schema_version", strconv.Itoa(version))
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// salt loads or generates the persistent salt used for visitor hashing.
func (s *Store) salt() (string, error) {
	v, err := s.GetSetting("hash_salt")
	if err != nil {
		return "", fmt.Errorf("read hash salt: %w", err)
	}
	if v != "" {
		return v, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	v = hex.EncodeToString(b)
	if err := s.SetSetting("hash_salt", v); err != nil {
		return "", fmt.Errorf("store hash salt: %w", err)
	}
	return v, nil
}

// SaveView stores a view.
func (s *Store) SaveView(ctx context.Context, v View) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO views (site_id, post_slug, path, visitor_id, device, referrer, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.SiteID, v.PostSlug, v.Path, v.VisitorID, v.Device, v.Referrer, v.Timestamp.UTC().Unix())
	if err != nil {
		return fmt.Errorf("save view: %w", err)
	}
	return nil
}

// SiteStats aggregates the views of a site over the last days days, ending now.
func (s *Store) SiteStats(ctx context.Context, siteID string, days int) (*Stats, error) {
	if days < 1 {
		days = 1
	}
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))
	stats := &Stats{Days: days}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT visitor_id) FROM views WHERE site_id = ? AND ts >= ?`,
		siteID, from.Unix()).Scan(&stats.TotalViews, &stats.UniqueVisitors)
	if err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}

	daily := make(map[string]int)
	rows, err := s.db.QueryContext(ctx, `SELECT strftime('%Y-%m-%d', ts, 'unixepoch') AS day, COUNT(*)
		FROM views WHERE site_id = ? AND ts >= ? GROUP BY day`, siteID, from.Unix())
	if err != nil {
		return nil, fmt.Errorf("daily views: %w", err)
	}
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			rows.Close()
			return nil, err
		}
		daily[day] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Fill gaps so charts get one entry per day.
	for d := 0; d < days; d++ {
		day := from.AddDate(0, 0, d).Format("2006-01-02")
		stats.DailyViews = append(stats.DailyViews, DailyView{Date: day, Views: daily[day]})
	}

	stats.TopPosts, err = s.topPosts(ctx, siteID, from)
	if err != nil {
		return nil, err
	}
	stats.Referrers, err = s.dimension(ctx, "referrer", siteID, from)
	if err != nil {
		return nil, err
	}
	stats.Devices, err = s.dimension(ctx, "device", siteID, from)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) topPosts(ctx context.Context, siteID string, from time.Time) ([]PageStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT post_slug, COUNT(*) AS n FROM views
		WHERE site_id = ? AND ts >= ? AND post_slug != ''
		GROUP BY post_slug ORDER BY n DESC, post_slug LIMIT 10`, siteID, from.Unix())
	if err != nil {
		return nil, fmt.Errorf("top posts: %w", err)
	}
	defer rows.Close()
	var out []PageStat
	for rows.Next() {
		var p PageStat
		if err := rows.Scan(&p.Slug, &p.Views); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// dimension groups views by column, which must be a trusted column name.
func (s *Store) dimension(ctx context.Context, column, siteID string, from time.Time) ([]DimensionStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+column+`, COUNT(*) AS n FROM views
		WHERE site_id = ? AND ts >= ? GROUP BY `+column+` ORDER BY n DESC, `+column+` LIMIT 10`, siteID, from.Unix())
	if err != nil {
		return nil, fmt.Errorf("%s stats: %w", column, err)
	}
	defer rows.Close()
	var out []DimensionStat
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteSite removes every view of a site.
func (s *Store) DeleteSite(ctx context.Context, siteID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM views WHERE site_id = ?`, siteID); err != nil {
		return fmt.Errorf("delete site views: %w", err)
	}
	return nil
}

// CleanupOldViews removes views older than the retention period.
func (s *Store) CleanupOldViews(retentionDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	if _, err := s.db.Exec(`DELETE FROM views WHERE ts < ?`, cutoff.Unix()); err != nil {
		return fmt.Errorf("cleanup views: %w", err)
	}
	return nil
}

// StartCleanupScheduler runs periodic cleanup of old data. onError receives
// cleanup failures. Returns a stop function.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration, onError func(error)) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		for {
			select {
			case <-ticker.C:
				if err := s.CleanupOldViews(retentionDays); err != nil && onError != nil {
					onError(err)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}
