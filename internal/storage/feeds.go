package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Feed is an RSS/Atom subscription polled by the direct RSS source.
type Feed struct {
	ID           int64      `json:"id"`
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	LastFetched  *time.Time `json:"last_fetched,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	ETag         string     `json:"-"`
	LastModified string     `json:"-"`
	Enabled      bool       `json:"enabled"`
}

// AddFeed subscribes to url. Adding a known url returns its existing id.
func (s *NewsStore) AddFeed(url, title string) (int64, error) {
	if title == "" {
		title = url
	}
	if _, err := s.db.Exec(`INSERT INTO feeds (url, title) VALUES (?, ?) ON CONFLICT(url) DO NOTHING`, url, title); err != nil {
		return 0, fmt.Errorf("failed to add feed: %w", err)
	}
	var id int64
	if err := s.db.QueryRow(`SELECT id FROM feeds WHERE url = ?`, url).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to look up feed: %w", err)
	}
	return id, nil
}

// RemoveFeed drops the subscription for url.
func (s *NewsStore) RemoveFeed(url string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM feeds WHERE url = ?`, url)
	if err != nil {
		return false, fmt.Errorf("failed to remove feed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Feeds returns all enabled feeds
func (s *NewsStore) Feeds() ([]Feed, error) {
	rows, err := s.db.Query(`SELECT id, url, title, last_fetched, last_error, etag, last_modified, enabled
		FROM feeds WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var f Feed
		var lastFetched sql.NullInt64
		var lastErr, etag, lastMod sql.NullString
		if err := rows.Scan(&f.ID, &f.URL, &f.Title, &lastFetched, &lastErr, &etag, &lastMod, &f.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		f.LastFetched = timeFromNull(lastFetched)
		f.LastError = lastErr.String
		f.ETag = etag.String
		f.LastModified = lastMod.String
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// UpdateFeedError records a fetch error for a feed.
func (s *NewsStore) UpdateFeedError(feedID int64, errMsg string) error {
	if _, err := s.db.Exec(`UPDATE feeds SET last_error = ? WHERE id = ?`, errMsg, feedID); err != nil {
		return fmt.Errorf("failed to update feed error: %w", err)
	}
	return nil
}

// FeedFetched clears the last error, stamps last_fetched and stores the
// cache headers from the response, when it sent any.
func (s *NewsStore) FeedFetched(feedID int64, etag, lastModified string) error {
	_, err := s.db.Exec(`UPDATE feeds SET last_error = NULL, last_fetched = ?,
			etag = COALESCE(?, etag), last_modified = COALESCE(?, last_modified)
		WHERE id = ?`, s.now().Unix(), nullString(etag), nullString(lastModified), feedID)
	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}
	return nil
}

// IsItemRead reports whether the RSS item key has been marked read.
func (s *NewsStore) IsItemRead(key string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM feed_read_marks WHERE item_key = ?`, key).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check read mark: %w", err)
	}
	return n > 0, nil
}

// MarkItemsRead records read marks for the given RSS item keys.
func (s *NewsStore) MarkItemsRead(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin read marks: %w", err)
	}
	defer tx.Rollback()

	now := s.now().Unix()
	for _, k := range keys {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO feed_read_marks (item_key, read_at) VALUES (?, ?)`, k, now); err != nil {
			return fmt.Errorf("failed to mark %s read: %w", k, err)
		}
	}
	return tx.Commit()
}
