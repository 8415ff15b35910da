package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// NewsStore holds posted news entries and the bookmarks that point at
// them.
type NewsStore struct {
	db  *sql.DB
	log *log.Logger
	now func() time.Time
}

type Entry struct {
	EntryID       string     `json:"entry_id"`
	Source        string     `json:"source,omitempty"`
	SourceEntryID string     `json:"source_entry_id,omitempty"`
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary,omitempty"`
	Content       string     `json:"content,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	FeedTitle     string     `json:"feed_title,omitempty"`
	Color         *int64     `json:"color,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
}

// BookmarkedEntry is a bookmark joined with whatever is known about its
// entry. Entry fields are empty when the entry row carries no metadata.
type BookmarkedEntry struct {
	Entry
	UserID  string    `json:"user_id"`
	Note    string    `json:"note,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// ErrNoEntryID is returned when a reference cannot be reduced to a
// canonical entry id.
var ErrNoEntryID = errors.New("entry reference has no id, native id or url")

// OpenNews opens (creating if needed) the news database at path.
func OpenNews(path string, logger *log.Logger) (*NewsStore, error) {
	db, err := openDB(path, NewsSchema)
	if err != nil {
		return nil, err
	}
	return &NewsStore{db: db, log: storeLogger(logger, "news"), now: time.Now}, nil
}

func (s *NewsStore) Close() error {
	return s.db.Close()
}

const entryColumns = `entry_id, source, source_entry_id, url, title, summary, content,
	image_url, feed_title, color, published_at, posted_at`

// Stubs bookmarked by id alone have a NULL url.
const selectEntryColumns = `entry_id, source, source_entry_id, COALESCE(url, ''), title, summary, content,
	image_url, feed_title, color, published_at, posted_at`

// UpsertEntry inserts e or merges it into the existing row. Rows are
// matched by entry id first and by URL second, so an entry first seen as
// a bookmark stub keeps its id once the poller sees it. Empty fields never
// overwrite stored values. It returns the id the row is stored under.
func (s *NewsStore) UpsertEntry(e Entry) (string, error) {
	if e.EntryID == "" || e.URL == "" {
		return "", ErrNoEntryID
	}
	if e.Title == "" {
		e.Title = e.URL
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRow(`SELECT entry_id FROM news_entries WHERE url = ?`, e.URL).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return "", fmt.Errorf("failed to look up entry by url: %w", err)
	default:
		e.EntryID = existing
	}

	_, err = tx.Exec(`
		INSERT INTO news_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET
			source = COALESCE(excluded.source, source),
			source_entry_id = COALESCE(excluded.source_entry_id, source_entry_id),
			url = excluded.url,
			title = CASE WHEN excluded.title = excluded.url AND title <> '' THEN title ELSE excluded.title END,
			summary = COALESCE(excluded.summary, summary),
			content = COALESCE(excluded.content, content),
			image_url = COALESCE(excluded.image_url, image_url),
			feed_title = COALESCE(excluded.feed_title, feed_title),
			color = COALESCE(excluded.color, color),
			published_at = COALESCE(excluded.published_at, published_at),
			posted_at = COALESCE(excluded.posted_at, posted_at)`,
		e.EntryID, nullString(e.Source), nullString(e.SourceEntryID), e.URL, e.Title,
		nullString(e.Summary), nullString(e.Content), nullString(e.ImageURL),
		nullString(e.FeedTitle), colorOrNil(e.Color), unixOrNil(e.PublishedAt), unixOrNil(e.PostedAt))
	if err != nil {
		return "", fmt.Errorf("failed to upsert entry %s: %w", e.EntryID, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit upsert: %w", err)
	}
	return e.EntryID, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// ensureStub inserts a minimal row for ref unless one already exists
// under the same id or URL. Existing rows are never modified. A ref
// without a URL gets a stub keyed by its id alone.
func ensureStub(db execer, ref EntryRef) error {
	id := CanonicalEntryID(ref)
	if id == "" {
		return ErrNoEntryID
	}
	title := ref.Title
	if title == "" {
		title = ref.URL
	}
	if title == "" {
		title = id
	}
	source := ref.Source
	if source == "" && ref.NativeID != nil {
		source = DefaultSource
	}
	_, err := db.Exec(`
		INSERT OR IGNORE INTO news_entries
			(entry_id, source, source_entry_id, url, title, summary, image_url, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nullString(source), nullString(ref.SourceEntryID()), nullString(ref.URL), title,
		nullString(ref.Summary), nullString(ref.ImageURL), unixOrNil(ref.PublishedAt))
	if err != nil {
		return fmt.Errorf("failed to insert stub %s: %w", id, err)
	}
	return nil
}

// MarkPosted records that the entry was delivered to the channel.
func (s *NewsStore) MarkPosted(entryID string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE news_entries SET posted_at = ? WHERE entry_id = ?`, at.Unix(), entryID)
	if err != nil {
		return fmt.Errorf("failed to mark %s posted: %w", entryID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to mark %s posted: no such entry", entryID)
	}
	return nil
}

// WasPosted reports whether an entry with this URL has already been
// posted. Bookmark stubs do not count.
func (s *NewsStore) WasPosted(url string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM news_entries WHERE url = ? AND posted_at IS NOT NULL`, url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check posted url: %w", err)
	}
	return n > 0, nil
}

// EntryIDForURL returns the id stored for url, or "" when unknown.
func (s *NewsStore) EntryIDForURL(url string) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT entry_id FROM news_entries WHERE url = ?`, url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up url: %w", err)
	}
	return id, nil
}

// GetEntry returns the entry stored under id, or nil when absent.
func (s *NewsStore) GetEntry(id string) (*Entry, error) {
	row := s.db.QueryRow(`SELECT `+selectEntryColumns+` FROM news_entries WHERE entry_id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s: %w", id, err)
	}
	return e, nil
}

// RecentEntries returns posted entries, newest post first.
func (s *NewsStore) RecentEntries(limit int) ([]Entry, error) {
	rows, err := s.db.Query(`SELECT `+selectEntryColumns+` FROM news_entries
		WHERE posted_at IS NOT NULL ORDER BY posted_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                                                    Entry
		source, sourceID, summary, content, image, feedTitle sql.NullString
		color, published, posted                             sql.NullInt64
	)
	err := row.Scan(&e.EntryID, &source, &sourceID, &e.URL, &e.Title, &summary, &content,
		&image, &feedTitle, &color, &published, &posted)
	if err != nil {
		return nil, err
	}
	e.Source = source.String
	e.SourceEntryID = sourceID.String
	e.Summary = summary.String
	e.Content = content.String
	e.ImageURL = image.String
	e.FeedTitle = feedTitle.String
	e.Color = intFromNull(color)
	e.PublishedAt = timeFromNull(published)
	e.PostedAt = timeFromNull(posted)
	return &e, nil
}

func colorOrNil(c *int64) any {
	if c == nil {
		return nil
	}
	return *c
}

// AddBookmark ensures an entry row exists for ref and records the
// bookmark, in one transaction. Re-adding refreshes added_at. Errors are
// logged and reported as false.
func (s *NewsStore) AddBookmark(userID string, ref EntryRef) bool {
	id := CanonicalEntryID(ref)
	if userID == "" || id == "" {
		s.log.Warn("rejecting bookmark without user or entry id", "user", userID)
		return false
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.log.Error("failed to begin bookmark", "err", err)
		return false
	}
	defer tx.Rollback()

	// Reuse the stored id when the URL is already known under another id.
	if ref.URL != "" {
		var existing string
		err := tx.QueryRow(`SELECT entry_id FROM news_entries WHERE url = ?`, ref.URL).Scan(&existing)
		switch {
		case err == nil:
			id = existing
		case !errors.Is(err, sql.ErrNoRows):
			s.log.Error("failed to look up bookmark url", "user", userID, "url", ref.URL, "err", err)
			return false
		}
	}
	if id == CanonicalEntryID(ref) {
		if err := ensureStub(tx, ref); err != nil {
			s.log.Error("failed to add bookmark", "user", userID, "entry", id, "err", err)
			return false
		}
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO bookmarks (user_id, entry_id, added_at) VALUES (?, ?, ?)`,
		userID, id, s.now().UnixMilli())
	if err != nil {
		s.log.Error("failed to add bookmark", "user", userID, "entry", id, "err", err)
		return false
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit bookmark", "user", userID, "entry", id, "err", err)
		return false
	}
	return true
}

// RemoveBookmark deletes the bookmark. Removing an absent bookmark
// succeeds.
func (s *NewsStore) RemoveBookmark(userID, entryID string) bool {
	if _, err := s.db.Exec(`DELETE FROM bookmarks WHERE user_id = ? AND entry_id = ?`, userID, entryID); err != nil {
		s.log.Error("failed to remove bookmark", "user", userID, "entry", entryID, "err", err)
		return false
	}
	return true
}

func (s *NewsStore) IsBookmarked(userID, entryID string) bool {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM bookmarks WHERE user_id = ? AND entry_id = ?`, userID, entryID).Scan(&n)
	if err != nil {
		s.log.Error("failed to check bookmark", "user", userID, "entry", entryID, "err", err)
		return false
	}
	return n > 0
}

// BookmarkedEntries lists a user's bookmarks, most recently added first.
func (s *NewsStore) BookmarkedEntries(userID string) ([]BookmarkedEntry, error) {
	rows, err := s.db.Query(`
		SELECT b.entry_id, COALESCE(b.note, ''), b.added_at,
			e.source, e.source_entry_id, COALESCE(e.url, ''), COALESCE(e.title, ''),
			e.summary, e.content, e.image_url, e.feed_title, e.color, e.published_at, e.posted_at
		FROM bookmarks b
		LEFT JOIN news_entries e ON e.entry_id = b.entry_id
		WHERE b.user_id = ?
		ORDER BY b.added_at DESC, b.rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	var out []BookmarkedEntry
	for rows.Next() {
		var (
			b                                                    BookmarkedEntry
			addedAt                                              int64
			source, sourceID, summary, content, image, feedTitle sql.NullString
			color, published, posted                             sql.NullInt64
		)
		err := rows.Scan(&b.EntryID, &b.Note, &addedAt, &source, &sourceID, &b.URL, &b.Title,
			&summary, &content, &image, &feedTitle, &color, &published, &posted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		b.UserID = userID
		b.AddedAt = time.UnixMilli(addedAt).UTC()
		b.Source = source.String
		b.SourceEntryID = sourceID.String
		b.Summary = summary.String
		b.Content = content.String
		b.ImageURL = image.String
		b.FeedTitle = feedTitle.String
		b.Color = intFromNull(color)
		b.PublishedAt = timeFromNull(published)
		b.PostedAt = timeFromNull(posted)
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetBookmarkNote attaches a free-text note to an existing bookmark.
func (s *NewsStore) SetBookmarkNote(userID, entryID, note string) bool {
	res, err := s.db.Exec(`UPDATE bookmarks SET note = ? WHERE user_id = ? AND entry_id = ?`,
		nullString(note), userID, entryID)
	if err != nil {
		s.log.Error("failed to set bookmark note", "user", userID, "entry", entryID, "err", err)
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}
