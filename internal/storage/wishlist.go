package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultRefreshBatch is the number of game ids sent per metadata lookup.
const DefaultRefreshBatch = 200

// WishlistStore holds per-user game wishlists and visibility settings.
type WishlistStore struct {
	db        *sql.DB
	log       *log.Logger
	now       func() time.Time
	batchSize int
}

// Game is a normalized game record from the metadata source.
type Game struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Slug             string   `json:"slug,omitempty"`
	CoverURL         string   `json:"cover_url,omitempty"`
	FirstReleaseDate *int64   `json:"first_release_date,omitempty"`
	ReleaseDates     []int64  `json:"release_dates,omitempty"`
	Platforms        []string `json:"platforms,omitempty"`
}

// ReleaseDate returns the explicit first release date, else the earliest
// of the per-platform release dates, else nil.
func (g Game) ReleaseDate() *int64 {
	if g.FirstReleaseDate != nil && *g.FirstReleaseDate > 0 {
		d := *g.FirstReleaseDate
		return &d
	}
	var earliest *int64
	for _, d := range g.ReleaseDates {
		if d <= 0 {
			continue
		}
		if earliest == nil || d < *earliest {
			v := d
			earliest = &v
		}
	}
	return earliest
}

// PlatformLabel joins platform names for display.
func (g Game) PlatformLabel() string {
	var names []string
	for _, p := range g.Platforms {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return strings.Join(names, ", ")
}

// WishlistItem is one stored wishlist row. ID repeats GameID under the
// key downstream consumers address games by.
type WishlistItem struct {
	UserID           string    `json:"user_id"`
	GameID           int64     `json:"game_id"`
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug,omitempty"`
	CoverURL         string    `json:"cover_url,omitempty"`
	FirstReleaseDate *int64    `json:"first_release_date,omitempty"`
	Platforms        string    `json:"platforms,omitempty"`
	AddedAt          time.Time `json:"added_at"`
}

// GameRelease is one row of a release-date lookup response.
type GameRelease struct {
	ID               int64
	FirstReleaseDate *int64
}

// ReleaseLookup fetches release dates for a batch of game ids. Ids the
// source does not know are simply absent from the result.
type ReleaseLookup func(ctx context.Context, ids []int64) ([]GameRelease, error)

// RefreshSummary counts the outcome of a bulk release-date refresh.
type RefreshSummary struct {
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Missing   int `json:"missing"`
	Failed    int `json:"failed"`
}

func (s RefreshSummary) String() string {
	return fmt.Sprintf("updated=%d unchanged=%d missing=%d failed=%d", s.Updated, s.Unchanged, s.Missing, s.Failed)
}

// OpenWishlist opens (creating if needed) the wishlist database at path.
func OpenWishlist(path string, logger *log.Logger) (*WishlistStore, error) {
	db, err := openDB(path, WishlistSchema)
	if err != nil {
		return nil, err
	}
	return &WishlistStore{
		db:        db,
		log:       storeLogger(logger, "wishlist"),
		now:       time.Now,
		batchSize: DefaultRefreshBatch,
	}, nil
}

func (s *WishlistStore) Close() error {
	return s.db.Close()
}

// Add puts game on the user's wishlist. It returns false when the game
// has no id, is already listed, or the write fails.
func (s *WishlistStore) Add(userID string, game Game) bool {
	if userID == "" || game.ID == 0 {
		s.log.Warn("rejecting wishlist add without user or game id", "user", userID)
		return false
	}
	name := game.Name
	if name == "" {
		name = fmt.Sprintf("Game %d", game.ID)
	}
	var release any
	if d := game.ReleaseDate(); d != nil {
		release = *d
	}

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO wishlists
			(user_id, game_id, name, slug, cover_url, first_release_date, platforms, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, game.ID, name, nullString(game.Slug), nullString(game.CoverURL), release,
		nullString(game.PlatformLabel()), s.now().UnixMilli())
	if err != nil {
		s.log.Error("failed to add to wishlist", "user", userID, "game", game.ID, "err", err)
		return false
	}
	n, err := res.RowsAffected()
	if err != nil {
		s.log.Error("failed to read wishlist insert result", "user", userID, "game", game.ID, "err", err)
		return false
	}
	return n > 0
}

// Remove takes gameID off the user's wishlist. Removing a game that is
// not listed succeeds; false means the delete itself failed.
func (s *WishlistStore) Remove(userID string, gameID int64) bool {
	if _, err := s.db.Exec(`DELETE FROM wishlists WHERE user_id = ? AND game_id = ?`, userID, gameID); err != nil {
		s.log.Error("failed to remove from wishlist", "user", userID, "game", gameID, "err", err)
		return false
	}
	return true
}

// Clear empties the user's wishlist.
func (s *WishlistStore) Clear(userID string) bool {
	if _, err := s.db.Exec(`DELETE FROM wishlists WHERE user_id = ?`, userID); err != nil {
		s.log.Error("failed to clear wishlist", "user", userID, "err", err)
		return false
	}
	return true
}

func (s *WishlistStore) IsInWishlist(userID string, gameID int64) bool {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM wishlists WHERE user_id = ? AND game_id = ?`, userID, gameID).Scan(&n)
	if err != nil {
		s.log.Error("failed to check wishlist", "user", userID, "game", gameID, "err", err)
		return false
	}
	return n > 0
}

const wishlistColumns = `user_id, game_id, name, slug, cover_url, first_release_date, platforms, added_at`

// ListForUser returns the user's wishlist in the order games were added.
func (s *WishlistStore) ListForUser(userID string) ([]WishlistItem, error) {
	rows, err := s.db.Query(`SELECT `+wishlistColumns+` FROM wishlists
		WHERE user_id = ? ORDER BY added_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist: %w", err)
	}
	defer rows.Close()
	return scanWishlist(rows)
}

func scanWishlist(rows *sql.Rows) ([]WishlistItem, error) {
	var items []WishlistItem
	for rows.Next() {
		var (
			it                     WishlistItem
			slug, cover, platforms sql.NullString
			release                sql.NullInt64
			addedAt                int64
		)
		if err := rows.Scan(&it.UserID, &it.GameID, &it.Name, &slug, &cover, &release, &platforms, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		it.ID = it.GameID
		it.Slug = slug.String
		it.CoverURL = cover.String
		it.Platforms = platforms.String
		it.FirstReleaseDate = intFromNull(release)
		it.AddedAt = time.UnixMilli(addedAt).UTC()
		items = append(items, it)
	}
	return items, rows.Err()
}

// Visibility reports whether the user's wishlist is public. Users with
// no setting are private.
func (s *WishlistStore) Visibility(userID string) bool {
	var public int
	err := s.db.QueryRow(`SELECT public FROM user_settings WHERE user_id = ?`, userID).Scan(&public)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Error("failed to read visibility", "user", userID, "err", err)
		}
		return false
	}
	return public != 0
}

func (s *WishlistStore) SetVisibility(userID string, public bool) bool {
	v := 0
	if public {
		v = 1
	}
	_, err := s.db.Exec(`INSERT INTO user_settings (user_id, public) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET public = excluded.public`, userID, v)
	if err != nil {
		s.log.Error("failed to set visibility", "user", userID, "err", err)
		return false
	}
	return true
}

// DistinctGameIDs returns every game id wishlisted by any user.
func (s *WishlistStore) DistinctGameIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT DISTINCT game_id FROM wishlists ORDER BY game_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query game ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetReleaseDate overwrites the cached release date of one user's entry.
func (s *WishlistStore) SetReleaseDate(userID string, gameID, ts int64) bool {
	res, err := s.db.Exec(`UPDATE wishlists SET first_release_date = ? WHERE user_id = ? AND game_id = ?`,
		ts, userID, gameID)
	if err != nil {
		s.log.Error("failed to set release date", "user", userID, "game", gameID, "err", err)
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

// ReleasesInMonth returns the user's games releasing in the given month,
// ordered by release date. Bounds are computed in loc.
func (s *WishlistStore) ReleasesInMonth(userID string, year int, month time.Month, loc *time.Location) ([]WishlistItem, error) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	rows, err := s.db.Query(`SELECT `+wishlistColumns+` FROM wishlists
		WHERE user_id = ? AND first_release_date >= ? AND first_release_date < ?
		ORDER BY first_release_date, name`, userID, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query releases: %w", err)
	}
	defer rows.Close()
	return scanWishlist(rows)
}

// BulkRefresh re-fetches release dates for every wishlisted game in
// batches and patches the stored dates. Partial failure is reflected in
// the summary. When ctx is cancelled between batches the partial summary
// is returned together with the context error.
func (s *WishlistStore) BulkRefresh(ctx context.Context, lookup ReleaseLookup) (RefreshSummary, error) {
	var sum RefreshSummary
	ids, err := s.DistinctGameIDs()
	if err != nil {
		return sum, err
	}

	size := s.batchSize
	if size <= 0 {
		size = DefaultRefreshBatch
	}
	for batch := range slices.Chunk(ids, size) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		releases, err := lookup(ctx, batch)
		if err != nil {
			s.log.Warn("release lookup failed", "batch", len(batch), "err", err)
			sum.Failed += len(batch)
			continue
		}

		byID := make(map[int64]GameRelease, len(releases))
		for _, r := range releases {
			byID[r.ID] = r
		}
		for _, id := range batch {
			r, ok := byID[id]
			switch {
			case !ok:
				sum.Missing++
			case r.FirstReleaseDate == nil || *r.FirstReleaseDate <= 0:
				sum.Unchanged++
			default:
				if _, err := s.db.ExecContext(ctx, `UPDATE wishlists SET first_release_date = ? WHERE game_id = ?`,
					*r.FirstReleaseDate, id); err != nil {
					s.log.Error("failed to patch release date", "game", id, "err", err)
					sum.Failed++
					continue
				}
				sum.Updated++
			}
		}
	}
	s.log.Info("bulk refresh finished", "games", len(ids), "summary", sum.String())
	return sum, nil
}
