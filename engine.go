// Package courier is the public API of the news and wishlist bot core. An
// Engine owns the entry, bookmark and wishlist stores, the wishlist
// refresh job and the interactive paged views, and is the only thing the
// CLI, HTTP API and MCP server talk to.
package courier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/matthewjhunter/courier/internal/channel"
	"github.com/matthewjhunter/courier/internal/jobs"
	"github.com/matthewjhunter/courier/internal/logging"
	"github.com/matthewjhunter/courier/internal/paging"
	"github.com/matthewjhunter/courier/internal/storage"
)

// Engine wires the stores, the refresh job and the view registries.
type Engine struct {
	news      *storage.NewsStore
	wishlist  *storage.WishlistStore
	games     GameSource
	refresher *jobs.Refresher
	ownerID   string
	log       *log.Logger
	now       func() time.Time

	bookmarkViews *paging.Registry[storage.BookmarkedEntry]
	wishlistViews *paging.Registry[storage.WishlistItem]
}

// NewEngine opens both databases, creating their schemas if needed.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	logger := logging.OrNop(cfg.Logger)

	news, err := storage.OpenNews(cfg.NewsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open news database: %w", err)
	}
	wishlist, err := storage.OpenWishlist(cfg.WishlistPath, logger)
	if err != nil {
		news.Close()
		return nil, fmt.Errorf("open wishlist database: %w", err)
	}

	e := &Engine{
		news:     news,
		wishlist: wishlist,
		games:    cfg.Games,
		ownerID:  cfg.OwnerID,
		log:      logger.WithPrefix("engine"),
		now:      time.Now,
		bookmarkViews: paging.NewRegistry(paging.Options[storage.BookmarkedEntry]{
			PageSize: cfg.PageSize,
			Timeout:  cfg.ViewTimeout,
		}),
		wishlistViews: paging.NewRegistry(paging.Options[storage.WishlistItem]{
			PageSize: cfg.PageSize,
			Timeout:  cfg.ViewTimeout,
			DateKey:  func(it storage.WishlistItem) *int64 { return it.FirstReleaseDate },
		}),
	}
	e.refresher = jobs.NewRefresher(wishlist, e.lookupReleases, cfg.RefreshInterval, logger)
	return e, nil
}

// Close closes both databases.
func (e *Engine) Close() error {
	return errors.Join(e.news.Close(), e.wishlist.Close())
}

// News exposes the entry store to the feed poller.
func (e *Engine) News() *storage.NewsStore {
	return e.news
}

// Refresher exposes the wishlist refresh job so a daemon can run its loop.
func (e *Engine) Refresher() *jobs.Refresher {
	return e.refresher
}

// OwnerID returns the configured bot owner.
func (e *Engine) OwnerID() string {
	return e.ownerID
}

func (e *Engine) lookupReleases(ctx context.Context, ids []int64) ([]storage.GameRelease, error) {
	if e.games == nil {
		return nil, ErrNoGameSource
	}
	return e.games.ReleaseDates(ctx, ids)
}


// AddBookmark bookmarks the entry ref identifies, creating a stub entry
// when it has not been posted yet.
func (e *Engine) AddBookmark(userID string, ref storage.EntryRef) bool {
	return e.news.AddBookmark(userID, ref)
}

// RemoveBookmark succeeds even if the bookmark did not exist.
func (e *Engine) RemoveBookmark(userID, entryID string) bool {
	return e.news.RemoveBookmark(userID, entryID)
}

func (e *Engine) IsBookmarked(userID, entryID string) bool {
	return e.news.IsBookmarked(userID, entryID)
}

// ToggleBookmark adds the bookmark when absent and removes it when
// present. This is what a bookmark button on a posted entry does.
func (e *Engine) ToggleBookmark(userID string, ref storage.EntryRef) (ToggleResult, error) {
	id := storage.CanonicalEntryID(ref)
	if id == "" {
		return ToggleResult{}, storage.ErrNoEntryID
	}
	if ref.URL != "" {
		stored, err := e.news.EntryIDForURL(ref.URL)
		switch {
		case err != nil:
			e.log.Error("failed to look up bookmark url", "user", userID, "url", ref.URL, "err", err)
		case stored != "":
			id = stored
		}
	}
	if e.news.IsBookmarked(userID, id) {
		if !e.news.RemoveBookmark(userID, id) {
			return ToggleResult{EntryID: id, Bookmarked: true}, ErrStore
		}
		return ToggleResult{EntryID: id, Bookmarked: false}, nil
	}
	if !e.news.AddBookmark(userID, ref) {
		return ToggleResult{EntryID: id}, ErrStore
	}
	return ToggleResult{EntryID: id, Bookmarked: true}, nil
}

// ToggleBookmarkAction toggles the bookmark named by the id of a post's
// bookmark button.
func (e *Engine) ToggleBookmarkAction(userID, actionID string) (ToggleResult, error) {
	id, ok := channel.ParseBookmarkAction(actionID)
	if !ok {
		return ToggleResult{}, ErrUnknownAction
	}
	return e.ToggleBookmark(userID, storage.EntryRef{EntryID: id})
}

// ListUserBookmarks returns the user's bookmarks, newest first.
func (e *Engine) ListUserBookmarks(userID string) ([]storage.BookmarkedEntry, error) {
	items, err := e.news.BookmarkedEntries(userID)
	if err != nil {
		e.log.Error("failed to list bookmarks", "user", userID, "err", err)
		return nil, err
	}
	return items, nil
}

func (e *Engine) SetBookmarkNote(userID, entryID, note string) bool {
	return e.news.SetBookmarkNote(userID, entryID, note)
}

// RecentEntries lists the most recently posted entries.
func (e *Engine) RecentEntries(limit int) ([]storage.Entry, error) {
	return e.news.RecentEntries(limit)
}


// AddToWishlist stores game for the user. It returns false when the game
// was already listed.
func (e *Engine) AddToWishlist(userID string, game storage.Game) (bool, error) {
	if game.ID <= 0 {
		return false, ErrMissingGameID
	}
	return e.wishlist.Add(userID, game), nil
}

// AddGameByID looks the game up in the metadata source and adds it.
func (e *Engine) AddGameByID(ctx context.Context, userID string, gameID int64) (*storage.Game, bool, error) {
	if gameID <= 0 {
		return nil, false, ErrMissingGameID
	}
	if e.games == nil {
		return nil, false, ErrNoGameSource
	}
	game, err := e.games.Game(ctx, gameID)
	if err != nil {
		return nil, false, fmt.Errorf("look up game %d: %w", gameID, err)
	}
	if game == nil {
		return nil, false, ErrGameNotFound
	}
	added, err := e.AddToWishlist(userID, *game)
	return game, added, err
}

// SearchGames queries the metadata source by name.
func (e *Engine) SearchGames(ctx context.Context, name string, limit int) ([]storage.Game, error) {
	if e.games == nil {
		return nil, ErrNoGameSource
	}
	return e.games.Search(ctx, name, limit)
}

// UpcomingGames lists games releasing after now, soonest first. A
// positive platformID restricts the list to that IGDB platform.
func (e *Engine) UpcomingGames(ctx context.Context, platformID int64, limit int) ([]storage.Game, error) {
	if e.games == nil {
		return nil, ErrNoGameSource
	}
	return e.games.Upcoming(ctx, e.now(), platformID, limit)
}

func (e *Engine) RemoveFromWishlist(userID string, gameID int64) bool {
	return e.wishlist.Remove(userID, gameID)
}

func (e *Engine) ClearWishlist(userID string) bool {
	return e.wishlist.Clear(userID)
}

func (e *Engine) IsInWishlist(userID string, gameID int64) bool {
	return e.wishlist.IsInWishlist(userID, gameID)
}

// ListUserWishlist returns the user's own wishlist.
func (e *Engine) ListUserWishlist(userID string) ([]storage.WishlistItem, error) {
	items, err := e.wishlist.ListForUser(userID)
	if err != nil {
		e.log.Error("failed to list wishlist", "user", userID, "err", err)
		return nil, err
	}
	return items, nil
}

// Visibility reports whether the user's wishlist is public.
func (e *Engine) Visibility(userID string) bool {
	return e.wishlist.Visibility(userID)
}

func (e *Engine) SetVisibility(userID string, public bool) bool {
	return e.wishlist.SetVisibility(userID, public)
}

// CanView reports whether viewer may see owner's wishlist. Owners always
// can; everyone else only when the wishlist is public.
func (e *Engine) CanView(viewerID, ownerID string) bool {
	return viewerID == ownerID || e.wishlist.Visibility(ownerID)
}

// ViewWishlist returns owner's wishlist as seen by viewer.
func (e *Engine) ViewWishlist(viewerID, ownerID string) ([]storage.WishlistItem, error) {
	if !e.CanView(viewerID, ownerID) {
		return nil, ErrPrivateWishlist
	}
	return e.ListUserWishlist(ownerID)
}


// BulkRefresh re-fetches release dates for every wishlisted game now. It
// fails with jobs.ErrRefreshRunning while another refresh is running.
func (e *Engine) BulkRefresh(ctx context.Context) (storage.RefreshSummary, error) {
	return e.refresher.Trigger(ctx)
}

// RefreshWishlist is BulkRefresh restricted to the bot owner.
func (e *Engine) RefreshWishlist(ctx context.Context, actorID string) (storage.RefreshSummary, error) {
	if e.ownerID == "" || actorID != e.ownerID {
		return storage.RefreshSummary{}, ErrNotOwner
	}
	return e.BulkRefresh(ctx)
}

func (e *Engine) RefreshStatus() jobs.Status {
	return e.refresher.Status()
}


// UpdateReleaseDate sets the cached release date of one of the user's
// games. query matches a game id, an exact slug, or a name substring.
func (e *Engine) UpdateReleaseDate(userID, query, date string) (*ReleaseUpdate, error) {
	ts, err := ParseReleaseDate(date)
	if err != nil {
		return nil, err
	}
	items, err := e.ListUserWishlist(userID)
	if err != nil {
		return nil, err
	}
	game, err := matchGame(items, query)
	if err != nil {
		return nil, err
	}
	if !e.wishlist.SetReleaseDate(userID, game.GameID, ts) {
		return nil, ErrStore
	}
	e.log.Info("release date updated", "user", userID, "game", game.GameID, "date", ts)

	update := &ReleaseUpdate{Game: game, Previous: game.FirstReleaseDate, Date: ts}
	update.Game.FirstReleaseDate = &ts
	return update, nil
}

// ReleaseCalendar groups the user's wishlist releases in a month by day.
// Day boundaries are computed in loc, or UTC when loc is nil.
func (e *Engine) ReleaseCalendar(userID string, year, month int, loc *time.Location) (*Calendar, error) {
	if month < 1 || month > 12 {
		return nil, ErrInvalidMonth
	}
	if loc == nil {
		loc = time.UTC
	}
	items, err := e.wishlist.ReleasesInMonth(userID, year, time.Month(month), loc)
	if err != nil {
		e.log.Error("failed to load calendar", "user", userID, "err", err)
		return nil, err
	}
	return buildCalendar(userID, year, time.Month(month), loc, items), nil
}


// OpenBookmarkView snapshots the user's bookmarks into a paged view.
func (e *Engine) OpenBookmarkView(userID string, pageSize int) (string, paging.Page[storage.BookmarkedEntry], error) {
	items, err := e.ListUserBookmarks(userID)
	if err != nil {
		return "", paging.Page[storage.BookmarkedEntry]{}, err
	}
	id, s := e.bookmarkViews.Open(userID, items, pageSize)
	return id, s.View(), nil
}

// OpenWishlistView snapshots owner's wishlist into a paged view for
// viewer, subject to the visibility rule.
func (e *Engine) OpenWishlistView(viewerID, ownerID string, pageSize int) (string, paging.Page[storage.WishlistItem], error) {
	items, err := e.ViewWishlist(viewerID, ownerID)
	if err != nil {
		return "", paging.Page[storage.WishlistItem]{}, err
	}
	id, s := e.wishlistViews.Open(viewerID, items, pageSize)
	return id, s.View(), nil
}

// BookmarkView returns an open bookmark view by id.
func (e *Engine) BookmarkView(id string) (*paging.Session[storage.BookmarkedEntry], error) {
	return e.bookmarkViews.Get(id)
}

// WishlistView returns an open wishlist view by id.
func (e *Engine) WishlistView(id string) (*paging.Session[storage.WishlistItem], error) {
	return e.wishlistViews.Get(id)
}
