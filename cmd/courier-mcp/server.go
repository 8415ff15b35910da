package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/matthewjhunter/courier"
	"github.com/matthewjhunter/courier/internal/logging"
	"github.com/matthewjhunter/courier/internal/output"
	"github.com/matthewjhunter/courier/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverVersion = "0.1.0"

// server is the Courier MCP server.
type server struct {
	engine *courier.Engine
	userID string
	log    *log.Logger
}

func newServer(engine *courier.Engine, userID string, logger *log.Logger) *server {
	return &server{engine: engine, userID: userID, log: logging.OrNop(logger).WithPrefix("mcp")}
}

// resolveUser returns the requested user, or the default one.
func (s *server) resolveUser(user *string) string {
	if user == nil || *user == "" {
		return s.userID
	}
	return *user
}

// addTool registers a tool whose handler reports failures as tool results
// rather than protocol errors.
func addTool[In any](srv *mcp.Server, name, description string, h func(context.Context, In) *mcp.CallToolResult) {
	mcp.AddTool(srv, &mcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			return h(ctx, in), nil, nil
		})
}

// build creates the MCP server with every tool registered.
func (s *server) build() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "courier", Version: serverVersion}, nil)

	addTool(srv, "entries_recent",
		"List the most recently posted news entries with their IDs, titles, and URLs.",
		s.handleEntriesRecent)
	addTool(srv, "bookmarks_list",
		"List the user's bookmarked entries, newest first, including notes.",
		s.handleBookmarksList)
	addTool(srv, "bookmark_add",
		"Bookmark an entry by ID or URL. Unknown entries are stored from the given URL and title.",
		s.handleBookmarkAdd)
	addTool(srv, "bookmark_remove",
		"Remove a bookmark. Succeeds even if the bookmark did not exist.",
		s.handleBookmarkRemove)
	addTool(srv, "bookmark_toggle",
		"Bookmark an entry, or remove the bookmark if it is already saved. Accepts a post's bookmark button id.",
		s.handleBookmarkToggle)
	addTool(srv, "bookmark_note",
		"Attach a note to an existing bookmark.",
		s.handleBookmarkNote)
	addTool(srv, "wishlist_show",
		"Show a game wishlist. Defaults to the user's own; other wishlists must be public.",
		s.handleWishlistShow)
	addTool(srv, "wishlist_add",
		"Look a game up on IGDB by ID and add it to the user's wishlist.",
		s.handleWishlistAdd)
	addTool(srv, "wishlist_remove",
		"Remove a game from the user's wishlist.",
		s.handleWishlistRemove)
	addTool(srv, "wishlist_visibility",
		"Make the user's wishlist public or private.",
		s.handleWishlistVisibility)
	addTool(srv, "games_search",
		"Search IGDB for games by name. Returns IDs usable with wishlist_add.",
		s.handleGamesSearch)
	addTool(srv, "games_upcoming",
		"List upcoming game releases on IGDB, soonest first, optionally for one platform.",
		s.handleGamesUpcoming)
	addTool(srv, "release_date_set",
		"Override the release date of a game on the user's wishlist.",
		s.handleReleaseDateSet)
	addTool(srv, "release_calendar",
		"List the user's wishlist releases in a month, grouped by day.",
		s.handleReleaseCalendar)
	addTool(srv, "wishlist_refresh",
		"Re-fetch release dates for every wishlisted game. Bot owner only.",
		s.handleWishlistRefresh)
	addTool(srv, "refresh_status",
		"Report when the release-date refresh last ran and what it changed.",
		s.handleRefreshStatus)

	return srv
}

// run serves MCP over stdio until ctx is cancelled or stdin closes.
func (s *server) run(ctx context.Context) error {
	s.log.Info("courier-mcp starting", "user", s.userID)
	return s.build().Run(ctx, &mcp.StdioTransport{})
}

// --- tool handlers ---

func (s *server) handleEntriesRecent(ctx context.Context, in recentEntriesInput) *mcp.CallToolResult {
	limit := 20
	if in.Limit != nil && *in.Limit > 0 {
		limit = *in.Limit
	}
	entries, err := s.engine.RecentEntries(limit)
	if err != nil {
		return mcpError("%v", err)
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	return mcpJSON(entries)
}

func (s *server) handleBookmarksList(ctx context.Context, in userOnlyInput) *mcp.CallToolResult {
	items, err := s.engine.ListUserBookmarks(s.resolveUser(in.User))
	if err != nil {
		return mcpError("%v", err)
	}
	if items == nil {
		items = []storage.BookmarkedEntry{}
	}
	return mcpJSON(items)
}

func (in bookmarkInput) ref() storage.EntryRef {
	var ref storage.EntryRef
	if in.EntryID != nil {
		ref.EntryID = *in.EntryID
	}
	if in.URL != nil {
		ref.URL = *in.URL
	}
	if in.Title != nil {
		ref.Title = *in.Title
	}
	return ref
}

func (s *server) handleBookmarkAdd(ctx context.Context, in bookmarkInput) *mcp.CallToolResult {
	ref := in.ref()
	id := storage.CanonicalEntryID(ref)
	if id == "" {
		return mcpError("entry_id or url is required")
	}
	if !s.engine.AddBookmark(s.resolveUser(in.User), ref) {
		return mcpError("failed to bookmark %s", id)
	}
	s.log.Debug("bookmark_add", "entry", id)
	return mcpText("Bookmarked %s", id)
}

func (s *server) handleBookmarkRemove(ctx context.Context, in entryIDInput) *mcp.CallToolResult {
	if !s.engine.RemoveBookmark(s.resolveUser(in.User), in.EntryID) {
		return mcpError("failed to remove bookmark %s", in.EntryID)
	}
	return mcpText("Removed bookmark %s", in.EntryID)
}

func (s *server) handleBookmarkToggle(ctx context.Context, in bookmarkToggleInput) *mcp.CallToolResult {
	var (
		res courier.ToggleResult
		err error
	)
	user := s.resolveUser(in.User)
	if in.ActionID != nil && *in.ActionID != "" {
		res, err = s.engine.ToggleBookmarkAction(user, *in.ActionID)
	} else {
		res, err = s.engine.ToggleBookmark(user, bookmarkInput{EntryID: in.EntryID, URL: in.URL}.ref())
	}
	if err != nil {
		return mcpError("%v", err)
	}
	return mcpJSON(res)
}

func (s *server) handleBookmarkNote(ctx context.Context, in bookmarkNoteInput) *mcp.CallToolResult {
	if !s.engine.SetBookmarkNote(s.resolveUser(in.User), in.EntryID, in.Note) {
		return mcpError("no bookmark %s", in.EntryID)
	}
	return mcpText("Updated note on %s", in.EntryID)
}

func (s *server) handleWishlistShow(ctx context.Context, in wishlistShowInput) *mcp.CallToolResult {
	viewer := s.resolveUser(in.User)
	owner := viewer
	if in.Owner != nil && *in.Owner != "" {
		owner = *in.Owner
	}
	items, err := s.engine.ViewWishlist(viewer, owner)
	if err != nil {
		return mcpError("%v", err)
	}
	if items == nil {
		items = []storage.WishlistItem{}
	}
	return mcpJSON(items)
}

func (s *server) handleWishlistAdd(ctx context.Context, in gameIDInput) *mcp.CallToolResult {
	game, added, err := s.engine.AddGameByID(ctx, s.resolveUser(in.User), in.GameID)
	if err != nil {
		return mcpError("%v", err)
	}
	if !added {
		return mcpText("%s is already on the wishlist", game.Name)
	}
	s.log.Info("wishlist_add", "game", game.ID, "name", game.Name)
	return mcpText("Added %s (%d) to the wishlist", game.Name, game.ID)
}

func (s *server) handleWishlistRemove(ctx context.Context, in gameIDInput) *mcp.CallToolResult {
	if !s.engine.RemoveFromWishlist(s.resolveUser(in.User), in.GameID) {
		return mcpError("failed to remove game %d", in.GameID)
	}
	return mcpText("Removed game %d from the wishlist", in.GameID)
}

func (s *server) handleWishlistVisibility(ctx context.Context, in visibilityInput) *mcp.CallToolResult {
	if !s.engine.SetVisibility(s.resolveUser(in.User), in.Public) {
		return mcpError("failed to set visibility")
	}
	if in.Public {
		return mcpText("Wishlist is now public")
	}
	return mcpText("Wishlist is now private")
}

func (s *server) handleGamesSearch(ctx context.Context, in gameSearchInput) *mcp.CallToolResult {
	limit := 10
	if in.Limit != nil && *in.Limit > 0 {
		limit = *in.Limit
	}
	games, err := s.engine.SearchGames(ctx, in.Query, limit)
	if err != nil {
		return mcpError("%v", err)
	}
	if games == nil {
		games = []storage.Game{}
	}
	return mcpJSON(games)
}

func (s *server) handleGamesUpcoming(ctx context.Context, in upcomingInput) *mcp.CallToolResult {
	limit := 10
	if in.Limit != nil && *in.Limit > 0 {
		limit = *in.Limit
	}
	var platform int64
	if in.Platform != nil {
		platform = *in.Platform
	}
	games, err := s.engine.UpcomingGames(ctx, platform, limit)
	if err != nil {
		return mcpError("%v", err)
	}
	if games == nil {
		games = []storage.Game{}
	}
	return mcpJSON(games)
}

func (s *server) handleReleaseDateSet(ctx context.Context, in releaseDateInput) *mcp.CallToolResult {
	up, err := s.engine.UpdateReleaseDate(s.resolveUser(in.User), in.Game, in.Date)
	if err != nil {
		return mcpError("%v", err)
	}
	return mcpJSON(up)
}

func (s *server) handleReleaseCalendar(ctx context.Context, in calendarInput) *mcp.CallToolResult {
	cal, err := s.engine.ReleaseCalendar(s.resolveUser(in.User), in.Year, in.Month, nil)
	if err != nil {
		return mcpError("%v", err)
	}
	return mcpJSON(cal)
}

func (s *server) handleWishlistRefresh(ctx context.Context, in userOnlyInput) *mcp.CallToolResult {
	sum, err := s.engine.RefreshWishlist(ctx, s.resolveUser(in.User))
	if err != nil {
		return mcpError("%v", err)
	}
	return mcpJSON(sum)
}

func (s *server) handleRefreshStatus(ctx context.Context, _ emptyInput) *mcp.CallToolResult {
	var buf bytes.Buffer
	f := output.NewFormatterWithWriters(output.FormatHuman, &buf, io.Discard)
	if err := f.OutputRefreshStatus(s.engine.RefreshStatus()); err != nil {
		return mcpError("%v", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: buf.String()}}}
}

// --- MCP response helpers ---

func mcpText(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func mcpJSON(data any) *mcp.CallToolResult {
	b, err := json.Marshal(data)
	if err != nil {
		return mcpError("marshal response: %v", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}
}

func mcpError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: "+format, args...)}},
		IsError: true,
	}
}
