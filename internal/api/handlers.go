package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matthewjhunter/courier"
	"github.com/matthewjhunter/courier/internal/jobs"
	"github.com/matthewjhunter/courier/internal/paging"
	"github.com/matthewjhunter/courier/internal/storage"
)

const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine and view errors onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var amb *courier.AmbiguousGameError
	switch {
	case errors.As(err, &amb):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      amb.Error(),
			"candidates": amb.Candidates,
		})
		return
	case errors.Is(err, courier.ErrInvalidDate),
		errors.Is(err, courier.ErrInvalidMonth),
		errors.Is(err, courier.ErrMissingGameID),
		errors.Is(err, courier.ErrUnknownAction),
		errors.Is(err, storage.ErrNoEntryID),
		errors.Is(err, paging.ErrOutOfRange),
		errors.Is(err, paging.ErrNotSortable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, courier.ErrNotOwner),
		errors.Is(err, courier.ErrPrivateWishlist),
		errors.Is(err, paging.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, courier.ErrGameNotFound),
		errors.Is(err, courier.ErrNotInWishlist),
		errors.Is(err, paging.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, paging.ErrExpired), errors.Is(err, paging.ErrClosed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, jobs.ErrRefreshRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, courier.ErrNoGameSource):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

// --- Entries and bookmarks ---

type entryRequest struct {
	EntryID     string     `json:"entry_id"`
	NativeID    *int64     `json:"native_id"`
	Source      string     `json:"source"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	ImageURL    string     `json:"image_url"`
	PublishedAt *time.Time `json:"published_at"`
	// ActionID is the id of a post's bookmark button. When set it
	// replaces the other fields on toggle.
	ActionID string `json:"action_id"`
}

func (e entryRequest) ref() storage.EntryRef {
	return storage.EntryRef{
		EntryID:     e.EntryID,
		NativeID:    e.NativeID,
		Source:      e.Source,
		URL:         e.URL,
		Title:       e.Title,
		Summary:     e.Summary,
		ImageURL:    e.ImageURL,
		PublishedAt: e.PublishedAt,
	}
}

func (s *Server) handleRecentEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.RecentEntries(min(max(queryInt(r, "limit", 20), 1), 200))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ListUserBookmarks(userID(r))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if items == nil {
		items = []storage.BookmarkedEntry{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleAddBookmark(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !decode(w, r, &req) {
		return
	}
	ref := req.ref()
	id := storage.CanonicalEntryID(ref)
	if id == "" {
		s.writeEngineError(w, storage.ErrNoEntryID)
		return
	}
	if !s.engine.AddBookmark(userID(r), ref) {
		writeError(w, http.StatusInternalServerError, "could not save bookmark")
		return
	}
	writeJSON(w, http.StatusCreated, courier.ToggleResult{EntryID: id, Bookmarked: true})
}

func (s *Server) handleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !decode(w, r, &req) {
		return
	}
	var (
		res courier.ToggleResult
		err error
	)
	if req.ActionID != "" {
		res, err = s.engine.ToggleBookmarkAction(userID(r), req.ActionID)
	} else {
		res, err = s.engine.ToggleBookmark(userID(r), req.ref())
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Entry ids contain colons and slashes, so they travel as a query
// parameter rather than a path segment.
func (s *Server) handleRemoveBookmark(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("entry_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "entry_id is required")
		return
	}
	if !s.engine.RemoveBookmark(userID(r), id) {
		writeError(w, http.StatusInternalServerError, "could not remove bookmark")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBookmarkStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("entry_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "entry_id is required")
		return
	}
	writeJSON(w, http.StatusOK, courier.ToggleResult{EntryID: id, Bookmarked: s.engine.IsBookmarked(userID(r), id)})
}

func (s *Server) handleBookmarkNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntryID string `json:"entry_id"`
		Note    string `json:"note"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !s.engine.SetBookmarkNote(userID(r), req.EntryID, req.Note) {
		writeError(w, http.StatusNotFound, "bookmark not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Wishlist ---

func gameIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleListWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ListUserWishlist(userID(r))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if items == nil {
		items = []storage.WishlistItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleViewWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ViewWishlist(userID(r), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if items == nil {
		items = []storage.WishlistItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleAddToWishlist stores the posted game as-is when it carries a name,
// otherwise it looks the id up in the metadata source first.
func (s *Server) handleAddToWishlist(w http.ResponseWriter, r *http.Request) {
	var game storage.Game
	if !decode(w, r, &game) {
		return
	}
	var (
		added bool
		err   error
	)
	if strings.TrimSpace(game.Name) == "" {
		var found *storage.Game
		found, added, err = s.engine.AddGameByID(r.Context(), userID(r), game.ID)
		if found != nil {
			game = *found
		}
	} else {
		added, err = s.engine.AddToWishlist(userID(r), game)
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"game_id": game.ID, "name": game.Name, "added": added})
}

func (s *Server) handleInWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game_id": id, "in_wishlist": s.engine.IsInWishlist(userID(r), id)})
}

func (s *Server) handleRemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	user := userID(r)
	if !s.engine.IsInWishlist(user, id) {
		s.writeEngineError(w, courier.ErrNotInWishlist)
		return
	}
	if !s.engine.RemoveFromWishlist(user, id) {
		writeError(w, http.StatusInternalServerError, "could not remove game")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearWishlist(w http.ResponseWriter, r *http.Request) {
	if !s.engine.ClearWishlist(userID(r)) {
		writeError(w, http.StatusInternalServerError, "could not clear wishlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetVisibility(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"public": s.engine.Visibility(userID(r))})
}

func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Public bool `json:"public"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !s.engine.SetVisibility(userID(r), req.Public) {
		writeError(w, http.StatusInternalServerError, "could not save visibility")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"public": req.Public})
}

func (s *Server) handleUpdateReleaseDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Game string `json:"game"`
		Date string `json:"date"`
	}
	if !decode(w, r, &req) {
		return
	}
	up, err := s.engine.UpdateReleaseDate(userID(r), req.Game, req.Date)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	cal, err := s.engine.ReleaseCalendar(userID(r),
		queryInt(r, "year", now.Year()), queryInt(r, "month", int(now.Month())), time.UTC)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

func (s *Server) handleSearchGames(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	games, err := s.engine.SearchGames(r.Context(), q, min(max(queryInt(r, "limit", 10), 1), 50))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if games == nil {
		games = []storage.Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handleUpcomingGames(w http.ResponseWriter, r *http.Request) {
	var platform int64
	if p := r.URL.Query().Get("platform"); p != "" {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "platform must be an IGDB platform id")
			return
		}
		platform = v
	}
	games, err := s.engine.UpcomingGames(r.Context(), platform, min(max(queryInt(r, "limit", 10), 1), 50))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if games == nil {
		games = []storage.Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

// --- Refresh ---

func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.RefreshStatus())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	actor := userID(r)
	if c := claimsFrom(r); c != nil && c.Admin {
		actor = s.engine.OwnerID()
	}
	sum, err := s.engine.RefreshWishlist(r.Context(), actor)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
