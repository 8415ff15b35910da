package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/matthewjhunter/courier/internal/paging"
	"github.com/matthewjhunter/courier/internal/storage"
)

type viewResponse[T any] struct {
	ID   string         `json:"id"`
	Page paging.Page[T] `json:"page"`
}

type openViewRequest struct {
	Owner    string `json:"owner"`
	PageSize int    `json:"page_size"`
}

// applyAction runs one navigation control against a session.
func applyAction[T any](s *paging.Session[T], user, action string) error {
	switch action {
	case "prev":
		return s.Prev(user)
	case "next":
		return s.Next(user)
	case "sort":
		return s.ToggleSort(user)
	case "close":
		return s.Close(user)
	}
	return errUnknownAction
}

var errUnknownAction = errors.New("unknown view action")

func (s *Server) serveView(w http.ResponseWriter, r *http.Request, get func(string) (viewRenderer, error)) {
	id := chi.URLParam(r, "viewID")
	v, err := get(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if v.owner() != userID(r) {
		s.writeEngineError(w, paging.ErrNotOwner)
		return
	}
	writeJSON(w, http.StatusOK, v.render(id))
}

// viewRenderer erases the item type so bookmark and wishlist views share
// handlers.
type viewRenderer interface {
	owner() string
	render(id string) any
	act(user, action string) error
	item(user string, index int) (any, error)
}

type session[T any] struct{ s *paging.Session[T] }

func (v session[T]) owner() string { return v.s.Owner() }

func (v session[T]) render(id string) any {
	return viewResponse[T]{ID: id, Page: v.s.View()}
}

func (v session[T]) act(user, action string) error {
	return applyAction(v.s, user, action)
}

func (v session[T]) item(user string, index int) (any, error) {
	return v.s.Select(user, index)
}

func (s *Server) bookmarkView(id string) (viewRenderer, error) {
	v, err := s.engine.BookmarkView(id)
	if err != nil {
		return nil, err
	}
	return session[storage.BookmarkedEntry]{v}, nil
}

func (s *Server) wishlistView(id string) (viewRenderer, error) {
	v, err := s.engine.WishlistView(id)
	if err != nil {
		return nil, err
	}
	return session[storage.WishlistItem]{v}, nil
}

func (s *Server) viewAction(w http.ResponseWriter, r *http.Request, get func(string) (viewRenderer, error)) {
	id := chi.URLParam(r, "viewID")
	v, err := get(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if err := v.act(userID(r), chi.URLParam(r, "action")); err != nil {
		if errors.Is(err, errUnknownAction) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v.render(id))
}

func (s *Server) viewItem(w http.ResponseWriter, r *http.Request, get func(string) (viewRenderer, error)) {
	v, err := get(chi.URLParam(r, "viewID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	item, err := v.item(userID(r), index)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleOpenBookmarkView(w http.ResponseWriter, r *http.Request) {
	var req openViewRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	id, page, err := s.engine.OpenBookmarkView(userID(r), req.PageSize)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewResponse[storage.BookmarkedEntry]{ID: id, Page: page})
}

func (s *Server) handleOpenWishlistView(w http.ResponseWriter, r *http.Request) {
	var req openViewRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	viewer := userID(r)
	owner := req.Owner
	if owner == "" {
		owner = viewer
	}
	id, page, err := s.engine.OpenWishlistView(viewer, owner, req.PageSize)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewResponse[storage.WishlistItem]{ID: id, Page: page})
}

func (s *Server) handleBookmarkView(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, s.bookmarkView)
}

func (s *Server) handleBookmarkViewAction(w http.ResponseWriter, r *http.Request) {
	s.viewAction(w, r, s.bookmarkView)
}

func (s *Server) handleBookmarkViewItem(w http.ResponseWriter, r *http.Request) {
	s.viewItem(w, r, s.bookmarkView)
}

func (s *Server) handleWishlistView(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, s.wishlistView)
}

func (s *Server) handleWishlistViewAction(w http.ResponseWriter, r *http.Request) {
	s.viewAction(w, r, s.wishlistView)
}

func (s *Server) handleWishlistViewItem(w http.ResponseWriter, r *http.Request) {
	s.viewItem(w, r, s.wishlistView)
}
