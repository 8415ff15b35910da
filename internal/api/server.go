// Package api serves the engine over an authenticated HTTP JSON API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/matthewjhunter/courier"
	"github.com/matthewjhunter/courier/internal/logging"
)

// Server is the HTTP API.
type Server struct {
	engine *courier.Engine
	secret []byte
	log    *log.Logger
	router chi.Router
}

// New builds the router. secret signs and verifies bearer tokens.
func New(engine *courier.Engine, secret []byte, logger *log.Logger) (*Server, error) {
	if len(secret) == 0 {
		return nil, errors.New("api: jwt secret is required")
	}
	s := &Server{
		engine: engine,
		secret: secret,
		log:    logging.OrNop(logger).WithPrefix("api"),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(recovery(s.log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticate(s.secret))

		r.Get("/entries/recent", s.handleRecentEntries)

		r.Route("/bookmarks", func(r chi.Router) {
			r.Get("/", s.handleListBookmarks)
			r.Post("/", s.handleAddBookmark)
			r.Delete("/", s.handleRemoveBookmark)
			r.Get("/status", s.handleBookmarkStatus)
			r.Post("/toggle", s.handleToggleBookmark)
			r.Put("/note", s.handleBookmarkNote)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", s.handleListWishlist)
			r.Post("/", s.handleAddToWishlist)
			r.Delete("/", s.handleClearWishlist)
			r.Get("/games/{gameID}", s.handleInWishlist)
			r.Delete("/games/{gameID}", s.handleRemoveFromWishlist)
			r.Get("/visibility", s.handleGetVisibility)
			r.Put("/visibility", s.handleSetVisibility)
			r.Put("/release-date", s.handleUpdateReleaseDate)
			r.Get("/calendar", s.handleCalendar)
		})
		r.Get("/users/{userID}/wishlist", s.handleViewWishlist)
		r.Get("/games/search", s.handleSearchGames)
		r.Get("/games/upcoming", s.handleUpcomingGames)

		r.Get("/refresh", s.handleRefreshStatus)
		r.Post("/refresh", s.handleRefresh)

		r.Route("/views", func(r chi.Router) {
			r.Post("/bookmarks", s.handleOpenBookmarkView)
			r.Get("/bookmarks/{viewID}", s.handleBookmarkView)
			r.Post("/bookmarks/{viewID}/{action}", s.handleBookmarkViewAction)
			r.Get("/bookmarks/{viewID}/items/{index}", s.handleBookmarkViewItem)

			r.Post("/wishlist", s.handleOpenWishlistView)
			r.Get("/wishlist/{viewID}", s.handleWishlistView)
			r.Post("/wishlist/{viewID}/{action}", s.handleWishlistViewAction)
			r.Get("/wishlist/{viewID}/items/{index}", s.handleWishlistViewItem)
		})
	})

	s.router = r
}

// ServeHTTP lets the server be mounted or tested directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.log.Info("stopped")
	return nil
}
