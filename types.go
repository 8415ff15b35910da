package courier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/matthewjhunter/courier/internal/storage"
)

// EngineConfig configures the courier engine.
type EngineConfig struct {
	NewsPath     string
	WishlistPath string
	// OwnerID is the bot owner, the only user allowed to trigger a manual
	// wishlist refresh.
	OwnerID         string
	RefreshInterval time.Duration
	PageSize        int
	ViewTimeout     time.Duration
	// Games is the game metadata source. When nil, wishlist adds by id and
	// refreshes fail with ErrNoGameSource.
	Games  GameSource
	Logger *log.Logger
}

// GameSource looks up game metadata. *igdb.Client satisfies it.
type GameSource interface {
	Game(ctx context.Context, id int64) (*storage.Game, error)
	Search(ctx context.Context, name string, limit int) ([]storage.Game, error)
	ReleaseDates(ctx context.Context, ids []int64) ([]storage.GameRelease, error)
	Upcoming(ctx context.Context, now time.Time, platformID int64, limit int) ([]storage.Game, error)
}

var (
	ErrInvalidDate     = errors.New("invalid date: use YYYY-MM-DD, YYYY/MM/DD, DD-MM-YYYY, DD/MM/YYYY, ISO 8601 or a unix timestamp")
	ErrInvalidMonth    = errors.New("month must be between 1 and 12")
	ErrMissingGameID   = errors.New("game has no id")
	ErrGameNotFound    = errors.New("game not found")
	ErrNotInWishlist   = errors.New("game is not on the wishlist")
	ErrNotOwner        = errors.New("only the bot owner can do that")
	ErrPrivateWishlist = errors.New("this wishlist is private")
	ErrNoGameSource    = errors.New("no game metadata source is configured")
	ErrStore           = errors.New("store operation failed")
	ErrUnknownAction   = errors.New("not a bookmark action id")
)

// AmbiguousGameError is returned when a game query matches more than one
// wishlist entry.
type AmbiguousGameError struct {
	Query      string
	Candidates []storage.WishlistItem
}

func (e *AmbiguousGameError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = fmt.Sprintf("%s (%d)", c.Name, c.GameID)
	}
	return fmt.Sprintf("%q matches %d games: %s", e.Query, len(e.Candidates), strings.Join(names, ", "))
}

// CalendarDay lists the wishlist games releasing on one day.
type CalendarDay struct {
	Day   int                    `json:"day"`
	Games []storage.WishlistItem `json:"games"`
}

// Calendar is a user's wishlist releases for one month.
type Calendar struct {
	UserID string        `json:"user_id"`
	Year   int           `json:"year"`
	Month  time.Month    `json:"month"`
	Days   []CalendarDay `json:"days"`
	Total  int           `json:"total"`
}

// ReleaseUpdate reports a manual release date change.
type ReleaseUpdate struct {
	Game     storage.WishlistItem `json:"game"`
	Previous *int64               `json:"previous,omitempty"`
	Date     int64                `json:"date"`
}

// ToggleResult reports the new bookmark state of an entry.
type ToggleResult struct {
	EntryID    string `json:"entry_id"`
	Bookmarked bool   `json:"bookmarked"`
}
