package courier

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/matthewjhunter/courier/internal/igdb"
	"github.com/matthewjhunter/courier/internal/logging"
	"github.com/matthewjhunter/courier/internal/storage"
)

// Open builds an engine from a loaded config file. Game lookups are
// disabled when no IGDB credentials are configured.
func Open(ctx context.Context, cfg *storage.Config, client *http.Client, logger *log.Logger) (*Engine, error) {
	logger = logging.OrNop(logger)
	ecfg := EngineConfig{
		NewsPath:        cfg.Database.NewsPath,
		WishlistPath:    cfg.Database.WishlistPath,
		OwnerID:         cfg.Bot.OwnerID,
		RefreshInterval: cfg.Refresh.Interval,
		PageSize:        cfg.Views.PageSize,
		ViewTimeout:     cfg.Views.Timeout,
		Logger:          logger,
	}

	games, err := igdb.New(ctx, igdb.Config{
		ClientID:     cfg.IGDB.ClientID,
		ClientSecret: cfg.IGDB.ClientSecret,
		BaseURL:      cfg.IGDB.BaseURL,
		TokenURL:     cfg.IGDB.TokenURL,
		HTTPClient:   client,
	}, logger)
	switch {
	case errors.Is(err, igdb.ErrNotConfigured):
		logger.Warn("IGDB credentials not set, game lookups disabled")
	case err != nil:
		return nil, err
	default:
		ecfg.Games = games
	}

	return NewEngine(ecfg)
}
