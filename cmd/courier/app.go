package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/matthewjhunter/courier"
	"github.com/matthewjhunter/courier/internal/api"
	"github.com/matthewjhunter/courier/internal/channel"
	"github.com/matthewjhunter/courier/internal/feeds"
)

func openEngine(ctx context.Context) (*courier.Engine, error) {
	return courier.Open(ctx, cfg, httpClient, logger)
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

// newSource returns the configured feed source.
func newSource(engine *courier.Engine) (feeds.Source, error) {
	switch cfg.Source {
	case "", "miniflux":
		if cfg.Miniflux.Token == "" {
			return nil, errors.New("miniflux.token (or MINIFLUX_API_TOKEN) is required")
		}
		return feeds.NewMinifluxSource(cfg.Miniflux.URL, cfg.Miniflux.Token, httpClient), nil
	case "rss":
		src := feeds.NewRSSSource(engine.News(), httpClient, logger)
		if err := src.Subscribe(cfg.RSS.Feeds); err != nil {
			return nil, fmt.Errorf("failed to subscribe configured feeds: %w", err)
		}
		return src, nil
	}
	return nil, fmt.Errorf("unknown source %q", cfg.Source)
}

// newPoster posts to the configured webhook, or to stdout without one.
func newPoster() channel.Poster {
	if cfg.Channel.WebhookURL != "" {
		return channel.NewWebhookPoster(cfg.Channel.WebhookURL, httpClient)
	}
	logger.Warn("no webhook configured, posting to stdout")
	return channel.NewConsolePoster(os.Stdout)
}

func newPoller(engine *courier.Engine) (*feeds.Poller, error) {
	src, err := newSource(engine)
	if err != nil {
		return nil, err
	}
	pcfg := feeds.PollerConfig{
		BatchSize:      cfg.Poller.BatchSize,
		ActiveInterval: cfg.Poller.ActiveInterval,
		IdleInterval:   cfg.Poller.IdleInterval,
		ErrorBackoff:   cfg.Poller.ErrorBackoff,
		PostDelay:      cfg.Poller.PostDelay,
	}
	builder := feeds.NewProcessor(httpClient, logger)
	return feeds.NewPoller(src, engine.News(), builder, newPoster(), pcfg, logger), nil
}

func issueToken(user string, admin bool, ttl time.Duration) (string, error) {
	if cfg.API.JWTSecret == "" {
		return "", errors.New("api.jwt_secret (or COURIER_JWT_SECRET) is required")
	}
	return api.IssueToken([]byte(cfg.API.JWTSecret), user, admin, ttl)
}
