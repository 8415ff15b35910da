// Package igdb is a small client for the IGDB game metadata API. It
// authenticates with the Twitch client-credentials flow and normalizes
// the API's loosely shaped payloads into storage.Game values.
package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/matthewjhunter/courier/internal/logging"
	"github.com/matthewjhunter/courier/internal/storage"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.igdb.com/v4"
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

	// tokenEarlyExpiry refreshes the app token this long before Twitch
	// says it expires.
	tokenEarlyExpiry = 300 * time.Second
	requestsPerSec   = 4

	gameFields = "fields id, name, slug, first_release_date, cover.url, platforms.name, release_dates.date;"
)

// ErrNotConfigured is returned when no client credentials are set.
var ErrNotConfigured = errors.New("igdb credentials are not configured")

// APIError is a non-success response from the API.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("igdb %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	// HTTPClient is the base transport for both token and API calls.
	HTTPClient *http.Client
}

type Client struct {
	clientID string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	log      *log.Logger
}

// New returns a client whose HTTP calls carry a bearer token obtained and
// refreshed through the client-credentials flow.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ts := oauth2.ReuseTokenSourceWithExpiry(nil, cc.TokenSource(ctx), tokenEarlyExpiry)
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = 15 * time.Second

	return &Client{
		clientID: cfg.ClientID,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     httpClient,
		limiter:  rate.NewLimiter(requestsPerSec, 1),
		log:      logging.OrNop(logger).WithPrefix("igdb"),
	}, nil
}

// Query POSTs an Apicalypse body to endpoint and returns the raw response.
func (c *Client) Query(ctx context.Context, endpoint, body string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("igdb %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read igdb response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	c.log.Debug("query ok", "endpoint", endpoint, "bytes", len(data))
	return data, nil
}

func (c *Client) queryGames(ctx context.Context, body string) ([]RawGame, error) {
	data, err := c.Query(ctx, "games", body)
	if err != nil {
		return nil, err
	}
	var raw []RawGame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode games: %w", err)
	}
	return raw, nil
}

func idList(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// Games looks up full records for ids.
func (c *Client) Games(ctx context.Context, ids []int64) ([]storage.Game, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := c.queryGames(ctx, fmt.Sprintf("%s where id = (%s); limit %d;", gameFields, idList(ids), len(ids)))
	if err != nil {
		return nil, err
	}
	return normalizeAll(raw), nil
}

// Game looks up a single record. It returns nil when the id is unknown.
func (c *Client) Game(ctx context.Context, id int64) (*storage.Game, error) {
	games, err := c.Games(ctx, []int64{id})
	if err != nil || len(games) == 0 {
		return nil, err
	}
	return &games[0], nil
}

// Search finds games by name.
func (c *Client) Search(ctx context.Context, name string, limit int) ([]storage.Game, error) {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ReplaceAll(name, `"`, `\"`)
	raw, err := c.queryGames(ctx, fmt.Sprintf(`search "%s"; %s limit %d;`, q, gameFields, limit))
	if err != nil {
		return nil, err
	}
	return normalizeAll(raw), nil
}

// Upcoming lists games releasing after now, soonest first, optionally
// restricted to one platform id.
func (c *Client) Upcoming(ctx context.Context, now time.Time, platformID int64, limit int) ([]storage.Game, error) {
	if limit <= 0 {
		limit = 10
	}
	where := fmt.Sprintf("where first_release_date > %d", now.Unix())
	if platformID > 0 {
		where += fmt.Sprintf(" & platforms = (%d)", platformID)
	}
	raw, err := c.queryGames(ctx, fmt.Sprintf("%s %s; sort first_release_date asc; limit %d;", gameFields, where, limit))
	if err != nil {
		return nil, err
	}
	return normalizeAll(raw), nil
}

// ReleaseDates fetches the current first release date for ids. It has the
// shape of storage.ReleaseLookup.
func (c *Client) ReleaseDates(ctx context.Context, ids []int64) ([]storage.GameRelease, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := c.queryGames(ctx, fmt.Sprintf("fields id, first_release_date; where id = (%s); limit %d;", idList(ids), len(ids)))
	if err != nil {
		return nil, err
	}
	out := make([]storage.GameRelease, 0, len(raw))
	for _, g := range raw {
		out = append(out, storage.GameRelease{ID: g.ID, FirstReleaseDate: g.FirstReleaseDate})
	}
	return out, nil
}

func normalizeAll(raw []RawGame) []storage.Game {
	out := make([]storage.Game, 0, len(raw))
	for _, g := range raw {
		out = append(out, g.Normalize())
	}
	return out
}
