package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matthewjhunter/courier/internal/storage"
)

// WebhookPoster posts entries as chat embeds through an incoming webhook.
type WebhookPoster struct {
	url    string
	client *http.Client
}

func NewWebhookPoster(url string, client *http.Client) *WebhookPoster {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WebhookPoster{url: url, client: client}
}

type webhookMessage struct {
	Embeds     []embed     `json:"embeds"`
	Components []component `json:"components,omitempty"`
}

type embed struct {
	Title       string       `json:"title"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description"`
	Color       *int64       `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Author      *embedAuthor `json:"author,omitempty"`
	Image       *embedImage  `json:"image,omitempty"`
}

type embedAuthor struct {
	Name string `json:"name"`
}

type embedImage struct {
	URL string `json:"url"`
}

type component struct {
	Type       int         `json:"type"`
	Style      int         `json:"style,omitempty"`
	Label      string      `json:"label,omitempty"`
	CustomID   string      `json:"custom_id,omitempty"`
	Components []component `json:"components,omitempty"`
}

const (
	componentActionRow = 1
	componentButton    = 2
	buttonSecondary    = 2
)

func buildMessage(e storage.Entry) webhookMessage {
	desc := e.Summary
	if desc == "" {
		desc = NoContent
	}
	em := embed{
		Title:       e.Title,
		URL:         e.URL,
		Description: desc,
		Color:       e.Color,
	}
	if e.PublishedAt != nil {
		em.Timestamp = e.PublishedAt.UTC().Format(time.RFC3339)
	}
	if e.FeedTitle != "" {
		em.Author = &embedAuthor{Name: e.FeedTitle}
	}
	if e.ImageURL != "" {
		em.Image = &embedImage{URL: e.ImageURL}
	}
	return webhookMessage{
		Embeds: []embed{em},
		Components: []component{{
			Type: componentActionRow,
			Components: []component{{
				Type:     componentButton,
				Style:    buttonSecondary,
				Label:    "Bookmark",
				CustomID: BookmarkActionID(e.EntryID),
			}},
		}},
	}
}

func (w *WebhookPoster) Post(ctx context.Context, e storage.Entry) error {
	body, err := json.Marshal(buildMessage(e))
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
