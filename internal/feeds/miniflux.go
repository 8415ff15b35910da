package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// MinifluxSource reads unread entries from a Miniflux instance.
type MinifluxSource struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewMinifluxSource returns a source for the Miniflux API at baseURL.
func NewMinifluxSource(baseURL, token string, client *http.Client) *MinifluxSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &MinifluxSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type minifluxEntries struct {
	Total   int             `json:"total"`
	Entries []minifluxEntry `json:"entries"`
}

type minifluxEntry struct {
	ID          int64               `json:"id"`
	URL         string              `json:"url"`
	Title       string              `json:"title"`
	Content     string              `json:"content"`
	PublishedAt flexTime            `json:"published_at"`
	Feed        minifluxFeed        `json:"feed"`
	Enclosures  []minifluxEnclosure `json:"enclosures"`
}

type minifluxFeed struct {
	Title string `json:"title"`
}

type minifluxEnclosure struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// flexTime accepts a timestamp as an ISO-ish string or as epoch seconds.
type flexTime struct {
	t *time.Time
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		t := time.Unix(int64(n), 0).UTC()
		f.t = &t
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	t, err := dateparse.ParseAny(str)
	if err != nil {
		// Unparseable dates are dropped rather than failing the batch.
		return nil
	}
	t = t.UTC()
	f.t = &t
	return nil
}

// FetchUnread returns up to limit unread entries, newest first.
func (m *MinifluxSource) FetchUnread(ctx context.Context, limit int) ([]RawItem, error) {
	q := url.Values{}
	q.Set("status", "unread")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order", "published_at")
	q.Set("direction", "desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/v1/entries?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	m.authorize(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unread entries: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("fetch unread entries", resp, http.StatusOK); err != nil {
		return nil, err
	}

	var payload minifluxEntries
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}

	items := make([]RawItem, 0, len(payload.Entries))
	for _, e := range payload.Entries {
		id := e.ID
		item := RawItem{
			Source:    "miniflux",
			URL:       e.URL,
			Title:     e.Title,
			Content:   e.Content,
			FeedTitle: e.Feed.Title,
			Published: e.PublishedAt.t,
		}
		if id != 0 {
			item.NativeID = &id
		}
		for _, enc := range e.Enclosures {
			item.Enclosures = append(item.Enclosures, Enclosure{URL: enc.URL, MimeType: enc.MimeType})
		}
		items = append(items, item)
	}
	return items, nil
}

// MarkRead flags the items read upstream. Items without a native id are
// ignored.
func (m *MinifluxSource) MarkRead(ctx context.Context, items []RawItem) error {
	var ids []int64
	for _, it := range items {
		if it.NativeID != nil {
			ids = append(ids, *it.NativeID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string]any{"entry_ids": ids, "status": "read"})
	if err != nil {
		return fmt.Errorf("failed to encode read request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, m.baseURL+"/v1/entries", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	m.authorize(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to mark entries read: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus("mark entries read", resp, http.StatusNoContent)
}

func (m *MinifluxSource) authorize(req *http.Request) {
	req.Header.Set("X-Auth-Token", m.token)
	req.Header.Set("Accept", "application/json")
}

func checkStatus(op string, resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
