package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matthewjhunter/courier/internal/storage"
)

func TestBookmarkActionRoundTrip(t *testing.T) {
	id := BookmarkActionID("miniflux:42")
	if id != "bookmark:miniflux:42" {
		t.Fatalf("BookmarkActionID = %q", id)
	}
	got, ok := ParseBookmarkAction(id)
	if !ok || got != "miniflux:42" {
		t.Errorf("ParseBookmarkAction = %q, %v", got, ok)
	}
	if _, ok := ParseBookmarkAction("other:1"); ok {
		t.Error("foreign action ids should not parse")
	}
	if _, ok := ParseBookmarkAction("bookmark:"); ok {
		t.Error("empty entry id should not parse")
	}
}

func TestConsolePoster(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsolePoster(&buf)
	err := p.Post(context.Background(), storage.Entry{
		EntryID:   "url:https://x.test/a",
		URL:       "https://x.test/a",
		Title:     "Hello",
		FeedTitle: "X News",
	})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Hello", "X News", NoContent, "[bookmark:url:https://x.test/a]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWebhookPoster(t *testing.T) {
	var got webhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	color := int64(0x3366cc)
	published := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p := NewWebhookPoster(srv.URL, srv.Client())
	err := p.Post(context.Background(), storage.Entry{
		EntryID:     "miniflux:7",
		URL:         "https://x.test/7",
		Title:       "Seven",
		Summary:     "A summary",
		ImageURL:    "https://x.test/7.png",
		FeedTitle:   "Feed",
		Color:       &color,
		PublishedAt: &published,
	})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(got.Embeds))
	}
	em := got.Embeds[0]
	if em.Title != "Seven" || em.Description != "A summary" || em.Image == nil || em.Author == nil {
		t.Errorf("unexpected embed: %+v", em)
	}
	if em.Color == nil || *em.Color != color {
		t.Errorf("color = %v, want %d", em.Color, color)
	}
	if em.Timestamp != "2025-03-01T10:00:00Z" {
		t.Errorf("timestamp = %q", em.Timestamp)
	}
	if len(got.Components) != 1 || len(got.Components[0].Components) != 1 {
		t.Fatalf("expected one bookmark button, got %+v", got.Components)
	}
	if id := got.Components[0].Components[0].CustomID; id != "bookmark:miniflux:7" {
		t.Errorf("custom id = %q", id)
	}
}

func TestWebhookPosterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewWebhookPoster(srv.URL, srv.Client())
	err := p.Post(context.Background(), storage.Entry{EntryID: "x:1", URL: "https://x.test", Title: "t"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected 429 error, got %v", err)
	}
}
