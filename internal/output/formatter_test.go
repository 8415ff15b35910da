package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matthewjhunter/courier"
	"github.com/matthewjhunter/courier/internal/feeds"
	"github.com/matthewjhunter/courier/internal/jobs"
	"github.com/matthewjhunter/courier/internal/storage"
)

func ts(v int64) *int64 { return &v }

func TestOutputCycleResult_JSON(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)

	result := feeds.CycleResult{Fetched: 5, Posted: 3, Duplicates: 1, Failed: 1, MarkRead: errors.New("timeout")}
	if err := f.OutputCycleResult(result); err != nil {
		t.Fatalf("OutputCycleResult failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if decoded["fetched"] != float64(5) {
		t.Errorf("fetched = %v, want 5", decoded["fetched"])
	}
	if decoded["posted"] != float64(3) {
		t.Errorf("posted = %v, want 3", decoded["posted"])
	}
	if decoded["mark_read_error"] != "timeout" {
		t.Errorf("mark_read_error = %v, want timeout", decoded["mark_read_error"])
	}
}

func TestOutputCycleResult_Text(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	if err := f.OutputCycleResult(feeds.CycleResult{Fetched: 10, Posted: 7, Duplicates: 2}); err != nil {
		t.Fatalf("OutputCycleResult failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"fetched=10", "posted=7", "duplicates=2", "failed=0"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %s in output: %s", want, got)
		}
	}
}

func TestOutputCycleResult_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	if err := f.OutputCycleResult(feeds.CycleResult{}); err != nil {
		t.Fatalf("OutputCycleResult failed: %v", err)
	}
	if !strings.Contains(out.String(), "No unread entries") {
		t.Errorf("expected empty message, got: %s", out.String())
	}

	out.Reset()
	f.OutputCycleResult(feeds.CycleResult{Fetched: 3, Posted: 2, Failed: 1})
	got := out.String()
	if !strings.Contains(got, "posted 2") || !strings.Contains(got, "1 entries failed") {
		t.Errorf("unexpected human output: %s", got)
	}
}

func TestOutputBookmarks(t *testing.T) {
	added := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bookmarks := []storage.BookmarkedEntry{
		{Entry: storage.Entry{EntryID: "url:https://x.test/a", URL: "https://x.test/a", Title: "A"}, AddedAt: added, Note: "read later"},
		{Entry: storage.Entry{EntryID: "miniflux:9"}, AddedAt: added},
	}

	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)
	if err := f.OutputBookmarks(bookmarks); err != nil {
		t.Fatalf("OutputBookmarks failed: %v", err)
	}
	if !strings.Contains(out.String(), "id=url:https://x.test/a\ttitle=A") {
		t.Errorf("unexpected text output: %s", out.String())
	}

	out.Reset()
	f = NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	f.OutputBookmarks(bookmarks)
	got := out.String()
	if !strings.Contains(got, "Bookmarks (2)") || !strings.Contains(got, "Note: read later") {
		t.Errorf("unexpected human output: %s", got)
	}
	if !strings.Contains(got, "Title: Untitled") {
		t.Errorf("stub bookmark should render a placeholder title: %s", got)
	}
}

func TestOutputBookmarks_EmptyJSONIsArray(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)
	f.OutputBookmarks(nil)
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("expected [], got %s", out.String())
	}
}

func TestOutputWishlist(t *testing.T) {
	items := []storage.WishlistItem{
		{GameID: 1, ID: 1, Name: "Hades II", FirstReleaseDate: ts(1758844800), Platforms: "PC, Switch"},
		{GameID: 2, ID: 2, Name: "Unannounced"},
	}

	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	if err := f.OutputWishlist("alice", items); err != nil {
		t.Fatalf("OutputWishlist failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"alice's wishlist (2 games)", "Release: 2025-09-26", "Release: TBA", "Platforms: PC, Switch"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in output: %s", want, got)
		}
	}

	out.Reset()
	f = NewFormatterWithWriters(FormatJSON, &out, &errBuf)
	f.OutputWishlist("alice", items)
	var decoded []map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if decoded[0]["id"] != float64(1) || decoded[0]["game_id"] != float64(1) {
		t.Errorf("wishlist rows should carry id and game_id: %v", decoded[0])
	}
}

func TestOutputRefreshSummary(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	f.OutputRefreshSummary(storage.RefreshSummary{Updated: 2, Missing: 1, Failed: 3})
	got := out.String()
	if !strings.Contains(got, "2 updated") || !strings.Contains(got, "3 failed") {
		t.Errorf("unexpected output: %s", got)
	}
}

func TestOutputRefreshStatus(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	f.OutputRefreshStatus(jobs.Status{})
	if !strings.Contains(out.String(), "No refresh has run yet") {
		t.Errorf("unexpected output: %s", out.String())
	}

	out.Reset()
	now := time.Now()
	f.OutputRefreshStatus(jobs.Status{LastRun: &now, LastSummary: &storage.RefreshSummary{Updated: 1}, LastError: "boom"})
	got := out.String()
	if !strings.Contains(got, "updated=1") || !strings.Contains(got, "Last error: boom") {
		t.Errorf("unexpected output: %s", got)
	}
}

func TestOutputCalendar(t *testing.T) {
	cal := &courier.Calendar{
		Year:  2026,
		Month: time.May,
		Days: []courier.CalendarDay{
			{Day: 3, Games: []storage.WishlistItem{{GameID: 1, Name: "A"}, {GameID: 2, Name: "B"}}},
		},
		Total: 2,
	}

	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)
	f.OutputCalendar(cal)
	if !strings.Contains(out.String(), "date=2026-05-03\tid=2\tname=B") {
		t.Errorf("unexpected text output: %s", out.String())
	}

	out.Reset()
	f = NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	f.OutputCalendar(cal)
	if !strings.Contains(out.String(), " 3  A, B") {
		t.Errorf("unexpected human output: %s", out.String())
	}
}

func TestOutputFeeds(t *testing.T) {
	subs := []storage.Feed{
		{ID: 1, URL: "https://a.test/rss", Title: "A", Enabled: true},
		{ID: 2, URL: "https://b.test/atom", LastError: "HTTP 500", Enabled: true},
	}

	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	f.OutputFeeds(subs)
	got := out.String()
	if !strings.Contains(got, "[2] (untitled)") || !strings.Contains(got, "HTTP 500") {
		t.Errorf("unexpected human output: %s", got)
	}

	out.Reset()
	f = NewFormatterWithWriters(FormatJSON, &out, &errBuf)
	f.OutputFeeds(subs)
	var decoded []map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0]["url"] != "https://a.test/rss" {
		t.Errorf("unexpected JSON: %s", out.String())
	}
	if _, ok := decoded[0]["ETag"]; ok {
		t.Error("conditional GET headers should not be serialized")
	}
}

func TestUnknownFormat(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(Format("xml"), &out, &errBuf)
	if err := f.OutputRefreshSummary(storage.RefreshSummary{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWarningGoesToStderr(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	f.Warning("feed %s failed", "x")
	if out.Len() != 0 || errBuf.String() != "Warning: feed x failed\n" {
		t.Errorf("out=%q err=%q", out.String(), errBuf.String())
	}
}
