// Package channel delivers posted entries to a chat channel.
package channel

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/matthewjhunter/courier/internal/storage"
)

// BookmarkPrefix prefixes the custom id of the bookmark button attached
// to every post. The rest of the id is the canonical entry id.
const BookmarkPrefix = "bookmark:"

// NoContent is shown when an entry has no description.
const NoContent = "No content available"

// Poster publishes an entry with a bookmark affordance.
type Poster interface {
	Post(ctx context.Context, e storage.Entry) error
}

// BookmarkActionID returns the component id that bookmarks entryID.
func BookmarkActionID(entryID string) string {
	return BookmarkPrefix + entryID
}

// ParseBookmarkAction extracts the entry id from a bookmark component id.
func ParseBookmarkAction(actionID string) (string, bool) {
	id, ok := strings.CutPrefix(actionID, BookmarkPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// ConsolePoster writes posts as boxed text, for running without a chat
// platform.
type ConsolePoster struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsolePoster(w io.Writer) *ConsolePoster {
	if w == nil {
		w = os.Stdout
	}
	return &ConsolePoster{w: w}
}

func (c *ConsolePoster) Post(ctx context.Context, e storage.Entry) error {
	desc := e.Summary
	if desc == "" {
		desc = NoContent
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	fmt.Fprintln(&b, "╔════════════════════════════════════════════════════════════════════════")
	if e.FeedTitle != "" {
		fmt.Fprintf(&b, "║ %s\n", e.FeedTitle)
	}
	fmt.Fprintf(&b, "║ %s\n", e.Title)
	fmt.Fprintln(&b, "╠════════════════════════════════════════════════════════════════════════")
	fmt.Fprintln(&b, desc)
	fmt.Fprintln(&b, e.URL)
	if e.ImageURL != "" {
		fmt.Fprintf(&b, "image: %s\n", e.ImageURL)
	}
	fmt.Fprintf(&b, "[%s]\n", BookmarkActionID(e.EntryID))
	fmt.Fprintln(&b, "╚════════════════════════════════════════════════════════════════════════")
	_, err := io.WriteString(c.w, b.String())
	return err
}
