package feeds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matthewjhunter/courier/internal/storage"
)

// ErrUnauthorized is returned when the feed source rejects credentials.
var ErrUnauthorized = errors.New("feed source rejected the API token")

// APIError is a non-success response from a feed source.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Enclosure is a media attachment on a feed item.
type Enclosure struct {
	URL      string
	MimeType string
}

// RawItem is an unread item as delivered by a feed source, before any
// cleaning or enrichment.
type RawItem struct {
	// NativeID is the source's numeric id, when it has one.
	NativeID *int64
	// EntryID overrides canonical id derivation for sources without
	// numeric ids.
	EntryID    string
	Source     string
	URL        string
	Title      string
	Summary    string
	Content    string
	Enclosures []Enclosure
	FeedTitle  string
	Published  *time.Time
}

// Ref returns the canonical reference for the item.
func (it RawItem) Ref() storage.EntryRef {
	return storage.EntryRef{
		EntryID:     it.EntryID,
		NativeID:    it.NativeID,
		Source:      it.Source,
		URL:         it.URL,
		Title:       it.Title,
		PublishedAt: it.Published,
	}
}

// ID returns the canonical entry id for the item.
func (it RawItem) ID() string {
	return storage.CanonicalEntryID(it.Ref())
}

// Source delivers unread items and accepts read acknowledgements.
type Source interface {
	// FetchUnread returns up to limit unread items, newest first.
	FetchUnread(ctx context.Context, limit int) ([]RawItem, error)
	// MarkRead acknowledges items so they are not delivered again.
	MarkRead(ctx context.Context, items []RawItem) error
}
