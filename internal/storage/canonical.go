package storage

import (
	"strconv"
	"strings"
	"time"
)

// DefaultSource names the aggregator used when a reference carries a
// native id but no source.
const DefaultSource = "miniflux"

// EntryRef is whatever a caller knows about an entry when it wants to
// post or bookmark it. Any subset of fields may be set.
type EntryRef struct {
	EntryID     string
	NativeID    *int64
	Source      string
	URL         string
	Title       string
	Summary     string
	ImageURL    string
	PublishedAt *time.Time
}

// CanonicalEntryID derives the stable identifier for ref. An explicit
// entry id wins, then "<source>:<native id>", then "url:<url>". It
// returns "" when ref identifies nothing.
func CanonicalEntryID(ref EntryRef) string {
	if id := strings.TrimSpace(ref.EntryID); id != "" {
		return id
	}
	if ref.NativeID != nil {
		source := strings.TrimSpace(ref.Source)
		if source == "" {
			source = DefaultSource
		}
		return source + ":" + strconv.FormatInt(*ref.NativeID, 10)
	}
	if u := strings.TrimSpace(ref.URL); u != "" {
		return "url:" + u
	}
	return ""
}

// SourceEntryID returns the native id as text, or "" when absent.
func (r EntryRef) SourceEntryID() string {
	if r.NativeID == nil {
		return ""
	}
	return strconv.FormatInt(*r.NativeID, 10)
}
