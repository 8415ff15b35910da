package feeds

import (
	"cmp"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/matthewjhunter/courier/internal/logging"
	"github.com/matthewjhunter/courier/internal/storage"
	"github.com/mmcdole/gofeed"
)

const userAgent = "courier/1.0"

// RSSSource polls subscribed RSS/Atom feeds directly and keeps read state
// in the news database.
type RSSSource struct {
	parser  *gofeed.Parser
	client  *http.Client
	store   *storage.NewsStore
	log     *log.Logger
	timeout time.Duration

	mu    sync.Mutex
	items map[int64][]RawItem // last parsed items per feed
}

// NewRSSSource returns a source reading the feeds subscribed in store.
func NewRSSSource(store *storage.NewsStore, client *http.Client, logger *log.Logger) *RSSSource {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	if client == nil {
		client = &http.Client{}
	}
	return &RSSSource{
		parser:  parser,
		client:  client,
		store:   store,
		log:     logging.OrNop(logger).WithPrefix("rss"),
		timeout: 30 * time.Second,
		items:   make(map[int64][]RawItem),
	}
}

// OPML structures for parsing
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Body    OPMLBody `xml:"body"`
}

type OPMLBody struct {
	Outlines []OPMLOutline `xml:"outline"`
}

type OPMLOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	Type     string        `xml:"type,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	HTMLURL  string        `xml:"htmlUrl,attr"`
	Outlines []OPMLOutline `xml:"outline"`
}

// FetchResult holds the outcome of a conditional feed fetch.
type FetchResult struct {
	Feed         *gofeed.Feed // nil when NotModified is true
	ETag         string
	LastModified string
	NotModified  bool
}

// FetchFeed fetches and parses a single feed, sending the stored ETag and
// Last-Modified values as conditional headers.
func (r *RSSSource) FetchFeed(ctx context.Context, feed storage.Feed) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", feed.URL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if feed.ETag != "" {
		req.Header.Set("If-None-Match", feed.ETag)
	}
	if feed.LastModified != "" {
		req.Header.Set("If-Modified-Since", feed.LastModified)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feed.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{NotModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: "fetch feed " + feed.URL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", feed.URL, err)
	}
	parsed, err := r.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feed.URL, err)
	}

	return &FetchResult{
		Feed:         parsed,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// ItemKey is the stable id of a parsed feed item: its GUID, or its link
// when the feed omits GUIDs.
func ItemKey(item *gofeed.Item) string {
	if item.GUID != "" {
		return "rss:" + item.GUID
	}
	return "rss:" + item.Link
}

func convertItem(feed *gofeed.Feed, item *gofeed.Item) RawItem {
	raw := RawItem{
		EntryID:   ItemKey(item),
		Source:    "rss",
		URL:       item.Link,
		Title:     item.Title,
		Summary:   item.Description,
		Content:   item.Content,
		FeedTitle: feed.Title,
	}
	if item.PublishedParsed != nil {
		raw.Published = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		raw.Published = item.UpdatedParsed
	}
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		raw.Enclosures = append(raw.Enclosures, Enclosure{URL: enc.URL, MimeType: enc.Type})
	}
	if item.Image != nil && item.Image.URL != "" {
		raw.Enclosures = append(raw.Enclosures, Enclosure{URL: item.Image.URL, MimeType: "image/*"})
	}
	return raw
}

// FetchUnread refreshes every subscribed feed and returns up to limit
// unread items across all of them, newest first. A feed that fails to
// fetch is recorded and skipped; unchanged feeds reuse their last parse.
// Conditional headers are only sent once the feed has been parsed by this
// source, so a fresh process always sees the full feed.
func (r *RSSSource) FetchUnread(ctx context.Context, limit int) ([]RawItem, error) {
	feeds, err := r.store.Feeds()
	if err != nil {
		return nil, err
	}

	var unread []RawItem
	for _, feed := range feeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.mu.Lock()
		_, parsedBefore := r.items[feed.ID]
		r.mu.Unlock()
		if !parsedBefore {
			// Nothing cached in this process; a 304 would hide unread items.
			feed.ETag, feed.LastModified = "", ""
		}

		feedCtx, cancel := context.WithTimeout(ctx, r.timeout)
		result, err := r.FetchFeed(feedCtx, feed)
		cancel()
		if err != nil {
			r.log.Warn("feed fetch failed", "url", feed.URL, "err", err)
			if uerr := r.store.UpdateFeedError(feed.ID, err.Error()); uerr != nil {
				r.log.Error("failed to record feed error", "url", feed.URL, "err", uerr)
			}
		} else {
			if !result.NotModified {
				parsed := make([]RawItem, 0, len(result.Feed.Items))
				for _, item := range result.Feed.Items {
					if item == nil || item.Link == "" {
						continue
					}
					parsed = append(parsed, convertItem(result.Feed, item))
				}
				r.mu.Lock()
				r.items[feed.ID] = parsed
				r.mu.Unlock()
			}
			if err := r.store.FeedFetched(feed.ID, result.ETag, result.LastModified); err != nil {
				r.log.Error("failed to update feed", "url", feed.URL, "err", err)
			}
		}

		r.mu.Lock()
		cached := r.items[feed.ID]
		r.mu.Unlock()
		for _, item := range cached {
			read, err := r.store.IsItemRead(item.EntryID)
			if err != nil {
				return nil, err
			}
			if !read {
				unread = append(unread, item)
			}
		}
	}

	slices.SortStableFunc(unread, func(a, b RawItem) int {
		return cmp.Compare(publishedUnix(b), publishedUnix(a))
	})
	if limit > 0 && len(unread) > limit {
		unread = unread[:limit]
	}
	return unread, nil
}

func publishedUnix(it RawItem) int64 {
	if it.Published == nil {
		return 0
	}
	return it.Published.Unix()
}

// MarkRead records local read marks for the items.
func (r *RSSSource) MarkRead(ctx context.Context, items []RawItem) error {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.ID())
	}
	return r.store.MarkItemsRead(keys)
}

// Subscribe adds feed URLs, typically from the config file. Existing
// subscriptions are left alone.
func (r *RSSSource) Subscribe(urls []string) error {
	for _, u := range urls {
		if _, err := r.store.AddFeed(u, ""); err != nil {
			return err
		}
	}
	return nil
}

// ImportOPML subscribes to every feed listed in an OPML file, including
// nested folders, and returns how many were added.
func (r *RSSSource) ImportOPML(opmlPath string) (int, error) {
	data, err := os.ReadFile(opmlPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read OPML file: %w", err)
	}

	var opml OPML
	if err := xml.Unmarshal(data, &opml); err != nil {
		return 0, fmt.Errorf("failed to parse OPML: %w", err)
	}

	added := 0
	var walk func(outlines []OPMLOutline)
	walk = func(outlines []OPMLOutline) {
		for _, outline := range outlines {
			if outline.XMLURL != "" {
				title := outline.Title
				if title == "" {
					title = outline.Text
				}
				if _, err := r.store.AddFeed(outline.XMLURL, title); err != nil {
					r.log.Warn("failed to add feed", "url", outline.XMLURL, "err", err)
				} else {
					added++
				}
			}
			if len(outline.Outlines) > 0 {
				walk(outline.Outlines)
			}
		}
	}
	walk(opml.Body.Outlines)
	return added, nil
}
