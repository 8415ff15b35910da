package feeds

import (
	"context"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/matthewjhunter/courier/internal/logging"
	"github.com/matthewjhunter/courier/internal/storage"
	"github.com/microcosm-cc/bluemonday"
)

const (
	MaxDescriptionLength = 400
	MinParagraphLength   = 50
	MaxTitleLength       = 256
	DefaultTitle         = "Untitled article"
)

var (
	textPolicy    = newTextPolicy()
	contentPolicy = bluemonday.UGCPolicy()
)

func newTextPolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	p.SkipElementsContent("script", "style", "nav", "header", "footer")
	return p
}

// CleanHTML reduces an HTML fragment to collapsed plain text of at most
// MaxDescriptionLength characters, with "..." appended when cut.
func CleanHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	text := html.UnescapeString(textPolicy.Sanitize(fragment))
	return truncate(strings.Join(strings.Fields(text), " "), MaxDescriptionLength)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func truncateTitle(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) == 0 {
		return DefaultTitle
	}
	if len(r) > MaxTitleLength {
		r = r[:MaxTitleLength]
	}
	return string(r)
}

// ExtractEntryImage picks the first image enclosure, else the first <img>
// in the item's content or summary.
func ExtractEntryImage(item RawItem) string {
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.MimeType, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	for _, fragment := range []string{item.Content, item.Summary} {
		if fragment == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err != nil {
			continue
		}
		if src, ok := doc.Find("img[src]").First().Attr("src"); ok && src != "" {
			return src
		}
	}
	return ""
}

// normalizeImageURL upgrades protocol-relative URLs to https.
func normalizeImageURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// Processor turns raw feed items into entries ready to store and post.
type Processor struct {
	scraper *Scraper
	colors  *ColorExtractor
	log     *log.Logger
}

// NewProcessor returns a processor sharing one HTTP client for scraping
// and image sampling.
func NewProcessor(client *http.Client, logger *log.Logger) *Processor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Processor{
		scraper: NewScraper(client),
		colors:  NewColorExtractor(client),
		log:     logging.OrNop(logger).WithPrefix("content"),
	}
}

// Build derives display fields for item. Feed-provided fields win; the
// article page is scraped when the description is missing or short.
// Scrape and color failures leave the affected fields empty.
func (p *Processor) Build(ctx context.Context, item RawItem) storage.Entry {
	e := storage.Entry{
		EntryID:       item.ID(),
		Source:        item.Source,
		SourceEntryID: item.Ref().SourceEntryID(),
		URL:           item.URL,
		Title:         truncateTitle(item.Title),
		FeedTitle:     item.FeedTitle,
		PublishedAt:   item.Published,
	}

	for _, fragment := range []string{item.Summary, item.Content} {
		if d := CleanHTML(fragment); d != "" {
			e.Summary = d
			break
		}
	}
	if item.Content != "" {
		e.Content = contentPolicy.Sanitize(item.Content)
	}
	e.ImageURL = ExtractEntryImage(item)

	if len([]rune(e.Summary)) < MinParagraphLength && item.URL != "" {
		text, image, err := p.scraper.Scrape(ctx, item.URL)
		if err != nil {
			p.log.Debug("scrape failed", "url", item.URL, "err", err)
		}
		if text != "" {
			e.Summary = text
		}
		if e.ImageURL == "" {
			e.ImageURL = image
		}
	}
	e.ImageURL = normalizeImageURL(e.ImageURL)

	if e.ImageURL != "" {
		c, err := p.colors.Dominant(ctx, e.ImageURL)
		if err != nil {
			p.log.Debug("color extraction failed", "image", e.ImageURL, "err", err)
		} else {
			e.Color = c
		}
	}
	return e
}
