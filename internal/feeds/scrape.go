package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	metaImageKeys    = []string{"og:image", "twitter:image", "twitter:image:src"}
	contentSelectors = []string{"article", `[role="main"]`, ".post-content", ".entry-content", ".article-content", ".content", "main"}
	unwantedElements = "script, style, nav, header, footer, aside, .advertisement"
)

const maxPageBytes = 5 << 20

// Scraper pulls a description and a lead image out of an article page.
type Scraper struct {
	client *http.Client
}

func NewScraper(client *http.Client) *Scraper {
	return &Scraper{client: client}
}

// Scrape fetches pageURL and returns up to three long paragraphs of text
// and the page's meta image resolved against pageURL.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", &APIError{Op: "scrape " + pageURL, Status: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse page: %w", err)
	}

	image := metaImage(doc)
	if image != "" {
		image = resolveURL(pageURL, image)
	}
	return contentText(doc), image, nil
}

func metaImage(doc *goquery.Document) string {
	for _, key := range metaImageKeys {
		for _, attr := range []string{"property", "name"} {
			sel := doc.Find(fmt.Sprintf(`meta[%s=%q]`, attr, key)).First()
			if content, ok := sel.Attr("content"); ok && strings.TrimSpace(content) != "" {
				return strings.TrimSpace(content)
			}
		}
	}
	return ""
}

func contentText(doc *goquery.Document) string {
	doc.Find(unwantedElements).Remove()

	var area *goquery.Selection
	for _, sel := range contentSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			area = found
			break
		}
	}
	if area == nil {
		area = doc.Find("body")
		if area.Length() == 0 {
			area = doc.Selection
		}
	}

	var paragraphs []string
	area.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.Join(strings.Fields(p.Text()), " ")
		if len([]rune(text)) >= MinParagraphLength {
			paragraphs = append(paragraphs, text)
		}
		return len(paragraphs) < 3
	})

	text := strings.Join(paragraphs, " ")
	if text == "" {
		text = strings.Join(strings.Fields(area.Text()), " ")
	}
	return truncate(text, MaxDescriptionLength)
}

func resolveURL(base, ref string) string {
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
