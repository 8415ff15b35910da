package feeds

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"tags and entities", "<p>Fish &amp; <b>chips</b></p><p>tonight</p>", "Fish & chips tonight"},
		{"drops scripts and chrome", "<nav>Menu</nav><script>alert(1)</script><p>Body text</p><footer>(c)</footer>", "Body text"},
		{"collapses whitespace", "<div>  lots\n\n of   space </div>", "lots of space"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanHTML(tt.in); got != tt.want {
				t.Errorf("CleanHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanHTMLTruncates(t *testing.T) {
	long := "<p>" + strings.Repeat("a", 500) + "</p>"
	got := CleanHTML(long)
	if len(got) != MaxDescriptionLength+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected %d chars ending in ..., got %d", MaxDescriptionLength+3, len(got))
	}
}

func TestTruncateTitle(t *testing.T) {
	if got := truncateTitle("   "); got != DefaultTitle {
		t.Errorf("empty title = %q", got)
	}
	if got := truncateTitle(strings.Repeat("é", 300)); len([]rune(got)) != MaxTitleLength {
		t.Errorf("title not cut to %d runes: %d", MaxTitleLength, len([]rune(got)))
	}
}

func TestExtractEntryImage(t *testing.T) {
	tests := []struct {
		name string
		item RawItem
		want string
	}{
		{
			"image enclosure first",
			RawItem{
				Enclosures: []Enclosure{{URL: "https://x.test/a.mp3", MimeType: "audio/mpeg"}, {URL: "https://x.test/a.jpg", MimeType: "image/jpeg"}},
				Content:    `<img src="https://x.test/inline.png">`,
			},
			"https://x.test/a.jpg",
		},
		{"content img", RawItem{Content: `<p>hi</p><img src="https://x.test/c.png"><img src="https://x.test/d.png">`}, "https://x.test/c.png"},
		{"summary img", RawItem{Summary: `<img src="//cdn.test/s.png">`}, "//cdn.test/s.png"},
		{"none", RawItem{Content: "<p>text</p>"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractEntryImage(tt.item); got != tt.want {
				t.Errorf("ExtractEntryImage() = %q, want %q", got, tt.want)
			}
		})
	}
}

const articlePage = `<html><head>
<meta name="twitter:image" content="/img/lead.png">
</head><body>
<header><p>This header paragraph is long enough to count but must be removed first.</p></header>
<article>
<p>short</p>
<p>The first real paragraph of the article has more than fifty characters in it.</p>
<p>The second real paragraph of the article also has more than fifty characters.</p>
<script>var x = "ignored";</script>
</article>
</body></html>`

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	text, img, err := NewScraper(srv.Client()).Scrape(context.Background(), srv.URL+"/post/1")
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	want := "The first real paragraph of the article has more than fifty characters in it. " +
		"The second real paragraph of the article also has more than fifty characters."
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
	if img != srv.URL+"/img/lead.png" {
		t.Errorf("image = %q, want resolved meta image", img)
	}
}

func TestScrapeNon200(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	text, img, err := NewScraper(srv.Client()).Scrape(context.Background(), srv.URL)
	if err == nil || text != "" || img != "" {
		t.Errorf("expected error and empty results, got %q %q %v", text, img, err)
	}
}

func TestMetaImagePrefersOpenGraph(t *testing.T) {
	page := `<html><head>
<meta name="twitter:image" content="https://x.test/tw.png">
<meta property="og:image" content="https://x.test/og.png">
</head><body></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	_, img, err := NewScraper(srv.Client()).Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if img != "https://x.test/og.png" {
		t.Errorf("image = %q, want og:image", img)
	}
}

func solidImage(w, h int, fill color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	return img
}

func TestValidColor(t *testing.T) {
	if ValidColor(10, 10, 10) || ValidColor(240, 250, 231) {
		t.Error("near-black and near-white should be rejected")
	}
	if !ValidColor(10, 10, 200) || !ValidColor(240, 240, 100) {
		t.Error("colors with any mid channel should be accepted")
	}
}

func TestDominantColor(t *testing.T) {
	img := solidImage(100, 100, color.RGBA{255, 255, 255, 255})
	// Three quarters red, the rest stays white background.
	for y := 0; y < 100; y++ {
		for x := 0; x < 75; x++ {
			img.Set(x, y, color.RGBA{200, 20, 20, 255})
		}
	}
	c, err := DominantColor(img)
	if err != nil {
		t.Fatalf("DominantColor failed: %v", err)
	}
	if *c != 0xc81414 {
		t.Errorf("color = %06x, want c81414", *c)
	}

	if _, err := DominantColor(solidImage(20, 20, color.RGBA{0, 0, 0, 255})); err == nil {
		t.Error("an all-black image has no usable color")
	}
}

func TestColorExtractorDominant(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(10, 10, color.RGBA{20, 120, 220, 255})); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page" {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	ex := NewColorExtractor(srv.Client())
	c, err := ex.Dominant(context.Background(), srv.URL+"/img.png")
	if err != nil {
		t.Fatalf("Dominant failed: %v", err)
	}
	if *c != 0x1478dc {
		t.Errorf("color = %06x, want 1478dc", *c)
	}

	if _, err := ex.Dominant(context.Background(), srv.URL+"/page"); err == nil {
		t.Error("non-image content type should fail")
	}
}

func TestProcessorBuild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	p := NewProcessor(srv.Client(), nil)
	id := int64(5)

	t.Run("feed fields win", func(t *testing.T) {
		long := strings.Repeat("word ", 20)
		e := p.Build(context.Background(), RawItem{
			NativeID: &id,
			Source:   "miniflux",
			URL:      srv.URL + "/a",
			Title:    "Title",
			Content:  "<p>" + long + "</p>",
		})
		if e.EntryID != "miniflux:5" || e.SourceEntryID != "5" {
			t.Errorf("ids = %q / %q", e.EntryID, e.SourceEntryID)
		}
		if e.Summary != strings.TrimSpace(long) {
			t.Errorf("summary = %q", e.Summary)
		}
		if e.ImageURL != "" {
			t.Errorf("no image expected without scraping, got %q", e.ImageURL)
		}
	})

	t.Run("short description scrapes", func(t *testing.T) {
		e := p.Build(context.Background(), RawItem{URL: srv.URL + "/b", Summary: "tiny"})
		if !strings.HasPrefix(e.Summary, "The first real paragraph") {
			t.Errorf("summary not scraped: %q", e.Summary)
		}
		if e.ImageURL != srv.URL+"/img/lead.png" {
			t.Errorf("image = %q", e.ImageURL)
		}
		if e.Title != DefaultTitle {
			t.Errorf("title = %q", e.Title)
		}
		if e.Color != nil {
			t.Errorf("html served as image should yield no color, got %v", *e.Color)
		}
	})
}
