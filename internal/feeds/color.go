package feeds

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
)

const (
	maxImageBytes = 5 << 20
	sampleSize    = 50
)

var errNoColor = errors.New("no usable color in image")

// ColorExtractor picks an accent color from an image.
type ColorExtractor struct {
	client *http.Client
}

func NewColorExtractor(client *http.Client) *ColorExtractor {
	return &ColorExtractor{client: client}
}

// Dominant downloads imageURL and returns its most common non-extreme
// color packed as 0xRRGGBB.
func (c *ColorExtractor) Dominant(ctx context.Context, imageURL string) (*int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: "fetch image", Status: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("not an image: %q", ct)
	}
	if resp.ContentLength > maxImageBytes {
		return nil, fmt.Errorf("image too large: %d bytes", resp.ContentLength)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return DominantColor(img)
}

// ValidColor rejects near-black and near-white pixels, which are usually
// background.
func ValidColor(r, g, b uint8) bool {
	if r < 30 && g < 30 && b < 30 {
		return false
	}
	if r > 230 && g > 230 && b > 230 {
		return false
	}
	return true
}

// DominantColor samples img on a 50x50 grid and returns the most frequent
// valid color. Ties go to the color seen first.
func DominantColor(img image.Image) (*int64, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errNoColor
	}

	counts := make(map[int64]int)
	var order []int64
	for sy := 0; sy < sampleSize; sy++ {
		y := bounds.Min.Y + sy*bounds.Dy()/sampleSize
		for sx := 0; sx < sampleSize; sx++ {
			x := bounds.Min.X + sx*bounds.Dx()/sampleSize
			r32, g32, b32, _ := img.At(x, y).RGBA()
			r, g, b := uint8(r32>>8), uint8(g32>>8), uint8(b32>>8)
			if !ValidColor(r, g, b) {
				continue
			}
			key := int64(r)<<16 | int64(g)<<8 | int64(b)
			if counts[key] == 0 {
				order = append(order, key)
			}
			counts[key]++
		}
	}
	if len(order) == 0 {
		return nil, errNoColor
	}

	best := order[0]
	for _, k := range order[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return &best, nil
}
