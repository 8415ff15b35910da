package igdb

import (
	"encoding/json"
	"strings"

	"github.com/matthewjhunter/courier/internal/storage"
)

// RawGame is a game as returned by the API. Cover and platforms arrive in
// several shapes depending on the query's field expansion.
type RawGame struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Slug             string          `json:"slug"`
	FirstReleaseDate *int64          `json:"first_release_date"`
	CoverURL         string          `json:"cover_url"`
	Cover            json.RawMessage `json:"cover"`
	Platforms        json.RawMessage `json:"platforms"`
	ReleaseDates     []struct {
		Date *int64 `json:"date"`
	} `json:"release_dates"`
}

// Normalize flattens the payload into a storage.Game.
func (g RawGame) Normalize() storage.Game {
	out := storage.Game{
		ID:               g.ID,
		Name:             g.Name,
		Slug:             g.Slug,
		FirstReleaseDate: g.FirstReleaseDate,
		CoverURL:         NormalizeCoverURL(g.coverURL()),
		Platforms:        g.platformNames(),
	}
	for _, rd := range g.ReleaseDates {
		if rd.Date != nil && *rd.Date > 0 {
			out.ReleaseDates = append(out.ReleaseDates, *rd.Date)
		}
	}
	return out
}

func (g RawGame) coverURL() string {
	if g.CoverURL != "" {
		return g.CoverURL
	}
	if len(g.Cover) == 0 {
		return ""
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(g.Cover, &obj); err == nil && obj.URL != "" {
		return obj.URL
	}
	var s string
	if err := json.Unmarshal(g.Cover, &s); err == nil {
		return s
	}
	return ""
}

func (g RawGame) platformNames() []string {
	if len(g.Platforms) == 0 {
		return nil
	}
	var objs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(g.Platforms, &objs); err == nil {
		var names []string
		for _, o := range objs {
			if o.Name != "" {
				names = append(names, o.Name)
			}
		}
		if len(names) > 0 {
			return names
		}
	}
	var strs []string
	if err := json.Unmarshal(g.Platforms, &strs); err == nil {
		return strs
	}
	var s string
	if err := json.Unmarshal(g.Platforms, &s); err == nil && s != "" {
		return strings.Split(s, ", ")
	}
	return nil
}

// NormalizeCoverURL makes a cover URL absolute and asks for the large
// cover rendition instead of the thumbnail.
func NormalizeCoverURL(u string) string {
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return strings.Replace(u, "t_thumb", "t_cover_big", 1)
}
