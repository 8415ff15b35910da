package courier

import (
	"strconv"
	"strings"
	"time"

	"github.com/matthewjhunter/courier/internal/storage"
)

// releaseLayouts are the manual date formats users may type, tried in
// order. Day-first layouts come after year-first ones.
var releaseLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseReleaseDate parses a user-supplied release date into unix seconds.
// Plain integers are taken as unix timestamps; dates without a zone are
// midnight UTC.
func ParseReleaseDate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidDate
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, ErrInvalidDate
		}
		return n, nil
	}
	for _, layout := range releaseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, ErrInvalidDate
}

// matchGame picks the wishlist item query refers to: an exact game id or
// slug first, then a unique case-insensitive name match, then a unique
// name substring.
func matchGame(items []storage.WishlistItem, query string) (storage.WishlistItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return storage.WishlistItem{}, ErrMissingGameID
	}
	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		for _, it := range items {
			if it.GameID == id {
				return it, nil
			}
		}
	}
	lower := strings.ToLower(query)
	for _, it := range items {
		if it.Slug != "" && strings.EqualFold(it.Slug, query) {
			return it, nil
		}
	}

	var exact, partial []storage.WishlistItem
	for _, it := range items {
		name := strings.ToLower(it.Name)
		switch {
		case name == lower:
			exact = append(exact, it)
		case strings.Contains(name, lower):
			partial = append(partial, it)
		}
	}
	for _, matches := range [][]storage.WishlistItem{exact, partial} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			return storage.WishlistItem{}, &AmbiguousGameError{Query: query, Candidates: matches}
		}
	}
	return storage.WishlistItem{}, ErrNotInWishlist
}

func buildCalendar(userID string, year int, month time.Month, loc *time.Location, items []storage.WishlistItem) *Calendar {
	cal := &Calendar{UserID: userID, Year: year, Month: month, Days: []CalendarDay{}}
	byDay := make(map[int]int)
	for _, it := range items {
		if it.FirstReleaseDate == nil {
			continue
		}
		day := time.Unix(*it.FirstReleaseDate, 0).In(loc).Day()
		idx, ok := byDay[day]
		if !ok {
			idx = len(cal.Days)
			byDay[day] = idx
			cal.Days = append(cal.Days, CalendarDay{Day: day})
		}
		cal.Days[idx].Games = append(cal.Days[idx].Games, it)
		cal.Total++
	}
	return cal
}
