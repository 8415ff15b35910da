package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/matthewjhunter/courier"
	"github.com/matthewjhunter/courier/internal/feeds"
	"github.com/matthewjhunter/courier/internal/jobs"
	"github.com/matthewjhunter/courier/internal/storage"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// OutputCycleResult outputs the result of one poll cycle
func (f *Formatter) OutputCycleResult(result feeds.CycleResult) error {
	switch f.format {
	case FormatJSON:
		type cycle struct {
			feeds.CycleResult
			MarkReadError string `json:"mark_read_error,omitempty"`
		}
		c := cycle{CycleResult: result}
		if result.MarkRead != nil {
			c.MarkReadError = result.MarkRead.Error()
		}
		return json.NewEncoder(f.out).Encode(c)
	case FormatText:
		fmt.Fprintf(f.out, "fetched=%d\n", result.Fetched)
		fmt.Fprintf(f.out, "posted=%d\n", result.Posted)
		fmt.Fprintf(f.out, "duplicates=%d\n", result.Duplicates)
		fmt.Fprintf(f.out, "skipped=%d\n", result.Skipped)
		fmt.Fprintf(f.out, "failed=%d\n", result.Failed)
		return nil
	case FormatHuman:
		if result.Fetched == 0 {
			fmt.Fprintln(f.out, "No unread entries")
			return nil
		}
		fmt.Fprintf(f.out, "Fetched %d unread entries, posted %d\n", result.Fetched, result.Posted)
		if result.Duplicates > 0 {
			fmt.Fprintf(f.out, "Skipped %d already posted\n", result.Duplicates)
		}
		if result.Failed > 0 {
			fmt.Fprintf(f.out, "⚠️  %d entries failed and will be retried\n", result.Failed)
		}
		if result.MarkRead != nil {
			fmt.Fprintf(f.out, "⚠️  Could not mark entries read: %v\n", result.MarkRead)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputBookmarks outputs a user's bookmarks
func (f *Formatter) OutputBookmarks(bookmarks []storage.BookmarkedEntry) error {
	switch f.format {
	case FormatJSON:
		if bookmarks == nil {
			bookmarks = []storage.BookmarkedEntry{}
		}
		return json.NewEncoder(f.out).Encode(bookmarks)
	case FormatText:
		for _, b := range bookmarks {
			fmt.Fprintf(f.out, "id=%s\ttitle=%s\turl=%s\tadded=%s\n",
				b.EntryID, b.Title, b.URL, b.AddedAt.Format(time.RFC3339))
		}
		return nil
	case FormatHuman:
		if len(bookmarks) == 0 {
			fmt.Fprintln(f.out, "No bookmarks")
			return nil
		}
		fmt.Fprintf(f.out, "Bookmarks (%d):\n\n", len(bookmarks))
		for _, b := range bookmarks {
			fmt.Fprintf(f.out, "Title: %s\n", orDefault(b.Title, "Untitled"))
			if b.URL != "" {
				fmt.Fprintf(f.out, "URL: %s\n", b.URL)
			}
			fmt.Fprintf(f.out, "ID: %s\n", b.EntryID)
			if b.Note != "" {
				fmt.Fprintf(f.out, "Note: %s\n", b.Note)
			}
			fmt.Fprintf(f.out, "Saved: %s\n", b.AddedAt.Local().Format("2006-01-02 15:04"))
			fmt.Fprintln(f.out, "---")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputWishlist outputs a wishlist
func (f *Formatter) OutputWishlist(owner string, items []storage.WishlistItem) error {
	switch f.format {
	case FormatJSON:
		if items == nil {
			items = []storage.WishlistItem{}
		}
		return json.NewEncoder(f.out).Encode(items)
	case FormatText:
		for _, it := range items {
			fmt.Fprintf(f.out, "id=%d\tname=%s\trelease=%s\tplatforms=%s\n",
				it.GameID, it.Name, formatUnix(it.FirstReleaseDate), it.Platforms)
		}
		return nil
	case FormatHuman:
		if len(items) == 0 {
			fmt.Fprintf(f.out, "%s's wishlist is empty\n", owner)
			return nil
		}
		fmt.Fprintf(f.out, "🎮 %s's wishlist (%d games)\n", owner, len(items))
		fmt.Fprintln(f.out, strings.Repeat("=", 70))
		for _, it := range items {
			fmt.Fprintf(f.out, "  • %s [%d]\n", it.Name, it.GameID)
			fmt.Fprintf(f.out, "    Release: %s\n", orDefault(formatUnix(it.FirstReleaseDate), "TBA"))
			if it.Platforms != "" {
				fmt.Fprintf(f.out, "    Platforms: %s\n", it.Platforms)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputGames outputs game search results
func (f *Formatter) OutputGames(games []storage.Game) error {
	switch f.format {
	case FormatJSON:
		if games == nil {
			games = []storage.Game{}
		}
		return json.NewEncoder(f.out).Encode(games)
	case FormatText:
		for _, g := range games {
			fmt.Fprintf(f.out, "id=%d\tname=%s\trelease=%s\tplatforms=%s\n",
				g.ID, g.Name, formatUnix(g.ReleaseDate()), g.PlatformLabel())
		}
		return nil
	case FormatHuman:
		if len(games) == 0 {
			fmt.Fprintln(f.out, "No games found")
			return nil
		}
		for _, g := range games {
			fmt.Fprintf(f.out, "  • %s [%d] %s\n", g.Name, g.ID, orDefault(formatUnix(g.ReleaseDate()), "TBA"))
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputFeeds outputs RSS subscriptions
func (f *Formatter) OutputFeeds(list []storage.Feed) error {
	switch f.format {
	case FormatJSON:
		if list == nil {
			list = []storage.Feed{}
		}
		return json.NewEncoder(f.out).Encode(list)
	case FormatText:
		for _, fd := range list {
			fmt.Fprintf(f.out, "id=%d\turl=%s\ttitle=%s\tlast_fetched=%s\terror=%s\n",
				fd.ID, fd.URL, fd.Title, formatTime(fd.LastFetched), fd.LastError)
		}
		return nil
	case FormatHuman:
		if len(list) == 0 {
			fmt.Fprintln(f.out, "No feeds subscribed")
			return nil
		}
		for _, fd := range list {
			fmt.Fprintf(f.out, "  [%d] %s\n      %s\n", fd.ID, orDefault(fd.Title, "(untitled)"), fd.URL)
			if fd.LastError != "" {
				fmt.Fprintf(f.out, "      ⚠️  %s\n", fd.LastError)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputRefreshSummary outputs the result of a wishlist refresh
func (f *Formatter) OutputRefreshSummary(sum storage.RefreshSummary) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(sum)
	case FormatText:
		fmt.Fprintf(f.out, "updated=%d\nunchanged=%d\nmissing=%d\nfailed=%d\n",
			sum.Updated, sum.Unchanged, sum.Missing, sum.Failed)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Refreshed release dates: %d updated, %d unchanged, %d missing",
			sum.Updated, sum.Unchanged, sum.Missing)
		if sum.Failed > 0 {
			fmt.Fprintf(f.out, ", %d failed", sum.Failed)
		}
		fmt.Fprintln(f.out)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputRefreshStatus outputs the state of the refresh job
func (f *Formatter) OutputRefreshStatus(st jobs.Status) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(st)
	case FormatText:
		fmt.Fprintf(f.out, "running=%t\tloop_active=%t\tlast_run=%s",
			st.Running, st.LoopActive, formatTime(st.LastRun))
		if st.LastSummary != nil {
			fmt.Fprintf(f.out, "\t%s", st.LastSummary)
		}
		fmt.Fprintln(f.out)
		return nil
	case FormatHuman:
		if st.LastRun == nil {
			fmt.Fprintln(f.out, "No refresh has run yet")
		} else {
			fmt.Fprintf(f.out, "Last refresh: %s\n", st.LastRun.Local().Format("2006-01-02 15:04"))
			if st.LastSummary != nil {
				fmt.Fprintf(f.out, "Result: %s\n", st.LastSummary)
			}
		}
		if st.LastError != "" {
			fmt.Fprintf(f.out, "⚠️  Last error: %s\n", st.LastError)
		}
		if st.Running {
			fmt.Fprintln(f.out, "A refresh is running now")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputCalendar outputs a month of wishlist releases
func (f *Formatter) OutputCalendar(cal *courier.Calendar) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(cal)
	case FormatText:
		for _, d := range cal.Days {
			for _, g := range d.Games {
				fmt.Fprintf(f.out, "date=%04d-%02d-%02d\tid=%d\tname=%s\n",
					cal.Year, int(cal.Month), d.Day, g.GameID, g.Name)
			}
		}
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "📅 %s %d\n", cal.Month, cal.Year)
		fmt.Fprintln(f.out, strings.Repeat("=", 70))
		if cal.Total == 0 {
			fmt.Fprintln(f.out, "No wishlist releases this month")
			return nil
		}
		for _, d := range cal.Days {
			names := make([]string, len(d.Games))
			for i, g := range d.Games {
				names[i] = g.Name
			}
			fmt.Fprintf(f.out, "%2d  %s\n", d.Day, strings.Join(names, ", "))
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputReleaseUpdate outputs a manual release date change
func (f *Formatter) OutputReleaseUpdate(up *courier.ReleaseUpdate) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(up)
	case FormatText:
		fmt.Fprintf(f.out, "id=%d\tprevious=%s\tdate=%s\n",
			up.Game.GameID, formatUnix(up.Previous), formatUnix(&up.Date))
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Release date for %s set to %s", up.Game.Name, formatUnix(&up.Date))
		if up.Previous != nil {
			fmt.Fprintf(f.out, " (was %s)", formatUnix(up.Previous))
		}
		fmt.Fprintln(f.out)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Status outputs a one-line confirmation
func (f *Formatter) Status(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if f.format == FormatJSON {
		json.NewEncoder(f.out).Encode(map[string]string{"status": msg})
		return
	}
	fmt.Fprintln(f.out, msg)
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

// formatTime formats a time pointer for output
func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// formatUnix formats an epoch-seconds release date as a calendar day
func formatUnix(ts *int64) string {
	if ts == nil {
		return ""
	}
	return time.Unix(*ts, 0).UTC().Format("2006-01-02")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
