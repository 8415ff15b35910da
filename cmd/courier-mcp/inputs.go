package main

// Input types for MCP tools. The SDK infers JSON Schema from these structs.
// Pointer types are optional; value types are required.

type userOnlyInput struct {
	User *string `json:"user,omitempty" jsonschema:"User ID to act as. If omitted uses the default user."`
}

type recentEntriesInput struct {
	Limit *int `json:"limit,omitempty" jsonschema:"Maximum number of entries to return (default 20)"`
}

type bookmarkInput struct {
	EntryID *string `json:"entry_id,omitempty" jsonschema:"Canonical entry ID such as miniflux:42 or url:https://..."`
	URL     *string `json:"url,omitempty"      jsonschema:"Entry URL, used when the entry ID is unknown"`
	Title   *string `json:"title,omitempty"    jsonschema:"Entry title, stored when the entry has not been posted"`
	User    *string `json:"user,omitempty"     jsonschema:"User ID to act as. If omitted uses the default user."`
}

type bookmarkToggleInput struct {
	EntryID  *string `json:"entry_id,omitempty"  jsonschema:"Canonical entry ID such as miniflux:42 or url:https://..."`
	URL      *string `json:"url,omitempty"       jsonschema:"Entry URL, used when the entry ID is unknown"`
	ActionID *string `json:"action_id,omitempty" jsonschema:"Bookmark button id from a posted entry, such as bookmark:miniflux:42"`
	User     *string `json:"user,omitempty"      jsonschema:"User ID to act as. If omitted uses the default user."`
}

type entryIDInput struct {
	EntryID string  `json:"entry_id"       jsonschema:"The bookmarked entry ID"`
	User    *string `json:"user,omitempty" jsonschema:"User ID to act as. If omitted uses the default user."`
}

type bookmarkNoteInput struct {
	EntryID string  `json:"entry_id"       jsonschema:"The bookmarked entry ID"`
	Note    string  `json:"note"           jsonschema:"Note text. Empty clears the note."`
	User    *string `json:"user,omitempty" jsonschema:"User ID to act as. If omitted uses the default user."`
}

type wishlistShowInput struct {
	Owner *string `json:"owner,omitempty" jsonschema:"Whose wishlist to show. Other users' wishlists are visible only when public."`
	User  *string `json:"user,omitempty"  jsonschema:"User ID to act as. If omitted uses the default user."`
}

type gameIDInput struct {
	GameID int64   `json:"game_id"        jsonschema:"The IGDB game ID"`
	User   *string `json:"user,omitempty" jsonschema:"User ID to act as. If omitted uses the default user."`
}

type visibilityInput struct {
	Public bool    `json:"public"         jsonschema:"true to make the wishlist visible to everyone"`
	User   *string `json:"user,omitempty" jsonschema:"User ID to act as. If omitted uses the default user."`
}

type gameSearchInput struct {
	Query string `json:"query"           jsonschema:"Game name to search for"`
	Limit *int   `json:"limit,omitempty" jsonschema:"Maximum results (default 10)"`
}

type upcomingInput struct {
	Platform *int64 `json:"platform,omitempty" jsonschema:"IGDB platform ID to filter by"`
	Limit    *int   `json:"limit,omitempty"    jsonschema:"Maximum results (default 10)"`
}

type releaseDateInput struct {
	Game string  `json:"game"           jsonschema:"IGDB ID, slug, or part of the name of a game on the wishlist"`
	Date string  `json:"date"           jsonschema:"Release date as YYYY-MM-DD, DD/MM/YYYY, RFC 3339, or unix seconds"`
	User *string `json:"user,omitempty" jsonschema:"User ID to act as. If omitted uses the default user."`
}

type calendarInput struct {
	Year  int     `json:"year"           jsonschema:"Calendar year"`
	Month int     `json:"month"          jsonschema:"Month 1-12"`
	User  *string `json:"user,omitempty" jsonschema:"User ID to act as. If omitted uses the default user."`
}

type emptyInput struct{}
