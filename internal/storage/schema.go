package storage

// NewsSchema initializes news.db: posted entries, bookmarks, RSS
// subscriptions and the local read marks used by the RSS source.
const NewsSchema = `
CREATE TABLE IF NOT EXISTS news_entries (
    entry_id TEXT PRIMARY KEY,
    source TEXT,
    source_entry_id TEXT,
    url TEXT UNIQUE,
    title TEXT NOT NULL,
    summary TEXT,
    content TEXT,
    image_url TEXT,
    feed_title TEXT,
    color INTEGER,
    published_at INTEGER,
    posted_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_news_entries_posted ON news_entries(posted_at DESC);

CREATE TABLE IF NOT EXISTS bookmarks (
    user_id TEXT NOT NULL,
    entry_id TEXT NOT NULL,
    note TEXT,
    added_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, entry_id),
    FOREIGN KEY (entry_id) REFERENCES news_entries(entry_id) ON DELETE RESTRICT
);

CREATE INDEX IF NOT EXISTS idx_bookmarks_entry ON bookmarks(entry_id);

CREATE TABLE IF NOT EXISTS feeds (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    last_fetched INTEGER,
    last_error TEXT,
    etag TEXT,
    last_modified TEXT,
    enabled BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS feed_read_marks (
    item_key TEXT PRIMARY KEY,
    read_at INTEGER NOT NULL
);
`

// WishlistSchema initializes wishlist.db.
const WishlistSchema = `
CREATE TABLE IF NOT EXISTS wishlists (
    user_id TEXT NOT NULL,
    game_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    slug TEXT,
    cover_url TEXT,
    first_release_date INTEGER,
    platforms TEXT,
    added_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, game_id)
);

CREATE INDEX IF NOT EXISTS idx_wishlists_game ON wishlists(game_id);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id TEXT PRIMARY KEY,
    public INTEGER NOT NULL DEFAULT 0
);
`
