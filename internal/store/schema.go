package store

import "strings"

const schema = `
CREATE TABLE IF NOT EXISTS things (
    id                     INTEGER PRIMARY KEY,
    name                   TEXT,
    thumbnail              TEXT,
    public_url             TEXT,
    added                  TEXT,
    modified               TEXT,
    is_wip                 INTEGER,
    is_featured            INTEGER,
    is_nsfw                INTEGER,
    like_count             INTEGER,
    collect_count          INTEGER,
    comment_count          INTEGER,
    description            TEXT,
    instructions           TEXT,
    details                TEXT,
    license                TEXT,
    allows_derivatives     INTEGER,
    file_count             INTEGER,
    print_history_count    INTEGER,
    download_count         INTEGER,
    view_count             INTEGER,
    remix_count            INTEGER,
    make_count             INTEGER,
    root_comment_count     INTEGER,
    is_derivative          INTEGER,
    can_comment            INTEGER,
    added_images_count     INTEGER,
    likes_count            INTEGER,
    likes_ids              TEXT,
    average_download_count INTEGER,
    tags                   TEXT,
    ancestor_ids           TEXT,
    creator_id             INTEGER,
    accessed               TEXT,
    categories             TEXT,

    FOREIGN KEY(creator_id) REFERENCES creators (id)
);

CREATE TABLE IF NOT EXISTS creators (
    id                 INTEGER PRIMARY KEY,
    name               TEXT,
    first_name         TEXT,
    last_name          TEXT,
    public_url         TEXT,
    count_of_followers INTEGER,
    count_of_following INTEGER,
    count_of_designs   INTEGER,
    accepts_tips       INTEGER,
    location           TEXT
);

CREATE TABLE IF NOT EXISTS tags (
    name         TEXT PRIMARY KEY,
    tag          TEXT,
    absolute_url TEXT,
    count        INTEGER
);

CREATE TABLE IF NOT EXISTS categories (
    id    INTEGER PRIMARY KEY,
    name  TEXT,
    count INTEGER,
    slug  TEXT
);
`

// Column lists are fixed at compile time; insert statements are derived
// from them rather than from live table metadata.
var (
	thingColumns = []string{
		"id", "name", "thumbnail", "public_url", "added", "modified",
		"is_wip", "is_featured", "is_nsfw",
		"like_count", "collect_count", "comment_count",
		"description", "instructions", "details", "license",
		"allows_derivatives", "file_count", "print_history_count",
		"download_count", "view_count", "remix_count", "make_count",
		"root_comment_count", "is_derivative", "can_comment",
		"added_images_count", "likes_count", "likes_ids",
		"average_download_count", "tags", "ancestor_ids",
		"creator_id", "accessed", "categories",
	}
	creatorColumns = []string{
		"id", "name", "first_name", "last_name", "public_url",
		"count_of_followers", "count_of_following", "count_of_designs",
		"accepts_tips", "location",
	}
	tagColumns      = []string{"name", "tag", "absolute_url", "count"}
	categoryColumns = []string{"id", "name", "count", "slug"}
)

var (
	insertThingStmt    = insertIgnoreStmt("things", thingColumns)
	insertCreatorStmt  = insertIgnoreStmt("creators", creatorColumns)
	insertTagStmt      = insertIgnoreStmt("tags", tagColumns)
	insertCategoryStmt = insertIgnoreStmt("categories", categoryColumns)
)

// insertIgnoreStmt builds a named INSERT OR IGNORE statement for the
// given table and column list.
func insertIgnoreStmt(table string, columns []string) string {
	named := make([]string, len(columns))
	for i, c := range columns {
		named[i] = ":" + c
	}
	return "INSERT OR IGNORE INTO " + table +
		" (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(named, ", ") + ")"
}
