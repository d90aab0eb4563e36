package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Thing is a normalized design record. Pointer fields persist as SQL
// NULL when the source payload omitted or blanked the value.
type Thing struct {
	ID                   int64   `db:"id"`
	Name                 *string `db:"name"`
	Thumbnail            *string `db:"thumbnail"`
	PublicURL            *string `db:"public_url"`
	Added                *string `db:"added"`
	Modified             *string `db:"modified"`
	IsWIP                *bool   `db:"is_wip"`
	IsFeatured           *bool   `db:"is_featured"`
	IsNSFW               *bool   `db:"is_nsfw"`
	LikeCount            *int64  `db:"like_count"`
	CollectCount         *int64  `db:"collect_count"`
	CommentCount         *int64  `db:"comment_count"`
	Description          *string `db:"description"`
	Instructions         *string `db:"instructions"`
	Details              *string `db:"details"`
	License              *string `db:"license"`
	AllowsDerivatives    *bool   `db:"allows_derivatives"`
	FileCount            *int64  `db:"file_count"`
	PrintHistoryCount    *int64  `db:"print_history_count"`
	DownloadCount        *int64  `db:"download_count"`
	ViewCount            *int64  `db:"view_count"`
	RemixCount           *int64  `db:"remix_count"`
	MakeCount            *int64  `db:"make_count"`
	RootCommentCount     *int64  `db:"root_comment_count"`
	IsDerivative         *bool   `db:"is_derivative"`
	CanComment           *bool   `db:"can_comment"`
	AddedImagesCount     int64   `db:"added_images_count"`
	LikesCount           int64   `db:"likes_count"`
	LikesIDs             *string `db:"likes_ids"`
	AverageDownloadCount int64   `db:"average_download_count"`
	Tags                 *string `db:"tags"`
	AncestorIDs          *string `db:"ancestor_ids"`
	CreatorID            int64   `db:"creator_id"`
	Accessed             string  `db:"accessed"`
	Categories           *string `db:"categories"`
}

// Creator is the uploading account behind one or more things.
type Creator struct {
	ID               int64   `db:"id"`
	Name             *string `db:"name"`
	FirstName        *string `db:"first_name"`
	LastName         *string `db:"last_name"`
	PublicURL        *string `db:"public_url"`
	CountOfFollowers *int64  `db:"count_of_followers"`
	CountOfFollowing *int64  `db:"count_of_following"`
	CountOfDesigns   *int64  `db:"count_of_designs"`
	AcceptsTips      *bool   `db:"accepts_tips"`
	Location         *string `db:"location"`
}

// Tag is a flat tag row keyed by display name.
type Tag struct {
	Name        string  `db:"name"`
	Tag         *string `db:"tag"`
	AbsoluteURL *string `db:"absolute_url"`
	Count       *int64  `db:"count"`
}

// Category is a flat category row keyed by platform id.
type Category struct {
	ID    int64   `db:"id"`
	Name  *string `db:"name"`
	Count *int64  `db:"count"`
	Slug  *string `db:"slug"`
}

// Records is the full set of rows produced for one crawled thing.
type Records struct {
	Creator    Creator
	Thing      Thing
	Tags       []Tag
	Categories []Category
}

// QueryResult is a tabular read-only query result.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// Store is the persistence interface.
type Store interface {
	IngestThing(ctx context.Context, rec *Records) error
	UpsertCreator(ctx context.Context, c *Creator) error
	UpsertThing(ctx context.Context, t *Thing) error
	UpsertTag(ctx context.Context, t *Tag) error
	UpsertCategory(ctx context.Context, c *Category) error
	LastIngestedID(ctx context.Context) (int64, bool, error)
	Counts(ctx context.Context) (map[string]int64, error)
	Query(ctx context.Context, stmt string) (*QueryResult, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// Open ensures the parent directory exists, opens the SQLite database
// and creates all tables if absent. Safe to call against an existing
// database.
func Open(dir, file string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, file)
	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// IngestThing inserts the creator, thing, tag and category rows for one
// crawled thing in a single transaction. Every insert is
// INSERT OR IGNORE: rows already present are left untouched. The
// creator is inserted before the thing so the foreign key always
// resolves within the transaction.
func (s *SQLiteStore) IngestThing(ctx context.Context, rec *Records) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertCreator(ctx, tx, &rec.Creator); err != nil {
		return err
	}
	if err := upsertThing(ctx, tx, &rec.Thing); err != nil {
		return err
	}
	for i := range rec.Tags {
		if err := upsertTag(ctx, tx, &rec.Tags[i]); err != nil {
			return err
		}
	}
	for i := range rec.Categories {
		if err := upsertCategory(ctx, tx, &rec.Categories[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ingest %d: %w", rec.Thing.ID, err)
	}
	return nil
}

// UpsertCreator inserts a creator row iff the id is absent.
func (s *SQLiteStore) UpsertCreator(ctx context.Context, c *Creator) error {
	return upsertCreator(ctx, s.db, c)
}

// UpsertThing inserts a thing row iff the id is absent.
func (s *SQLiteStore) UpsertThing(ctx context.Context, t *Thing) error {
	return upsertThing(ctx, s.db, t)
}

// UpsertTag inserts a tag row iff the name is absent.
func (s *SQLiteStore) UpsertTag(ctx context.Context, t *Tag) error {
	return upsertTag(ctx, s.db, t)
}

// UpsertCategory inserts a category row iff the id is absent.
func (s *SQLiteStore) UpsertCategory(ctx context.Context, c *Category) error {
	return upsertCategory(ctx, s.db, c)
}

func upsertCreator(ctx context.Context, e sqlx.ExtContext, c *Creator) error {
	if _, err := sqlx.NamedExecContext(ctx, e, insertCreatorStmt, c); err != nil {
		return fmt.Errorf("insert creator %d: %w", c.ID, err)
	}
	return nil
}

func upsertThing(ctx context.Context, e sqlx.ExtContext, t *Thing) error {
	if _, err := sqlx.NamedExecContext(ctx, e, insertThingStmt, t); err != nil {
		return fmt.Errorf("insert thing %d: %w", t.ID, err)
	}
	return nil
}

func upsertTag(ctx context.Context, e sqlx.ExtContext, t *Tag) error {
	if _, err := sqlx.NamedExecContext(ctx, e, insertTagStmt, t); err != nil {
		return fmt.Errorf("insert tag %q: %w", t.Name, err)
	}
	return nil
}

func upsertCategory(ctx context.Context, e sqlx.ExtContext, c *Category) error {
	if _, err := sqlx.NamedExecContext(ctx, e, insertCategoryStmt, c); err != nil {
		return fmt.Errorf("insert category %d: %w", c.ID, err)
	}
	return nil
}

// LastIngestedID returns the id of the most recently inserted thing by
// physical insertion order. ok is false when the table is empty.
func (s *SQLiteStore) LastIngestedID(ctx context.Context) (int64, bool, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, "SELECT id FROM things ORDER BY rowid DESC LIMIT 1")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("last ingested id: %w", err)
	}
	return id, true, nil
}

// Counts returns the row count per entity table.
func (s *SQLiteStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 4)
	for _, table := range []string{"things", "creators", "tags", "categories"} {
		var n int64
		if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// Query runs a read-only SELECT statement and returns tabular results.
// Anything other than a SELECT is rejected.
func (s *SQLiteStore) Query(ctx context.Context, stmt string) (*QueryResult, error) {
	trimmed := strings.TrimSpace(stmt)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return nil, fmt.Errorf("query must be a SELECT statement")
	}

	rows, err := s.db.QueryxContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	result := &QueryResult{Columns: cols}
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan query row: %w", err)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query rows: %w", err)
	}
	return result, nil
}
