package videos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// sqliteTime is a fixed-width UTC layout so that text ordering matches
// time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteCatalog keeps videos in a SQLite file. It is used for local runs
// without PostgreSQL and by tests (path ":memory:").
type SQLiteCatalog struct {
	db *sql.DB
}

var _ Catalog = (*SQLiteCatalog)(nil)

// OpenSQLite opens (or creates) the catalog at path.
func OpenSQLite(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// every new connection to ":memory:" is a fresh database
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL,
		video_url   TEXT NOT NULL,
		object_key  TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS videos_created_at_idx ON videos (created_at);
	CREATE INDEX IF NOT EXISTS videos_object_key_idx ON videos (object_key);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

func (c *SQLiteCatalog) Insert(ctx context.Context, v Video) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO videos (id, title, description, video_url, object_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.ID.String(), v.Title, v.Description, v.VideoURL, v.ObjectKey, v.CreatedAt.UTC().Format(sqliteTime))
	if err != nil {
		return fmt.Errorf("videos: insert: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) List(ctx context.Context, skip, limit int) ([]Video, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, description, video_url, object_key, created_at
		FROM videos
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("videos: list: %w", err)
	}
	defer rows.Close()

	list := []Video{}
	for rows.Next() {
		v, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("videos: list: %w", err)
	}
	return list, nil
}

func (c *SQLiteCatalog) Get(ctx context.Context, id uuid.UUID) (Video, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, title, description, video_url, object_key, created_at
		FROM videos
		WHERE id = ?
	`, id.String())
	v, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, ErrNotFound
	}
	return v, err
}

func (c *SQLiteCatalog) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("videos: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("videos: delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *SQLiteCatalog) ReferencesObject(ctx context.Context, key string) (bool, error) {
	var found bool
	err := c.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE object_key = ?)`, key).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("videos: lookup object: %w", err)
	}
	return found, nil
}

func (c *SQLiteCatalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(s scanner) (Video, error) {
	var (
		v         Video
		id        string
		createdAt string
	)
	if err := s.Scan(&id, &v.Title, &v.Description, &v.VideoURL, &v.ObjectKey, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Video{}, err
		}
		return Video{}, fmt.Errorf("videos: scan: %w", err)
	}
	var err error
	if v.ID, err = uuid.Parse(id); err != nil {
		return Video{}, fmt.Errorf("videos: bad id %q: %w", id, err)
	}
	if v.CreatedAt, err = time.Parse(sqliteTime, createdAt); err != nil {
		return Video{}, fmt.Errorf("videos: bad created_at %q: %w", createdAt, err)
	}
	return v, nil
}
