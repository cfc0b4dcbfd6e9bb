package videos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PostgresCatalog keeps videos in the `videos` table created by the db
// package migrations. The *sql.DB is expected to use the pgx driver.
type PostgresCatalog struct {
	db *sql.DB
}

var _ Catalog = (*PostgresCatalog)(nil)

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (c *PostgresCatalog) Insert(ctx context.Context, v Video) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO videos (id, title, description, video_url, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.Title, v.Description, v.VideoURL, v.ObjectKey, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("videos: insert: %w", err)
	}
	return nil
}

func (c *PostgresCatalog) List(ctx context.Context, skip, limit int) ([]Video, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, description, video_url, object_key, created_at
		FROM videos
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2
	`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("videos: list: %w", err)
	}
	defer rows.Close()

	list := []Video{}
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.Title, &v.Description, &v.VideoURL, &v.ObjectKey, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("videos: scan: %w", err)
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("videos: list: %w", err)
	}
	return list, nil
}

func (c *PostgresCatalog) Get(ctx context.Context, id uuid.UUID) (Video, error) {
	var v Video
	err := c.db.QueryRowContext(ctx, `
		SELECT id, title, description, video_url, object_key, created_at
		FROM videos
		WHERE id = $1
	`, id).Scan(&v.ID, &v.Title, &v.Description, &v.VideoURL, &v.ObjectKey, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, ErrNotFound
	}
	if err != nil {
		return Video{}, fmt.Errorf("videos: get: %w", err)
	}
	return v, nil
}

func (c *PostgresCatalog) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM videos WHERE id = $1`, id)
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

func (c *PostgresCatalog) ReferencesObject(ctx context.Context, key string) (bool, error) {
	var found bool
	err := c.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE object_key = $1)`, key).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("videos: lookup object: %w", err)
	}
	return found, nil
}

func (c *PostgresCatalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
