// Package videos is the metadata catalog for uploaded videos. The video
// bytes live in object storage; the catalog keeps title, description and
// the public URL, and lists entries newest first.
package videos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no catalog row has the requested id.
var ErrNotFound = errors.New("videos: not found")

// Video is one catalog entry. The JSON layout keeps the `_id` key that
// existing clients read.
type Video struct {
	ID          uuid.UUID `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoURL    string    `json:"video_url"`
	ObjectKey   string    `json:"object_key"`
	CreatedAt   time.Time `json:"created_at"`
}

// Catalog stores video metadata.
type Catalog interface {
	Insert(ctx context.Context, v Video) error
	// List returns at most limit entries, newest first, after skipping skip.
	List(ctx context.Context, skip, limit int) ([]Video, error)
	Get(ctx context.Context, id uuid.UUID) (Video, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ReferencesObject reports whether any entry points at the object key.
	ReferencesObject(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// New fills in the id and creation time for a video about to be inserted.
func New(title, description, videoURL, objectKey string) Video {
	return Video{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		VideoURL:    videoURL,
		ObjectKey:   objectKey,
		CreatedAt:   time.Now().UTC(),
	}
}
