package playback

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/lorelei/internal/domain/song"
)

// Errors
var (
	ErrFetchFailed  = errors.New("fetch failed")
	ErrEditFailed   = errors.New("edit failed")
	ErrDeleteFailed = errors.New("delete failed")
)

// CatalogStore is the persistence side of the catalog.
type CatalogStore interface {
	// FetchAll returns every song known to the backend.
	FetchAll(ctx context.Context) ([]song.Song, error)
	// Update applies patch to the song and returns the stored result.
	Update(ctx context.Context, id string, patch song.Patch) (song.Song, error)
	// Remove deletes the song.
	Remove(ctx context.Context, id string) error
}
