// Package library manages the song catalog: records plus their audio files.
package library

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lorelei/internal/domain/song"
	"github.com/osa030/lorelei/internal/infra/blob"
	"github.com/osa030/lorelei/internal/infra/store"
)

// UnknownArtist is used when neither the request, the tags nor the file name name an artist.
const UnknownArtist = "Unknown Artist"

var (
	// ErrNotFound is returned for unknown song IDs.
	ErrNotFound = store.ErrNotFound
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// Repository persists song records.
type Repository interface {
	Create(ctx context.Context, s song.Song) (song.Song, error)
	List(ctx context.Context) ([]song.Song, error)
	Search(ctx context.Context, q string) ([]song.Song, error)
	Get(ctx context.Context, id string) (song.Song, error)
	Update(ctx context.Context, id string, patch song.Patch, audioURL string) (song.Song, error)
	Delete(ctx context.Context, id string) error
}

// NewSong carries the user-supplied fields of an upload. Both may be empty.
type NewSong struct {
	Title  string `validate:"max=200"`
	Artist string `validate:"max=200"`
}

// Upload is an uploaded audio file.
type Upload struct {
	Filename string
	Content  io.ReadSeeker
}

// Service implements catalog operations.
type Service struct {
	repo     Repository
	blobs    blob.Store
	validate *validator.Validate
}

// NewService creates a new catalog service.
func NewService(repo Repository, blobs blob.Store) *Service {
	return &Service{
		repo:     repo,
		blobs:    blobs,
		validate: validator.New(),
	}
}

// Create stores the audio file and records a new song. Missing title or artist
// are taken from the file's tags, then from its name.
func (s *Service) Create(ctx context.Context, in NewSong, up Upload) (song.Song, error) {
	if up.Content == nil {
		return song.Song{}, errors.Wrap(ErrInvalidInput, "audio file is required")
	}
	if err := s.validate.Struct(in); err != nil {
		return song.Song{}, errors.Mark(errors.Wrap(err, "invalid song"), ErrInvalidInput)
	}

	title, artist := strings.TrimSpace(in.Title), strings.TrimSpace(in.Artist)
	if title == "" || artist == "" {
		title, artist = fillFromTags(up, title, artist)
	}
	if title == "" || artist == "" {
		title, artist = fillFromFilename(up.Filename, title, artist)
	}

	if _, err := up.Content.Seek(0, io.SeekStart); err != nil {
		return song.Song{}, errors.Wrap(err, "failed to rewind upload")
	}
	url, err := s.blobs.Put(ctx, up.Filename, up.Content)
	if err != nil {
		return song.Song{}, errors.Wrap(err, "failed to store audio")
	}

	created, err := s.repo.Create(ctx, song.Song{Title: title, Artist: artist, AudioURL: url})
	if err != nil {
		s.discard(ctx, url)
		return song.Song{}, err
	}
	zlog.Info().Msgf("library: created %s (%s)", created.ID, created)
	return created, nil
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]song.Song, error) {
	return s.repo.List(ctx)
}

// Search returns songs whose title or artist contains q, ignoring case.
func (s *Service) Search(ctx context.Context, q string) ([]song.Song, error) {
	return s.repo.Search(ctx, strings.TrimSpace(q))
}

// Update applies patch and, when up is non-nil, replaces the audio file.
// The previous file is removed only after the record points at the new one.
func (s *Service) Update(ctx context.Context, id string, patch song.Patch, up *Upload) (song.Song, error) {
	if err := s.validate.Struct(patch); err != nil {
		return song.Song{}, errors.Mark(errors.Wrap(err, "invalid patch"), ErrInvalidInput)
	}
	if up == nil || up.Content == nil {
		if patch.IsEmpty() {
			return song.Song{}, errors.Wrap(ErrInvalidInput, "nothing to update")
		}
		return s.repo.Update(ctx, id, patch, "")
	}

	old, err := s.repo.Get(ctx, id)
	if err != nil {
		return song.Song{}, err
	}
	url, err := s.blobs.Put(ctx, up.Filename, up.Content)
	if err != nil {
		return song.Song{}, errors.Wrap(err, "failed to store audio")
	}
	updated, err := s.repo.Update(ctx, id, patch, url)
	if err != nil {
		s.discard(ctx, url)
		return song.Song{}, err
	}
	s.discard(ctx, old.AudioURL)
	zlog.Info().Msgf("library: replaced audio of %s", id)
	return updated, nil
}

// Delete removes the audio file, then the record.
func (s *Service) Delete(ctx context.Context, id string) error {
	old, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	s.discard(ctx, old.AudioURL)
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	zlog.Info().Msgf("library: deleted %s", id)
	return nil
}

// discard removes a blob, logging failures. Records are the source of truth,
// so an orphaned file is tolerated.
func (s *Service) discard(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.blobs.Delete(ctx, url); err != nil {
		zlog.Warn().Err(err).Msgf("library: failed to remove %s", url)
	}
}

func fillFromTags(up Upload, title, artist string) (string, string) {
	m, err := tag.ReadFrom(up.Content)
	if err != nil {
		zlog.Debug().Msgf("library: no tags in %s: %v", up.Filename, err)
		return title, artist
	}
	if title == "" {
		title = strings.TrimSpace(m.Title())
	}
	if artist == "" {
		artist = strings.TrimSpace(m.Artist())
	}
	return title, artist
}

// fillFromFilename understands "Artist - Title.ext" and falls back to the bare stem.
func fillFromFilename(filename, title, artist string) (string, string) {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	fileArtist, fileTitle, ok := strings.Cut(stem, " - ")
	if !ok {
		fileArtist, fileTitle = "", stem
	}
	if title == "" {
		title = strings.TrimSpace(fileTitle)
	}
	if artist == "" {
		artist = strings.TrimSpace(fileArtist)
	}
	if title == "" {
		title = "Untitled"
	}
	if artist == "" {
		artist = UnknownArtist
	}
	return title, artist
}
