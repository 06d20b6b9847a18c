// Package store persists catalog songs in SQLite through gorm.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/osa030/lorelei/internal/domain/song"
)

// ErrNotFound is returned when no song has the requested ID.
var ErrNotFound = errors.New("song not found")

// Config represents store configuration.
type Config struct {
	DSN   string // SQLite file path or "file::memory:"
	Debug bool   // Log every SQL statement
}

// songRecord is the persisted shape of a song.
type songRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Title     string `gorm:"not null;index"`
	Artist    string `gorm:"not null;index"`
	AudioURL  string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (songRecord) TableName() string { return "songs" }

func (r songRecord) toSong() song.Song {
	return song.Song{
		ID:        r.ID,
		Title:     r.Title,
		Artist:    r.Artist,
		AudioURL:  r.AudioURL,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Store is a gorm-backed song repository.
type Store struct {
	db *gorm.DB
}

// Open opens the database and migrates the schema.
func Open(cfg Config) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: newLogger(cfg.Debug),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", cfg.DSN)
	}
	if err := db.AutoMigrate(&songRecord{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate schema")
	}
	zlog.Debug().Msgf("store: opened %s", cfg.DSN)
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get connection pool")
	}
	return sqlDB.Close()
}

// Create inserts a song. An empty ID is replaced by a new UUID.
func (s *Store) Create(ctx context.Context, sg song.Song) (song.Song, error) {
	rec := songRecord{
		ID:       sg.ID,
		Title:    sg.Title,
		Artist:   sg.Artist,
		AudioURL: sg.AudioURL,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return song.Song{}, errors.Wrap(err, "failed to create song")
	}
	return rec.toSong(), nil
}

// List returns every song in insertion order.
func (s *Store) List(ctx context.Context) ([]song.Song, error) {
	var recs []songRecord
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list songs")
	}
	return toSongs(recs), nil
}

// Search returns songs whose title or artist contains q, ignoring case.
// An empty query matches everything.
func (s *Store) Search(ctx context.Context, q string) ([]song.Song, error) {
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	var recs []songRecord
	err := s.db.WithContext(ctx).
		Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(artist) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("created_at, id").
		Find(&recs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to search songs")
	}
	return toSongs(recs), nil
}

// Get returns the song with the given ID.
func (s *Store) Get(ctx context.Context, id string) (song.Song, error) {
	rec, err := s.get(s.db.WithContext(ctx), id)
	if err != nil {
		return song.Song{}, err
	}
	return rec.toSong(), nil
}

// Update merges patch into the stored song and, when audioURL is non-empty,
// replaces its audio reference. It returns the updated song.
func (s *Store) Update(ctx context.Context, id string, patch song.Patch, audioURL string) (song.Song, error) {
	var out songRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.get(tx, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			rec.Title = *patch.Title
		}
		if patch.Artist != nil {
			rec.Artist = *patch.Artist
		}
		if audioURL != "" {
			rec.AudioURL = audioURL
		}
		if err := tx.Save(&rec).Error; err != nil {
			return errors.Wrapf(err, "failed to update song %s", id)
		}
		out = rec
		return nil
	})
	if err != nil {
		return song.Song{}, err
	}
	return out.toSong(), nil
}

// Delete removes the song with the given ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&songRecord{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to delete song %s", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "id=%s", id)
	}
	return nil
}

func (s *Store) get(db *gorm.DB, id string) (songRecord, error) {
	var rec songRecord
	err := db.Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return songRecord{}, errors.Wrapf(ErrNotFound, "id=%s", id)
	}
	if err != nil {
		return songRecord{}, errors.Wrapf(err, "failed to get song %s", id)
	}
	return rec, nil
}

func toSongs(recs []songRecord) []song.Song {
	return lo.Map(recs, func(r songRecord, _ int) song.Song { return r.toSong() })
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// zerologWriter routes gorm's log lines to the global zerolog logger.
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...any) {
	zlog.Debug().Msgf("store: "+format, args...)
}

func newLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(zerologWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
