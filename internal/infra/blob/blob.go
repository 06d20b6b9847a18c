// Package blob stores uploaded audio files and serves them back by URL.
package blob

import (
	"context"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lorelei/internal/infra/config"
)

// ErrForeignURL is returned when a URL does not belong to the store.
var ErrForeignURL = errors.New("url is not managed by this store")

// Store stores audio blobs under generated names.
type Store interface {
	// Put stores r under a unique name derived from filename and returns its public URL.
	Put(ctx context.Context, filename string, r io.Reader) (string, error)
	// Delete removes the blob behind url. A blob that is already gone is not an error.
	Delete(ctx context.Context, url string) error
	// URLPrefix is the path prefix of every URL returned by Put.
	URLPrefix() string
	// Handler serves blobs; mount it at URLPrefix.
	Handler() http.Handler
}

// New creates the store selected by cfg.Type.
func New(cfg config.BlobConfig) (Store, error) {
	zlog.Debug().Msgf("creating blob store: type=%s settings=%+v", cfg.Type, cfg.Settings)

	switch cfg.Type {
	case "local", "":
		s, err := NewLocalStore(cfg.Settings)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create local blob store")
		}
		zlog.Info().Msgf("blob store: local dir=%s prefix=%s", s.dir, s.prefix)
		return s, nil
	default:
		return nil, errors.Newf("unsupported blob store type: %s", cfg.Type)
	}
}
