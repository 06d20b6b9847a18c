package blob

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// LocalConfig holds the settings of the local filesystem backend.
type LocalConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir" default:"uploads" validate:"required"`
	URLPrefix string `yaml:"url_prefix" mapstructure:"url_prefix" default:"/uploads/" validate:"required,startswith=/,endswith=/"`
}

// LocalStore keeps blobs as files in a single directory.
type LocalStore struct {
	dir    string
	prefix string
}

// NewLocalStore decodes settings and creates the target directory if needed.
func NewLocalStore(settings map[string]any) (*LocalStore, error) {
	var cfg LocalConfig
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", cfg.Dir)
	}
	return &LocalStore{dir: cfg.Dir, prefix: cfg.URLPrefix}, nil
}

// Put writes r to "<uuid>-<base name>".
func (s *LocalStore) Put(_ context.Context, filename string, r io.Reader) (string, error) {
	name := uuid.NewString() + "-" + cleanName(filename)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s", name)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", errors.Wrapf(err, "failed to write %s", name)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", errors.Wrapf(err, "failed to close %s", name)
	}

	zlog.Debug().Msgf("blob: stored %s", name)
	return s.prefix + name, nil
}

// Delete removes the file behind url.
func (s *LocalStore) Delete(_ context.Context, url string) error {
	name, ok := strings.CutPrefix(url, s.prefix)
	if !ok || name == "" || name != filepath.Base(name) || name == ".." {
		return errors.Wrapf(ErrForeignURL, "url=%s", url)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "failed to remove %s", name)
	}
	zlog.Debug().Msgf("blob: removed %s", name)
	return nil
}

// URLPrefix implements Store.
func (s *LocalStore) URLPrefix() string { return s.prefix }

// Handler serves files without directory listings.
func (s *LocalStore) Handler() http.Handler {
	fs := http.StripPrefix(s.prefix, http.FileServer(http.Dir(s.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// cleanName reduces an uploaded file name to a safe base name.
func cleanName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' {
			return -1
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." {
		return "audio"
	}
	return base
}
