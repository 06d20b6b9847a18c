// Package rest exposes the song catalog over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lorelei/internal/app/library"
	"github.com/osa030/lorelei/internal/domain/song"
)

// Catalog is the catalog service used by the handlers.
type Catalog interface {
	Create(ctx context.Context, in library.NewSong, up library.Upload) (song.Song, error)
	List(ctx context.Context) ([]song.Song, error)
	Search(ctx context.Context, q string) ([]song.Song, error)
	Update(ctx context.Context, id string, patch song.Patch, up *library.Upload) (song.Song, error)
	Delete(ctx context.Context, id string) error
}

// Files serves stored audio.
type Files interface {
	URLPrefix() string
	Handler() http.Handler
}

// Config represents HTTP layer configuration.
type Config struct {
	AllowedOrigins []string // Empty allows any origin
	MaxUploadBytes int64
}

const multipartMemory = 8 << 20

type api struct {
	catalog Catalog
	cfg     Config
}

// NewHandler builds the router with CORS, panic recovery and request logging.
func NewHandler(catalog Catalog, files Files, cfg Config) http.Handler {
	a := &api{catalog: catalog, cfg: cfg}

	router := mux.NewRouter().StrictSlash(false)

	songs := router.PathPrefix("/api/songs").Subrouter()
	songs.Use(handlers.CompressHandler, recoverJSON)
	songs.HandleFunc("", a.create).Methods(http.MethodPost)
	songs.HandleFunc("", a.list).Methods(http.MethodGet)
	songs.HandleFunc("/search", a.search).Methods(http.MethodGet)
	songs.HandleFunc("/{id}", a.update).Methods(http.MethodPut)
	songs.HandleFunc("/{id}", a.delete).Methods(http.MethodDelete)
	songs.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	songs.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	if files != nil {
		router.PathPrefix(files.URLPrefix()).Handler(files.Handler()).Methods(http.MethodGet, http.MethodHead)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(true),
	)

	var h http.Handler = router
	h = recovery(h)
	h = cors(h)
	h = accessLog(h)
	return h
}

// accessLog attaches the global logger and a request ID to every request.
func accessLog(next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("rest: request")
	})(next)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	return hlog.NewHandler(zlog.Logger)(h)
}

// recoverJSON turns a handler panic into a 500 error body. It must run inside
// CompressHandler so the body is written before the gzip writer is closed.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				hlog.FromRequest(r).Error().
					Str("stack", string(debug.Stack())).
					Msgf("rest: recovered from panic: %v", v)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type recoveryLogger struct{}

func (recoveryLogger) Println(args ...any) {
	zlog.Error().Msg("rest: recovered from panic: " + fmt.Sprint(args...))
}

func (a *api) create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer cleanupForm(r)

	file, hdr, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	created, err := a.catalog.Create(r.Context(),
		library.NewSong{Title: r.FormValue("title"), Artist: r.FormValue("artist")},
		library.Upload{Filename: hdr.Filename, Content: file},
	)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (a *api) list(w http.ResponseWriter, r *http.Request) {
	songs, err := a.catalog.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(songs))
}

func (a *api) search(w http.ResponseWriter, r *http.Request) {
	songs, err := a.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(songs))
}

// update accepts either a JSON patch or a multipart form with an optional audio file.
func (a *api) update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var (
		patch song.Patch
		up    *library.Upload
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload())
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
			return
		}
		defer cleanupForm(r)

		patch = patchFromForm(r.MultipartForm)
		if file, hdr, err := r.FormFile("audio"); err == nil {
			defer file.Close()
			up = &library.Upload{Filename: hdr.Filename, Content: file}
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}

	updated, err := a.catalog.Update(r.Context(), id, patch, up)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *api) delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.catalog.Delete(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

func (a *api) maxUpload() int64 {
	if a.cfg.MaxUploadBytes > 0 {
		return a.cfg.MaxUploadBytes
	}
	return 50 << 20
}

// fail maps service errors to responses.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, library.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Song not found"})
	case errors.Is(err, library.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger := hlog.FromRequest(r)
		logger.Error().Err(err).Msgf("rest: %s %s failed", r.Method, r.URL.Path)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func patchFromForm(form *multipart.Form) song.Patch {
	var p song.Patch
	if form == nil {
		return p
	}
	if v, ok := form.Value["title"]; ok && len(v) > 0 {
		p.Title = &v[0]
	}
	if v, ok := form.Value["artist"]; ok && len(v) > 0 {
		p.Artist = &v[0]
	}
	return p
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func nonNil(songs []song.Song) []song.Song {
	if songs == nil {
		return []song.Song{}
	}
	return songs
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Err(err).Msg("rest: failed to write response")
	}
}
