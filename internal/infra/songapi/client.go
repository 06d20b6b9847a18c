// Package songapi provides a client for the catalog REST API.
package songapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lorelei/internal/domain/song"
)

// ErrNotFound is marked on errors for 404 responses.
var ErrNotFound = errors.New("song not found")

// Config represents catalog client configuration.
type Config struct {
	BaseURL string        // e.g. "http://localhost:5000"
	Timeout time.Duration // Per-request timeout; zero selects 10s
}

// Client is a catalog API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// File is an audio file to upload.
type File struct {
	Name    string
	Content io.Reader
}

// APIError is a non-2xx response from the catalog.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return "catalog returned " + http.StatusText(e.Status) + ": " + e.Message
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("invalid catalog base URL: %s", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// FetchAll returns every song in the catalog.
func (c *Client) FetchAll(ctx context.Context) ([]song.Song, error) {
	var songs []song.Song
	if err := c.do(ctx, http.MethodGet, "/api/songs", nil, "", &songs); err != nil {
		return nil, err
	}
	if songs == nil {
		songs = []song.Song{}
	}
	zlog.Debug().Msgf("songapi: fetched %d songs", len(songs))
	return songs, nil
}

// Search returns songs whose title or artist contains q.
func (c *Client) Search(ctx context.Context, q string) ([]song.Song, error) {
	var songs []song.Song
	path := "/api/songs/search?" + url.Values{"q": {q}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, "", &songs); err != nil {
		return nil, err
	}
	if songs == nil {
		songs = []song.Song{}
	}
	return songs, nil
}

// Update sends a JSON patch and returns the stored song.
func (c *Client) Update(ctx context.Context, id string, patch song.Patch) (song.Song, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return song.Song{}, errors.Wrap(err, "failed to encode patch")
	}
	var out song.Song
	if err := c.do(ctx, http.MethodPut, "/api/songs/"+url.PathEscape(id), bytes.NewReader(body), "application/json", &out); err != nil {
		return song.Song{}, err
	}
	return out, nil
}

// Remove deletes a song.
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/songs/"+url.PathEscape(id), nil, "", nil)
}

// Create uploads a new song. Empty title or artist are filled in by the server.
func (c *Client) Create(ctx context.Context, title, artist string, file File) (song.Song, error) {
	body, contentType, err := multipartBody(map[string]string{"title": title, "artist": artist}, &file)
	if err != nil {
		return song.Song{}, err
	}
	var out song.Song
	if err := c.do(ctx, http.MethodPost, "/api/songs", body, contentType, &out); err != nil {
		return song.Song{}, err
	}
	return out, nil
}

// Replace updates a song and swaps its audio file.
func (c *Client) Replace(ctx context.Context, id string, patch song.Patch, file File) (song.Song, error) {
	fields := map[string]string{}
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Artist != nil {
		fields["artist"] = *patch.Artist
	}
	body, contentType, err := multipartBody(fields, &file)
	if err != nil {
		return song.Song{}, err
	}
	var out song.Song
	if err := c.do(ctx, http.MethodPut, "/api/songs/"+url.PathEscape(id), body, contentType, &out); err != nil {
		return song.Song{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			if eb.Error != "" {
				apiErr.Message = eb.Error
			} else if eb.Message != "" {
				apiErr.Message = eb.Message
			}
		}
		if resp.StatusCode == http.StatusNotFound {
			return errors.Mark(apiErr, ErrNotFound)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func multipartBody(fields map[string]string, file *File) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", errors.Wrap(err, "failed to write form field")
		}
	}
	if file != nil && file.Content != nil {
		part, err := w.CreateFormFile("audio", file.Name)
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to create form file")
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, "", errors.Wrap(err, "failed to copy audio")
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to finish form")
	}
	return &buf, w.FormDataContentType(), nil
}
