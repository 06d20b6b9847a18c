// Package song provides the Song domain entity.
package song

import (
	"time"

	"github.com/samber/lo"
)

// Song represents a catalog entry.
// The catalog backend owns it; clients only ever hold copies.
type Song struct {
	ID        string    `json:"_id"`       // Stable identity
	Title     string    `json:"title"`     // Display title
	Artist    string    `json:"artist"`    // Display artist
	AudioURL  string    `json:"audioUrl"`  // Locator of the audio blob
	CreatedAt time.Time `json:"createdAt"` // Creation time
	UpdatedAt time.Time `json:"updatedAt"` // Last update time
}

// Patch holds a partial update of the editable song fields.
// Nil fields are left untouched.
type Patch struct {
	Title  *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Artist *string `json:"artist,omitempty" validate:"omitempty,max=200"`
}

// IsEmpty returns true if the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Artist == nil
}

// Apply returns a copy of s with the patch merged in.
func (p Patch) Apply(s Song) Song {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Artist != nil {
		s.Artist = *p.Artist
	}
	return s
}

// IndexOf returns the position of the first song with the given ID, or -1.
func IndexOf(songs []Song, id string) int {
	_, index, _ := lo.FindIndexOf(songs, func(s Song) bool {
		return s.ID == id
	})
	return index
}

// IDs returns the IDs of songs in order.
func IDs(songs []Song) []string {
	return lo.Map(songs, func(s Song, _ int) string {
		return s.ID
	})
}

// String returns "artist - title", or the title alone when the artist is unknown.
func (s Song) String() string {
	if s.Artist == "" {
		return s.Title
	}
	return s.Artist + " - " + s.Title
}
