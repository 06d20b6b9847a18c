// Package playback provides the playback cursor shared by the catalog and the user queue.
package playback

import (
	"time"

	"github.com/osa030/lorelei/internal/domain/song"
)

// Source identifies the collection the cursor indexes into.
type Source int

const (
	SourceCatalog Source = iota // Full catalog (default)
	SourceQueue                 // User-built queue
)

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceCatalog:
		return "catalog"
	case SourceQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// ParseSource parses the string form of a source.
func ParseSource(v string) (Source, bool) {
	switch v {
	case "catalog":
		return SourceCatalog, true
	case "queue":
		return SourceQueue, true
	default:
		return SourceCatalog, false
	}
}

// NoSelection is the cursor index when nothing is selected.
const NoSelection = -1

// NowPlaying is the selected song together with its play request identity.
// Two values with the same song but different tokens are distinct play requests.
type NowPlaying struct {
	Song        song.Song
	Token       uint64
	RequestedAt time.Time
}

// State is a consistent snapshot of the controller.
type State struct {
	Catalog     []song.Song
	Queue       []song.Song
	Source      Source
	Index       int
	CanStepBack bool
	Token       uint64
	Revision    uint64      // Incremented by every published transition
	NowPlaying  *NowPlaying // nil when nothing is selected
}
