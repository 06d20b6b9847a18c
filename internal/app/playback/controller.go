package playback

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/lorelei/internal/domain/song"
)

const (
	defaultRestartThreshold = 3 * time.Second
	defaultEventBuffer      = 32
)

// Config holds controller configuration.
type Config struct {
	RestartThreshold time.Duration // Elapsed time after which Retreat restarts instead of stepping back
	EventBuffer      int           // Capacity of the event channel
}

// Controller owns the catalog, the queue and the playback cursor of one session.
// Every exported method is an atomic transition with respect to the others.
type Controller struct {
	mu sync.Mutex

	store  CatalogStore
	config Config

	// Collections
	catalog []song.Song
	queue   []song.Song // May hold the same song more than once

	// Cursor
	source      Source
	index       int
	canStepBack bool
	token       uint64
	requestedAt time.Time
	revision    uint64

	now func() time.Time

	// Events
	eventCh chan Event
	closed  bool
}

// NewController creates a new playback controller backed by store.
func NewController(store CatalogStore, config Config) *Controller {
	if config.RestartThreshold <= 0 {
		config.RestartThreshold = defaultRestartThreshold
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = defaultEventBuffer
	}
	return &Controller{
		store:   store,
		config:  config,
		catalog: make([]song.Song, 0),
		queue:   make([]song.Song, 0),
		source:  SourceCatalog,
		index:   NoSelection,
		now:     time.Now,
		eventCh: make(chan Event, config.EventBuffer),
	}
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Close closes the event channel. Transitions after Close publish nothing.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.eventCh)
}

// Load fetches the catalog from the store and replaces the local copy.
func (c *Controller) Load(ctx context.Context) error {
	songs, err := c.store.FetchAll(ctx)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to fetch catalog"), ErrFetchFailed)
	}
	c.ReplaceCatalog(songs)
	return nil
}

// ReplaceCatalog swaps the whole catalog.
// A catalog selection is re-resolved by song ID, never by position.
func (c *Controller) ReplaceCatalog(songs []song.Song) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, playing := c.currentLocked()
	c.catalog = slices.Clone(songs)
	if c.catalog == nil {
		c.catalog = make([]song.Song, 0)
	}

	if c.source == SourceCatalog && c.index != NoSelection {
		index := NoSelection
		if playing {
			index = song.IndexOf(c.catalog, current.ID)
		}
		c.moveLocked(SourceCatalog, index)
	}

	zlog.Debug().Msgf("playback: catalog replaced: songs=%d index=%d", len(c.catalog), c.index)
	c.publishLocked(EventCatalogChanged)
}

// PlayFromCatalog selects the catalog song with the given ID and requests playback.
// Returns false if the song is no longer in the catalog.
func (c *Controller) PlayFromCatalog(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := song.IndexOf(c.catalog, id)
	if index < 0 {
		zlog.Debug().Msgf("playback: play ignored, song not in catalog: id=%s", id)
		return false
	}

	c.moveLocked(SourceCatalog, index)
	c.canStepBack = false
	c.requestPlaybackLocked()
	c.publishLocked(EventPlaybackRequested)
	return true
}

// Enqueue appends a copy of s to the queue. The cursor is left alone.
func (c *Controller) Enqueue(s song.Song) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue = append(slices.Clip(c.queue), s)
	c.publishLocked(EventQueueChanged)
}

// PlayFromQueue selects the queue entry at position and requests playback.
func (c *Controller) PlayFromQueue(position int) bool {
	return c.pickFromQueue(position, false)
}

// SelectFromQueue is PlayFromQueue for direct jumps: a following Retreat steps back
// instead of restarting.
func (c *Controller) SelectFromQueue(position int) bool {
	return c.pickFromQueue(position, true)
}

func (c *Controller) pickFromQueue(position int, canStepBack bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if position < 0 || position >= len(c.queue) {
		zlog.Debug().Msgf("playback: queue position out of range: position=%d size=%d", position, len(c.queue))
		return false
	}

	c.moveLocked(SourceQueue, position)
	c.canStepBack = canStepBack
	c.requestPlaybackLocked()
	c.publishLocked(EventPlaybackRequested)
	return true
}

// Advance moves to the next song of the active source, wrapping to the start.
// It always requests playback, even when the selection does not change.
func (c *Controller) Advance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := c.activeLocked()
	if len(active) == 0 {
		return false
	}

	c.moveLocked(c.source, (c.index+1)%len(active))
	c.canStepBack = true
	c.requestPlaybackLocked()
	c.publishLocked(EventPlaybackRequested)
	return true
}

// Retreat handles "previous". Unless stepping back is allowed and elapsed is within
// the restart threshold, the current track is restarted: restart is invoked and the
// cursor stays put. Returns false if the active source is empty.
func (c *Controller) Retreat(elapsed time.Duration, restart func()) bool {
	restarted, ok := c.retreat(elapsed)
	if restarted && restart != nil {
		restart()
	}
	return ok
}

func (c *Controller) retreat(elapsed time.Duration) (restarted bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := c.activeLocked()
	if len(active) == 0 {
		return false, false
	}

	if !c.canStepBack || elapsed > c.config.RestartThreshold {
		c.requestPlaybackLocked()
		c.publishLocked(EventRestartRequested)
		return true, true
	}

	previous := c.index - 1
	if previous < 0 {
		previous = len(active) - 1
	}
	c.moveLocked(c.source, previous)
	c.requestPlaybackLocked()
	c.publishLocked(EventPlaybackRequested)
	return false, true
}

// RemoveFromQueue removes the queue entry at position.
func (c *Controller) RemoveFromQueue(position int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if position < 0 || position >= len(c.queue) {
		return false
	}

	c.queue = lo.Filter(c.queue, func(_ song.Song, i int) bool {
		return i != position
	})

	eventType := EventQueueChanged
	if c.source == SourceQueue {
		switch {
		case position == c.index:
			if len(c.queue) == 0 {
				c.fallBackToCatalogLocked(NoSelection)
				eventType = EventSelectionChanged
			} else {
				c.moveLocked(SourceQueue, min(c.index, len(c.queue)-1))
				c.requestPlaybackLocked()
				eventType = EventPlaybackRequested
			}
		case position < c.index:
			// Same logical song, one slot earlier
			c.moveLocked(SourceQueue, c.index-1)
			eventType = EventSelectionChanged
		}
	}

	c.publishLocked(eventType)
	return true
}

// ClearQueue empties the queue. In queue mode the cursor falls back to the
// catalog entry of the playing song, without interrupting playback.
func (c *Controller) ClearQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, playing := c.currentLocked()
	c.queue = make([]song.Song, 0)

	eventType := EventQueueChanged
	if c.source == SourceQueue {
		index := NoSelection
		if playing {
			index = song.IndexOf(c.catalog, current.ID)
		}
		c.fallBackToCatalogLocked(index)
		eventType = EventSelectionChanged
	}

	c.publishLocked(eventType)
}

// DropPlayedPrefix keeps only the queue entries after the current one.
// Only valid in queue mode with a selection.
func (c *Controller) DropPlayedPrefix() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source != SourceQueue || c.index == NoSelection {
		return false
	}

	c.queue = slices.Clone(c.queue[c.index+1:])
	if len(c.queue) == 0 {
		c.queue = make([]song.Song, 0)
		c.fallBackToCatalogLocked(NoSelection)
		c.publishLocked(EventSelectionChanged)
		return true
	}

	c.moveLocked(SourceQueue, 0)
	c.requestPlaybackLocked()
	c.publishLocked(EventPlaybackRequested)
	return true
}

// SwitchToQueueMode makes the queue the active source.
// If the playing song is queued, the cursor hands over to it without a new play request.
func (c *Controller) SwitchToQueueMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return false
	}
	c.canStepBack = false

	// Already on the queue: the cursor is on the playing entry
	if c.source == SourceQueue && c.index != NoSelection {
		c.publishLocked(EventSelectionChanged)
		return true
	}

	if current, playing := c.currentLocked(); playing {
		if index := song.IndexOf(c.queue, current.ID); index >= 0 {
			c.moveLocked(SourceQueue, index)
			c.publishLocked(EventSelectionChanged)
			return true
		}
	}

	c.moveLocked(SourceQueue, 0)
	c.requestPlaybackLocked()
	c.publishLocked(EventPlaybackRequested)
	return true
}

// SwitchToCatalogMode makes the catalog the active source. Never requests playback.
func (c *Controller) SwitchToCatalogMode() {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := NoSelection
	if current, playing := c.currentLocked(); playing {
		index = song.IndexOf(c.catalog, current.ID)
	}
	if index < 0 && len(c.catalog) > 0 {
		index = 0
	}

	c.moveLocked(SourceCatalog, index)
	c.canStepBack = false
	c.publishLocked(EventSelectionChanged)
}

// ApplyEdit persists patch through the store, then replaces every local copy of the
// song with the stored result. State is unchanged if the store call fails.
func (c *Controller) ApplyEdit(ctx context.Context, id string, patch song.Patch) (song.Song, error) {
	updated, err := c.store.Update(ctx, id, patch)
	if err != nil {
		return song.Song{}, errors.Mark(errors.Wrapf(err, "failed to edit song %s", id), ErrEditFailed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	replace := func(s song.Song, _ int) song.Song {
		if s.ID == id {
			return updated
		}
		return s
	}
	c.catalog = lo.Map(c.catalog, replace)
	c.queue = lo.Map(c.queue, replace)

	zlog.Debug().Msgf("playback: song edited: id=%s title=%s", id, updated.Title)
	c.publishLocked(EventCatalogChanged)
	return updated, nil
}

// ApplyDelete removes the song through the store, then from the catalog and every
// queue occurrence, repairing the cursor. State is unchanged if the store call fails.
func (c *Controller) ApplyDelete(ctx context.Context, id string) error {
	if err := c.store.Remove(ctx, id); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to delete song %s", id), ErrDeleteFailed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeSongLocked(id)
	return nil
}

func (c *Controller) removeSongLocked(id string) {
	current, playing := c.currentLocked()

	// Occurrences ahead of the cursor in the active source
	removedBefore := 0
	if playing {
		removedBefore = lo.CountBy(c.activeLocked()[:c.index], func(s song.Song) bool {
			return s.ID == id
		})
	}

	keep := func(s song.Song, _ int) bool {
		return s.ID != id
	}
	c.catalog = lo.Filter(c.catalog, keep)
	c.queue = lo.Filter(c.queue, keep)
	remaining := len(c.activeLocked())

	eventType := EventCatalogChanged
	switch {
	case !playing:
	case current.ID == id:
		switch {
		case remaining > 0:
			c.moveLocked(c.source, min(c.index-removedBefore, remaining-1))
			c.requestPlaybackLocked()
			eventType = EventPlaybackRequested
		case c.source == SourceQueue:
			c.fallBackToCatalogLocked(NoSelection)
			eventType = EventSelectionChanged
		default:
			c.moveLocked(SourceCatalog, NoSelection)
			eventType = EventSelectionChanged
		}
	case removedBefore > 0:
		c.moveLocked(c.source, c.index-removedBefore)
		eventType = EventSelectionChanged
	}

	zlog.Debug().Msgf("playback: song deleted: id=%s source=%s index=%d", id, c.source, c.index)
	c.publishLocked(eventType)
}

// NowPlaying returns the selected song, if any.
func (c *Controller) NowPlaying() (NowPlaying, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	np := c.nowPlayingLocked()
	if np == nil {
		return NowPlaying{}, false
	}
	return *np, true
}

// Snapshot returns a copy of the full controller state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// FindInCatalog returns the catalog song with the given ID.
func (c *Controller) FindInCatalog(id string) (song.Song, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := song.IndexOf(c.catalog, id)
	if index < 0 {
		return song.Song{}, false
	}
	return c.catalog[index], true
}

func (c *Controller) activeLocked() []song.Song {
	if c.source == SourceQueue {
		return c.queue
	}
	return c.catalog
}

// currentLocked returns the song under the cursor.
// Must be called with lock held.
func (c *Controller) currentLocked() (song.Song, bool) {
	active := c.activeLocked()
	if c.index < 0 || c.index >= len(active) {
		return song.Song{}, false
	}
	return active[c.index], true
}

// moveLocked points the cursor at index of source.
// Must be called with lock held.
func (c *Controller) moveLocked(source Source, index int) {
	if c.source == source && c.index == index {
		return
	}
	c.source = source
	c.index = index
	c.requestedAt = c.now()
}

// requestPlaybackLocked marks a new play request, even for an unchanged selection.
// Must be called with lock held.
func (c *Controller) requestPlaybackLocked() {
	c.token++
	c.requestedAt = c.now()
}

// fallBackToCatalogLocked leaves queue mode.
// Must be called with lock held.
func (c *Controller) fallBackToCatalogLocked(index int) {
	c.moveLocked(SourceCatalog, index)
	c.canStepBack = false
}

func (c *Controller) nowPlayingLocked() *NowPlaying {
	current, ok := c.currentLocked()
	if !ok {
		return nil
	}
	return &NowPlaying{
		Song:        current,
		Token:       c.token,
		RequestedAt: c.requestedAt,
	}
}

func (c *Controller) snapshotLocked() State {
	return State{
		Catalog:     slices.Clone(c.catalog),
		Queue:       slices.Clone(c.queue),
		Source:      c.source,
		Index:       c.index,
		CanStepBack: c.canStepBack,
		Token:       c.token,
		Revision:    c.revision,
		NowPlaying:  c.nowPlayingLocked(),
	}
}

// publishLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) publishLocked(t EventType) {
	c.revision++
	if c.closed {
		return
	}
	select {
	case c.eventCh <- Event{Type: t, State: c.snapshotLocked()}:
	default:
		zlog.Warn().Msgf("playback: event channel full, dropping %s", t)
	}
}
