package playback

// EventType represents a playback event type.
type EventType int

const (
	EventSelectionChanged  EventType = iota // Cursor moved without a new play request
	EventPlaybackRequested                  // Token incremented, consumers must (re)start playback
	EventRestartRequested                   // Previous restarted the current track
	EventQueueChanged                       // Queue content changed, cursor untouched
	EventCatalogChanged                     // Catalog content changed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSelectionChanged:
		return "selection_changed"
	case EventPlaybackRequested:
		return "playback_requested"
	case EventRestartRequested:
		return "restart_requested"
	case EventQueueChanged:
		return "queue_changed"
	case EventCatalogChanged:
		return "catalog_changed"
	default:
		return "unknown"
	}
}

// Event represents a controller transition and the state it produced.
type Event struct {
	Type  EventType
	State State
}
