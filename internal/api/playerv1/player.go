// Package playerv1 defines the messages and procedures of lorelei.player.v1.PlayerService.
package playerv1

// ServiceName is the fully-qualified name of the player service.
const ServiceName = "lorelei.player.v1.PlayerService"

// Procedure paths.
const (
	GetStateProcedure        = "/" + ServiceName + "/GetState"
	PlayProcedure            = "/" + ServiceName + "/Play"
	EnqueueProcedure         = "/" + ServiceName + "/Enqueue"
	PlayFromQueueProcedure   = "/" + ServiceName + "/PlayFromQueue"
	SelectFromQueueProcedure = "/" + ServiceName + "/SelectFromQueue"
	NextProcedure            = "/" + ServiceName + "/Next"
	PreviousProcedure        = "/" + ServiceName + "/Previous"
	RemoveFromQueueProcedure = "/" + ServiceName + "/RemoveFromQueue"
	ClearQueueProcedure      = "/" + ServiceName + "/ClearQueue"
	DropPlayedProcedure      = "/" + ServiceName + "/DropPlayed"
	SwitchModeProcedure      = "/" + ServiceName + "/SwitchMode"
	EditSongProcedure        = "/" + ServiceName + "/EditSong"
	DeleteSongProcedure      = "/" + ServiceName + "/DeleteSong"
	RefreshProcedure         = "/" + ServiceName + "/Refresh"
	SubscribeProcedure       = "/" + ServiceName + "/Subscribe"
)

// Mode values.
const (
	ModeCatalog = "catalog"
	ModeQueue   = "queue"
)

// Notification types. Besides InitialState, the controller event names are used verbatim.
const (
	NotificationTypeInitialState = "initial_state"
)

// SongInfo is a song on the wire.
type SongInfo struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	AudioURL string `json:"audio_url"`
}

// NowPlaying is the selected song and its play request identity.
type NowPlaying struct {
	Song        SongInfo `json:"song"`
	Token       uint64   `json:"token"`
	RequestedAt string   `json:"requested_at"` // RFC3339Nano
}

// PlayerState is a full controller snapshot.
type PlayerState struct {
	Catalog     []SongInfo  `json:"catalog"`
	Queue       []SongInfo  `json:"queue"`
	Mode        string      `json:"mode"`
	Index       int32       `json:"index"` // -1 when nothing is selected
	CanStepBack bool        `json:"can_step_back"`
	Token       uint64      `json:"token"`
	Revision    uint64      `json:"revision"` // Grows with every state change
	NowPlaying  *NowPlaying `json:"now_playing,omitempty"`
}

// Notification is a pushed state change.
type Notification struct {
	Type       string       `json:"type"`
	SequenceNo uint64       `json:"sequence_no"`
	State      *PlayerState `json:"state"`
}

// OperationResponse is returned by every state-changing procedure.
// Success is false when the request referred to stale data and nothing changed.
type OperationResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	State   *PlayerState `json:"state"`
}

type GetStateRequest struct{}

type GetStateResponse struct {
	State *PlayerState `json:"state"`
}

type PlayRequest struct {
	SongID string `json:"song_id"`
}

type EnqueueRequest struct {
	SongID string `json:"song_id"`
}

// QueuePositionRequest addresses a queue entry by position.
type QueuePositionRequest struct {
	Position int32 `json:"position"`
}

type NextRequest struct{}

type PreviousRequest struct {
	ElapsedMs int64 `json:"elapsed_ms"` // Playback position of the current track
}

type PreviousResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Restarted bool         `json:"restarted"` // Player must seek the current track to zero
	State     *PlayerState `json:"state"`
}

type ClearQueueRequest struct{}

type DropPlayedRequest struct{}

type SwitchModeRequest struct {
	Mode string `json:"mode"`
}

type EditSongRequest struct {
	SongID string  `json:"song_id"`
	Title  *string `json:"title,omitempty"`
	Artist *string `json:"artist,omitempty"`
}

type EditSongResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Song    *SongInfo    `json:"song,omitempty"`
	State   *PlayerState `json:"state"`
}

type DeleteSongRequest struct {
	SongID string `json:"song_id"`
}

type RefreshRequest struct{}

type SubscribeRequest struct{}
