// Package connect provides Connect RPC service implementations.
package connect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	playerv1 "github.com/osa030/lorelei/internal/api/playerv1"
	"github.com/osa030/lorelei/internal/api/playerv1/playerv1connect"
	"github.com/osa030/lorelei/internal/app/notification"
	"github.com/osa030/lorelei/internal/app/playback"
	"github.com/osa030/lorelei/internal/domain/song"
)

// PlayerService implements the PlayerService RPC on top of a playback controller.
type PlayerService struct {
	controller *playback.Controller
	notifier   *notification.Manager
	done       chan struct{}
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(controller *playback.Controller, notifier *notification.Manager) *PlayerService {
	return &PlayerService{
		controller: controller,
		notifier:   notifier,
		done:       make(chan struct{}),
	}
}

// Ensure PlayerService implements the interface.
var _ playerv1connect.PlayerServiceHandler = (*PlayerService)(nil)

// Run forwards controller events to subscribers until ctx is cancelled or the
// controller is closed. Open subscriptions end when Run returns.
func (s *PlayerService) Run(ctx context.Context) {
	defer close(s.done)

	events := s.controller.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.notifier.Broadcast(&playerv1.Notification{
				Type:  ev.Type.String(),
				State: toPlayerState(ev.State),
			})
		}
	}
}

// Done is closed when Run returns.
func (s *PlayerService) Done() <-chan struct{} {
	return s.done
}

// GetState returns the current controller snapshot.
func (s *PlayerService) GetState(
	ctx context.Context,
	req *connect.Request[playerv1.GetStateRequest],
) (*connect.Response[playerv1.GetStateResponse], error) {
	return connect.NewResponse(&playerv1.GetStateResponse{
		State: toPlayerState(s.controller.Snapshot()),
	}), nil
}

// Play selects a catalog song and requests playback.
func (s *PlayerService) Play(
	ctx context.Context,
	req *connect.Request[playerv1.PlayRequest],
) (*connect.Response[playerv1.OperationResponse], error) {
	if req.Msg.SongID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("song_id is required"))
	}
	ok := s.controller.PlayFromCatalog(req.Msg.SongID)
	return s.result(ok, "song %s is not in the catalog", req.Msg.SongID), nil
}

// Enqueue appends a catalog song to the queue.
func (s *PlayerService) Enqueue(
	ctx context.Context,
	req *connect.Request[playerv1.EnqueueRequest],
) (*connect.Response[playerv1.OperationResponse], error) {
	if req.Msg.SongID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("song_id is required"))
	}
	sg, ok := s.controller.FindInCatalog(req.Msg.SongID)
	if ok {
		s.controller.Enqueue(sg)
	}
	return s.result(ok, "song %s is not in the catalog", req.Msg.SongID), nil
}

// PlayFromQueue selects a queue entry and requests playback.
func (s *PlayerService) PlayFromQueue(
	ctx context.Context,
	req *connect.Request[playerv1.QueuePositionRequest],
) (*connect.Response[playerv1.OperationResponse], error) {
	ok := s.controller.PlayFromQueue(int(req.Msg.Position))
	return s.result(ok, "no queue entry at position %d", req.Msg.Position), nil
}

// SelectFromQueue jumps to a queue entry; a following Previous steps back.
func (s *PlayerService) SelectFromQueue(
	ctx context.Context,
	req *connect.Request[playerv1.QueuePositionRequest],
) (*connect.Response[playerv1.OperationResponse], error) {
	ok := s.controller.SelectFromQueue(int(req.Msg.Position))
	return s.result(ok, "no queue entry at position %d", req.Msg.Position), nil
}

// Next advances within the active source.
func (s *PlayerService) Next(
	ctx context.Context,
	req *connect.Request[playerv1.NextRequest],
) (*connect.Response[playerv1.OperationResponse], error) {
	ok := s.controller.Advance()
	return s.result(ok, "nothing to play"), nil
}

// Previous steps back, or asks the player to restart the current track.
func (s *PlayerService) Previous(
	ctx context.Context,
	req *connect.Request[playerv1.PreviousRequest],
) (*connect.Response[playerv1.PreviousResponse], error) {
	if req.Msg.ElapsedMs < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("elapsed_ms must not be negative"))
	}

	var restarted bool
	elapsed := time.Duration(req.Msg.ElapsedMs) * time.Millisecond
	ok := s.controller.Retreat(elapsed, func() { restarted = true })

	op := s.result(ok, "nothing to play").Msg
	return connect.NewResponse(&playerv1.PreviousResponse{
		Success:   op.Success,
		Message:   op.Message,
		Restarted: restarted,
		State:     op.State,
	}), nil
}

// RemoveFromQueue removes one queue entry.
func (s *PlayerService) RemoveFromQueue(
	ctx context.Context,
	req *connect.Request[playerv1.QueuePositionRequest],
) (*connect.Response[playerv1.OperationResponse], error) {
	ok := s.controller.RemoveFromQueue(int(req.Msg.Position))
	return s.result(ok, "no queue entry at position %d", req.Msg.Position), nil
}

// ClearQueue empties the queue.
func (s *PlayerService) ClearQueue(
	ctx context.Context,
	req *connect.Request[playerv1.ClearQueueRequest],
) (*connect.Response[playerv1.OperationResponse], error) {
	s.controller.ClearQueue()
	return s.result(true, ""), nil
}

// DropPlayed removes the queue entries before the current one.
func (s *PlayerService) DropPlayed(
	ctx context.Context,
	req *connect.Request[playerv1.DropPlayedRequest],
) (*connect.Response[playerv1.OperationResponse], error) {
	ok := s.controller.DropPlayedPrefix()
	return s.result(ok, "not playing from the queue"), nil
}

// SwitchMode switches the active source.
func (s *PlayerService) SwitchMode(
	ctx context.Context,
	req *connect.Request[playerv1.SwitchModeRequest],
) (*connect.Response[playerv1.OperationResponse], error) {
	source, valid := playback.ParseSource(req.Msg.Mode)
	if !valid {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("unknown mode: %q", req.Msg.Mode))
	}
	if source == playback.SourceQueue {
		ok := s.controller.SwitchToQueueMode()
		return s.result(ok, "queue is empty"), nil
	}
	s.controller.SwitchToCatalogMode()
	return s.result(true, ""), nil
}

// EditSong persists a title/artist change and propagates it to every copy.
func (s *PlayerService) EditSong(
	ctx context.Context,
	req *connect.Request[playerv1.EditSongRequest],
) (*connect.Response[playerv1.EditSongResponse], error) {
	patch := song.Patch{Title: req.Msg.Title, Artist: req.Msg.Artist}
	if req.Msg.SongID == "" || patch.IsEmpty() {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("song_id and at least one field are required"))
	}

	updated, err := s.controller.ApplyEdit(ctx, req.Msg.SongID, patch)
	if err != nil {
		zlog.Warn().Err(err).Msgf("player: edit of %s failed", req.Msg.SongID)
		return connect.NewResponse(&playerv1.EditSongResponse{
			Success: false,
			Message: err.Error(),
			State:   toPlayerState(s.controller.Snapshot()),
		}), nil
	}

	info := toSongInfo(updated)
	return connect.NewResponse(&playerv1.EditSongResponse{
		Success: true,
		Song:    &info,
		State:   toPlayerState(s.controller.Snapshot()),
	}), nil
}

// DeleteSong deletes a song from the catalog and from every queue occurrence.
func (s *PlayerService) DeleteSong(
	ctx context.Context,
	req *connect.Request[playerv1.DeleteSongRequest],
) (*connect.Response[playerv1.OperationResponse], error) {
	if req.Msg.SongID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("song_id is required"))
	}
	if err := s.controller.ApplyDelete(ctx, req.Msg.SongID); err != nil {
		zlog.Warn().Err(err).Msgf("player: delete of %s failed", req.Msg.SongID)
		return s.failure(err), nil
	}
	return s.result(true, ""), nil
}

// Refresh reloads the catalog from the store.
func (s *PlayerService) Refresh(
	ctx context.Context,
	req *connect.Request[playerv1.RefreshRequest],
) (*connect.Response[playerv1.OperationResponse], error) {
	if err := s.controller.Load(ctx); err != nil {
		zlog.Warn().Err(err).Msg("player: catalog refresh failed")
		return s.failure(err), nil
	}
	return s.result(true, ""), nil
}

// Subscribe streams the current state followed by every change.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[playerv1.SubscribeRequest],
	stream *connect.ServerStream[playerv1.Notification],
) error {
	adapter := &notificationStreamAdapter{stream: stream}
	defer adapter.close()

	subscriptionID, err := s.notifier.Subscribe(adapter, func() *playerv1.Notification {
		return &playerv1.Notification{
			Type:  playerv1.NotificationTypeInitialState,
			State: toPlayerState(s.controller.Snapshot()),
		}
	})
	if err != nil {
		return err
	}
	defer s.notifier.Unsubscribe(subscriptionID)
	zlog.Debug().Msgf("player: subscriber %s joined", subscriptionID)

	select {
	case <-ctx.Done():
	case <-s.done:
	}
	zlog.Debug().Msgf("player: subscriber %s left", subscriptionID)
	return nil
}

func (s *PlayerService) result(ok bool, format string, args ...any) *connect.Response[playerv1.OperationResponse] {
	resp := &playerv1.OperationResponse{
		Success: ok,
		State:   toPlayerState(s.controller.Snapshot()),
	}
	if !ok {
		resp.Message = fmt.Sprintf(format, args...)
	}
	return connect.NewResponse(resp)
}

func (s *PlayerService) failure(err error) *connect.Response[playerv1.OperationResponse] {
	return connect.NewResponse(&playerv1.OperationResponse{
		Success: false,
		Message: err.Error(),
		State:   toPlayerState(s.controller.Snapshot()),
	})
}

var errStreamClosed = errors.New("stream closed")

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// A send that outlives the handler is refused.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[playerv1.Notification]
	closed bool
}

func (a *notificationStreamAdapter) Send(n *playerv1.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errStreamClosed
	}
	return a.stream.Send(n)
}

func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}
