// Package playerv1connect wires lorelei.player.v1.PlayerService to Connect handlers and clients.
package playerv1connect

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	playerv1 "github.com/osa030/lorelei/internal/api/playerv1"
)

// Codec encodes messages as plain JSON. It is registered under the "json"
// name so standard Connect JSON clients (curl, buf curl) can talk to the service.
type Codec struct{}

// Name implements connect.Codec.
func (Codec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (Codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements connect.Codec. An empty body decodes to the zero message.
func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// PlayerServiceHandler is implemented by the player service.
type PlayerServiceHandler interface {
	GetState(context.Context, *connect.Request[playerv1.GetStateRequest]) (*connect.Response[playerv1.GetStateResponse], error)
	Play(context.Context, *connect.Request[playerv1.PlayRequest]) (*connect.Response[playerv1.OperationResponse], error)
	Enqueue(context.Context, *connect.Request[playerv1.EnqueueRequest]) (*connect.Response[playerv1.OperationResponse], error)
	PlayFromQueue(context.Context, *connect.Request[playerv1.QueuePositionRequest]) (*connect.Response[playerv1.OperationResponse], error)
	SelectFromQueue(context.Context, *connect.Request[playerv1.QueuePositionRequest]) (*connect.Response[playerv1.OperationResponse], error)
	Next(context.Context, *connect.Request[playerv1.NextRequest]) (*connect.Response[playerv1.OperationResponse], error)
	Previous(context.Context, *connect.Request[playerv1.PreviousRequest]) (*connect.Response[playerv1.PreviousResponse], error)
	RemoveFromQueue(context.Context, *connect.Request[playerv1.QueuePositionRequest]) (*connect.Response[playerv1.OperationResponse], error)
	ClearQueue(context.Context, *connect.Request[playerv1.ClearQueueRequest]) (*connect.Response[playerv1.OperationResponse], error)
	DropPlayed(context.Context, *connect.Request[playerv1.DropPlayedRequest]) (*connect.Response[playerv1.OperationResponse], error)
	SwitchMode(context.Context, *connect.Request[playerv1.SwitchModeRequest]) (*connect.Response[playerv1.OperationResponse], error)
	EditSong(context.Context, *connect.Request[playerv1.EditSongRequest]) (*connect.Response[playerv1.EditSongResponse], error)
	DeleteSong(context.Context, *connect.Request[playerv1.DeleteSongRequest]) (*connect.Response[playerv1.OperationResponse], error)
	Refresh(context.Context, *connect.Request[playerv1.RefreshRequest]) (*connect.Response[playerv1.OperationResponse], error)
	Subscribe(context.Context, *connect.Request[playerv1.SubscribeRequest], *connect.ServerStream[playerv1.Notification]) error
}

// NewPlayerServiceHandler builds an HTTP handler for svc and returns the path to mount it on.
func NewPlayerServiceHandler(svc PlayerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(playerv1.GetStateProcedure, connect.NewUnaryHandler(playerv1.GetStateProcedure, svc.GetState, opts...))
	mux.Handle(playerv1.PlayProcedure, connect.NewUnaryHandler(playerv1.PlayProcedure, svc.Play, opts...))
	mux.Handle(playerv1.EnqueueProcedure, connect.NewUnaryHandler(playerv1.EnqueueProcedure, svc.Enqueue, opts...))
	mux.Handle(playerv1.PlayFromQueueProcedure, connect.NewUnaryHandler(playerv1.PlayFromQueueProcedure, svc.PlayFromQueue, opts...))
	mux.Handle(playerv1.SelectFromQueueProcedure, connect.NewUnaryHandler(playerv1.SelectFromQueueProcedure, svc.SelectFromQueue, opts...))
	mux.Handle(playerv1.NextProcedure, connect.NewUnaryHandler(playerv1.NextProcedure, svc.Next, opts...))
	mux.Handle(playerv1.PreviousProcedure, connect.NewUnaryHandler(playerv1.PreviousProcedure, svc.Previous, opts...))
	mux.Handle(playerv1.RemoveFromQueueProcedure, connect.NewUnaryHandler(playerv1.RemoveFromQueueProcedure, svc.RemoveFromQueue, opts...))
	mux.Handle(playerv1.ClearQueueProcedure, connect.NewUnaryHandler(playerv1.ClearQueueProcedure, svc.ClearQueue, opts...))
	mux.Handle(playerv1.DropPlayedProcedure, connect.NewUnaryHandler(playerv1.DropPlayedProcedure, svc.DropPlayed, opts...))
	mux.Handle(playerv1.SwitchModeProcedure, connect.NewUnaryHandler(playerv1.SwitchModeProcedure, svc.SwitchMode, opts...))
	mux.Handle(playerv1.EditSongProcedure, connect.NewUnaryHandler(playerv1.EditSongProcedure, svc.EditSong, opts...))
	mux.Handle(playerv1.DeleteSongProcedure, connect.NewUnaryHandler(playerv1.DeleteSongProcedure, svc.DeleteSong, opts...))
	mux.Handle(playerv1.RefreshProcedure, connect.NewUnaryHandler(playerv1.RefreshProcedure, svc.Refresh, opts...))
	mux.Handle(playerv1.SubscribeProcedure, connect.NewServerStreamHandler(playerv1.SubscribeProcedure, svc.Subscribe, opts...))

	return "/" + playerv1.ServiceName + "/", mux
}

// PlayerServiceClient is a client for lorelei.player.v1.PlayerService.
type PlayerServiceClient struct {
	getState        *connect.Client[playerv1.GetStateRequest, playerv1.GetStateResponse]
	play            *connect.Client[playerv1.PlayRequest, playerv1.OperationResponse]
	enqueue         *connect.Client[playerv1.EnqueueRequest, playerv1.OperationResponse]
	playFromQueue   *connect.Client[playerv1.QueuePositionRequest, playerv1.OperationResponse]
	selectFromQueue *connect.Client[playerv1.QueuePositionRequest, playerv1.OperationResponse]
	next            *connect.Client[playerv1.NextRequest, playerv1.OperationResponse]
	previous        *connect.Client[playerv1.PreviousRequest, playerv1.PreviousResponse]
	removeFromQueue *connect.Client[playerv1.QueuePositionRequest, playerv1.OperationResponse]
	clearQueue      *connect.Client[playerv1.ClearQueueRequest, playerv1.OperationResponse]
	dropPlayed      *connect.Client[playerv1.DropPlayedRequest, playerv1.OperationResponse]
	switchMode      *connect.Client[playerv1.SwitchModeRequest, playerv1.OperationResponse]
	editSong        *connect.Client[playerv1.EditSongRequest, playerv1.EditSongResponse]
	deleteSong      *connect.Client[playerv1.DeleteSongRequest, playerv1.OperationResponse]
	refresh         *connect.Client[playerv1.RefreshRequest, playerv1.OperationResponse]
	subscribe       *connect.Client[playerv1.SubscribeRequest, playerv1.Notification]
}

// NewPlayerServiceClient creates a client for the service at baseURL.
func NewPlayerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *PlayerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &PlayerServiceClient{
		getState:        connect.NewClient[playerv1.GetStateRequest, playerv1.GetStateResponse](httpClient, baseURL+playerv1.GetStateProcedure, opts...),
		play:            connect.NewClient[playerv1.PlayRequest, playerv1.OperationResponse](httpClient, baseURL+playerv1.PlayProcedure, opts...),
		enqueue:         connect.NewClient[playerv1.EnqueueRequest, playerv1.OperationResponse](httpClient, baseURL+playerv1.EnqueueProcedure, opts...),
		playFromQueue:   connect.NewClient[playerv1.QueuePositionRequest, playerv1.OperationResponse](httpClient, baseURL+playerv1.PlayFromQueueProcedure, opts...),
		selectFromQueue: connect.NewClient[playerv1.QueuePositionRequest, playerv1.OperationResponse](httpClient, baseURL+playerv1.SelectFromQueueProcedure, opts...),
		next:            connect.NewClient[playerv1.NextRequest, playerv1.OperationResponse](httpClient, baseURL+playerv1.NextProcedure, opts...),
		previous:        connect.NewClient[playerv1.PreviousRequest, playerv1.PreviousResponse](httpClient, baseURL+playerv1.PreviousProcedure, opts...),
		removeFromQueue: connect.NewClient[playerv1.QueuePositionRequest, playerv1.OperationResponse](httpClient, baseURL+playerv1.RemoveFromQueueProcedure, opts...),
		clearQueue:      connect.NewClient[playerv1.ClearQueueRequest, playerv1.OperationResponse](httpClient, baseURL+playerv1.ClearQueueProcedure, opts...),
		dropPlayed:      connect.NewClient[playerv1.DropPlayedRequest, playerv1.OperationResponse](httpClient, baseURL+playerv1.DropPlayedProcedure, opts...),
		switchMode:      connect.NewClient[playerv1.SwitchModeRequest, playerv1.OperationResponse](httpClient, baseURL+playerv1.SwitchModeProcedure, opts...),
		editSong:        connect.NewClient[playerv1.EditSongRequest, playerv1.EditSongResponse](httpClient, baseURL+playerv1.EditSongProcedure, opts...),
		deleteSong:      connect.NewClient[playerv1.DeleteSongRequest, playerv1.OperationResponse](httpClient, baseURL+playerv1.DeleteSongProcedure, opts...),
		refresh:         connect.NewClient[playerv1.RefreshRequest, playerv1.OperationResponse](httpClient, baseURL+playerv1.RefreshProcedure, opts...),
		subscribe:       connect.NewClient[playerv1.SubscribeRequest, playerv1.Notification](httpClient, baseURL+playerv1.SubscribeProcedure, opts...),
	}
}

func (c *PlayerServiceClient) GetState(ctx context.Context, req *connect.Request[playerv1.GetStateRequest]) (*connect.Response[playerv1.GetStateResponse], error) {
	return c.getState.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Play(ctx context.Context, req *connect.Request[playerv1.PlayRequest]) (*connect.Response[playerv1.OperationResponse], error) {
	return c.play.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Enqueue(ctx context.Context, req *connect.Request[playerv1.EnqueueRequest]) (*connect.Response[playerv1.OperationResponse], error) {
	return c.enqueue.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) PlayFromQueue(ctx context.Context, req *connect.Request[playerv1.QueuePositionRequest]) (*connect.Response[playerv1.OperationResponse], error) {
	return c.playFromQueue.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) SelectFromQueue(ctx context.Context, req *connect.Request[playerv1.QueuePositionRequest]) (*connect.Response[playerv1.OperationResponse], error) {
	return c.selectFromQueue.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Next(ctx context.Context, req *connect.Request[playerv1.NextRequest]) (*connect.Response[playerv1.OperationResponse], error) {
	return c.next.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Previous(ctx context.Context, req *connect.Request[playerv1.PreviousRequest]) (*connect.Response[playerv1.PreviousResponse], error) {
	return c.previous.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) RemoveFromQueue(ctx context.Context, req *connect.Request[playerv1.QueuePositionRequest]) (*connect.Response[playerv1.OperationResponse], error) {
	return c.removeFromQueue.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) ClearQueue(ctx context.Context, req *connect.Request[playerv1.ClearQueueRequest]) (*connect.Response[playerv1.OperationResponse], error) {
	return c.clearQueue.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) DropPlayed(ctx context.Context, req *connect.Request[playerv1.DropPlayedRequest]) (*connect.Response[playerv1.OperationResponse], error) {
	return c.dropPlayed.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) SwitchMode(ctx context.Context, req *connect.Request[playerv1.SwitchModeRequest]) (*connect.Response[playerv1.OperationResponse], error) {
	return c.switchMode.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) EditSong(ctx context.Context, req *connect.Request[playerv1.EditSongRequest]) (*connect.Response[playerv1.EditSongResponse], error) {
	return c.editSong.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) DeleteSong(ctx context.Context, req *connect.Request[playerv1.DeleteSongRequest]) (*connect.Response[playerv1.OperationResponse], error) {
	return c.deleteSong.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Refresh(ctx context.Context, req *connect.Request[playerv1.RefreshRequest]) (*connect.Response[playerv1.OperationResponse], error) {
	return c.refresh.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Subscribe(ctx context.Context, req *connect.Request[playerv1.SubscribeRequest]) (*connect.ServerStreamForClient[playerv1.Notification], error) {
	return c.subscribe.CallServerStream(ctx, req)
}
