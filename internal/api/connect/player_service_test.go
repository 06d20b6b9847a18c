package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	playerv1 "github.com/osa030/lorelei/internal/api/playerv1"
	"github.com/osa030/lorelei/internal/api/playerv1/playerv1connect"
	"github.com/osa030/lorelei/internal/app/notification"
	"github.com/osa030/lorelei/internal/app/playback"
	"github.com/osa030/lorelei/internal/domain/song"
)

type memoryStore struct {
	mu        sync.Mutex
	songs     []song.Song
	updateErr error
	removeErr error
}

func (m *memoryStore) FetchAll(context.Context) ([]song.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]song.Song(nil), m.songs...), nil
}

func (m *memoryStore) Update(_ context.Context, id string, patch song.Patch) (song.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return song.Song{}, m.updateErr
	}
	i := song.IndexOf(m.songs, id)
	if i < 0 {
		return song.Song{}, errors.New("not found")
	}
	m.songs[i] = patch.Apply(m.songs[i])
	return m.songs[i], nil
}

func (m *memoryStore) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	i := song.IndexOf(m.songs, id)
	if i < 0 {
		return errors.New("not found")
	}
	m.songs = append(m.songs[:i], m.songs[i+1:]...)
	return nil
}

type harness struct {
	client *playerv1connect.PlayerServiceClient
	store  *memoryStore
	ctrl   *playback.Controller
}

func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()
	store := &memoryStore{}
	for _, id := range ids {
		store.songs = append(store.songs, song.Song{ID: id, Title: "title-" + id, Artist: "artist-" + id, AudioURL: "/uploads/" + id})
	}
	ctrl := playback.NewController(store, playback.Config{RestartThreshold: 3 * time.Second, EventBuffer: 256})
	require.NoError(t, ctrl.Load(context.Background()))

	svc := NewPlayerService(ctrl, notification.NewManager(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	go svc.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-svc.Done()
		ctrl.Close()
	})

	mux := http.NewServeMux()
	path, handler := playerv1connect.NewPlayerServiceHandler(svc)
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &harness{
		client: playerv1connect.NewPlayerServiceClient(srv.Client(), srv.URL),
		store:  store,
		ctrl:   ctrl,
	}
}

func ids(infos []playerv1.SongInfo) []string {
	out := make([]string, len(infos))
	for i, s := range infos {
		out[i] = s.ID
	}
	return out
}

func TestPlayerService_GetState(t *testing.T) {
	h := newHarness(t, "a", "b")
	resp, err := h.client.GetState(context.Background(), connect.NewRequest(&playerv1.GetStateRequest{}))
	require.NoError(t, err)

	st := resp.Msg.State
	assert.Equal(t, []string{"a", "b"}, ids(st.Catalog))
	assert.Empty(t, st.Queue)
	assert.Equal(t, playerv1.ModeCatalog, st.Mode)
	assert.Equal(t, int32(-1), st.Index)
	assert.Nil(t, st.NowPlaying)
}

func TestPlayerService_PlayAndNext(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	ctx := context.Background()

	resp, err := h.client.Play(ctx, connect.NewRequest(&playerv1.PlayRequest{SongID: "b"}))
	require.NoError(t, err)
	require.True(t, resp.Msg.Success)
	require.NotNil(t, resp.Msg.State.NowPlaying)
	assert.Equal(t, "b", resp.Msg.State.NowPlaying.Song.ID)
	assert.Equal(t, "title-b", resp.Msg.State.NowPlaying.Song.Title)
	token := resp.Msg.State.NowPlaying.Token

	next, err := h.client.Next(ctx, connect.NewRequest(&playerv1.NextRequest{}))
	require.NoError(t, err)
	assert.True(t, next.Msg.Success)
	assert.Equal(t, "c", next.Msg.State.NowPlaying.Song.ID)
	assert.Greater(t, next.Msg.State.NowPlaying.Token, token)
	assert.True(t, next.Msg.State.CanStepBack)

	stale, err := h.client.Play(ctx, connect.NewRequest(&playerv1.PlayRequest{SongID: "gone"}))
	require.NoError(t, err)
	assert.False(t, stale.Msg.Success)
	assert.Contains(t, stale.Msg.Message, "gone")
	assert.Equal(t, "c", stale.Msg.State.NowPlaying.Song.ID)
}

func TestPlayerService_InvalidArguments(t *testing.T) {
	h := newHarness(t, "a")
	ctx := context.Background()

	_, err := h.client.Play(ctx, connect.NewRequest(&playerv1.PlayRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = h.client.SwitchMode(ctx, connect.NewRequest(&playerv1.SwitchModeRequest{Mode: "shuffle"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = h.client.Previous(ctx, connect.NewRequest(&playerv1.PreviousRequest{ElapsedMs: -1}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = h.client.EditSong(ctx, connect.NewRequest(&playerv1.EditSongRequest{SongID: "a"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestPlayerService_QueueFlow(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	ctx := context.Background()

	for _, id := range []string{"a", "c", "a"} {
		resp, err := h.client.Enqueue(ctx, connect.NewRequest(&playerv1.EnqueueRequest{SongID: id}))
		require.NoError(t, err)
		require.True(t, resp.Msg.Success)
	}
	resp, err := h.client.Enqueue(ctx, connect.NewRequest(&playerv1.EnqueueRequest{SongID: "zzz"}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Success)
	assert.Equal(t, []string{"a", "c", "a"}, ids(resp.Msg.State.Queue))

	resp, err = h.client.PlayFromQueue(ctx, connect.NewRequest(&playerv1.QueuePositionRequest{Position: 1}))
	require.NoError(t, err)
	require.True(t, resp.Msg.Success)
	assert.Equal(t, playerv1.ModeQueue, resp.Msg.State.Mode)
	assert.Equal(t, int32(1), resp.Msg.State.Index)
	assert.Equal(t, "c", resp.Msg.State.NowPlaying.Song.ID)

	resp, err = h.client.PlayFromQueue(ctx, connect.NewRequest(&playerv1.QueuePositionRequest{Position: 7}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Success)
	assert.Equal(t, int32(1), resp.Msg.State.Index)

	resp, err = h.client.RemoveFromQueue(ctx, connect.NewRequest(&playerv1.QueuePositionRequest{Position: 0}))
	require.NoError(t, err)
	require.True(t, resp.Msg.Success)
	assert.Equal(t, []string{"c", "a"}, ids(resp.Msg.State.Queue))
	assert.Equal(t, int32(0), resp.Msg.State.Index)
	assert.Equal(t, "c", resp.Msg.State.NowPlaying.Song.ID)

	resp, err = h.client.DropPlayed(ctx, connect.NewRequest(&playerv1.DropPlayedRequest{}))
	require.NoError(t, err)
	require.True(t, resp.Msg.Success)
	assert.Equal(t, []string{"a"}, ids(resp.Msg.State.Queue))
	assert.Equal(t, "a", resp.Msg.State.NowPlaying.Song.ID)

	resp, err = h.client.ClearQueue(ctx, connect.NewRequest(&playerv1.ClearQueueRequest{}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Success)
	assert.Empty(t, resp.Msg.State.Queue)
	assert.Equal(t, playerv1.ModeCatalog, resp.Msg.State.Mode)
}

func TestPlayerService_Previous(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	ctx := context.Background()

	_, err := h.client.Play(ctx, connect.NewRequest(&playerv1.PlayRequest{SongID: "b"}))
	require.NoError(t, err)

	resp, err := h.client.Previous(ctx, connect.NewRequest(&playerv1.PreviousRequest{ElapsedMs: 1000}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Success)
	assert.True(t, resp.Msg.Restarted, "fresh selection restarts")
	assert.Equal(t, "b", resp.Msg.State.NowPlaying.Song.ID)

	_, err = h.client.Next(ctx, connect.NewRequest(&playerv1.NextRequest{}))
	require.NoError(t, err)

	resp, err = h.client.Previous(ctx, connect.NewRequest(&playerv1.PreviousRequest{ElapsedMs: 1000}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Restarted)
	assert.Equal(t, "b", resp.Msg.State.NowPlaying.Song.ID)

	resp, err = h.client.Previous(ctx, connect.NewRequest(&playerv1.PreviousRequest{ElapsedMs: 5000}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Restarted, "late in the track restarts")
}

func TestPlayerService_SwitchMode(t *testing.T) {
	h := newHarness(t, "a", "b")
	ctx := context.Background()

	resp, err := h.client.SwitchMode(ctx, connect.NewRequest(&playerv1.SwitchModeRequest{Mode: playerv1.ModeQueue}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Success)
	assert.Equal(t, "queue is empty", resp.Msg.Message)

	_, err = h.client.Enqueue(ctx, connect.NewRequest(&playerv1.EnqueueRequest{SongID: "b"}))
	require.NoError(t, err)
	resp, err = h.client.SwitchMode(ctx, connect.NewRequest(&playerv1.SwitchModeRequest{Mode: playerv1.ModeQueue}))
	require.NoError(t, err)
	require.True(t, resp.Msg.Success)
	assert.Equal(t, playerv1.ModeQueue, resp.Msg.State.Mode)
	assert.Equal(t, "b", resp.Msg.State.NowPlaying.Song.ID)

	resp, err = h.client.SwitchMode(ctx, connect.NewRequest(&playerv1.SwitchModeRequest{Mode: playerv1.ModeCatalog}))
	require.NoError(t, err)
	require.True(t, resp.Msg.Success)
	assert.Equal(t, playerv1.ModeCatalog, resp.Msg.State.Mode)
	assert.Equal(t, int32(1), resp.Msg.State.Index)
}

func TestPlayerService_EditSong(t *testing.T) {
	h := newHarness(t, "a", "b")
	ctx := context.Background()
	_, err := h.client.Enqueue(ctx, connect.NewRequest(&playerv1.EnqueueRequest{SongID: "a"}))
	require.NoError(t, err)

	title := "Renamed"
	resp, err := h.client.EditSong(ctx, connect.NewRequest(&playerv1.EditSongRequest{SongID: "a", Title: &title}))
	require.NoError(t, err)
	require.True(t, resp.Msg.Success)
	require.NotNil(t, resp.Msg.Song)
	assert.Equal(t, "Renamed", resp.Msg.Song.Title)
	assert.Equal(t, "artist-a", resp.Msg.Song.Artist)
	assert.Equal(t, "Renamed", resp.Msg.State.Catalog[0].Title)
	assert.Equal(t, "Renamed", resp.Msg.State.Queue[0].Title)

	h.store.mu.Lock()
	h.store.updateErr = errors.New("catalog unavailable")
	h.store.mu.Unlock()

	other := "Other"
	resp, err = h.client.EditSong(ctx, connect.NewRequest(&playerv1.EditSongRequest{SongID: "a", Title: &other}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Success)
	assert.Contains(t, resp.Msg.Message, "catalog unavailable")
	assert.Equal(t, "Renamed", resp.Msg.State.Catalog[0].Title)
}

func TestPlayerService_DeleteSong(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	ctx := context.Background()
	_, err := h.client.Play(ctx, connect.NewRequest(&playerv1.PlayRequest{SongID: "b"}))
	require.NoError(t, err)

	resp, err := h.client.DeleteSong(ctx, connect.NewRequest(&playerv1.DeleteSongRequest{SongID: "b"}))
	require.NoError(t, err)
	require.True(t, resp.Msg.Success)
	assert.Equal(t, []string{"a", "c"}, ids(resp.Msg.State.Catalog))
	assert.Equal(t, "c", resp.Msg.State.NowPlaying.Song.ID)

	h.store.mu.Lock()
	h.store.removeErr = errors.New("catalog unavailable")
	h.store.mu.Unlock()

	resp, err = h.client.DeleteSong(ctx, connect.NewRequest(&playerv1.DeleteSongRequest{SongID: "a"}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Success)
	assert.Equal(t, []string{"a", "c"}, ids(resp.Msg.State.Catalog))
}

func TestPlayerService_Refresh(t *testing.T) {
	h := newHarness(t, "a")
	h.store.mu.Lock()
	h.store.songs = append(h.store.songs, song.Song{ID: "new", Title: "New"})
	h.store.mu.Unlock()

	resp, err := h.client.Refresh(context.Background(), connect.NewRequest(&playerv1.RefreshRequest{}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Success)
	assert.Equal(t, []string{"a", "new"}, ids(resp.Msg.State.Catalog))
}

func TestPlayerService_Subscribe(t *testing.T) {
	h := newHarness(t, "a", "b")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := h.client.Subscribe(ctx, connect.NewRequest(&playerv1.SubscribeRequest{}))
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive(), "initial state: %v", stream.Err())
	initial := stream.Msg()
	assert.Equal(t, playerv1.NotificationTypeInitialState, initial.Type)
	assert.Equal(t, []string{"a", "b"}, ids(initial.State.Catalog))

	_, err = h.client.Play(ctx, connect.NewRequest(&playerv1.PlayRequest{SongID: "a"}))
	require.NoError(t, err)

	for stream.Receive() {
		n := stream.Msg()
		if n.Type == playback.EventPlaybackRequested.String() {
			assert.Greater(t, n.SequenceNo, initial.SequenceNo)
			assert.Greater(t, n.State.Revision, initial.State.Revision)
			require.NotNil(t, n.State.NowPlaying)
			assert.Equal(t, "a", n.State.NowPlaying.Song.ID)
			return
		}
	}
	t.Fatalf("stream ended before playback notification: %v", stream.Err())
}
