package notification

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	playerv1 "github.com/osa030/lorelei/internal/api/playerv1"
)

type recordingStream struct {
	mu    sync.Mutex
	got   []*playerv1.Notification
	err   error
	block chan struct{}
}

func (s *recordingStream) Send(n *playerv1.Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, n)
	return nil
}

func (s *recordingStream) received() []*playerv1.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*playerv1.Notification(nil), s.got...)
}

func subscribe(t *testing.T, m *Manager, s Stream) string {
	t.Helper()
	id, err := m.Subscribe(s, nil)
	require.NoError(t, err)
	return id
}

func initialState(revision uint64) func() *playerv1.Notification {
	return func() *playerv1.Notification {
		return &playerv1.Notification{
			Type:  playerv1.NotificationTypeInitialState,
			State: &playerv1.PlayerState{Revision: revision},
		}
	}
}

func TestManager_SubscribeUnsubscribe(t *testing.T) {
	m := NewManager(0)
	a := subscribe(t, m, &recordingStream{})
	b := subscribe(t, m, &recordingStream{})
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, m.SubscriberCount())

	m.Unsubscribe(a)
	m.Unsubscribe("unknown")
	assert.Equal(t, 1, m.SubscriberCount())

	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_BroadcastStampsSequence(t *testing.T) {
	m := NewManager(0)
	s1 := &recordingStream{}
	s2 := &recordingStream{}
	subscribe(t, m, s1)
	subscribe(t, m, s2)

	m.Broadcast(&playerv1.Notification{Type: "queue_changed"})
	m.Broadcast(&playerv1.Notification{Type: "selection_changed"})

	for _, s := range []*recordingStream{s1, s2} {
		got := s.received()
		require.Len(t, got, 2)
		assert.Equal(t, uint64(1), got[0].SequenceNo)
		assert.Equal(t, uint64(2), got[1].SequenceNo)
	}
}

func TestManager_BroadcastDropsFailingSubscriber(t *testing.T) {
	m := NewManager(0)
	ok := &recordingStream{}
	subscribe(t, m, ok)
	subscribe(t, m, &recordingStream{err: errors.New("stream closed")})

	m.Broadcast(&playerv1.Notification{Type: "queue_changed"})

	assert.Equal(t, 1, m.SubscriberCount())
	assert.Len(t, ok.received(), 1)
}

func TestManager_BroadcastSlowSubscriberTimesOut(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	fast := &recordingStream{}
	subscribe(t, m, slow)
	subscribe(t, m, fast)

	start := time.Now()
	m.Broadcast(&playerv1.Notification{Type: "queue_changed"})

	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, fast.received(), 1)
	assert.Equal(t, 2, m.SubscriberCount())
}

func TestManager_SubscribeSendsInitialFirst(t *testing.T) {
	m := NewManager(0)
	subscribe(t, m, &recordingStream{})
	m.Broadcast(&playerv1.Notification{Type: "queue_changed"})

	s := &recordingStream{}
	_, err := m.Subscribe(s, initialState(3))
	require.NoError(t, err)
	m.Broadcast(&playerv1.Notification{Type: "selection_changed", State: &playerv1.PlayerState{Revision: 4}})

	got := s.received()
	require.Len(t, got, 2)
	assert.Equal(t, playerv1.NotificationTypeInitialState, got[0].Type)
	assert.Equal(t, uint64(2), got[0].SequenceNo)
	assert.Equal(t, "selection_changed", got[1].Type)
	assert.Equal(t, uint64(3), got[1].SequenceNo)
}

func TestManager_SubscribeInitialSendFails(t *testing.T) {
	m := NewManager(0)
	_, err := m.Subscribe(&recordingStream{err: errors.New("stream closed")}, initialState(1))
	require.Error(t, err)
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_BroadcastWaitsForInitialSend(t *testing.T) {
	m := NewManager(time.Second)
	s := &recordingStream{block: make(chan struct{})}

	subscribed := make(chan error, 1)
	go func() {
		_, err := m.Subscribe(s, initialState(1))
		subscribed <- err
	}()
	require.Eventually(t, func() bool { return m.SubscriberCount() == 1 }, time.Second, time.Millisecond)

	broadcast := make(chan struct{})
	go func() {
		m.Broadcast(&playerv1.Notification{Type: "queue_changed", State: &playerv1.PlayerState{Revision: 2}})
		close(broadcast)
	}()

	close(s.block)
	require.NoError(t, <-subscribed)
	<-broadcast

	got := s.received()
	require.Len(t, got, 2)
	assert.Equal(t, playerv1.NotificationTypeInitialState, got[0].Type)
	assert.Equal(t, "queue_changed", got[1].Type)
	assert.Less(t, got[0].SequenceNo, got[1].SequenceNo)
}

func TestManager_SkipsStateOlderThanInitial(t *testing.T) {
	m := NewManager(0)
	s := &recordingStream{}
	_, err := m.Subscribe(s, initialState(5))
	require.NoError(t, err)

	// Published before the initial snapshot was taken
	m.Broadcast(&playerv1.Notification{Type: "queue_changed", State: &playerv1.PlayerState{Revision: 4}})
	m.Broadcast(&playerv1.Notification{Type: "queue_changed", State: &playerv1.PlayerState{Revision: 5}})
	m.Broadcast(&playerv1.Notification{Type: "selection_changed", State: &playerv1.PlayerState{Revision: 6}})

	got := s.received()
	require.Len(t, got, 2)
	assert.Equal(t, uint64(5), got[0].State.Revision)
	assert.Equal(t, uint64(6), got[1].State.Revision)
}
