// Package notification fans player state changes out to subscribed streams.
package notification

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	playerv1 "github.com/osa030/lorelei/internal/api/playerv1"
)

// DefaultSendTimeout bounds a single stream send during Broadcast.
const DefaultSendTimeout = 500 * time.Millisecond

// Stream is the sending half of a subscriber's connection.
type Stream interface {
	Send(*playerv1.Notification) error
}

// subscriber delivers to one stream in sequence order. A notification older than
// what the stream already holds, by sequence number or by state revision, is skipped.
type subscriber struct {
	id     string
	stream Stream

	mu        sync.Mutex
	delivered bool
	lastSeq   uint64
	lastRev   uint64
}

func (s *subscriber) deliver(n *playerv1.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliverLocked(n)
}

func (s *subscriber) deliverLocked(n *playerv1.Notification) error {
	if s.delivered {
		if n.SequenceNo <= s.lastSeq {
			return nil
		}
		if n.State != nil && n.State.Revision <= s.lastRev {
			return nil
		}
	}
	if err := s.stream.Send(n); err != nil {
		return err
	}
	s.delivered = true
	s.lastSeq = n.SequenceNo
	if n.State != nil {
		s.lastRev = n.State.Revision
	}
	return nil
}

// Manager owns the subscriber set and the sequence counter shared by every
// notification it hands out.
type Manager struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	seq         uint64
	sendTimeout time.Duration
}

// NewManager creates a new notification manager.
// A non-positive sendTimeout selects DefaultSendTimeout.
func NewManager(sendTimeout time.Duration) *Manager {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Manager{
		subscribers: make(map[string]*subscriber),
		sendTimeout: sendTimeout,
	}
}

// Subscribe registers stream and returns its subscription ID.
//
// When initial is non-nil it is called while the subscriber set is locked, and
// its result is sent before anything else reaches the stream. Every later
// broadcast therefore carries a higher sequence number. If that first send
// fails the stream is not registered.
func (m *Manager) Subscribe(stream Stream, initial func() *playerv1.Notification) (string, error) {
	sub := &subscriber{id: uuid.New().String(), stream: stream}

	// Held until the initial notification is out; broadcasts wait on it.
	sub.mu.Lock()
	defer sub.mu.Unlock()

	var first *playerv1.Notification
	m.mu.Lock()
	if initial != nil {
		first = initial()
		m.seq++
		first.SequenceNo = m.seq
	}
	m.subscribers[sub.id] = sub
	total := len(m.subscribers)
	m.mu.Unlock()

	if first != nil {
		if err := sub.deliverLocked(first); err != nil {
			m.Unsubscribe(sub.id)
			return "", errors.Wrap(err, "failed to send initial notification")
		}
	}

	zlog.Debug().Msgf("notification: subscribed %s (total=%d)", sub.id, total)
	return sub.id, nil
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, subscriptionID)
}

// Broadcast stamps n with the next sequence number and sends it to every
// subscriber. It returns once each send has finished or timed out.
//
// A failed send drops the subscriber. A timed-out one stays subscribed.
func (m *Manager) Broadcast(n *playerv1.Notification) {
	m.mu.Lock()
	m.seq++
	n.SequenceNo = m.seq
	targets := make([]*subscriber, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		targets = append(targets, sub)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, sub := range targets {
		sub := sub
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.deliver(sub, n)
		}()
	}
	wg.Wait()
}

func (m *Manager) deliver(sub *subscriber, n *playerv1.Notification) {
	result := make(chan error, 1)
	go func() {
		result <- sub.deliver(n)
	}()

	timer := time.NewTimer(m.sendTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if err != nil {
			zlog.Debug().Err(err).Msgf("notification: dropping subscriber %s", sub.id)
			m.Unsubscribe(sub.id)
		}
	case <-timer.C:
		zlog.Warn().Msgf("notification: send to %s timed out (seq=%d)", sub.id, n.SequenceNo)
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Close forgets every subscriber.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = make(map[string]*subscriber)
}
