package executor

import (
	"sync"
	"time"

	"github.com/seantiz/tatool/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// closedRetention is how long a closed topic is kept for late subscribers.
// A subscriber arriving later than this finds the session's terminal status
// in the store instead.
const closedRetention = time.Minute

// EventBroker fans out session lifecycle events to live subscribers.
// It is safe for concurrent use.
//
// Closed topics are kept as markers for closedRetention so that subscribing
// just after a session ended yields a closed channel instead of one that
// never delivers. Expired markers are pruned on Close.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
	now    func() time.Time
}

type eventTopic struct {
	subs     map[int]chan model.Event
	nextID   int
	closed   bool
	closedAt time.Time
}

// NewEventBroker creates a new event broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		topics: make(map[string]*eventTopic),
		now:    time.Now,
	}
}

// Subscribe returns a channel of events for the given session and an
// unsubscribe function. If the session has already ended the channel is
// closed.
func (b *EventBroker) Subscribe(sessionID string) (<-chan model.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[sessionID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan model.Event)}
		b.topics[sessionID] = t
	}

	ch := make(chan model.Event, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(ch)
		}
		if !t.closed && len(t.subs) == 0 && b.topics[sessionID] == t {
			delete(b.topics, sessionID)
		}
	}
}

// Publish sends e to every subscriber of its session. Subscribers whose
// buffers are full miss the event.
func (b *EventBroker) Publish(e model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[e.SessionID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close ends the stream for a session. Subscriber channels are closed and
// subscribers arriving within closedRetention get a closed channel.
func (b *EventBroker) Close(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.prune(now)

	t, ok := b.topics[sessionID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan model.Event)}
		b.topics[sessionID] = t
	}

	t.closed = true
	t.closedAt = now
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}

// prune drops closed topics older than closedRetention. b.mu must be held.
func (b *EventBroker) prune(now time.Time) {
	for id, t := range b.topics {
		if t.closed && now.Sub(t.closedAt) > closedRetention {
			delete(b.topics, id)
		}
	}
}
