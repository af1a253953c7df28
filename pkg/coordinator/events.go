package coordinator

import (
	"sync"

	"github.com/driftmirror/driftmirror/pkg/indexer"
	"github.com/driftmirror/driftmirror/pkg/syncengine"
)

// EventKind tags the variant of an Event, corresponding to the streaming
// event names of spec §6: "syncProgress, syncStatusChanged, indexReady,
// configUpdated, stateChanged".
type EventKind string

const (
	EventSyncProgress     EventKind = "syncProgress"
	EventSyncStatusChanged EventKind = "syncStatusChanged"
	EventIndexReady       EventKind = "indexReady"
	EventConfigUpdated    EventKind = "configUpdated"
	EventStateChanged     EventKind = "stateChanged"
)

// Event is a single immutable progress/state snapshot, replacing the
// reference implementation's mutable observable objects with the broadcast
// channel of immutable snapshots called for by spec §9.
type Event struct {
	Kind         EventKind
	SyncPairID   string
	SyncProgress *syncengine.Progress
	IndexProgress *indexer.Progress
}

// broadcaster fans a single stream of Events out to any number of
// subscribers, implementing the Coordinator's "progress fan-out"
// responsibility (spec §4.7). Slow subscribers never block publication:
// each subscriber has a small buffer and drops events once full, which is
// safe because every event is idempotent and recoverable by a fresh status
// query (spec §6's "missed updates are safe").
type broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan Event]bool
	closed      bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subscribers: make(map[chan Event]bool)}
}

// subscribe registers a new subscriber and returns its event channel along
// with an unsubscribe function.
func (b *broadcaster) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subscribers[ch] = true
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.subscribers[ch] {
				delete(b.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, unsubscribe
}

// publish delivers event to every current subscriber, dropping it for any
// subscriber whose buffer is full.
func (b *broadcaster) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// close terminates every subscriber's channel, used during Coordinator
// shutdown.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}
