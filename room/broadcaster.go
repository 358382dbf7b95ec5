// Broadcaster fans a room's outbound frames out to its connected players
// without ever blocking the tick loop on a slow or wedged reader. This
// mirrors root_view.fanIn/batchify's spirit of coalescing per-key updates
// before a channel consumer falls behind, adapted here to per-connection
// fan-out instead of per-element batching: each subscriber gets its own
// small buffered channel, and a full channel is a dropped frame, never a
// blocked tick, per spec.md §5 ("ticks must not block on network I/O;
// broadcasting is fire-and-forget").
package room

import "sync"

// outboundBufferSize bounds how many frames may queue for a slow
// subscriber before newer frames start being dropped in its favor.
const outboundBufferSize = 8

// Broadcaster is a dynamic, fire-and-forget pub-sub fan-out for one room's
// outbound messages. Any concrete message type may be published; messages
// are typically one of FullState, DeltaFrame, GameOverFrame, or TimerFrame,
// wrapped by the transport layer with an event name before going out the
// wire.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string]chan interface{}
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]chan interface{})}
}

// Subscribe registers connectionID and returns the channel it should drain.
// Calling Subscribe again for an already-registered connection replaces its
// channel.
func (b *Broadcaster) Subscribe(connectionID string) <-chan interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan interface{}, outboundBufferSize)
	b.subs[connectionID] = ch
	return ch
}

// Unsubscribe removes and closes connectionID's channel.
func (b *Broadcaster) Unsubscribe(connectionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[connectionID]; ok {
		delete(b.subs, connectionID)
		close(ch)
	}
}

// Publish fans msg out to every current subscriber. A subscriber whose
// buffer is full has the frame dropped for it rather than stalling the
// caller; the next tick's frame will carry the current truth regardless.
func (b *Broadcaster) Publish(msg interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// PublishTo sends msg to a single subscriber only, used for
// requestGameState's connection-scoped reply. Also non-blocking.
func (b *Broadcaster) PublishTo(connectionID string, msg interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[connectionID]; ok {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Close unsubscribes and closes every remaining subscriber channel, used at
// room teardown.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
