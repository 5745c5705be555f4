package wintrack

import (
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/monitorctl/internal/logger"
)

const defaultHubCapacity = 16

// Hub fans window events out to named subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event and
// catches up from Latest on its next cycle.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]chan WindowEvent
	cap    int
	latest WindowEvent
	primed bool
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultHubCapacity
	}

	return &Hub{
		subs: make(map[string]chan WindowEvent),
		cap:  capacity,
	}
}

// Subscribe registers a named subscriber and returns its channel and a
// release function. Re-subscribing under an existing name replaces the
// previous subscription.
func (h *Hub) Subscribe(name string) (<-chan WindowEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		ch := make(chan WindowEvent)
		close(ch)
		return ch, func() {}
	}

	if old, ok := h.subs[name]; ok {
		close(old)
	}

	ch := make(chan WindowEvent, h.cap)
	h.subs[name] = ch

	release := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if current, ok := h.subs[name]; ok && current == ch {
			delete(h.subs, name)
			close(ch)
		}
	}

	return ch, release
}

func (h *Hub) Publish(ev WindowEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.latest = ev
	h.primed = true
	h.published.Add(1)

	for name, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
			logger.Debug().Str("subscriber", name).Msg("Subscriber buffer full, event dropped")
		}
	}
}

// Latest returns the most recently published event, if any
func (h *Hub) Latest() (WindowEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.latest, h.primed
}

// Stats reports lifetime publish and drop counts
func (h *Hub) Stats() (published, dropped uint64) {
	return h.published.Load(), h.dropped.Load()
}

// Close releases all subscribers. Subsequent publishes are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for name, ch := range h.subs {
		close(ch)
		delete(h.subs, name)
	}
}
