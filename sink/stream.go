package sink

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// subscriptionBuffer is the per-subscriber channel depth. A consumer
// that falls this far behind starts losing events.
const subscriptionBuffer = 16

// hub fans accepted-report summaries out to stream subscribers.
type hub struct {
	mu   sync.RWMutex
	subs map[string]chan Summary
	log  zerolog.Logger
}

func newHub(log zerolog.Logger) *hub {
	return &hub{
		subs: make(map[string]chan Summary),
		log:  log,
	}
}

// subscribe registers a new subscriber and returns its id and channel.
func (h *hub) subscribe() (string, <-chan Summary) {
	id := uuid.NewString()
	ch := make(chan Summary, subscriptionBuffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return id, ch
}

// unsubscribe removes a subscriber and closes its channel.
func (h *hub) unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		close(ch)
	}
}

// broadcast sends a summary to every subscriber. Full channels drop
// the event rather than block ingestion.
func (h *hub) broadcast(summary Summary) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- summary:
		default:
			h.log.Debug().Str("subscription", id).Msg("dropped stream event (channel full)")
		}
	}
}

// count returns the number of active subscribers.
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// closeAll removes every subscriber and closes their channels.
func (h *hub) closeAll() {
	h.mu.Lock()
	subs := make([]chan Summary, 0, len(h.subs))
	for _, ch := range h.subs {
		subs = append(subs, ch)
	}
	h.subs = make(map[string]chan Summary)
	h.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}
