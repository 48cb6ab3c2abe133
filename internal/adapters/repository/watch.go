package repository

import "sync"

// Hub fans mutation signals out to reactive query subscribers, keyed by
// the owning user. A subscriber holds a 1-buffered signal channel; a
// pending signal is never duplicated, so a burst of writes coalesces
// into one re-query.
type Hub struct {
	mu   sync.Mutex
	subs map[int64]map[chan struct{}]struct{}
}

// NewHub creates an empty watch hub shared by the repositories.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]map[chan struct{}]struct{})}
}

func (h *Hub) subscribe(userID int64) chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan struct{}, 1)
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan struct{}]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	return ch
}

func (h *Hub) unsubscribe(userID int64, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs[userID], ch)
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
}

// notify signals every subscriber interested in userID's rows.
func (h *Hub) notify(userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[userID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
