package snapshot

import (
	"sync"

	"github.com/google/uuid"
)

// Hub fans out "snapshot changed" notifications to in-process watchers.
type Hub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[chan struct{}]struct{})}
}

// Subscribe registers a watcher for lobbyID. The channel holds at most one
// pending notification. Call the returned func to unsubscribe.
func (h *Hub) Subscribe(lobbyID uuid.UUID) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	if h.subs[lobbyID] == nil {
		h.subs[lobbyID] = make(map[chan struct{}]struct{})
	}
	h.subs[lobbyID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[lobbyID], ch)
			if len(h.subs[lobbyID]) == 0 {
				delete(h.subs, lobbyID)
			}
		})
	}
}

// Notify wakes every watcher of lobbyID without blocking.
func (h *Hub) Notify(lobbyID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[lobbyID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watchers returns the number of subscribers for lobbyID.
func (h *Hub) Watchers(lobbyID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[lobbyID])
}
