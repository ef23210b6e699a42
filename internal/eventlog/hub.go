package eventlog

import (
	"sync"

	"example.com/clocksim/internal/types"
)

// Hub fans recorded events out to live subscribers. Slow subscribers miss
// events instead of stalling the runtime.
type Hub struct {
	subMu sync.RWMutex
	subs  map[chan types.Record]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan types.Record]struct{})}
}

func (h *Hub) Publish(rec types.Record) {
	h.subMu.RLock()
	for ch := range h.subs {
		select {
		case ch <- rec:
		default:
		}
	}
	h.subMu.RUnlock()
}

func (h *Hub) Subscribe() (<-chan types.Record, func()) {
	ch := make(chan types.Record, 256)
	h.subMu.Lock()
	h.subs[ch] = struct{}{}
	h.subMu.Unlock()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.subMu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (h *Hub) Subscribers() int {
	h.subMu.RLock()
	defer h.subMu.RUnlock()
	return len(h.subs)
}
