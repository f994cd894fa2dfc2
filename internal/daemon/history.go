package daemon

import (
	"sync"

	"github.com/danmuck/regis/internal/protocol/schema"
)

const DefaultHistorySize = 256

// History keeps the most recent snapshots in arrival order.
type History struct {
	mu    sync.RWMutex
	items []schema.CollectedMetrics
	start int
	count int
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{items: make([]schema.CollectedMetrics, size)}
}

func (h *History) Record(m schema.CollectedMetrics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx := (h.start + h.count) % len(h.items)
	h.items[idx] = m
	if h.count < len(h.items) {
		h.count++
		return
	}
	h.start = (h.start + 1) % len(h.items)
}

func (h *History) Latest() (schema.CollectedMetrics, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.count == 0 {
		return schema.CollectedMetrics{}, false
	}
	return h.items[(h.start+h.count-1)%len(h.items)], true
}

// Recent returns up to n snapshots, oldest first.
func (h *History) Recent(n int) []schema.CollectedMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n = min(max(n, 0), h.count)
	out := make([]schema.CollectedMetrics, n)
	first := h.start + h.count - n
	for i := range out {
		out[i] = h.items[(first+i)%len(h.items)]
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *History) Cap() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Resize changes capacity and keeps the newest snapshots that still fit.
func (h *History) Resize(size int) {
	if size <= 0 {
		size = DefaultHistorySize
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if size == len(h.items) {
		return
	}
	keep := min(h.count, size)
	items := make([]schema.CollectedMetrics, size)
	first := h.start + h.count - keep
	for i := 0; i < keep; i++ {
		items[i] = h.items[(first+i)%len(h.items)]
	}
	h.items = items
	h.start = 0
	h.count = keep
}
