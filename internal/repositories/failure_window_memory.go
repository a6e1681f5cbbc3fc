package repositories

import (
	"context"
	"sync"
	"time"
)

// MemoryFailureWindow is the single-process failure window used in
// development and tests. TTLs are not tracked; stale entries are pruned on read.
type MemoryFailureWindow struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

func NewMemoryFailureWindow() *MemoryFailureWindow {
	return &MemoryFailureWindow{entries: make(map[string][]time.Time)}
}

func (w *MemoryFailureWindow) Failures(_ context.Context, key string, since time.Time) ([]time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.entries[key][:0]
	for _, at := range w.entries[key] {
		if at.After(since) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(w.entries, key)
		return nil, nil
	}
	w.entries[key] = kept

	out := make([]time.Time, len(kept))
	copy(out, kept)
	return out, nil
}

func (w *MemoryFailureWindow) Add(_ context.Context, key string, at time.Time, _ time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// keep ascending order even if clocks hand us an older timestamp
	list := w.entries[key]
	i := len(list)
	for i > 0 && list[i-1].After(at) {
		i--
	}
	list = append(list, time.Time{})
	copy(list[i+1:], list[i:])
	list[i] = at
	w.entries[key] = list
	return nil
}

func (w *MemoryFailureWindow) Reset(_ context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.entries, key)
	return nil
}
