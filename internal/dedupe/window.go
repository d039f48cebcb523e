// ABOUTME: Thread-safe TTL window for deduplicating inbound chat deliveries.
// ABOUTME: Webhook-style ingress retries the same delivery; only one may process.

package dedupe

import (
	"container/list"
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

// windowEntry stores the timestamp and list element for a tracked delivery.
type windowEntry struct {
	timestamp time.Time
	element   *list.Element
}

// Window tracks recently seen delivery keys for a TTL, bounded in size.
// A doubly-linked list keeps insertion order for O(1) eviction of the
// oldest entry when the window is full.
type Window struct {
	mu      sync.Mutex
	seen    map[string]*windowEntry
	order   *list.List // delivery keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewWindow creates a dedupe window with the given TTL and maximum size.
// A background goroutine periodically drops expired entries.
func NewWindow(ttl time.Duration, maxSize int) *Window {
	w := &Window{
		seen:    make(map[string]*windowEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go w.sweep()
	return w
}

// DeliveryKey derives the dedupe key for one inbound message delivery.
func DeliveryKey(tenantID, customerID, message string) string {
	h := fnv.New64a()
	h.Write([]byte(message))
	return tenantID + "/" + customerID + "/" + strconv.FormatUint(h.Sum64(), 16)
}

// Duplicate atomically checks whether the key was seen within the TTL and
// marks it if not. Returns true for a duplicate delivery, false when the
// key is new and now tracked. Check and mark are one critical section so
// two concurrent retries cannot both pass.
func (w *Window) Duplicate(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry, ok := w.seen[key]
	if ok && time.Since(entry.timestamp) < w.ttl {
		return true
	}

	w.track(key)
	return false
}

// track records a key. Must be called with mu held.
func (w *Window) track(key string) {
	now := time.Now()

	// An expired key is refreshed in place and moved to the back
	if entry, exists := w.seen[key]; exists {
		entry.timestamp = now
		w.order.MoveToBack(entry.element)
		return
	}

	if len(w.seen) >= w.maxSize {
		w.evictOldest()
	}

	elem := w.order.PushBack(key)
	w.seen[key] = &windowEntry{
		timestamp: now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (w *Window) evictOldest() {
	front := w.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	w.order.Remove(front)
	delete(w.seen, key)
}

// sweep periodically removes expired entries.
func (w *Window) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.removeExpired()
		case <-w.done:
			return
		}
	}
}

func (w *Window) removeExpired() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for key, entry := range w.seen {
		if now.Sub(entry.timestamp) > w.ttl {
			w.order.Remove(entry.element)
			delete(w.seen, key)
		}
	}
}

// Len returns the number of tracked keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Close stops the background sweep goroutine. Safe to call multiple times.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		close(w.done)
		w.closed = true
	}
}
