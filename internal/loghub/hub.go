// Package loghub implements the many-producer, many-subscriber log fan-out
// described in spec §4.4: a bounded ring-buffer history with best-effort
// WebSocket broadcast.
package loghub

import (
	"sync"
	"time"

	"github.com/catalystcommunity/enginectl/internal/metrics"
)

// Entry is one log line with its classifying tag.
type Entry struct {
	Timestamp float64 `json:"timestamp"`
	Tag       string  `json:"tag"`
	Message   string  `json:"message"`
}

// Subscriber is anything that can receive a broadcast entry and report
// failure. The WebSocket transport adapter in internal/handlers implements
// this over a gorilla/websocket connection.
type Subscriber interface {
	Send(Entry) error
	Close()
}

// Hub is the thread-safe log collector. Emit is callable from any
// goroutine, including non-cooperative worker-pool goroutines; it never
// blocks on subscriber slowness. A single dedicated broadcast goroutine
// stands in for the source's "schedule on the cooperative event loop"
// primitive, so worker threads never touch the subscriber set directly.
type Hub struct {
	mu      sync.Mutex
	history []Entry
	maxHist int

	subMu       sync.Mutex
	subscribers map[Subscriber]struct{}

	broadcastCh chan Entry
	closeOnce   sync.Once
	done        chan struct{}
}

// New constructs a Hub bounded to maxHistory entries and starts its
// broadcast dispatcher goroutine.
func New(maxHistory int) *Hub {
	h := &Hub{
		maxHist:     maxHistory,
		subscribers: make(map[Subscriber]struct{}),
		broadcastCh: make(chan Entry, 256),
		done:        make(chan struct{}),
	}
	go h.dispatch()
	return h
}

// Emit appends an entry to history and schedules it for broadcast. O(1);
// it does not wait for subscribers to receive it.
func (h *Hub) Emit(message, tag string) {
	entry := Entry{Timestamp: float64(time.Now().UnixNano()) / 1e9, Tag: tag, Message: message}
	metrics.RecordLogEntry(tag)

	h.mu.Lock()
	h.history = append(h.history, entry)
	if len(h.history) > h.maxHist {
		h.history = h.history[len(h.history)-h.maxHist:]
	}
	h.mu.Unlock()

	select {
	case h.broadcastCh <- entry:
	case <-h.done:
	default:
		// Dispatcher is momentarily behind; drop broadcast for this entry
		// rather than block the emitter. History already has it, so
		// replay on subscribe still surfaces it to new subscribers.
	}
}

// dispatch is the single goroutine that owns the subscriber set's write
// path, serializing broadcast order to match emission order.
func (h *Hub) dispatch() {
	for {
		select {
		case entry := <-h.broadcastCh:
			h.broadcast(entry)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) broadcast(entry Entry) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	var dead []Subscriber
	for sub := range h.subscribers {
		if err := sub.Send(entry); err != nil {
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		delete(h.subscribers, sub)
	}
}

// Subscribe registers a subscriber for live broadcast.
func (h *Hub) Subscribe(sub Subscriber) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.subscribers[sub] = struct{}{}
}

// Unsubscribe removes a subscriber.
func (h *Hub) Unsubscribe(sub Subscriber) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	delete(h.subscribers, sub)
}

// CloseAll closes every subscriber and clears the subscriber set.
func (h *Hub) CloseAll() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for sub := range h.subscribers {
		sub.Close()
	}
	h.subscribers = make(map[Subscriber]struct{})
}

// Shutdown stops the dispatcher goroutine. Intended for test teardown and
// process shutdown, not part of the spec surface.
func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Recent returns up to limit most recent entries, optionally filtered by
// tag, newest-last (matching emission order).
func (h *Hub) Recent(limit int, tag string) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	var filtered []Entry
	if tag == "" {
		filtered = h.history
	} else {
		filtered = make([]Entry, 0, len(h.history))
		for _, e := range h.history {
			if e.Tag == tag {
				filtered = append(filtered, e)
			}
		}
	}

	if limit <= 0 || limit >= len(filtered) {
		out := make([]Entry, len(filtered))
		copy(out, filtered)
		return out
	}
	out := make([]Entry, limit)
	copy(out, filtered[len(filtered)-limit:])
	return out
}
