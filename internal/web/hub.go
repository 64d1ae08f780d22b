// Package web serves the chat endpoint and a live SSE feed of agent loop
// events.
package web

import (
	"sync"
	"time"
)

const maxHistory = 200

// Event is a single event broadcast to SSE clients.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Time    string `json:"time"`
	Data    any    `json:"data,omitempty"`
}

// EventHub broadcasts orchestrator events to connected SSE clients.
type EventHub struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
	history []Event
}

// NewEventHub creates a new event hub.
func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[chan Event]struct{}),
		history: make([]Event, 0, maxHistory),
	}
}

// Publish sends an event to all connected clients and stores it in history.
func (h *EventHub) Publish(e Event) {
	if e.Time == "" {
		e.Time = time.Now().Format(time.RFC3339)
	}

	h.mu.Lock()
	if len(h.history) >= maxHistory {
		h.history = h.history[1:]
	}
	h.history = append(h.history, e)
	h.mu.Unlock()

	h.mu.RLock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
			// slow client, drop rather than stall a chat request
		}
	}
	h.mu.RUnlock()
}

// Listener adapts the hub to chat.Orchestrator.OnEvent.
func (h *EventHub) Listener() func(eventType, message string, data any) {
	return func(eventType, message string, data any) {
		h.Publish(Event{Type: eventType, Message: message, Data: data})
	}
}

// History returns a copy of the retained events, oldest first.
func (h *EventHub) History() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Event, len(h.history))
	copy(out, h.history)
	return out
}

// Subscribe returns a channel of events and an unsubscribe function.
// The caller receives a replay of recent history followed by live events.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	snapshot := make([]Event, len(h.history))
	copy(snapshot, h.history)
	// Room for the full replay so history never races live events.
	ch := make(chan Event, len(snapshot)+64)
	for _, e := range snapshot {
		ch <- e
	}
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, unsubscribe
}
