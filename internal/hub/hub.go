package hub

import (
	"encoding/json"
	"log"
	"sync"
)

// Stream identifies one of the realtime event streams a client can attach
// to. Each (stream, user) pair forms a broadcast group, so multiple
// simultaneous connections from the same user (e.g. multiple tabs) all
// receive every event addressed to them.
type Stream string

const (
	StreamPairing      Stream = "pairing"
	StreamDiscussion   Stream = "discussion"
	StreamNotification Stream = "notification"
)

// Event is the server-to-client message envelope.
type Event struct {
	Status    string      `json:"status,omitempty"`
	EventType string      `json:"event_type"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Success builds a success event for the given event type.
func Success(eventType string, data interface{}) Event {
	return Event{Status: "success", EventType: eventType, Data: data}
}

// Error builds a structured error event.
func Error(message string) Event {
	return Event{Status: "error", Message: message}
}

// Client represents a single client connection. It's essentially a channel
// the websocket write pump listens to.
type Client chan []byte

type groupKey struct {
	stream Stream
	userID uint
}

// Hub is the per-user connection registry. Fan-out is best effort: a slow
// client is skipped rather than blocking the hub, and group membership is
// not part of any locking discipline.
type Hub struct {
	groups map[groupKey]map[Client]bool
	mu     sync.RWMutex

	bridge *RedisBridge
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		groups: make(map[groupKey]map[Client]bool),
	}
}

// Subscribe adds a client connection to a user's group on a stream.
func (h *Hub) Subscribe(stream Stream, userID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := groupKey{stream, userID}
	if _, ok := h.groups[key]; !ok {
		h.groups[key] = make(map[Client]bool)
	}
	h.groups[key][client] = true
}

// Unsubscribe removes a client from a user's group and closes its channel.
func (h *Hub) Unsubscribe(stream Stream, userID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := groupKey{stream, userID}
	if clients, ok := h.groups[key]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client) // Signal the write pump to stop.
			if len(clients) == 0 {
				delete(h.groups, key)
			}
		}
	}
}

// Publish sends an event to every connection a user holds on a stream.
// With a Redis bridge attached the event goes through pub/sub so that it
// also reaches connections held on other instances; local delivery then
// happens in the bridge's receive loop.
func (h *Hub) Publish(stream Stream, userID uint, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("hub: failed to marshal event %q: %v", event.EventType, err)
		return
	}

	h.mu.RLock()
	bridge := h.bridge
	h.mu.RUnlock()

	if bridge != nil {
		if err := bridge.publish(stream, userID, payload); err != nil {
			log.Printf("hub: redis publish failed, delivering locally: %v", err)
			h.deliverLocal(stream, userID, payload)
		}
		return
	}

	h.deliverLocal(stream, userID, payload)
}

func (h *Hub) deliverLocal(stream Stream, userID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.groups[groupKey{stream, userID}]; ok {
		for client := range clients {
			// Non-blocking send so a slow client cannot stall the hub.
			select {
			case client <- payload:
			default:
			}
		}
	}
}
