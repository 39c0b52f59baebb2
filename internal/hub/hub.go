package hub

import (
	"encoding/json"
	"log"
	"sync"
)

// Event types pushed to subscribers.
const (
	EventMatchFound       = "match_found"
	EventPhaseChanged     = "phase_changed"
	EventVoteTallyChanged = "vote_tally_changed"
	EventMatchCompleted   = "match_completed"
	EventRematchOffered   = "rematch_offered"
)

// Event represents a real-time event to be sent to clients. Seq is a per-topic
// monotonic sequence number; delivery is at-least-once and events carry the
// resulting state, so clients drop anything with a seq they have already seen.
type Event struct {
	Type    string      `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

// Client represents a single subscriber connection (a player or viewer).
// It's essentially a channel that the SSE handler will listen to.
type Client chan []byte

// MatchTopic returns the topic carrying all events for one match.
func MatchTopic(matchID string) string {
	return "match:" + matchID
}

// QueueTopic returns the per-user topic carrying queue events (match found).
func QueueTopic(userID string) string {
	return "queue:" + userID
}

// Hub manages all active topics and their clients.
type Hub struct {
	topics map[string]map[Client]bool
	seqs   map[string]uint64
	mu     sync.Mutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[Client]bool),
		seqs:   make(map[string]uint64),
	}
}

// Subscribe adds a new client to a topic.
func (h *Hub) Subscribe(topic string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[Client]bool)
	}
	h.topics[topic][client] = true
}

// Unsubscribe removes a client from a topic.
func (h *Hub) Unsubscribe(topic string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.topics[topic]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client) // Close the channel to signal the SSE handler to stop.
			if len(clients) == 0 {
				delete(h.topics, topic)
			}
		}
	}
}

// Broadcast sends an event to all clients of a topic. The seq is assigned
// under the hub lock, so within one topic events are delivered in the same
// order their transitions occurred.
func (h *Hub) Broadcast(topic string, eventType string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seqs[topic]++
	event := Event{
		Type:    eventType,
		Seq:     h.seqs[topic],
		Payload: payload,
	}

	messageBytes, err := json.Marshal(event)
	if err != nil {
		log.Printf("hub: failed to marshal %s event: %v", eventType, err)
		return
	}

	for client := range h.topics[topic] {
		// Use a non-blocking send to prevent a slow client from blocking the hub.
		select {
		case client <- messageBytes:
		default:
			// Client channel is full, maybe they are disconnected or slow.
			// The unsubscribe logic will handle cleaning this up eventually.
		}
	}
}
