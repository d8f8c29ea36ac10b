package server

import (
	"encoding/json"
	"sync"
)

// Event types pushed to game subscribers. The stream is a notification
// channel, not a durable log: clients re-fetch progress and standings on
// every reconnect.
const (
	EventProgressChanged  = "progress-changed"
	EventStandingsChanged = "standings-changed"
	EventTeamFinished     = "team-finished"
	EventPresenceChanged  = "presence-changed"
	EventChatMessage      = "chat-message"
)

// Event is the envelope published to game subscribers.
type Event struct {
	Type    string `json:"type"`
	GameID  string `json:"gameId"`
	Payload any    `json:"payload,omitempty"`
}

type ProgressEvent struct {
	TeamID     string `json:"teamId"`
	TeamName   string `json:"teamName"`
	NodeID     string `json:"nodeId,omitempty"`
	Points     int    `json:"points"`
	NodesFound int    `json:"nodesFound"`
	Finished   bool   `json:"finished"`
}

type FinishedEvent struct {
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
	Winner   bool   `json:"winner"`
}

type PresenceEvent struct {
	TeamID    string `json:"teamId"`
	Connected bool   `json:"connected"`
}

type ChatEvent struct {
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
	Message  string `json:"message"`
	SentAt   string `json:"sentAt"`
}

// Broker is an in-process pub/sub for push events, keyed by game ID.
// Delivery is at-most-once per connection instance.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the given game.
func (b *Broker) Subscribe(gameID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[gameID] == nil {
		b.subs[gameID] = make(map[chan []byte]struct{})
	}
	b.subs[gameID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the game's subscribers.
func (b *Broker) Unsubscribe(gameID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[gameID], ch)
	if len(b.subs[gameID]) == 0 {
		delete(b.subs, gameID)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the given game. It never
// blocks the caller: slow subscribers miss events and resynchronize on
// reconnect.
func (b *Broker) Publish(gameID string, event Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[gameID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
