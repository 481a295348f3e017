// Package realtime fans out conversation events to connected browsers.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/varsilias/whait/pkg/types"
)

type EventType string

const (
	MessageAppended EventType = "message.appended"
	MessageReverted EventType = "message.reverted"
	TypingStarted   EventType = "typing.started"
	TypingStopped   EventType = "typing.stopped"
)

type Event struct {
	Type           EventType      `json:"type"`
	ConversationID string         `json:"conversation_id"`
	Message        *types.Message `json:"message,omitempty"`
	// User is the display name of the participant who is typing.
	User string `json:"user,omitempty"`
	// Input is the restored draft after a failed send.
	Input string `json:"input,omitempty"`
}

type Publisher interface {
	Publish(e Event)
}

// Hub is a topic-per-conversation broadcaster. Slow subscribers lose events.
type Hub struct {
	log    *slog.Logger
	buffer int

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan Event
}

func NewHub(log *slog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{log: log, buffer: buffer, subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe returns a channel of events for one conversation and a cancel func that
// closes it.
func (h *Hub) Subscribe(conversationID string) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, h.buffer)}
	h.mu.Lock()
	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[*subscriber]struct{})
	}
	h.subs[conversationID][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[conversationID], s)
			if len(h.subs[conversationID]) == 0 {
				delete(h.subs, conversationID)
			}
			h.mu.Unlock()
			close(s.ch)
		})
	}
}

func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[e.ConversationID] {
		select {
		case s.ch <- e:
		default:
			h.log.Warn("subscriber buffer full; dropping event", "conversation_id", e.ConversationID, "type", e.Type)
		}
	}
}

// Subscribers reports the number of live subscriptions for a conversation.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conversationID])
}
