package types

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged entry of a completion prompt.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Message is immutable once created.
type Message struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	Content string    `json:"content"`
	Date    time.Time `json:"date"`
}

type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LastMessage is derived from Messages; it is nil for an empty conversation.
func (c Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	m := c.Messages[len(c.Messages)-1]
	return &m
}

// Clone returns a copy whose slices do not alias c.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = append([]Message(nil), c.Messages...)
	out.Participants = append([]string(nil), c.Participants...)
	return out
}

// conversationJSON carries the derived last_message on the wire.
type conversationJSON struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	Participants []string  `json:"participants"`
	LastMessage  *Message  `json:"last_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c Conversation) MarshalJSON() ([]byte, error) {
	msgs := c.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	parts := c.Participants
	if parts == nil {
		parts = []string{}
	}
	return json.Marshal(conversationJSON{
		ID:           c.ID,
		Title:        c.Title,
		Messages:     msgs,
		Participants: parts,
		LastMessage:  c.LastMessage(),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	})
}

func (c *Conversation) UnmarshalJSON(b []byte) error {
	var raw conversationJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = Conversation{
		ID:           raw.ID,
		Title:        raw.Title,
		Messages:     raw.Messages,
		Participants: raw.Participants,
		CreatedAt:    raw.CreatedAt,
		UpdatedAt:    raw.UpdatedAt,
	}
	return nil
}

// Chunk is the summary of a contiguous run of messages.
type Chunk struct {
	Resume    string    `json:"resume"`
	StartDate time.Time `json:"start_date"`
	MessageID string    `json:"message_id"`
}

type ConversationChunks struct {
	ConversationID string  `json:"conversation_id"`
	Chunks         []Chunk `json:"chunks"`
}
