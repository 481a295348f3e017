package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/pkg/types"
)

// MemoryStore keeps conversations in process memory; data is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]types.Conversation
	chunks map[string]types.ConversationChunks
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]types.Conversation),
		chunks: make(map[string]types.ConversationChunks),
	}
}

func (s *MemoryStore) List(ctx context.Context) ([]types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Conversation, 0, len(s.data))
	for _, c := range s.data {
		out = append(out, c.Clone())
	}
	sortByRecency(out)
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data[id]
	if !ok {
		return types.Conversation{}, errs.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, c types.Conversation) (types.Conversation, error) {
	c = withDefaults(c, time.Now().UTC())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[c.ID] = c.Clone()
	return c, nil
}

func (s *MemoryStore) UpdateMessages(ctx context.Context, id string, messages []types.Message, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data[id]
	if !ok {
		return errs.ErrNotFound
	}
	c.Messages = append([]types.Message(nil), messages...)
	c.UpdatedAt = updatedAt.UTC()
	s.data[id] = c
	return nil
}

func (s *MemoryStore) SaveChunks(ctx context.Context, chunks types.ConversationChunks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks.Chunks = append([]types.Chunk(nil), chunks.Chunks...)
	s.chunks[chunks.ConversationID] = chunks
	return nil
}

// Chunks returns the last analysis saved for a conversation.
func (s *MemoryStore) Chunks(id string) (types.ConversationChunks, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	return c, ok
}

func (s *MemoryStore) Close() error { return nil }

func withDefaults(c types.Conversation, now time.Time) types.Conversation {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Messages == nil {
		c.Messages = []types.Message{}
	}
	return c
}

func sortByRecency(cs []types.Conversation) {
	slices.SortStableFunc(cs, func(a, b types.Conversation) int {
		return cmp.Compare(b.UpdatedAt.UnixNano(), a.UpdatedAt.UnixNano())
	})
}
