//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package store

import (
	"context"
	"time"

	"github.com/varsilias/whait/pkg/types"
)

// Store persists conversations. Writes are last-writer-wins.
type Store interface {
	// List returns every conversation ordered by updated_at, newest first.
	List(ctx context.Context) ([]types.Conversation, error)
	// Get returns errs.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (types.Conversation, error)
	// Create assigns id and timestamps when they are zero.
	Create(ctx context.Context, c types.Conversation) (types.Conversation, error)
	// UpdateMessages replaces the messages array and updated_at of one conversation.
	UpdateMessages(ctx context.Context, id string, messages []types.Message, updatedAt time.Time) error
	SaveChunks(ctx context.Context, chunks types.ConversationChunks) error
	Close() error
}
