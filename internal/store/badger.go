package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/pkg/types"
)

const (
	conversationPrefix = "conv:"
	chunksPrefix       = "chunks:"
)

// BadgerStore is an embedded single-process backend for local development.
// Each conversation is one JSON document under "conv:{id}".
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

func OpenBadger(path string, log *slog.Logger) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", path, err)
	}
	log.Info("badger store opened", "path", path)
	return NewBadgerStore(db, log), nil
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log}
}

func (s *BadgerStore) List(ctx context.Context) ([]types.Conversation, error) {
	var out []types.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(conversationPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var c types.Conversation
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &c)
			}); err != nil {
				return fmt.Errorf("badger: decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByRecency(out)
	return out, nil
}

func (s *BadgerStore) Get(ctx context.Context, id string) (types.Conversation, error) {
	var c types.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		c, err = getConversation(txn, id)
		return err
	})
	return c, err
}

func (s *BadgerStore) Create(ctx context.Context, c types.Conversation) (types.Conversation, error) {
	c = withDefaults(c, time.Now().UTC())
	err := s.db.Update(func(txn *badger.Txn) error {
		return putConversation(txn, c)
	})
	if err != nil {
		return types.Conversation{}, err
	}
	return c, nil
}

func (s *BadgerStore) UpdateMessages(ctx context.Context, id string, messages []types.Message, updatedAt time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		c, err := getConversation(txn, id)
		if err != nil {
			return err
		}
		c.Messages = append([]types.Message{}, messages...)
		c.UpdatedAt = updatedAt.UTC()
		return putConversation(txn, c)
	})
}

func (s *BadgerStore) SaveChunks(ctx context.Context, chunks types.ConversationChunks) error {
	b, err := json.Marshal(chunks)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(chunksPrefix+chunks.ConversationID), b)
	})
}

// Chunks returns the last analysis saved for a conversation.
func (s *BadgerStore) Chunks(id string) (types.ConversationChunks, bool, error) {
	var out types.ConversationChunks
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(chunksPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &out) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.ConversationChunks{}, false, nil
	}
	return out, err == nil, err
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func getConversation(txn *badger.Txn, id string) (types.Conversation, error) {
	item, err := txn.Get([]byte(conversationPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.Conversation{}, errs.ErrNotFound
	}
	if err != nil {
		return types.Conversation{}, err
	}
	var c types.Conversation
	err = item.Value(func(v []byte) error { return json.Unmarshal(v, &c) })
	return c, err
}

func putConversation(txn *badger.Txn, c types.Conversation) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return txn.Set([]byte(conversationPrefix+c.ID), b)
}
