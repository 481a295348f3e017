package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/varsilias/whait/internal/cache"
	"github.com/varsilias/whait/pkg/types"
)

const listCacheKey = "whait:conversations:list"

// CachedStore serves List from a cache and drops the entry on every write.
// Cache failures degrade to the underlying store.
type CachedStore struct {
	Store
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedStore(inner Store, c cache.Cache, ttl time.Duration, log *slog.Logger) *CachedStore {
	return &CachedStore{Store: inner, cache: c, ttl: ttl, log: log}
}

func (s *CachedStore) List(ctx context.Context) ([]types.Conversation, error) {
	raw, err := s.cache.Get(ctx, listCacheKey)
	switch {
	case err == nil:
		var out []types.Conversation
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out, nil
		}
		s.log.Warn("conversation list cache entry is corrupt; refreshing")
	case !errors.Is(err, cache.ErrMiss):
		s.log.Warn("conversation list cache read failed", "err", err)
	}

	out, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, listCacheKey, string(b), s.ttl); err != nil {
			s.log.Warn("conversation list cache write failed", "err", err)
		}
	}
	return out, nil
}

func (s *CachedStore) Create(ctx context.Context, c types.Conversation) (types.Conversation, error) {
	out, err := s.Store.Create(ctx, c)
	s.invalidate(ctx)
	return out, err
}

func (s *CachedStore) UpdateMessages(ctx context.Context, id string, messages []types.Message, updatedAt time.Time) error {
	err := s.Store.UpdateMessages(ctx, id, messages, updatedAt)
	s.invalidate(ctx)
	return err
}

func (s *CachedStore) Close() error {
	err := s.Store.Close()
	if cerr := s.cache.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *CachedStore) invalidate(ctx context.Context) {
	if _, err := s.cache.Del(ctx, listCacheKey); err != nil {
		s.log.Warn("conversation list cache invalidation failed", "err", err)
	}
}
