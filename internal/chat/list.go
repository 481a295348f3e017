package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"github.com/varsilias/whait/internal/store"
	"github.com/varsilias/whait/pkg/types"
)

// Item is one row of the conversation list.
type Item struct {
	types.Conversation
	Avatar string `json:"avatar"`
}

// MarshalJSON flattens the avatar into the conversation object.
func (i Item) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(i.Conversation)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	if fields["avatar"], err = json.Marshal(i.Avatar); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

type List struct {
	log   *slog.Logger
	store store.Store
}

func NewList(log *slog.Logger, s store.Store) *List {
	return &List{log: log, store: s}
}

// Fetch returns the conversations, most recently updated first, whose title contains
// query (case-insensitive). An empty query matches everything.
func (l *List) Fetch(ctx context.Context, query string) ([]Item, error) {
	all, err := l.store.List(ctx)
	if err != nil {
		l.log.Error("fetch conversations", "err", err)
		return nil, err
	}
	return lo.Map(Filter(all, query), func(c types.Conversation, _ int) Item {
		return Item{Conversation: c, Avatar: AvatarFor(c.ID, c.Title)}
	}), nil
}

func Filter(cs []types.Conversation, query string) []types.Conversation {
	q := strings.ToLower(query)
	return lo.Filter(cs, func(c types.Conversation, _ int) bool {
		return strings.Contains(strings.ToLower(c.Title), q)
	})
}
