package giphy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"github.com/varsilias/whait/internal/completion"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/pkg/types"
)

const keywordsPrompt = `Here is the conversation:
%s
Please answer with a json containing the keywords to send to search the giphy API to answer the last message with a gif: '%s'
The JSON should be like this: {"keywords": ["keyword1 keyword2 keyword3"]}`

// keywordsMaxTokens leaves room for the whole JSON object.
const keywordsMaxTokens = 256

type Searcher interface {
	Search(ctx context.Context, query string) ([]GIF, error)
}

type Answerer struct {
	log    *slog.Logger
	eng    completion.Engine
	search Searcher
	model  string
}

func NewAnswerer(log *slog.Logger, eng completion.Engine, s Searcher, model string) *Answerer {
	return &Answerer{log: log, eng: eng, search: s, model: model}
}

// Answer picks GIFs that reply to the last message of conversation.
func (a *Answerer) Answer(ctx context.Context, conversation []types.Message) ([]GIF, error) {
	if len(conversation) == 0 {
		return nil, fmt.Errorf("%w: conversation is empty", errs.ErrValidation)
	}
	last := conversation[len(conversation)-1].Content

	lines := lo.Map(conversation, func(m types.Message, _ int) string {
		return fmt.Sprintf("%s: %s", m.UserID, m.Content)
	})
	text, _, err := a.eng.Generate(ctx, completion.Prompt{
		Model: a.model,
		Turns: []types.Turn{
			{Role: types.RoleSystem, Content: "You are a helpful assistant."},
			{Role: types.RoleUser, Content: fmt.Sprintf(keywordsPrompt, strings.Join(lines, "\n"), last)},
		},
		MaxTokens: keywordsMaxTokens,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrUpstream, err)
	}

	var kw struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(text), &kw); err != nil {
		return nil, fmt.Errorf("%w: keywords: %w", errs.ErrUpstream, err)
	}
	query := strings.Join(lo.Compact(lo.Map(kw.Keywords, func(k string, _ int) string { return strings.TrimSpace(k) })), " ")
	if query == "" {
		query = last
	}

	gifs, err := a.search.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrUpstream, err)
	}
	a.log.Info("gif answer", "query", query, "gifs", len(gifs))
	return gifs, nil
}
