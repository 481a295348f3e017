// Package analysis splits a conversation into time-contiguous chunks and stores a
// model-written summary of each.
package analysis

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/varsilias/whait/internal/completion"
	"github.com/varsilias/whait/internal/store"
	"github.com/varsilias/whait/pkg/types"
)

// DefaultGap separates two chunks when exceeded between consecutive messages.
const DefaultGap = time.Hour

const (
	systemPrompt = "You will receive a conversation analysis or search request. Answer only from its content and what is asked. Do not invent anything."
	chunkPrompt  = "You will receive a contiguous piece of a conversation. Write a short summary of what was said, taking into account the messages and who sent them, paying particular attention to specific details such as numbers, dates and names mentioned."
)

type Analyzer struct {
	log   *slog.Logger
	eng   completion.Engine
	store store.Store
	model string
	gap   time.Duration
}

func NewAnalyzer(log *slog.Logger, eng completion.Engine, s store.Store, model string, gap time.Duration) *Analyzer {
	if gap <= 0 {
		gap = DefaultGap
	}
	return &Analyzer{log: log, eng: eng, store: s, model: model, gap: gap}
}

// Analyze summarizes every chunk of the conversation and upserts the result.
func (a *Analyzer) Analyze(ctx context.Context, conversationID string) (types.ConversationChunks, error) {
	conv, err := a.store.Get(ctx, conversationID)
	if err != nil {
		return types.ConversationChunks{}, fmt.Errorf("analyze %s: %w", conversationID, err)
	}

	out := types.ConversationChunks{ConversationID: conv.ID, Chunks: []types.Chunk{}}
	for _, chunk := range Split(conv.Messages, a.gap) {
		resume, err := a.summarize(ctx, chunk)
		if err != nil {
			return types.ConversationChunks{}, err
		}
		out.Chunks = append(out.Chunks, types.Chunk{
			Resume:    resume,
			StartDate: chunk[0].Date,
			MessageID: chunk[0].ID,
		})
	}

	if err := a.store.SaveChunks(ctx, out); err != nil {
		return types.ConversationChunks{}, fmt.Errorf("save chunks: %w", err)
	}
	a.log.Info("conversation analyzed", "conversation_id", conv.ID, "messages", len(conv.Messages), "chunks", len(out.Chunks))
	return out, nil
}

func (a *Analyzer) summarize(ctx context.Context, chunk []types.Message) (string, error) {
	text, latency, err := a.eng.Generate(ctx, completion.Prompt{
		Model: a.model,
		Turns: []types.Turn{
			{Role: types.RoleSystem, Content: systemPrompt},
			{Role: types.RoleUser, Content: chunkPrompt + "\n\n" + Transcript(chunk)},
		},
		// summaries are not capped like chat replies
		MaxTokens: 1024,
	})
	if err != nil {
		return "", fmt.Errorf("summarize chunk at %s: %w", chunk[0].ID, err)
	}
	a.log.Debug("chunk summarized", "message_id", chunk[0].ID, "messages", len(chunk), "latency_ms", latency.Milliseconds())
	return strings.TrimSpace(text), nil
}

// Split orders messages by date and starts a new chunk whenever two consecutive
// messages are more than gap apart. The input is not modified.
func Split(messages []types.Message, gap time.Duration) [][]types.Message {
	if len(messages) == 0 {
		return nil
	}
	sorted := slices.Clone(messages)
	slices.SortStableFunc(sorted, func(a, b types.Message) int { return cmp.Compare(a.Date.UnixNano(), b.Date.UnixNano()) })

	chunks := [][]types.Message{{sorted[0]}}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Sub(sorted[i-1].Date) > gap {
			chunks = append(chunks, []types.Message{sorted[i]})
			continue
		}
		last := len(chunks) - 1
		chunks[last] = append(chunks[last], sorted[i])
	}
	return chunks
}

// Transcript renders one "date: user_id: content" line per message.
func Transcript(messages []types.Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s: %s\n", m.Date.UTC().Format(time.RFC3339), m.UserID, m.Content)
	}
	return b.String()
}
