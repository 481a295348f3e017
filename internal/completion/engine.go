//go:generate go run go.uber.org/mock/mockgen -source=engine.go -destination=../mocks/mock_engine.go -package=mocks
package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/varsilias/whait/pkg/types"
)

// Prompt is one completion call. Zero fields fall back to the engine defaults.
type Prompt struct {
	Model       string
	Turns       []types.Turn
	MaxTokens   int
	Temperature *float64
	JSON        bool
}

type Engine interface {
	Generate(ctx context.Context, p Prompt) (text string, latency time.Duration, err error)
}

// EchoEngine answers without a provider; used when no API key is configured.
type EchoEngine struct {
	minLatency time.Duration
}

func NewEchoEngine(minLatency time.Duration) *EchoEngine { return &EchoEngine{minLatency: minLatency} }

func (e *EchoEngine) Generate(ctx context.Context, p Prompt) (string, time.Duration, error) {
	start := time.Now()
	if e.minLatency > 0 {
		select {
		case <-ctx.Done():
			return "", time.Since(start), ctx.Err()
		case <-time.After(e.minLatency):
		}
	}
	last := lastUserTurn(p.Turns)
	if p.JSON {
		b, err := json.Marshal(map[string]any{"keywords": []string{last}, "text": last})
		return string(b), time.Since(start), err
	}
	return fmt.Sprintf("(demo) you said: %s", last), time.Since(start), nil
}

func lastUserTurn(turns []types.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == types.RoleUser {
			return turns[i].Content
		}
	}
	return ""
}
