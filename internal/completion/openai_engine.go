package completion

import (
	"context"
	"time"

	"github.com/varsilias/whait/internal/llm"
)

type OpenAIEngine struct {
	c           *llm.Client
	model       string
	maxTokens   int
	temperature float64
}

func NewOpenAIEngine(c *llm.Client, model string, maxTokens int, temperature float64) *OpenAIEngine {
	return &OpenAIEngine{
		c:           c,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (e *OpenAIEngine) Generate(ctx context.Context, p Prompt) (string, time.Duration, error) {
	req := llm.ChatRequest{
		Model:       p.Model,
		Messages:    p.Turns,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}
	if req.Model == "" {
		req.Model = e.model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = e.maxTokens
	}
	if req.Temperature == nil {
		t := e.temperature
		req.Temperature = &t
	}
	if p.JSON {
		req.ResponseFormat = llm.JSONObject
	}
	return e.c.ChatCompletion(ctx, req)
}
