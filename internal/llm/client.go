// Package llm is a minimal client for OpenAI-compatible chat completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/varsilias/whait/pkg/types"
)

type Client struct {
	baseURL string
	apiKey  string
	log     *slog.Logger
	client  *http.Client
}

type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []types.Turn    `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

// JSONObject asks the model to answer with a single JSON object.
var JSONObject = &ResponseFormat{Type: "json_object"}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: status %d: %s", e.Status, e.Message)
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     log,
		client:  &http.Client{Timeout: timeout},
	}
}

// ChatCompletion sends a non-streaming request to /chat/completions and returns the
// first choice's content, untrimmed.
func (c *Client) ChatCompletion(ctx context.Context, in ChatRequest) (string, time.Duration, error) {
	if in.Model == "" {
		return "", 0, errors.New("llm: empty model")
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", 0, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", 0, err
	}
	start := time.Now()
	res, err := c.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return "", 0, decodeError(res)
	}
	var out chatResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("llm: decode completion: %w", err)
	}
	latency := time.Since(start)
	c.log.Debug("chat completion", "model", in.Model, "choices", len(out.Choices), "latency_ms", latency.Milliseconds())
	if len(out.Choices) == 0 {
		return "", latency, nil
	}
	return out.Choices[0].Message.Content, latency, nil
}

// Models lists models via GET /models.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, decodeError(res)
	}
	var out struct {
		Data []Model `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("llm: decode models: %w", err)
	}
	return out.Data, nil
}

// Ping checks that the provider is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Models(ctx)
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func decodeError(res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Error.Message != "" {
		return &StatusError{Status: res.StatusCode, Message: ae.Error.Message}
	}
	return &StatusError{Status: res.StatusCode, Message: strings.TrimSpace(string(body))}
}
