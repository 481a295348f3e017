// Package giphy answers a conversation with a GIF picked from model-chosen keywords.
package giphy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.giphy.com/v1"

var ErrNoAPIKey = errors.New("giphy: no api key configured")

type GIF struct {
	GIFURL   string `json:"gif_url"`
	GiphyURL string `json:"giphy_url"`
	EmbedURL string `json:"embed_url"`
}

type searchResponse struct {
	Data []struct {
		URL      string `json:"url"`
		EmbedURL string `json:"embed_url"`
		Images   struct {
			Original struct {
				URL string `json:"url"`
			} `json:"original"`
		} `json:"images"`
	} `json:"data"`
}

type Client struct {
	baseURL string
	apiKey  string
	log     *slog.Logger
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     log,
		client:  &http.Client{Timeout: timeout},
	}
}

// Search returns at most one family-safe GIF for query.
func (c *Client) Search(ctx context.Context, query string) ([]GIF, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("q", query)
	q.Set("limit", "1")
	q.Set("offset", "0")
	q.Set("rating", "g")
	q.Set("bundle", "messaging_non_clips")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/gifs/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("giphy: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("giphy: decode search: %w", err)
	}
	gifs := make([]GIF, 0, len(out.Data))
	for _, d := range out.Data {
		gifs = append(gifs, GIF{GIFURL: d.Images.Original.URL, GiphyURL: d.URL, EmbedURL: d.EmbedURL})
	}
	c.log.Debug("giphy search", "query", query, "results", len(gifs))
	return gifs, nil
}
