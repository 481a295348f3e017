// Package personality maps contact ids to the prompt and display name used to
// simulate their replies.
package personality

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Personality struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Style  string `yaml:"style" json:"style"`
	Prompt string `yaml:"prompt" json:"prompt"`
}

type file struct {
	Personalities []Personality `yaml:"personalities"`
}

// Registry is read-only after construction.
type Registry struct {
	byID map[string]Personality
}

func NewRegistry(items []Personality) (*Registry, error) {
	r := &Registry{byID: make(map[string]Personality, len(items))}
	for i, p := range items {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("personality %d: empty id", i)
		}
		if strings.TrimSpace(p.Prompt) == "" {
			return nil, fmt.Errorf("personality %q: empty prompt", p.ID)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("personality %q: duplicate id", p.ID)
		}
		r.byID[p.ID] = p
	}
	return r, nil
}

// Load reads a YAML personality table. An empty path yields the built-in defaults.
func Load(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(Defaults())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personalities: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse personalities %s: %w", path, err)
	}
	return NewRegistry(f.Personalities)
}

func (r *Registry) Lookup(id string) (Personality, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// DisplayName falls back to the raw id for unknown contacts.
func (r *Registry) DisplayName(id string) string {
	if p, ok := r.byID[id]; ok && p.Name != "" {
		return p.Name
	}
	return id
}

func (r *Registry) Len() int { return len(r.byID) }

func Defaults() []Personality {
	return []Personality{
		{
			ID:     "john-doe",
			Name:   "John",
			Style:  "friendly and enthusiastic",
			Prompt: "Respond in a friendly, enthusiastic way. Use exclamation marks and positive language.",
		},
		{
			ID:     "sarah-wilson",
			Name:   "Sarah",
			Style:  "professional and direct",
			Prompt: "Respond in a professional, direct manner. Be concise and business-like.",
		},
		{
			ID:     "mike-brown",
			Name:   "Mike",
			Style:  "casual and supportive",
			Prompt: "Respond in a casual, supportive way. Use encouraging language and be helpful.",
		},
		{
			ID:     "emma-davis",
			Name:   "Emma",
			Style:  "creative and quirky",
			Prompt: "Respond in a creative, quirky way. Use emojis and be playful with language.",
		},
		{
			ID:     "alex-johnson",
			Name:   "Alex",
			Style:  "analytical and thoughtful",
			Prompt: "Respond in an analytical, thoughtful manner. Ask questions and provide detailed insights.",
		},
		{
			ID:     "jessica-martinez",
			Name:   "Jessica",
			Style:  "warm and empathetic",
			Prompt: "Respond in a warm, empathetic way. Show understanding and care for others.",
		},
	}
}
