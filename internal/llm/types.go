package llm

import (
	"context"
	"fmt"
)

// Provider is a chat-completion backend.
type Provider interface {
	// Complete sends a system and a user turn and returns the completion text.
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...Option) (*Response, error)
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Option func(*Options)

type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int64) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithTemperature(t float64) Option {
	return func(o *Options) {
		o.Temperature = t
	}
}

type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Clients maps a provider name (as used in the tier table) to its client.
type Clients map[string]Provider

// Get returns the client registered for provider, or ErrNoClient.
func (c Clients) Get(provider string) (Provider, error) {
	p, ok := c[provider]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w %q", ErrNoClient, provider)
	}
	return p, nil
}
