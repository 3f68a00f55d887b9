package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/vansh-rautela/sage-health-assistant/internal/config"
)

const (
	groqEndpoint   = "https://api.groq.com/openai/v1"
	openAIEndpoint = "https://api.openai.com/v1"
)

// OpenAI talks to any OpenAI-compatible chat completion API (Groq, OpenAI, Azure).
type OpenAI struct {
	client *openai.Client
	cfg    *config.LLMConfig
}

func NewOpenAI(cfg *config.LLMConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, config.ErrMissingAPIKey)
	}

	var client *openai.Client

	switch cfg.Provider {
	case "azure":
		if cfg.APIEndpoint == "" {
			return nil, fmt.Errorf("azure provider requires an endpoint")
		}
		client = openai.NewClient(
			azure.WithEndpoint(cfg.APIEndpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0),
		)
	case "openai", "groq", "":
		endpoint := cfg.APIEndpoint
		if endpoint == "" {
			endpoint = defaultEndpoint(cfg.Provider)
		}
		// The cascade owns retries, so the SDK must not retry on its own.
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(endpoint),
			option.WithMaxRetries(0),
		)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}

	slog.Info("LLM client initialized", "provider", cfg.Provider)
	return &OpenAI{
		client: client,
		cfg:    cfg,
	}, nil
}

func defaultEndpoint(provider string) string {
	if provider == "openai" {
		return openAIEndpoint
	}
	return groqEndpoint
}

func (o *OpenAI) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...Option) (*Response, error) {
	options := &Options{
		Temperature: 0.7,
		MaxTokens:   1000,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	resp, err := o.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Model: openai.F(options.Model),
			Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(userPrompt),
			}),
			Temperature: openai.F(options.Temperature),
			MaxTokens:   openai.F(options.MaxTokens),
		},
	)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
