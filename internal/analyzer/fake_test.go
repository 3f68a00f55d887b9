package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/vansh-rautela/sage-health-assistant/internal/llm"
)

type fakeCall struct {
	Model        string
	MaxTokens    int64
	Temperature  float64
	SystemPrompt string
	UserPrompt   string
}

// fakeProvider answers from a per-model script; models without a script succeed.
type fakeProvider struct {
	mu     sync.Mutex
	calls  []fakeCall
	errors map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{errors: make(map[string]error)}
}

func (f *fakeProvider) failModel(model string, err error) *fakeProvider {
	f.errors[model] = err
	return f
}

func (f *fakeProvider) Complete(_ context.Context, systemPrompt, userPrompt string, opts ...llm.Option) (*llm.Response, error) {
	o := &llm.Options{}
	for _, opt := range opts {
		opt(o)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{
		Model:        o.Model,
		MaxTokens:    o.MaxTokens,
		Temperature:  o.Temperature,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
	})
	if err, ok := f.errors[o.Model]; ok {
		return nil, err
	}
	return &llm.Response{Content: "analysis from " + o.Model, Model: o.Model}, nil
}

func (f *fakeProvider) Calls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}

func (f *fakeProvider) Models() []string {
	calls := f.Calls()
	models := make([]string, len(calls))
	for i, c := range calls {
		models[i] = c.Model
	}
	return models
}

func testTiers() []llm.Tier {
	return []llm.Tier{
		{Rank: llm.RankPrimary, Provider: "groq", Model: "m1", MaxTokens: 8000, Temperature: 0.7},
		{Rank: llm.RankSecondary, Provider: "groq", Model: "m2", MaxTokens: 8000, Temperature: 0.7},
		{Rank: llm.RankTertiary, Provider: "groq", Model: "m3", MaxTokens: 32000, Temperature: 0.5},
		{Rank: llm.RankFallback, Provider: "groq", Model: "m4", MaxTokens: 8000, Temperature: 0.7},
	}
}

// recordingSleeper records requested pauses without sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.pauses = append(r.pauses, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) Pauses() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.pauses...)
}
