package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/dgallion1/docground/internal/config"
)

// Local extracts fields with a llama.cpp server through its
// OpenAI-compatible chat endpoint.
type Local struct {
	model       llms.Model
	seed        int
	temperature float64
	maxTokens   int
}

// NewLocal builds a Local backend for cfg.BaseURL.
func NewLocal(cfg config.LLMConfig) (*Local, error) {
	token := cfg.APIKey
	if token == "" {
		token = "sk-no-key-required"
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(token),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, eris.Wrap(err, "extract: local llm client")
	}
	return NewLocalWithModel(m, cfg), nil
}

// NewLocalWithModel wraps an existing langchaingo model.
func NewLocalWithModel(m llms.Model, cfg config.LLMConfig) *Local {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Local{model: m, seed: cfg.Seed, temperature: cfg.Temperature, maxTokens: maxTokens}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Extract(ctx context.Context, req Request) (*Response, error) {
	prompt := BuildPrompt(req)
	resp, err := l.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeSystem, SystemPrompt),
			llms.TextParts(schema.ChatMessageTypeHuman, prompt),
		},
		llms.WithJSONMode(),
		llms.WithSeed(l.seed),
		llms.WithTemperature(l.temperature),
		llms.WithMaxTokens(l.maxTokens),
	)
	if err != nil {
		return nil, eris.Wrap(err, "extract: local completion")
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return nil, eris.New("extract: empty response from local model")
	}
	raw := resp.Choices[0].Content
	return &Response{Values: ParseFields(raw, req.Fields), Prompt: prompt, Raw: raw}, nil
}
