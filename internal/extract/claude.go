package extract

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/dgallion1/docground/internal/config"
)

// Claude extracts fields with the Anthropic Messages API.
type Claude struct {
	client      sdk.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewClaude builds a Claude backend. Retries are left to the caller.
func NewClaude(cfg config.LLMConfig, opts ...option.RequestOption) *Claude {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.Timeout))
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Claude{
		client:      sdk.NewClient(append(base, opts...)...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) Extract(ctx context.Context, req Request) (*Response, error) {
	prompt := BuildPrompt(req)
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   c.maxTokens,
		System:      []sdk.TextBlockParam{{Text: SystemPrompt}},
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
		Temperature: sdk.Float(c.temperature),
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) &&
			(apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500) {
			return nil, &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return nil, eris.Wrap(err, "extract: claude message")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	raw := sb.String()
	if strings.TrimSpace(raw) == "" {
		return nil, eris.New("extract: empty response from claude")
	}
	return &Response{Values: ParseFields(raw, req.Fields), Prompt: prompt, Raw: raw}, nil
}
