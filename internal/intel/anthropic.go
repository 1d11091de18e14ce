package intel

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nexshop/storebot/internal/config"
	"github.com/nexshop/storebot/internal/store"
)

type anthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func newAnthropicClient(cfg config.ProviderConfig) *anthropicClient {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = config.DefaultAnthropicModel
	}

	return &anthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(cfg.MaxTokens),
	}
}

func (c *anthropicClient) Classify(ctx context.Context, message string, examples []store.TrainingExample) (string, error) {
	raw, err := c.complete(ctx, classifySystemPrompt, buildClassifyPrompt(message, examples))
	if err != nil {
		return "", err
	}
	return parseIntent(raw), nil
}

func (c *anthropicClient) Generate(ctx context.Context, message, storeContext string) (string, error) {
	return c.complete(ctx, generateSystemPrompt, buildGeneratePrompt(message, storeContext))
}

func (c *anthropicClient) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %v", ErrUnavailable, err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("%w: anthropic returned no text", ErrUnavailable)
	}
	return text, nil
}
