package intel

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nexshop/storebot/internal/config"
	"github.com/nexshop/storebot/internal/store"
)

type openAIClient struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func newOpenAIClient(cfg config.ProviderConfig) *openAIClient {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = config.DefaultOpenAIModel
	}

	return &openAIClient{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: int64(cfg.MaxTokens),
	}
}

func (c *openAIClient) Classify(ctx context.Context, message string, examples []store.TrainingExample) (string, error) {
	raw, err := c.complete(ctx, classifySystemPrompt, buildClassifyPrompt(message, examples), 0)
	if err != nil {
		return "", err
	}
	return parseIntent(raw), nil
}

func (c *openAIClient) Generate(ctx context.Context, message, storeContext string) (string, error) {
	return c.complete(ctx, generateSystemPrompt, buildGeneratePrompt(message, storeContext), 0.7)
}

func (c *openAIClient) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(c.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
