package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider serves chat turns through any OpenAI-compatible endpoint.
// With the default base URL it talks to OpenAI; DeepSeek and similar
// compatible APIs are reached by overriding BaseURL.
type OpenAIProvider struct {
	name   string
	client *openai.Client
	apiKey string
	model  string
}

// OpenAIConfig holds per-endpoint settings.
type OpenAIConfig struct {
	Name    string // chain label, e.g. "openai" or "deepseek"
	APIKey  string
	BaseURL string // empty for api.openai.com
	Model   string
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible API.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		name:   cfg.Name,
		client: openai.NewClientWithConfig(clientCfg),
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

// Configured rejects empty and placeholder keys so the chain can skip them.
func (p *OpenAIProvider) Configured() bool {
	return isRealCredential(p.apiKey)
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	if len(messages) == 0 {
		return Response{}, classify(p.name, KindInvalidResponse, errors.New("empty message list"))
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   int(req.MaxTokens),
		Temperature: req.Temperature,
	})
	if err != nil {
		return Response{}, classify(p.name, classifyOpenAIError(err), err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, classify(p.name, KindInvalidResponse, errors.New("no choices returned"))
	}

	return Response{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}

func classifyOpenAIError(err error) ErrorKind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return KindRateLimited
	}
	return KindUnavailable
}

func isRealCredential(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	// Placeholder values from unconfigured .env templates.
	lower := strings.ToLower(key)
	return !strings.HasPrefix(lower, "your-") && !strings.HasPrefix(lower, "changeme")
}
