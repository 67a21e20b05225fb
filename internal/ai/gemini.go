package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider serves chat turns through Google's Gemini API.
//
// Gemini does not accept a uniform role/content array: the system prompt is
// folded into the first user turn and the transcript must start with a user
// message, so the provider rewrites the conversation accordingly.
type GeminiProvider struct {
	client  *genai.Client
	apiKey  string
	modelID string
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey, modelID string) (*GeminiProvider, error) {
	if modelID == "" {
		modelID = "gemini-2.5-flash"
	}
	if !isRealCredential(apiKey) {
		// Unconfigured provider: the chain skips it via Configured.
		return &GeminiProvider{apiKey: apiKey, modelID: modelID}, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("ai: failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, apiKey: apiKey, modelID: modelID}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Configured() bool {
	return p.client != nil && isRealCredential(p.apiKey)
}

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (Response, error) {
	model := p.client.GenerativeModel(p.modelID)
	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}

	transcript := foldSystemIntoUser(req.Messages)
	if len(transcript) == 0 {
		return Response{}, classify(p.Name(), KindInvalidResponse, errors.New("empty message list"))
	}

	cs := model.StartChat()
	for _, msg := range transcript[:len(transcript)-1] {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	last := transcript[len(transcript)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return Response{}, classify(p.Name(), KindUnavailable, err)
	}

	if len(resp.Candidates) == 0 {
		return Response{}, classify(p.Name(), KindInvalidResponse, errors.New("no candidates returned"))
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return Response{}, classify(p.Name(), KindInvalidResponse, errors.New("empty content returned"))
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	result := Response{Text: strings.TrimSpace(text.String())}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

// Close releases resources held by the Gemini client.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// foldSystemIntoUser rewrites a transcript so that system content is carried
// by the first user turn and the result starts with a user message.
func foldSystemIntoUser(messages []Message) []Message {
	var system []string
	var rest []Message
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		if msg.Role == RoleSystem {
			system = append(system, content)
			continue
		}
		rest = append(rest, Message{Role: msg.Role, Content: content})
	}

	// Drop leading assistant turns so the transcript opens with a user turn.
	for len(rest) > 0 && rest[0].Role != RoleUser {
		rest = rest[1:]
	}

	if len(system) == 0 {
		return rest
	}
	prefix := strings.Join(system, "\n\n")
	if len(rest) == 0 {
		return []Message{{Role: RoleUser, Content: prefix}}
	}
	folded := make([]Message, len(rest))
	copy(folded, rest)
	folded[0] = Message{
		Role:    RoleUser,
		Content: prefix + "\n\n" + folded[0].Content,
	}
	return folded
}
