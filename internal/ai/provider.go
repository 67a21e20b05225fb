package ai

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is an internal chat message representation that can include system prompts.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	Messages    []Message
	MaxTokens   int32
	Temperature float32
}

type Response struct {
	Text     string
	Usage    TokenUsage
	Provider string
}

// Provider is a single AI backend able to serve one chat turn.
// Configured reports whether usable credentials are present; the chain
// skips unconfigured providers without counting them as failures.
type Provider interface {
	Name() string
	Configured() bool
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrorKind classifies provider failures for the fallback chain.
type ErrorKind string

const (
	KindRateLimited     ErrorKind = "rate_limited"
	KindUnavailable     ErrorKind = "unavailable"
	KindInvalidResponse ErrorKind = "invalid_response"
)

// ProviderError wraps a provider failure with its classification.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ai: provider %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrAllProvidersDown is returned when no provider in the chain produced a response.
var ErrAllProvidersDown = errors.New("ai: all providers unavailable")

func classify(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}
