package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/chatrdv/platform/internal/ai"
	appconfig "github.com/chatrdv/platform/internal/config"
	"github.com/chatrdv/platform/internal/observability/metrics"
	"github.com/chatrdv/platform/pkg/logging"
)

// BuildProviderChain assembles the AI fallback chain from config. Providers
// with empty or placeholder credentials are still added; the chain skips
// them at call time via Configured. awsCfg is the shared SDK config so the
// Bedrock client honors the same endpoint override as the other AWS clients.
func BuildProviderChain(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, chatMetrics *metrics.ChatMetrics, logger *logging.Logger) (*ai.Chain, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	providers, err := buildProviders(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	for _, p := range providers {
		if p.Configured() {
			logger.Info("ai provider configured", "provider", p.Name())
		}
	}

	return ai.NewChain(providers, cfg.ProviderTimeout, chatMetrics, logger), nil
}

func buildProviders(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config) ([]ai.Provider, error) {
	providers := []ai.Provider{
		ai.NewOpenAIProvider(ai.OpenAIConfig{
			Name:   "openai",
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
		}),
		ai.NewOpenAIProvider(ai.OpenAIConfig{
			Name:    "deepseek",
			APIKey:  cfg.DeepSeekAPIKey,
			BaseURL: cfg.DeepSeekBaseURL,
			Model:   cfg.DeepSeekModel,
		}),
	}

	gemini, err := ai.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: gemini provider: %w", err)
	}
	providers = append(providers, gemini)

	if cfg.BedrockModelID != "" {
		bedrockClient := bedrockruntime.NewFromConfig(awsCfg)
		providers = append(providers, ai.NewBedrockProvider(bedrockClient, cfg.BedrockModelID))
	}

	return providers, nil
}
