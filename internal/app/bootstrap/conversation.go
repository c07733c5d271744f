package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/dental-scheduling-agent/internal/config"
	"github.com/wolfman30/dental-scheduling-agent/internal/conversation"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

// ErrNoLLMProvider means neither Gemini nor Bedrock is configured.
var ErrNoLLMProvider = errors.New("bootstrap: configure GEMINI_API_KEY or BEDROCK_MODEL_ID")

// BuildLLMClient wires Gemini as the primary model with Bedrock as fallback.
// Either provider alone is enough. The returned cleanup is never nil.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (conversation.LLMClient, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cleanup := func() {}

	var gemini *conversation.GeminiLLMClient
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		gemini = client
		cleanup = func() { _ = client.Close() }
	}

	var bedrock *conversation.BedrockLLMClient
	if strings.TrimSpace(cfg.BedrockModelID) != "" && loadAWS != nil {
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		bedrock = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	}

	switch {
	case gemini != nil && bedrock != nil:
		logger.Info("llm ready", "primary", gemini.Model(), "fallback", cfg.BedrockModelID)
		return conversation.NewFallbackLLMClient(gemini, bedrock, logger), cleanup, nil
	case gemini != nil:
		logger.Info("llm ready", "primary", gemini.Model())
		return gemini, cleanup, nil
	case bedrock != nil:
		logger.Info("llm ready", "primary", cfg.BedrockModelID)
		return bedrock, cleanup, nil
	}
	return nil, nil, ErrNoLLMProvider
}

// BuildHistoryStore keeps conversations in Redis when available, otherwise in memory.
func BuildHistoryStore(redisClient *redis.Client, logger *logging.Logger) conversation.HistoryStore {
	if redisClient == nil {
		if logger == nil {
			logger = logging.Default()
		}
		logger.Warn("redis not configured; conversations are kept in memory")
		return conversation.NewMemoryHistoryStore()
	}
	return conversation.NewRedisHistoryStore(redisClient)
}
