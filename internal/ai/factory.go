package ai

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/fdg312/meal-recommender/internal/config"
)

func NewProvider(cfg *config.Config, log zerolog.Logger) Provider {
	mode := strings.ToLower(strings.TrimSpace(cfg.AIMode))
	if mode == "" {
		mode = config.AIModeMock
	}

	switch mode {
	case config.AIModeOpenAI:
		return NewOpenAIProvider(cfg)
	case config.AIModeGemini:
		return NewGeminiProvider(cfg, log)
	default:
		return NewMockProvider()
	}
}
