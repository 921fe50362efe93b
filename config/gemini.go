package config

import (
	"sync"
	"time"
)

var (
	geminiOnce   sync.Once
	geminiConfig *GeminiConfig
)

// GeminiConfig configures the vision extraction model.
type GeminiConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
	MaxRetries      int
}

func GetGeminiConfig() *GeminiConfig {
	geminiOnce.Do(func() {
		loadEnv()

		geminiConfig = &GeminiConfig{
			APIKey:          getEnv("GEMINI_API_KEY", ""),
			Model:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			MaxOutputTokens: getEnvInt("GEMINI_MAX_OUTPUT_TOKENS", 8192),
			Timeout:         time.Duration(getEnvInt("GEMINI_TIMEOUT_SECONDS", 120)) * time.Second,
			MaxRetries:      getEnvInt("GEMINI_MAX_RETRIES", 3),
		}
	})
	return geminiConfig
}
