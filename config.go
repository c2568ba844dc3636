package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/appliance-router/server/internal/agent/model"
	"github.com/appliance-router/server/internal/core"
	logx "github.com/appliance-router/server/pkg/logger"
	pkgredis "github.com/appliance-router/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the router,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis        pkgredis.Config
	SessionStore model.SessionStoreConfig
	HTTP         HTTPConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	NLU          model.NLUModelConfig
	Response     model.ResponseModelConfig
	Generation   model.GenerationConfig
	Conversation model.ConversationConfig
	Catalog      model.CatalogConfig
}

type HTTPConfig struct {
	Addr           string        `envconfig:"HTTP_ADDR" default:":8000"`
	AllowedOrigins []string      `envconfig:"HTTP_ALLOWED_ORIGINS" default:"*"`
	RequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"60s"`
}

// loadConfig reads envFile when present, then the process environment.
func loadConfig(envFile string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logx.Debug().Err(err).Str("file", envFile).Msg("no dotenv file loaded")
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}
