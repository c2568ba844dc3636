package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL           time.Duration `envconfig:"CONVERSATION_TTL" default:"15m"`
	SweepInterval time.Duration `envconfig:"CONVERSATION_SWEEP_INTERVAL" default:"1m"`
	History       struct {
		MaxTurns int `envconfig:"CONVERSATION_HISTORY_MAX_TURNS" default:"0"`
	}
	DefaultSessionKey string `envconfig:"DEFAULT_SESSION_KEY" default:"default"`
}

type SessionStoreConfig struct {
	Backend string        `envconfig:"SESSION_STORE" default:"memory"`
	LockTTL time.Duration `envconfig:"SESSION_LOCK_TTL" default:"30s"`
}

type NLUModelConfig struct {
	Model       string  `envconfig:"NLU_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"NLU_MAX_TOKENS" default:"512"`
	Temperature float32 `envconfig:"NLU_TEMPERATURE" default:"0.1"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.7"`
}

type GenerationConfig struct {
	Timeout        time.Duration `envconfig:"GENERATION_TIMEOUT" default:"20s"`
	HandlerTimeout time.Duration `envconfig:"HANDLER_TIMEOUT" default:"30s"`
}

type CatalogConfig struct {
	BaseURL string `envconfig:"CATALOG_BASE_URL" default:"https://www.partselect.com"`
}
