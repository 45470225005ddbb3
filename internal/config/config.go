package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config stores runtime configuration for the agent server.
type Config struct {
	HTTP    HTTPConfig
	Logs    LogsConfig
	Storage StorageConfig
	OpenAI  OpenAIConfig
	Engine  EngineConfig
}

type HTTPConfig struct {
	ListenAddr      string        `env:"NEXUS_LISTEN_ADDR" envDefault:":8090"`
	ShutdownTimeout time.Duration `env:"NEXUS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type LogsConfig struct {
	Dir string `env:"NEXUS_LOG_DIR" envDefault:"logs"`
}

type StorageConfig struct {
	Path     string `env:"NEXUS_BADGER_PATH" envDefault:"data/badger"`
	InMemory bool   `env:"NEXUS_BADGER_IN_MEMORY" envDefault:"false"`
}

type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL"`
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

type EngineConfig struct {
	URL           string        `env:"VAPI_WS_URL" envDefault:"wss://api.vapi.ai/ws"`
	APIKey        string        `env:"VAPI_API_KEY"`
	WorkflowID    string        `env:"VAPI_WORKFLOW_ID"`
	InterviewerID string        `env:"VAPI_INTERVIEWER_ID"`
	DialTimeout   time.Duration `env:"VAPI_DIAL_TIMEOUT" envDefault:"15s"`
}

// Load resolves configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
