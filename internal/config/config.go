package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Embedding   EmbeddingConfig           `json:"embedding"`
	Speech      SpeechConfig              `json:"speech"`
	Billing     BillingConfig             `json:"billing"`
}

type BasicConfig struct {
	ServerAddress       string `json:"server_address"`
	LogMode             string `json:"log_mode"`
	SaveWorkers         int    `json:"save_workers"`
	SaveQueueSize       int    `json:"save_queue_size"`
	InviteSweepInterval int    `json:"invite_sweep_interval_minutes"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type EmbeddingConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type SpeechConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
	Voice  string `json:"voice"`
}

type BillingConfig struct {
	WebhookSecret string `json:"webhook_secret"`
}

// Load reads configuration from the provided path (defaults to config.json).
// Secrets left blank in the file fall back to environment variables so keys
// can stay out of checked-in config.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}

	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	for name, prov := range c.Providers {
		if prov.APIKey == "" {
			prov.APIKey = os.Getenv(envKeyFor(name))
			c.Providers[name] = prov
		}
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Billing.WebhookSecret == "" {
		c.Billing.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	}
	if c.Redis.Password == "" {
		c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
}

func envKeyFor(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "claude":
		return "ANTHROPIC_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}
