package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML configuration file, applies defaults, and
// expands environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errors []error

	if c.Agents.Dir == "" {
		errors = append(errors, fmt.Errorf("agents.dir is required"))
	}

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			errors = append(errors, fmt.Errorf("llm.openai.api_key is required when provider is 'openai'"))
		} else if len(c.LLM.OpenAI.APIKey) < 10 {
			errors = append(errors, fmt.Errorf("llm.openai.api_key is too short (value: %s)", maskSecret(c.LLM.OpenAI.APIKey)))
		}
	case "mock":
		// No credentials needed.
	default:
		errors = append(errors, fmt.Errorf("invalid llm.provider: %s (expected: openai, mock)", c.LLM.Provider))
	}

	if c.Schedule.TickSeconds < 0 {
		errors = append(errors, fmt.Errorf("schedule.tick_seconds cannot be negative"))
	}
	if c.Schedule.LookaheadMinutes < 0 {
		errors = append(errors, fmt.Errorf("schedule.lookahead_minutes cannot be negative"))
	}
	if c.Schedule.RetentionHours < 0 {
		errors = append(errors, fmt.Errorf("schedule.retention_hours cannot be negative"))
	}

	switch c.Store.Backend {
	case "memory":
	case "valkey":
		if c.Store.Valkey.Addr == "" {
			errors = append(errors, fmt.Errorf("store.valkey.addr is required when backend is 'valkey'"))
		}
	default:
		errors = append(errors, fmt.Errorf("invalid store.backend: %s (expected: memory, valkey)", c.Store.Backend))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}
	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	if c.Channels.Telegram.Enabled {
		if c.Channels.Telegram.Token == "" {
			errors = append(errors, fmt.Errorf("channels.telegram.token is required when telegram is enabled"))
		} else if err := validateTelegramToken(c.Channels.Telegram.Token); err != nil {
			errors = append(errors, err)
		}
		if c.Channels.Telegram.DefaultAgent == "" {
			errors = append(errors, fmt.Errorf("channels.telegram.default_agent is required when telegram is enabled"))
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errors = append(errors, fmt.Errorf("metrics.listen is required when metrics are enabled"))
	}

	return errors
}

func validateTelegramToken(token string) error {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return fmt.Errorf("telegram token has invalid format (expected <bot_id>:<token>, got: %s)", maskTelegramToken(token))
	}
	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			return fmt.Errorf("telegram token has invalid bot ID (expected digits only)")
		}
	}
	if len(parts[1]) < 10 {
		return fmt.Errorf("telegram token part is too short")
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.Agents.Dir == "" {
		c.Agents.Dir = "./agents"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-4o-mini"
	}
	if c.LLM.OpenAI.TimeoutSeconds == 0 {
		c.LLM.OpenAI.TimeoutSeconds = 60
	}

	if c.Schedule.TickSeconds == 0 {
		c.Schedule.TickSeconds = 60
	}
	if c.Schedule.LookaheadMinutes == 0 {
		c.Schedule.LookaheadMinutes = 30
	}
	if c.Schedule.RetentionHours == 0 {
		c.Schedule.RetentionHours = 24
	}
	if c.Schedule.IncrementMinutes == 0 {
		c.Schedule.IncrementMinutes = 30
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.Valkey.Addr == "" && c.Store.Backend == "valkey" {
		c.Store.Valkey.Addr = "localhost:6379"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Channels.Telegram.SendTimeoutSeconds == 0 {
		c.Channels.Telegram.SendTimeoutSeconds = 30
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "personad"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9090"
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialBackoffMS == 0 {
		c.Retry.InitialBackoffMS = 1000
	}
	if c.Retry.MaxBackoffMS == 0 {
		c.Retry.MaxBackoffMS = 10000
	}

	if c.MessageBus.Capacity == 0 {
		c.MessageBus.Capacity = 1000
	}
}

func expandEnvVars(c *Config) {
	c.LLM.OpenAI.APIKey = expandEnv(c.LLM.OpenAI.APIKey)
	c.Channels.Telegram.Token = expandEnv(c.Channels.Telegram.Token)
	c.Store.Valkey.Addr = expandEnv(c.Store.Valkey.Addr)
	c.Store.Valkey.Password = expandEnv(c.Store.Valkey.Password)
	c.Agents.Dir = expandEnv(c.Agents.Dir)
}

// expandEnv expands a ${VAR} or ${VAR:default} reference. Plain strings
// pass through untouched.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		if val := os.Getenv(parts[0]); val != "" {
			return val
		}
		return parts[1]
	}
	return os.Getenv(content)
}
