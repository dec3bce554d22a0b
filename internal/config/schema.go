// Package config provides configuration loading and validation for personad.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation.
//
// Configuration structure:
//   - [agents]: Agent profile directory
//   - [llm]: LLM provider configuration (OpenAI-compatible, mock)
//   - [schedule]: Schedule engine tuning (tick, lookahead, retention)
//   - [store]: History persistence backend (memory, valkey)
//   - [logging]: Logging level, format, and output
//   - [channels]: Channel configurations (Telegram)
//   - [metrics]: Prometheus exposition
//   - [retry]: LLM call retry policy
//   - [message_bus]: Message bus capacity settings
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax, e.g. api_key = "${OPENAI_API_KEY}".
package config

// Config represents the main application configuration.
type Config struct {
	Agents     AgentsConfig     `toml:"agents"`
	LLM        LLMConfig        `toml:"llm"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	Store      StoreConfig      `toml:"store"`
	Logging    LoggingConfig    `toml:"logging"`
	Channels   ChannelsConfig   `toml:"channels"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Retry      RetryConfig      `toml:"retry"`
	MessageBus MessageBusConfig `toml:"message_bus"`
}

// AgentsConfig locates the persona profiles.
type AgentsConfig struct {
	Dir string `toml:"dir"`
}

// LLMConfig selects and configures the text generation provider.
type LLMConfig struct {
	Provider string       `toml:"provider"` // openai, mock
	OpenAI   OpenAIConfig `toml:"openai"`
}

// OpenAIConfig configures any OpenAI-compatible chat completions API.
type OpenAIConfig struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// ScheduleConfig tunes the schedule engine.
type ScheduleConfig struct {
	TickSeconds      int     `toml:"tick_seconds"`
	LookaheadMinutes int     `toml:"lookahead_minutes"`
	RetentionHours   int     `toml:"retention_hours"`
	IncrementMinutes int     `toml:"increment_minutes"`
	Temperature      float64 `toml:"temperature"`
	MaxTokens        int     `toml:"max_tokens"`

	// DailyRegeneration generates a fresh full-day plan at each agent's
	// wake time.
	DailyRegeneration bool `toml:"daily_regeneration"`
}

// StoreConfig selects the history persistence backend.
type StoreConfig struct {
	Backend string       `toml:"backend"` // memory, valkey
	Valkey  ValkeyConfig `toml:"valkey"`
}

// ValkeyConfig configures the Valkey/Redis connection.
type ValkeyConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// ChannelsConfig configures the external transports.
type ChannelsConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled            bool     `toml:"enabled"`
	Token              string   `toml:"token"`
	DefaultAgent       string   `toml:"default_agent"`
	AllowedUsers       []string `toml:"allowed_users"`
	SendTimeoutSeconds int      `toml:"send_timeout_seconds"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Listen    string `toml:"listen"`
	Namespace string `toml:"namespace"`
}

// RetryConfig configures the LLM call retry policy.
type RetryConfig struct {
	MaxAttempts      int `toml:"max_attempts"`
	InitialBackoffMS int `toml:"initial_backoff_ms"`
	MaxBackoffMS     int `toml:"max_backoff_ms"`
}

// MessageBusConfig configures the in-process queue.
type MessageBusConfig struct {
	Capacity int `toml:"capacity"`
}
