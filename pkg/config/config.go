// Package config loads the mcplink client configuration from an optional
// YAML file, applies MCPLINK_* environment overrides, and fills defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultKeepAlivePeriod is the interval between client_ping emissions.
	DefaultKeepAlivePeriod = 180 * time.Second
	// DefaultReconnectDelay is the pause between connection attempts.
	DefaultReconnectDelay = 5 * time.Second
	// DefaultHandshakeTimeout bounds a single websocket handshake.
	DefaultHandshakeTimeout = 10 * time.Second
)

// Duration wraps time.Duration so YAML values like "180s" or "5m" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"180s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the full client configuration.
type Config struct {
	// ServerURL is the websocket endpoint of the coordination server.
	ServerURL string `yaml:"server_url"`
	// ClientID identifies this client instance to the server.
	ClientID string `yaml:"client_id"`
	// LogDir is where durable logs and transcripts are written.
	LogDir string `yaml:"log_dir"`

	KeepAlivePeriod  Duration `yaml:"keep_alive_period"`
	ReconnectDelay   Duration `yaml:"reconnect_delay"`
	HandshakeTimeout Duration `yaml:"handshake_timeout"`

	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig configures the agent execution port.
type AgentConfig struct {
	// Mode selects the port implementation: "qwen" (default) or "echo".
	Mode string `yaml:"mode"`
	// BaseURL is the OpenAI-compatible endpoint of the model server.
	BaseURL string `yaml:"base_url"`
	// APIKey is sent as a bearer token; local servers often ignore it.
	APIKey string `yaml:"api_key"`
	// Model is the model identifier, e.g. "qwen3:8b".
	Model string `yaml:"model"`
	// TopP is the nucleus sampling parameter passed through to the model.
	TopP float64 `yaml:"top_p"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		ClientID:         "mcplink",
		LogDir:           "log",
		KeepAlivePeriod:  Duration(DefaultKeepAlivePeriod),
		ReconnectDelay:   Duration(DefaultReconnectDelay),
		HandshakeTimeout: Duration(DefaultHandshakeTimeout),
		Agent: AgentConfig{
			Mode:   "qwen",
			APIKey: "ollama",
			Model:  "qwen3:8b",
			TopP:   0.8,
		},
	}
}

// Load reads the YAML file at path (if non-empty) and applies environment
// overrides. Callers validate after layering any higher-priority sources
// (e.g. command-line flags) on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays MCPLINK_* environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("MCPLINK_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("MCPLINK_CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv("MCPLINK_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("MCPLINK_KEEP_ALIVE_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.KeepAlivePeriod = Duration(d)
		}
	}
	if v := os.Getenv("MCPLINK_RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ReconnectDelay = Duration(d)
		}
	}
	if v := os.Getenv("MCPLINK_HANDSHAKE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HandshakeTimeout = Duration(d)
		}
	}
	if v := os.Getenv("MCPLINK_AGENT_MODE"); v != "" {
		c.Agent.Mode = v
	}
	if v := os.Getenv("MCPLINK_AGENT_BASE_URL"); v != "" {
		c.Agent.BaseURL = v
	}
	if v := os.Getenv("MCPLINK_AGENT_API_KEY"); v != "" {
		c.Agent.APIKey = v
	}
	if v := os.Getenv("MCPLINK_AGENT_MODEL"); v != "" {
		c.Agent.Model = v
	}
}

// Validate checks that required fields are present and sane.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.KeepAlivePeriod <= 0 {
		return fmt.Errorf("keep_alive_period must be positive")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive")
	}
	switch c.Agent.Mode {
	case "qwen", "echo":
	default:
		return fmt.Errorf("unknown agent mode %q", c.Agent.Mode)
	}
	return nil
}
