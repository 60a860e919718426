package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config aggregates the service configuration.
type Config struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	Server    ServerConfig
	Backend   BackendConfig
	SMS       SMSConfig
	Session   SessionConfig
	Simulator SimulatorConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	addr, err := listenAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if cfg.Session.Timeout <= 0 {
		return nil, fmt.Errorf("invalid USSD_SESSION_TIMEOUT value: %s", cfg.Session.Timeout)
	}
	if cfg.Session.SweepInterval <= 0 {
		return nil, fmt.Errorf("invalid USSD_SWEEP_INTERVAL value: %s", cfg.Session.SweepInterval)
	}

	return &cfg, nil
}

// Production reports whether APP_ENV is production.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"3000"`
	Addr string
}

// listenAddr accepts a bare port, ":3000" or "127.0.0.1:3000".
func listenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "3000"
	}

	if strings.Contains(port, ":") {
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// BackendConfig points at the GKash account API.
type BackendConfig struct {
	URL     string        `env:"GKASH_API_URL" envDefault:"http://localhost:4000/api"`
	Timeout time.Duration `env:"GKASH_API_TIMEOUT" envDefault:"30s"`
}

// SMSConfig holds TiaraConnect credentials.
type SMSConfig struct {
	BaseURL   string        `env:"TIARA_CONNECT_BASE_URL" envDefault:"https://api.tiaraconnect.io/v1"`
	APIKey    string        `env:"TIARA_CONNECT_API_KEY"`
	Shortcode string        `env:"TIARA_CONNECT_SHORTCODE" envDefault:"*123#"`
	Timeout   time.Duration `env:"TIARA_CONNECT_TIMEOUT" envDefault:"30s"`
}

// Configured reports whether an API key was provided.
func (c SMSConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// SessionConfig tunes the in-memory session store.
type SessionConfig struct {
	Timeout       time.Duration `env:"USSD_SESSION_TIMEOUT" envDefault:"5m"`
	SweepInterval time.Duration `env:"USSD_SWEEP_INTERVAL" envDefault:"1m"`
}

// SimulatorConfig toggles the development dial simulator.
type SimulatorConfig struct {
	Enabled bool `env:"USSD_SIMULATOR_ENABLED" envDefault:"true"`
}
