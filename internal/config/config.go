package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	// a missing .env is fine, the environment may be set by the container
	_ = godotenv.Load()
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DiscordToken == "" {
		return ErrConfig("DISCORD_TOKEN required")
	}
	if c.Prefix == "" {
		return ErrConfig("PREFIX must not be empty")
	}
	if c.DrainTimeout <= 0 {
		return ErrConfig("DRAIN_TIMEOUT must be positive")
	}
	if c.VoiceReconnectTimeout <= 0 {
		return ErrConfig("VOICE_RECONNECT_TIMEOUT must be positive")
	}
	if c.StreamVolume < 0 || c.StreamVolume > 2 {
		return ErrConfig("STREAM_VOLUME must be between 0 and 2")
	}
	if c.QueuePreview <= 0 {
		c.QueuePreview = 10
	}
	if c.ResolveRate <= 0 {
		c.ResolveRate = 2
	}
	if c.ResolveBurst <= 0 {
		c.ResolveBurst = 1
	}
	return nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
