package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv overlays settings from the process environment. Unset variables
// leave the current value in place.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithFile reads a YAML or JSON config file; environment variables still
// take precedence over the file.
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return nil
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabaseURL selects the catalog store
func WithDatabaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseURL = url
		return nil
	}
}

// WithBlobBackend selects the blob backend by name
func WithBlobBackend(name string) Option {
	return func(c *ServerConfig) error {
		c.BlobBackend = name
		return nil
	}
}

// WithBlobTimeout bounds each object-store round trip
func WithBlobTimeout(d time.Duration) Option {
	return func(c *ServerConfig) error {
		c.BlobTimeout = d
		return nil
	}
}

// WithJWTSecret enables HS256 bearer tokens
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithDevOwnerHeader toggles the X-Owner-ID fallback
func WithDevOwnerHeader(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AuthDevHeader = enabled
		return nil
	}
}
